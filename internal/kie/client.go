package kie

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable is returned when the client has no API key configured.
var ErrUnavailable = errors.New("kie provider not configured")

// MediaType selects the provider job family.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// GenerateRequest is the submit contract: one job, one callback.
type GenerateRequest struct {
	MediaType   MediaType              `json:"mediaType"`
	Model       string                 `json:"model"`
	Prompt      string                 `json:"prompt"`
	Options     map[string]interface{} `json:"options,omitempty"`
	CallbackURL string                 `json:"callbackUrl,omitempty"`
}

// GenerateResult carries the external task id and its initial status,
// already mapped to the internal vocabulary.
type GenerateResult struct {
	TaskID     string
	TaskStatus string
}

// TaskInfo is the provider-specific result payload returned by Query,
// retained raw so the callback handler can run its extraction strategies.
type TaskInfo struct {
	ResultJSON   string          `json:"resultJson,omitempty"`
	ErrorCode    string          `json:"failCode,omitempty"`
	ErrorMessage string          `json:"failMsg,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// QueryResult is the poll-side view of a job.
type QueryResult struct {
	TaskStatus string
	TaskInfo   TaskInfo
}

type createTaskRequest struct {
	Model       string                 `json:"model"`
	Input       map[string]interface{} `json:"input"`
	CallBackURL string                 `json:"callBackUrl,omitempty"`
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type taskRecord struct {
	TaskID     string `json:"taskId"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson,omitempty"`
	FailCode   string `json:"failCode,omitempty"`
	FailMsg    string `json:"failMsg,omitempty"`
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether the client can reach the provider.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate submits a generation job and returns the provider-assigned task id.
func (c *Client) Generate(req GenerateRequest) (*GenerateResult, error) {
	if !c.Configured() {
		return nil, ErrUnavailable
	}

	input := map[string]interface{}{
		"prompt": req.Prompt,
	}
	for k, v := range req.Options {
		input[k] = v
	}

	body := createTaskRequest{
		Model:       req.Model,
		Input:       input,
		CallBackURL: req.CallbackURL,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/jobs/createTask"
	httpReq, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	record, err := c.do(httpReq, "create task")
	if err != nil {
		return nil, err
	}

	status := record.State
	if status == "" {
		status = "waiting"
	}

	return &GenerateResult{
		TaskID:     record.TaskID,
		TaskStatus: MapStatus(status),
	}, nil
}

// Query fetches the current state of a job. The raw record is preserved in
// TaskInfo.Raw for result-URL extraction.
func (c *Client) Query(taskID string, mediaType MediaType) (*QueryResult, error) {
	if !c.Configured() {
		return nil, ErrUnavailable
	}

	params := url.Values{}
	params.Add("taskId", taskID)

	endpoint := c.baseURL + "/api/v1/jobs/recordInfo?" + params.Encode()
	httpReq, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var envelope apiEnvelope
	if _, err := c.doRaw(httpReq, "query task", &envelope); err != nil {
		return nil, err
	}

	var record taskRecord
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode task record: %w", err)
		}
	}

	return &QueryResult{
		TaskStatus: record.State,
		TaskInfo: TaskInfo{
			ResultJSON:   record.ResultJSON,
			ErrorCode:    record.FailCode,
			ErrorMessage: record.FailMsg,
			Raw:          envelope.Data,
		},
	}, nil
}

func (c *Client) do(req *http.Request, action string) (*taskRecord, error) {
	var envelope apiEnvelope
	if _, err := c.doRaw(req, action, &envelope); err != nil {
		return nil, err
	}

	var record taskRecord
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode task record: %w", err)
		}
	}

	return &record, nil
}

func (c *Client) doRaw(req *http.Request, action string, envelope *apiEnvelope) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to %s: status %d, body: %s", action, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if envelope.Code != 0 && envelope.Code != 200 {
		return nil, fmt.Errorf("failed to %s: provider code %d, msg: %s", action, envelope.Code, envelope.Msg)
	}

	return body, nil
}
