package openrouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned when no API key is configured.
var ErrUnavailable = errors.New("openrouter not configured")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// CompletionOptions tunes a single chat completion call.
type CompletionOptions struct {
	Model string
	// JSONObject requests a json_object response format and parses the
	// returned content into ParsedJSON.
	JSONObject bool
}

type CompletionResult struct {
	Content    string
	ParsedJSON map[string]interface{}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Complete runs one chat completion with an optional system prompt.
func (c *Client) Complete(systemPrompt, userPrompt string, opts CompletionOptions) (*CompletionResult, error) {
	if c.apiKey == "" {
		return nil, ErrUnavailable
	}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	reqBody := chatRequest{
		Model:    opts.Model,
		Messages: messages,
	}
	if opts.JSONObject {
		reqBody.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("completion failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if result.Error != nil {
		return nil, fmt.Errorf("completion failed: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	out := &CompletionResult{Content: result.Choices[0].Message.Content}

	if opts.JSONObject {
		parsed := map[string]interface{}{}
		content := strings.TrimSpace(out.Content)
		// Some models wrap JSON answers in markdown fences despite the
		// response_format hint.
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse completion JSON: %w", err)
		}
		out.ParsedJSON = parsed
	}

	return out, nil
}
