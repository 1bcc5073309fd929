package services

import "encoding/json"

// Provider result payloads arrive in several shapes depending on the job
// family and delivery path: a top-level resultUrls array, a resultJson
// string field encoding the same array, a nested taskResult object, or
// image/video descriptor lists under taskInfo. Each shape gets its own
// extractor; they run in a fixed priority order and the first non-empty
// list wins.
type urlExtractor func(payload map[string]interface{}) []string

// ExtractResultURLs returns the result URLs found in a provider payload,
// or nil when no strategy matches. The list lives here rather than in a
// package var because the taskResult strategy recurses through this
// function.
func ExtractResultURLs(payload map[string]interface{}) []string {
	if payload == nil {
		return nil
	}
	extractors := []urlExtractor{
		extractTopLevelURLs,
		extractResultJSONField,
		extractNestedTaskResult,
		extractTaskInfoImages,
		extractTaskInfoVideos,
	}
	for _, extract := range extractors {
		if urls := extract(payload); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func extractTopLevelURLs(payload map[string]interface{}) []string {
	return stringList(payload["resultUrls"])
}

func extractResultJSONField(payload map[string]interface{}) []string {
	raw, ok := payload["resultJson"].(string)
	if !ok || raw == "" {
		return nil
	}

	var parsed struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	urls := make([]string, 0, len(parsed.ResultURLs))
	for _, u := range parsed.ResultURLs {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func extractNestedTaskResult(payload map[string]interface{}) []string {
	nested, ok := payload["taskResult"].(map[string]interface{})
	if !ok {
		return nil
	}
	return ExtractResultURLs(nested)
}

func extractTaskInfoImages(payload map[string]interface{}) []string {
	return extractDescriptorURLs(payload, "images", "imageUrl")
}

func extractTaskInfoVideos(payload map[string]interface{}) []string {
	return extractDescriptorURLs(payload, "videos", "videoUrl")
}

func extractDescriptorURLs(payload map[string]interface{}, listKey, urlKey string) []string {
	taskInfo, ok := payload["taskInfo"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := taskInfo[listKey].([]interface{})
	if !ok {
		return nil
	}

	var urls []string
	for _, item := range items {
		descriptor, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if u, ok := descriptor[urlKey].(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func stringList(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var urls []string
	for _, item := range items {
		if u, ok := item.(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
