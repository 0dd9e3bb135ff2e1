package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/neuroasura/neuroasura/internal/logger"
)

type baseHTTPClient struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

func newBaseHTTPClient(client *http.Client, name, baseURL, apiKey string, log logger.Logger) *baseHTTPClient {
	return &baseHTTPClient{
		name:    name,
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  log,
	}
}

func (c *baseHTTPClient) logRequest(req *http.Request, body []byte) {
	var bodyData any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &bodyData); err == nil {
			if m, ok := bodyData.(map[string]any); ok {
				truncateLargeFields(m)
			}
		}
	}

	logData := map[string]any{
		"url":    req.URL.String(),
		"method": req.Method,
		"body":   bodyData,
	}

	jsonData, err := json.Marshal(logData)
	if err != nil {
		c.logger.WithError(err).WithField("data", logData).Error("Fail marshal json for request")
	}
	c.logger.WithField("request", string(jsonData)).Debug("HTTP request")
}

func truncateLargeFields(data map[string]any) {
	for k, v := range data {
		switch val := v.(type) {
		case string:
			if k == "content" && len(val) > 1000 {
				data[k] = val[:1000] + "...[truncated]"
			}
		case map[string]any:
			truncateLargeFields(val)
		case []any:
			for _, item := range val {
				if m, ok := item.(map[string]any); ok {
					truncateLargeFields(m)
				}
			}
		}
	}
}

func (c *baseHTTPClient) resolve(endpoint string) (*url.URL, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return url.Parse(endpoint)
	}
	return url.Parse(fmt.Sprintf(
		"%s/%s",
		strings.TrimSuffix(c.baseURL, "/"),
		strings.TrimPrefix(endpoint, "/"),
	))
}

func (c *baseHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	c.logRequest(req, body)

	return c.client.Do(req)
}

// doRequest performs a JSON call and returns the body of a 2xx response.
func (c *baseHTTPClient) doRequest(ctx context.Context, method, endpoint string, body any) ([]byte, *BackendError) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, &BackendError{OriginalErr: err, Backend: c.name, Message: "invalid endpoint"}
	}

	var reader io.Reader
	if body != nil {
		requestBody, err := json.Marshal(body)
		if err != nil {
			return nil, &BackendError{OriginalErr: err, Backend: c.name, Message: "marshal error"}
		}
		reader = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, &BackendError{OriginalErr: err, Backend: c.name, Message: "create request error"}
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, &BackendError{
			OriginalErr: err,
			Backend:     c.name,
			Message:     "network request failed",
		}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{
			OriginalErr: err,
			Backend:     c.name,
			Message:     "failed to read response body",
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		backendErr := &BackendError{
			Backend:        c.name,
			HTTPStatusCode: resp.StatusCode,
			Message:        fmt.Sprintf("HTTP request failed with status code: %d", resp.StatusCode),
		}

		var errorBody struct {
			Error   providerError `json:"error"`
			Message string        `json:"message"`
		}
		if len(responseBody) > 0 && json.Unmarshal(responseBody, &errorBody) == nil {
			switch {
			case errorBody.Error.Message != "":
				backendErr.Message = errorBody.Error.Message
				backendErr.ErrorCode = errorBody.Error.Code
			case errorBody.Message != "":
				// GigaChat reports {"status": 401, "message": "..."}
				backendErr.Message = errorBody.Message
			}
		}

		c.logger.WithFields(logger.Fields{
			"backend": c.name,
			"status":  resp.StatusCode,
		}).Warn("Backend request failed")

		return responseBody, backendErr
	}

	return responseBody, nil
}

// chat posts a chat completion and extracts the first choice.
func (c *baseHTTPClient) chat(ctx context.Context, endpoint string, payload chatRequest) (string, error) {
	body, backendErr := c.doRequest(ctx, http.MethodPost, endpoint, payload)
	if backendErr != nil {
		backendErr.Model = payload.Model
		return "", backendErr
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &BackendError{
			OriginalErr: err,
			Backend:     c.name,
			Model:       payload.Model,
			Message:     "failed to unmarshal response",
		}
	}

	// some providers put errors in a 200 OK
	if result.Error != nil {
		return "", &BackendError{
			Backend:   c.name,
			Model:     payload.Model,
			ErrorCode: result.Error.Code,
			Message:   result.Error.Message,
		}
	}

	if len(result.Choices) == 0 {
		return "", &BackendError{
			Backend: c.name,
			Model:   payload.Model,
			Message: "no choices in response",
		}
	}

	return result.Choices[0].Message.Content, nil
}

func (c *baseHTTPClient) listModels(ctx context.Context, endpoint string) ([]ModelInfo, error) {
	body, backendErr := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if backendErr != nil {
		return nil, fmt.Errorf("models request error: %w", backendErr)
	}

	var modelsResponse struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &modelsResponse); err != nil {
		return nil, fmt.Errorf("decode models error: %w", err)
	}
	return modelsResponse.Data, nil
}

func newChatRequest(req Request, defaultModel string) chatRequest {
	payload := chatRequest{
		Model:    req.Model,
		Messages: req.Messages(),
	}
	if payload.Model == "" {
		payload.Model = defaultModel
	}
	if req.Temperature > 0 {
		temperature := req.Temperature
		payload.Temperature = &temperature
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		payload.MaxTokens = &maxTokens
	}
	return payload
}
