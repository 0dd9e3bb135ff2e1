package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat turn. Model may be empty to use the backend default.
type Request struct {
	Message      string
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	History      []Message
}

// Messages builds the wire order: system prompt, prior turns, then the new message.
func (r Request) Messages() []Message {
	messages := make([]Message, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: r.SystemPrompt})
	}
	for _, msg := range r.History {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		messages = append(messages, msg)
	}
	return append(messages, Message{Role: RoleUser, Content: r.Message})
}

type Backend interface {
	Name() string
	Send(ctx context.Context, req Request) (string, error)
}

type ModelInfo struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	OwnedBy     string `json:"owned_by"`
	Description string `json:"-"`
}

// ModelLister is implemented by backends exposing a models endpoint.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type providerError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *providerError `json:"error,omitempty"`
}

// BackendError represents an enriched error from a model backend
type BackendError struct {
	// OriginalErr is the original error (if any)
	OriginalErr error `json:"-"`
	// Backend is the provider name (e.g. "gigachat", "deepseek")
	Backend string `json:"backend"`
	// Model is the model name where the error occurred
	Model string `json:"model"`
	// HTTPStatusCode is the HTTP response status code (if applicable)
	HTTPStatusCode int `json:"http_status_code"`
	// ErrorCode is the provider's error code (e.g. "insufficient_quota")
	ErrorCode string `json:"error_code"`
	// Message is a human-readable error message
	Message string `json:"message"`
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.OriginalErr != nil {
		msg = e.OriginalErr.Error()
	} else if e.OriginalErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.OriginalErr)
	}
	if e.Backend != "" && e.Model != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.Backend, e.Model, msg)
	} else if e.Backend != "" {
		msg = fmt.Sprintf("[%s] %s", e.Backend, msg)
	}
	if e.ErrorCode != "" {
		msg = fmt.Sprintf("%s (code: %s)", msg, e.ErrorCode)
	}
	if e.HTTPStatusCode != 0 {
		msg = fmt.Sprintf("%d %s", e.HTTPStatusCode, msg)
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.OriginalErr
}

// ErrorType classifies the error by HTTP status code and cause
func (e *BackendError) ErrorType() ErrorType {
	switch {
	case e.HTTPStatusCode == 0 && e.OriginalErr != nil && isNetworkError(e.OriginalErr):
		return ErrorTypeNetwork
	case e.HTTPStatusCode == 429:
		return ErrorTypeRateLimit
	case e.HTTPStatusCode >= 500:
		return ErrorTypeServer
	case e.HTTPStatusCode == 400 && strings.Contains(strings.ToLower(e.Message), "policy"):
		return ErrorTypeContentPolicy
	case e.HTTPStatusCode >= 400 && e.HTTPStatusCode < 500:
		return ErrorTypeClient
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryable determines if a request can be safely retried
func (e *BackendError) IsRetryable() bool {
	switch e.ErrorType() {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	default:
		return false
	}
}

type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"        // Network error, timeout
	ErrorTypeRateLimit     ErrorType = "rate_limit"     // 429, provider limits
	ErrorTypeServer        ErrorType = "server"         // 5xx, provider-side error
	ErrorTypeClient        ErrorType = "client"         // 4xx (except 429), invalid request, API key
	ErrorTypeContentPolicy ErrorType = "content_policy" // 400, content policy violation
	ErrorTypeUnknown       ErrorType = "unknown"
)

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection") || strings.Contains(err.Error(), "dial")
}

func IsRetryableError(err error) bool {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.IsRetryable()
	}
	return false
}

func GetErrorType(err error) ErrorType {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.ErrorType()
	}
	return ErrorTypeUnknown
}

// AsBackendError wraps any error into *BackendError attributed to backend.
func AsBackendError(err error, backend, model string) *BackendError {
	if err == nil {
		return nil
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr
	}
	return &BackendError{
		OriginalErr: err,
		Backend:     backend,
		Model:       model,
	}
}
