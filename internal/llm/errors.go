package llm

import (
	"encoding/json"
	"fmt"
)

// APIError is the error payload returned by OpenAI-compatible APIs.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm api error (%s/%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("llm api error (%s): %s", e.Type, e.Message)
}

// parseErrorResponse decodes an error body. Returns nil when the body
// is not the expected error envelope.
func parseErrorResponse(statusCode int, body []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return nil
	}
	envelope.Error.StatusCode = statusCode
	return envelope.Error
}
