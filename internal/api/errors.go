package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/isdelr/datathon-cli/internal/models"
)

// Error is a non-2xx backend response carrying the server's message when
// the body had one.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// RateLimitError is an HTTP 429: the daily submission quota is spent.
// NextReset is zero when the backend omitted it.
type RateLimitError struct {
	Message   string
	NextReset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "daily submission limit reached"
}

// decodeError turns an error response into a typed error. Bodies that are
// not the usual {error: ...} envelope fall back to the status code alone.
func decodeError(resp *http.Response) error {
	var envelope models.ErrorResponse
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		// Ignore decode failures; envelope stays zero.
		_ = json.Unmarshal(body, &envelope)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		rle := &RateLimitError{Message: envelope.Error}
		if envelope.NextReset != nil {
			rle.NextReset = *envelope.NextReset
		}
		return rle
	}
	return &Error{StatusCode: resp.StatusCode, Message: envelope.Error}
}
