package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx reply from a model backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d, body: %s", e.Backend, e.StatusCode, e.Body)
}

// PostJSON sends in as a JSON body and decodes the reply into out. A non-2xx
// status is returned as *StatusError, after out has been filled when the body
// parses, so callers can surface the backend's own error message.
func PostJSON(ctx context.Context, client *http.Client, backend, url string, headers map[string]string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", backend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", backend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", backend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", backend, err)
	}

	decodeErr := json.Unmarshal(body, out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Backend: backend, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if decodeErr != nil {
		return fmt.Errorf("unmarshal %s response: %w", backend, decodeErr)
	}
	return nil
}

// BearerAuth returns the Authorization header for token, or nil when empty.
func BearerAuth(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
