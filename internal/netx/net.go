// Package netx holds the HTTP plumbing the uploader uses to talk to the
// gateway.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is a non-2xx answer. Reason carries the X-ErrorStatus header
// when the gateway sent one.
type StatusError struct {
	Code   int
	Reason string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("request failed: %d %s (%s)", e.Code, http.StatusText(e.Code), e.Reason)
	}
	return fmt.Sprintf("request failed: %d %s; body: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// PostJSON sends in as a JSON body and decodes the JSON answer into out.
// out may be nil.
func PostJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return Post(ctx, client, url, "application/json", "", bytes.NewReader(b), out)
}

// PostBearer sends body with a bearer token and decodes the JSON answer
// into out. out may be nil.
func PostBearer(ctx context.Context, client *http.Client, url, token string, body []byte, out any) error {
	return Post(ctx, client, url, "application/octet-stream", token, bytes.NewReader(body), out)
}

// Post performs a POST request and decodes a JSON answer into out.
func Post(ctx context.Context, client *http.Client, url, contentType, token string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Code:   resp.StatusCode,
			Reason: resp.Header.Get("X-ErrorStatus"),
			Body:   strings.TrimSpace(string(b)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
