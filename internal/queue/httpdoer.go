package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPDoer implements Doer over a standard *http.Client. Non-2xx responses
// are returned as ordinary Responses (never errors): classification of a
// status code as retryable is the Manager's job, not the Doer's.
type HTTPDoer struct {
	Client *http.Client
}

// NewHTTPDoer builds an HTTPDoer over client, or http.DefaultClient when
// client is nil; any per-attempt timeout is the client's own.
func NewHTTPDoer(client *http.Client) *HTTPDoer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDoer{Client: client}
}

// Do performs one HTTP round trip for req.
func (d *HTTPDoer) Do(ctx context.Context, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(nil))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if httpReq.Method == "" {
		httpReq.Method = http.MethodGet
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("round trip: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     map[string][]string(resp.Header),
		Body:       body,
	}, nil
}
