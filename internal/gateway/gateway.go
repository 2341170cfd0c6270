package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/metrics"
)

// Client is the single chokepoint for traffic to the catalog API. It
// attaches the bearer credential, classifies failures, and reacts to
// credential rejection by tearing the session down. Every call is
// fire-once: no retries, no queuing, no timeout. A hung request stays
// in flight until the transport itself gives up.
type Client struct {
	base          string
	http          *http.Client
	credential    func() string
	onAuthFailure func()
}

// New creates a gateway client. credential supplies the current bearer
// token (empty when logged out); onAuthFailure runs once per rejected
// credential, before the caller sees the error.
func New(base string, credential func() string, onAuthFailure func()) *Client {
	return &Client{
		base:          strings.TrimRight(base, "/"),
		http:          &http.Client{},
		credential:    credential,
		onAuthFailure: onAuthFailure,
	}
}

// Do performs a JSON round-trip. body is marshaled when non-nil; a 2xx
// response is decoded into out when out is non-nil. headers may override
// the defaults but can never remove the Authorization header.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any, headers http.Header) error {
	return c.do(ctx, method, path, body, out, headers, false)
}

// DoPublic is Do for unauthenticated endpoints (login, register). A 401
// here means the submitted credentials were wrong, not that the session
// died, so it surfaces as an application failure with the server's text
// and does not tear the session down.
func (c *Client) DoPublic(ctx context.Context, method, path string, body any, out any) error {
	return c.do(ctx, method, path, body, out, nil, true)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, headers http.Header, public bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindTransport, Body: err.Error()}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return &Error{Kind: KindTransport, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if !public {
		c.finishHeaders(req, headers)
	}

	resp, err := c.roundTripMode(req, public)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindApplication, Status: resp.StatusCode,
			Body: fmt.Sprintf("unexpected response from the library server: %v", err)}
	}
	return nil
}

// Upload sends a multipart request with a single file field named "file",
// bypassing the JSON content-type default.
func (c *Client) Upload(ctx context.Context, path, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return &Error{Kind: KindTransport, Body: err.Error()}
	}
	if _, err := io.Copy(part, file); err != nil {
		return &Error{Kind: KindTransport, Body: err.Error()}
	}
	if err := writer.Close(); err != nil {
		return &Error{Kind: KindTransport, Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return &Error{Kind: KindTransport, Body: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.finishHeaders(req, nil)

	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindApplication, Status: resp.StatusCode,
			Body: fmt.Sprintf("unexpected response from the library server: %v", err)}
	}
	return nil
}

// Download fetches a binary payload (CSV export) and returns the raw bytes
// with the response content type.
func (c *Client) Download(ctx context.Context, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, "", &Error{Kind: KindTransport, Body: err.Error()}
	}
	c.finishHeaders(req, nil)

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Kind: KindTransport, Body: err.Error()}
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

// finishHeaders applies caller overrides, then guarantees the Authorization
// header is present whenever a credential is held.
func (c *Client) finishHeaders(req *http.Request, overrides http.Header) {
	for key, values := range overrides {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if cred := c.credential(); cred != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+cred)
	}
}

// roundTrip executes the request and folds the response into the error
// taxonomy. Only a 2xx response comes back as a non-error.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	return c.roundTripMode(req, false)
}

func (c *Client) roundTripMode(req *http.Request, public bool) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("Catalog API unreachable")
		metrics.OutboundRequests.WithLabelValues(req.Method, metrics.OutcomeTransport).Inc()
		return nil, &Error{Kind: KindTransport, Body: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized && !public {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		log.Warn().Str("url", req.URL.String()).Msg("Credential rejected by catalog API, clearing session")
		metrics.OutboundRequests.WithLabelValues(req.Method, metrics.OutcomeAuthRequired).Inc()
		if c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		return nil, &Error{Kind: KindAuthRequired}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.OutboundRequests.WithLabelValues(req.Method, metrics.OutcomeApplication).Inc()
		return nil, &Error{Kind: KindApplication, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	metrics.OutboundRequests.WithLabelValues(req.Method, metrics.OutcomeOK).Inc()
	return resp, nil
}
