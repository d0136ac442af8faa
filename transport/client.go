// Package transport is the HTTP layer under the governance client: it signs
// requests, bounds response bodies and turns non-2xx replies into go-errors
// envelopes carrying the access proxy text codes.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	adapterName          = "rest"
	defaultClientTimeout = 30 * time.Second
	defaultBodyLimit     = int64(10 << 20)
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestSigner decorates outbound requests, e.g. with a bearer token.
type RequestSigner interface {
	Sign(ctx context.Context, req *http.Request) error
}

type Request struct {
	Method               string
	URL                  string
	Query                url.Values
	Headers              map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Header looks a response header up case-insensitively.
func (r Response) Header(name string) string {
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type RESTAdapter struct {
	Client               HTTPDoer
	Signer               RequestSigner
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultBodyLimit,
	}
}

// Do executes req and returns the raw response for any status code.
func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, misconfigured.new("transport: rest adapter requires an http client", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.newHTTPRequest(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if a.Signer != nil {
		if err := a.Signer.Sign(ctx, httpReq); err != nil {
			return Response{}, err
		}
	}

	target := map[string]any{"method": httpReq.Method, "url": httpReq.URL.String()}
	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return Response{}, badGateway.wrap(err, "transport: execute http request", target)
	}
	defer httpRes.Body.Close()

	limit := firstPositive(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes, defaultBodyLimit)
	body, err := readLimited(httpRes, limit)
	if err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    joinHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        adapterName,
		},
	}, nil
}

// DoJSON encodes in as the request body, executes the request and decodes a
// successful response into out. Non-2xx responses become StatusError values
// and the raw response is still returned for header inspection.
func (a *RESTAdapter) DoJSON(ctx context.Context, req Request, in any, out any) (Response, error) {
	headers := make(map[string]string, len(req.Headers)+2)
	maps.Copy(headers, req.Headers)
	setDefault(headers, "Accept", "application/json")
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return Response{}, badRequest.wrap(err, "transport: encode request body", map[string]any{"url": req.URL})
		}
		req.Body = encoded
		setDefault(headers, "Content-Type", "application/json")
	}
	req.Headers = headers

	res, err := a.Do(ctx, req)
	switch {
	case err != nil:
		return res, err
	case !res.Success():
		return res, StatusError(req.Method, req.URL, res)
	case out == nil || len(bytes.TrimSpace(res.Body)) == 0:
		return res, nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return res, badGateway.wrap(err, "transport: decode response body", map[string]any{
			"url":         req.URL,
			"status_code": res.StatusCode,
		})
	}
	return res, nil
}

func (a *RESTAdapter) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, badRequest.new("transport: request url is required", nil)
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, badRequest.wrap(err, "transport: invalid request url", map[string]any{"url": rawURL})
	}
	if len(req.Query) > 0 {
		params := target.Query()
		for key, values := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				params[key] = values
			}
		}
		target.RawQuery = params.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, badRequest.wrap(err, "transport: create http request", map[string]any{"method": method, "url": target.String()})
	}
	for _, headers := range []map[string]string{a.DefaultHeaders, req.Headers} {
		for key, value := range headers {
			if key = strings.TrimSpace(key); key != "" {
				httpReq.Header.Set(key, strings.TrimSpace(value))
			}
		}
	}
	return httpReq, nil
}

func readLimited(res *http.Response, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, badGateway.wrap(err, "transport: read response body", map[string]any{"status_code": res.StatusCode})
	}
	if int64(len(body)) > limit {
		return nil, badGateway.new(fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit), map[string]any{
			"status_code":      res.StatusCode,
			"response_limit_b": limit,
		})
	}
	return body, nil
}

func joinHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		out[key] = strings.Join(values, ",")
	}
	return out
}

func setDefault(headers map[string]string, key, value string) {
	if _, ok := headers[key]; !ok {
		headers[key] = value
	}
}

func firstPositive(values ...int64) int64 {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}
