// Package devkit provides test doubles for exercising the Mailchimp client
// without network access.
package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formchimp/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// JSONResponse scripts a response with body encoded as JSON.
func JSONResponse(status int, body any) TransportScript {
	encoded, err := json.Marshal(body)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode scripted body: %w", err)}
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       encoded,
	}}
}

// ProblemResponse scripts a Mailchimp problem document.
func ProblemResponse(status int, title string, detail string) TransportScript {
	return JSONResponse(status, map[string]any{
		"type":   "https://mailchimp.com/developer/marketing/docs/errors/",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

type route struct {
	method  string
	path    string
	scripts []TransportScript
	served  int
}

// FakeTransportAdapter answers requests from scripts. Routed scripts match on
// method and path suffix; unmatched requests consume the sequential scripts.
// The last script of a route or sequence repeats once exhausted.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	routes   []*route
	served   int
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
	}
}

// Route registers scripts for requests whose path ends with path.
func (a *FakeTransportAdapter) Route(method string, path string, scripts ...TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes = append(a.routes, &route{
		method:  strings.ToUpper(strings.TrimSpace(method)),
		path:    "/" + strings.Trim(strings.TrimSpace(path), "/"),
		scripts: append([]TransportScript(nil), scripts...),
	})
	sort.SliceStable(a.routes, func(i, j int) bool {
		return len(a.routes[i].path) > len(a.routes[j].path)
	})
	return a
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := requestPath(req.URL)
	for _, candidate := range a.routes {
		if candidate.method != method || !strings.HasSuffix(path, candidate.path) {
			continue
		}
		if len(candidate.scripts) == 0 {
			break
		}
		index := candidate.served
		if index >= len(candidate.scripts) {
			index = len(candidate.scripts) - 1
		}
		candidate.served++
		script := candidate.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	}

	if len(a.scripts) > 0 {
		index := a.served
		if index >= len(a.scripts) {
			index = len(a.scripts) - 1
		}
		a.served++
		script := a.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	}
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{},
		Body:       []byte("{}"),
		Metadata:   map[string]any{"kind": a.kind},
	}, nil
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestCount counts captured requests matching method and path suffix.
func (a *FakeTransportAdapter) RequestCount(method string, path string) int {
	method = strings.ToUpper(strings.TrimSpace(method))
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	count := 0
	for _, req := range a.Requests() {
		if strings.ToUpper(req.Method) == method && strings.HasSuffix(requestPath(req.URL), path) {
			count++
		}
	}
	return count
}

func requestPath(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return "/" + strings.Trim(parsed.Path, "/")
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
