package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-formchimp/core"
)

func TestRESTAdapter_SendsHeadersQueryAndBody(t *testing.T) {
	var (
		gotMethod string
		gotQuery  string
		gotBody   string
		gotHeader http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("X-Request-Id", "req_1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"member_1"}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  "put",
		URL:     server.URL + "/lists/aud_1/members/abc",
		Query:   map[string]string{"count": "1000"},
		Headers: map[string]string{"Authorization": "Basic token"},
		Body:    []byte(`{"email_address":"ada@example.com"}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %q", gotMethod)
	}
	if gotQuery != "count=1000" {
		t.Fatalf("expected count query, got %q", gotQuery)
	}
	if gotBody != `{"email_address":"ada@example.com"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if gotHeader.Get("Content-Type") != "application/json" || gotHeader.Get("Accept") != "application/json" {
		t.Fatalf("expected json headers, got %#v", gotHeader)
	}
	if gotHeader.Get("Authorization") != "Basic token" || gotHeader.Get("User-Agent") != "go-formchimp" {
		t.Fatalf("expected request and default headers, got %#v", gotHeader)
	}
	if res.StatusCode != http.StatusOK || string(res.Body) != `{"id":"member_1"}` {
		t.Fatalf("unexpected response %#v", res)
	}
	if res.Headers["X-Request-Id"] != "req_1" {
		t.Fatalf("expected flattened response headers, got %#v", res.Headers)
	}
}

func TestRESTAdapter_ReturnsNon2xxResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"API Key Invalid"}`))
	}))
	defer server.Close()

	res, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{URL: server.URL})
	if err != nil {
		t.Fatalf("expected status to be returned, got error %v", err)
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapterFromConfig(server.Client(), core.MailchimpConfig{MaxResponseBytes: 4})

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorUpstreamFailed {
		t.Fatalf("expected %q text code, got %q", core.ErrorUpstreamFailed, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_TimeoutFromConfig(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapterFromConfig(server.Client(), core.MailchimpConfig{Timeout: 50 * time.Millisecond})
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: server.URL})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Code != http.StatusBadGateway {
		t.Fatalf("expected bad gateway envelope, got %v", err)
	}
}

func TestRESTAdapter_NilAndMissingURLReturnRichErrors(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorInternal || rich.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected nil adapter error %#v", rich)
	}

	_, err = NewRESTAdapter(nil).Do(context.Background(), core.TransportRequest{URL: " "})
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorBadInput || rich.Code != http.StatusBadRequest {
		t.Fatalf("unexpected missing url error %#v", rich)
	}
}
