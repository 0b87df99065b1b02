package mailchimp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formchimp/core"
	"github.com/goliatone/go-formchimp/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	dataCenterPlaceholder = "{dc}"
	basicAuthUser         = "anystring"
	apiVersionSegment     = "3.0/"
	maxPageSize           = 1000
)

type Option func(*Client)

// WithTransport replaces the default REST adapter.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(c *Client) {
		if adapter != nil {
			c.transport = adapter
		}
	}
}

// WithBaseURL sets the API root. A "{dc}" placeholder is replaced with the
// data center taken from the API key.
func WithBaseURL(template string) Option {
	return func(c *Client) {
		if strings.TrimSpace(template) != "" {
			c.baseTemplate = strings.TrimSpace(template)
		}
	}
}

func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 && size <= maxPageSize {
			c.pageSize = size
		}
	}
}

// WithConfig applies base URL and page size from the mailchimp config
// section. The default transport picks up its timeout and response limit.
func WithConfig(cfg core.MailchimpConfig) Option {
	return func(c *Client) {
		WithBaseURL(cfg.BaseURL)(c)
		WithPageSize(cfg.PageSize)(c)
		c.config = cfg
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Response is the raw outcome of the most recent API call.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

type audienceMemo[T any] struct {
	audienceID string
	items      T
	loaded     bool
}

func (m *audienceMemo[T]) get(audienceID string) (T, bool) {
	if m.loaded && m.audienceID == audienceID {
		return m.items, true
	}
	var zero T
	return zero, false
}

func (m *audienceMemo[T]) set(audienceID string, items T) {
	m.audienceID = audienceID
	m.items = items
	m.loaded = true
}

type Client struct {
	apiKey       string
	dataCenter   string
	baseTemplate string
	baseURL      string
	pageSize     int
	config       core.MailchimpConfig
	transport    core.TransportAdapter
	logger       core.Logger

	mu          sync.Mutex
	last        Response
	audiences   []core.Audience
	hasLists    bool
	mergeFields audienceMemo[[]core.MergeField]
	segments    audienceMemo[[]core.Segment]
	categories  audienceMemo[[]core.InterestCategory]
	members     audienceMemo[[]core.Member]
}

// NewClient builds a client for apiKey. The data center is the part of the
// key after its last dash.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("mailchimp: api key is required")
	}
	dataCenter, err := DataCenter(apiKey)
	if err != nil {
		return nil, err
	}

	client := &Client{
		apiKey:       apiKey,
		dataCenter:   dataCenter,
		baseTemplate: core.DefaultMailchimpBaseURL,
		pageSize:     maxPageSize,
		logger:       glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.transport == nil {
		client.transport = transport.NewRESTAdapterFromConfig(nil, client.config)
	}
	client.baseURL = strings.TrimRight(strings.ReplaceAll(client.baseTemplate, dataCenterPlaceholder, dataCenter), "/")
	return client, nil
}

// DataCenter extracts the data center suffix ("us6") from an API key.
func DataCenter(apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	index := strings.LastIndex(apiKey, "-")
	if index < 0 || index == len(apiKey)-1 {
		return "", fmt.Errorf("mailchimp: invalid api key, missing data center suffix")
	}
	return apiKey[index+1:], nil
}

func (c *Client) DataCenter() string {
	if c == nil {
		return ""
	}
	return c.dataCenter
}

func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// LastResponse returns the response of the most recent call, including
// failed ones.
func (c *Client) LastResponse() Response {
	if c == nil {
		return Response{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.last
	out.Headers = make(map[string]string, len(c.last.Headers))
	for key, value := range c.last.Headers {
		out.Headers[key] = value
	}
	out.Body = append([]byte(nil), c.last.Body...)
	return out
}

// ResetMemo drops all memoized metadata.
func (c *Client) ResetMemo() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audiences = nil
	c.hasLists = false
	c.mergeFields = audienceMemo[[]core.MergeField]{}
	c.segments = audienceMemo[[]core.Segment]{}
	c.categories = audienceMemo[[]core.InterestCategory]{}
	c.members = audienceMemo[[]core.Member]{}
}

func (c *Client) listQuery() map[string]string {
	return map[string]string{"count": strconv.Itoa(c.pageSize)}
}

// call performs one API request. path is relative to the API root. A non-2xx
// response is returned as *APIError.
func (c *Client) call(
	ctx context.Context,
	method string,
	path string,
	query map[string]string,
	body any,
	out any,
) error {
	if c == nil || c.transport == nil {
		return fmt.Errorf("mailchimp: client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mailchimp: encode request body: %w", err)
		}
		payload = encoded
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method: method,
		URL:    endpoint,
		Headers: map[string]string{
			"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(basicAuthUser+":"+c.apiKey)),
		},
		Query: query,
		Body:  payload,
		Metadata: map[string]any{
			"data_center": c.dataCenter,
		},
	})
	if err != nil {
		c.logger.Error("mailchimp request failed", "method", method, "path", path, "error", err)
		return err
	}

	c.mu.Lock()
	c.last = Response{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
	}
	c.mu.Unlock()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		apiErr := newAPIError(res.StatusCode, res.Body)
		c.logger.Warn("mailchimp request rejected",
			"method", method,
			"path", path,
			"status", res.StatusCode,
			"title", apiErr.Title,
		)
		return apiErr
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("mailchimp: decode %s response: %w", path, err)
	}
	return nil
}

// relativePath turns a hypermedia href into a path below the API root.
func relativePath(href string) string {
	href = strings.TrimSpace(href)
	if index := strings.Index(href, apiVersionSegment); index >= 0 {
		return href[index+len(apiVersionSegment):]
	}
	return strings.TrimLeft(href, "/")
}

var _ core.MailchimpAPI = (*Client)(nil)
