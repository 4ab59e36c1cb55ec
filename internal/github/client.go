package github

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/watchman/internal/config"
	"github.com/scan-io-git/watchman/pkg/shared/httpclient"
)

// maxAttempts bounds the policy loop: the first request plus one retry.
const maxAttempts = 2

// Client talks to the GitHub REST API with the rate limit and server error policy applied.
type Client struct {
	http             *httpclient.Client
	baseURL          string
	token            string
	logger           hclog.Logger
	perPage          int
	pageDelay        time.Duration
	serverErrorDelay time.Duration
	sleep            func(time.Duration)
	now              func() time.Time

	// mu serialises requests so callers sharing a token share one backoff window.
	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithSleeper replaces time.Sleep for every pause the client takes.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithClock replaces time.Now for rate limit reset arithmetic.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSearchConfig applies pagination and server error backoff settings.
func WithSearchConfig(search config.Search) Option {
	return func(c *Client) {
		c.perPage = config.SetThen(search.PerPage, c.perPage)
		c.pageDelay = config.SetThen(search.PageDelay, c.pageDelay)
		c.serverErrorDelay = config.SetThen(search.ServerErrorDelay, c.serverErrorDelay)
	}
}

// NewClient creates an API client for the given base URL and token.
func NewClient(httpClient *httpclient.Client, baseURL, token string, logger hclog.Logger, opts ...Option) *Client {
	defaults := config.DefaultSearchConfig()
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	c := &Client{
		http:             httpClient,
		baseURL:          strings.TrimRight(config.NormalizeBaseURL(baseURL), "/"),
		token:            token,
		logger:           logger,
		perPage:          defaults.PerPage,
		pageDelay:        defaults.PageDelay,
		serverErrorDelay: defaults.ServerErrorDelay,
		sleep:            time.Sleep,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs a GET against path and returns the response body of a successful call.
func (c *Client) Request(ctx context.Context, path string, params map[string]string, mediaType string) ([]byte, http.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request(ctx, path, params, mediaType)
}

func (c *Client) request(ctx context.Context, path string, params map[string]string, mediaType string) ([]byte, http.Header, error) {
	if mediaType == "" {
		mediaType = MediaTypeTextMatch
	}
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.http.RestyClient.R().
			SetContext(ctx).
			SetHeader("Authorization", "token "+c.token).
			SetHeader("Accept", mediaType).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			return nil, nil, &TransportError{Method: http.MethodGet, URL: url, Err: err}
		}

		decision := Classify(Response{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			URL:        url,
			Header:     resp.Header(),
			Body:       resp.Body(),
		}, c.now(), c.serverErrorDelay)

		switch decision.Verdict {
		case Success:
			return resp.Body(), resp.Header(), nil
		case Fail:
			if ce, ok := decision.Err.(*ClientError); ok && ce.Header != nil {
				c.logger.Error("request forbidden", "url", url, "headers", ce.Header)
			}
			return nil, nil, decision.Err
		}

		lastErr = decision.Err
		if attempt == maxAttempts {
			break
		}
		c.logger.Warn("retrying request", "url", url, "reason", decision.Err, "wait", decision.After)
		c.sleep(decision.After)
	}
	return nil, nil, lastErr
}

// MultipageSearch fetches every page of a search and returns the items in page order.
func (c *Client) MultipageSearch(ctx context.Context, endpoint, query, mediaType string) ([]Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := map[string]string{
		"per_page": strconv.Itoa(c.perPage),
		"q":        query,
		"page":     "1",
	}

	page, header, err := c.searchPage(ctx, endpoint, params, mediaType)
	if err != nil {
		return nil, err
	}
	hits := page.Items

	last, ok := lastPage(header.Get("Link"))
	if !ok {
		return hits, nil
	}
	c.logger.Debug("paginating search", "endpoint", endpoint, "pages", last)

	for n := 2; n <= last; n++ {
		c.sleep(c.pageDelay)
		params["page"] = strconv.Itoa(n)
		page, _, err := c.searchPage(ctx, endpoint, params, mediaType)
		if err != nil {
			return nil, err
		}
		hits = append(hits, page.Items...)
	}
	return hits, nil
}

func (c *Client) searchPage(ctx context.Context, endpoint string, params map[string]string, mediaType string) (*SearchPage, http.Header, error) {
	body, header, err := c.request(ctx, endpoint, params, mediaType)
	if err != nil {
		return nil, nil, err
	}
	var page SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, nil, &DecodeError{URL: endpoint, Err: err}
	}
	if page.IncompleteResults {
		c.logger.Warn("search results are incomplete", "endpoint", endpoint, "q", params["q"], "page", params["page"])
	}
	return &page, header, nil
}

// GetRepository fetches repos/{fullName}.
func (c *Client) GetRepository(ctx context.Context, fullName string) (*Hit, error) {
	path := "repos/" + fullName
	body, _, err := c.Request(ctx, path, nil, MediaTypeTextMatch)
	if err != nil {
		return nil, err
	}
	var repo Hit
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, &DecodeError{URL: path, Err: err}
	}
	return &repo, nil
}
