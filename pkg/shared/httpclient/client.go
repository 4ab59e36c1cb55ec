package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/scan-io-git/watchman/internal/config"
)

// Client wraps a resty client whose transport retries connection failures.
// HTTP status handling is left to the caller.
type Client struct {
	RestyClient *resty.Client
}

// HclogAdapter adapts an hclog.Logger to be compatible with the resty log.Logger interface.
type HclogAdapter struct {
	logger hclog.Logger
}

// NewHclogAdapter creates a new adapter that will forward messages to a hclog.Logger.
func NewHclogAdapter(logger hclog.Logger) resty.Logger {
	return &HclogAdapter{logger: logger}
}

// Errorf logs a message at error level.
func (a *HclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

// Warnf logs a message at warning level.
func (a *HclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

// Infof logs a message at info level.
func (a *HclogAdapter) Infof(format string, v ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, v...))
}

// Debugf logs a message at debug level.
func (a *HclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// New builds a Client from the http_client configuration.
func New(logger hclog.Logger, httpConfig *config.HTTPClient) (*Client, error) {
	restyConfig, err := applyHTTPClientConfig(httpConfig)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = restyConfig.RetryCount
	retryClient.RetryWaitMin = restyConfig.RetryWaitTime
	retryClient.RetryWaitMax = restyConfig.RetryMaxWaitTime
	retryClient.Backoff = LinearBackoff
	retryClient.CheckRetry = RetryOnConnectionError
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		retryClient.Logger = logger.Named("transport")
	} else {
		retryClient.Logger = nil
	}

	var proxyFunc func(*http.Request) (*url.URL, error)
	if restyConfig.Proxy != "" {
		proxyURL, err := url.Parse(restyConfig.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", restyConfig.Proxy, err)
		}
		proxyFunc = http.ProxyURL(proxyURL)
	}
	retryClient.HTTPClient.Transport = &http.Transport{
		Proxy:               proxyFunc,
		TLSClientConfig:     restyConfig.TLSClientConfig,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	standardClient := retryClient.StandardClient()
	standardClient.Timeout = restyConfig.Timeout

	client := resty.NewWithClient(standardClient)
	client.SetDebug(restyConfig.Debug)
	if logger != nil {
		client.SetLogger(NewHclogAdapter(logger.Named("resty")))
	}

	return &Client{RestyClient: client}, nil
}

// LinearBackoff waits (attempt+1) * min, capped at max.
func LinearBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	wait := time.Duration(attemptNum+1) * min
	if wait > max {
		return max
	}
	return wait
}

// RetryOnConnectionError retries only when no response was received.
func RetryOnConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

// applyHTTPClientConfig applies the http_client configuration or uses default values.
func applyHTTPClientConfig(httpConfig *config.HTTPClient) (config.RestyHTTPClientConfig, error) {
	cfg := config.DefaultRestyConfig()
	if httpConfig == nil {
		return cfg, nil
	}

	cfg.Debug = httpConfig.Debug
	cfg.RetryCount = config.SetThen(httpConfig.RetryCount, cfg.RetryCount)
	cfg.RetryWaitTime = config.SetThen(httpConfig.RetryWaitTime, cfg.RetryWaitTime)
	cfg.RetryMaxWaitTime = config.SetThen(httpConfig.RetryMaxWaitTime, cfg.RetryMaxWaitTime)
	cfg.Timeout = config.SetThen(httpConfig.Timeout, cfg.Timeout)
	cfg.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !httpConfig.TLSClientConfig.Verify,
	}

	if httpConfig.Proxy.Host != "" && httpConfig.Proxy.Port != 0 {
		cfg.Proxy = fmt.Sprintf("%s:%d", httpConfig.Proxy.Host, httpConfig.Proxy.Port)
	}

	return cfg, nil
}
