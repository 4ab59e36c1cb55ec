package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateGitHubConfig(&cfg.GitHub); err != nil {
		return fmt.Errorf("github_watchman directive is invalid: %w", err)
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateSearchConfig(&cfg.Search); err != nil {
		return fmt.Errorf("YAML global config: search directive is invalid: %w", err)
	}
	return nil
}

// ValidateGitHubConfig checks that a token and an API URL are present.
func ValidateGitHubConfig(gh *GitHub) error {
	if gh == nil {
		return fmt.Errorf("github configuration is nil")
	}
	if gh.Token == "" {
		return fmt.Errorf("GITHUB_WATCHMAN_TOKEN environment variable or token in %s not detected", DefaultConfigFileName)
	}
	if gh.URL == "" {
		return fmt.Errorf("GITHUB_WATCHMAN_URL environment variable or url in %s not detected", DefaultConfigFileName)
	}
	u, err := url.Parse(gh.URL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", gh.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API URL %q must use http or https", gh.URL)
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
		"Timeout":          httpConfig.Timeout,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 100*time.Second); err != nil {
			return err
		}
	}

	if err := validateProxy(&httpConfig.Proxy); err != nil {
		return err
	}

	return nil
}

// ValidateSearchConfig checks pagination and backoff settings.
func ValidateSearchConfig(search *Search) error {
	if search == nil {
		return fmt.Errorf("search configuration is nil")
	}
	if search.PerPage < 1 || search.PerPage > 100 {
		return fmt.Errorf("per_page must be between 1 and 100: %d", search.PerPage)
	}
	if err := validateDuration(search.PageDelay, "page_delay", 1*time.Minute); err != nil {
		return err
	}
	if err := validateDuration(search.ServerErrorDelay, "server_error_delay", 10*time.Minute); err != nil {
		return err
	}
	return nil
}

// ValidateStreamConfig checks the TCP stream sink settings.
func ValidateStreamConfig(tcp *JSONTCP) error {
	if tcp == nil || tcp.Host == "" || tcp.Port == 0 {
		return fmt.Errorf("JSON TCP stream selected with no host/port configured")
	}
	return validatePort(tcp.Port)
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}

	if err := validatePort(proxy.Port); err != nil {
		return err
	}

	return nil
}

// validateHost checks if the host part of the proxy configuration is valid.
// It ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	if _, err := url.Parse(*host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}

	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
