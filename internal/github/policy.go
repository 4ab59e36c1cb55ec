package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Verdict is the outcome of classifying one response.
type Verdict int

const (
	Success Verdict = iota
	Retry
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return "fail"
	}
}

// Decision tells the request loop what to do with a response.
// For Retry, After is the pause before the next attempt and Err is returned if no attempt is left.
type Decision struct {
	Verdict Verdict
	After   time.Duration
	Err     error
}

// Response is the part of an HTTP response the policy looks at.
type Response struct {
	StatusCode int
	Status     string
	URL        string
	Header     http.Header
	Body       []byte
}

const (
	retryAfterPad = 2 * time.Second
	rateResetPad  = 5 * time.Second
)

// Classify maps a response to a Decision.
func Classify(resp Response, now time.Time, serverErrorDelay time.Duration) Decision {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Decision{Verdict: Success}

	case resp.StatusCode == http.StatusInternalServerError || resp.StatusCode == http.StatusBadGateway:
		return Decision{
			Verdict: Retry,
			After:   serverErrorDelay,
			Err:     &ServerError{StatusCode: resp.StatusCode, Body: string(resp.Body)},
		}

	case resp.StatusCode == http.StatusForbidden:
		return classifyForbidden(resp, now)

	case resp.StatusCode == http.StatusBadRequest:
		if msg := badRequestMessage(resp.Body); msg != "" {
			return Decision{Verdict: Fail, Err: &ClientError{StatusCode: resp.StatusCode, Message: msg}}
		}
	}

	return Decision{Verdict: Fail, Err: &HTTPError{StatusCode: resp.StatusCode, Status: statusText(resp), URL: resp.URL}}
}

func classifyForbidden(resp Response, now time.Time) Decision {
	if v := strings.TrimSpace(resp.Header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			wait := time.Duration(secs)*time.Second + retryAfterPad
			return Decision{
				Verdict: Retry,
				After:   wait,
				Err:     &RateLimitError{StatusCode: resp.StatusCode, Wait: wait, Reason: "abuse limit hit"},
			}
		}
	}

	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
		if err == nil {
			wait := time.Duration(reset-now.Unix())*time.Second + rateResetPad
			if wait < 0 {
				wait = 0
			}
			return Decision{
				Verdict: Retry,
				After:   wait,
				Err:     &RateLimitError{StatusCode: resp.StatusCode, Wait: wait, Reason: "rate limit reached"},
			}
		}
	}

	return Decision{Verdict: Fail, Err: &ClientError{StatusCode: resp.StatusCode, Header: resp.Header.Clone()}}
}

// badRequestMessage extracts message.error from a 400 body.
func badRequestMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return ""
	}
	var nested struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload.Message, &nested); err != nil {
		return ""
	}
	return nested.Error
}

func statusText(resp Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
