package github

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	now := time.Unix(1_000, 0)
	delay := 30 * time.Second

	tests := []struct {
		name        string
		resp        Response
		wantVerdict Verdict
		wantAfter   time.Duration
	}{
		{name: "ok", resp: Response{StatusCode: 200}, wantVerdict: Success},
		{name: "server error", resp: Response{StatusCode: 500}, wantVerdict: Retry, wantAfter: delay},
		{name: "bad gateway", resp: Response{StatusCode: 502}, wantVerdict: Retry, wantAfter: delay},
		{name: "service unavailable is not retried", resp: Response{StatusCode: 503}, wantVerdict: Fail},
		{
			name:        "retry after",
			resp:        Response{StatusCode: 403, Header: http.Header{"Retry-After": {"60"}}},
			wantVerdict: Retry,
			wantAfter:   62 * time.Second,
		},
		{
			name: "reset in future",
			resp: Response{StatusCode: 403, Header: http.Header{
				"X-Ratelimit-Remaining": {"0"},
				"X-Ratelimit-Reset":     {"1010"},
			}},
			wantVerdict: Retry,
			wantAfter:   15 * time.Second,
		},
		{
			name: "reset already passed",
			resp: Response{StatusCode: 403, Header: http.Header{
				"X-Ratelimit-Remaining": {"0"},
				"X-Ratelimit-Reset":     {"900"},
			}},
			wantVerdict: Retry,
			wantAfter:   0,
		},
		{
			name:        "forbidden with quota left",
			resp:        Response{StatusCode: 403, Header: http.Header{"X-Ratelimit-Remaining": {"12"}}},
			wantVerdict: Fail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.resp, now, delay)
			assert.Equal(t, tt.wantVerdict, d.Verdict, d.Verdict.String())
			assert.Equal(t, tt.wantAfter, d.After)
			if tt.wantVerdict == Success {
				assert.NoError(t, d.Err)
			} else {
				assert.Error(t, d.Err)
			}
		})
	}
}

func TestLastPage(t *testing.T) {
	tests := []struct {
		name   string
		link   string
		want   int
		wantOK bool
	}{
		{name: "empty", link: ""},
		{
			name:   "next and last",
			link:   `<https://api.github.com/search/code?q=x&page=2>; rel="next", <https://api.github.com/search/code?q=x&page=34>; rel="last"`,
			want:   34,
			wantOK: true,
		},
		{
			name: "only prev",
			link: `<https://api.github.com/search/code?q=x&page=1>; rel="prev"`,
		},
		{
			name: "last without page",
			link: `<https://api.github.com/search/code?q=x>; rel="last"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := lastPage(tt.link)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
