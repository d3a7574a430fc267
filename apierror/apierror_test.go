package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponseStatusMapping(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    int
		kind      Kind
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthentication, false},
		{"forbidden", http.StatusForbidden, KindAuthorization, false},
		{"not found", http.StatusNotFound, KindNotFound, false},
		{"unprocessable entity", http.StatusUnprocessableEntity, KindValidation, false},
		{"too many requests", http.StatusTooManyRequests, KindRateLimit, true},
		{"internal server error", http.StatusInternalServerError, KindServer, true},
		{"bad gateway", http.StatusBadGateway, KindServer, true},
		{"teapot", http.StatusTeapot, KindHTTP, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse(http.MethodGet, "/api/v2/people", tt.status, http.Header{}, nil, now)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.retryable, err.Retryable())
		})
	}
}

func TestFromResponseRetryAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("retry-after seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "30")
		err := FromResponse(http.MethodGet, "/x", http.StatusTooManyRequests, h, nil, now)
		assert.Equal(t, now.Add(30*time.Second), err.RetryAfter)
	})

	t.Run("rate limit reset timestamp", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
		err := FromResponse(http.MethodGet, "/x", http.StatusTooManyRequests, h, nil, now)
		assert.True(t, err.RetryAfter.Equal(reset))
	})

	t.Run("unparsable retry-after falls back to reset", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "soon")
		h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
		err := FromResponse(http.MethodGet, "/x", http.StatusTooManyRequests, h, nil, now)
		assert.True(t, err.RetryAfter.Equal(reset))
	})

	t.Run("no headers defaults to one minute", func(t *testing.T) {
		err := FromResponse(http.MethodGet, "/x", http.StatusTooManyRequests, http.Header{}, nil, now)
		assert.Equal(t, now.Add(time.Minute), err.RetryAfter)
	})
}

func TestFromResponseBodyMessage(t *testing.T) {
	now := time.Now()
	body := []byte(`{"error":"invalid_request","error_description":"missing required parameter"}`)

	err := FromResponse(http.MethodPost, "/oauth/token", http.StatusUnauthorized, http.Header{}, body, now)
	assert.Equal(t, "missing required parameter", err.Message)
	assert.Equal(t, string(body), err.Body)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindNetwork, "POST /api/v2/people failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "network")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("while syncing: %w", New(KindNotFound, "person missing"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindStorage, "db down")))
	assert.False(t, IsRetryable(New(KindConfiguration, "missing client id")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
