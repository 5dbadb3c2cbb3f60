package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

func newTestClient() *Client {
	return New(logger.Nop(), 2*time.Second).WithRetry(1, time.Millisecond)
}

func TestNew(t *testing.T) {
	client := New(logger.Nop(), 3*time.Second)

	require.NotNil(t, client.httpClient)
	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 1, client.retryConfig.MaxRetries)
	assert.True(t, client.retryConfig.Enabled)
}

func TestGet_RetriesOnceOnTransientStatus(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantCode  int
	}{
		{name: "success first try", statuses: []int{200}, wantCalls: 1, wantCode: 200},
		{name: "503 then 200", statuses: []int{503, 200}, wantCalls: 2, wantCode: 200},
		{name: "502 twice gives up", statuses: []int{502, 502, 200}, wantCalls: 2, wantCode: 502},
		{name: "408 then 200", statuses: []int{408, 200}, wantCalls: 2, wantCode: 200},
		{name: "401 is final", statuses: []int{401, 200}, wantCalls: 1, wantCode: 401},
		{name: "429 is final", statuses: []int{429, 200}, wantCalls: 1, wantCode: 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
			}))
			defer server.Close()

			resp, err := newTestClient().Get(context.Background(), server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestGet_DisableRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := newTestClient().DisableRetry().Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), calls.Load())
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return l.err
}

func TestGet_ConsultsLimiterPerAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	resp, err := newTestClient().WithLimiter(limiter).Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(2), limiter.calls.Load())
}

func TestGet_LimiterFailureIsFinal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	limiter := &countingLimiter{err: errors.Join(errLimiter, errors.New("quota"))}
	_, err := newTestClient().WithLimiter(limiter).Get(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, int32(1), limiter.calls.Load())
	assert.Zero(t, calls.Load())
}

func TestGet_TransportErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	limiter := &countingLimiter{}
	_, err := newTestClient().WithLimiter(limiter).Get(context.Background(), url)

	require.Error(t, err)
	assert.Equal(t, int32(2), limiter.calls.Load())
}

func TestLocalLimiter_RespectsContext(t *testing.T) {
	limiter := NewLocalLimiter(1, 1)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, isLimiterOrContextErr(err))
}

func TestChain_StopsAtFirstError(t *testing.T) {
	first := &countingLimiter{err: errors.New("closed")}
	second := &countingLimiter{}

	err := Chain{first, nil, second}.Wait(context.Background())

	assert.Error(t, err)
	assert.Zero(t, second.calls.Load())
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 425, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 429, 501} {
		assert.False(t, IsRetryableStatus(code), "status %d", code)
	}
}
