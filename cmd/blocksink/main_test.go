package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mehmetymw/blocksink/internal/notifier"
	"github.com/mehmetymw/blocksink/internal/types"
)

type stubSink struct {
	err  error
	last *types.ReplicaBlockInfo
}

func (s *stubSink) UpdateBlockMetadata(_ context.Context, info *types.ReplicaBlockInfo) error {
	s.last = info
	return s.err
}

func (s *stubSink) Close() error { return nil }

func newTestServer(t *testing.T, sink *stubSink) *httptest.Server {
	n := notifier.New(false, zap.NewNop())
	n.AddSink("stub", sink)
	ts := httptest.NewServer(newRouter(n, prometheus.NewRegistry(), zap.NewNop()))
	t.Cleanup(ts.Close)
	return ts
}

func TestPostBlock(t *testing.T) {
	sink := &stubSink{}
	ts := newTestServer(t, sink)

	body := `{"slot":12345,"blockhash":"abc123","rewards":[{"pubkey":"p","lamports":1,"post_balance":2,"reward_type":"Fee","commission":10}],"block_height":67890}`
	resp, err := http.Post(ts.URL+"/v1/blocks", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NotNil(t, sink.last)
	assert.Equal(t, uint64(12345), sink.last.Slot)
	assert.Nil(t, sink.last.BlockTime)
	require.NotNil(t, sink.last.BlockHeight)
	assert.Equal(t, uint64(67890), *sink.last.BlockHeight)
	require.Len(t, sink.last.Rewards, 1)
	assert.Equal(t, types.RewardTypeFee, *sink.last.Rewards[0].RewardType)
	assert.Equal(t, uint8(10), *sink.last.Rewards[0].Commission)
}

func TestPostBlockStatusCodes(t *testing.T) {
	ts := newTestServer(t, &stubSink{err: errors.New("db down")})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"slot":`, http.StatusBadRequest},
		{"unknown field", `{"slot":1,"foo":2}`, http.StatusBadRequest},
		{"negative slot", `{"slot":-1}`, http.StatusBadRequest},
		{"sink failure", `{"slot":1,"blockhash":"h"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/blocks", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	resp, err := http.Get(ts.URL + "/v1/blocks")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &stubSink{})

	resp, err := http.Post(ts.URL+"/v1/blocks", "application/json", strings.NewReader(`{"slot":7,"blockhash":"h"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var h healthz
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "running", h.Status)
	assert.Equal(t, uint64(7), h.Sinks.LastSlot)
	assert.Equal(t, 1, h.Sinks.Written)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubSink{})
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
