package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/relay"
	"github.com/Shugur-Network/nostr-client/internal/storage"
)

type fakePool []client.RelayStatus

func (p fakePool) Relays() []client.RelayStatus { return p }

type fakeDB struct{ err error }

func (d fakeDB) Ping(context.Context) error { return d.err }
func (d fakeDB) Stats() storage.DatabaseStats {
	return storage.DatabaseStats{OpenConnections: 2, MaxOpenConnections: 5}
}

type fakeQueue struct {
	pending, capacity int
	dropped           int64
}

func (q fakeQueue) Pending() int   { return q.pending }
func (q fakeQueue) Capacity() int  { return q.capacity }
func (q fakeQueue) Dropped() int64 { return q.dropped }

func TestRelayStatus(t *testing.T) {
	tests := []struct {
		name string
		pool fakePool
		want HealthStatus
	}{
		{"none configured", nil, StatusUnhealthy},
		{"all open", fakePool{{URL: "wss://a", State: relay.StateOpen}}, StatusHealthy},
		{"some open", fakePool{{URL: "wss://a", State: relay.StateOpen}, {URL: "wss://b", State: relay.StateClosed}}, StatusDegraded},
		{"none open", fakePool{{URL: "wss://a", State: relay.StateConnecting}}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(tt.pool, nil, zap.NewNop(), "test")
			resp := h.CheckHealth(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, "relays", resp.Components[0].Name)
		})
	}
}

func TestDatabaseFailureIsUnhealthy(t *testing.T) {
	pool := fakePool{{URL: "wss://a", State: relay.StateOpen}}

	h := NewHealthChecker(pool, fakeDB{}, zap.NewNop(), "test")
	assert.Equal(t, StatusHealthy, h.CheckHealth(context.Background()).Status)

	h = NewHealthChecker(pool, fakeDB{err: fmt.Errorf("refused")}, zap.NewNop(), "test")
	resp := h.CheckHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "refused", resp.Components[1].Details["error"])
}

func TestStorageQueueReport(t *testing.T) {
	pool := fakePool{{URL: "wss://a", State: relay.StateOpen}}

	h := NewHealthChecker(pool, nil, zap.NewNop(), "test").WithQueue(fakeQueue{pending: 3, capacity: 10, dropped: 2})
	resp := h.CheckHealth(context.Background())
	require.Len(t, resp.Components, 3)
	queue := resp.Components[1]
	assert.Equal(t, "storage_queue", queue.Name)
	assert.Equal(t, StatusHealthy, queue.Status)
	assert.Equal(t, 3, queue.Details["pending"])
	assert.Equal(t, int64(2), queue.Details["dropped"])

	h.WithQueue(fakeQueue{pending: 10, capacity: 10})
	assert.Equal(t, StatusDegraded, h.CheckHealth(context.Background()).Status)
}

func TestHandleHealth(t *testing.T) {
	pool := fakePool{{URL: "wss://a", State: relay.StateOpen}}
	h := NewHealthChecker(pool, nil, zap.NewNop(), "1.2.3")

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, "open", body.Components[0].Details["wss://a"])

	rec = httptest.NewRecorder()
	NewHealthChecker(fakePool{}, nil, zap.NewNop(), "x").HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42*time.Second))
	assert.Equal(t, "1h 2m 3s", formatUptime(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "2d 0h 0m 0s", formatUptime(48*time.Hour))
}
