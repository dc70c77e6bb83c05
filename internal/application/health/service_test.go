package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realty-backend/internal/application/querycache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func TestCollectHealth_WithNilRedis(t *testing.T) {
	ctx := context.Background()
	result := CollectHealth(ctx, nil, nil, Options{})
	assert.Equal(t, "issue", result.Status)
	assert.Equal(t, "disconnected", result.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", result.Dependencies["redis"].Status)
	assert.Nil(t, result.Cache)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
}

func TestCollectHealth_WithMiniredis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	result := CollectHealth(ctx, rdb, pinger{}, Options{})
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "connected", result.Dependencies["redis"].Status)
	assert.Equal(t, "connected", result.Dependencies["database"].Status)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
	assert.Equal(t, "100", result.Traffic.SuccessRate)

	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:req_errors", "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_time_total", "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_count", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:start_time", "1000000", 0).Err())

	result2 := CollectHealth(ctx, rdb, pinger{err: errors.New("down")}, Options{})
	assert.Equal(t, "issue", result2.Status)
	assert.Equal(t, "error", result2.Dependencies["database"].Status)
	assert.Equal(t, 10, result2.Traffic.TotalRequests)
	assert.Equal(t, 2, result2.Traffic.FailedCount)
	assert.Equal(t, 8, result2.Traffic.SuccessCount)
	assert.Equal(t, "80.0", result2.Traffic.SuccessRate)
	assert.Equal(t, "15.05", result2.Traffic.AvgResponseTime)
}

func TestCollectHealth_CacheStatsAndProbes(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()

	cache := querycache.New(querycache.NewMemoryStore(), time.Minute)
	ctx := context.Background()
	load := func(context.Context) (int, error) { return 1, nil }
	_, err := querycache.Fetch(ctx, cache, "k", load)
	require.NoError(t, err)
	_, err = querycache.Fetch(ctx, cache, "k", load)
	require.NoError(t, err)

	result := CollectHealth(ctx, nil, nil, Options{
		Cache:        cache,
		Probes:       []Probe{{Name: "geocoder", URL: up.URL}, {Name: "email", URL: down.URL}, {Name: "skipped"}},
		ProbeTimeout: time.Second,
	})
	require.NotNil(t, result.Cache)
	assert.Equal(t, uint64(1), result.Cache.Hits)
	assert.Equal(t, uint64(1), result.Cache.Misses)
	assert.Equal(t, "reachable", result.Dependencies["geocoder"].Status)
	assert.NotNil(t, result.Dependencies["geocoder"].PingMs)
	assert.Equal(t, "unreachable", result.Dependencies["email"].Status)
	assert.NotContains(t, result.Dependencies, "skipped")
}
