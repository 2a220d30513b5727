package healthcheck

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenara-designs/reviews-gateway/internal/storage"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestChecker_NoDependenciesIsHealthy(t *testing.T) {
	c := NewChecker(Config{})
	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth())
	assert.Empty(t, c.Names())
}

func TestChecker_MarksUnhealthyAfterMaxFailures(t *testing.T) {
	c := NewChecker(Config{MaxFailures: 2})
	c.Register("redis", down)
	c.Register("database", ok)

	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth(), "one failure is tolerated")
	assert.Equal(t, 1, c.GetStatus("redis").FailureCount)

	c.CheckAll(context.Background())
	assert.Equal(t, Degraded, c.OverallHealth())

	st := c.GetStatus("redis")
	require.NotNil(t, st)
	assert.False(t, st.IsHealthy)
	assert.Equal(t, "connection refused", st.LastError)
	assert.True(t, c.GetStatus("database").IsHealthy)
	assert.Equal(t, []string{"database", "redis"}, c.Names())
}

func TestChecker_Recovers(t *testing.T) {
	healthy := false
	c := NewChecker(Config{MaxFailures: 1})
	c.Register("database", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("timeout")
	})

	c.CheckAll(context.Background())
	assert.Equal(t, Unhealthy, c.OverallHealth())

	healthy = true
	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth())
	assert.Zero(t, c.GetStatus("database").FailureCount)
	assert.Empty(t, c.GetStatus("database").LastError)
}

func TestChecker_ProbeTimeout(t *testing.T) {
	c := NewChecker(Config{MaxFailures: 1, Timeout: 20 * time.Millisecond})
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	c.CheckAll(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Unhealthy, c.OverallHealth())
}

func TestChecker_RedisProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := storage.NewRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	c := NewChecker(Config{MaxFailures: 1})
	c.Register("redis", rdb.Ping)

	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth())

	mr.Close()
	c.CheckAll(context.Background())
	assert.Equal(t, Unhealthy, c.OverallHealth())
}

func TestChecker_StartStop(t *testing.T) {
	c := NewChecker(Config{Interval: 10 * time.Millisecond, MaxFailures: 1})
	c.Register("redis", down)

	c.Start()
	c.Start()
	defer c.Stop()

	assert.Equal(t, Unhealthy, c.OverallHealth(), "Start probes immediately")
}

func TestChecker_RestartAfterStop(t *testing.T) {
	var calls atomic.Int32
	c := NewChecker(Config{Interval: 5 * time.Millisecond})
	c.Register("database", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	for i := 0; i < 3; i++ {
		c.Start()
		c.Stop()
	}
	c.Stop()

	c.Start()
	defer c.Stop()
	before := calls.Load()
	assert.Eventually(t, func() bool { return calls.Load() > before }, time.Second, 5*time.Millisecond,
		"the ticker runs again after a restart")
}

func TestHealthStatus_String(t *testing.T) {
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "unhealthy", Unhealthy.String())
	assert.Equal(t, "unknown", HealthStatus(9).String())
}
