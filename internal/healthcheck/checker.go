package healthcheck

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency. storage.RedisClient.Ping and
// storage.Postgres.Ping fit.
type Probe func(ctx context.Context) error

// Performs periodic health checks on the gateway's dependencies
type Checker struct {
	mu           sync.RWMutex
	probes       map[string]Probe
	names        []string
	healthStatus map[string]*Status
	interval     time.Duration
	timeout      time.Duration
	maxFailures  int
	log          *zap.Logger
	now          func() time.Time
	stopChan     chan struct{}
	running      bool
}

// Holds health checker configuration
type Config struct {
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Per probe timeout (default: 2s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
	Logger      *zap.Logger
}

func NewChecker(cfg Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Checker{
		probes:       make(map[string]Probe),
		healthStatus: make(map[string]*Status),
		interval:     cfg.Interval,
		timeout:      cfg.Timeout,
		maxFailures:  cfg.MaxFailures,
		log:          cfg.Logger,
		now:          time.Now,
	}
}

// Register adds a dependency. It is assumed healthy until probed.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.probes[name]; !exists {
		c.names = append(c.names, name)
		sort.Strings(c.names)
	}
	c.probes[name] = probe
	c.healthStatus[name] = &Status{
		Name:      name,
		IsHealthy: true,
		LastCheck: c.now(),
	}
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	stop := make(chan struct{})
	c.stopChan = stop
	c.mu.Unlock()

	c.log.Info("starting dependency health checks", zap.Int("dependencies", len(c.Names())), zap.Duration("interval", c.interval))

	// Run initial check immediately
	c.CheckAll(context.Background())

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CheckAll(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

// Stops the health checker
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		c.log.Info("health checker stopped")
	}
}

// CheckAll probes every dependency concurrently and waits for the results.
func (c *Checker) CheckAll(ctx context.Context) {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			c.check(ctx, name, probe)
		}(name, probe)
	}
	wg.Wait()
}

func (c *Checker) check(ctx context.Context, name string, probe Probe) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := probe(ctx); err != nil {
		c.recordFailure(name, err)
		return
	}
	c.recordSuccess(name)
}

// Records a successful health check
func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	status := c.healthStatus[name]
	status.LastCheck = now
	status.LastSuccess = now
	status.LastError = ""
	status.FailureCount = 0

	if !status.IsHealthy {
		c.log.Info("dependency is healthy again", zap.String("dependency", name))
		status.IsHealthy = true
	}
}

// Records a failed health check
func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	status := c.healthStatus[name]
	status.LastCheck = now
	status.LastFailure = now
	status.LastError = err.Error()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		c.log.Warn("dependency is unhealthy",
			zap.String("dependency", name),
			zap.Int("failures", status.FailureCount),
			zap.Error(err),
		)
		status.IsHealthy = false
	}
}

// Names returns the registered dependencies in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.names))
	copy(names, c.names)
	return names
}

// Return the health status of a specific dependency
func (c *Checker) GetStatus(name string) *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if status, exists := c.healthStatus[name]; exists {
		statusCopy := *status
		return &statusCopy
	}

	return nil
}

// Returns health status of all dependencies
func (c *Checker) GetAllStatus() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]Status, len(c.healthStatus))
	for name, status := range c.healthStatus {
		statusMap[name] = *status
	}

	return statusMap
}

// Returns the overall health status. No dependencies means healthy.
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.healthStatus)
	healthy := 0
	for _, status := range c.healthStatus {
		if status.IsHealthy {
			healthy++
		}
	}

	switch {
	case healthy == total:
		return Healthy
	case healthy == 0:
		return Unhealthy
	default:
		return Degraded
	}
}
