// Package collector keeps the pool list fresh and periodically polls every
// listed pool, persisting what it finds.
package collector

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolCollector/internal/adapter"
	"poolCollector/internal/metrics"
	"poolCollector/internal/model"
	"poolCollector/internal/schedule"
	"poolCollector/internal/storage"
)

const (
	DefaultPollingInterval = 60 * time.Second
	DefaultUpdateInterval  = time.Hour
	DefaultHistoryDays     = 0.25

	taskStatus  = "status"
	taskBlocks  = "blocks"
	taskRefresh = "refresh"
)

// Config holds collector timing settings. Zero values take the defaults.
type Config struct {
	PollingInterval time.Duration
	UpdateInterval  time.Duration
	HistoryDays     float64
}

// ListSource provides the current pool directory.
type ListSource interface {
	FetchList(ctx context.Context) ([]model.Pool, error)
}

// PoolFetcher polls a single pool.
type PoolFetcher interface {
	FetchStatus(ctx context.Context, pool model.Pool) adapter.Result
	FetchBlocks(ctx context.Context, pool model.Pool) adapter.Result
}

// Collector drives the status, blocks and refresh tasks over a shared pool
// list. The list is replaced wholesale by the refresh task; every other task
// works on the list it read when its tick started.
type Collector struct {
	cfg      Config
	source   ListSource
	fetcher  PoolFetcher
	store    storage.Storage
	observer Observer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	cache atomic.Pointer[[]model.Pool]
	tasks []*schedule.Task
	// refresh is also tasks[2]; Start fires it immediately.
	refresh *schedule.Task
}

// New builds a stopped Collector. A nil observer logs through logger.
func New(cfg Config, source ListSource, fetcher PoolFetcher, store storage.Storage, observer Observer, m *metrics.Metrics, logger *zap.Logger) (*Collector, error) {
	if source == nil {
		return nil, fmt.Errorf("pool list source is nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("pool fetcher is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is nil")
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.HistoryDays <= 0 || math.IsNaN(cfg.HistoryDays) || math.IsInf(cfg.HistoryDays, 0) {
		cfg.HistoryDays = DefaultHistoryDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = NewLogObserver(logger)
	}

	c := &Collector{
		cfg:      cfg,
		source:   source,
		fetcher:  fetcher,
		store:    store,
		observer: observer,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
	empty := []model.Pool{}
	c.cache.Store(&empty)

	opts := []schedule.Option{
		schedule.WithSkipHook(m.TickSkipped),
		schedule.WithLogger(logger),
	}
	c.refresh = schedule.NewTask(taskRefresh, cfg.UpdateInterval, c.timed(taskRefresh, c.RefreshList), opts...)
	c.tasks = []*schedule.Task{
		schedule.NewTask(taskStatus, cfg.PollingInterval, c.timed(taskStatus, c.PollStatus), opts...),
		schedule.NewTask(taskBlocks, cfg.PollingInterval, c.timed(taskBlocks, c.PollBlocks), opts...),
		c.refresh,
	}
	return c, nil
}

// Run drives every task until ctx is done. Tasks only fire once Start has
// been called.
func (c *Collector) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range c.tasks {
		task := task
		g.Go(func() error {
			return task.Run(ctx)
		})
	}
	return g.Wait()
}

// Start resumes every task and refreshes the pool list right away.
func (c *Collector) Start(ctx context.Context) {
	for _, task := range c.tasks {
		task.Resume()
	}
	c.refresh.Tick(ctx)
}

// Stop pauses every task. Ticks already running are left to finish.
func (c *Collector) Stop() {
	for _, task := range c.tasks {
		task.Pause()
	}
}

// Wait blocks until no tick is running.
func (c *Collector) Wait() {
	for _, task := range c.tasks {
		task.Wait()
	}
}

// Pools returns the current pool list. Callers must not modify it.
func (c *Collector) Pools() []model.Pool {
	return *c.cache.Load()
}

func (c *Collector) timed(task string, fn func(ctx context.Context)) schedule.Func {
	return func(ctx context.Context) {
		start := time.Now()
		fn(ctx)
		c.metrics.ObserveTick(task, time.Since(start))
	}
}

// RefreshList replaces the pool list from the source and then prunes history
// older than the retention window. A failed fetch keeps the previous list;
// pruning runs either way.
func (c *Collector) RefreshList(ctx context.Context) {
	pools, err := c.source.FetchList(ctx)
	if err != nil {
		c.observer.Error("could not update the public pool list", err)
	} else {
		c.cache.Store(&pools)
		c.observer.Update(pools)
		c.savePools(ctx, pools)
	}

	c.pruneHistory(ctx)
}

func (c *Collector) savePools(ctx context.Context, pools []model.Pool) {
	if err := c.store.SavePools(ctx, pools); err != nil {
		c.metrics.PersistenceError("save_pools")
		c.observer.Error(fmt.Sprintf("could not save %d pools", len(pools)), err)
		return
	}
	c.observer.Info(fmt.Sprintf("saved %d pools", len(pools)))
}

// Cutoff returns the oldest timestamp still retained at now.
func (c *Collector) Cutoff(now time.Time) int64 {
	historySeconds := int64(c.cfg.HistoryDays * 24 * 60 * 60)
	return now.Unix() - historySeconds
}

func (c *Collector) pruneHistory(ctx context.Context) {
	cutoff := c.Cutoff(c.now())
	if err := c.store.CleanPollingHistory(ctx, cutoff); err != nil {
		c.metrics.PersistenceError("clean_history")
		c.observer.Error(fmt.Sprintf("could not clear history before %d", cutoff), err)
		return
	}
	c.observer.Info(fmt.Sprintf("cleaned polling history before %d", cutoff))
}

// PollStatus polls every listed pool and stores the results as one snapshot.
func (c *Collector) PollStatus(ctx context.Context) {
	pools := c.Pools()
	timestamp := c.now().Unix()

	polled := c.collect(ctx, pools, c.fetcher.FetchStatus)

	online := 0
	for _, pool := range polled {
		if pool.Status == model.StatusOnline {
			online++
		}
	}
	c.metrics.SetPoolsOnline(online)

	if len(polled) == 0 {
		return
	}
	if err := c.store.SavePoolsPolling(ctx, timestamp, polled); err != nil {
		c.metrics.PersistenceError("save_polling")
		c.observer.Error(fmt.Sprintf("could not save polling event for %d pools", len(polled)), err)
		return
	}
	c.observer.Info(fmt.Sprintf("saved polling event for %d pools", len(polled)))
}

// PollBlocks fetches the recent blocks of every listed pool and stores them.
func (c *Collector) PollBlocks(ctx context.Context) {
	pools := c.Pools()

	polled := c.collect(ctx, pools, c.fetcher.FetchBlocks)
	if len(polled) == 0 {
		return
	}
	if err := c.store.SavePoolsBlocks(ctx, polled); err != nil {
		c.metrics.PersistenceError("save_blocks")
		c.observer.Error(fmt.Sprintf("could not save blocks for %d pools", len(polled)), err)
		return
	}
	c.observer.Info(fmt.Sprintf("saved blocks for %d pools", len(polled)))
}

// collect runs fetch for every pool concurrently and returns the pools that
// could be dispatched, in list order.
func (c *Collector) collect(ctx context.Context, pools []model.Pool, fetch func(context.Context, model.Pool) adapter.Result) []model.Pool {
	results := make([]adapter.Result, len(pools))
	var g errgroup.Group
	for i := range pools {
		i := i
		g.Go(func() error {
			results[i] = fetch(ctx, pools[i])
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Pool, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			c.observer.Error(fmt.Sprintf("pool %s was not polled", res.Pool.ID), res.Err)
			continue
		}
		out = append(out, res.Pool)
	}
	return out
}
