package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolCollector/internal/adapter"
	"poolCollector/internal/metrics"
	"poolCollector/internal/model"
	"poolCollector/internal/storage"
)

type fakeSource struct {
	mu    sync.Mutex
	pools []model.Pool
	err   error
	calls int
}

func (s *fakeSource) FetchList(context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.Pool(nil), s.pools...), nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeFetcher marks known pools online and gives them one block.
type fakeFetcher struct{}

func (fakeFetcher) FetchStatus(_ context.Context, pool model.Pool) adapter.Result {
	if !pool.Type.Known() {
		return adapter.Result{Pool: pool, Err: fmt.Errorf("%w: %q", adapter.ErrUnknownPoolType, pool.Type)}
	}
	pool.Status = model.StatusOnline
	pool.Height = 100
	return adapter.Result{Pool: pool}
}

func (fakeFetcher) FetchBlocks(_ context.Context, pool model.Pool) adapter.Result {
	if !pool.Type.Known() {
		return adapter.Result{Pool: pool, Err: fmt.Errorf("%w: %q", adapter.ErrUnknownPoolType, pool.Type)}
	}
	pool.Blocks = []model.Block{{Hash: "h", Height: 99}}
	return adapter.Result{Pool: pool}
}

type fakeStore struct {
	mu       sync.Mutex
	saved    [][]model.Pool
	polling  []model.PollingSnapshot
	blocks   [][]model.Pool
	cutoffs  []int64
	failures map[string]error
}

func (s *fakeStore) fail(op string) error {
	if s.failures == nil {
		return nil
	}
	return s.failures[op]
}

func (s *fakeStore) SavePools(_ context.Context, pools []model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("pools"); err != nil {
		return err
	}
	s.saved = append(s.saved, pools)
	return nil
}

func (s *fakeStore) SavePoolsPolling(_ context.Context, ts int64, pools []model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("polling"); err != nil {
		return err
	}
	s.polling = append(s.polling, model.PollingSnapshot{Timestamp: ts, Pools: pools})
	return nil
}

func (s *fakeStore) SavePoolsBlocks(_ context.Context, pools []model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("blocks"); err != nil {
		return err
	}
	s.blocks = append(s.blocks, pools)
	return nil
}

func (s *fakeStore) CleanPollingHistory(_ context.Context, cutoff int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.fail("clean")
}

type recordingObserver struct {
	mu      sync.Mutex
	updates int
	infos   []string
	errs    []error
}

func (o *recordingObserver) Update([]model.Pool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates++
}

func (o *recordingObserver) Info(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.infos = append(o.infos, msg)
}

func (o *recordingObserver) Error(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

var testPools = []model.Pool{
	{ID: "a", Type: model.TypeForknote},
	{ID: "b", Type: model.PoolType("mystery")},
	{ID: "c", Type: model.TypeSolo},
}

func newTestCollector(t *testing.T, source ListSource, store storage.Storage, obs Observer, m *metrics.Metrics) *Collector {
	t.Helper()
	c, err := New(Config{}, source, fakeFetcher{}, store, obs, m, nil)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(Config{}, nil, fakeFetcher{}, &fakeStore{}, nil, nil, nil)
	assert.Error(t, err)
	_, err = New(Config{}, &fakeSource{}, nil, &fakeStore{}, nil, nil, nil)
	assert.Error(t, err)
	_, err = New(Config{}, &fakeSource{}, fakeFetcher{}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New(Config{}, &fakeSource{}, fakeFetcher{}, &fakeStore{}, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPollingInterval, c.cfg.PollingInterval)
	assert.Equal(t, DefaultUpdateInterval, c.cfg.UpdateInterval)
	assert.Equal(t, DefaultHistoryDays, c.cfg.HistoryDays)
	assert.Empty(t, c.Pools())
}

func TestRefreshListReplacesCache(t *testing.T) {
	source := &fakeSource{pools: testPools}
	store := &fakeStore{}
	obs := &recordingObserver{}
	c := newTestCollector(t, source, store, obs, nil)

	c.RefreshList(context.Background())

	assert.Equal(t, testPools, c.Pools())
	assert.Equal(t, 1, obs.updates)
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 3)
	assert.Equal(t, []int64{1700000000 - 21600}, store.cutoffs)

	source.pools = testPools[:1]
	c.RefreshList(context.Background())
	assert.Equal(t, testPools[:1], c.Pools())
}

func TestRefreshListKeepsCacheOnSourceFailure(t *testing.T) {
	source := &fakeSource{pools: testPools}
	store := &fakeStore{}
	obs := &recordingObserver{}
	c := newTestCollector(t, source, store, obs, nil)

	c.RefreshList(context.Background())
	source.err = errors.New("boom")
	c.RefreshList(context.Background())

	assert.Equal(t, testPools, c.Pools())
	assert.Equal(t, 1, obs.updates)
	assert.Len(t, store.saved, 1)
	assert.Len(t, store.cutoffs, 2, "history is pruned even when the list fetch fails")
	require.Len(t, obs.errs, 1)
	assert.EqualError(t, obs.errs[0], "boom")
}

func TestRefreshListPrunesPastRetention(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewJsonlStorage(dir)
	ctx := context.Background()
	const now = int64(1700000000)

	require.NoError(t, store.SavePoolsPolling(ctx, now-21601, []model.Pool{{ID: "old"}}))
	require.NoError(t, store.SavePoolsPolling(ctx, now-21599, []model.Pool{{ID: "new"}}))

	c := newTestCollector(t, &fakeSource{}, store, nil, nil)
	c.RefreshList(ctx)

	file, err := os.Open(filepath.Join(dir, "polling.jsonl"))
	require.NoError(t, err)
	defer file.Close()

	var stamps []int64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var snapshot model.PollingSnapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &snapshot))
		stamps = append(stamps, snapshot.Timestamp)
	}
	assert.Equal(t, []int64{now - 21599}, stamps)
}

func TestCutoffUsesHistoryDays(t *testing.T) {
	c, err := New(Config{HistoryDays: 7}, &fakeSource{}, fakeFetcher{}, &fakeStore{}, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1000000-7*86400), c.Cutoff(time.Unix(1000000, 0)))
}

func TestPollStatusExcludesUnknownTypes(t *testing.T) {
	store := &fakeStore{}
	obs := &recordingObserver{}
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	c := newTestCollector(t, &fakeSource{pools: testPools}, store, obs, m)

	c.RefreshList(context.Background())
	c.PollStatus(context.Background())

	require.Len(t, store.polling, 1)
	snapshot := store.polling[0]
	assert.Equal(t, int64(1700000000), snapshot.Timestamp)
	require.Len(t, snapshot.Pools, 2)
	assert.Equal(t, "a", snapshot.Pools[0].ID)
	assert.Equal(t, "c", snapshot.Pools[1].ID)
	assert.Equal(t, model.StatusOnline, snapshot.Pools[0].Status)

	require.Len(t, obs.errs, 1)
	assert.ErrorIs(t, obs.errs[0], adapter.ErrUnknownPoolType)

	// The cached list itself is not touched by polling.
	assert.Equal(t, model.StatusUnknown, c.Pools()[0].Status)
}

func TestPollBlocksPersists(t *testing.T) {
	store := &fakeStore{}
	c := newTestCollector(t, &fakeSource{pools: testPools}, store, &recordingObserver{}, nil)

	c.RefreshList(context.Background())
	c.PollBlocks(context.Background())

	require.Len(t, store.blocks, 1)
	require.Len(t, store.blocks[0], 2)
	assert.Equal(t, []model.Block{{Hash: "h", Height: 99}}, store.blocks[0][0].Blocks)
}

func TestPollWithEmptyListStoresNothing(t *testing.T) {
	store := &fakeStore{}
	c := newTestCollector(t, &fakeSource{}, store, &recordingObserver{}, nil)

	c.PollStatus(context.Background())
	c.PollBlocks(context.Background())

	assert.Empty(t, store.polling)
	assert.Empty(t, store.blocks)
}

func TestPersistenceFailureIsReported(t *testing.T) {
	storeErr := errors.New("disk full")
	store := &fakeStore{failures: map[string]error{"polling": storeErr, "blocks": storeErr}}
	obs := &recordingObserver{}
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	c := newTestCollector(t, &fakeSource{pools: testPools[:1]}, store, obs, m)

	c.RefreshList(context.Background())
	c.PollStatus(context.Background())
	c.PollBlocks(context.Background())

	require.Len(t, obs.errs, 2)
	assert.Equal(t, storeErr, obs.errs[0])
	assert.Equal(t, storeErr, obs.errs[1])
	expected := `
# HELP collector_persistence_errors_total Failed persistence calls by operation.
# TYPE collector_persistence_errors_total counter
collector_persistence_errors_total{op="save_blocks"} 1
collector_persistence_errors_total{op="save_polling"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "collector_persistence_errors_total"))
}

func TestStartRefreshesImmediately(t *testing.T) {
	source := &fakeSource{pools: testPools}
	store := &fakeStore{}
	c, err := New(Config{PollingInterval: time.Hour, UpdateInterval: time.Hour}, source, fakeFetcher{}, store, &recordingObserver{}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Start(ctx)
	assert.Eventually(t, func() bool { return source.callCount() == 1 }, time.Second, time.Millisecond)

	c.Stop()
	cancel()
	require.NoError(t, <-done)
	c.Wait()

	for _, task := range c.tasks {
		assert.True(t, task.Paused(), task.Name())
	}
}

func TestTicksRunWhileStarted(t *testing.T) {
	store := &fakeStore{}
	c, err := New(Config{PollingInterval: 5 * time.Millisecond, UpdateInterval: time.Hour},
		&fakeSource{pools: testPools}, fakeFetcher{}, store, &recordingObserver{}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Start(ctx)
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.polling) > 0 && len(store.blocks) > 0
	}, time.Second, time.Millisecond)

	c.Stop()
	cancel()
	require.NoError(t, <-done)
}

// gatedFetcher holds every status fetch until release is closed.
type gatedFetcher struct {
	fakeFetcher
	started chan string
	release chan struct{}
}

func (f gatedFetcher) FetchStatus(ctx context.Context, pool model.Pool) adapter.Result {
	f.started <- pool.ID
	<-f.release
	return f.fakeFetcher.FetchStatus(ctx, pool)
}

func TestTickKeepsListItStartedWith(t *testing.T) {
	oldList := []model.Pool{{ID: "old-1", Type: model.TypeSolo}, {ID: "old-2", Type: model.TypeOther}}
	newList := []model.Pool{{ID: "new-1", Type: model.TypeSolo}}

	source := &fakeSource{pools: oldList}
	store := &fakeStore{}
	fetcher := gatedFetcher{started: make(chan string, len(oldList)), release: make(chan struct{})}
	c, err := New(Config{}, source, fetcher, store, &recordingObserver{}, nil, nil)
	require.NoError(t, err)

	c.RefreshList(context.Background())

	done := make(chan struct{})
	go func() {
		c.PollStatus(context.Background())
		close(done)
	}()
	for range oldList {
		<-fetcher.started
	}

	source.mu.Lock()
	source.pools = newList
	source.mu.Unlock()
	c.RefreshList(context.Background())
	require.Equal(t, newList, c.Pools())

	close(fetcher.release)
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.polling, 1)
	var ids []string
	for _, pool := range store.polling[0].Pools {
		ids = append(ids, pool.ID)
	}
	assert.Equal(t, []string{"old-1", "old-2"}, ids)
}
