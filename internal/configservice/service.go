// Package configservice keeps the latest config JSON for one SDK key fresh.
// It implements the auto, lazy and manual polling modes on top of a Fetcher,
// shares downloaded entries with other processes through a cache.Store and
// collapses concurrent downloads into a single request.
package configservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/fetcher"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/observability"
	"github.com/rafaeljc/heimdall-sdk/internal/validation"
)

// Log event ids emitted by the service.
const (
	EventCacheReadFailed  = 2200
	EventCacheWriteFailed = 2201
	EventOfflineRefresh   = 3200
	EventInitWaitExpired  = 4200
)

var (
	// ErrClosed is returned by operations on a closed service.
	ErrClosed = errors.New("config service is closed")
	// ErrOffline is returned by Refresh while the service is offline.
	ErrOffline = errors.New("config service is offline and cannot initiate HTTP calls")
)

const (
	defaultPollInterval = 60 * time.Second
	defaultMaxInitWait  = 5 * time.Second
	defaultCacheTTL     = 60 * time.Second

	flightKey = "fetch"
)

// Fetcher downloads the config JSON. *fetcher.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, etag string) (fetcher.Response, error)
}

// Options configures a Service.
type Options struct {
	// SDKKey derives the key entries are stored under in Store.
	SDKKey string
	Mode   PollingMode

	// PollInterval is the auto-poll period.
	PollInterval time.Duration
	// MaxInitWait bounds how long reads block before the first auto-poll
	// download. Negative disables the wait.
	MaxInitWait time.Duration
	// CacheTTL is how long a lazy-loaded entry is served before it is refreshed.
	CacheTTL time.Duration

	// Offline starts the service without network access.
	Offline bool

	Fetcher Fetcher
	// Store is optional.
	Store  cache.Store
	Logger *slog.Logger

	// OnConfigChanged runs after a new config JSON content is applied.
	OnConfigChanged func(cfg *model.Config)
	// OnError receives recovered fetch and cache failures.
	OnError func(err error)
}

// Service is the polling state machine. All methods are safe for concurrent use.
type Service struct {
	opts     Options
	cacheKey string
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes store reads and writes with entry replacement.
	mu         sync.Mutex
	lastStored string

	entry   atomic.Pointer[cache.Entry]
	flights singleflight.Group
	offline atomic.Bool
	closed  atomic.Bool
	wake    chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates the service. In auto-poll mode it starts the background loop
// immediately.
func New(opts Options) *Service {
	validation.AssertPresent(opts.Fetcher, "config fetcher")

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxInitWait == 0 {
		opts.MaxInitWait = defaultMaxInitWait
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		opts:     opts,
		cacheKey: cache.KeyFor(opts.SDKKey),
		logger:   logger.OrDefault(opts.Logger),
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
	s.entry.Store(cache.EmptyEntry)
	s.offline.Store(opts.Offline)

	if opts.Mode != AutoPoll {
		s.signalReady()
		return s
	}

	s.wg.Add(1)
	go s.poll()
	s.startInitTimer()
	return s
}

// Ready is closed once the first config is available, the initial wait
// expired or the service was closed.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Mode returns the polling mode.
func (s *Service) Mode() PollingMode {
	return s.opts.Mode
}

// Snapshot returns the in-memory entry without any I/O.
func (s *Service) Snapshot() *cache.Entry {
	return s.entry.Load()
}

// GetSettings returns the entry evaluations should use. It never fails; when
// nothing was downloaded yet the result is cache.EmptyEntry.
//
// Lazy mode refreshes synchronously once the entry is older than CacheTTL.
// Auto-poll mode waits for the initial download (bounded by MaxInitWait) and
// then serves the cached entry. Manual mode always serves the cached entry.
// A newer entry found in Store replaces the in-memory one in every mode.
func (s *Service) GetSettings(ctx context.Context) *cache.Entry {
	if s.closed.Load() {
		return s.entry.Load()
	}

	switch s.opts.Mode {
	case LazyLoad:
		return s.refreshIfOlder(ctx, time.Now().Add(-s.opts.CacheTTL), false)
	case AutoPoll:
		select {
		case <-s.ready:
		case <-ctx.Done():
		}
	}
	return s.refreshIfOlder(ctx, time.Time{}, true)
}

// Refresh downloads the config regardless of its age. Concurrent calls share
// one request.
func (s *Service) Refresh(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.offline.Load() {
		s.logger.Warn("client is in offline mode, it cannot initiate HTTP calls",
			slog.Int("event_id", EventOfflineRefresh),
		)
		return ErrOffline
	}

	s.mu.Lock()
	prev, current := s.syncFromStore(ctx)
	s.mu.Unlock()
	s.notifyIfChanged(prev, current)

	_, err := s.fetch(ctx)
	return err
}

// SetOffline stops network access. Store reads continue.
func (s *Service) SetOffline() {
	if s.offline.CompareAndSwap(false, true) {
		s.logger.Info("switched to offline mode")
	}
}

// SetOnline restores network access. In auto-poll mode a poll runs right away.
func (s *Service) SetOnline() {
	if s.closed.Load() {
		return
	}
	if s.offline.CompareAndSwap(true, false) {
		s.logger.Info("switched to online mode")
		if s.opts.Mode == AutoPoll {
			select {
			case s.wake <- struct{}{}:
			default:
			}
		}
	}
}

// IsOffline reports whether network access is disabled.
func (s *Service) IsOffline() bool {
	return s.offline.Load()
}

// Close stops the poll loop, aborts in-flight requests and releases waiters.
// It is idempotent.
func (s *Service) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.signalReady()
	s.wg.Wait()
}

// Name implements observability.Checker.
func (s *Service) Name() string {
	return "config"
}

// Check implements observability.Checker: healthy once a config is in memory.
func (s *Service) Check(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.entry.Load().IsEmpty() {
		return fmt.Errorf("config JSON is not available yet")
	}
	return nil
}

func (s *Service) poll() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.pollOnce()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce()
		case <-s.wake:
			s.pollOnce()
		}
	}
}

// pollOnce downloads unless Store already holds an entry fetched within the
// last half interval, which another process polling the same key wrote.
func (s *Service) pollOnce() {
	threshold := time.Now().Add(-s.opts.PollInterval / 2)
	entry := s.refreshIfOlder(s.ctx, threshold, false)

	if s.offline.Load() || (!entry.IsEmpty() && entry.FetchTime.After(threshold)) {
		s.signalReady()
	}
}

func (s *Service) startInitTimer() {
	if s.opts.MaxInitWait < 0 {
		s.signalReady()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.opts.MaxInitWait)
		defer timer.Stop()

		select {
		case <-timer.C:
			select {
			case <-s.ready:
			default:
				s.logger.Warn("max init wait expired before the config JSON was downloaded; serving cached or default values",
					slog.Int("event_id", EventInitWaitExpired),
					slog.Duration("max_init_wait", s.opts.MaxInitWait),
				)
				s.signalReady()
			}
		case <-s.ready:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Service) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// refreshIfOlder syncs from Store and downloads when the resulting entry was
// fetched before threshold. preferCache skips the download.
func (s *Service) refreshIfOlder(ctx context.Context, threshold time.Time, preferCache bool) *cache.Entry {
	s.mu.Lock()
	prev, current := s.syncFromStore(ctx)
	s.mu.Unlock()
	s.notifyIfChanged(prev, current)

	fresh := !current.IsEmpty() && current.FetchTime.After(threshold)
	if fresh || preferCache || s.offline.Load() || s.closed.Load() {
		return current
	}

	entry, _ := s.fetch(ctx)
	return entry
}

// fetch joins or starts the shared download. The download runs on the
// service context so one caller giving up does not abort it for the others.
func (s *Service) fetch(ctx context.Context) (*cache.Entry, error) {
	ch := s.flights.DoChan(flightKey, func() (any, error) {
		return s.fetchShared()
	})

	select {
	case res := <-ch:
		return res.Val.(*cache.Entry), res.Err
	case <-ctx.Done():
		return s.entry.Load(), ctx.Err()
	}
}

func (s *Service) fetchShared() (*cache.Entry, error) {
	prev := s.entry.Load()
	if s.closed.Load() {
		return prev, ErrClosed
	}
	if s.offline.Load() {
		return prev, ErrOffline
	}

	resp, err := s.opts.Fetcher.Fetch(s.ctx, prev.ETag)
	if err != nil {
		s.reportError(err)
		return prev, err
	}

	s.mu.Lock()
	current := s.entry.Load()
	var next *cache.Entry
	switch resp.Status {
	case fetcher.NotModified:
		if current.IsEmpty() {
			s.mu.Unlock()
			return current, nil
		}
		next = current.WithFetchTime(time.Now())
	default:
		next = resp.Entry
	}
	s.setEntry(next)
	s.writeToStore(next)
	s.mu.Unlock()

	s.notifyIfChanged(current, next)
	s.signalReady()
	return next, nil
}

// syncFromStore adopts the Store entry when it is newer than the in-memory
// one. Callers hold mu.
func (s *Service) syncFromStore(ctx context.Context) (prev, current *cache.Entry) {
	current = s.entry.Load()
	prev = current
	if s.opts.Store == nil {
		return prev, current
	}

	raw, err := s.opts.Store.Get(ctx, s.cacheKey)
	if err != nil {
		s.logger.Error("error occurred while reading the cache",
			slog.Int("event_id", EventCacheReadFailed),
			slog.String("error", err.Error()),
		)
		s.reportError(err)
		return prev, current
	}
	if raw == "" || raw == s.lastStored {
		return prev, current
	}

	parsed, err := cache.ParseEntry(raw)
	if err != nil {
		s.logger.Error("error occurred while reading the cache; the cached config JSON is corrupted",
			slog.Int("event_id", EventCacheReadFailed),
			slog.String("error", err.Error()),
		)
		s.reportError(err)
		return prev, current
	}
	s.lastStored = raw

	if parsed.FetchTime.After(current.FetchTime) {
		s.setEntry(parsed)
		current = parsed
	}
	return prev, current
}

// writeToStore persists e. Callers hold mu. Entries without an ETag cannot
// be parsed back and are kept in memory only.
func (s *Service) writeToStore(e *cache.Entry) {
	if s.opts.Store == nil || e.IsEmpty() {
		return
	}
	if e.ETag == "" {
		s.logger.Debug("config JSON served without ETag is not written to the cache")
		return
	}

	raw := e.Serialize()
	if err := s.opts.Store.Set(s.ctx, s.cacheKey, raw); err != nil {
		s.logger.Error("error occurred while writing the cache",
			slog.Int("event_id", EventCacheWriteFailed),
			slog.String("error", err.Error()),
		)
		s.reportError(err)
		return
	}
	s.lastStored = raw
}

func (s *Service) setEntry(e *cache.Entry) {
	s.entry.Store(e)
	observability.ConfigFetchTimestamp.Set(float64(e.FetchTime.UnixMilli()) / 1000)
}

func (s *Service) notifyIfChanged(prev, next *cache.Entry) {
	if next.IsEmpty() || prev == next {
		return
	}
	if !prev.IsEmpty() && prev.Fingerprint() == next.Fingerprint() {
		return
	}

	observability.ConfigChangesTotal.Inc()
	s.logger.Debug("config JSON changed", slog.String("etag", next.ETag))
	if s.opts.OnConfigChanged != nil {
		s.opts.OnConfigChanged(next.Config)
	}
}

func (s *Service) reportError(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
