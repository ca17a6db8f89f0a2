package catalogsync

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/internal/store"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// State is the synchronizer's position in its run cycle.
type State string

// Run cycle states.
const (
	StateIdle            State = "idle"
	StateFetchingIndex   State = "fetching-index"
	StateProcessingPages State = "processing-pages"
)

// Cursor is the persisted synchronization progress.
type Cursor struct {
	Timestamp  utc.Time `json:"timestamp"`
	KnownNames []string `json:"knownNames"`
}

// RunResult summarizes one synchronization run.
type RunResult struct {
	Skipped      bool          `json:"skipped,omitempty"`
	Pages        int           `json:"pages"`
	FailedPages  int           `json:"failedPages"`
	Events       int           `json:"events"`
	Added        int           `json:"added"`
	CursorBefore time.Time     `json:"cursorBefore"`
	CursorAfter  time.Time     `json:"cursorAfter"`
	Duration     time.Duration `json:"duration"`
}

// Status is a point-in-time view for health reporting.
type Status struct {
	State      State      `json:"state"`
	Cursor     time.Time  `json:"cursor"`
	KnownNames int        `json:"knownNames"`
	LastRunAt  time.Time  `json:"lastRunAt,omitzero"`
	LastRun    *RunResult `json:"lastRun,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

// Config configures a Synchronizer.
type Config struct {
	Interval time.Duration
	Lookback time.Duration
	Logger   *zerolog.Logger

	// Observer is called after every run, including skipped ones.
	Observer func(RunResult, error)
}

// Synchronizer crawls a Feed into an Index.
type Synchronizer struct {
	feed  Feed
	store store.Store
	index *Index
	cfg   Config

	running atomic.Bool
	loops   sync.WaitGroup

	mu        sync.RWMutex
	state     State
	cursor    time.Time
	lastRun   *RunResult
	lastRunAt time.Time
	lastErr   error
}

// New creates a synchronizer. Call Load before the first Run.
func New(feed Feed, st store.Store, idx *Index, cfg Config) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.SyncInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = constants.SyncLookback
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if idx == nil {
		idx = NewIndex()
	}
	return &Synchronizer{feed: feed, store: st, index: idx, cfg: cfg, state: StateIdle}
}

// Index returns the name index being maintained.
func (s *Synchronizer) Index() *Index {
	return s.index
}

func (s *Synchronizer) storeKey() string {
	return "catalog/" + s.feed.Name()
}

// Load restores the persisted cursor and names, or starts the cursor at
// the configured look-back window when nothing was persisted.
func (s *Synchronizer) Load(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, s.storeKey())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.cursor = utc.Now().Time.Add(-s.cfg.Lookback)
		s.cfg.Logger.Info().Str("feed", s.feed.Name()).Time("cursor", s.cursor).Msg("No persisted cursor, starting from look-back window")
		return nil
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return errors.WrapParse("json", s.storeKey(), err)
	}
	s.cursor = c.Timestamp.Time
	s.index.Add(c.KnownNames...)
	s.cfg.Logger.Info().Str("feed", s.feed.Name()).Time("cursor", s.cursor).Int("names", len(c.KnownNames)).Msg("Restored catalog cursor")
	return nil
}

func (s *Synchronizer) save(ctx context.Context, cursor time.Time) error {
	raw, err := json.Marshal(Cursor{Timestamp: utc.Time{Time: cursor}, KnownNames: s.index.Names()})
	if err != nil {
		return err
	}
	return s.store.Put(ctx, s.storeKey(), raw)
}

func (s *Synchronizer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Cursor returns the current cursor.
func (s *Synchronizer) Cursor() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Status reports state, cursor, and the last run.
func (s *Synchronizer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		State:      s.state,
		Cursor:     s.cursor,
		KnownNames: s.index.Len(),
		LastRunAt:  s.lastRunAt,
		LastRun:    s.lastRun,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// run accumulates page outcomes. ceiling is the earliest span start of any
// failed page; the cursor may not pass it.
type run struct {
	cursor     time.Time
	maxSeen    time.Time
	ceiling    time.Time
	hasCeiling bool
	result     RunResult
}

func (r *run) fail(spanStart time.Time) {
	r.result.FailedPages++
	if !r.hasCeiling || spanStart.Before(r.ceiling) {
		r.ceiling = spanStart
		r.hasCeiling = true
	}
}

func (r *run) observe(t time.Time) {
	if t.After(r.maxSeen) {
		r.maxSeen = t
	}
}

func (r *run) next() time.Time {
	c := r.maxSeen
	if r.hasCeiling && r.ceiling.Before(c) {
		c = r.ceiling
	}
	if c.Before(r.cursor) {
		c = r.cursor
	}
	return c
}

// Run performs one synchronization. If another run is active it returns
// immediately with Skipped set and ErrRunInProgress; the skipped run is not
// queued.
func (s *Synchronizer) Run(ctx context.Context) (RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		res := RunResult{Skipped: true}
		s.cfg.Logger.Info().Str("feed", s.feed.Name()).Msg("Synchronization already running, skipping trigger")
		s.notify(res, errors.ErrRunInProgress)
		return res, errors.ErrRunInProgress
	}
	defer s.running.Store(false)

	res, err := s.run(ctx)

	s.mu.Lock()
	s.state = StateIdle
	s.lastRun = &res
	s.lastRunAt = utc.Now().Time
	s.lastErr = err
	s.mu.Unlock()

	s.notify(res, err)
	return res, err
}

func (s *Synchronizer) notify(res RunResult, err error) {
	if s.cfg.Observer != nil {
		s.cfg.Observer(res, err)
	}
}

func (s *Synchronizer) run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	log := s.cfg.Logger.With().Str("feed", s.feed.Name()).Logger()

	r := &run{cursor: s.Cursor()}
	r.maxSeen = r.cursor
	r.result.CursorBefore = r.cursor

	s.setState(StateFetchingIndex)
	refs, err := s.feed.Index(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Catalog index fetch failed")
		r.result.CursorAfter = r.cursor
		r.result.Duration = time.Since(start)
		return r.result, errors.NewSyncError(s.feed.Name(), "", err)
	}

	s.setState(StateProcessingPages)
	s.processPages(ctx, refs, r.cursor, r, &log)

	next := r.next()
	r.result.CursorAfter = next
	r.result.Duration = time.Since(start)

	if next.After(r.cursor) || r.result.Added > 0 {
		// persisting must not be undone by a canceled trigger context
		if err := s.save(context.WithoutCancel(ctx), next); err != nil {
			log.Error().Err(err).Msg("Persisting catalog cursor failed")
			return r.result, err
		}
		s.mu.Lock()
		s.cursor = next
		s.mu.Unlock()
	}

	log.Info().
		Int("pages", r.result.Pages).
		Int("failed_pages", r.result.FailedPages).
		Int("events", r.result.Events).
		Int("added", r.result.Added).
		Time("cursor", next).
		Dur("duration", r.result.Duration).
		Msg("Catalog synchronization finished")
	return r.result, nil
}

// processPages walks refs in commit order. spanStart is the exclusive lower
// bound of the first page's commits; each later page's span starts at its
// predecessor's commit time.
func (s *Synchronizer) processPages(ctx context.Context, refs []PageRef, spanStart time.Time, r *run, log *zerolog.Logger) {
	refs = slices.Clone(refs)
	slices.SortStableFunc(refs, func(a, b PageRef) int { return a.CommitTime.Compare(b.CommitTime) })

	prev := spanStart
	for _, ref := range refs {
		start := prev
		if ref.CommitTime.After(prev) {
			prev = ref.CommitTime
		}
		if !ref.CommitTime.After(r.cursor) {
			continue
		}
		if ctx.Err() != nil {
			r.fail(start)
			continue
		}

		page, err := s.feed.Page(ctx, ref)
		if err != nil {
			log.Warn().Err(err).Str("page", ref.URL).Msg("Catalog page failed, will retry next run")
			r.fail(start)
			continue
		}
		r.result.Pages++

		if len(page.SubPages) > 0 {
			s.processPages(ctx, page.SubPages, start, r, log)
		}

		var names []string
		for _, ev := range page.Events {
			if ev.Kind != Detail || !ev.CommitTime.After(r.cursor) {
				continue
			}
			r.result.Events++
			names = append(names, ev.ID)
			r.observe(ev.CommitTime)
		}
		r.result.Added += s.index.Add(names...)
		r.observe(ref.CommitTime)
	}
}

// Start runs one synchronization immediately and then on every interval
// until ctx is done. ctx must be the process lifetime, never a request
// context. Wait blocks until the loop has exited.
func (s *Synchronizer) Start(ctx context.Context) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.runLogged(ctx)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runLogged(ctx)
			}
		}
	}()
}

// Wait blocks until every loop started by Start has returned, including a
// run that was in flight when its context ended and its cursor save.
func (s *Synchronizer) Wait() {
	s.loops.Wait()
}

func (s *Synchronizer) runLogged(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil && !errors.Is(err, errors.ErrRunInProgress) {
		s.cfg.Logger.Error().Err(err).Str("feed", s.feed.Name()).Msg("Catalog synchronization failed")
	}
}
