// Package holder owns the currently-serving model reference and a small warm
// cache of recently used models. Predictions capture the active reference
// exactly once; switches load outside any lock and only the pointer
// replacement plus cache bookkeeping run in the critical section.
package holder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"classd/internal/classifier"
	"classd/internal/registry"
	"classd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultCacheSize     = 2
	defaultSwitchTimeout = 30 * time.Second
)

// ModelLoader resolves a descriptor into a RuntimeModel.
// *classifier.Loader is the production implementation.
type ModelLoader interface {
	Load(ctx context.Context, d types.ModelDescriptor) (classifier.RuntimeModel, error)
}

// Config encapsulates all tunables for Holder construction.
type Config struct {
	Registry      *registry.Registry
	Loader        ModelLoader
	Logger        zerolog.Logger
	Publisher     EventPublisher
	CacheSize     int
	SwitchTimeout time.Duration
}

// Holder performs atomic swaps of the active model.
type Holder struct {
	log           zerolog.Logger
	reg           *registry.Registry
	loader        ModelLoader
	pub           EventPublisher
	cacheSize     int
	switchTimeout time.Duration

	mu     sync.Mutex
	active *cacheEntry
	cache  map[string]*cacheEntry
}

// cacheEntry tracks one resident RuntimeModel. pins counts in-flight requests
// that captured the model; an evicted entry is closed by the last unpin.
type cacheEntry struct {
	model    classifier.RuntimeModel
	lastUsed time.Time
	pins     int
	evicted  bool
	closed   bool
}

func New(cfg Config) *Holder {
	h := &Holder{
		log:           cfg.Logger,
		reg:           cfg.Registry,
		loader:        cfg.Loader,
		pub:           cfg.Publisher,
		cacheSize:     cfg.CacheSize,
		switchTimeout: cfg.SwitchTimeout,
		cache:         make(map[string]*cacheEntry),
	}
	if h.pub == nil {
		h.pub = noopPublisher{}
	}
	if h.cacheSize <= 0 {
		h.cacheSize = defaultCacheSize
	}
	if h.switchTimeout <= 0 {
		h.switchTimeout = defaultSwitchTimeout
	}
	return h
}

// Acquire captures the active model once and pins it for the duration of a
// request. The returned release func must be called when the request ends;
// it may close the model if it was evicted in the meantime.
func (h *Holder) Acquire() (classifier.RuntimeModel, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.active
	if e == nil {
		return nil, nil, ErrNoActiveModel()
	}
	e.pins++
	e.lastUsed = time.Now()
	return e.model, func() { h.release(e) }, nil
}

func (h *Holder) release(e *cacheEntry) {
	h.mu.Lock()
	e.pins--
	shouldClose := e.evicted && e.pins == 0 && !e.closed
	if shouldClose {
		e.closed = true
	}
	h.mu.Unlock()
	if shouldClose {
		if err := e.model.Close(); err != nil {
			h.log.Warn().Err(err).Str("model", e.model.ID()).Msg("close evicted model")
		}
	}
}

// Ready reports whether a model is serving traffic.
func (h *Holder) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active != nil
}

// ActiveID returns the id of the serving model, or "".
func (h *Holder) ActiveID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return ""
	}
	return h.active.model.ID()
}

// ActiveScheme returns the label scheme of the serving model.
func (h *Holder) ActiveScheme() (types.LabelScheme, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return types.LabelScheme{}, false
	}
	return h.active.model.Scheme(), true
}

// CachedIDs returns the ids resident in the warm cache, sorted.
func (h *Holder) CachedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.cache))
	for id := range h.cache {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ListModels returns all registered descriptors annotated with cache and
// active flags.
func (h *Holder) ListModels() []types.ModelStatus {
	descs := h.reg.Descriptors()
	h.mu.Lock()
	activeID := ""
	if h.active != nil {
		activeID = h.active.model.ID()
	}
	cached := make(map[string]bool, len(h.cache))
	for id := range h.cache {
		cached[id] = true
	}
	h.mu.Unlock()

	out := make([]types.ModelStatus, 0, len(descs))
	for _, d := range descs {
		out = append(out, types.ModelStatus{
			ID:      d.ID,
			Name:    d.Name,
			Backend: d.Backend,
			Scheme:  d.Scheme,
			State:   string(h.reg.StateOf(d.ID)),
			Loaded:  cached[d.ID],
			Active:  d.ID == activeID,
		})
	}
	return out
}

// SwitchResult reports the outcome of a completed switch. OpID correlates
// the call with its switch events and log lines.
type SwitchResult struct {
	Previous string
	Current  string
	OpID     string
}

// Switch makes the model with the given id active. The target is resolved
// cache-or-load; the artifact load runs outside the critical section and is
// bounded by the configured timeout. On any failure the previously active
// model keeps serving. Switching to the already-active id is a no-op.
func (h *Holder) Switch(ctx context.Context, id string) (SwitchResult, error) {
	desc, err := h.reg.Get(id)
	if err != nil {
		switchesTotal.WithLabelValues("not_found").Inc()
		return SwitchResult{}, err
	}
	opID := uuid.NewString()

	// Fast path: already active, or warm in the cache.
	h.mu.Lock()
	if h.active != nil && h.active.model.ID() == id {
		h.active.lastUsed = time.Now()
		h.mu.Unlock()
		switchesTotal.WithLabelValues("noop").Inc()
		return SwitchResult{Previous: id, Current: id, OpID: opID}, nil
	}
	if e, ok := h.cache[id]; ok {
		previous := h.promoteLocked(e)
		h.mu.Unlock()
		h.finishSwitch(opID, previous, id, true)
		return SwitchResult{Previous: previous, Current: id, OpID: opID}, nil
	}
	h.mu.Unlock()

	// Slow path: load the artifact before touching any shared state.
	h.pub.Publish(Event{Name: "switch_start", ModelID: id, OpID: opID})
	h.reg.SetState(id, registry.StateLoading)

	model, err := h.loadBounded(ctx, desc, opID)
	if err != nil {
		if IsSwitchTimeout(err) {
			h.reg.SetState(id, registry.StateRegistered)
			switchesTotal.WithLabelValues("timeout").Inc()
		} else {
			h.reg.SetState(id, registry.StateLoadFailed)
			switchesTotal.WithLabelValues("load_failed").Inc()
		}
		h.pub.Publish(Event{Name: "switch_failed", ModelID: id, OpID: opID, Fields: map[string]any{"error": err.Error()}})
		return SwitchResult{}, err
	}

	h.mu.Lock()
	if e, ok := h.cache[id]; ok {
		// Lost a race with a concurrent switch to the same id; keep the
		// resident instance and discard the duplicate load.
		previous := h.promoteLocked(e)
		h.mu.Unlock()
		_ = model.Close()
		h.finishSwitch(opID, previous, id, true)
		return SwitchResult{Previous: previous, Current: id, OpID: opID}, nil
	}
	e := &cacheEntry{model: model, lastUsed: time.Now()}
	h.cache[id] = e
	previous := h.promoteLocked(e)
	victims := h.evictLocked()
	cachedModels.Set(float64(len(h.cache)))
	h.mu.Unlock()

	for _, v := range victims {
		h.closeVictim(v, opID)
	}
	h.finishSwitch(opID, previous, id, false)
	return SwitchResult{Previous: previous, Current: id, OpID: opID}, nil
}

// loadBounded runs the loader with the switch timeout. A load that finishes
// after the timeout is closed by the drain goroutine.
func (h *Holder) loadBounded(ctx context.Context, desc types.ModelDescriptor, opID string) (classifier.RuntimeModel, error) {
	loadCtx, cancel := context.WithTimeout(ctx, h.switchTimeout)
	defer cancel()

	type result struct {
		model classifier.RuntimeModel
		err   error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		m, err := h.loader.Load(loadCtx, desc)
		ch <- result{model: m, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		elapsed := time.Since(start)
		loadDuration.Observe(elapsed.Seconds())
		h.pub.Publish(Event{Name: "load_done", ModelID: desc.ID, OpID: opID, Fields: map[string]any{"duration_ms": elapsed.Milliseconds()}})
		return r.model, nil
	case <-loadCtx.Done():
		go func() {
			if r := <-ch; r.model != nil {
				_ = r.model.Close()
			}
		}()
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrSwitchTimeout(desc.ID, h.switchTimeout)
		}
		return nil, ctx.Err()
	}
}

// promoteLocked replaces the active handle with e and updates registry
// states. Caller holds h.mu. Returns the previously active id.
func (h *Holder) promoteLocked(e *cacheEntry) (previous string) {
	if h.active != nil && h.active != e {
		previous = h.active.model.ID()
		h.reg.SetState(previous, registry.StateLoaded)
	}
	h.active = e
	e.lastUsed = time.Now()
	h.reg.SetState(e.model.ID(), registry.StateActive)
	return previous
}

// evictLocked trims the cache to size, oldest first, never touching the
// active entry. Pinned victims are only marked; the last unpin closes them.
// Caller holds h.mu.
func (h *Holder) evictLocked() []*cacheEntry {
	var victims []*cacheEntry
	for len(h.cache) > h.cacheSize {
		var lruID string
		var lru *cacheEntry
		for id, e := range h.cache {
			if e == h.active {
				continue
			}
			if lru == nil || e.lastUsed.Before(lru.lastUsed) {
				lruID, lru = id, e
			}
		}
		if lru == nil {
			break
		}
		delete(h.cache, lruID)
		lru.evicted = true
		h.reg.SetState(lruID, registry.StateEvicted)
		evictionsTotal.Inc()
		victims = append(victims, lru)
	}
	return victims
}

// closeVictim closes an evicted entry unless in-flight requests still pin it.
func (h *Holder) closeVictim(e *cacheEntry, opID string) {
	h.mu.Lock()
	pinned := e.pins > 0
	shouldClose := !pinned && !e.closed
	if shouldClose {
		e.closed = true
	}
	h.mu.Unlock()
	id := e.model.ID()
	h.pub.Publish(Event{Name: "evict", ModelID: id, OpID: opID, Fields: map[string]any{"pinned": pinned}})
	if !shouldClose {
		// A pinned victim is closed by its last release.
		return
	}
	if err := e.model.Close(); err != nil {
		h.log.Warn().Err(err).Str("model", id).Msg("close evicted model")
	}
}

func (h *Holder) finishSwitch(opID, previous, current string, cacheHit bool) {
	switchesTotal.WithLabelValues("ok").Inc()
	h.log.Info().Str("op_id", opID).Str("previous", previous).Str("model", current).Bool("cache_hit", cacheHit).Msg("model switch complete")
	h.pub.Publish(Event{Name: "switch_done", ModelID: current, OpID: opID, Fields: map[string]any{
		"previous":  previous,
		"cache_hit": cacheHit,
	}})
}
