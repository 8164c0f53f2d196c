package holder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"classd/internal/classifier"
	"classd/internal/registry"
	"classd/pkg/types"
)

// fakeModel is a RuntimeModel stub that tracks Close calls.
type fakeModel struct {
	id     string
	scheme types.LabelScheme
	closed atomic.Bool
}

func (f *fakeModel) ID() string                { return f.id }
func (f *fakeModel) Scheme() types.LabelScheme { return f.scheme }
func (f *fakeModel) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeModel) Predict(ctx context.Context, text string) (classifier.Prediction, error) {
	if f.closed.Load() {
		return classifier.Prediction{}, errors.New("predict on closed model " + f.id)
	}
	scores := make([]float64, len(f.scheme.Labels))
	if len(scores) > 0 {
		scores[0] = 1
	}
	return classifier.Prediction{Scores: scores}, nil
}

// fakeLoader counts loads per id and can inject delays and failures.
type fakeLoader struct {
	mu     sync.Mutex
	loads  map[string]int
	delay  time.Duration
	failID string
	models map[string]*fakeModel
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{loads: make(map[string]int), models: make(map[string]*fakeModel)}
}

func (l *fakeLoader) Load(ctx context.Context, d types.ModelDescriptor) (classifier.RuntimeModel, error) {
	l.mu.Lock()
	l.loads[d.ID]++
	delay := l.delay
	fail := l.failID == d.ID
	l.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("artifact corrupt: " + d.ID)
	}
	m := &fakeModel{id: d.ID, scheme: d.Scheme}
	l.mu.Lock()
	l.models[d.ID] = m
	l.mu.Unlock()
	return m, nil
}

func (l *fakeLoader) loadCount(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[id]
}

func (l *fakeLoader) model(id string) *fakeModel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.models[id]
}

func testRegistry(t *testing.T, ids ...string) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, id := range ids {
		err := r.Register(types.ModelDescriptor{
			ID:       id,
			Backend:  types.BackendLinearPipeline,
			Artifact: "/tmp/" + id + ".bundle.json",
			Scheme:   types.LabelScheme{Kind: types.SchemeSingleLabel, Labels: []string{"A", "B"}},
		})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return r
}

func newTestHolder(t *testing.T, reg *registry.Registry, loader ModelLoader, cacheSize int) *Holder {
	t.Helper()
	return New(Config{
		Registry:  reg,
		Loader:    loader,
		Logger:    zerolog.Nop(),
		CacheSize: cacheSize,
	})
}

func TestAcquireWithoutActiveModel(t *testing.T) {
	h := newTestHolder(t, testRegistry(t), newFakeLoader(), 2)
	if h.Ready() {
		t.Fatalf("holder must not be ready before first switch")
	}
	_, _, err := h.Acquire()
	if err == nil || !IsNoActiveModel(err) {
		t.Fatalf("expected no-active-model error, got %v", err)
	}
}

func TestSwitchActivates(t *testing.T) {
	reg := testRegistry(t, "a")
	h := newTestHolder(t, reg, newFakeLoader(), 2)
	res, err := h.Switch(context.Background(), "a")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if res.Previous != "" || res.Current != "a" {
		t.Fatalf("unexpected transition %q -> %q", res.Previous, res.Current)
	}
	if res.OpID == "" {
		t.Fatalf("expected an operation id")
	}
	if !h.Ready() || h.ActiveID() != "a" {
		t.Fatalf("expected active model a")
	}
	if st := reg.StateOf("a"); st != registry.StateActive {
		t.Fatalf("expected active state, got %q", st)
	}
}

func TestSwitchUnknownIDLeavesActiveUnchanged(t *testing.T) {
	reg := testRegistry(t, "a")
	h := newTestHolder(t, reg, newFakeLoader(), 2)
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	_, err := h.Switch(context.Background(), "missing")
	if err == nil || !registry.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if h.ActiveID() != "a" {
		t.Fatalf("active model must be unchanged, got %q", h.ActiveID())
	}
}

func TestSwitchIsIdempotentForActiveID(t *testing.T) {
	loader := newFakeLoader()
	h := newTestHolder(t, testRegistry(t, "a"), loader, 2)
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	res, err := h.Switch(context.Background(), "a")
	if err != nil {
		t.Fatalf("repeat switch: %v", err)
	}
	if res.Previous != "a" || res.Current != "a" {
		t.Fatalf("expected noop transition, got %q -> %q", res.Previous, res.Current)
	}
	if loader.loadCount("a") != 1 {
		t.Fatalf("active id must not be reloaded, loads=%d", loader.loadCount("a"))
	}
}

func TestSwitchCacheHitSkipsArtifactRead(t *testing.T) {
	loader := newFakeLoader()
	h := newTestHolder(t, testRegistry(t, "a", "b"), loader, 2)
	for _, id := range []string{"a", "b"} {
		if _, err := h.Switch(context.Background(), id); err != nil {
			t.Fatalf("switch %s: %v", id, err)
		}
	}
	// a is still warm; switching back must not hit the loader again.
	res, err := h.Switch(context.Background(), "a")
	if err != nil {
		t.Fatalf("switch back: %v", err)
	}
	if res.Previous != "b" || res.Current != "a" {
		t.Fatalf("unexpected transition %q -> %q", res.Previous, res.Current)
	}
	if loader.loadCount("a") != 1 {
		t.Fatalf("warm switch must not reload, loads=%d", loader.loadCount("a"))
	}
}

func TestSwitchLoadFailureKeepsPreviousModel(t *testing.T) {
	loader := newFakeLoader()
	loader.failID = "b"
	reg := testRegistry(t, "a", "b")
	h := newTestHolder(t, reg, loader, 2)
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if _, err := h.Switch(context.Background(), "b"); err == nil {
		t.Fatalf("expected load failure")
	}
	if h.ActiveID() != "a" {
		t.Fatalf("previous model must keep serving, got %q", h.ActiveID())
	}
	if st := reg.StateOf("b"); st != registry.StateLoadFailed {
		t.Fatalf("expected load_failed, got %q", st)
	}
}

func TestSwitchTimeoutKeepsPreviousModel(t *testing.T) {
	loader := newFakeLoader()
	h := New(Config{
		Registry:      testRegistry(t, "a", "b"),
		Loader:        loader,
		Logger:        zerolog.Nop(),
		CacheSize:     2,
		SwitchTimeout: 20 * time.Millisecond,
	})
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	loader.mu.Lock()
	loader.delay = 500 * time.Millisecond
	loader.mu.Unlock()
	_, err := h.Switch(context.Background(), "b")
	if err == nil || !IsSwitchTimeout(err) {
		t.Fatalf("expected switch timeout, got %v", err)
	}
	if h.ActiveID() != "a" {
		t.Fatalf("previous model must keep serving, got %q", h.ActiveID())
	}
}

func TestEvictionClosesLRU(t *testing.T) {
	loader := newFakeLoader()
	reg := testRegistry(t, "a", "b", "c")
	h := newTestHolder(t, reg, loader, 2)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := h.Switch(context.Background(), id); err != nil {
			t.Fatalf("switch %s: %v", id, err)
		}
	}
	cached := h.CachedIDs()
	if len(cached) != 2 || cached[0] != "b" || cached[1] != "c" {
		t.Fatalf("expected cache {b,c}, got %v", cached)
	}
	if !loader.model("a").closed.Load() {
		t.Fatalf("evicted model a must be closed")
	}
	if st := reg.StateOf("a"); st != registry.StateEvicted {
		t.Fatalf("expected evicted state for a, got %q", st)
	}
}

func TestEvictionDeferredWhilePinned(t *testing.T) {
	loader := newFakeLoader()
	h := newTestHolder(t, testRegistry(t, "a", "b", "c"), loader, 2)
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch a: %v", err)
	}
	// Capture a as an in-flight request would.
	m, release, err := h.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if m.ID() != "a" {
		t.Fatalf("expected a, got %s", m.ID())
	}
	for _, id := range []string{"b", "c"} {
		if _, err := h.Switch(context.Background(), id); err != nil {
			t.Fatalf("switch %s: %v", id, err)
		}
	}
	// a has been evicted from the cache but is still pinned.
	if loader.model("a").closed.Load() {
		t.Fatalf("pinned model must not be closed by eviction")
	}
	if _, err := m.Predict(context.Background(), "still serving"); err != nil {
		t.Fatalf("captured reference must stay usable: %v", err)
	}
	release()
	if !loader.model("a").closed.Load() {
		t.Fatalf("last release must close the evicted model")
	}
}

func TestListModelsExactlyOneActive(t *testing.T) {
	h := newTestHolder(t, testRegistry(t, "a", "b", "c"), newFakeLoader(), 2)
	if _, err := h.Switch(context.Background(), "b"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	models := h.ListModels()
	if len(models) != 3 {
		t.Fatalf("expected one entry per registered id, got %d", len(models))
	}
	active := 0
	for _, m := range models {
		if m.Active {
			active++
			if m.ID != "b" {
				t.Fatalf("wrong active id %s", m.ID)
			}
			if !m.Loaded {
				t.Fatalf("active model must be loaded")
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active entry, got %d", active)
	}
}

func TestSwitchPublishesEvents(t *testing.T) {
	pub := NewMemoryPublisher()
	h := New(Config{
		Registry:  testRegistry(t, "a"),
		Loader:    newFakeLoader(),
		Logger:    zerolog.Nop(),
		Publisher: pub,
	})
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	var names []string
	for _, e := range pub.Events() {
		names = append(names, e.Name)
	}
	want := []string{"switch_start", "load_done", "switch_done"}
	if len(names) != len(want) {
		t.Fatalf("unexpected events %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected events %v, want %v", names, want)
		}
	}
}

func TestConcurrentPredictsDuringSwitch(t *testing.T) {
	loader := newFakeLoader()
	h := newTestHolder(t, testRegistry(t, "a", "b"), loader, 2)
	if _, err := h.Switch(context.Background(), "a"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				m, release, err := h.Acquire()
				if err != nil {
					errCh <- err
					return
				}
				// The captured reference must stay valid across a
				// concurrent switch and eviction.
				if _, err := m.Predict(context.Background(), "x"); err != nil {
					errCh <- err
					release()
					return
				}
				release()
			}
		}()
	}

	for i := 0; i < 20; i++ {
		id := "a"
		if i%2 == 0 {
			id = "b"
		}
		if _, err := h.Switch(context.Background(), id); err != nil {
			t.Fatalf("switch %s: %v", id, err)
		}
	}
	close(stop)
	wg.Wait()
	select {
	case err := <-errCh:
		t.Fatalf("concurrent predict failed: %v", err)
	default:
	}
}
