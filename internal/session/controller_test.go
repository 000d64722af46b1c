package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/punchclock/internal/clock"
	"github.com/sadopc/punchclock/internal/store"
)

var ctx = context.Background()

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// ============================================================
// Fakes
// ============================================================

type fixedLocation struct {
	loc store.Location
	err error
}

func (f fixedLocation) CurrentLocation(context.Context) (store.Location, error) {
	return f.loc, f.err
}

type fakeAuth struct {
	available bool
	ok        bool
	err       error
	calls     int
	prompt    string
}

func (f *fakeAuth) Available(context.Context) bool { return f.available }

func (f *fakeAuth) Authenticate(_ context.Context, prompt string) (bool, error) {
	f.calls++
	f.prompt = prompt
	return f.ok, f.err
}

type recordingNotifier struct {
	pushes []time.Duration
}

func (n *recordingNotifier) Push(d time.Duration) { n.pushes = append(n.pushes, d) }

type fakePhoto struct {
	content []byte
	err     error
}

func (f fakePhoto) Capture(context.Context) ([]byte, error) { return f.content, f.err }

// flakyStore wraps a real store so tests can inject failures and count writes.
type flakyStore struct {
	*store.Store
	upsertErr  error
	getOpenErr error
	upserts    int
}

func (f *flakyStore) UpsertPeriod(ctx context.Context, p *store.TrackedPeriod) error {
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.Store.UpsertPeriod(ctx, p)
}

func (f *flakyStore) GetOpenPeriod(ctx context.Context, userID int64) (*store.TrackedPeriod, error) {
	if f.getOpenErr != nil {
		return nil, f.getOpenErr
	}
	return f.Store.GetOpenPeriod(ctx, userID)
}

type harness struct {
	clk      *clock.Manual
	store    *flakyStore
	userID   int64
	notifier *recordingNotifier
	events   []Event
	ctrl     *Controller
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	u, err := s.EnsureUser(ctx, "ana")
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		clk:      clock.NewManual(t0),
		store:    &flakyStore{Store: s},
		userID:   u.ID,
		notifier: &recordingNotifier{},
	}
	cfg := Config{
		UserID:   u.ID,
		Store:    h.store,
		Location: fixedLocation{loc: store.Location{Latitude: 10, Longitude: 20}},
		Notifier: h.notifier,
		Clock:    h.clk,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.ctrl = New(cfg)
	h.ctrl.Subscribe(func(ev Event) { h.events = append(h.events, ev) })
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) openPeriod(t *testing.T) *store.TrackedPeriod {
	t.Helper()
	p, err := h.store.Store.GetOpenPeriod(ctx, h.userID)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (h *harness) kinds() []EventKind {
	var out []EventKind
	for _, ev := range h.events {
		if ev.Kind != EventTick {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// ============================================================
// Start / stop lifecycle
// ============================================================

func TestStartTickNotifyStop(t *testing.T) {
	h := newHarness(t, nil)

	p, err := h.ctrl.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.ID == 0 || !p.Start.Equal(t0) || p.End != nil {
		t.Fatalf("unexpected started period %+v", p)
	}
	if h.ctrl.State() != StateRunning {
		t.Fatalf("expected running, got %v", h.ctrl.State())
	}

	open := h.openPeriod(t)
	if open == nil || open.ID != p.ID || !open.Start.Equal(t0) || open.End != nil {
		t.Fatalf("store does not hold the open period: %+v", open)
	}
	if open.Location != (store.Location{Latitude: 10, Longitude: 20}) {
		t.Fatalf("unexpected location %+v", open.Location)
	}

	h.clk.Advance(65 * time.Second)

	if len(h.notifier.pushes) != 1 {
		t.Fatalf("expected one notification, got %v", h.notifier.pushes)
	}
	if h.notifier.pushes[0] != 60*time.Second {
		t.Fatalf("expected notification of 60s, got %v", h.notifier.pushes[0])
	}
	if got := h.ctrl.Elapsed(); got != 65*time.Second {
		t.Fatalf("expected elapsed 65s, got %v", got)
	}

	stopped, err := h.ctrl.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := t0.Add(65 * time.Second)
	if stopped == nil || stopped.End == nil || !stopped.End.Equal(want) {
		t.Fatalf("expected end %v, got %+v", want, stopped)
	}
	if h.openPeriod(t) != nil {
		t.Fatal("expected no open period after stop")
	}
	got, err := h.store.GetPeriod(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.End == nil || !got.End.Equal(want) {
		t.Fatalf("stored end %v, want %v", got.End, want)
	}

	if h.ctrl.State() != StateIdle || h.ctrl.Elapsed() != 0 || h.ctrl.Current() != nil {
		t.Fatalf("expected idle reset, got %v %v %+v", h.ctrl.State(), h.ctrl.Elapsed(), h.ctrl.Current())
	}
	if h.clk.Active() != 0 {
		t.Fatalf("expected both sources stopped, %d still active", h.clk.Active())
	}
}

func TestElapsedIsMonotonicWhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)

	var last time.Duration
	for i := 0; i < 10; i++ {
		h.clk.Advance(time.Second)
		got := h.ctrl.Elapsed()
		if got < last {
			t.Fatalf("elapsed went backwards: %v -> %v", last, got)
		}
		last = got
	}
	if last != 10*time.Second {
		t.Fatalf("expected 10s, got %v", last)
	}
}

func TestStopTwiceIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)
	h.clk.Advance(5 * time.Second)
	if _, err := h.ctrl.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	writes := h.store.upserts
	events := len(h.events)

	p, err := h.ctrl.Stop(ctx)
	if p != nil || err != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", p, err)
	}
	if h.store.upserts != writes {
		t.Fatalf("second stop wrote to the store")
	}
	if len(h.events) != events {
		t.Fatal("second stop emitted an event")
	}
	if h.ctrl.State() != StateIdle {
		t.Fatal("expected idle")
	}
}

func TestStopWhileIdleDoesNotAuthenticate(t *testing.T) {
	auth := &fakeAuth{available: true, ok: true}
	h := newHarness(t, func(c *Config) { c.Auth = auth })
	if _, err := h.ctrl.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if auth.calls != 0 {
		t.Fatal("idle stop should not prompt")
	}
}

func TestStartWhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)
	if _, err := h.ctrl.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	n, _ := h.store.CountOpenPeriods(ctx, h.userID)
	if n != 1 {
		t.Fatalf("expected 1 open period, got %d", n)
	}
}

func TestStartRefusesExternalOpenPeriod(t *testing.T) {
	h := newHarness(t, nil)
	external := &store.TrackedPeriod{UserID: h.userID, Start: t0.Add(-time.Hour)}
	if err := h.store.Store.UpsertPeriod(ctx, external); err != nil {
		t.Fatal(err)
	}

	_, err := h.ctrl.Start(ctx)
	if !errors.Is(err, ErrOpenPeriodExists) {
		t.Fatalf("expected ErrOpenPeriodExists, got %v", err)
	}
	if h.ctrl.State() != StateIdle || h.clk.Active() != 0 {
		t.Fatal("start must not resume an existing period")
	}
	all, _ := h.store.ListPeriods(ctx, h.userID)
	if len(all) != 1 {
		t.Fatalf("expected store untouched, got %d periods", len(all))
	}
}

// ============================================================
// Failures
// ============================================================

func TestStartLocationUnavailable(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Location = fixedLocation{err: errors.New("gps off")}
	})

	_, err := h.ctrl.Start(ctx)
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("expected ErrLocationUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "gps off") {
		t.Fatalf("expected cause in error, got %v", err)
	}
	if h.ctrl.State() != StateIdle {
		t.Fatal("expected idle")
	}
	if h.clk.Active() != 0 {
		t.Fatal("clock must not start")
	}
	all, _ := h.store.ListPeriods(ctx, h.userID)
	if len(all) != 0 {
		t.Fatalf("expected no persisted period, got %d", len(all))
	}
	if len(h.events) != 0 {
		t.Fatalf("expected no events, got %v", h.kinds())
	}
}

func TestStartWithoutLocationPort(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Location = nil })
	if _, err := h.ctrl.Start(ctx); !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("expected ErrLocationUnavailable, got %v", err)
	}
}

func TestStartPersistFailureStaysIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.store.upsertErr = errors.New("disk full")

	if _, err := h.ctrl.Start(ctx); err == nil {
		t.Fatal("expected error")
	}
	if h.ctrl.State() != StateIdle || h.clk.Active() != 0 || h.ctrl.Current() != nil {
		t.Fatal("failed start must leave the controller idle with no clock")
	}
}

func TestStopPersistFailureKeepsRunning(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.ctrl.Start(ctx)
	h.clk.Advance(10 * time.Second)

	h.store.upsertErr = errors.New("disk full")
	if _, err := h.ctrl.Stop(ctx); err == nil {
		t.Fatal("expected error")
	}
	if h.ctrl.State() != StateRunning {
		t.Fatal("failed stop must keep the session running")
	}
	if h.clk.Active() != 2 {
		t.Fatalf("expected both sources still active, got %d", h.clk.Active())
	}
	h.clk.Advance(5 * time.Second)
	if got := h.ctrl.Elapsed(); got != 15*time.Second {
		t.Fatalf("expected ticks to continue, elapsed %v", got)
	}
	open := h.openPeriod(t)
	if open == nil || open.ID != p.ID {
		t.Fatal("period must still be open in the store")
	}

	h.store.upsertErr = nil
	stopped, err := h.ctrl.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !stopped.End.Equal(t0.Add(15 * time.Second)) {
		t.Fatalf("unexpected end %v", stopped.End)
	}
}

func TestStopReadFailureKeepsRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)
	h.store.getOpenErr = errors.New("locked")

	if _, err := h.ctrl.Stop(ctx); err == nil {
		t.Fatal("expected error")
	}
	if !h.ctrl.Running() {
		t.Fatal("expected running")
	}
}

func TestStopAfterExternalClose(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.ctrl.Start(ctx)

	end := t0.Add(time.Second)
	p.End = &end
	if err := h.store.Store.UpsertPeriod(ctx, p); err != nil {
		t.Fatal(err)
	}

	_, err := h.ctrl.Stop(ctx)
	if !errors.Is(err, ErrNoOpenPeriod) {
		t.Fatalf("expected ErrNoOpenPeriod, got %v", err)
	}
	if h.ctrl.State() != StateIdle || h.clk.Active() != 0 {
		t.Fatal("expected controller reconciled to idle")
	}
}

// ============================================================
// Authentication gate
// ============================================================

func TestStopAuthDenied(t *testing.T) {
	auth := &fakeAuth{available: true, ok: false}
	h := newHarness(t, func(c *Config) { c.Auth = auth })
	h.ctrl.Start(ctx)
	writes := h.store.upserts

	_, err := h.ctrl.Stop(ctx)
	if !errors.Is(err, ErrAuthDenied) {
		t.Fatalf("expected ErrAuthDenied, got %v", err)
	}
	if !h.ctrl.Running() || h.clk.Active() != 2 {
		t.Fatal("denied stop must keep the session running")
	}
	if h.store.upserts != writes {
		t.Fatal("denied stop wrote to the store")
	}
	if auth.prompt != DefaultAuthPrompt {
		t.Fatalf("unexpected prompt %q", auth.prompt)
	}
}

func TestStopAuthError(t *testing.T) {
	auth := &fakeAuth{available: true, err: errors.New("sensor busy")}
	h := newHarness(t, func(c *Config) { c.Auth = auth })
	h.ctrl.Start(ctx)

	if _, err := h.ctrl.Stop(ctx); err == nil || !strings.Contains(err.Error(), "sensor busy") {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !h.ctrl.Running() {
		t.Fatal("expected running")
	}
}

func TestStopAuthGrantedAndUnavailable(t *testing.T) {
	cases := []struct {
		name      string
		auth      *fakeAuth
		wantCalls int
	}{
		{"granted", &fakeAuth{available: true, ok: true}, 1},
		{"unavailable", &fakeAuth{available: false, ok: false}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.Auth = tc.auth; c.AuthPrompt = "pin please" })
			h.ctrl.Start(ctx)
			if _, err := h.ctrl.Stop(ctx); err != nil {
				t.Fatal(err)
			}
			if h.ctrl.Running() {
				t.Fatal("expected idle")
			}
			if tc.auth.calls != tc.wantCalls {
				t.Fatalf("expected %d auth calls, got %d", tc.wantCalls, tc.auth.calls)
			}
			if tc.wantCalls > 0 && tc.auth.prompt != "pin please" {
				t.Fatalf("unexpected prompt %q", tc.auth.prompt)
			}
		})
	}
}

// ============================================================
// Notifications
// ============================================================

func TestNotificationReadsStore(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.ctrl.Start(ctx)

	// Move the stored start back ten minutes behind the controller's back.
	p.Start = t0.Add(-10 * time.Minute)
	if err := h.store.Store.UpsertPeriod(ctx, p); err != nil {
		t.Fatal(err)
	}

	h.clk.Advance(time.Minute)
	if len(h.notifier.pushes) != 1 || h.notifier.pushes[0] != 11*time.Minute {
		t.Fatalf("expected durable total of 11m, got %v", h.notifier.pushes)
	}
	if got := h.ctrl.Elapsed(); got != time.Minute {
		t.Fatalf("in-memory elapsed should be unaffected, got %v", got)
	}
}

func TestNotificationEveryInterval(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)
	h.clk.Advance(3*time.Minute + 30*time.Second)

	want := []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute}
	if len(h.notifier.pushes) != len(want) {
		t.Fatalf("expected %v, got %v", want, h.notifier.pushes)
	}
	for i := range want {
		if h.notifier.pushes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, h.notifier.pushes)
		}
	}
}

func TestNotificationSkippedWhenPeriodGone(t *testing.T) {
	var logs bytes.Buffer
	h := newHarness(t, func(c *Config) {
		c.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	})
	p, _ := h.ctrl.Start(ctx)
	end := t0.Add(time.Second)
	p.End = &end
	h.store.Store.UpsertPeriod(ctx, p)

	h.clk.Advance(time.Minute)
	if len(h.notifier.pushes) != 0 {
		t.Fatalf("expected no push, got %v", h.notifier.pushes)
	}
	if !strings.Contains(logs.String(), "no open period") {
		t.Fatalf("expected warning, got %q", logs.String())
	}
}

func TestCustomIntervals(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.TickInterval = 5 * time.Second
		c.NotifyInterval = 20 * time.Second
	})
	h.ctrl.Start(ctx)
	h.clk.Advance(42 * time.Second)
	if got := h.ctrl.Elapsed(); got != 40*time.Second {
		t.Fatalf("expected 40s, got %v", got)
	}
	if len(h.notifier.pushes) != 2 {
		t.Fatalf("expected 2 pushes, got %v", h.notifier.pushes)
	}
}

// ============================================================
// Photos
// ============================================================

func TestAttachPhotoWhileIdle(t *testing.T) {
	h := newHarness(t, nil)
	img, err := h.ctrl.AttachPhoto(ctx, []byte("jpeg"))
	if img != nil || err != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", img, err)
	}
	counts, _ := h.store.ImageCounts(ctx, h.userID)
	if len(counts) != 0 {
		t.Fatalf("expected no images, got %v", counts)
	}
}

func TestAttachPhotoWhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.ctrl.Start(ctx)
	h.clk.Advance(3 * time.Second)

	img, err := h.ctrl.AttachPhoto(ctx, []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if img == nil || img.PeriodID != p.ID || !img.CreatedAt.Equal(t0.Add(3*time.Second)) {
		t.Fatalf("unexpected image %+v", img)
	}
	images, _ := h.store.ListImages(ctx, p.ID)
	if len(images) != 1 || !bytes.Equal(images[0].Content, []byte("jpeg")) {
		t.Fatalf("expected stored image, got %+v", images)
	}
}

func TestAttachEmptyPhotoIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.ctrl.Start(ctx)
	img, err := h.ctrl.AttachPhoto(ctx, nil)
	if img != nil || err != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", img, err)
	}
	images, _ := h.store.ListImages(ctx, p.ID)
	if len(images) != 0 {
		t.Fatal("empty capture must not be stored")
	}
}

func TestCapturePhoto(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Photo = fakePhoto{content: []byte("png")} })
	if img, err := h.ctrl.CapturePhoto(ctx); img != nil || err != nil {
		t.Fatalf("idle capture should be a no-op, got (%+v, %v)", img, err)
	}
	h.ctrl.Start(ctx)
	img, err := h.ctrl.CapturePhoto(ctx)
	if err != nil || img == nil {
		t.Fatalf("expected image, got (%+v, %v)", img, err)
	}

	none := newHarness(t, nil)
	if _, err := none.ctrl.CapturePhoto(ctx); !errors.Is(err, ErrNoPhotoSource) {
		t.Fatalf("expected ErrNoPhotoSource, got %v", err)
	}

	failing := newHarness(t, func(c *Config) { c.Photo = fakePhoto{err: errors.New("no camera")} })
	failing.ctrl.Start(ctx)
	if _, err := failing.ctrl.CapturePhoto(ctx); err == nil {
		t.Fatal("expected capture error")
	}
}

// ============================================================
// Load / reconciliation
// ============================================================

func TestLoadResumesOpenPeriod(t *testing.T) {
	h := newHarness(t, nil)
	existing := &store.TrackedPeriod{UserID: h.userID, Start: t0.Add(-90*time.Second - 500*time.Millisecond)}
	if err := h.store.Store.UpsertPeriod(ctx, existing); err != nil {
		t.Fatal(err)
	}

	if err := h.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if !h.ctrl.Running() {
		t.Fatal("expected running after load")
	}
	if got := h.ctrl.Elapsed(); got != 90*time.Second {
		t.Fatalf("expected elapsed 90s, got %v", got)
	}
	if cur := h.ctrl.Current(); cur == nil || cur.ID != existing.ID {
		t.Fatalf("expected current period %d, got %+v", existing.ID, cur)
	}
	h.clk.Advance(2 * time.Second)
	if got := h.ctrl.Elapsed(); got != 92*time.Second {
		t.Fatalf("expected elapsed 92s, got %v", got)
	}

	if _, err := h.ctrl.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := h.store.GetPeriod(ctx, existing.ID)
	if got.End == nil || !got.End.Equal(t0.Add(2*time.Second)) {
		t.Fatalf("unexpected end %v", got.End)
	}
	if kinds := h.kinds(); len(kinds) != 2 || kinds[0] != EventResumed || kinds[1] != EventStopped {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestLoadWithoutOpenPeriod(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if h.ctrl.Running() || h.clk.Active() != 0 || len(h.events) != 0 {
		t.Fatal("expected quiet idle load")
	}
}

func TestLoadIsRepeatable(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)
	if err := h.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if h.clk.Active() != 2 {
		t.Fatalf("reload must not duplicate sources, got %d", h.clk.Active())
	}
}

func TestLoadError(t *testing.T) {
	h := newHarness(t, nil)
	h.store.getOpenErr = errors.New("locked")
	if err := h.ctrl.Load(ctx); err == nil {
		t.Fatal("expected error")
	}
	if h.ctrl.Running() {
		t.Fatal("expected idle")
	}
}

// ============================================================
// Events and shutdown
// ============================================================

func TestEventSequence(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start(ctx)
	h.clk.Advance(time.Minute)
	h.ctrl.AttachPhoto(ctx, []byte("x"))
	h.ctrl.Stop(ctx)

	want := []EventKind{EventStarted, EventNotified, EventPhotoAttached, EventStopped}
	got := h.kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	ticks := 0
	for _, ev := range h.events {
		if ev.Kind == EventTick {
			ticks++
		}
		if ev.Kind == EventNotified && ev.Total != time.Minute {
			t.Fatalf("notified event total %v", ev.Total)
		}
		if ev.Kind == EventStopped && (ev.Period == nil || ev.Period.End == nil || ev.State != StateIdle) {
			t.Fatalf("stopped event missing closed period: %+v", ev)
		}
	}
	if ticks != 60 {
		t.Fatalf("expected 60 tick events, got %d", ticks)
	}
}

func TestListenerPanicIsRecovered(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Subscribe(func(Event) { panic("listener") })
	if _, err := h.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !h.ctrl.Running() {
		t.Fatal("expected running")
	}
}

func TestCloseLeavesPeriodOpen(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.ctrl.Start(ctx)
	h.ctrl.Close()
	if h.clk.Active() != 0 {
		t.Fatal("expected sources stopped")
	}
	open := h.openPeriod(t)
	if open == nil || open.ID != p.ID {
		t.Fatal("close must not touch the store")
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StateRunning.String() != "running" {
		t.Fatal("unexpected state names")
	}
	if EventPhotoAttached.String() != "photo_attached" {
		t.Fatal("unexpected event name")
	}
}
