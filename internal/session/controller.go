package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sadopc/punchclock/internal/clock"
	"github.com/sadopc/punchclock/internal/store"
)

var (
	ErrAlreadyRunning      = errors.New("session already running")
	ErrOpenPeriodExists    = store.ErrOpenPeriodExists
	ErrNoOpenPeriod        = errors.New("no open period")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrAuthDenied          = errors.New("authentication denied")
	ErrNoPhotoSource       = errors.New("no photo source configured")
)

const (
	DefaultTickInterval   = time.Second
	DefaultNotifyInterval = time.Minute
	DefaultAuthPrompt     = "Confirm to stop the timer"
)

// Config wires a Controller. Store and Location are required; the other
// ports are optional.
type Config struct {
	UserID   int64
	Store    PeriodStore
	Location LocationPort
	Auth     AuthPort
	Notifier NotificationPort
	Photo    PhotoPort

	Clock          clock.Clock
	TickInterval   time.Duration
	NotifyInterval time.Duration
	AuthPrompt     string
	Logger         *slog.Logger
}

// Controller is the session state machine for one user. It is safe for
// concurrent use: Start, Stop, AttachPhoto and the notification tick are
// serialised, while elapsed ticks only touch in-memory state.
type Controller struct {
	userID     int64
	store      PeriodStore
	location   LocationPort
	auth       AuthPort
	notifier   NotificationPort
	photo      PhotoPort
	clk        clock.Clock
	tick       time.Duration
	authPrompt string
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	clock  sessionClock

	// opMu serialises the read-then-write operations.
	opMu sync.Mutex

	mu        sync.Mutex
	state     State
	elapsed   time.Duration
	current   *store.TrackedPeriod
	listeners []Listener
}

// New builds an idle controller. Call Load to pick up a period left open by
// a previous run.
func New(cfg Config) *Controller {
	c := &Controller{
		userID:     cfg.UserID,
		store:      cfg.Store,
		location:   cfg.Location,
		auth:       cfg.Auth,
		notifier:   cfg.Notifier,
		photo:      cfg.Photo,
		clk:        cfg.Clock,
		tick:       cfg.TickInterval,
		authPrompt: cfg.AuthPrompt,
		logger:     cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.clk == nil {
		c.clk = clock.System{Logger: c.logger}
	}
	if c.tick <= 0 {
		c.tick = DefaultTickInterval
	}
	notify := cfg.NotifyInterval
	if notify <= 0 {
		notify = DefaultNotifyInterval
	}
	if c.authPrompt == "" {
		c.authPrompt = DefaultAuthPrompt
	}
	c.logger = c.logger.With("user_id", c.userID)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.clock = sessionClock{
		elapsed: newSource(c.clk, c.tick, c.elapsedTick),
		notify:  newSource(c.clk, notify, c.notificationTick),
	}
	return c
}

// Subscribe registers l for every subsequent event.
func (c *Controller) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *Controller) UserID() int64 { return c.userID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Running() bool { return c.State() == StateRunning }

// Elapsed is the in-memory elapsed time of the running session.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Current returns a copy of the open period, or nil when idle.
func (c *Controller) Current() *store.TrackedPeriod {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// Load reconciles the controller with the store. An open period puts the
// controller in Running with elapsed time rebuilt from its start; otherwise
// it becomes Idle.
func (c *Controller) Load(ctx context.Context) error {
	c.opMu.Lock()
	ev, err := c.load(ctx)
	c.opMu.Unlock()
	if err != nil {
		return err
	}
	if ev != nil {
		c.emit(*ev)
	}
	return nil
}

func (c *Controller) load(ctx context.Context) (*Event, error) {
	open, err := c.store.GetOpenPeriod(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("load open period: %w", err)
	}
	c.clock.stop()

	if open == nil {
		wasRunning := c.Running()
		c.reset()
		if !wasRunning {
			return nil, nil
		}
		ev := c.snapshot(EventStopped)
		return &ev, nil
	}

	c.mu.Lock()
	c.state = StateRunning
	c.current = open
	c.elapsed = open.Total(c.clk.Now()).Truncate(time.Second)
	c.mu.Unlock()
	c.clock.start()

	c.logger.Info("session resumed", "period_id", open.ID, "start", open.Start)
	ev := c.snapshot(EventResumed)
	return &ev, nil
}

// Start opens a new period. It refuses while a period is open, whether the
// controller knows about it or not; an open period is only ever resumed by Load.
func (c *Controller) Start(ctx context.Context) (*store.TrackedPeriod, error) {
	c.opMu.Lock()
	p, err := c.start(ctx)
	c.opMu.Unlock()
	if err != nil {
		return nil, err
	}
	c.emit(c.snapshot(EventStarted))
	return p, nil
}

func (c *Controller) start(ctx context.Context) (*store.TrackedPeriod, error) {
	if c.Running() {
		return nil, ErrAlreadyRunning
	}

	open, err := c.store.GetOpenPeriod(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("check open period: %w", err)
	}
	if open != nil {
		return nil, fmt.Errorf("start session: %w (period %d)", ErrOpenPeriodExists, open.ID)
	}

	loc, err := c.currentLocation(ctx)
	if err != nil {
		return nil, err
	}

	p := &store.TrackedPeriod{UserID: c.userID, Start: c.clk.Now(), Location: loc}
	if err := c.store.UpsertPeriod(ctx, p); err != nil {
		return nil, fmt.Errorf("persist period: %w", err)
	}

	c.mu.Lock()
	c.state = StateRunning
	c.elapsed = 0
	c.current = p
	c.mu.Unlock()
	c.clock.start()

	c.logger.Info("session started", "period_id", p.ID, "latitude", loc.Latitude, "longitude", loc.Longitude)
	return p.Clone(), nil
}

func (c *Controller) currentLocation(ctx context.Context) (store.Location, error) {
	if c.location == nil {
		return store.Location{}, fmt.Errorf("%w: no location source", ErrLocationUnavailable)
	}
	loc, err := c.location.CurrentLocation(ctx)
	if err != nil {
		return store.Location{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	return loc, nil
}

// Stop closes the open period. It returns (nil, nil) when idle. If it
// returns an error the session is still running, except for
// ErrNoOpenPeriod, where the period had already been closed elsewhere and
// the controller is reset to idle.
func (c *Controller) Stop(ctx context.Context) (*store.TrackedPeriod, error) {
	if !c.Running() {
		return nil, nil
	}
	if err := c.authorize(ctx); err != nil {
		return nil, err
	}

	c.opMu.Lock()
	p, ev, err := c.stop(ctx)
	c.opMu.Unlock()
	if ev != nil {
		c.emit(*ev)
	}
	return p, err
}

func (c *Controller) authorize(ctx context.Context) error {
	if c.auth == nil || !c.auth.Available(ctx) {
		return nil
	}
	ok, err := c.auth.Authenticate(ctx, c.authPrompt)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if !ok {
		c.logger.Info("stop denied by authentication")
		return ErrAuthDenied
	}
	return nil
}

func (c *Controller) stop(ctx context.Context) (*store.TrackedPeriod, *Event, error) {
	// Another Stop may have won while we were authenticating.
	if !c.Running() {
		return nil, nil, nil
	}

	open, err := c.store.GetOpenPeriod(ctx, c.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("read open period: %w", err)
	}
	if open == nil {
		c.logger.Warn("no open period in store at stop; resetting session")
		c.reset()
		ev := c.snapshot(EventStopped)
		return nil, &ev, ErrNoOpenPeriod
	}

	end := c.clk.Now()
	if end.Before(open.Start) {
		end = open.Start
	}
	open.End = &end
	if err := c.store.UpsertPeriod(ctx, open); err != nil {
		return nil, nil, fmt.Errorf("persist stop: %w", err)
	}

	c.reset()
	c.logger.Info("session stopped", "period_id", open.ID, "total", open.Total(end))
	ev := c.snapshot(EventStopped)
	ev.Period = open.Clone()
	ev.Total = open.Total(end)
	return open, &ev, nil
}

// reset stops both sources and returns to Idle. It does not touch the store.
func (c *Controller) reset() {
	c.clock.stop()
	c.mu.Lock()
	c.state = StateIdle
	c.elapsed = 0
	c.current = nil
	c.mu.Unlock()
}

func (c *Controller) elapsedTick(time.Time) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.elapsed += c.tick
	c.mu.Unlock()
	c.emit(c.snapshot(EventTick))
}

// notificationTick pushes the durable total of the open period, read back
// from the store rather than taken from memory.
func (c *Controller) notificationTick(now time.Time) {
	c.opMu.Lock()
	total, ok := c.notifyTotal(now)
	c.opMu.Unlock()
	if !ok {
		return
	}
	ev := c.snapshot(EventNotified)
	ev.Total = total
	c.emit(ev)
}

func (c *Controller) notifyTotal(now time.Time) (time.Duration, bool) {
	if !c.Running() {
		return 0, false
	}
	open, err := c.store.GetOpenPeriod(c.ctx, c.userID)
	if err != nil {
		c.logger.Error("notification: read open period", "error", err)
		return 0, false
	}
	if open == nil {
		c.logger.Warn("notification: no open period in store")
		return 0, false
	}
	total := open.Total(now)
	if c.notifier != nil {
		c.notifier.Push(total)
	}
	return total, true
}

// AttachPhoto stores content against the open period. Empty content (a
// cancelled capture) and calls while idle are silently ignored.
func (c *Controller) AttachPhoto(ctx context.Context, content []byte) (*store.Image, error) {
	if len(content) == 0 {
		c.logger.Debug("attach photo: empty capture ignored")
		return nil, nil
	}

	c.opMu.Lock()
	img, err := c.attach(ctx, content)
	c.opMu.Unlock()
	if err != nil || img == nil {
		return nil, err
	}

	ev := c.snapshot(EventPhotoAttached)
	ev.Image = img
	c.emit(ev)
	return img, nil
}

func (c *Controller) attach(ctx context.Context, content []byte) (*store.Image, error) {
	if !c.Running() {
		c.logger.Debug("attach photo: no running session")
		return nil, nil
	}
	open, err := c.store.GetOpenPeriod(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("read open period: %w", err)
	}
	if open == nil {
		c.logger.Warn("attach photo: no open period in store")
		return nil, nil
	}

	img := &store.Image{PeriodID: open.ID, Content: content, CreatedAt: c.clk.Now()}
	if err := c.store.AddImage(ctx, img); err != nil {
		return nil, fmt.Errorf("persist image: %w", err)
	}
	c.logger.Info("photo attached", "period_id", open.ID, "image_id", img.ID, "bytes", len(content))
	return img, nil
}

// CapturePhoto asks the photo source for an image and attaches it.
func (c *Controller) CapturePhoto(ctx context.Context) (*store.Image, error) {
	if c.photo == nil {
		return nil, ErrNoPhotoSource
	}
	if !c.Running() {
		return nil, nil
	}
	content, err := c.photo.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture photo: %w", err)
	}
	return c.AttachPhoto(ctx, content)
}

// Close stops both tick sources. The open period, if any, stays open in the
// store and is picked up by the next Load.
func (c *Controller) Close() {
	c.clock.stop()
	c.cancel()
}

func (c *Controller) snapshot(kind EventKind) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Event{Kind: kind, State: c.state, Elapsed: c.elapsed, Period: c.current.Clone()}
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range listeners {
		func() {
			defer recoverLog(c.logger, "session listener panic")
			l(ev)
		}()
	}
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		logger.Error(msg, "error", r, "stack", string(debug.Stack()))
	}
}
