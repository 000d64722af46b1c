package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sadopc/punchclock/internal/adapter/auth"
	"github.com/sadopc/punchclock/internal/adapter/location"
	"github.com/sadopc/punchclock/internal/config"
	"github.com/sadopc/punchclock/internal/logging"
	"github.com/sadopc/punchclock/internal/session"
	"github.com/sadopc/punchclock/internal/store"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	user       string
	dbPath     string
	logStderr  bool
}

// env is one opened installation: configuration, logger, store and the
// current user.
type env struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	store   *store.Store
	user    *store.User
	logFile io.Closer
}

func loadConfig(opts *options) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("locate config: %w", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if opts.user != "" {
		cfg.User = opts.user
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	return cfg, path, nil
}

func openEnv(ctx context.Context, opts *options, stderr io.Writer) (*env, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, cfgPath: path}

	if err := e.openLogger(opts.logStderr, stderr); err != nil {
		return nil, err
	}

	s, err := store.New(cfg.DBPath, store.WithLogger(e.logger))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.store = s

	u, err := s.EnsureUser(ctx, cfg.User)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.user = u
	e.logger = e.logger.With("user", u.Name)
	return e, nil
}

// openLogger writes to stderr when asked, otherwise to the configured log
// file. The TUI owns the terminal so it never logs to stderr by default.
func (e *env) openLogger(toStderr bool, stderr io.Writer) error {
	var w io.Writer
	switch {
	case toStderr:
		w = stderr
	case e.cfg.LogFile != "":
		f, err := logging.OpenFile(e.cfg.LogFile)
		if err != nil {
			return err
		}
		e.logFile = f
		w = f
	default:
		e.logger = logging.Discard()
		return nil
	}

	logger, err := logging.New(w, e.cfg.LogLevel, e.cfg.LogFormat)
	if err != nil {
		e.Close()
		return err
	}
	e.logger = logger
	return nil
}

func (e *env) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
	}
	return errors.Join(errs...)
}

// ports are the optional controller ports a command wants.
type ports struct {
	auth     session.AuthPort
	notifier session.NotificationPort
	photo    session.PhotoPort
}

func (e *env) newController(ctx context.Context, p ports) *session.Controller {
	return session.New(session.Config{
		UserID:         e.user.ID,
		Store:          e.store,
		Location:       location.NewStatic(e.cfg.Location.Latitude, e.cfg.Location.Longitude),
		Auth:           p.auth,
		Notifier:       p.notifier,
		Photo:          p.photo,
		TickInterval:   e.store.SettingSeconds(ctx, "tick_interval", session.DefaultTickInterval),
		NotifyInterval: e.store.SettingSeconds(ctx, "notify_interval", session.DefaultNotifyInterval),
		Logger:         e.logger,
	})
}

// pinGate is switched off by the require_auth setting or a missing hash.
func (e *env) pinGate(prompt auth.Prompter) *auth.PIN {
	s := e.store
	return auth.NewPIN(e.cfg.Auth.PINHash, prompt, func(ctx context.Context) bool {
		return s.SettingBool(ctx, "require_auth", true)
	})
}

// loadedController builds a controller and reconciles it with the store.
func (e *env) loadedController(ctx context.Context, p ports) (*session.Controller, error) {
	ctrl := e.newController(ctx, p)
	if err := ctrl.Load(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}
