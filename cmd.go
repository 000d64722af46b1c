package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sadopc/punchclock/internal/adapter/auth"
	"github.com/sadopc/punchclock/internal/adapter/notify"
	"github.com/sadopc/punchclock/internal/adapter/photo"
	"github.com/sadopc/punchclock/internal/export"
	"github.com/sadopc/punchclock/internal/store"
	"github.com/sadopc/punchclock/internal/tui"
)

const timeLayout = "2006-01-02 15:04:05"

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "punchclock",
		Short:         "Track working time with location and photo evidence",
		Long:          "punchclock records tracked periods per user. Run without a command to open the terminal UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/punchclock/config.yaml)")
	root.PersistentFlags().StringVar(&opts.user, "user", "", "user name (overrides config)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config)")
	root.PersistentFlags().BoolVar(&opts.logStderr, "log-stderr", false, "write logs to stderr instead of the log file")

	root.AddCommand(
		newStartCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newAttachCmd(opts),
		newClearCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
		newPINCmd(opts),
		newLocationCmd(opts),
	)
	return root
}

// withEnv opens the installation for the duration of fn.
func withEnv(cmd *cobra.Command, opts *options, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func runTUI(ctx context.Context, opts *options, stderr io.Writer) error {
	e, err := openEnv(ctx, opts, stderr)
	if err != nil {
		return err
	}
	defer e.Close()

	pending := &auth.Pending{}
	gate := e.pinGate(pending.Prompt)
	bridge := tui.NewBridge()

	ctrl := e.newController(ctx, ports{
		auth:     gate,
		notifier: notify.Multi{notify.Log{Logger: e.logger}, bridge},
	})
	defer ctrl.Close()
	ctrl.Subscribe(bridge.Forward)

	return tui.Run(tui.Deps{
		Store:         e.store,
		Controller:    ctrl,
		User:          e.user,
		Gate:          gate,
		Secrets:       pending,
		MaxPhotoBytes: e.cfg.MaxPhotoBytes,
	}, bridge)
}

func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Open a tracked period at the configured location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				ctrl, err := e.loadedController(ctx, ports{})
				if err != nil {
					return err
				}
				defer ctrl.Close()

				p, err := ctrl.Start(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started period %d at %s (%s)\n",
					p.ID, p.Start.Local().Format(timeLayout), formatLocation(p.Location))
				return nil
			})
		},
	}
}

func newStopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Close the open period, asking for the PIN when one is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				ctrl, err := e.loadedController(ctx, ports{auth: e.pinGate(auth.TerminalPrompt)})
				if err != nil {
					return err
				}
				defer ctrl.Close()

				if !ctrl.Running() {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not running")
					return nil
				}
				p, err := ctrl.Stop(ctx)
				if err != nil {
					return err
				}
				if p == nil {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not running")
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stopped period %d after %s\n",
					p.ID, formatElapsed(p.Total(time.Now())))
				return nil
			})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a period is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				ctrl, err := e.loadedController(ctx, ports{})
				if err != nil {
					return err
				}
				defer ctrl.Close()

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "user: %s\n", e.user.Name)
				p := ctrl.Current()
				if p == nil {
					_, _ = fmt.Fprintln(out, "state: idle")
				} else {
					_, _ = fmt.Fprintf(out, "state: running\nperiod: %d\nsince: %s\nelapsed: %s\nlocation: %s\n",
						p.ID, p.Start.Local().Format(timeLayout), formatElapsed(ctrl.Elapsed()), formatLocation(p.Location))
				}

				n, err := e.store.CountOpenPeriods(ctx, e.user.ID)
				if err != nil {
					return err
				}
				if n > 1 {
					_, _ = fmt.Fprintf(out, "warning: %d open periods in the database, only the latest is tracked\n", n)
				}
				return nil
			})
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked periods, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				periods, err := e.store.ListPeriods(ctx, e.user.ID)
				if err != nil {
					return err
				}
				if len(periods) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no periods")
					return nil
				}
				counts, err := e.store.ImageCounts(ctx, e.user.ID)
				if err != nil {
					return err
				}
				now := time.Now()
				for _, p := range periods {
					end := "running"
					if p.End != nil {
						end = p.End.Local().Format(timeLayout)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\t%d\n",
						p.ID, p.Start.Local().Format(timeLayout), end,
						formatElapsed(p.Total(now)), formatLocation(p.Location), counts[p.ID])
				}
				return nil
			})
		},
	}
}

func newAttachCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <image>",
		Short: "Attach a photo to the open period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				src := photo.File{Path: photo.Fixed(args[0]), MaxBytes: e.cfg.MaxPhotoBytes}
				ctrl, err := e.loadedController(ctx, ports{photo: src})
				if err != nil {
					return err
				}
				defer ctrl.Close()

				if !ctrl.Running() {
					return errors.New("no open period to attach to")
				}
				img, err := ctrl.CapturePhoto(ctx)
				if err != nil {
					return err
				}
				if img == nil {
					return fmt.Errorf("%s is empty", args[0])
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "attached image %d (%d bytes) to period %d\n",
					img.ID, len(img.Content), img.PeriodID)
				return nil
			})
		},
	}
}

func newClearCmd(opts *options) *cobra.Command {
	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete closed periods and their photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				if !yes {
					ok, err := confirm(ctx, "Delete every closed period and its photos?")
					if err != nil {
						return err
					}
					if !ok {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
						return nil
					}
				}
				n, err := e.store.ClearPeriods(ctx, e.user.ID)
				if err != nil {
					return err
				}
				e.logger.Info("history cleared", "removed", n)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d period(s)\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return clearCmd
}

func newExportCmd(opts *options) *cobra.Command {
	var format, out string
	exp := &cobra.Command{
		Use:   "export",
		Short: "Export periods as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "csv" && format != "json" {
				return fmt.Errorf("--format must be csv or json, got %q", format)
			}
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				periods, err := e.store.ListPeriods(ctx, e.user.ID)
				if err != nil {
					return err
				}
				counts, err := e.store.ImageCounts(ctx, e.user.ID)
				if err != nil {
					return err
				}
				now := time.Now()

				if out == "-" {
					if format == "json" {
						return export.WriteJSON(cmd.OutOrStdout(), periods, counts, now)
					}
					return export.WriteCSV(cmd.OutOrStdout(), periods, counts, now)
				}
				if format == "json" {
					err = export.ToJSON(periods, counts, now, out)
				} else {
					err = export.ToCSV(periods, counts, now, out)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d period(s) to %s\n", len(periods), out)
				return nil
			})
		},
	}
	exp.Flags().StringVar(&format, "format", "csv", "output format: csv|json")
	exp.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return exp
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print elapsed time reminders for the open period until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withEnv(cmd, opts, func(_ context.Context, e *env) error {
				out := cmd.OutOrStdout()
				printer := notify.Func(func(elapsed time.Duration) {
					_, _ = fmt.Fprintf(out, "%s  %s tracked\n", time.Now().Format("15:04:05"), formatElapsed(elapsed))
				})
				ctrl, err := e.loadedController(ctx, ports{
					notifier: notify.Multi{notify.Log{Logger: e.logger}, printer},
				})
				if err != nil {
					return err
				}
				defer ctrl.Close()

				p := ctrl.Current()
				if p == nil {
					return errors.New("no open period to watch")
				}
				_, _ = fmt.Fprintf(out, "watching period %d, started %s\n", p.ID, p.Start.Local().Format(timeLayout))
				<-ctx.Done()
				return nil
			})
		},
	}
}

func newPINCmd(opts *options) *cobra.Command {
	pin := &cobra.Command{Use: "pin", Short: "Manage the PIN required to stop the timer"}

	var fromStdin bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Set or replace the PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			var value string
			if fromStdin {
				value, err = readLine(cmd.InOrStdin())
			} else {
				value, err = promptNewPIN(cmd.Context())
			}
			if err != nil {
				return err
			}
			hash, err := auth.HashPIN(value)
			if err != nil {
				return err
			}
			cfg.Auth.PINHash = hash
			if err := cfg.Save(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pin saved to %s\n", path)
			return nil
		},
	}
	set.Flags().BoolVar(&fromStdin, "stdin", false, "read the PIN from the first line of stdin")

	remove := &cobra.Command{
		Use:   "clear",
		Short: "Remove the PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			cfg.Auth.PINHash = ""
			if err := cfg.Save(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "pin removed")
			return nil
		},
	}

	pin.AddCommand(set, remove)
	return pin
}

func newLocationCmd(opts *options) *cobra.Command {
	loc := &cobra.Command{Use: "location", Short: "Manage the recorded location"}

	var lat, lon float64
	set := &cobra.Command{
		Use:   "set --lat <deg> --lon <deg>",
		Short: "Set the fixed location stamped on new periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				return errors.New("--lat and --lon are required")
			}
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			cfg.SetLocation(lat, lon)
			if err := cfg.Save(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "location set to %.6f, %.6f\n", lat, lon)
			return nil
		},
	}
	set.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	set.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the configured location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Location.Latitude == nil || cfg.Location.Longitude == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "location not set")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%.6f, %.6f\n", *cfg.Location.Latitude, *cfg.Location.Longitude)
			return nil
		},
	}

	loc.AddCommand(set, show)
	return loc
}

func confirm(ctx context.Context, title string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&ok),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func promptNewPIN(ctx context.Context) (string, error) {
	var first, second string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("New PIN").EchoMode(huh.EchoModePassword).Value(&first).
			Validate(func(s string) error {
				if s == "" {
					return auth.ErrEmptyPIN
				}
				return nil
			}),
		huh.NewInput().Title("Repeat PIN").EchoMode(huh.EchoModePassword).Value(&second).
			Validate(func(s string) error {
				if s != first {
					return errors.New("pins do not match")
				}
				return nil
			}),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", auth.ErrCancelled
		}
		return "", err
	}
	return first, nil
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read pin: %w", err)
		}
		return "", auth.ErrEmptyPIN
	}
	return strings.TrimSpace(sc.Text()), nil
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatLocation(l store.Location) string {
	return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
}
