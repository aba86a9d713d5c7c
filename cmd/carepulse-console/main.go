package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carepulse/console/internal/config"
	"github.com/carepulse/console/internal/console"
	"github.com/carepulse/console/internal/domain/account"
	"github.com/carepulse/console/internal/domain/audit"
	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/internal/domain/review"
	"github.com/carepulse/console/internal/domain/timeline"
	"github.com/carepulse/console/internal/platform/cache"
	"github.com/carepulse/console/internal/platform/gateway"
	"github.com/carepulse/console/internal/platform/middleware"
	"github.com/carepulse/console/internal/platform/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "carepulse-console",
		Short:        "CarePulse clinical monitoring console",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(timelineCmd())
	root.AddCommand(exportAuditCmd())
	root.AddCommand(whoamiCmd())
	return root
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// app is the wired object graph shared by every command.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	session   *session.Session
	router    *console.Router
	client    *gateway.Client
	accounts  *account.Service
	patients  *patient.Service
	audit     *audit.Service
	workspace *console.Workspace
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	sess := session.New()
	router := console.NewRouter(console.ViewPatients)
	router.OnRedirect(func(view string) {
		logger.Warn().Str("view", view).Msg("session ended, redirected")
	})

	client := gateway.NewClient(cfg.BackendURL, sess,
		gateway.WithLogger(logger),
		gateway.WithNavigator(router),
		gateway.WithDefaultPolicy(gateway.Policy{
			Timeout:    cfg.RequestTimeout(),
			MaxRetries: retries(cfg.MaxRetries),
			RetryDelay: delay(cfg.RetryDelay()),
		}),
	)

	bundles := cache.New[*console.Bundle](cfg.CacheTTL())
	patients := patient.NewService(patient.NewAPIRepo(client), patient.WithLogger(logger))
	careSvc := care.NewService(
		care.NewReminderAPIRepo(client),
		care.NewInterventionAPIRepo(client),
		care.NewAssignmentAPIRepo(client),
		bundles,
	)
	reviewSvc := review.NewService(client, sess, bundles, review.WithLogger(logger))
	ws := console.NewWorkspace(patients, careSvc, reviewSvc, bundles, sess, console.WithLogger(logger))

	if cfg.AuthToken != "" {
		role, _ := session.ParseRole(cfg.AuthRole)
		if err := sess.Init(cfg.AuthToken, role, cfg.AuthName); err != nil {
			return nil, fmt.Errorf("seed session: %w", err)
		}
		logger.Info().Str("role", string(sess.Role())).Msg("session seeded from environment")
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		session:   sess,
		router:    router,
		client:    client,
		accounts:  account.NewService(client, logger),
		patients:  patients,
		audit:     audit.NewService(audit.NewAPIRepo(client)),
		workspace: ws,
	}, nil
}

// Zero in the policy means "use the default", so explicit zeros from config
// are passed as the negative "none" values.
func retries(n int) int {
	if n == 0 {
		return gateway.NoRetry
	}
	return n
}

func delay(d time.Duration) time.Duration {
	if d == 0 {
		return gateway.NoDelay
	}
	return d
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newApp(cfg, newLogger(cfg, cmd.ErrOrStderr()))
}

func requireSession(a *app) error {
	if !a.session.Active() {
		return fmt.Errorf("no session: set AUTH_TOKEN (and AUTH_ROLE for opaque tokens)")
	}
	return nil
}

// -- serve --

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the console API to a rendering layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return runServer(a)
		},
	}
}

func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.NoStore())
	e.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":     "ok",
			"signed_in":  a.session.Active(),
			"view":       a.router.CurrentView(),
			"backend_at": a.cfg.BackendURL,
		})
	})

	h := console.NewHandler(a.accounts, a.patients, a.audit, a.workspace, a.router, a.session)
	h.RegisterRoutes(e.Group("/api"))
	return e
}

func runServer(a *app) error {
	e := newServer(a)

	addr := ":" + a.cfg.Port
	go func() {
		a.logger.Info().Str("addr", addr).Str("backend", a.cfg.BackendURL).Msg("starting console server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down console server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}

// -- timeline --

func timelineCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "timeline <patient-id>",
		Short: "Print a patient's day-grouped timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid patient id %q", args[0])
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(a); err != nil {
				return err
			}
			v, _, err := a.workspace.Load(cmd.Context(), id, day)
			if err != nil {
				return err
			}
			return writeTimeline(cmd.OutOrStdout(), v, time.Now())
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "select the call log of this day (YYYY-MM-DD)")
	return cmd
}

func writeTimeline(out io.Writer, v *console.View, now time.Time) error {
	name := "Unknown patient"
	track := ""
	if v.Patient != nil {
		name = v.Patient.Name
		track = v.Patient.DiseaseTrack
	}
	var score *float64
	if v.Patient != nil {
		score = v.Patient.RiskScore
	}
	if v.Log != nil && v.Log.RiskScore != nil {
		score = v.Log.RiskScore
	}
	fmt.Fprintf(out, "%s (%s) risk %s %s, adherence %s\n",
		name, timeline.DisplayTrack(track), timeline.FormatPercent(score), v.RiskLevel, v.Adherence)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, key := range v.Timeline.DayKeys {
		d := v.Timeline.Day(key)
		fmt.Fprintf(tw, "\n%s\n", timeline.DayLabel(key, now))
		for _, r := range d.Reminders {
			fmt.Fprintf(tw, "  reminder\t%s\t%s\n", r.MedicationName, timeline.StatusLabel(r.Status))
		}
		for _, l := range d.Logs {
			fmt.Fprintf(tw, "  call #%d\t%s\t%d flagged\n", l.ID, l.PressResult, l.FlaggedCount())
		}
		for _, n := range d.Notes {
			fmt.Fprintf(tw, "  %s note\t%s\t\n", n.Role, n.Text)
		}
	}
	return tw.Flush()
}

// -- export-audit --

func exportAuditCmd() *cobra.Command {
	var f audit.Filter
	var category, outPath string
	cmd := &cobra.Command{
		Use:   "export-audit",
		Short: "Export filtered system events as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Category = audit.Category(category)
			if err := f.Validate(); err != nil {
				return err
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(a); err != nil {
				return err
			}
			entries, err := a.audit.SystemEvents(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			if err := audit.WriteCSV(out, entries); err != nil {
				return err
			}
			a.logger.Info().Int("rows", len(entries)).Msg("audit export written")
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "case-insensitive text to match in action or metadata")
	cmd.Flags().StringVar(&category, "category", "", "auth, access or system")
	cmd.Flags().StringVar(&f.Start, "start", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.End, "end", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

// -- whoami --

func whoamiCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the seeded session and its credential claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(a); err != nil {
				return err
			}
			writeSession(cmd.OutOrStdout(), a.session, time.Now())
			if !remote {
				return nil
			}
			p, err := a.accounts.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "api:     %s <%s> as %s\n", p.Name, p.Email, p.Role)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also ask the API who the credential belongs to")
	return cmd
}

func writeSession(out io.Writer, sess *session.Session, now time.Time) {
	fmt.Fprintf(out, "role:    %s\n", sess.Role())
	if name := sess.Name(); name != "" {
		fmt.Fprintf(out, "name:    %s\n", name)
	}
	claims, ok := sess.Claims()
	if !ok {
		fmt.Fprintln(out, "token:   opaque")
		return
	}
	if claims.Subject != "" {
		fmt.Fprintf(out, "subject: %s\n", claims.Subject)
	}
	if !claims.ExpiresAt.IsZero() {
		state := "valid"
		if claims.Expired(now) {
			state = "expired"
		}
		fmt.Fprintf(out, "expires: %s (%s)\n", claims.ExpiresAt.UTC().Format(time.RFC3339), state)
	}
}
