package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"smartcheck/internal/adapters/api"
	"smartcheck/internal/adapters/render"
	"smartcheck/internal/adapters/resilience"
	"smartcheck/internal/adapters/sessionstore"
	"smartcheck/internal/adapters/store/bunstore"
	"smartcheck/internal/config"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/logging"
)

var errNotLoggedIn = errors.New("not logged in")

// app carries the state shared by every command of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile string
	verbose    bool
	output     string

	cfg      *config.Config
	logger   *zap.Logger
	sessions *sessionstore.FileStore
	client   *api.Client
	printer  *render.Printer
	store    *bunstore.BunStore

	// now is replaced in tests.
	now func() time.Time
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// init loads configuration and builds the shared clients. It runs before every
// command.
func (a *app) init() error {
	format, err := render.ParseFormat(a.output)
	if err != nil {
		return err
	}
	a.printer = render.NewPrinter(a.stdout, format)

	cfg, err := config.Load(viper.New(), a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger

	a.sessions = sessionstore.NewFileStore(cfg.SessionPath())
	sess, err := a.sessions.Load()
	if err != nil {
		a.logger.Warn("ignoring unreadable session file", zap.String("path", a.sessions.Path()), zap.Error(err))
		sess = models.Session{}
	}

	a.client = api.NewClient(cfg.APIURL,
		api.WithLogger(a.logger),
		api.WithSession(sess),
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithRetries(cfg.MaxRetries, 500*time.Millisecond),
		api.OnAuthExpired(a.onAuthExpired),
	)
	return nil
}

// onAuthExpired runs once when the API rejects the stored token.
func (a *app) onAuthExpired(s models.Session) {
	a.logger.Warn("session rejected by server", zap.String("username", s.Username))
	if err := a.sessions.Clear(); err != nil {
		a.logger.Error("failed to clear session file", zap.Error(err))
	}
}

// requireSession fails fast when there is no usable local session.
func (a *app) requireSession() error {
	s := a.client.Session()
	if s.Token == "" {
		return errNotLoggedIn
	}
	if !s.Authenticated(a.now()) {
		_ = a.sessions.Clear()
		a.client.SetSession(models.Session{})
		return ports.ErrAuthExpired
	}
	return nil
}

func (a *app) requireAdmin() error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if !a.client.Session().IsAdmin() {
		return fmt.Errorf("this command needs an Admin session (logged in as %s)", a.client.Session().Username)
	}
	return nil
}

// db opens the local database on first use.
func (a *app) db(ctx context.Context) (*bunstore.BunStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := bunstore.Open(ctx, a.cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	a.store = store
	return store, nil
}

func (a *app) breaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(a.cfg.BreakerThreshold, a.cfg.BreakerTimeout,
		resilience.WithFailureFilter(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, ports.ErrAuthExpired)
		}),
		resilience.OnStateChange(func(from, to resilience.State) {
			a.logger.Warn("api circuit breaker changed state", zap.Stringer("from", from), zap.Stringer("to", to))
		}),
	)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close local database", zap.Error(err))
		}
		a.store = nil
	}
	_ = a.logger.Sync()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "smartcheck",
		Short: "Back-office client for scanned bank document intake",
		Long: `smartcheck uploads scanned transaction PDFs to the document API, follows
their processing, lets operators regroup pages into deals and reviews the
reconciliation results.

Configuration comes from smartcheck.yaml in the state directory and
SMARTCHECK_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: smartcheck.yaml in the state directory)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.output, "output", "table", "output format: table, json or yaml")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newBatchesCmd(a),
		newUploadCmd(a),
		newMonitorCmd(a),
		newSplitCmd(a),
		newDealsCmd(a),
		newReviewCmd(a),
		newStatsCmd(a),
		newUsersCmd(a),
	)
	return root
}
