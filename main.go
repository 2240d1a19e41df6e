package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	tea "charm.land/bubbletea/v2"

	"github.com/neutromelabs/account-status/apiclient"
	"github.com/neutromelabs/account-status/callback"
	"github.com/neutromelabs/account-status/configstore"
	"github.com/neutromelabs/account-status/logging"
	"github.com/neutromelabs/account-status/presenter"
	"github.com/neutromelabs/account-status/status"
	"github.com/neutromelabs/account-status/tui"
)

var (
	appEnv         string
	baseURL        string
	configBackend  string
	configFile     string
	redisAddr      string
	redisPassword  string
	databaseURL    string
	callbackValue  string
	httpPort       string
	requestTimeout time.Duration
	serveMode      bool
	forceDisabled  bool

	flagBaseURL       *string
	flagConfigBackend *string
	flagConfigFile    *string
	flagCallback      *string
	flagServe         *bool
	flagDisabled      *bool

	configInitialized bool
)

const (
	backendFile     = "file"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagBaseURL = flag.String(
		"base-url",
		"",
		"NeutromeLabs cloud base URL, saved to the config store (or NEUTROME_BASE_URL env)",
	)
	flagConfigBackend = flag.String(
		"config-backend",
		"",
		"Config store: file, redis, postgres or memory (default: file or CONFIG_BACKEND env)",
	)
	flagConfigFile = flag.String(
		"config-file",
		"",
		"Config file for the file backend (default: .neutrome-config.json or CONFIG_FILE env)",
	)
	flagCallback = flag.String("callback", "", "Base64 callback token, as sent on the admin URL (or CALLBACK env)")
	flagServe = flag.Bool("serve", false, "Serve the admin status page over HTTP instead of printing it")
	flagDisabled = flag.Bool("disabled", false, "Treat the module as disabled")
}

// initConfig parses flags and initializes configuration.
// Separated from init() to avoid conflicts with test flag parsing.
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	// Priority: flag > env > default
	appEnv = getEnv("APP_ENV", "production")
	baseURL = getConfig(*flagBaseURL, "NEUTROME_BASE_URL", "")
	configBackend = getConfig(*flagConfigBackend, "CONFIG_BACKEND", backendFile)
	configFile = getConfig(*flagConfigFile, "CONFIG_FILE", ".neutrome-config.json")
	redisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	databaseURL = getEnv("DATABASE_URL", "")
	callbackValue = getConfig(*flagCallback, "CALLBACK", "")
	httpPort = getEnv("HTTP_PORT", "8080")
	requestTimeout = getDuration("REQUEST_TIMEOUT", 10*time.Second)
	serveMode = *flagServe
	forceDisabled = *flagDisabled

	if baseURL != "" {
		if err := validateBaseURL(baseURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid NEUTROME_BASE_URL: %v\n", err)
			os.Exit(1)
		}
		if strings.HasPrefix(strings.ToLower(baseURL), "http://") {
			fmt.Fprintln(
				os.Stderr,
				"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
			)
			fmt.Fprintln(os.Stderr)
		}
	}

	switch configBackend {
	case backendFile, backendRedis, backendPostgres, backendMemory:
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown CONFIG_BACKEND %q\n", configBackend)
		os.Exit(1)
	}
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// validateBaseURL validates that the base URL is properly formatted
func validateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("base URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// openBackend connects the configured store. The returned func releases it.
func openBackend(ctx context.Context) (configstore.Backend, func(), error) {
	switch configBackend {
	case backendRedis:
		client, err := configstore.DialRedis(ctx, redisAddr, redisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return configstore.NewRedisBackend(client), func() { client.Close() }, nil

	case backendPostgres:
		pool, err := connectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		backend := configstore.NewPostgresBackend(pool)
		if err := backend.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return backend, pool.Close, nil

	case backendMemory:
		return configstore.NewMemoryBackend(nil), func() {}, nil

	default:
		return configstore.NewFileBackend(configFile), func() {}, nil
	}
}

// newConfig wraps backend and seeds the base URL given on the command line.
func newConfig(ctx context.Context, backend configstore.Backend, logger *zap.Logger) (*configstore.Config, error) {
	cfg := configstore.New(backend, logger)
	if baseURL != "" && cfg.BaseURL(ctx) != baseURL {
		if err := cfg.SetBaseURL(ctx, baseURL); err != nil {
			return nil, fmt.Errorf("save base url: %w", err)
		}
	}
	return cfg, nil
}

// newAdapter builds the presenter for one cycle over params.
func newAdapter(
	cfg *configstore.Config,
	client *apiclient.Client,
	params url.Values,
	logger *zap.Logger,
) *presenter.Adapter {
	return presenter.New(cfg, func() *status.Resolver {
		return status.NewResolver(params, callback.NewSource(logger), client, logger)
	}, presenter.ForceDisabled(forceDisabled))
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	initConfig()

	if serveMode {
		runServer()
		return
	}

	logger, err := logging.New(appEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries. Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(d, logger)
		p.Quit()
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(d, logger); err != nil {
			os.Exit(1)
		}
	}
}

// run resolves the account status once and reports it through d.
func run(d tui.Displayer, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer closeBackend()

	cfg, err := newConfig(ctx, backend, logger)
	if err != nil {
		d.Fatal(err)
		return err
	}

	client, err := apiclient.New(cfg, apiclient.WithLogger(logger), apiclient.WithTimeout(requestTimeout))
	if err != nil {
		d.Fatal(err)
		return err
	}

	return render(ctx, d, cfg, client, url.Values{callback.Param: {callbackValue}}, logger)
}

// render runs one resolution cycle and reports the view.
func render(
	ctx context.Context,
	d tui.Displayer,
	cfg *configstore.Config,
	client *apiclient.Client,
	params url.Values,
	logger *zap.Logger,
) error {
	d.ConfigLoaded(configBackend, cfg.BaseURL(ctx))

	adapter := newAdapter(cfg, client, params, logger)
	if !adapter.Enabled(ctx) {
		d.ModuleDisabled(presenter.DisabledNotice)
		return nil
	}

	if params.Get(callback.Param) != "" {
		d.CallbackProvided()
	}
	d.Resolving()

	view := adapter.Render(ctx)
	d.Resolved(tui.MsgResolved{
		Email:         view.Email,
		SignedIn:      view.SignedIn,
		StatusMessage: view.StatusMessage,
		SignInURL:     view.SignInURL,
		Failed:        view.StatusMessage != status.MessageRefreshed,
	})
	return nil
}
