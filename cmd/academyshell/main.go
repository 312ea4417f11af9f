package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mdp/qrterminal/v3"

	"github.com/kodiq-ai/academy-shell/internal/api"
	"github.com/kodiq-ai/academy-shell/internal/app"
	"github.com/kodiq-ai/academy-shell/internal/auth"
	"github.com/kodiq-ai/academy-shell/internal/biometric"
	"github.com/kodiq-ai/academy-shell/internal/bridge"
	"github.com/kodiq-ai/academy-shell/internal/connectivity"
	"github.com/kodiq-ai/academy-shell/internal/lockfile"
	"github.com/kodiq-ai/academy-shell/internal/navconfig"
	"github.com/kodiq-ai/academy-shell/internal/push"
	"github.com/kodiq-ai/academy-shell/internal/securestore"
	"github.com/kodiq-ai/academy-shell/internal/store"
	"github.com/kodiq-ai/academy-shell/internal/update"
	"github.com/kodiq-ai/academy-shell/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Academy Shell state data
	DefaultStateDir = "/var/lib/academy-shell"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "academy-shell.db"
	// DefaultAcademyURL is the content surface entry point
	DefaultAcademyURL = "https://kodiq.ai/academy"
	// DefaultCookieDomain scopes injected session cookies
	DefaultCookieDomain = ".kodiq.ai"
	// DefaultStorageKey is the provider storage key sessions are injected under
	DefaultStorageKey = "sb-kodiq-auth-token"
	// DefaultServiceBase namespaces keychain entries
	DefaultServiceBase = "ai.kodiq"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("Academy Shell failed to run", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Info("Academy Shell exited successfully")
}

// Config holds environment configuration
type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string
	AcademyURL      string
	NavConfigURL    string
	VersionURL      string
	PushEndpoint    string
	PushToken       string
	ProbeURL        string
	Platform        string
	AppVersion      string
	StateDir        string
	APIAddr         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	apiAddr    *string
	platform   *string
	appVersion *string
	qrOutput   *string
	noQR       *bool
}

// initializeLogger sets up structured logging; KODIQ_DEBUG=1 enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("KODIQ_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		SupabaseURL:     os.Getenv("KODIQ_SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("KODIQ_SUPABASE_ANON_KEY"),
		AcademyURL:      os.Getenv("KODIQ_ACADEMY_URL"),
		NavConfigURL:    os.Getenv("KODIQ_NAV_CONFIG_URL"),
		VersionURL:      os.Getenv("KODIQ_VERSION_URL"),
		PushEndpoint:    os.Getenv("KODIQ_PUSH_ENDPOINT"),
		PushToken:       os.Getenv("KODIQ_PUSH_TOKEN"),
		ProbeURL:        os.Getenv("KODIQ_PROBE_URL"),
		Platform:        os.Getenv("KODIQ_PLATFORM"),
		AppVersion:      os.Getenv("KODIQ_APP_VERSION"),
		StateDir:        os.Getenv("KODIQ_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No KODIQ_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.AcademyURL == "" {
		config.AcademyURL = DefaultAcademyURL
	}
	if config.NavConfigURL == "" {
		config.NavConfigURL = "https://kodiq.ai/api/nav-config"
	}
	if config.VersionURL == "" {
		config.VersionURL = "https://kodiq.ai/api/version"
	}
	if config.PushEndpoint == "" {
		config.PushEndpoint = "https://kodiq.ai/api/push-tokens"
	}
	if config.ProbeURL == "" {
		config.ProbeURL = "https://kodiq.ai/healthz"
	}
	if config.Platform == "" {
		config.Platform = "android"
	}
	if config.AppVersion == "" {
		config.AppVersion = "1.1.0"
	}

	slog.Debug("environment variables loaded",
		"KODIQ_SUPABASE_URL_SET", config.SupabaseURL != "",
		"KODIQ_SUPABASE_ANON_KEY_SET", config.SupabaseAnonKey != "",
		"KODIQ_ACADEMY_URL", config.AcademyURL,
		"KODIQ_NAV_CONFIG_URL", config.NavConfigURL,
		"KODIQ_VERSION_URL", config.VersionURL,
		"KODIQ_PUSH_ENDPOINT", config.PushEndpoint,
		"KODIQ_PUSH_TOKEN_SET", config.PushToken != "",
		"KODIQ_PLATFORM", config.Platform,
		"KODIQ_APP_VERSION", config.AppVersion,
		"KODIQ_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for Academy Shell data (overrides $KODIQ_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", "", "SQLite database path (defaults to <state-dir>/"+DefaultDBFileName+")"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "control API server address (overrides $API_ADDR)"),
		platform:   flag.String("platform", config.Platform, "platform identity: ios or android (overrides $KODIQ_PLATFORM)"),
		appVersion: flag.String("app-version", config.AppVersion, "installed app version (overrides $KODIQ_APP_VERSION)"),
		qrOutput:   flag.String("qr-output", "", "path to write the bridge pairing QR code"),
		noQR:       flag.Bool("no-qr", false, "suppress the bridge pairing QR code"),
	}

	flag.Parse()

	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN", *flags.dbDSN,
		"apiAddr", *flags.apiAddr,
		"platform", *flags.platform,
		"appVersion", *flags.appVersion,
		"qrOutput", *flags.qrOutput,
		"noQR", *flags.noQR)

	return flags
}

// run wires the shell together and blocks until shutdown.
func run(config Config, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	storage, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer storage.Close()

	keychain, err := securestore.NewFileKeychain(storage, *flags.stateDir,
		securestore.WithAuthorizer(consoleAuthorizer))
	if err != nil {
		return fmt.Errorf("failed to open keychain: %w", err)
	}
	secure := securestore.New(keychain, storage, DefaultServiceBase)

	var tokens push.TokenSource
	if config.PushToken != "" {
		tokens = push.NewStaticTokenSource(config.PushToken)
	} else {
		tokens = push.NewMockTokenSource()
	}
	registrar := push.NewRegistrar(tokens, storage, config.PushEndpoint, *flags.platform)

	storageKey := DefaultStorageKey
	if ref := auth.ProjectRef(config.SupabaseURL); ref != "" {
		storageKey = auth.StorageKey(ref)
	}
	provider := auth.NewSupabaseProvider(config.SupabaseURL, config.SupabaseAnonKey)
	sessions := auth.NewSessionStore(provider, secure, storageKey,
		auth.WithPushUnregisterer(registrar))

	gate := biometric.NewGate(keychain, storage)
	monitor := connectivity.NewMonitor(connectivity.NewHTTPProbe(config.ProbeURL))
	defer monitor.Close()

	nav := navconfig.NewLoader(config.NavConfigURL, storage)
	updates := update.NewGate(config.VersionURL, *flags.appVersion, *flags.platform)
	whatsNew := update.NewWhatsNew(storage)
	if err := whatsNew.MarkInstalled(*flags.appVersion); err != nil {
		slog.Warn("Failed to seed release-notes version", "error", err)
	}

	surface := bridge.NewRemoteSurface(nil)
	mirror := bridge.NewMirror()
	handler := bridge.NewHandler(mirror, bridge.WithSignOuter(sessions))

	shell := app.New(
		app.Config{
			AcademyURL:   config.AcademyURL,
			StorageKey:   storageKey,
			CookieDomain: DefaultCookieDomain,
			Platform:     *flags.platform,
		},
		app.Deps{
			Monitor:   monitor,
			Sessions:  sessions,
			Gate:      gate,
			Nav:       nav,
			Updates:   updates,
			Surface:   surface,
			Handler:   handler,
			Mirror:    mirror,
			Registrar: registrar,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := shell.Start(ctx); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer shell.Stop()

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiOpts = append(apiOpts, api.WithWhatsNew(whatsNew))
	server := api.NewServer(shell, surface, mirror, nav, updates, apiOpts...)

	if !*flags.noQR {
		printPairingCode(*flags.apiAddr, *flags.qrOutput)
	}

	return server.Start(ctx)
}

// printPairingCode renders the bridge WebSocket URL as a terminal QR code so
// a content surface can be pointed at this daemon.
func printPairingCode(apiAddr, qrOutput string) {
	if apiAddr == "" {
		apiAddr = api.DefaultAddr
	}
	host := apiAddr
	if strings.HasPrefix(host, ":") {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
		host = hostname + apiAddr
	}
	bridgeURL := "ws://" + host + "/bridge"

	writer := os.Stdout
	if qrOutput != "" {
		f, err := os.Create(qrOutput)
		if err != nil {
			slog.Warn("Failed to open QR output file, falling back to stdout", "error", err, "path", qrOutput)
		} else {
			defer f.Close()
			writer = f
		}
	}

	fmt.Fprintln(writer, "Bridge endpoint:", bridgeURL)
	qrterminal.GenerateHalfBlock(bridgeURL, qrterminal.L, writer)
}

// consoleAuthorizer stands in for the platform strong-authentication prompt:
// the operator confirms on the daemon's terminal.
func consoleAuthorizer(ctx context.Context, prompt securestore.Prompt) (bool, error) {
	fmt.Printf("%s\n%s\nConfirm? [y/N]: ", prompt.Title, prompt.Subtitle)

	answer := make(chan string, 1)
	go func() {
		var line string
		fmt.Scanln(&line)
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		return strings.EqualFold(line, "y") || strings.EqualFold(line, "yes"), nil
	}
}
