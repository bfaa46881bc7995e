package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockrelay/pkg/admin"
	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/engine"
	"github.com/getmockd/mockrelay/pkg/logging"
	"github.com/getmockd/mockrelay/pkg/mapping"
	"github.com/getmockd/mockrelay/pkg/store/file"
)

// serveFlags holds the serve command's flag values.
type serveFlags struct {
	configFile        string
	host              string
	port              int
	adminPort         int
	adminAPIKey       string
	proxyURL          string
	saveMapping       bool
	saveMappingToFile bool
	mappingsDir       string
	recordDir         string
	logLevel          string
	logFormat         string
	logFile           string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server (foreground)",
	Long: `Start the mock server. Requests are answered from mappings loaded from
--mappings-dir and registered through the admin API. With --proxy-url, requests
no mapping answers are forwarded upstream and can be recorded as mappings.`,
	Example: `  # Serve mappings from a directory
  mockrelay serve --mappings-dir ./mappings

  # Proxy to an upstream and record what comes back
  mockrelay serve --proxy-url https://api.example.com --save-mapping

  # Record to files
  mockrelay serve --proxy-url https://api.example.com --save-mapping-to-file --mappings-dir ./mappings

  # Use a config file, overriding its port
  mockrelay serve --config mockrelay.yaml --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildServerConfig(&serveFlagVals, cmd.Flags().Changed)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, cmd.ErrOrStderr())
	},
}

func init() {
	f := &serveFlagVals
	flags := serveCmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "Path to YAML config file")
	flags.StringVar(&f.host, "host", "", "Address to bind (default 127.0.0.1)")
	flags.IntVarP(&f.port, "port", "p", 0, "Mock server port (default 8080)")
	flags.IntVarP(&f.adminPort, "admin-port", "a", 0, "Admin API port, 0 disables the admin API (default 8081)")
	flags.StringVar(&f.adminAPIKey, "admin-api-key", "", "Require this key on admin requests")
	flags.StringVar(&f.proxyURL, "proxy-url", "", "Upstream URL for requests no mapping answers")
	flags.BoolVar(&f.saveMapping, "save-mapping", false, "Register recorded mappings in memory")
	flags.BoolVar(&f.saveMappingToFile, "save-mapping-to-file", false, "Write recorded mappings to files")
	flags.StringVar(&f.mappingsDir, "mappings-dir", "", "Directory of mapping files to load")
	flags.StringVar(&f.recordDir, "record-dir", "", "Directory for recorded mapping files (default --mappings-dir)")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	flags.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")

	rootCmd.AddCommand(serveCmd)
}

// buildServerConfig loads the config file, if any, and applies the flags the
// user set on top of it.
func buildServerConfig(f *serveFlags, changed func(name string) bool) (*config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("admin-port") {
		cfg.AdminPort = f.adminPort
	}
	if changed("admin-api-key") {
		cfg.AdminAPIKey = f.adminAPIKey
	}
	if changed("mappings-dir") {
		cfg.MappingsDir = f.mappingsDir
	}
	if changed("record-dir") {
		cfg.RecordDir = f.recordDir
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}

	if changed("proxy-url") {
		if cfg.Proxy == nil {
			cfg.Proxy = &config.ProxyConfig{}
		}
		cfg.Proxy.URL = f.proxyURL
	}
	if changed("save-mapping") || changed("save-mapping-to-file") {
		if cfg.Proxy == nil {
			return nil, errors.New("--save-mapping and --save-mapping-to-file require --proxy-url")
		}
		if changed("save-mapping") {
			cfg.Proxy.SaveMapping = f.saveMapping
		}
		if changed("save-mapping-to-file") {
			cfg.Proxy.SaveMappingToFile = f.saveMappingToFile
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the operational logger. The returned closer releases the
// log file and is never nil.
func newLogger(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	lc := logging.Config{
		Level:  logging.ParseLevel(cfg.Level),
		Format: logging.ParseFormat(cfg.Format),
		Output: stderr,
	}

	var closer io.Closer = io.NopCloser(nil)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		lc.Tee = f
		closer = f
	}
	return logging.New(lc), closer, nil
}

// newServer assembles the engine, the admin API and the listeners for cfg.
// Mapping files that fail to load are logged and skipped.
func newServer(cfg *config.ServerConfig, log *slog.Logger) (*engine.Server, error) {
	store := mapping.NewStore()
	if cfg.MappingsDir != "" {
		ms, loadErrs, err := config.LoadMappings(cfg.MappingsDir)
		if err != nil {
			return nil, err
		}
		for _, le := range loadErrs {
			log.Warn("skipping mapping file", "error", le)
		}
		for _, m := range ms {
			if err := store.RegisterMapping(m); err != nil {
				log.Warn("skipping mapping", "mappingId", m.ID, "error", err)
			}
		}
		log.Info("mappings loaded", "dir", cfg.MappingsDir, "count", store.Count())
	}

	opts := engine.Options{
		Mappings: store,
		Proxy:    cfg.Proxy,
		Logger:   log.With("component", "engine"),
	}
	if dir := cfg.RecordingDir(); dir != "" {
		opts.Writer = file.NewMappingWriter(dir, log.With("component", "mapping-writer"))
	}
	e := engine.New(opts)

	serverOpts := []engine.ServerOption{engine.WithLogger(log)}
	if cfg.AdminPort > 0 {
		api := admin.New(e,
			admin.WithLogger(log.With("component", "admin")),
			admin.WithAPIKey(cfg.AdminAPIKey),
		)
		serverOpts = append(serverOpts, engine.WithAdminHandler(api))
	}
	return engine.NewServer(cfg, e, serverOpts...), nil
}

// runServe starts the server for cfg and blocks until ctx is done.
func runServe(ctx context.Context, cfg *config.ServerConfig, stderr io.Writer) error {
	log, closer, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	srv, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	if cfg.Proxy != nil {
		log.Info("proxying unmatched requests",
			"upstream", cfg.Proxy.URL,
			"saveMapping", cfg.Proxy.SaveMapping,
			"saveMappingToFile", cfg.Proxy.SaveMappingToFile)
	}

	<-ctx.Done()
	log.Info("shutting down")
	return srv.Stop()
}
