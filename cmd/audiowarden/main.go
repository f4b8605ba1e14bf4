// Package main provides the audiowarden daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/audiowarden/internal/app/blocklist"
	"github.com/osa030/audiowarden/internal/app/command"
	"github.com/osa030/audiowarden/internal/app/enforcer"
	"github.com/osa030/audiowarden/internal/infra/blockfile"
	"github.com/osa030/audiowarden/internal/infra/cache"
	"github.com/osa030/audiowarden/internal/infra/config"
	"github.com/osa030/audiowarden/internal/infra/filewatch"
	"github.com/osa030/audiowarden/internal/infra/logger"
	"github.com/osa030/audiowarden/internal/infra/metrics"
	"github.com/osa030/audiowarden/internal/infra/mpris"
	"github.com/osa030/audiowarden/internal/infra/spotify"
)

var (
	app        = kingpin.New("audiowarden", "Skips blocklisted songs in your media player")
	configPath = app.Flag("config", "Path to config file (default: <config dir>/config.yaml)").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	noColor    = app.Flag("no-color", "Disable colored console output").Envar("NO_COLOR").Bool()

	// paths command
	pathsCmd = app.Command("paths", "Print the resolved file locations and exit")
)

func init() {
	// run command (default) - no need to store the command
	app.Command("run", "Run the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output:  "stdout",
		Level:   "info",
		NoColor: *noColor,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to resolve config path")
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if cmd == pathsCmd.FullCommand() {
		printPaths(path, cfg)
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("audiowarden error: %+v", err)
		os.Exit(1)
	}
}

func resolveConfigPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.ConfigFileName), nil
}

// run executes the daemon. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Blocklist file and initial load
	file := blockfile.New(cfg.Blocklist.File)
	if _, err := file.EnsureExists(); err != nil {
		return errors.Wrap(err, "failed to prepare blocklist file")
	}

	var playlists blocklist.PlaylistReader
	var entryCache blocklist.EntryCache
	if cfg.Spotify.Enabled {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		playlists = client
		entryCache = cache.New(cfg.Spotify.CacheFile)
	}

	sources, err := blocklist.NewSourcesFromConfig(cfg, playlists, entryCache)
	if err != nil {
		return errors.Wrap(err, "invalid blocklist sources")
	}

	store := blocklist.NewStore(blocklist.FileSourceName)
	warnings, err := store.Reload(ctx, sources.File)
	if err != nil {
		return errors.Wrap(err, "failed to load blocklist")
	}
	for _, w := range warnings {
		zlog.Warn().Msgf("ignoring invalid blocklist entry: line=%d text=%q", w.Line, w.Text)
	}
	zlog.Info().Msgf("blocklist loaded: path=%s entries=%d", cfg.Blocklist.File, store.Len())

	m := metrics.New(store)

	// Session bus
	watcher := mpris.NewWatcher(cfg.BusName(), cfg.MPRIS.ReconnectMaxElapsed, m)
	if err := watcher.Connect(); err != nil {
		return err
	}
	dispatcher := mpris.NewDispatcher(cfg.BusName(), cfg.MPRIS.CallTimeout)
	defer dispatcher.Close()

	// Command socket
	server := command.NewServer(cfg.Socket.Path, cfg.Socket.ReadTimeout)
	if err := server.Listen(); err != nil {
		return err
	}
	defer server.Close()

	var persister enforcer.Persister
	if cfg.PersistBlocked() {
		persister = file
	}
	coordinator := enforcer.New(enforcer.Config{
		Store:      store,
		FileSource: sources.File,
		Skipper:    dispatcher,
		Persister:  persister,
		Metrics:    m,
	})

	g, gctx := errgroup.WithContext(ctx)
	inputs := enforcer.Inputs{
		Snapshots: watcher.Snapshots(),
		Commands:  server.Commands(),
	}

	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return server.Serve(gctx) })

	if cfg.WatchBlocklist() {
		fw := filewatch.New(cfg.Blocklist.File, cfg.Blocklist.WatchDebounce)
		inputs.Reloads = fw.Changes()
		g.Go(func() error { return fw.Run(gctx) })
	}

	if len(sources.Remote) > 0 {
		updates := make(chan blocklist.Update)
		inputs.Updates = updates
		for _, src := range sources.Remote {
			syncer := blocklist.NewSyncer(src, cfg.Spotify.SyncInterval, updates)
			g.Go(func() error { return syncer.Run(gctx) })
		}
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.Metrics.Addr) })
	}

	g.Go(func() error { return coordinator.Run(gctx, inputs) })

	zlog.Info().Msgf("audiowarden started: player=%s socket=%s", cfg.BusName(), cfg.Socket.Path)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	zlog.Info().Msg("audiowarden stopped")
	return nil
}

// printPaths prints the resolved file locations.
func printPaths(configFile string, cfg *config.Config) {
	fmt.Printf("  %-10s %s\n", "config", configFile)
	fmt.Printf("  %-10s %s\n", "blocklist", cfg.Blocklist.File)
	fmt.Printf("  %-10s %s\n", "socket", cfg.Socket.Path)
	if cfg.Spotify.Enabled {
		fmt.Printf("  %-10s %s\n", "cache", cfg.Spotify.CacheFile)
	}
	fmt.Printf("  %-10s %s\n", "player", cfg.BusName())
}
