// MagicMouse - shares one cursor position with every machine on the LAN.
// A pad captures the mouse and broadcasts it over UDP; subscribers replay it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/api"
	"magicmouse/internal/autostart"
	"magicmouse/internal/config"
	"magicmouse/internal/input"
	"magicmouse/internal/network"
	"magicmouse/internal/osutils"
	"magicmouse/internal/pad"
	"magicmouse/internal/protocol"
	"magicmouse/internal/transform"
	"magicmouse/internal/tray"
)

var (
	version      = "0.1.0"
	runPad       = flag.Bool("pad", false, "Run as the pad (overrides general.role)")
	runSubscribe = flag.Bool("subscribe", false, "Run as a subscriber (overrides general.role)")
	dump         = flag.Bool("dump", false, "Subscriber: log received events instead of moving the cursor")
	watchAddr    = flag.String("watch", "", "Follow the event feed of the pad API at host:port")
	configPath   = flag.String("config", "", "Config file path (default: user config dir)")
	importLegacy = flag.String("import-legacy", "", "Import a legacy JSON config into the config file and exit")
	setAutostart = flag.String("autostart", "", "\"on\" or \"off\": start this role on login and exit")
	showVer      = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("magicmouse version %s (wire revision %d)\n", version, protocol.WireRevision)
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if err := config.LoadEnvFile(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfgMgr, err := newManager()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize config")
	}
	if err := cfgMgr.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load config")
	}

	if *importLegacy != "" {
		runImport(cfgMgr, *importLegacy)
		return
	}

	cfg := cfgMgr.Get()
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatal().Err(err).Msg("bad environment")
	}
	switch {
	case *runPad:
		cfg.General.Role = config.RolePad
	case *runSubscribe:
		cfg.General.Role = config.RoleSubscriber
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration validation failed")
	}

	level, err := zerolog.ParseLevel(cfg.General.LogLevel)
	if err != nil || cfg.General.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *setAutostart != "":
		runAutostart(cfg, *setAutostart)
	case *watchAddr != "":
		runWatch(ctx, *watchAddr, cfg.Pad.APIToken)
	case cfg.General.Role == config.RolePad:
		runPadService(ctx, cfg)
	default:
		runSubscriber(ctx, cfg)
	}
}

func newManager() (*config.Manager, error) {
	if *configPath != "" {
		return config.NewManagerAt(*configPath), nil
	}
	return config.NewManager()
}

func runImport(cfgMgr *config.Manager, path string) {
	cfg := cfgMgr.Get()
	if err := config.ImportLegacyFile(cfg, path); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("import failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("imported configuration is invalid")
	}
	cfgMgr.Set(cfg)
	if err := cfgMgr.Save(); err != nil {
		log.Fatal().Err(err).Msg("failed to save config")
	}
	fmt.Printf("Imported %s into %s\n", path, cfgMgr.Path())
}

func runAutostart(cfg *config.Config, mode string) {
	switch mode {
	case "on":
		args := []string{"-" + roleFlag(cfg.General.Role)}
		if *configPath != "" {
			args = append(args, "-config", *configPath)
		}
		if err := autostart.Enable(args...); err != nil {
			log.Fatal().Err(err).Msg("failed to enable autostart")
		}
		fmt.Println("Autostart enabled")
	case "off":
		if err := autostart.Disable(); err != nil {
			log.Fatal().Err(err).Msg("failed to disable autostart")
		}
		fmt.Println("Autostart disabled")
	default:
		log.Fatal().Str("autostart", mode).Msg("expected \"on\" or \"off\"")
	}
}

func roleFlag(role string) string {
	if role == config.RolePad {
		return "pad"
	}
	return "subscribe"
}

func runWatch(ctx context.Context, addr, token string) {
	client := api.NewWatchClient(addr, token)
	client.OnMessage = func(msg protocol.Message) {
		log.Info().Str("type", string(msg.Type)).Interface("payload", msg.Payload).Msg("feed")
	}

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("watch stopped")
	}
}

func runPadService(ctx context.Context, cfg *config.Config) {
	logger := log.With().Str("module", "main").Logger()

	address, err := network.ParseEndpoint(cfg.Pad.Address)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad pad address")
	}

	srv := network.NewServer(network.ServerConfig{
		Address:      address,
		AnnouncePort: uint16(cfg.Pad.AnnouncePort),
	})
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start pad server")
	}
	defer srv.Stop()
	port := srv.LocalEndpoint().Port()

	if runtime.GOOS == "windows" {
		go func() {
			if err := osutils.EnsureFirewallRule("MagicMouse Pad", "UDP", int(port)); err != nil {
				logger.Warn().Err(err).Msg("firewall rule")
			}
		}()
	}

	capture, err := openCapture(cfg.Pad.Script)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open capture script")
	}

	// Scripted capture has no real pointer to warp, so warps are logged.
	cursor := input.NewLogInjector(log.With().Str("module", "cursor").Logger())

	p := pad.New(pad.Config{
		Width:     int32(cfg.Pad.Width),
		Height:    int32(cfg.Pad.Height),
		CancelKey: cfg.Pad.CancelKey,
	}, capture, cursor, srv)

	instance := "magicmouse-" + uuid.NewString()[:8]

	if cfg.Pad.MDNS {
		adv, err := network.Advertise(instance, port)
		if err != nil {
			logger.Warn().Err(err).Msg("mdns advertisement failed")
		} else {
			defer adv.Shutdown()
		}
	}

	var apiServer *api.Server
	if cfg.Pad.APIEnabled {
		if runtime.GOOS == "windows" {
			go func() {
				if err := osutils.EnsureFirewallRule("MagicMouse API", "TCP", cfg.Pad.APIPort); err != nil {
					logger.Warn().Err(err).Msg("firewall rule")
				}
			}()
		}

		apiServer = api.NewServer(&api.PadStatus{
			Instance: instance,
			Version:  version,
			Server:   srv,
			Pad:      p,
		}, cfg.Pad.APIToken)
		apiServer.Attach(srv, p)

		go func() {
			if err := apiServer.Start(":" + strconv.Itoa(cfg.Pad.APIPort)); err != nil {
				logger.Error().Err(err).Msg("api server error")
			}
		}()
	}

	if err := p.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start capture")
	}

	logger.Info().Str("address", srv.LocalEndpoint().String()).Str("instance", instance).Msg("pad running, press Ctrl+C to stop")

	if cfg.Pad.Tray {
		runTray(ctx, srv, p)
	} else {
		select {
		case <-ctx.Done():
		case <-p.Done():
		}
	}

	logger.Info().Msg("shutting down")
	if err := p.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("capture shutdown")
	}
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		apiServer.Shutdown(shutdownCtx)
	}
}

// openCapture opens a capture script; "" and "-" read stdin.
func openCapture(path string) (*input.ScriptCapture, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r = f
	}
	return input.NewScriptCapture(r), nil
}

// runTray shows the tray icon until quit, a signal or the capture ends.
func runTray(ctx context.Context, srv *network.Server, p *pad.Pad) {
	t := tray.New(padTooltip(srv, p))

	releaseID := t.AddMenuItem("Release capture", p.Release)
	t.SetItemEnabled(releaseID, false)
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	refresh := func() {
		t.SetTooltip(padTooltip(srv, p))
		t.SetItemEnabled(releaseID, p.State() == pad.StateActive)
	}
	srv.OnSubscriberAdded(func(network.Endpoint) { refresh() })
	srv.OnSubscriberRemoved(func(network.Endpoint) { refresh() })
	p.OnCapture(func(bool) { refresh() })

	go func() {
		select {
		case <-ctx.Done():
		case <-p.Done():
		}
		t.Stop()
	}()

	t.Run()
}

func padTooltip(srv *network.Server, p *pad.Pad) string {
	return fmt.Sprintf("MagicMouse pad (%s) - %d subscribers", p.State(), len(srv.Subscribers()))
}

func runSubscriber(ctx context.Context, cfg *config.Config) {
	logger := log.With().Str("module", "main").Logger()
	sc := cfg.Subscriber

	flags, ok := transform.ParseFlags(sc.Flags)
	if !ok {
		logger.Fatal().Str("flags", sc.Flags).Msg("unknown placement flag")
	}

	var injector input.Injector
	if *dump {
		injector = input.NewLogInjector(log.With().Str("module", "dump").Logger())
	} else {
		injector = input.NewInjector()
	}
	replayer := input.NewReplayer(injector, transform.Placement{
		OffsetX: int32(sc.OffsetX),
		OffsetY: int32(sc.OffsetY),
		Width:   int32(sc.Width),
		Height:  int32(sc.Height),
		Flags:   flags,
	})

	server, err := network.ParseEndpoint(sc.Server)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad server address")
	}
	local, err := network.ParseEndpoint(sc.Client)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad client address")
	}

	clientCfg := network.ClientConfig{
		Server:    server,
		Local:     local,
		Timeout:   time.Duration(sc.Timeout) * time.Millisecond,
		RateLimit: time.Duration(sc.RateLimit) * time.Millisecond,
		Discovery: sc.Discovery,
		Viewport: protocol.Rect{
			Left:   int32(sc.Viewport.Left),
			Top:    int32(sc.Viewport.Top),
			Width:  uint32(sc.Viewport.Width),
			Height: uint32(sc.Viewport.Height),
		},
	}

	client, err := connectWithRetry(ctx, clientCfg, replayer)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer client.Close()

	logger.Info().
		Str("pad", client.Server().String()).
		Str("local", client.LocalEndpoint().String()).
		Str("flags", flags.String()).
		Msg("subscribed, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Uint32("last_seq", client.LastSequence()).Msg("shutting down")
}

// connectWithRetry retries discovery timeouts and transport errors with
// exponential backoff. Argument errors are returned immediately.
func connectWithRetry(ctx context.Context, cfg network.ClientConfig, handler network.Handler) (*network.Client, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	var client *network.Client
	operation := func() error {
		c, err := network.Connect(ctx, cfg, handler)
		switch {
		case err == nil:
			client = c
			return nil
		case errors.Is(err, network.ErrInvalidArgument),
			errors.Is(err, network.ErrAddressFamilyMismatch),
			ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		if network.IsTimeout(err) {
			log.Info().Str("module", "main").Err(err).Msg("no pad answered, retrying")
			return err
		}
		log.Warn().Str("module", "main").Err(err).Msg("connect failed, retrying")
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return client, nil
}
