package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/gostt-code/internal/app"
	"github.com/chaz8081/gostt-code/internal/config"
	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/host/bridge"
	"github.com/chaz8081/gostt-code/internal/host/desktop"
	"github.com/chaz8081/gostt-code/internal/hotkey"
	"github.com/chaz8081/gostt-code/internal/inject"
	"github.com/chaz8081/gostt-code/internal/metrics"
	"github.com/chaz8081/gostt-code/internal/notify"
	"github.com/chaz8081/gostt-code/internal/status"
	"github.com/chaz8081/gostt-code/internal/transcribe"
	"github.com/chaz8081/gostt-code/internal/ui"
)

func runServe(args []string) error {
	fs, configPath := flags("serve")
	fs.Parse(args)

	cfg, cfgPath, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfgPath == "" {
		log.Println("No config file found, using defaults")
	} else {
		log.Printf("Config loaded from %s", cfgPath)
	}
	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				log.Printf("ERROR: metrics: %v", err)
			}
		}()
	}

	indicator := status.NewIndicator(cfg.Status.DisplayDuration, status.LogRenderer{})
	if cfg.Status.Terminal {
		indicator.AddRenderer(ui.NewStatusLine(os.Stderr))
	}
	notifier := notify.NewMulti(notify.Log{})
	if cfg.Status.Notifications {
		notifier.Add(notify.Desktop{AppName: "gostt-code"})
	}

	// Editor host
	var (
		h      host.Host
		server *bridge.Server
	)
	switch cfg.Host.Kind {
	case "desktop":
		d := desktop.New(nil, desktop.Options{Method: cfg.Insert.Method, PollInterval: cfg.Host.PollInterval})
		d.Start(ctx)
		h = d
		log.Printf("Desktop host ready (%s)", d.Describe())
	default:
		server = bridge.NewServer(cfg.Host.Token, cfg.Host.RequestTimeout)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Host.Listen); err != nil {
				log.Printf("ERROR: bridge: %v", err)
			}
		}()
		notifier.Add(server)
		indicator.AddRenderer(server)
		h = server
		go watchConnection(ctx, server, m)
		log.Printf("Editor bridge listening on ws://%s/ws", cfg.Host.Listen)
	}
	adapter := host.NewAdapter(ctx, h)

	capturer, err := newCapturer(cfg)
	if err != nil {
		return fmt.Errorf("initializing audio capture: %w", err)
	}
	if info, err := capturer.Check(ctx); err != nil {
		log.Printf("WARNING: audio capture unavailable: %v", err)
	} else {
		log.Printf("Audio capture ready (%s %s)", info.Name, info.Version)
	}

	store, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}

	deps := app.Deps{
		Config:      cfg,
		Adapter:     adapter,
		Capturer:    capturer,
		Transcriber: newClient(cfg, transcribe.WithObserver(m)),
		Injector:    inject.NewSink(adapter, nil),
		Indicator:   indicator,
		Notifier:    notifier,
		Metrics:     m,
		OpenSettings: func(ctx context.Context) error {
			path := cfgPath
			if path == "" {
				if _, err := config.WriteDefault(); err != nil {
					return err
				}
				path = config.DefaultConfigPath()
			}
			return openFile(ctx, path)
		},
	}
	if store != nil {
		deps.History = store
	}
	application, err := app.New(deps)
	if err != nil {
		return err
	}
	if server != nil {
		server.HandleCommands(application.Dispatch)
	}

	if cfgPath != "" {
		go func() {
			err := config.Watch(ctx, cfgPath, func(c *config.Config) {
				if d, ok := h.(*desktop.Desktop); ok {
					d.SetMethod(c.Insert.Method)
				}
				application.Reload(c, newClient(c, transcribe.WithObserver(m)))
			})
			if err != nil {
				log.Printf("WARNING: config watch: %v", err)
			}
		}()
	}

	var listener *hotkey.Listener
	if cfg.Hotkey.Enabled {
		listener, err = hotkey.NewListener(cfg.Hotkey.Mode,
			hotkey.Binding{Name: app.CmdRecord, Keys: cfg.Hotkey.RecordKeys},
			hotkey.Binding{Name: app.CmdRecordChat, Keys: cfg.Hotkey.ChatKeys},
		)
		if err != nil {
			return err
		}
		go listener.Start()
		go handleHotkeys(ctx, listener, application)
		for _, b := range listener.Bindings() {
			log.Printf("Hotkey %s -> %s (%s mode)", hotkey.Combo(b.Keys), b.Name, cfg.Hotkey.Mode)
		}
	}

	log.Println("Ready! Ctrl+C to quit.")

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %s, shutting down...", sig)

	application.Close()
	cancel()
	adapter.Close()
	_ = h.Close()
	if c, ok := capturer.(closer); ok {
		_ = c.Close()
	}
	if store != nil {
		_ = store.Close()
	}
	log.Println("Goodbye!")
	if listener != nil {
		// Exit directly to avoid gohook's C cleanup crash.
		// The OS reclaims the event hook on process exit.
		os.Exit(0)
	}
	return nil
}

// handleHotkeys turns hotkey events into commands. Each runs in its own
// goroutine because Stop blocks until the transcript is delivered.
func handleHotkeys(ctx context.Context, l *hotkey.Listener, a *app.App) {
	for ev := range l.Events() {
		mode := a.Mode()
		if ev.Binding == app.CmdRecordChat {
			mode = inject.Chat
		}
		switch ev.Type {
		case hotkey.EventToggle:
			go a.Dispatch(ctx, ev.Binding, nil)
		case hotkey.EventStart:
			if !a.IsRecording() {
				go a.Start(ctx, mode)
			}
		case hotkey.EventStop:
			go a.Stop(ctx)
		}
	}
}

// watchConnection mirrors the bridge connection into the metrics gauge.
func watchConnection(ctx context.Context, s *bridge.Server, m *metrics.Metrics) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		m.SetEditorConnected(s.Connected())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	key := "set"
	if cfg.APIKey() == "" {
		key = "MISSING (set api.api_key or $" + cfg.API.APIKeyEnv + ")"
	}
	fmt.Println("=== gostt-code ===")
	fmt.Printf("  API:     %s (%s)\n", cfg.API.BaseURL, cfg.API.Model)
	fmt.Printf("  Key:     %s\n", key)
	fmt.Printf("  Audio:   %s, %dHz, %dch, %s\n", cfg.Audio.Backend, cfg.EffectiveSampleRate(), cfg.Audio.Channels, cfg.Audio.Format)
	fmt.Printf("  Host:    %s\n", cfg.Host.Kind)
	fmt.Printf("  Mode:    %s\n", cfg.Insert.Mode)
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkeys: %s / %s (%s mode)\n", strings.Join(cfg.Hotkey.RecordKeys, "+"), strings.Join(cfg.Hotkey.ChatKeys, "+"), cfg.Hotkey.Mode)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("==================")
}
