package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-code/internal/app"
	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/config"
	"github.com/chaz8081/gostt-code/internal/history"
	"github.com/chaz8081/gostt-code/internal/mcpserver"
	"github.com/chaz8081/gostt-code/internal/transcribe"
	"github.com/chaz8081/gostt-code/internal/ui"
)

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runTranscribe(args []string) error {
	fs, configPath := flags("transcribe")
	copyOut := fs.Bool("copy", false, "also copy the transcript to the clipboard")
	expect := fs.String("expect", "", "reference text; prints the word error rate of the transcript")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: gostt-code transcribe [--copy] [--expect TEXT] FILE")
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	var hw app.HistoryWriter
	if store != nil {
		defer store.Close()
		hw = store
	}

	ctx, cancel := interruptible()
	defer cancel()
	text, err := app.TranscribeFile(ctx, newClient(cfg), hw, fs.Arg(0))
	if err != nil {
		return userError(err)
	}
	fmt.Println(text)
	if *expect != "" {
		fmt.Fprintln(os.Stderr, transcribe.Score(*expect, text))
	}
	if *copyOut {
		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
	}
	return nil
}

// userError drops the code prefix for errors meant for the terminal.
func userError(err error) error {
	ae := apperr.Normalize(err)
	if a := ae.Recovery(); a == apperr.ActionOpenSettings {
		return fmt.Errorf("%s (edit %s)", ae.UserMessage(), config.DefaultConfigPath())
	}
	return errors.New(ae.UserMessage())
}

func runDevices(args []string) error {
	fs, configPath := flags("devices")
	fs.Parse(args)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	capturer, err := newCapturer(cfg)
	if err != nil {
		return err
	}
	if c, ok := capturer.(closer); ok {
		defer c.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	devices, err := capturer.Devices(ctx)
	if err != nil {
		return userError(err)
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %-40s %s\n", mark, d.Name, d.ID)
	}
	return nil
}

func runDiagnose(args []string) error {
	fs, configPath := flags("diagnose")
	showConfig := fs.Bool("config-dump", false, "print the effective config (secrets masked)")
	fs.Parse(args)
	cfg, cfgPath, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfgPath == "" {
		cfgPath = "(defaults)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("=== gostt-code diagnose ===")
	fmt.Printf("  Version:    %s\n", version)
	fmt.Printf("  Config:     %s\n", cfgPath)

	capturer, err := newCapturer(cfg)
	if err != nil {
		fmt.Printf("  Capture:    error: %v\n", err)
	} else {
		if c, ok := capturer.(closer); ok {
			defer c.Close()
		}
		if info, err := capturer.Check(ctx); err != nil {
			fmt.Printf("  Capture:    error: %v\n", apperr.Normalize(err).UserMessage())
		} else {
			fmt.Printf("  Capture:    %s %s (%s)\n", info.Name, info.Version, info.Path)
		}
		if devices, err := capturer.Devices(ctx); err != nil {
			fmt.Printf("  Devices:    error: %v\n", apperr.Normalize(err).UserMessage())
		} else {
			fmt.Printf("  Devices:    %d found\n", len(devices))
		}
	}

	client := newClient(cfg)
	switch models, err := client.Models(ctx); {
	case err != nil:
		fmt.Printf("  Credential: %s\n", apperr.Normalize(err).UserMessage())
	default:
		found := false
		for _, id := range models {
			if id == cfg.API.Model {
				found = true
			}
		}
		fmt.Printf("  Credential: valid (%d models, %s available: %v)\n", len(models), cfg.API.Model, found)
	}

	if *showConfig {
		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Print(string(out))
	}
	return nil
}

func runCheckKey(args []string) error {
	fs, configPath := flags("check-key")
	fs.Parse(args)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		return userError(apperr.New(apperr.CodeMissingCredential, "no API key is configured"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if !newClient(cfg).CheckCredential(ctx) {
		return errors.New("the API key was rejected or the API is unreachable")
	}
	fmt.Println("API key OK")
	return nil
}

func runHistory(args []string) error {
	fs, configPath := flags("history")
	list := fs.Int("list", 0, "print the N most recent entries instead of opening the browser")
	search := fs.String("search", "", "print entries containing this text")
	clearAll := fs.Bool("clear", false, "delete all entries")
	fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("history is disabled (history.enabled: false)")
	}
	store, err := history.Open(cfg.History.Path, cfg.History.Limit)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	switch {
	case *clearAll:
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("History cleared")
		return nil
	case *search != "":
		entries, err := store.Search(ctx, *search, max(*list, 50))
		if err != nil {
			return err
		}
		printEntries(entries)
		return nil
	case *list > 0:
		entries, err := store.Recent(ctx, *list)
		if err != nil {
			return err
		}
		printEntries(entries)
		return nil
	}

	return ui.RunHistory(func() ([]history.Entry, error) {
		return store.Recent(ctx, cfg.History.Limit)
	}, clipboard.WriteAll)
}

func printEntries(entries []history.Entry) {
	for _, e := range entries {
		fmt.Printf("%s  %-8s %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Mode, strings.ReplaceAll(e.Text, "\n", " "))
	}
}

func runMCP(args []string) error {
	fs, configPath := flags("mcp")
	fs.Parse(args)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("the MCP server needs history.enabled: true")
	}
	store, err := history.Open(cfg.History.Path, cfg.History.Limit)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newClient(cfg)
	srv := mcpserver.New(store, func(ctx context.Context, path string) (string, error) {
		return app.TranscribeFile(ctx, client, store, path)
	}, version)
	return srv.ServeStdio()
}

func runInit(args []string) error {
	fs := flagSet("init")
	force := fs.Bool("force", false, "overwrite an existing config file")
	path := fs.String("path", config.DefaultConfigPath(), "where to write the config")
	fs.Parse(args)

	if *force {
		if err := os.Remove(*path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	written, err := config.WriteDefaultTo(*path)
	if err != nil {
		return err
	}
	if written == "" {
		fmt.Printf("Config already exists at %s (use --force to overwrite)\n", *path)
		return nil
	}
	fmt.Printf("Wrote %s\n", written)
	return nil
}
