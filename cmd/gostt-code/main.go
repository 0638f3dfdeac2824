// Command gostt-code is a voice-dictation daemon for code editors.
//
// Usage:
//
//	gostt-code [serve]            run the daemon (default)
//	gostt-code transcribe FILE    transcribe an audio file and print the text
//	gostt-code devices            list audio input devices
//	gostt-code diagnose           check capture, credential and config
//	gostt-code check-key          verify the API key
//	gostt-code history            browse past transcriptions
//	gostt-code mcp                serve history as MCP tools over stdio
//	gostt-code init               write a default config file
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/chaz8081/gostt-code/internal/config"
)

var version = "dev"

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"serve", "run the dictation daemon", runServe},
	{"transcribe", "transcribe an audio file", runTranscribe},
	{"devices", "list audio input devices", runDevices},
	{"diagnose", "check capture, credential and config", runDiagnose},
	{"check-key", "verify the API key", runCheckKey},
	{"history", "browse past transcriptions", runHistory},
	{"mcp", "serve MCP tools over stdio", runMCP},
	{"init", "write a default config file", runInit},
}

func main() {
	args := os.Args[1:]
	name := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		name, args = args[0], args[1:]
	}

	switch name {
	case "help", "-h", "--help":
		usage()
		return
	case "version":
		fmt.Println("gostt-code", version)
		return
	}

	for _, c := range commands {
		if c.name == name {
			if err := c.run(args); err != nil {
				log.Fatalf("%s: %v", name, err)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gostt-code <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", c.name, c.usage)
	}
}

func flagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

// flags returns a FlagSet with the shared --config flag.
func flags(name string) (*flag.FlagSet, *string) {
	fs := flagSet(name)
	path := fs.String("config", "", "path to config file (default: ~/.config/gostt-code/config.yaml)")
	return fs, path
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. It also configures
// the default slog logger.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, used, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config validation: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	return cfg, used, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, defaultPath, nil
	}

	// No config file, use defaults
	return config.Default(), "", nil
}
