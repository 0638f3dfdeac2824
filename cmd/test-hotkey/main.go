// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press the record (Ctrl+Shift+R) or chat (Ctrl+Shift+C)
// combo to see events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--mode hold|toggle]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gostt-code/internal/hotkey"
)

func main() {
	mode := flag.String("mode", "toggle", "hotkey mode: hold or toggle")
	flag.Parse()

	listener, err := hotkey.NewListener(*mode,
		hotkey.Binding{Name: "record", Keys: []string{"ctrl", "shift", "r"}},
		hotkey.Binding{Name: "record-chat", Keys: []string{"ctrl", "shift", "c"}},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	for _, b := range listener.Bindings() {
		fmt.Printf("Listening for %s (%s) in %q mode...\n", hotkey.Combo(b.Keys), b.Name, *mode)
	}
	fmt.Println("Press Ctrl+C to exit.")

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		for ev := range listener.Events() {
			fmt.Printf(">>> %-11s %s\n", ev.Binding, ev.Type)
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
