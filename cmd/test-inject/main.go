// Command test-inject is a manual test for the desktop host.
// It waits 3 seconds, then reports the focused window and delivers test
// text with the chosen insertion mode.
// Focus an editor before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-inject [--method type|paste] [--mode cursor|new-line|comment|clipboard|chat]
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/host/desktop"
	"github.com/chaz8081/gostt-code/internal/inject"
)

func main() {
	method := flag.String("method", "type", "inject method: type or paste")
	modeName := flag.String("mode", "cursor", "insertion mode")
	text := flag.String("text", "Hello from gostt-code!", "text to deliver")
	flag.Parse()

	mode, err := inject.ParseMode(*modeName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Will deliver %q as %s using %q method in 3 seconds...\n", *text, mode, *method)
	fmt.Println("Focus an editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	ctx := context.Background()
	d := desktop.New(nil, desktop.Options{Method: *method})
	defer d.Close()
	adapter := host.NewAdapter(ctx, d)
	defer adapter.Close()

	snap := adapter.Refresh(ctx)
	fmt.Printf("Focused: %s\n", d.Describe())
	fmt.Printf("Editor:  %s, context %s, language %q\n", adapter.Variant(), snap.Type, snap.LanguageID)

	if err := inject.NewSink(adapter, nil).Inject(ctx, *text, mode); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
