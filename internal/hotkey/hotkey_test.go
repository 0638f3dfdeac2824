package hotkey

import "testing"

func TestNewListener(t *testing.T) {
	l, err := NewListener("toggle",
		Binding{Name: "record", Keys: []string{"Ctrl", " shift", "r"}},
		Binding{Name: "chat"},
	)
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	b := l.Bindings()
	if len(b) != 1 {
		t.Fatalf("got %d bindings, want 1 (empty combos skipped)", len(b))
	}
	if got := Combo(b[0].Keys); got != "ctrl+shift+r" {
		t.Errorf("keys = %q, want ctrl+shift+r", got)
	}
}

func TestNewListenerErrors(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		bindings []Binding
	}{
		{"bad mode", "press", []Binding{{Name: "record", Keys: []string{"f9"}}}},
		{"no bindings", "hold", nil},
		{"duplicate", "hold", []Binding{
			{Name: "record", Keys: []string{"ctrl", "r"}},
			{Name: "chat", Keys: []string{"CTRL", "R"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewListener(tt.mode, tt.bindings...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEvents(t *testing.T) {
	tests := []struct {
		mode   string
		down   bool
		want   EventType
		wantOK bool
	}{
		{"hold", true, EventStart, true},
		{"hold", false, EventStop, true},
		{"toggle", true, EventToggle, true},
		{"toggle", false, 0, false},
	}
	for _, tt := range tests {
		got, ok := events(tt.mode, tt.down)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("events(%q, %v) = %v, %v; want %v, %v", tt.mode, tt.down, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEmitNonBlocking(t *testing.T) {
	l, err := NewListener("hold", Binding{Name: "record", Keys: []string{"f9"}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < cap(l.ch)+5; i++ {
		l.emit("record", true)
	}
	if len(l.ch) != cap(l.ch) {
		t.Errorf("channel len = %d, want %d", len(l.ch), cap(l.ch))
	}
	ev := <-l.Events()
	if ev.Binding != "record" || ev.Type != EventStart {
		t.Errorf("event = %+v", ev)
	}
}

func TestStopIdempotent(t *testing.T) {
	l, err := NewListener("toggle", Binding{Name: "record", Keys: []string{"f9"}})
	if err != nil {
		t.Fatal(err)
	}
	l.Stop()
	l.Stop()
}

func TestEventTypeString(t *testing.T) {
	if EventToggle.String() != "toggle" || EventType(9).String() != "EventType(9)" {
		t.Error("unexpected EventType strings")
	}
}
