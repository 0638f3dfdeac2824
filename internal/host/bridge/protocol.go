package bridge

import (
	"encoding/json"

	"github.com/chaz8081/gostt-code/internal/host"
)

// Message types. The editor sends hello, state, command and result; the
// daemon sends welcome, request, status, notify and result.
const (
	TypeHello   = "hello"
	TypeWelcome = "welcome"
	TypeState   = "state"
	TypeCommand = "command"
	TypeResult  = "result"
	TypeRequest = "request"
	TypeStatus  = "status"
	TypeNotify  = "notify"
	TypeError   = "error"
)

// Edit operations carried by request messages.
const (
	OpInsert  = "insert"
	OpReplace = "replace"
	OpLine    = "line"
	OpChat    = "chat"
)

// Message is the envelope for every frame.
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hello is the first message from the editor.
type Hello struct {
	App     string `json:"app"`
	Scheme  string `json:"scheme"`
	Version string `json:"version,omitempty"`
	Token   string `json:"token,omitempty"`
}

// Welcome acknowledges a hello.
type Welcome struct {
	Variant host.Variant `json:"variant"`
}

// StateUpdate reports editor state and what changed.
type StateUpdate struct {
	Kind  host.ChangeKind `json:"kind"`
	State host.State      `json:"state"`
}

// Command asks the daemon to run one of its commands.
type Command struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// Request asks the editor to perform an edit.
type Request struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// Result answers a request, notify or command. Code is an error code when
// OK is false; Action is the notification button the user picked.
type Result struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	Action string `json:"action,omitempty"`
}

// StatusUpdate mirrors the daemon's status indicator.
type StatusUpdate struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

func encode(typ, id string, v any) (Message, error) {
	msg := Message{Type: typ, ID: id}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return Message{}, err
		}
		msg.Data = data
	}
	return msg, nil
}
