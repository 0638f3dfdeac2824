// Package bridge is the editor backend reached through a companion editor
// extension. The extension connects over a local WebSocket, streams editor
// state and executes edit requests on the daemon's behalf.
package bridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/notify"
	"github.com/chaz8081/gostt-code/internal/status"
)

const (
	helloTimeout  = 10 * time.Second
	writeTimeout  = 5 * time.Second
	notifyTimeout = 2 * time.Minute
)

// CommandHandler runs a command sent by the editor.
type CommandHandler func(ctx context.Context, name string, args map[string]string) error

// Server accepts one editor connection at a time. A new connection
// replaces the previous one.
type Server struct {
	token          string
	requestTimeout time.Duration
	upgrader       websocket.Upgrader

	mu        sync.Mutex
	conn      *conn
	app       string
	scheme    string
	state     host.State
	hasState  bool
	subs      map[int]func(host.ChangeKind)
	nextSub   int
	onCommand CommandHandler
	closed    bool
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	// pending holds requests awaiting a result on this connection. Guarded
	// by Server.mu.
	pending map[string]chan Result
}

func (c *conn) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

// NewServer returns a bridge server. An empty token accepts any client.
func NewServer(token string, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	return &Server{
		token:          token,
		requestTimeout: requestTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Editor webviews and extension hosts send varied origins; access
			// is controlled by the loopback listener and the token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[int]func(host.ChangeKind)),
	}
}

// HandleCommands sets the handler for editor-initiated commands.
func (s *Server) HandleCommands(h CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommand = h
}

// ListenAndServe serves the bridge at addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("[bridge] listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("bridge: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

// ServeHTTP upgrades the request and runs the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[bridge] upgrade failed", "error", err)
		return
	}

	hello, err := s.readHello(ws)
	if err != nil {
		slog.Warn("[bridge] rejected client", "remote", r.RemoteAddr, "error", err)
		if msg, eerr := encode(TypeError, "", Result{Code: string(apperr.CodeHostUnavailable), Error: err.Error()}); eerr == nil {
			_ = ws.WriteJSON(msg)
		}
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	c := &conn{ws: ws, pending: make(map[string]chan Result)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	prev := s.conn
	s.conn = c
	s.app = hello.App
	s.scheme = hello.Scheme
	s.hasState = false
	s.mu.Unlock()
	if prev != nil {
		slog.Info("[bridge] replacing previous editor connection")
		s.disconnect(prev)
	}

	variant := host.Detect(s)
	slog.Info("[bridge] editor connected", "app", hello.App, "variant", variant, "version", hello.Version)
	if msg, err := encode(TypeWelcome, "", Welcome{Variant: variant}); err == nil {
		_ = c.send(msg)
	}
	s.emit(host.ChangeEditor)

	s.readLoop(c)
}

func (s *Server) readHello(ws *websocket.Conn) (Hello, error) {
	_ = ws.SetReadDeadline(time.Now().Add(helloTimeout))
	defer ws.SetReadDeadline(time.Time{})

	var msg Message
	if err := ws.ReadJSON(&msg); err != nil {
		return Hello{}, fmt.Errorf("reading hello: %w", err)
	}
	if msg.Type != TypeHello {
		return Hello{}, fmt.Errorf("expected hello, got %q", msg.Type)
	}
	var h Hello
	if err := json.Unmarshal(msg.Data, &h); err != nil {
		return Hello{}, fmt.Errorf("decoding hello: %w", err)
	}
	if s.token != "" && subtle.ConstantTimeCompare([]byte(h.Token), []byte(s.token)) != 1 {
		return Hello{}, errors.New("invalid token")
	}
	return h, nil
}

func (s *Server) readLoop(c *conn) {
	defer s.disconnect(c)
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("[bridge] read ended", "error", err)
			}
			return
		}
		switch msg.Type {
		case TypeState:
			var up StateUpdate
			if err := json.Unmarshal(msg.Data, &up); err != nil {
				slog.Warn("[bridge] bad state message", "error", err)
				continue
			}
			s.mu.Lock()
			s.state = up.State
			s.hasState = true
			s.mu.Unlock()
			kind := up.Kind
			if kind == "" {
				kind = host.ChangeEditor
			}
			s.emit(kind)
		case TypeResult:
			var res Result
			if err := json.Unmarshal(msg.Data, &res); err != nil {
				slog.Warn("[bridge] bad result message", "error", err)
				continue
			}
			s.resolve(c, msg.ID, res)
		case TypeCommand:
			var cmd Command
			if err := json.Unmarshal(msg.Data, &cmd); err != nil {
				slog.Warn("[bridge] bad command message", "error", err)
				continue
			}
			go s.runCommand(c, msg.ID, cmd)
		default:
			slog.Debug("[bridge] ignoring message", "type", msg.Type)
		}
	}
}

func (s *Server) runCommand(c *conn, id string, cmd Command) {
	s.mu.Lock()
	h := s.onCommand
	s.mu.Unlock()

	res := Result{OK: true}
	if h == nil {
		res = Result{Code: string(apperr.CodeInternal), Error: "no command handler"}
	} else if err := h(context.Background(), cmd.Name, cmd.Args); err != nil {
		ae := apperr.Normalize(err)
		res = Result{Code: string(ae.Code), Error: ae.UserMessage()}
	}
	if msg, err := encode(TypeResult, id, res); err == nil {
		if err := c.send(msg); err != nil {
			slog.Debug("[bridge] command reply failed", "error", err)
		}
	}
}

func (s *Server) resolve(c *conn, id string, res Result) {
	s.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	s.mu.Unlock()
	if !ok {
		slog.Debug("[bridge] result for unknown request", "id", id)
		return
	}
	ch <- res
}

// disconnect closes c and fails its pending requests. It is safe to call
// more than once and for a connection that has already been replaced.
func (s *Server) disconnect(c *conn) {
	_ = c.ws.Close()
	s.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan Result)
	current := s.conn == c
	if current {
		s.conn = nil
		s.hasState = false
		s.state = host.State{}
	}
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- Result{Code: string(apperr.CodeHostUnavailable), Error: "editor disconnected"}
	}
	if !current {
		return
	}
	slog.Info("[bridge] editor disconnected")
	s.emit(host.ChangeEditor)
}

func (s *Server) emit(kind host.ChangeKind) {
	s.mu.Lock()
	fns := make([]func(host.ChangeKind), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(kind)
	}
}

// Connected reports whether an editor is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Server) current() (*conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, apperr.New(apperr.CodeHostUnavailable, "no editor is connected; open the editor with the gostt-code extension installed")
	}
	return s.conn, nil
}

// call sends a message that expects a result and waits for it.
func (s *Server) call(ctx context.Context, typ string, v any, timeout time.Duration) (Result, error) {
	c, err := s.current()
	if err != nil {
		return Result{}, err
	}
	id := uuid.NewString()
	msg, err := encode(typ, id, v)
	if err != nil {
		return Result{}, fmt.Errorf("bridge: encoding %s: %w", typ, err)
	}

	ch := make(chan Result, 1)
	s.mu.Lock()
	if s.conn != c {
		s.mu.Unlock()
		return Result{}, apperr.New(apperr.CodeHostUnavailable, "editor disconnected")
	}
	c.pending[id] = ch
	s.mu.Unlock()
	cleanup := func() {
		s.mu.Lock()
		delete(c.pending, id)
		s.mu.Unlock()
	}

	if err := c.send(msg); err != nil {
		cleanup()
		return Result{}, apperr.Wrap(apperr.CodeHostUnavailable, err, "sending to editor")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		cleanup()
		return Result{}, apperr.Newf(apperr.CodeTimeout, "editor did not answer %s within %s", typ, timeout)
	case <-ctx.Done():
		cleanup()
		return Result{}, apperr.Normalize(ctx.Err())
	}
}

func (s *Server) edit(ctx context.Context, op, text string) error {
	res, err := s.call(ctx, TypeRequest, Request{Op: op, Text: text}, s.requestTimeout)
	if err != nil {
		return err
	}
	if !res.OK {
		code := apperr.Code(res.Code)
		if code == "" {
			code = apperr.CodeInternal
		}
		return apperr.New(code, res.Error)
	}
	return nil
}

func (s *Server) AppName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app
}

func (s *Server) URIScheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheme
}

// State returns the last state the editor reported.
func (s *Server) State(context.Context) (host.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return host.State{}, apperr.New(apperr.CodeHostUnavailable, "no editor is connected")
	}
	if !s.hasState {
		return host.State{}, nil
	}
	return s.state, nil
}

func (s *Server) Subscribe(fn func(host.ChangeKind)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Server) InsertText(ctx context.Context, text string) error {
	return s.edit(ctx, OpInsert, text)
}

func (s *Server) ReplaceSelection(ctx context.Context, text string) error {
	return s.edit(ctx, OpReplace, text)
}

func (s *Server) InsertLine(ctx context.Context, text string) error {
	return s.edit(ctx, OpLine, text)
}

func (s *Server) PasteToChat(ctx context.Context, text string) error {
	return s.edit(ctx, OpChat, text)
}

// Notify shows n in the editor and returns the button the user picked.
func (s *Server) Notify(ctx context.Context, n notify.Notice) (string, error) {
	res, err := s.call(ctx, TypeNotify, n, notifyTimeout)
	if err != nil {
		return "", err
	}
	return res.Action, nil
}

// Render forwards status changes to the editor's status bar.
func (s *Server) Render(u status.Update) {
	c, err := s.current()
	if err != nil {
		return
	}
	msg, err := encode(TypeStatus, "", StatusUpdate{State: string(u.State), Message: u.Message})
	if err != nil {
		return
	}
	if err := c.send(msg); err != nil {
		slog.Debug("[bridge] status send failed", "error", err)
	}
}

// Close drops the editor connection and refuses new ones.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	c := s.conn
	s.mu.Unlock()
	if c != nil {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
			time.Now().Add(time.Second))
		s.disconnect(c)
	}
	return nil
}

var (
	_ host.Host       = (*Server)(nil)
	_ notify.Notifier = (*Server)(nil)
	_ status.Renderer = (*Server)(nil)
)
