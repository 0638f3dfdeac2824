// Package mcpserver exposes transcription history and file transcription as
// Model Context Protocol tools over stdio, so an editor's AI agent can pull
// what the user just dictated.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/history"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Store is the subset of the history store the tools read.
type Store interface {
	Last(ctx context.Context) (*history.Entry, error)
	Recent(ctx context.Context, n int) ([]history.Entry, error)
	Search(ctx context.Context, q string, n int) ([]history.Entry, error)
}

// FileTranscriber transcribes an audio file on disk.
type FileTranscriber func(ctx context.Context, path string) (string, error)

// Server holds the tool handlers.
type Server struct {
	store      Store
	transcribe FileTranscriber
	mcp        *server.MCPServer
}

// New registers the tools. transcribe may be nil, in which case
// transcribe_file is not offered.
func New(store Store, transcribe FileTranscriber, version string) *Server {
	s := &Server{
		store:      store,
		transcribe: transcribe,
		mcp:        server.NewMCPServer("gostt-code", version, server.WithToolCapabilities(true)),
	}

	s.mcp.AddTool(mcp.NewTool("last_transcription",
		mcp.WithDescription("Return the most recent voice transcription."),
	), s.handleLast)

	s.mcp.AddTool(mcp.NewTool("transcription_history",
		mcp.WithDescription("List recent voice transcriptions, newest first, optionally filtered by a search string."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 10, max 100)")),
		mcp.WithString("query", mcp.Description("Only return transcriptions containing this text")),
	), s.handleHistory)

	if transcribe != nil {
		s.mcp.AddTool(mcp.NewTool("transcribe_file",
			mcp.WithDescription("Transcribe an audio file (wav, flac, mp3, ogg, webm, m4a) with the configured speech-to-text API."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the audio file")),
		), s.handleTranscribeFile)
	}
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type entryView struct {
	ID        int64   `json:"id"`
	Text      string  `json:"text"`
	Language  string  `json:"language,omitempty"`
	Mode      string  `json:"mode,omitempty"`
	Host      string  `json:"host,omitempty"`
	Seconds   float64 `json:"duration_seconds,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func viewOf(e history.Entry) entryView {
	return entryView{
		ID:        e.ID,
		Text:      e.Text,
		Language:  e.Language,
		Mode:      e.Mode,
		Host:      e.Host,
		Seconds:   e.Duration.Seconds(),
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleLast(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, err := s.store.Last(ctx)
	if err != nil {
		return mcp.NewToolResultError("reading history: " + err.Error()), nil
	}
	if e == nil {
		return mcp.NewToolResultError("no transcriptions yet"), nil
	}
	return mcp.NewToolResultText(e.Text), nil
}

func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	query := strings.TrimSpace(req.GetString("query", ""))

	var (
		entries []history.Entry
		err     error
	)
	if query != "" {
		entries, err = s.store.Search(ctx, query, limit)
	} else {
		entries, err = s.store.Recent(ctx, limit)
	}
	if err != nil {
		return mcp.NewToolResultError("reading history: " + err.Error()), nil
	}

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e))
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encoding history: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleTranscribeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := os.Stat(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	text, err := s.transcribe(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(apperr.Normalize(err).UserMessage()), nil
	}
	return mcp.NewToolResultText(text), nil
}
