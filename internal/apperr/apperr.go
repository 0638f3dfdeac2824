// Package apperr defines the closed error taxonomy shared by every
// component: a Code identifies what went wrong, and a static table maps each
// code to its category, its retryability and the recovery action offered to
// the user.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Category groups codes by who can fix the problem.
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryConnectivity  Category = "connectivity"
	CategoryInput         Category = "input"
	CategoryEnvironment   Category = "environment"
	CategoryInternal      Category = "internal"
)

// Action is a recovery action that may be offered alongside an error.
type Action string

const (
	ActionNone         Action = ""
	ActionOpenSettings Action = "open-settings"
	ActionInstallTool  Action = "install-tool"
	ActionRetry        Action = "retry"
)

// Label returns the button text shown for an action.
func (a Action) Label() string {
	switch a {
	case ActionOpenSettings:
		return "Open Settings"
	case ActionInstallTool:
		return "Install Instructions"
	case ActionRetry:
		return "Retry"
	default:
		return ""
	}
}

// Code identifies a specific failure.
type Code string

const (
	CodeMissingCredential  Code = "missing_credential"
	CodeInvalidCredential  Code = "invalid_credential"
	CodeInvalidConfig      Code = "invalid_config"
	CodeRateLimited        Code = "rate_limited"
	CodePayloadTooLarge    Code = "payload_too_large"
	CodeAPI                Code = "api_error"
	CodeServer             Code = "server_error"
	CodeNetwork            Code = "network_error"
	CodeTimeout            Code = "timeout"
	CodeEmptyAudio         Code = "empty_audio"
	CodeAudioTooLarge      Code = "audio_too_large"
	CodeEmptyTranscript    Code = "empty_transcript"
	CodeAlreadyRecording   Code = "already_recording"
	CodeNotRecording       Code = "not_recording"
	CodeBusy               Code = "busy"
	CodeNoTranscription    Code = "no_transcription"
	CodeInvalidMode        Code = "invalid_mode"
	CodeNoActiveEditor     Code = "no_active_editor"
	CodeNoSelection        Code = "no_selection"
	CodeCaptureToolMissing Code = "capture_tool_missing"
	CodePermissionDenied   Code = "permission_denied"
	CodeNoInputDevice      Code = "no_input_device"
	CodeCaptureFailed      Code = "capture_failed"
	CodeClipboard          Code = "clipboard_error"
	CodeChatPanel          Code = "chat_error"
	CodeHostUnavailable    Code = "host_unavailable"
	CodeCanceled           Code = "canceled"
	CodeInternal           Code = "internal"
)

type codeInfo struct {
	category  Category
	retryable bool
	action    Action
}

var codes = map[Code]codeInfo{
	CodeMissingCredential:  {CategoryConfiguration, false, ActionOpenSettings},
	CodeInvalidCredential:  {CategoryConfiguration, false, ActionOpenSettings},
	CodeInvalidConfig:      {CategoryConfiguration, false, ActionOpenSettings},
	CodeRateLimited:        {CategoryConnectivity, true, ActionRetry},
	CodePayloadTooLarge:    {CategoryInput, false, ActionNone},
	CodeAPI:                {CategoryConnectivity, false, ActionNone},
	CodeServer:             {CategoryConnectivity, true, ActionRetry},
	CodeNetwork:            {CategoryConnectivity, true, ActionRetry},
	CodeTimeout:            {CategoryConnectivity, true, ActionRetry},
	CodeEmptyAudio:         {CategoryInput, false, ActionNone},
	CodeAudioTooLarge:      {CategoryInput, false, ActionNone},
	CodeEmptyTranscript:    {CategoryInput, false, ActionNone},
	CodeAlreadyRecording:   {CategoryInput, false, ActionNone},
	CodeNotRecording:       {CategoryInput, false, ActionNone},
	CodeBusy:               {CategoryInput, false, ActionNone},
	CodeNoTranscription:    {CategoryInput, false, ActionNone},
	CodeInvalidMode:        {CategoryInput, false, ActionOpenSettings},
	CodeNoActiveEditor:     {CategoryEnvironment, false, ActionNone},
	CodeNoSelection:        {CategoryInput, false, ActionNone},
	CodeCaptureToolMissing: {CategoryEnvironment, false, ActionInstallTool},
	CodePermissionDenied:   {CategoryEnvironment, false, ActionNone},
	CodeNoInputDevice:      {CategoryEnvironment, false, ActionOpenSettings},
	CodeCaptureFailed:      {CategoryEnvironment, false, ActionRetry},
	CodeClipboard:          {CategoryEnvironment, false, ActionNone},
	CodeChatPanel:          {CategoryEnvironment, false, ActionNone},
	CodeHostUnavailable:    {CategoryEnvironment, false, ActionNone},
	CodeCanceled:           {CategoryInput, false, ActionNone},
	CodeInternal:           {CategoryInternal, false, ActionNone},
}

// Category returns the category a code belongs to.
func (c Code) Category() Category {
	if info, ok := codes[c]; ok {
		return info.category
	}
	return CategoryInternal
}

// Error is the typed error carried across package boundaries.
type Error struct {
	Code    Code
	Message string
	// Action overrides the code's default recovery action when set.
	Action Action
	// RetryAfter is a server-provided hint for the next attempt.
	RetryAfter time.Duration
	Err        error
}

// New returns an *Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error that wraps err.
func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code, so callers can
// write errors.Is(err, apperr.New(apperr.CodeBusy, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Category returns the error's category.
func (e *Error) Category() Category { return e.Code.Category() }

// Retryable reports whether a retry may succeed.
func (e *Error) Retryable() bool { return codes[e.Code].retryable }

// Recovery returns the action to offer the user.
func (e *Error) Recovery() Action {
	if e.Action != ActionNone {
		return e.Action
	}
	return codes[e.Code].action
}

// RetryAfterHint returns the server-provided wait before the next attempt.
func (e *Error) RetryAfterHint() time.Duration { return e.RetryAfter }

// WithAction returns a copy of e offering a different recovery action.
func (e *Error) WithAction(a Action) *Error {
	cp := *e
	cp.Action = a
	return &cp
}

// UserMessage is the text shown in notifications: the message without the
// code prefix or wrapped cause.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none. A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Normalize(err).Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Normalize(err).Retryable()
}

// Normalize converts any error into an *Error. Context deadlines become
// timeouts, cancellation becomes CodeCanceled, net.Error becomes a network
// error and anything else is internal.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeTimeout, err, "request timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(CodeCanceled, err, "canceled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(CodeTimeout, err, "request timed out")
		}
		return Wrap(CodeNetwork, err, "network error")
	}
	return Wrap(CodeInternal, err, "")
}
