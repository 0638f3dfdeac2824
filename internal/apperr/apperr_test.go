package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestEveryCodeHasInfo(t *testing.T) {
	all := []Code{
		CodeMissingCredential, CodeInvalidCredential, CodeInvalidConfig, CodeRateLimited,
		CodePayloadTooLarge, CodeAPI, CodeServer, CodeNetwork, CodeTimeout, CodeEmptyAudio,
		CodeAudioTooLarge, CodeEmptyTranscript, CodeAlreadyRecording, CodeNotRecording,
		CodeBusy, CodeNoTranscription, CodeInvalidMode, CodeNoActiveEditor, CodeNoSelection,
		CodeCaptureToolMissing, CodePermissionDenied, CodeNoInputDevice, CodeCaptureFailed,
		CodeClipboard, CodeChatPanel, CodeHostUnavailable, CodeCanceled, CodeInternal,
	}
	for _, c := range all {
		if _, ok := codes[c]; !ok {
			t.Errorf("code %q missing from table", c)
		}
	}
}

func TestCategoryAndRetryable(t *testing.T) {
	tests := []struct {
		code      Code
		category  Category
		retryable bool
		action    Action
	}{
		{CodeInvalidCredential, CategoryConfiguration, false, ActionOpenSettings},
		{CodeRateLimited, CategoryConnectivity, true, ActionRetry},
		{CodeServer, CategoryConnectivity, true, ActionRetry},
		{CodeAPI, CategoryConnectivity, false, ActionNone},
		{CodeEmptyAudio, CategoryInput, false, ActionNone},
		{CodeCaptureToolMissing, CategoryEnvironment, false, ActionInstallTool},
		{Code("bogus"), CategoryInternal, false, ActionNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := New(tt.code, "x")
			if got := e.Category(); got != tt.category {
				t.Errorf("Category() = %q, want %q", got, tt.category)
			}
			if got := e.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
			if got := e.Recovery(); got != tt.action {
				t.Errorf("Recovery() = %q, want %q", got, tt.action)
			}
		})
	}
}

func TestWithActionOverridesDefault(t *testing.T) {
	e := New(CodeAPI, "bad model").WithAction(ActionOpenSettings)
	if e.Recovery() != ActionOpenSettings {
		t.Errorf("Recovery() = %q, want %q", e.Recovery(), ActionOpenSettings)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"typed", fmt.Errorf("outer: %w", New(CodeNoSelection, "none")), CodeNoSelection},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), CodeTimeout},
		{"canceled", context.Canceled, CodeCanceled},
		{"net timeout", timeoutErr{}, CodeTimeout},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, CodeNetwork},
		{"plain", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.err).Code; got != tt.want {
				t.Errorf("Normalize() code = %q, want %q", got, tt.want)
			}
		})
	}
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) should be nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeNetwork, "")) {
		t.Error("network errors should be retryable")
	}
	if IsRetryable(New(CodeInvalidCredential, "")) {
		t.Error("invalid credential should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestErrorsIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeBusy, "transcription in progress"))
	if !errors.Is(err, New(CodeBusy, "")) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, New(CodeNoSelection, "")) {
		t.Error("errors.Is should not match a different code")
	}
	if !HasCode(err, CodeBusy) {
		t.Error("HasCode(CodeBusy) = false, want true")
	}
}

func TestUserMessage(t *testing.T) {
	e := Wrap(CodeNetwork, errors.New("dial tcp: refused"), "")
	if got := e.UserMessage(); got != "dial tcp: refused" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := New(CodeEmptyAudio, "nothing recorded").Error(); got != "empty_audio: nothing recorded" {
		t.Errorf("Error() = %q", got)
	}
}
