// Package audio captures microphone input and encodes it for upload.
//
// Two capturers are provided: FFmpeg drives an external ffmpeg process and
// reads raw PCM from its stdout; Native records in-process with miniaudio.
// Both share the same session logic for silence and max-duration cutoffs.
package audio

import (
	"context"
	"time"
)

// StopReason explains why a capture ended.
type StopReason string

const (
	StopManual      StopReason = "manual"
	StopSilence     StopReason = "silence"
	StopMaxDuration StopReason = "max_duration"
	StopEnded       StopReason = "ended" // the capture source closed on its own
)

// Options configure one capture.
type Options struct {
	SampleRate uint32
	Channels   uint32
	// Format is the container delivered to the caller: wav, flac, mp3, ogg,
	// webm or m4a. Anything but wav needs ffmpeg for transcoding.
	Format string
	// Device selects an input by ID or name. Empty means the default.
	Device      string
	MaxDuration time.Duration
	// SilenceThreshold is an RMS level in [0,1]; frames below it count as
	// silence.
	SilenceThreshold float64
	// SilenceTimeout stops the capture after this much continuous silence.
	// Zero disables the cutoff.
	SilenceTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.SampleRate == 0 {
		o.SampleRate = 16000
	}
	if o.Channels == 0 {
		o.Channels = 1
	}
	if o.Format == "" {
		o.Format = "wav"
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 5 * time.Minute
	}
	return o
}

// Recording is a finished capture.
type Recording struct {
	Data       []byte
	Format     string
	SampleRate uint32
	Channels   uint32
	Duration   time.Duration
	Reason     StopReason
	// Level is the RMS level of the whole recording, in [0,1].
	Level float64
}

// Filename is the name used when uploading the recording.
func (r *Recording) Filename() string {
	return "recording." + r.Format
}

// Device is an input device.
type Device struct {
	ID      string
	Name    string
	Default bool
}

// ToolInfo describes the capture backend found on this machine.
type ToolInfo struct {
	Name    string
	Path    string
	Version string
}

// DoneFunc receives the result of a capture exactly once.
type DoneFunc func(*Recording, error)

// Capturer records audio. Only one capture may be active at a time.
type Capturer interface {
	// Check verifies the backend is usable.
	Check(ctx context.Context) (ToolInfo, error)
	// Devices lists input devices.
	Devices(ctx context.Context) ([]Device, error)
	// Start begins capturing. done is called exactly once when the capture
	// ends for any reason, including Cancel.
	Start(ctx context.Context, opts Options, done DoneFunc) error
	// Stop ends the capture and delivers the recording to done.
	Stop() error
	// Cancel ends the capture and discards the audio. done receives a
	// canceled error.
	Cancel() error
	// IsRecording reports whether a capture is active.
	IsRecording() bool
}
