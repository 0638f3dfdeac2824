package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
)

// stopGrace is how long ffmpeg gets to flush after "q" before it is killed.
const stopGrace = 3 * time.Second

// FFmpeg captures audio by running ffmpeg and reading s16le PCM from stdout.
type FFmpeg struct {
	// Path is the ffmpeg binary name or path.
	Path string
	// InputFormat is the ffmpeg -f value. Empty picks one for the OS.
	InputFormat string

	mu     sync.Mutex
	active *ffmpegRun
}

type ffmpegRun struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	sess   *session
	stderr *limitedBuffer
	exited chan struct{}
}

// NewFFmpeg returns an FFmpeg capturer for the given binary.
func NewFFmpeg(path, inputFormat string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, InputFormat: inputFormat}
}

// defaultInputFormat is the ffmpeg input device family for an OS.
func defaultInputFormat(goos string) string {
	switch goos {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func (f *FFmpeg) inputFormat() string {
	if f.InputFormat != "" {
		return f.InputFormat
	}
	return defaultInputFormat(runtime.GOOS)
}

// lookPath resolves the binary or returns the install-tool error.
func (f *FFmpeg) lookPath() (string, error) {
	p, err := exec.LookPath(f.Path)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeCaptureToolMissing, err,
			fmt.Sprintf("ffmpeg was not found (%s); install it and make sure it is on PATH", f.Path))
	}
	return p, nil
}

// Check runs "ffmpeg -version" and reports the version line.
func (f *FFmpeg) Check(ctx context.Context) (ToolInfo, error) {
	path, err := f.lookPath()
	if err != nil {
		return ToolInfo{}, err
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ToolInfo{}, apperr.Wrap(apperr.CodeCaptureToolMissing, err, "ffmpeg -version failed")
	}
	return ToolInfo{Name: "ffmpeg", Path: path, Version: parseVersion(string(out))}, nil
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, fld := range fields {
		if fld == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}

// Devices lists input devices using ffmpeg's device enumeration. ffmpeg
// exits non-zero for listing commands, so only the output is inspected.
func (f *FFmpeg) Devices(ctx context.Context) ([]Device, error) {
	path, err := f.lookPath()
	if err != nil {
		return nil, err
	}
	format := f.inputFormat()
	var args []string
	switch format {
	case "avfoundation":
		args = []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}
	case "dshow":
		args = []string{"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy"}
	default:
		args = []string{"-hide_banner", "-sources", format}
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	_ = cmd.Run()

	var devices []Device
	switch format {
	case "avfoundation":
		devices = parseAVFoundationDevices(out.String())
	case "dshow":
		devices = parseDShowDevices(out.String())
	default:
		devices = parseSources(out.String())
	}
	if len(devices) == 0 {
		return nil, apperr.New(apperr.CodeNoInputDevice, "no audio input devices were found")
	}
	return devices, nil
}

// captureArgs builds the ffmpeg command line for a capture.
func captureArgs(format, device string, opts Options) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats", "-f", format}
	args = append(args, "-i", inputSpec(format, device))
	args = append(args,
		"-ac", strconv.Itoa(int(opts.Channels)),
		"-ar", strconv.Itoa(int(opts.SampleRate)),
		"-t", strconv.FormatFloat(opts.MaxDuration.Seconds(), 'f', -1, 64),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	)
	return args
}

// inputSpec formats the -i value for a device family.
func inputSpec(format, device string) string {
	switch format {
	case "avfoundation":
		if device == "" {
			return ":default"
		}
		if strings.HasPrefix(device, ":") {
			return device
		}
		return ":" + device
	case "dshow":
		if strings.HasPrefix(device, "audio=") {
			return device
		}
		return "audio=" + device
	default:
		if device == "" {
			return "default"
		}
		return device
	}
}

// Start launches ffmpeg and begins reading PCM.
func (f *FFmpeg) Start(ctx context.Context, opts Options, done DoneFunc) error {
	opts = opts.withDefaults()
	if f.IsRecording() {
		return apperr.New(apperr.CodeAlreadyRecording, "a recording is already in progress")
	}

	path, err := f.lookPath()
	if err != nil {
		return err
	}
	format := f.inputFormat()
	device := opts.Device
	if format == "dshow" && device == "" {
		// dshow has no implicit default device.
		devices, err := f.Devices(ctx)
		if err != nil {
			return err
		}
		device = devices[0].Name
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		return apperr.New(apperr.CodeAlreadyRecording, "a recording is already in progress")
	}

	cmd := exec.Command(path, captureArgs(format, device, opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return apperr.Wrap(apperr.CodeCaptureFailed, err, "ffmpeg stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperr.Wrap(apperr.CodeCaptureFailed, err, "ffmpeg stdout")
	}
	stderr := &limitedBuffer{max: 16 * 1024}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.CodeCaptureFailed, err, "starting ffmpeg")
	}
	slog.Debug("[audio] ffmpeg started", "pid", cmd.Process.Pid, "format", format, "device", device)

	run := &ffmpegRun{
		cmd:    cmd,
		stdin:  stdin,
		sess:   newSession(opts, done),
		stderr: stderr,
		exited: make(chan struct{}),
	}
	f.active = run

	go f.read(run, stdout)
	go f.supervise(ctx, run)
	return nil
}

// read pumps PCM into the session until ffmpeg closes stdout, then waits
// for the process and finishes the session.
func (f *FFmpeg) read(run *ffmpegRun, stdout io.Reader) {
	r := bufio.NewReaderSize(stdout, 32*1024)
	buf := make([]byte, 8192)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append(carry, buf[:n]...)
			even := len(chunk) &^ 1
			run.sess.write(bytesToInt16(chunk[:even]))
			carry = append(carry[:0], chunk[even:]...)
		}
		if err != nil {
			break
		}
	}

	waitErr := run.cmd.Wait()
	close(run.exited)

	f.mu.Lock()
	if f.active == run {
		f.active = nil
	}
	f.mu.Unlock()

	var srcErr error
	if waitErr != nil {
		srcErr = classifyStderr(run.stderr.String(), waitErr)
		slog.Debug("[audio] ffmpeg exited", "error", waitErr, "stderr", run.stderr.String())
	}
	run.sess.finish(srcErr, func(wav []byte) ([]byte, error) {
		return transcode(context.Background(), run.cmd.Path, wav, run.sess.opts)
	})
}

// supervise turns stop requests and context cancellation into ffmpeg
// shutdown: "q" on stdin first, then a kill after stopGrace.
func (f *FFmpeg) supervise(ctx context.Context, run *ffmpegRun) {
	select {
	case <-run.exited:
		return
	case <-run.sess.stopReq:
	case <-ctx.Done():
		run.sess.cancel()
	}

	run.sess.mu.Lock()
	canceled := run.sess.canceled
	run.sess.mu.Unlock()

	if canceled {
		_ = run.cmd.Process.Kill()
		return
	}

	_, _ = io.WriteString(run.stdin, "q\n")
	_ = run.stdin.Close()
	select {
	case <-run.exited:
	case <-time.After(stopGrace):
		slog.Warn("[audio] ffmpeg did not exit after stop, killing", "pid", run.cmd.Process.Pid)
		_ = run.cmd.Process.Kill()
	}
}

// Stop ends the capture; the recording is delivered to the done callback.
func (f *FFmpeg) Stop() error {
	f.mu.Lock()
	run := f.active
	f.mu.Unlock()
	if run == nil {
		return apperr.New(apperr.CodeNotRecording, "no recording is in progress")
	}
	run.sess.requestStop(StopManual)
	return nil
}

// Cancel kills ffmpeg and discards the audio.
func (f *FFmpeg) Cancel() error {
	f.mu.Lock()
	run := f.active
	f.mu.Unlock()
	if run == nil {
		return apperr.New(apperr.CodeNotRecording, "no recording is in progress")
	}
	run.sess.cancel()
	return nil
}

// IsRecording reports whether ffmpeg is running.
func (f *FFmpeg) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active != nil
}

// classifyStderr maps ffmpeg's complaint to an error code.
func classifyStderr(stderr string, cause error) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "operation not permitted"):
		return apperr.Wrap(apperr.CodePermissionDenied, cause,
			"microphone access was denied; grant it in your system privacy settings")
	case strings.Contains(lower, "no such device"),
		strings.Contains(lower, "could not find audio"),
		strings.Contains(lower, "cannot open audio device"),
		strings.Contains(lower, "input/output error"),
		strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "could not enumerate"),
		strings.Contains(lower, "connection refused"):
		return apperr.Wrap(apperr.CodeNoInputDevice, cause, "the audio input device could not be opened")
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = "ffmpeg exited unexpectedly"
	}
	return apperr.Wrap(apperr.CodeCaptureFailed, cause, truncateLine(msg, 200))
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// codecFor maps an output format to ffmpeg codec arguments.
func codecFor(format string) ([]string, error) {
	switch format {
	case "flac":
		return []string{"-c:a", "flac"}, nil
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", "64k"}, nil
	case "ogg":
		return []string{"-c:a", "libopus", "-b:a", "32k", "-f", "ogg"}, nil
	case "webm":
		return []string{"-c:a", "libopus", "-b:a", "32k", "-f", "webm"}, nil
	case "m4a":
		return []string{"-c:a", "aac", "-b:a", "64k"}, nil
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// transcode converts WAV bytes into opts.Format with ffmpeg.
func transcode(ctx context.Context, ffmpegPath string, wav []byte, opts Options) ([]byte, error) {
	codec, err := codecFor(opts.Format)
	if err != nil {
		return nil, err
	}
	in := tempPath("wav")
	out := tempPath(opts.Format)
	defer os.Remove(in)
	defer os.Remove(out)

	if err := os.WriteFile(in, wav, 0o600); err != nil {
		return nil, fmt.Errorf("write temp wav: %w", err)
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", in,
		"-ac", strconv.Itoa(int(opts.Channels)), "-ar", strconv.Itoa(int(opts.SampleRate))}
	args = append(args, codec...)
	args = append(args, out)

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	return data, nil
}
