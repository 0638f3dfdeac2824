package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/chaz8081/gostt-code/internal/apperr"
)

// Native captures audio in-process with miniaudio. It only produces WAV;
// other formats need the ffmpeg backend.
type Native struct {
	ctx *malgo.AllocatedContext

	mu     sync.Mutex
	device *malgo.Device
	sess   *session
}

// NewNative initializes a miniaudio context. Call Close when done.
func NewNative() (*Native, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCaptureFailed, err, "initializing audio context")
	}
	return &Native{ctx: ctx}, nil
}

// Check reports the miniaudio backend.
func (n *Native) Check(context.Context) (ToolInfo, error) {
	return ToolInfo{Name: "miniaudio", Path: "(built in)"}, nil
}

// Devices lists capture devices.
func (n *Native) Devices(context.Context) ([]Device, error) {
	infos, err := n.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCaptureFailed, err, "listing capture devices")
	}
	if len(infos) == 0 {
		return nil, apperr.New(apperr.CodeNoInputDevice, "no audio input devices were found")
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:      info.ID.String(),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// findDevice returns the device whose name or ID matches want.
func (n *Native) findDevice(want string) (*malgo.DeviceInfo, error) {
	infos, err := n.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCaptureFailed, err, "listing capture devices")
	}
	for i := range infos {
		if infos[i].ID.String() == want || strings.EqualFold(infos[i].Name(), want) {
			return &infos[i], nil
		}
	}
	return nil, apperr.Newf(apperr.CodeNoInputDevice, "audio input device %q was not found", want)
}

// Start opens the capture device and begins recording 16-bit PCM.
func (n *Native) Start(ctx context.Context, opts Options, done DoneFunc) error {
	opts = opts.withDefaults()
	if opts.Format != "wav" {
		return apperr.Newf(apperr.CodeInvalidConfig, "the native backend only records wav, not %s", opts.Format)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sess != nil {
		return apperr.New(apperr.CodeAlreadyRecording, "a recording is already in progress")
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = opts.Channels
	deviceCfg.SampleRate = opts.SampleRate
	if opts.Device != "" {
		info, err := n.findDevice(opts.Device)
		if err != nil {
			return err
		}
		deviceCfg.Capture.DeviceID = info.ID.Pointer()
	}

	sess := newSession(opts, done)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			want := int(frameCount*opts.Channels) * 2
			if want > len(pSample) {
				want = len(pSample)
			}
			sess.write(bytesToInt16(pSample[:want]))
		},
	}

	device, err := malgo.InitDevice(n.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return apperr.Wrap(apperr.CodeNoInputDevice, err, "initializing capture device")
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return apperr.Wrap(apperr.CodePermissionDenied, err, "starting capture device")
	}

	n.device = device
	n.sess = sess
	slog.Debug("[audio] native capture started", "rate", opts.SampleRate, "channels", opts.Channels)

	go n.supervise(ctx, sess)
	return nil
}

// supervise waits for a stop request, releases the device and finishes the
// session. The device must not be uninitialized from its own callback.
func (n *Native) supervise(ctx context.Context, sess *session) {
	select {
	case <-sess.stopReq:
	case <-ctx.Done():
		sess.cancel()
	}

	n.mu.Lock()
	device := n.device
	n.device = nil
	n.sess = nil
	n.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	sess.finish(nil, nil)
}

// Stop ends the capture.
func (n *Native) Stop() error {
	n.mu.Lock()
	sess := n.sess
	n.mu.Unlock()
	if sess == nil {
		return apperr.New(apperr.CodeNotRecording, "no recording is in progress")
	}
	sess.requestStop(StopManual)
	return nil
}

// Cancel ends the capture and discards the audio.
func (n *Native) Cancel() error {
	n.mu.Lock()
	sess := n.sess
	n.mu.Unlock()
	if sess == nil {
		return apperr.New(apperr.CodeNotRecording, "no recording is in progress")
	}
	sess.cancel()
	return nil
}

// IsRecording reports whether a capture is active.
func (n *Native) IsRecording() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sess != nil
}

// Close stops any capture and releases the audio context.
func (n *Native) Close() error {
	n.mu.Lock()
	sess := n.sess
	n.mu.Unlock()
	if sess != nil {
		sess.cancel()
		deadline := time.Now().Add(2 * time.Second)
		for n.IsRecording() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}

	if n.ctx != nil {
		if err := n.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		n.ctx.Free()
		n.ctx = nil
	}
	return nil
}
