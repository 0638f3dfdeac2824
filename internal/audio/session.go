package audio

import (
	"sync"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
)

// session accumulates PCM for one capture and decides when it should end.
// Backends feed it samples and call finish once their source has stopped.
type session struct {
	opts Options
	done DoneFunc

	mu       sync.Mutex
	pcm      []int16
	detector silenceDetector
	reason   StopReason
	canceled bool

	stopReq  chan StopReason
	finished sync.Once
}

func newSession(opts Options, done DoneFunc) *session {
	return &session{
		opts: opts,
		done: done,
		detector: silenceDetector{
			threshold: opts.SilenceThreshold,
			timeout:   opts.SilenceTimeout,
		},
		stopReq: make(chan StopReason, 1),
	}
}

// write appends samples and requests a stop when a cutoff is reached.
func (s *session) write(samples []int16) {
	if len(samples) == 0 {
		return
	}
	chunk := framesDuration(len(samples), s.opts.SampleRate, s.opts.Channels)
	level := rms(samples)

	s.mu.Lock()
	if s.reason != "" {
		// Drain what the source already buffered, but decide nothing more.
		s.pcm = append(s.pcm, samples...)
		s.mu.Unlock()
		return
	}
	s.pcm = append(s.pcm, samples...)
	total := framesDuration(len(s.pcm), s.opts.SampleRate, s.opts.Channels)
	silent := s.detector.observe(level, chunk)
	s.mu.Unlock()

	switch {
	case total >= s.opts.MaxDuration:
		s.requestStop(StopMaxDuration)
	case silent:
		s.requestStop(StopSilence)
	}
}

// requestStop records the first stop reason and wakes the backend.
func (s *session) requestStop(reason StopReason) bool {
	s.mu.Lock()
	if s.reason != "" {
		s.mu.Unlock()
		return false
	}
	s.reason = reason
	s.mu.Unlock()

	select {
	case s.stopReq <- reason:
	default:
	}
	return true
}

// cancel marks the session as discarded and requests a stop.
func (s *session) cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
	s.requestStop(StopManual)
}

func (s *session) duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return framesDuration(len(s.pcm), s.opts.SampleRate, s.opts.Channels)
}

// finish encodes the recording and invokes done. srcErr is the backend's
// failure, if any; it wins when no audio was captured. encode converts WAV
// to the requested format.
func (s *session) finish(srcErr error, encode func(wav []byte) ([]byte, error)) {
	s.finished.Do(func() {
		s.mu.Lock()
		pcm := s.pcm
		s.pcm = nil
		reason := s.reason
		canceled := s.canceled
		s.mu.Unlock()

		if canceled {
			s.done(nil, apperr.New(apperr.CodeCanceled, "recording canceled"))
			return
		}
		if len(pcm) == 0 {
			if srcErr != nil {
				s.done(nil, srcErr)
				return
			}
			s.done(nil, apperr.New(apperr.CodeEmptyAudio, "no audio was captured"))
			return
		}
		if reason == "" {
			reason = StopEnded
		}

		data, err := encodeWAV(pcm, s.opts.SampleRate, s.opts.Channels)
		if err != nil {
			s.done(nil, apperr.Wrap(apperr.CodeCaptureFailed, err, "encoding recording"))
			return
		}
		format := "wav"
		if encode != nil && s.opts.Format != "wav" {
			data, err = encode(data)
			if err != nil {
				s.done(nil, apperr.Wrap(apperr.CodeCaptureFailed, err, "converting recording to "+s.opts.Format))
				return
			}
			format = s.opts.Format
		}

		s.done(&Recording{
			Data:       data,
			Format:     format,
			SampleRate: s.opts.SampleRate,
			Channels:   s.opts.Channels,
			Duration:   framesDuration(len(pcm), s.opts.SampleRate, s.opts.Channels),
			Reason:     reason,
			Level:      rms(pcm),
		}, nil)
	})
}
