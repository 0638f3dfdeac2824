package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// bytesToInt16 converts little-endian signed 16-bit PCM to samples.
// A trailing odd byte is ignored; callers carry it over to the next chunk.
func bytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

// rms returns the root-mean-square level of samples in [0,1].
func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// silenceDetector tracks continuous sub-threshold audio.
type silenceDetector struct {
	threshold float64
	timeout   time.Duration
	silent    time.Duration
}

// observe feeds a chunk of the given duration and reports whether the
// silence timeout has been reached.
func (d *silenceDetector) observe(level float64, dur time.Duration) bool {
	if d.timeout <= 0 {
		return false
	}
	if level >= d.threshold {
		d.silent = 0
		return false
	}
	d.silent += dur
	return d.silent >= d.timeout
}

// framesDuration converts a sample count to wall time.
func framesDuration(samples int, sampleRate, channels uint32) time.Duration {
	if sampleRate == 0 || channels == 0 {
		return 0
	}
	frames := samples / int(channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// tempPath returns a unique file path in the system temp directory.
func tempPath(ext string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	return filepath.Join(os.TempDir(), fmt.Sprintf("gostt_%s.%s", id, ext))
}

// writeWAV encodes 16-bit PCM into a WAV file at path.
func writeWAV(path string, samples []int16, sampleRate, channels uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	enc := wav.NewEncoder(f, int(sampleRate), 16, int(channels), 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: int(channels), SampleRate: int(sampleRate)},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// encodeWAV returns samples as WAV bytes. go-audio/wav needs a seekable
// writer, so the data goes through a temp file.
func encodeWAV(samples []int16, sampleRate, channels uint32) ([]byte, error) {
	path := tempPath("wav")
	defer os.Remove(path)
	if err := writeWAV(path, samples, sampleRate, channels); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// DecodeWAVInfo reads the header of a WAV payload and returns its duration.
func DecodeWAVInfo(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s: not a valid wav file", filepath.Base(path))
	}
	// Decoder.Duration counts the header bytes, so measure the data chunk.
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%s: finding pcm data: %w", filepath.Base(path), err)
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec == 0 {
		return 0, fmt.Errorf("%s: invalid wav format", filepath.Base(path))
	}
	return time.Duration(dec.PCMLen() * int64(time.Second) / bytesPerSec), nil
}
