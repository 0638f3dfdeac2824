package audio

import (
	"regexp"
	"strings"
)

var (
	avfIndexRE  = regexp.MustCompile(`\[(\d+)\]\s+(.+)$`)
	dshowNameRE = regexp.MustCompile(`"([^"]+)"\s*\(audio\)`)
	dshowAltRE  = regexp.MustCompile(`Alternative name\s+"([^"]+)"`)
)

// parseAVFoundationDevices reads the audio section of
// "ffmpeg -f avfoundation -list_devices true -i ''".
func parseAVFoundationDevices(out string) []Device {
	var devices []Device
	inAudio := false
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "AVFoundation audio devices"):
			inAudio = true
			continue
		case strings.Contains(line, "AVFoundation video devices"):
			inAudio = false
			continue
		}
		if !inAudio {
			continue
		}
		m := avfIndexRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		devices = append(devices, Device{
			ID:      m[1],
			Name:    strings.TrimSpace(m[2]),
			Default: len(devices) == 0,
		})
	}
	return devices
}

// parseDShowDevices reads "ffmpeg -list_devices true -f dshow -i dummy".
// Newer builds tag each device with "(audio)"; older ones group them under
// a "DirectShow audio devices" header.
func parseDShowDevices(out string) []Device {
	var devices []Device
	inAudio := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "DirectShow audio devices") {
			inAudio = true
			continue
		}
		if strings.Contains(line, "DirectShow video devices") {
			inAudio = false
			continue
		}
		if m := dshowAltRE.FindStringSubmatch(line); m != nil {
			if n := len(devices); n > 0 && devices[n-1].ID == devices[n-1].Name {
				devices[n-1].ID = m[1]
			}
			continue
		}
		var name string
		if m := dshowNameRE.FindStringSubmatch(line); m != nil {
			name = m[1]
		} else if inAudio {
			if i := strings.Index(line, `"`); i >= 0 {
				if j := strings.Index(line[i+1:], `"`); j >= 0 {
					name = line[i+1 : i+1+j]
				}
			}
		}
		if name == "" {
			continue
		}
		devices = append(devices, Device{ID: name, Name: name, Default: len(devices) == 0})
	}
	return devices
}

// parseSources reads "ffmpeg -sources pulse" (or alsa). Lines look like
// "* alsa_input.pci-0000_00_1f.3.analog-stereo [Built-in Audio Analog Stereo]"
// where the asterisk marks the default source. Monitor sources are skipped.
func parseSources(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "Auto-detected") || strings.HasSuffix(trimmed, ":") {
			continue
		}
		def := false
		if strings.HasPrefix(trimmed, "*") {
			def = true
			trimmed = strings.TrimSpace(trimmed[1:])
		}
		id, rest, _ := strings.Cut(trimmed, " ")
		if id == "" || strings.HasSuffix(id, ".monitor") {
			continue
		}
		name := ""
		if i, j := strings.Index(rest, "["), strings.LastIndex(rest, "]"); i >= 0 && j > i {
			name = strings.TrimSpace(rest[i+1 : j])
		}
		if name == "" {
			name = id
		}
		devices = append(devices, Device{ID: id, Name: name, Default: def})
	}
	return devices
}
