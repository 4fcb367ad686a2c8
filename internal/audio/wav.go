package audio

import (
	"encoding/binary"
	"math"
)

// headerSize is the size of a minimal PCM WAV header: RIFF descriptor,
// 16-byte fmt chunk and the data chunk header.
const headerSize = 44

// IsWAV reports whether b carries a RIFF/WAVE container header.
func IsWAV(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	return string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// WrapPCM frames raw PCM samples in a minimal WAV container.
func WrapPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)

	out := make([]byte, headerSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)
	copy(out[44:], pcm)
	return out
}

// Normalize returns raw unchanged when it already carries a container
// header, otherwise wraps it as 16-bit mono PCM at the given rate.
func Normalize(raw []byte, sampleRate int) []byte {
	if IsWAV(raw) {
		return raw
	}
	return WrapPCM(raw, sampleRate, 1, 16)
}

// DurationMs computes the playable duration of a WAV buffer in
// milliseconds by walking its chunk list. Buffers that are not valid
// containers (truncated, missing data chunk, zero byte rate) fall back
// to a bitrate heuristic; this function never panics.
func DurationMs(b []byte) int {
	if ms, ok := containerDurationMs(b); ok {
		return ms
	}
	return int(math.Round(float64(len(b)) * 8 / 128.0))
}

func containerDurationMs(b []byte) (int, bool) {
	if !IsWAV(b) {
		return 0, false
	}

	var byteRate uint32
	haveFmt := false

	// Chunks start after the 12-byte RIFF descriptor.
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(b) || size < 16 {
				return 0, false
			}
			byteRate = binary.LittleEndian.Uint32(b[body+8 : body+12])
			haveFmt = true
		case "data":
			if !haveFmt || byteRate == 0 {
				return 0, false
			}
			return int(math.Round(float64(size) / float64(byteRate) * 1000)), true
		}

		if size < 0 {
			return 0, false
		}
		off = body + size
	}

	return 0, false
}
