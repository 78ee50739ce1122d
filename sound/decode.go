package sound

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// Decoder turns one agent payload into PCM16LE in the player's format.
type Decoder func(payload []byte) ([]byte, error)

// NewDecoder picks the decoder for the negotiated encoding and container.
func NewDecoder(f Format) (Decoder, error) {
	encoding := strings.ToLower(f.Encoding)
	container := strings.ToLower(f.Container)

	switch {
	case encoding == "linear16" && (container == "" || container == "none"):
		return decodeRaw, nil
	case encoding == "linear16" && container == "wav":
		return decodeWAV, nil
	case encoding == "mp3":
		return func(payload []byte) ([]byte, error) {
			return decodeMP3(payload, f.SampleRate, f.Channels)
		}, nil
	default:
		return nil, fmt.Errorf("sound: unsupported output format %s/%s", f.Encoding, f.Container)
	}
}

func decodeRaw(payload []byte) ([]byte, error) {
	return payload, nil
}

// decodeWAV strips the RIFF header from the first payload of a stream.
// Later payloads carry bare samples and pass through.
func decodeWAV(payload []byte) ([]byte, error) {
	if len(payload) < 12 || string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return payload, nil
	}

	off := 12
	for off+8 <= len(payload) {
		id := string(payload[off : off+4])
		size := int(binary.LittleEndian.Uint32(payload[off+4 : off+8]))
		body := off + 8
		if id == "data" {
			end := body + size
			if end > len(payload) || size == 0 {
				end = len(payload)
			}
			return payload[body:end], nil
		}
		off = body + size + size%2
	}
	return nil, fmt.Errorf("sound: wav payload has no data chunk")
}

func decodeMP3(payload []byte, sampleRate, channels int) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sound: failed to decode mp3: %w", err)
	}
	if sampleRate != 0 && dec.SampleRate() != sampleRate {
		return nil, fmt.Errorf("sound: mp3 sample rate %d does not match output rate %d", dec.SampleRate(), sampleRate)
	}

	stereo, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("sound: failed to decode mp3: %w", err)
	}
	if channels == 2 {
		return stereo, nil
	}
	return downmix(stereo), nil
}

// downmix averages interleaved stereo PCM16LE into mono.
func downmix(stereo []byte) []byte {
	mono := make([]byte, 0, len(stereo)/2)
	for i := 0; i+4 <= len(stereo); i += 4 {
		l := int32(int16(binary.LittleEndian.Uint16(stereo[i:])))
		r := int32(int16(binary.LittleEndian.Uint16(stereo[i+2:])))
		mono = binary.LittleEndian.AppendUint16(mono, uint16(int16((l+r)/2)))
	}
	return mono
}
