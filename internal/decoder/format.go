package decoder

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Codec identifies the container a byte stream was recognised as.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecMP3
	CodecWAV
	CodecFLAC
	CodecVorbis
)

func (c Codec) String() string {
	switch c {
	case CodecMP3:
		return "mp3"
	case CodecWAV:
		return "wav"
	case CodecFLAC:
		return "flac"
	case CodecVorbis:
		return "vorbis"
	default:
		return "unknown"
	}
}

const sniffSize = 12

// Sniff identifies the container from its leading bytes, falling back to the
// file extension of hint when the header is not recognised.
func Sniff(src io.ReaderAt, hint string) (Codec, error) {
	head := make([]byte, sniffSize)
	n, err := src.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return CodecUnknown, fmt.Errorf("%w: %w", audio.ErrSourceUnavailable, err)
	}
	if c := sniffHeader(head[:n]); c != CodecUnknown {
		return c, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(hint), "."))
	switch ext {
	case "mp3":
		return CodecMP3, nil
	case "wav", "wave":
		return CodecWAV, nil
	case "flac":
		return CodecFLAC, nil
	case "ogg", "oga":
		return CodecVorbis, nil
	case "":
		return CodecUnknown, fmt.Errorf("%w: unrecognised header", audio.ErrUnsupportedFormat)
	default:
		return CodecUnknown, fmt.Errorf("%w: .%s", audio.ErrUnsupportedFormat, ext)
	}
}

func sniffHeader(b []byte) Codec {
	switch {
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return CodecWAV
	case bytes.HasPrefix(b, []byte("fLaC")):
		return CodecFLAC
	case bytes.HasPrefix(b, []byte("OggS")):
		return CodecVorbis
	case bytes.HasPrefix(b, []byte("ID3")):
		return CodecMP3
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return CodecMP3
	}
	return CodecUnknown
}

func decode(c Codec, r *audio.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	switch c {
	case CodecMP3:
		return mp3.Decode(r)
	case CodecWAV:
		return wav.Decode(r)
	case CodecFLAC:
		return flac.Decode(r)
	case CodecVorbis:
		return vorbis.Decode(r)
	default:
		return nil, beep.Format{}, audio.ErrUnsupportedFormat
	}
}
