package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVHeaderSize is the size of the header the encoder writes before sample data.
const WAVHeaderSize = 44

// WriteWAV writes a 16-bit stereo sine tone of the given length to dir/name.
func WriteWAV(t testing.TB, dir, name string, rate, frames int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           tone(rate, frames),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finish %s: %v", path, err)
	}
	return path
}

// WAVBytes returns the encoded bytes of a tone like WriteWAV does.
func WAVBytes(t testing.TB, rate, frames int) []byte {
	t.Helper()

	path := WriteWAV(t, t.TempDir(), "tone.wav", rate, frames)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func tone(rate, frames int) []int {
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		v := int(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		data[2*i] = v
		data[2*i+1] = v
	}
	return data
}
