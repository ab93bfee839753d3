package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteEmptyBufferIsUnavailable(t *testing.T) {
	for _, data := range [][]byte{nil, {}} {
		_, err := Remote("empty.mp3", data).Open()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnavailable)

		var engineErr *Error
		require.True(t, errors.As(err, &engineErr))
		assert.Equal(t, "open", engineErr.Op)
		assert.Equal(t, "empty.mp3", engineErr.Source)
	}
}

func TestLocalMissingFileIsUnavailable(t *testing.T) {
	_, err := Local(filepath.Join(t.TempDir(), "missing.wav")).Open()
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalDirectoryIsUnavailable(t *testing.T) {
	_, err := Local(t.TempDir()).Open()
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLocalSourceReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	src := Local(path)
	assert.Equal(t, KindLocal, src.Kind())
	assert.Equal(t, "a.bin", src.Name())
	assert.Equal(t, path, src.Path())

	bs, err := src.Open()
	require.NoError(t, err)
	defer bs.Close()

	assert.Equal(t, int64(11), bs.Size())
	buf := make([]byte, 5)
	n, err := bs.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))
}

func TestMemoryReadClampsToBuffer(t *testing.T) {
	bs, err := Remote("r", []byte("0123456789")).Open()
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := bs.ReadAt(buf, 6)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "6789", string(buf[:n]))
	assert.True(t, bs.(Overrunner).Overrun())
}

func TestMemoryReadWithinBoundsDoesNotOverrun(t *testing.T) {
	bs, err := Remote("r", []byte("0123456789")).Open()
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := bs.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.False(t, bs.(Overrunner).Overrun())
}

func TestMemoryCloseReleasesBuffer(t *testing.T) {
	bs, err := Remote("r", []byte("abc")).Open()
	require.NoError(t, err)
	require.NoError(t, bs.Close())

	_, err = bs.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.Equal(t, int64(0), bs.Size())
}

func TestReaderSeek(t *testing.T) {
	bs, err := Remote("r", []byte("0123456789")).Open()
	require.NoError(t, err)
	r := NewReader(bs)

	tests := []struct {
		name    string
		offset  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{"start", 3, io.SeekStart, 3, false},
		{"current forward", 2, io.SeekCurrent, 5, false},
		{"current back", -5, io.SeekCurrent, 0, false},
		{"end", -1, io.SeekEnd, 9, false},
		{"exactly end", 0, io.SeekEnd, 10, false},
		{"past end", 1, io.SeekEnd, 10, true},
		{"before start", -11, io.SeekCurrent, 10, true},
		{"bad whence", 0, 7, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Seek(tt.offset, tt.whence)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReaderSeekOutOfRangeSentinel(t *testing.T) {
	bs, err := Remote("r", []byte("abc")).Open()
	require.NoError(t, err)

	_, err = NewReader(bs).Seek(4, io.SeekStart)
	assert.ErrorIs(t, err, ErrSeekOutOfRange)
}

func TestReaderReadToEnd(t *testing.T) {
	bs, err := Remote("r", []byte("abcdefg")).Open()
	require.NoError(t, err)
	r := NewReader(bs)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abcdefg", string(got))
	assert.True(t, r.Overrun())

	n, err := r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWithName(t *testing.T) {
	src := Remote("track.mp3", []byte{1})
	assert.Equal(t, "Artist - Title", src.WithName("Artist - Title").Name())
	assert.Equal(t, "track.mp3", src.WithName("").Name())
	assert.Equal(t, "track.mp3", src.Name())
}

func TestFramesSilence(t *testing.T) {
	f := Frames{{1, 1}, {2, 2}, {3, 3}}
	f.Silence(1)
	assert.Equal(t, Frames{{1, 1}, {0, 0}, {0, 0}}, f)

	f.Silence(-4)
	assert.Equal(t, Frames{{0, 0}, {0, 0}, {0, 0}}, f)

	f = Frames{{1, 1}}
	f.Silence(5)
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, [2]float64{1, 1}, f[0])
}

func TestErrorMessage(t *testing.T) {
	err := Wrap("decode", "a.wav", ErrTruncated)
	assert.Equal(t, `decode "a.wav": audio data truncated`, err.Error())
	assert.Equal(t, "seek: seek out of range", Wrap("seek", "", ErrSeekOutOfRange).Error())
	assert.NoError(t, Wrap("seek", "x", nil))
}
