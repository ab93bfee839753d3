// Package decoder turns a byte source into a stream of stereo float frames.
package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"
)

const ResampleQuality = 4

// Decoder reads frames from one track. It is not safe for concurrent use; the
// device callback and seeks must be serialized by the caller.
type Decoder struct {
	name    string
	codec   Codec
	reader  *audio.Reader
	stream  beep.StreamSeekCloser
	out     beep.Streamer
	native  beep.Format
	rate    beep.SampleRate
	total   int64
	drained bool
	err     error
}

// Open decodes src and produces frames at the given output rate.
func Open(src audio.Source, rate beep.SampleRate) (*Decoder, error) {
	bs, err := src.Open()
	if err != nil {
		return nil, err
	}
	return newDecoder(src.Name(), src.Path(), bs, rate)
}

func OpenLocal(path string, rate beep.SampleRate) (*Decoder, error) {
	return Open(audio.Local(path), rate)
}

func OpenMemory(name string, buf []byte, rate beep.SampleRate) (*Decoder, error) {
	return Open(audio.Remote(name, buf), rate)
}

func newDecoder(name, hint string, bs audio.ByteSource, rate beep.SampleRate) (*Decoder, error) {
	codec, err := Sniff(bs, hint)
	if err != nil {
		bs.Close()
		return nil, audio.Wrap("open", name, err)
	}

	r := audio.NewReader(bs)
	stream, format, err := decode(codec, r)
	if err != nil {
		r.Close()
		cause := audio.ErrUnsupportedFormat
		if r.Overrun() || errors.Is(err, io.ErrUnexpectedEOF) {
			cause = audio.ErrTruncated
		}
		return nil, audio.Wrap("open", name, fmt.Errorf("%w: %s: %w", cause, codec, err))
	}

	total := int64(stream.Len())
	if total <= 0 {
		stream.Close()
		r.Close()
		return nil, audio.Wrap("open", name, fmt.Errorf("%w: %s stream has no frames", audio.ErrUnsupportedFormat, codec))
	}
	if rate <= 0 {
		rate = format.SampleRate
	}

	d := &Decoder{
		name:   name,
		codec:  codec,
		reader: r,
		stream: stream,
		native: format,
		rate:   rate,
		total:  total,
	}
	d.out = d.output()

	log.Debug().
		Str("track", name).
		Str("codec", codec.String()).
		Int("rate", int(format.SampleRate)).
		Int("channels", format.NumChannels).
		Int64("frames", total).
		Msg("Decoder opened")

	return d, nil
}

func (d *Decoder) output() beep.Streamer {
	if d.native.SampleRate == d.rate {
		return d.stream
	}
	return beep.Resample(ResampleQuality, d.native.SampleRate, d.rate, d.stream)
}

// ReadFrames fills out with decoded frames and returns how many were written.
// A count below out.Len() means the stream has ended.
func (d *Decoder) ReadFrames(out audio.Frames) int {
	if d.drained || out.Len() == 0 {
		return 0
	}

	filled := 0
	for filled < out.Len() {
		n, ok := d.out.Stream(out[filled:])
		filled += n
		if !ok || n == 0 {
			d.settle()
			break
		}
	}
	return filled
}

// settle fixes the stream length once the decoder stops producing frames so
// that cursor and total agree at the end.
func (d *Decoder) settle() {
	d.drained = true
	pos := int64(d.stream.Position())
	streamErr := d.out.Err()

	if pos < d.total || streamErr != nil {
		cause := fmt.Errorf("%w: stopped at frame %d of %d", audio.ErrTruncated, pos, d.total)
		if streamErr != nil {
			cause = fmt.Errorf("%w: %w", audio.ErrTruncated, streamErr)
		}
		d.err = audio.Wrap("decode", d.name, cause)
		log.Debug().Err(d.err).Msg("Stream ended early")
	}
	if pos < d.total {
		d.total = pos
	}
}

// Cursor returns the position in native frames, never beyond TotalFrames.
func (d *Decoder) Cursor() int64 {
	pos := int64(d.stream.Position())
	if pos > d.total {
		return d.total
	}
	return pos
}

// TotalFrames is the stream length in native frames. It shrinks to the frames
// actually decoded if the stream ends early.
func (d *Decoder) TotalFrames() int64 {
	return d.total
}

// SampleRate is the native rate of the track.
func (d *Decoder) SampleRate() beep.SampleRate {
	return d.native.SampleRate
}

// Channels is the native channel count. Output is always stereo.
func (d *Decoder) Channels() int {
	return d.native.NumChannels
}

// Format describes the frames handed to the device.
func (d *Decoder) Format() beep.Format {
	return beep.Format{
		SampleRate:  d.rate,
		NumChannels: 2,
		Precision:   d.native.Precision,
	}
}

func (d *Decoder) Codec() Codec {
	return d.codec
}

func (d *Decoder) Name() string {
	return d.name
}

// Duration is TotalFrames expressed as time.
func (d *Decoder) Duration() time.Duration {
	return d.native.SampleRate.D(int(d.total))
}

// Seek moves to frame, which must lie within [0, TotalFrames].
func (d *Decoder) Seek(frame int64) error {
	if frame < 0 || frame > d.total {
		return audio.Wrap("seek", d.name, fmt.Errorf("%w: frame %d outside [0, %d]", audio.ErrSeekOutOfRange, frame, d.total))
	}
	if err := d.stream.Seek(int(frame)); err != nil {
		return audio.Wrap("seek", d.name, err)
	}
	d.drained = false
	d.err = nil
	d.out = d.output()
	return nil
}

// Err reports why the stream ended early, if it did.
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the decoder and the bytes behind it.
func (d *Decoder) Close() error {
	err := d.stream.Close()
	if cerr := d.reader.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = cerr
	}
	return err
}
