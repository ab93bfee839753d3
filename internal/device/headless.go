package device

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/gopxl/beep/v2"
)

const DefaultHeadlessFrames = 1024

// HeadlessOpener pulls frames on a ticker without touching any OS device.
// With the default interval it consumes audio at real-time speed; a shorter
// Interval fast-forwards playback.
type HeadlessOpener struct {
	Rate         beep.SampleRate
	BufferFrames int
	Interval     time.Duration

	live   atomic.Int32
	opened atomic.Int32
}

func NewHeadless(rate beep.SampleRate, buffer time.Duration) *HeadlessOpener {
	return &HeadlessOpener{
		Rate:         rate,
		BufferFrames: rate.N(buffer),
		Interval:     buffer,
	}
}

func (o *HeadlessOpener) SampleRate() beep.SampleRate {
	return o.Rate
}

// Live is the number of devices opened and not yet closed.
func (o *HeadlessOpener) Live() int {
	return int(o.live.Load())
}

// Opened is the number of devices ever opened.
func (o *HeadlessOpener) Opened() int {
	return int(o.opened.Load())
}

func (o *HeadlessOpener) Open(format beep.Format, fill Callback) (Device, error) {
	if format.SampleRate != o.Rate {
		return nil, audio.Wrap("device", "", fmt.Errorf("%w: stream rate %d Hz, output rate %d Hz", audio.ErrDevice, format.SampleRate, o.Rate))
	}

	frames := o.BufferFrames
	if frames <= 0 {
		frames = DefaultHeadlessFrames
	}
	interval := o.Interval
	if interval <= 0 {
		interval = o.Rate.D(frames)
	}

	o.live.Add(1)
	o.opened.Add(1)

	return &headlessDevice{
		opener:   o,
		fill:     fill,
		buf:      make(audio.Frames, frames),
		interval: interval,
		quit:     make(chan struct{}),
	}, nil
}

type headlessDevice struct {
	opener   *HeadlessOpener
	fill     Callback
	buf      audio.Frames
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool

	quit      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
}

func (d *headlessDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return fmt.Errorf("%w: device already stopped", audio.ErrDevice)
	}
	if d.started {
		return nil
	}
	d.started = true

	d.wg.Add(1)
	go d.run()
	return nil
}

func (d *headlessDevice) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.quit:
			return
		case <-ticker.C:
		}

		d.mu.Lock()
		if !d.stopped {
			d.fill(d.buf)
		}
		d.mu.Unlock()
	}
}

func (d *headlessDevice) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.quit)
	})
	d.wg.Wait()
}

func (d *headlessDevice) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

func (d *headlessDevice) Close() error {
	d.Stop()
	d.closeOnce.Do(func() {
		d.opener.live.Add(-1)
	})
	return nil
}
