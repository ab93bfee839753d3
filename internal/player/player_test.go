package player

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/glebovdev/cookie-player/internal/device"
	"github.com/glebovdev/cookie-player/internal/testutil"
	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate    = 44100
	waitTimeout = 5 * time.Second
	pollEvery   = time.Millisecond
)

// countingOpener records how many devices were alive at once.
type countingOpener struct {
	*device.HeadlessOpener
	maxLive atomic.Int32
	failNow atomic.Bool
}

func newCountingOpener() *countingOpener {
	return &countingOpener{HeadlessOpener: &device.HeadlessOpener{
		Rate:         testRate,
		BufferFrames: 441,
		Interval:     time.Millisecond,
	}}
}

func (c *countingOpener) Open(format beep.Format, fill device.Callback) (device.Device, error) {
	if c.failNow.Load() {
		return nil, audio.Wrap("device", "", audio.ErrDevice)
	}
	d, err := c.HeadlessOpener.Open(format, fill)
	if err != nil {
		return nil, err
	}
	if live := int32(c.Live()); live > c.maxLive.Load() {
		c.maxLive.Store(live)
	}
	return d, nil
}

type brokenDevice struct {
	closed atomic.Bool
}

func (d *brokenDevice) Start() error { return errors.New("no output") }
func (d *brokenDevice) Stop()        {}
func (d *brokenDevice) Do(fn func()) { fn() }

func (d *brokenDevice) Close() error {
	d.closed.Store(true)
	return nil
}

type brokenOpener struct {
	dev *brokenDevice
}

func (o *brokenOpener) SampleRate() beep.SampleRate { return testRate }

func (o *brokenOpener) Open(beep.Format, device.Callback) (device.Device, error) {
	return o.dev, nil
}

type fixtures struct {
	long, short, other string
	dir                string
}

func newFixtures(t *testing.T) fixtures {
	t.Helper()
	dir := t.TempDir()
	return fixtures{
		dir:   dir,
		long:  testutil.WriteWAV(t, dir, "a.wav", testRate, 5*testRate),
		other: testutil.WriteWAV(t, dir, "b.wav", testRate, 5*testRate),
		short: testutil.WriteWAV(t, dir, "short.wav", testRate, testRate/5),
	}
}

func newTestPlayer(t *testing.T, opener device.Opener, opts ...Option) *Player {
	t.Helper()
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	p := New(opener, opts...)
	t.Cleanup(p.Close)
	return p
}

func waitForState(t *testing.T, p *Player, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return p.State() == want }, waitTimeout, pollEvery,
		"state never became %s (now %s)", want, p.State())
}

func waitForCursor(t *testing.T, p *Player, atLeast int64) {
	t.Helper()
	require.Eventually(t, func() bool { return p.Snapshot().Cursor >= atLeast }, waitTimeout, pollEvery)
}

func TestPlayerStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateStopped, "STOPPED"},
		{StatePlaying, "PLAYING"},
		{StatePaused, "PAUSED"},
		{StateFinished, "FINISHED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.state.String()
			if result != tt.expected {
				t.Errorf("State(%d).String() = %q, want %q", tt.state, result, tt.expected)
			}
		})
	}
}

func TestNewPlayerIsStopped(t *testing.T) {
	p := newTestPlayer(t, newCountingOpener())

	snap := p.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, int64(0), snap.Cursor)
	assert.Equal(t, uint64(0), snap.Generation)
	assert.False(t, snap.Active())
	assert.Empty(t, p.LastError())
}

func TestStartLocalFile(t *testing.T) {
	f := newFixtures(t)
	p := newTestPlayer(t, newCountingOpener())

	require.NoError(t, p.Start(audio.Local(f.long)))

	snap := p.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, int64(5*testRate), snap.TotalFrames)
	assert.Equal(t, beep.SampleRate(testRate), snap.SampleRate)
	assert.Equal(t, "a.wav", snap.DisplayName)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, 5*time.Second, snap.Duration())
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixtures(t)
	opener := newCountingOpener()
	p := newTestPlayer(t, opener)

	p.Stop()
	p.Stop()
	assert.Equal(t, StateStopped, p.State())

	require.NoError(t, p.Start(audio.Local(f.long)))
	p.Stop()
	p.Stop()
	p.Stop()

	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 0, opener.Live())
}

func TestCursorAdvancesMonotonically(t *testing.T) {
	f := newFixtures(t)
	p := newTestPlayer(t, newCountingOpener())

	require.NoError(t, p.Start(audio.Local(f.long)))

	var last int64
	for i := 0; i < 50; i++ {
		snap := p.Snapshot()
		if snap.State != StatePlaying {
			break
		}
		assert.GreaterOrEqual(t, snap.Cursor, last)
		assert.LessOrEqual(t, snap.Cursor, snap.TotalFrames)
		last = snap.Cursor
		time.Sleep(time.Millisecond)
	}
	assert.Greater(t, last, int64(0))
}

func TestPauseHoldsCursor(t *testing.T) {
	f := newFixtures(t)
	p := newTestPlayer(t, newCountingOpener())

	require.NoError(t, p.Start(audio.Local(f.long)))
	waitForCursor(t, p, 441)

	p.TogglePause()
	assert.Equal(t, StatePaused, p.State())

	// let any callback already in flight finish
	time.Sleep(10 * time.Millisecond)
	held := p.Snapshot().Cursor

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, held, p.Snapshot().Cursor)
	assert.Equal(t, StatePaused, p.State(), "a paused track never finishes on its own")

	p.TogglePause()
	assert.Equal(t, StatePlaying, p.State())
	waitForCursor(t, p, held+441)
	assert.GreaterOrEqual(t, p.Snapshot().Cursor, held, "resuming continues from the held cursor")
}

func TestTogglePauseWhenStoppedIsNoop(t *testing.T) {
	f := newFixtures(t)
	p := newTestPlayer(t, newCountingOpener())

	p.TogglePause()
	assert.Equal(t, StateStopped, p.State())

	require.NoError(t, p.Start(audio.Local(f.short)))
	waitForState(t, p, StateFinished)

	p.TogglePause()
	assert.Equal(t, StateFinished, p.State())
}

func TestShortTrackFinishes(t *testing.T) {
	f := newFixtures(t)
	finished := make(chan Snapshot, 2)
	p := newTestPlayer(t, newCountingOpener(), WithFinishedHandler(func(s Snapshot) {
		finished <- s
	}))

	require.NoError(t, p.Start(audio.Local(f.short)))

	select {
	case snap := <-finished:
		assert.Equal(t, StateFinished, snap.State)
		assert.Equal(t, "short.wav", snap.DisplayName)
		assert.Equal(t, snap.TotalFrames, snap.Cursor)
		assert.Equal(t, uint64(1), snap.Generation)
	case <-time.After(waitTimeout):
		t.Fatal("track never finished")
	}

	assert.Equal(t, StateFinished, p.State())
	assert.InDelta(t, 1.0, p.Snapshot().Progress(), 0.0001)

	select {
	case <-finished:
		t.Fatal("finished signalled twice")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestReplaceLeavesOneSession(t *testing.T) {
	f := newFixtures(t)
	opener := newCountingOpener()
	p := newTestPlayer(t, opener)

	require.NoError(t, p.Start(audio.Local(f.long)))
	require.NoError(t, p.Start(audio.Local(f.other)))

	snap := p.Snapshot()
	assert.Equal(t, "b.wav", snap.DisplayName)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Equal(t, 1, opener.Live())
	assert.Equal(t, int32(1), opener.maxLive.Load(), "the old device was closed before the new one opened")

	// a third start proves the first teardown was complete
	require.NoError(t, p.Start(audio.Local(f.short)))
	assert.Equal(t, "short.wav", p.Snapshot().DisplayName)
	assert.Equal(t, 1, opener.Live())
	assert.Equal(t, 3, opener.Opened())
}

func TestStaleGenerationIsIgnored(t *testing.T) {
	f := newFixtures(t)
	p := newTestPlayer(t, newCountingOpener())

	require.NoError(t, p.Start(audio.Local(f.long)))
	first := p.Snapshot().Generation
	require.NoError(t, p.Start(audio.Local(f.other)))

	assert.False(t, p.markFinished(first))
	assert.Equal(t, StatePlaying, p.State())

	assert.True(t, p.markFinished(p.Snapshot().Generation))
	assert.Equal(t, StateFinished, p.State())
	assert.False(t, p.markFinished(p.Snapshot().Generation), "finished only once")

	p.Stop()
	assert.False(t, p.markFinished(p.Snapshot().Generation))
	assert.Equal(t, StateStopped, p.State())
}

func TestEmptyRemoteBuffer(t *testing.T) {
	opener := newCountingOpener()
	p := newTestPlayer(t, opener)

	err := p.Start(audio.Remote("remote.mp3", []byte{}))
	assert.ErrorIs(t, err, audio.ErrSourceUnavailable)
	assert.Equal(t, StateStopped, p.State())
	assert.NotEmpty(t, p.LastError())
	assert.Equal(t, 0, opener.Opened())
}

func TestFailedStartStopsPreviousTrack(t *testing.T) {
	f := newFixtures(t)
	opener := newCountingOpener()
	p := newTestPlayer(t, opener)

	require.NoError(t, p.Start(audio.Local(f.long)))

	junk := filepath.Join(f.dir, "junk.mp3")
	require.NoError(t, os.WriteFile(junk, []byte("not an mp3 at all"), 0644))

	err := p.Start(audio.Local(junk))
	require.Error(t, err)
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 0, opener.Live())

	require.NoError(t, p.Start(audio.Local(f.other)))
	assert.Empty(t, p.LastError())
}

func TestTruncatedRemoteFinishes(t *testing.T) {
	data := testutil.WAVBytes(t, testRate, testRate)
	data = data[:testutil.WAVHeaderSize+(testRate/4)*4]

	p := newTestPlayer(t, newCountingOpener())
	require.NoError(t, p.Start(audio.Remote("cut.wav", data)))

	waitForState(t, p, StateFinished)

	snap := p.Snapshot()
	assert.True(t, snap.Truncated)
	assert.Equal(t, snap.TotalFrames, snap.Cursor)
	assert.Less(t, snap.TotalFrames, int64(testRate))
}

func TestEmptyStreamAfterHeaderFinishes(t *testing.T) {
	data := testutil.WAVBytes(t, testRate, testRate)
	data = data[:testutil.WAVHeaderSize+2]

	p := newTestPlayer(t, newCountingOpener())
	require.NoError(t, p.Start(audio.Remote("cut.wav", data)))

	waitForState(t, p, StateFinished)

	snap := p.Snapshot()
	assert.True(t, snap.Truncated)
	assert.Equal(t, int64(0), snap.TotalFrames)
	assert.Equal(t, int64(0), snap.Cursor)
	assert.Zero(t, snap.Progress())
}

func TestDeviceOpenFailure(t *testing.T) {
	f := newFixtures(t)
	opener := newCountingOpener()
	p := newTestPlayer(t, opener)

	opener.failNow.Store(true)
	err := p.Start(audio.Local(f.long))
	assert.ErrorIs(t, err, audio.ErrDevice)
	assert.Equal(t, StateStopped, p.State())

	opener.failNow.Store(false)
	require.NoError(t, p.Start(audio.Local(f.long)))
}

func TestDeviceStartFailureRollsBack(t *testing.T) {
	f := newFixtures(t)
	dev := &brokenDevice{}
	p := newTestPlayer(t, &brokenOpener{dev: dev})

	err := p.Start(audio.Local(f.long))
	assert.ErrorIs(t, err, audio.ErrDevice)
	assert.Equal(t, StateStopped, p.State())
	assert.True(t, dev.closed.Load())
	assert.Equal(t, uint64(0), p.Snapshot().Generation, "failed starts do not consume a generation")
}

func TestSeek(t *testing.T) {
	f := newFixtures(t)
	p := newTestPlayer(t, newCountingOpener())

	assert.ErrorIs(t, p.Seek(time.Second), ErrNotActive)

	require.NoError(t, p.Start(audio.Local(f.long)))
	p.TogglePause()

	require.NoError(t, p.Seek(2*time.Second))
	assert.Equal(t, int64(2*testRate), p.Snapshot().Cursor)

	assert.ErrorIs(t, p.Seek(10*time.Second), audio.ErrSeekOutOfRange)
	assert.ErrorIs(t, p.Seek(-time.Second), audio.ErrSeekOutOfRange)
	assert.Equal(t, int64(2*testRate), p.Snapshot().Cursor)

	p.Stop()
	assert.ErrorIs(t, p.Seek(0), ErrNotActive)
}

func TestCloseWaitsForWatchers(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newFixtures(t)
	opener := newCountingOpener()
	p := New(opener, WithPollInterval(time.Millisecond))

	require.NoError(t, p.Start(audio.Local(f.long)))
	require.NoError(t, p.Start(audio.Local(f.short)))
	p.Close()

	assert.Equal(t, 0, opener.Live())
	assert.ErrorIs(t, p.Start(audio.Local(f.short)), ErrClosed)
	p.Close()
}

func TestFinishedHandlerCanStartNextTrack(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newFixtures(t)
	var p *Player
	var started atomic.Int32
	p = New(newCountingOpener(),
		WithPollInterval(2*time.Millisecond),
		WithFinishedHandler(func(Snapshot) {
			if started.Add(1) < 3 {
				_ = p.Start(audio.Local(f.short))
			}
		}))

	require.NoError(t, p.Start(audio.Local(f.short)))
	require.Eventually(t, func() bool {
		return started.Load() >= 3 && p.State() == StateFinished
	}, waitTimeout, pollEvery)

	assert.Equal(t, uint64(3), p.Snapshot().Generation)
	p.Close()
}

func TestConcurrentControl(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newFixtures(t)
	opener := newCountingOpener()
	p := New(opener, WithPollInterval(time.Millisecond))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				switch (w + i) % 4 {
				case 0:
					_ = p.Start(audio.Local(f.short))
				case 1:
					p.TogglePause()
				case 2:
					p.Stop()
				case 3:
					snap := p.Snapshot()
					assert.LessOrEqual(t, snap.Cursor, max(snap.TotalFrames, 0))
				}
			}
		}(w)
	}
	wg.Wait()
	p.Close()

	assert.Equal(t, int32(1), opener.maxLive.Load())
	assert.Equal(t, 0, opener.Live())
}

func TestSnapshotHelpers(t *testing.T) {
	s := Snapshot{State: StatePlaying, Cursor: 22050, TotalFrames: 88200, SampleRate: 44100}
	assert.Equal(t, 500*time.Millisecond, s.Position())
	assert.Equal(t, 2*time.Second, s.Duration())
	assert.InDelta(t, 0.25, s.Progress(), 0.0001)
	assert.True(t, s.Active())

	var empty Snapshot
	assert.Equal(t, time.Duration(0), empty.Position())
	assert.Equal(t, time.Duration(0), empty.Duration())
	assert.Equal(t, 0.0, empty.Progress())

	over := Snapshot{Cursor: 10, TotalFrames: 5}
	assert.Equal(t, 1.0, over.Progress())
}
