// Package device binds a fill callback to an audio output.
package device

import (
	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/gopxl/beep/v2"
)

// Callback fills out with the next block of frames. It runs on the audio
// thread and must not block.
type Callback func(out audio.Frames)

// Device is one bound output stream.
type Device interface {
	// Start begins invoking the callback.
	Start() error
	// Stop returns once the callback can no longer be invoked. Safe to call twice.
	Stop()
	// Do runs fn while the callback is guaranteed not to run.
	Do(fn func())
	// Close releases the binding. The device must not be used afterwards.
	Close() error
}

// Opener creates devices for a given output format.
type Opener interface {
	// SampleRate is the rate the output pulls frames at.
	SampleRate() beep.SampleRate
	Open(format beep.Format, fill Callback) (Device, error)
}
