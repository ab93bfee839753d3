package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebovdev/cookie-player/internal/player"
)

const (
	minProgressWidth = 10
	maxProgressWidth = 60
)

// formatTime renders d as mm:ss. Minutes keep growing past an hour.
func formatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// nowPlayingText is the one-line description of the loaded track.
func nowPlayingText(snap player.Snapshot) string {
	switch snap.State {
	case player.StatePlaying:
		return "Playing - " + snap.DisplayName
	case player.StatePaused:
		return "Paused - " + snap.DisplayName
	case player.StateFinished:
		return "Finished - " + snap.DisplayName
	default:
		return "Stopped"
	}
}

// renderTrackProgress draws "[====    ] mm:ss / mm:ss" fitted into width
// columns.
func renderTrackProgress(snap player.Snapshot, width int) string {
	times := fmt.Sprintf(" %s / %s", formatTime(snap.Position()), formatTime(snap.Duration()))

	barWidth := width - len(times) - 2
	if barWidth < minProgressWidth {
		barWidth = minProgressWidth
	}
	if barWidth > maxProgressWidth {
		barWidth = maxProgressWidth
	}

	filled := int(snap.Progress() * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}

	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]" + times
}
