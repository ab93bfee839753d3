package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/cookie-player/internal/player"
	"github.com/rivo/tview"
)

// SnapshotSource is the part of the player the status line reads.
type SnapshotSource interface {
	Snapshot() player.Snapshot
	LastError() string
}

type StatusRenderer struct {
	source        SnapshotSource
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int

	primaryColor string
}

func NewStatusRenderer(source SnapshotSource) *StatusRenderer {
	return &StatusRenderer{
		source:        source,
		maxAnimFrame:  4,
		ticksPerFrame: 5, // 5 ticks per frame at the 100ms refresh
	}
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.primaryColor = color
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}
}

func (s *StatusRenderer) Render() string {
	if s.source == nil {
		return s.renderStopped("")
	}

	snap := s.source.Snapshot()

	switch snap.State {
	case player.StatePlaying:
		return s.renderPlaying(snap)
	case player.StatePaused:
		return s.renderPaused(snap)
	case player.StateFinished:
		return s.renderFinished(snap)
	default:
		return s.renderStopped(s.source.LastError())
	}
}

func (s *StatusRenderer) renderStopped(lastError string) string {
	if lastError != "" {
		return fmt.Sprintf("✗ %s", tview.Escape(lastError))
	}
	return "○ STOPPED │ Select a track"
}

func (s *StatusRenderer) renderPlaying(snap player.Snapshot) string {
	dots := []string{"●", "◉", "○", "◉"}
	dot := dots[s.animFrame]

	if s.primaryColor != "" {
		dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
	}

	parts := []string{dot + " " + snap.State.String()}
	parts = append(parts, formatSampleRate(snap))
	if snap.Truncated {
		parts = append(parts, "[yellow]TRUNCATED[-]")
	}

	return joinParts(parts)
}

func (s *StatusRenderer) renderPaused(snap player.Snapshot) string {
	parts := []string{PauseIcon + " " + snap.State.String(), formatSampleRate(snap)}
	return joinParts(parts)
}

func (s *StatusRenderer) renderFinished(snap player.Snapshot) string {
	parts := []string{"✓ " + snap.State.String()}
	if snap.Truncated {
		parts = append(parts, "[yellow]TRUNCATED[-]")
	}
	return joinParts(parts)
}

func formatSampleRate(snap player.Snapshot) string {
	return fmt.Sprintf("%.1fkHz", float64(snap.SampleRate)/1000.0)
}

func joinParts(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += " │ " + parts[i]
	}
	return result
}

func (ui *UI) getPlaybackHint(keyColor string) string {
	switch ui.player.State() {
	case player.StatePaused:
		return fmt.Sprintf("[%s]Enter[-] play  [%s]Space[-] resume", keyColor, keyColor)
	case player.StatePlaying:
		return fmt.Sprintf("[%s]Enter[-] play  [%s]Space[-] pause", keyColor, keyColor)
	default:
		return fmt.Sprintf("[%s]Enter[-] play", keyColor)
	}
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.helpHotkey.String()
	playbackHint := ui.getPlaybackHint(keyColor)

	return fmt.Sprintf(" %s  [%s]←/→[-] seek  [%s]n/p[-] next/prev  [%s]?[-] help  [%s]q[-] quit ",
		playbackHint, keyColor, keyColor, keyColor, keyColor)
}

// handleFooterResize switches the footer between one and two rows when the
// width crosses FooterBreakpoint. The layout starts out wide.
func (ui *UI) handleFooterResize(width int) {
	isWide := width >= FooterBreakpoint
	wasWide := ui.lastFooterWidth == 0 || ui.lastFooterWidth >= FooterBreakpoint
	ui.lastFooterWidth = width

	if ui.contentLayout == nil || isWide == wasWide {
		return
	}
	height := FooterHeightWide
	if !isWide {
		height = FooterHeightNarrow
	}
	ui.contentLayout.ResizeItem(ui.helpPanel, height, 0)
}

func fillRect(screen tcell.Screen, x, y, width, height int, bg tcell.Color) {
	style := tcell.StyleDefault.Background(bg)
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

// drawFooter lays out key hints and playback status side by side on wide
// terminals and stacked on narrow ones.
func (ui *UI) drawFooter(screen tcell.Screen, x, y, width, height int) {
	helpText := ui.getHelpText()
	statusText := " " + ui.statusRenderer.Render() + " "

	if width >= FooterBreakpoint {
		height = min(height, FooterHeightWide)
		helpWidth := width / 2
		fillRect(screen, x, y, helpWidth, height, ui.colors.helpBackground)
		fillRect(screen, x+helpWidth, y, width-helpWidth, height, ui.colors.background)

		mid := y + height/2
		tview.Print(screen, helpText, x, mid, helpWidth, tview.AlignCenter, ui.colors.helpForeground)
		tview.Print(screen, statusText, x+helpWidth, mid, width-helpWidth-2, tview.AlignRight, ui.colors.foreground)
		return
	}

	helpHeight := max(height/2, 1)
	statusHeight := height - helpHeight
	fillRect(screen, x, y, width, helpHeight, ui.colors.helpBackground)
	fillRect(screen, x, y+helpHeight, width, statusHeight, ui.colors.background)

	tview.Print(screen, helpText, x, y+helpHeight/2, width, tview.AlignCenter, ui.colors.helpForeground)
	if statusHeight > 0 {
		tview.Print(screen, statusText, x, y+helpHeight+statusHeight/2, width-2, tview.AlignRight, ui.colors.foreground)
	}
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)
	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.handleFooterResize(width)
		ui.drawFooter(screen, x, y, width, height)
		return x, y, width, height
	})
	return box
}
