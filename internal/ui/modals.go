package ui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/glebovdev/cookie-player/internal/config"
	"github.com/glebovdev/cookie-player/internal/remote"
	"github.com/rivo/tview"
)

const (
	modalPage      = "modal"
	errorModalPage = "error-modal"
	maxErrorLength = 100
)

func friendlyErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoTracks):
		return err.Error()
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return "This file format is not supported."
	case errors.Is(err, audio.ErrTruncated):
		return "The track data is incomplete."
	case errors.Is(err, audio.ErrDevice):
		return "The audio device could not be opened."
	}

	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return "Access denied (401).\nCheck your username and password."
		case http.StatusForbidden:
			return "Access forbidden (403)."
		case http.StatusNotFound:
			return "Track not found (404)."
		default:
			return fmt.Sprintf("Server answered %d.", statusErr.StatusCode)
		}
	}

	errStr := err.Error()
	if strings.Contains(errStr, "no such host") {
		return "Unable to connect to server.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused by server.\nThe service may be temporarily unavailable."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "network is unreachable") {
		return "Network is unreachable.\nPlease check your internet connection."
	}

	if idx := strings.Index(errStr, ": dial"); idx > 0 {
		return errStr[:idx]
	}
	return truncateName(errStr, maxErrorLength+3)
}

// modal describes a centered dialog on the pages stack. A nil onKey closes
// the dialog on any key; otherwise onKey reports whether it handled the key.
type modal struct {
	page   string
	title  string
	body   string
	hint   string
	align  int
	width  int
	height int
	accent tcell.Color
	onKey  func(event *tcell.EventKey) bool
}

func (ui *UI) closeModal(page string) {
	ui.pages.RemovePage(page)
	ui.app.SetFocus(ui.trackList)
}

func (ui *UI) showModal(m modal) {
	body := tview.NewTextView().
		SetTextAlign(m.align).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + m.body)
	body.SetTextColor(ui.colors.foreground)
	body.SetBackgroundColor(ui.colors.modalBackground)

	hint := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(m.hint)
	hint.SetTextColor(tcell.ColorDarkGray)
	hint.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(hint, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(content).
		SetBorders(0, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(m.accent).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" " + m.title + " ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	layout := ui.centered(frame, m.width, m.height)
	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if m.onKey == nil {
			ui.closeModal(m.page)
			return nil
		}
		if m.onKey(event) {
			return nil
		}
		return event
	})

	ui.pages.AddPage(m.page, layout, true, true)
	ui.app.SetFocus(layout)
}

func (ui *UI) centered(p tview.Primitive, width, height int) *tview.Flex {
	column := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(p, height, 0, true).
		AddItem(nil, 0, 1, false)
	column.SetBackgroundColor(ui.colors.background)

	row := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(column, width, 0, true).
		AddItem(nil, 0, 1, false)
	row.SetBackgroundColor(ui.colors.background)
	return row
}

func (ui *UI) showError(err error) {
	message := friendlyErrorMessage(err)

	height := 10 + max(strings.Count(message, "\n")-1, 0)
	ui.showModal(modal{
		page:   errorModalPage,
		title:  "Error",
		body:   "[::b]Playback Error[::-]\n\n" + message,
		hint:   "[::d]Press [::b]R[::d] to retry  •  Press [::b]Esc[::d] to dismiss[::-]",
		align:  tview.AlignCenter,
		width:  50,
		height: min(height, 15),
		accent: ui.colors.highlight,
		onKey: func(event *tcell.EventKey) bool {
			switch {
			case event.Key() == tcell.KeyEscape, event.Key() == tcell.KeyEnter:
				ui.closeModal(errorModalPage)
			case event.Key() == tcell.KeyRune && (event.Rune() == 'r' || event.Rune() == 'R'):
				ui.closeModal(errorModalPage)
				if ui.playingIndex >= 0 {
					ui.playTrack(ui.playingIndex)
				}
			default:
				return false
			}
			return true
		},
	})
}

func (ui *UI) showHelpModal() {
	k := ui.colors.helpHotkey.String()
	configPath, _ := config.GetConfigPath()

	lines := []string{
		"[::b]KEYBOARD SHORTCUTS[::-]",
		"",
		fmt.Sprintf("[%s]PLAYBACK[-]", k),
		fmt.Sprintf("  [%s]Enter[-]      Play selected track", k),
		fmt.Sprintf("  [%s]Space[-]      Pause / Resume", k),
		fmt.Sprintf("  [%s]s[-]          Stop", k),
		fmt.Sprintf("  [%s]p[-] / [%s]<[-]      Previous track", k, k),
		fmt.Sprintf("  [%s]n[-] / [%s]>[-]      Next track", k, k),
		fmt.Sprintf("  [%s]←[-] / [%s]→[-]      Seek %v back / forward", k, k, SeekStep),
		"",
		fmt.Sprintf("[%s]TRACKS[-]", k),
		fmt.Sprintf("  [%s]↑[-] / [%s]↓[-]      Navigate list", k, k),
		"",
		fmt.Sprintf("[%s]APPLICATION[-]", k),
		fmt.Sprintf("  [%s]?[-]          Show this help", k),
		fmt.Sprintf("  [%s]a[-]          About %s", k, config.AppName),
		fmt.Sprintf("  [%s]q[-] / [%s]Esc[-]    Quit", k, k),
		"",
		fmt.Sprintf("[%s]CONFIG[-]: %s", k, tview.Escape(configPath)),
	}

	ui.showModal(modal{
		page:   modalPage,
		title:  "Help",
		body:   strings.Join(lines, "\n"),
		hint:   "[::d]Press any key to close[::-]",
		align:  tview.AlignLeft,
		width:  45,
		height: min(len(lines)+8, 38),
		accent: ui.colors.borders,
	})
}

func (ui *UI) showAboutModal() {
	const link = "skyblue"
	const dim = "gray"

	body := fmt.Sprintf("[::b]%s[::-]\n[%s]%s[-]\n\n"+
		"Version: %s\n"+
		"Author:  %s ([%s:::%s]%s[-:::-])\n"+
		"Project: [%s:::%s]%s[-:::-]\n"+
		"License: MIT\n\n"+
		"[%s]Plays[-] mp3, wav, flac [%s]and[-] ogg vorbis",
		config.AppName, dim, config.AppTagline,
		config.AppVersion,
		config.AppAuthor, link, config.AppAuthorURL, config.AppAuthorURLShort,
		link, config.AppProjectURL, config.AppProjectShort,
		dim, dim)

	ui.showModal(modal{
		page:   modalPage,
		title:  "About",
		body:   body,
		hint:   "[::d]Press any key to close[::-]",
		align:  tview.AlignLeft,
		width:  50,
		height: 16,
		accent: ui.colors.borders,
	})
}

// handleInitialError replaces the loading screen when the library could not
// be loaded. R retries the load, Q or Esc quits.
func (ui *UI) handleInitialError(err error) {
	text := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::b]Unable to Load Tracks[::-]\n\n" + friendlyErrorMessage(err))
	text.SetTextColor(ui.colors.foreground)
	text.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(text).
		SetBorders(2, 2, 2, 2, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.highlight).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" Error ").
		SetTitleColor(ui.colors.highlight)

	hint := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]Press [::b]R[::d] to retry  •  Press [::b]Q[::d] to quit[::-]")
	hint.SetTextColor(ui.colors.foreground)
	hint.SetBackgroundColor(ui.colors.background)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.centered(frame, 60, 10), 0, 1, true).
		AddItem(hint, 2, 0, false)
	layout.SetBackgroundColor(ui.colors.background)

	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyRune && (event.Rune() == 'r' || event.Rune() == 'R'):
			ui.app.SetRoot(ui.loadingScreen, true)
			go ui.initAsync()
		case event.Key() == tcell.KeyEscape,
			event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q'):
			ui.app.Stop()
		default:
			return event
		}
		return nil
	})

	ui.app.SetRoot(layout, true)
	ui.app.SetFocus(layout)
}
