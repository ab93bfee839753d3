package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/cookie-player/internal/player"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const maxNameWidth = 60

func (ui *UI) createTrackListTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetTitle(fmt.Sprintf("Tracks (%d)", ui.library.Count())).
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	table.SetCell(0, 0, tview.NewTableCell(" ").
		SetTextColor(ui.colors.trackListHeaderForeground).
		SetBackgroundColor(ui.colors.trackListHeaderBackground).
		SetMaxWidth(2).
		SetSelectable(false))

	table.SetCell(0, 1, tview.NewTableCell("#").
		SetTextColor(ui.colors.trackListHeaderForeground).
		SetBackgroundColor(ui.colors.trackListHeaderBackground).
		SetAlign(tview.AlignRight).
		SetSelectable(false))

	table.SetCell(0, 2, tview.NewTableCell("Name").
		SetTextColor(ui.colors.trackListHeaderForeground).
		SetBackgroundColor(ui.colors.trackListHeaderBackground).
		SetExpansion(1).
		SetSelectable(false))

	trackCount := ui.library.Count()
	for i := 0; i < trackCount; i++ {
		ui.setTrackRow(table, i+1, i)
	}

	// Track selected ID for preserving selection after a rescan
	table.SetSelectionChangedFunc(func(row, column int) {
		if t := ui.library.Track(row - 1); t != nil {
			ui.selectedTrackID = t.ID
		}
	})

	return table
}

func (ui *UI) setTrackRow(table *tview.Table, row int, trackIndex int) {
	t := ui.library.Track(trackIndex)
	if t == nil {
		return
	}

	marker := " "
	if trackIndex == ui.playingIndex {
		marker = playingIcon(ui.player.State())
	}
	table.SetCell(row, 0, tview.NewTableCell(marker).
		SetTextColor(ui.colors.highlight).
		SetMaxWidth(2))

	table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%d", trackIndex+1)).
		SetTextColor(ui.colors.foreground).
		SetAlign(tview.AlignRight))

	name := t.Name
	if trackIndex == ui.playingIndex {
		name = PlayingMarker + name
	}
	table.SetCell(row, 2, tview.NewTableCell(tview.Escape(truncateName(name, maxNameWidth))).
		SetTextColor(ui.colors.foreground).
		SetExpansion(1))
}

func playingIcon(state player.State) string {
	switch state {
	case player.StatePaused:
		return PauseIcon
	case player.StatePlaying:
		return "➤"
	case player.StateFinished:
		return "✓"
	default:
		return " "
	}
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max || max < 4 {
		return name
	}
	return string(runes[:max-3]) + "..."
}

func (ui *UI) nextTrack() {
	trackCount := ui.library.Count()
	if trackCount == 0 {
		return
	}

	current := ui.playingIndex
	if current < 0 {
		current = ui.selectedIndex() - 1
	}
	nextIndex := (current + 1) % trackCount
	ui.trackList.Select(nextIndex+1, 0)
	ui.playTrack(nextIndex)
}

func (ui *UI) prevTrack() {
	trackCount := ui.library.Count()
	if trackCount == 0 {
		return
	}

	current := ui.playingIndex
	if current < 0 {
		current = ui.selectedIndex() + 1
	}
	prevIndex := current - 1
	if prevIndex < 0 {
		prevIndex = trackCount - 1
	}
	ui.trackList.Select(prevIndex+1, 0)
	ui.playTrack(prevIndex)
}

func (ui *UI) selectedIndex() int {
	row, _ := ui.trackList.GetSelection()
	if row < 1 {
		return 0
	}
	return row - 1
}

// refreshTrackTable rebuilds the rows after the library was rescanned. The
// playing and selected tracks keep their place by ID.
func (ui *UI) refreshTrackTable() {
	trackCount := ui.library.Count()

	if ui.playingTrackID != "" {
		ui.playingIndex = ui.library.IndexOf(ui.playingTrackID)
	}

	for row := ui.trackList.GetRowCount() - 1; row > trackCount; row-- {
		ui.trackList.RemoveRow(row)
	}
	for i := 0; i < trackCount; i++ {
		ui.setTrackRow(ui.trackList, i+1, i)
	}

	if ui.selectedTrackID != "" {
		if newIndex := ui.library.IndexOf(ui.selectedTrackID); newIndex >= 0 {
			ui.trackList.Select(newIndex+1, 0)
		}
	}

	ui.trackList.SetTitle(fmt.Sprintf("Tracks (%d)", trackCount))

	log.Debug().Int("count", trackCount).Msg("Track table refreshed")
}

func (ui *UI) updatePlayingIndicator(snap player.Snapshot) {
	if ui.playingIndex < 0 || ui.playingIndex >= ui.library.Count() {
		return
	}

	playCell := ui.trackList.GetCell(ui.playingIndex+1, 0)
	if playCell != nil {
		playCell.SetText(playingIcon(snap.State))
	}
}
