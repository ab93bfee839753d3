package ui

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/glebovdev/cookie-player/internal/config"
	"github.com/glebovdev/cookie-player/internal/library"
	"github.com/glebovdev/cookie-player/internal/player"
	"github.com/glebovdev/cookie-player/internal/track"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	SeekStep              = 5 * time.Second
	HeaderHeight          = 3
	FooterHeightWide      = 3 // Wide: 1 row with padding (top + text + bottom)
	FooterHeightNarrow    = 6 // Narrow: 2 rows × 3 lines each
	PlayerPanelHeight     = 7
	FooterBreakpoint      = 110 // Width threshold for responsive footer
	RefreshInterval       = 100 * time.Millisecond
	MinLoadingDisplayTime = 600 * time.Millisecond
	MinStatusDisplayTime  = 200 * time.Millisecond
	PlayingMarker         = "~ "
)

// PauseIcon uses platform-specific character (Windows renders ⏸ as emoji)
var PauseIcon = func() string {
	if runtime.GOOS == "windows" {
		return "❚❚"
	}
	return "⏸"
}()

type UI struct {
	app             *tview.Application
	library         *library.Library
	player          *player.Player
	trackList       *tview.Table
	helpPanel       *tview.Box
	contentLayout   *tview.Flex
	nowPlayingView  *tview.TextView
	positionView    *tview.TextView
	locationView    *tview.TextView
	mainLayout      *tview.Flex
	loadingScreen   *tview.Flex
	loadingText     *tview.TextView
	progressBar     *tview.TextView
	pages           *tview.Pages
	stopUpdates     chan struct{}
	finished        chan player.Snapshot
	playingIndex    int
	playingTrackID  string
	selectedTrackID string
	config          *config.Config
	lastFooterWidth int // Track width to detect layout changes
	mu              sync.Mutex
	playRequest     atomic.Uint64
	startMu         sync.Mutex
	cancelFetch     context.CancelFunc
	statusRenderer  *StatusRenderer
	colors          struct {
		background                tcell.Color
		foreground                tcell.Color
		borders                   tcell.Color
		highlight                 tcell.Color
		headerBackground          tcell.Color
		trackListHeaderBackground tcell.Color
		trackListHeaderForeground tcell.Color
		helpBackground            tcell.Color
		helpForeground            tcell.Color
		helpHotkey                tcell.Color
		modalBackground           tcell.Color
	}
}

// NewUI builds the interface around an already constructed player. Wire the
// player's finished handler to TrackFinished so playback can advance.
func NewUI(p *player.Player, lib *library.Library, cfg *config.Config) *UI {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ui := &UI{
		app:          tview.NewApplication(),
		player:       p,
		library:      lib,
		stopUpdates:  make(chan struct{}),
		finished:     make(chan player.Snapshot, 1),
		playingIndex: -1,
		config:       cfg,
	}

	ui.colors.background = config.GetColor(cfg.Theme.Background)
	ui.colors.foreground = config.GetColor(cfg.Theme.Foreground)
	ui.colors.borders = config.GetColor(cfg.Theme.Borders)
	ui.colors.highlight = config.GetColor(cfg.Theme.Highlight)
	ui.colors.headerBackground = config.GetColor(cfg.Theme.HeaderBackground)
	ui.colors.trackListHeaderBackground = config.GetColor(cfg.Theme.TrackListHeaderBackground)
	ui.colors.trackListHeaderForeground = config.GetColor(cfg.Theme.TrackListHeaderForeground)
	ui.colors.helpBackground = config.GetColor(cfg.Theme.HelpBackground)
	ui.colors.helpForeground = config.GetColor(cfg.Theme.HelpForeground)
	ui.colors.helpHotkey = config.GetColor(cfg.Theme.HelpHotkey)
	ui.colors.modalBackground = config.GetColor(cfg.Theme.ModalBackground)

	ui.statusRenderer = NewStatusRenderer(p)
	ui.statusRenderer.SetPrimaryColor(ui.colors.highlight.String())

	return ui
}

// TrackFinished is the player's finished handler. It runs on the watcher
// goroutine, so it only hands the snapshot over to the refresh loop.
func (ui *UI) TrackFinished(snap player.Snapshot) {
	select {
	case ui.finished <- snap:
	default:
		log.Debug().Msgf("Dropped finished signal for generation %d", snap.Generation)
	}
}

func (ui *UI) SaveConfig() {
	ui.mu.Lock()
	ui.config.LastLocation = ui.library.Location()
	if ui.playingTrackID != "" {
		ui.config.LastTrack = ui.playingTrackID
	}
	cfg := *ui.config
	ui.mu.Unlock()

	if err := cfg.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save config")
	}
}

func (ui *UI) safeCloseChannel() {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.stopUpdates != nil {
		select {
		case <-ui.stopUpdates:
			// Already closed
		default:
			close(ui.stopUpdates)
		}
		ui.stopUpdates = nil
	}
}

func (ui *UI) cancelPendingFetch() {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.cancelFetch != nil {
		ui.cancelFetch()
		ui.cancelFetch = nil
	}
}

func (ui *UI) stop() {
	ui.library.StopWatch()
	ui.cancelPendingFetch()
	ui.player.Stop()
	ui.SaveConfig()
	ui.safeCloseChannel()
	ui.app.Stop()
}

// Shutdown stops the UI gracefully from external callers (e.g., signal handlers).
func (ui *UI) Shutdown() {
	ui.app.QueueUpdateDraw(func() {
		ui.stop()
	})
}

func (ui *UI) Run() error {
	ui.setupLoadingScreen()
	ui.app.SetRoot(ui.loadingScreen, true)
	ui.configureScreen()

	go ui.initAsync()

	return ui.app.Run()
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppName) })
	})
}

func (ui *UI) initAsync() {
	if err := ui.loadLibraryAndInitUI(); err != nil {
		ui.app.QueueUpdateDraw(func() {
			ui.handleInitialError(err)
		})
	}
}

func (ui *UI) setupLoadingScreen() {
	ui.loadingText = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText("Scanning " + ui.library.Location() + "... (1/2)")
	ui.loadingText.SetTextColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background)

	ui.progressBar = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText(renderLoadingBar(0))
	ui.progressBar.SetTextColor(ui.colors.highlight).
		SetBackgroundColor(ui.colors.background)

	content := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.loadingText, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.progressBar, 1, 0, false)
	content.SetBackgroundColor(ui.colors.background)

	ui.loadingScreen = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(content, 3, 0, false).
		AddItem(nil, 0, 1, false)

	ui.loadingScreen.SetBackgroundColor(ui.colors.background)
}

func renderLoadingBar(percent int) string {
	const width = 30
	filled := (percent * width) / 100
	empty := width - filled
	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}

func (ui *UI) animateProgress(fromPercent, toPercent int, duration time.Duration) {
	steps := toPercent - fromPercent
	if steps <= 0 {
		return
	}
	stepDuration := duration / time.Duration(steps)
	lastBar := renderLoadingBar(fromPercent)

	for p := fromPercent + 1; p <= toPercent; p++ {
		time.Sleep(stepDuration)
		if bar := renderLoadingBar(p); bar != lastBar {
			ui.app.QueueUpdateDraw(func() {
				ui.progressBar.SetText(bar)
			})
			lastBar = bar
		}
	}
}

// ErrNoTracks is returned when the location holds no playable files.
var ErrNoTracks = errors.New("no music files found")

func (ui *UI) loadLibraryAndInitUI() error {
	const totalStages = 2
	stagePercent := func(stage int) int { return (stage * 100) / totalStages }

	startTime := time.Now()

	animDone := make(chan struct{})
	go func() {
		ui.animateProgress(stagePercent(0), stagePercent(1), MinStatusDisplayTime)
		close(animDone)
	}()

	var err error
	if ui.library.Count() == 0 {
		_, err = ui.library.Load(context.Background())
	}
	<-animDone
	if err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}
	if ui.library.Count() == 0 {
		return fmt.Errorf("%w in %s", ErrNoTracks, ui.library.Location())
	}
	log.Debug().Msgf("Loaded %d tracks in %v", ui.library.Count(), time.Since(startTime))

	ui.app.QueueUpdateDraw(func() {
		ui.loadingText.SetText("Building interface... (2/2)")
	})

	ui.setupUI()
	if err := ui.library.Watch(ui.onTracksChanged); err != nil {
		log.Warn().Err(err).Msg("Directory watch unavailable")
	}

	ui.animateProgress(stagePercent(1), stagePercent(2), MinStatusDisplayTime)

	// Floor, not ceiling: wait only if real work finished early.
	if elapsed := time.Since(startTime); elapsed < MinLoadingDisplayTime {
		time.Sleep(MinLoadingDisplayTime - elapsed)
	}
	log.Debug().Msgf("Total loading time: %v", time.Since(startTime))

	ui.app.QueueUpdateDraw(func() {
		ui.app.SetRoot(ui.pages, true).EnableMouse(true)
		ui.app.SetFocus(ui.trackList)

		index := 0
		if ui.config.LastLocation == ui.library.Location() && ui.config.LastTrack != "" {
			if i := ui.library.IndexOf(ui.config.LastTrack); i >= 0 {
				index = i
			} else {
				log.Debug().Msgf("Last track '%s' not found, selecting first track", ui.config.LastTrack)
			}
		}
		ui.trackList.Select(index+1, 0)
		ui.SaveConfig()
	})

	ui.startRefreshLoop()

	return nil
}

func (ui *UI) setupUI() {
	header := ui.createHeader()

	ui.trackList = ui.createTrackListTable()

	ui.helpPanel = ui.createFooter()

	playerPanel := ui.createNowPlayingPanel()

	ui.contentLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(playerPanel, PlayerPanelHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.trackList, 0, 1, true).
		AddItem(ui.helpPanel, FooterHeightWide, 0, false)
	ui.contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 3, 0, false).
		AddItem(ui.contentLayout, 0, 1, true).
		AddItem(nil, 3, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	ui.mainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	ui.mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", ui.mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage(modalPage) || ui.pages.HasPage(errorModalPage) {
			return event
		}
		return ui.globalInputHandler(event)
	})
}

func (ui *UI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + strings.ToUpper(config.AppName))
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(ui.colors.foreground)
	titleView.SetBackgroundColor(ui.colors.headerBackground)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(ui.colors.foreground)
	versionView.SetBackgroundColor(ui.colors.headerBackground)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 10, 0, false)
	textFlex.SetBackgroundColor(ui.colors.headerBackground)

	topSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	bottomSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	leftSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	rightSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)

	textWithPadding := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(leftSpacer, 1, 0, false).
		AddItem(textFlex, 0, 1, false).
		AddItem(rightSpacer, 1, 0, false)
	textWithPadding.SetBackgroundColor(ui.colors.headerBackground)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topSpacer, 1, 0, false).
		AddItem(textWithPadding, 1, 0, false).
		AddItem(bottomSpacer, 1, 0, false)
	headerFlex.SetBackgroundColor(ui.colors.headerBackground)

	return headerFlex
}

func (ui *UI) createNowPlayingPanel() *tview.Flex {
	locationLabel := tview.NewTextView()
	locationLabel.SetText(" Source:")
	locationLabel.SetTextColor(ui.colors.foreground)
	locationLabel.SetBackgroundColor(ui.colors.background)
	locationLabel.SetWrap(false)

	ui.locationView = tview.NewTextView()
	ui.locationView.SetDynamicColors(true)
	ui.locationView.SetText(fmt.Sprintf(" [%s]%s[-]",
		ui.colors.foreground.String(),
		tview.Escape(ui.library.Location())))
	ui.locationView.SetBackgroundColor(ui.colors.background)
	ui.locationView.SetWrap(false)

	ui.nowPlayingView = tview.NewTextView()
	ui.nowPlayingView.SetDynamicColors(true)
	ui.nowPlayingView.SetTextColor(ui.colors.highlight)
	ui.nowPlayingView.SetBackgroundColor(ui.colors.background)
	ui.nowPlayingView.SetWrap(false)
	ui.nowPlayingView.SetTextStyle(tcell.StyleDefault.Background(ui.colors.background).Attributes(tcell.AttrBold))

	ui.positionView = tview.NewTextView()
	ui.positionView.SetDynamicColors(true)
	ui.positionView.SetTextColor(ui.colors.foreground)
	ui.positionView.SetBackgroundColor(ui.colors.background)
	ui.positionView.SetWrap(false)

	infoContent := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(locationLabel, 1, 0, false).
		AddItem(ui.locationView, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.nowPlayingView, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.positionView, 1, 0, false).
		AddItem(nil, 0, 1, false)
	infoContent.SetBackgroundColor(ui.colors.background)

	contentWithPadding := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 4, 0, false).
		AddItem(infoContent, 0, 1, false).
		AddItem(nil, 4, 0, false)
	contentWithPadding.SetBackgroundColor(ui.colors.background)

	ui.updateNowPlaying(ui.player.Snapshot())

	return contentWithPadding
}

// updateNowPlaying redraws the now playing line and progress bar from snap.
func (ui *UI) updateNowPlaying(snap player.Snapshot) {
	if ui.nowPlayingView == nil {
		return
	}

	ui.nowPlayingView.SetText(" " + tview.Escape(nowPlayingText(snap)))

	if !snap.Active() {
		ui.positionView.SetText("")
		return
	}

	_, _, width, _ := ui.positionView.GetInnerRect()
	ui.positionView.SetText(" " + tview.Escape(renderTrackProgress(snap, width-2)))
}

// startRefreshLoop redraws playback state at RefreshInterval and advances
// to the next track when the player reports one finished.
func (ui *UI) startRefreshLoop() {
	ui.mu.Lock()
	stopCh := ui.stopUpdates
	ui.mu.Unlock()
	if stopCh == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case snap := <-ui.finished:
				ui.app.QueueUpdateDraw(func() {
					ui.onTrackFinished(snap)
				})
			case <-ticker.C:
				ui.app.QueueUpdateDraw(func() {
					ui.statusRenderer.AdvanceAnimation()
					ui.refreshPlaybackState()
				})
			}
		}
	}()
}

func (ui *UI) refreshPlaybackState() {
	snap := ui.player.Snapshot()
	ui.updateNowPlaying(snap)
	ui.updatePlayingIndicator(snap)
}

func (ui *UI) onTrackFinished(snap player.Snapshot) {
	current := ui.player.Snapshot()
	if current.Generation != snap.Generation || current.State != player.StateFinished {
		log.Debug().Msgf("Ignoring finished signal for generation %d", snap.Generation)
		return
	}

	if !ui.config.Autoplay {
		ui.refreshPlaybackState()
		return
	}

	count := ui.library.Count()
	if count == 0 {
		return
	}
	next := (ui.playingIndex + 1) % count
	log.Debug().Msgf("Track finished, advancing to %d", next)
	ui.trackList.Select(next+1, 0)
	ui.playTrack(next)
}

func (ui *UI) onTracksChanged(tracks []track.Track) {
	ui.app.QueueUpdateDraw(func() {
		ui.refreshTrackTable()
	})
}

// playTrack fetches the track at index in the background and starts it. A
// newer request supersedes any fetch still in flight.
func (ui *UI) playTrack(index int) {
	t := ui.library.Track(index)
	if t == nil {
		return
	}

	previousPlayingIndex := ui.playingIndex
	ui.playingIndex = index
	ui.mu.Lock()
	ui.playingTrackID = t.ID
	ui.mu.Unlock()
	if previousPlayingIndex >= 0 && previousPlayingIndex != index {
		ui.setTrackRow(ui.trackList, previousPlayingIndex+1, previousPlayingIndex)
	}
	ui.setTrackRow(ui.trackList, index+1, index)

	ui.cancelPendingFetch()
	ctx, cancel := context.WithCancel(context.Background())
	ui.mu.Lock()
	ui.cancelFetch = cancel
	ui.mu.Unlock()

	req := ui.playRequest.Add(1)
	if t.Remote {
		ui.nowPlayingView.SetText(fmt.Sprintf(" Loading - %s", tview.Escape(t.Name)))
	}

	go func() {
		defer cancel()

		src, err := ui.library.Fetch(ctx, *t)
		if err == nil {
			err = ui.startIfCurrent(req, src)
		}
		switch {
		case err == nil:
			ui.app.QueueUpdateDraw(func() {
				ui.refreshPlaybackState()
			})
		case errors.Is(err, errSuperseded), errors.Is(err, context.Canceled), ui.playRequest.Load() != req:
			log.Debug().Err(err).Str("track", t.ID).Msg("Dropped superseded play request")
		default:
			log.Error().Err(err).Str("track", t.ID).Msg("Failed to play track")
			ui.app.QueueUpdateDraw(func() {
				if ui.playRequest.Load() == req {
					ui.showError(err)
				}
			})
		}
	}()

	go ui.SaveConfig()
}

var errSuperseded = errors.New("play request superseded")

// startIfCurrent starts src only if req is still the latest play request.
// The check and Start happen under startMu, so an older request can never
// start after a newer one.
func (ui *UI) startIfCurrent(req uint64, src audio.Source) error {
	ui.startMu.Lock()
	defer ui.startMu.Unlock()

	if ui.playRequest.Load() != req {
		return errSuperseded
	}
	return ui.player.Start(src)
}

// activateSelection plays the selected row, or toggles pause if it is
// already the loaded track.
func (ui *UI) activateSelection() {
	row, _ := ui.trackList.GetSelection()
	if row <= 0 || row > ui.library.Count() {
		return
	}
	index := row - 1

	if index == ui.playingIndex {
		switch ui.player.State() {
		case player.StatePlaying, player.StatePaused:
			ui.player.TogglePause()
			ui.refreshPlaybackState()
			return
		}
	}
	ui.playTrack(index)
}

func (ui *UI) seekBy(delta time.Duration) {
	snap := ui.player.Snapshot()
	if !snap.Active() {
		return
	}

	target := snap.Position() + delta
	if target < 0 {
		target = 0
	}
	if d := snap.Duration(); target > d {
		target = d
	}

	if err := ui.player.Seek(target); err != nil {
		log.Debug().Err(err).Msg("Seek failed")
		return
	}
	ui.refreshPlaybackState()
}

func (ui *UI) stopPlayback() {
	ui.cancelPendingFetch()
	ui.startMu.Lock()
	ui.playRequest.Add(1)
	ui.player.Stop()
	ui.startMu.Unlock()
	ui.refreshPlaybackState()
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			ui.stop()
			return nil
		case ' ':
			switch ui.player.State() {
			case player.StatePlaying, player.StatePaused:
				ui.player.TogglePause()
				ui.refreshPlaybackState()
			default:
				ui.activateSelection()
			}
			return nil
		case 's', 'S':
			ui.stopPlayback()
			return nil
		case '>', 'n', 'N':
			ui.nextTrack()
			return nil
		case '<', 'p', 'P':
			ui.prevTrack()
			return nil
		case '?':
			ui.showHelpModal()
			return nil
		case 'a', 'A':
			ui.showAboutModal()
			return nil
		}
	case tcell.KeyEnter:
		ui.activateSelection()
		return nil
	case tcell.KeyEscape:
		ui.stop()
		return nil
	case tcell.KeyRight:
		ui.seekBy(SeekStep)
		return nil
	case tcell.KeyLeft:
		ui.seekBy(-SeekStep)
		return nil
	}
	return event
}
