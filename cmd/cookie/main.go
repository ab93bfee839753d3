package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebovdev/cookie-player/internal/cache"
	"github.com/glebovdev/cookie-player/internal/config"
	"github.com/glebovdev/cookie-player/internal/device"
	"github.com/glebovdev/cookie-player/internal/library"
	"github.com/glebovdev/cookie-player/internal/player"
	"github.com/glebovdev/cookie-player/internal/remote"
	"github.com/glebovdev/cookie-player/internal/ui"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const listTimeout = 30 * time.Second

type options struct {
	debug    bool
	headless bool
	user     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "cookie [directory|url]",
		Short:   config.AppDescription,
		Long:    fmt.Sprintf("%s - %s", config.AppName, config.AppDescription),
		Version: config.AppVersion,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := ""
			if len(args) > 0 {
				location = args[0]
			}
			return run(opts, location)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Decode without an audio device")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "Username for remote listings")

	cmd.SetVersionTemplate(fmt.Sprintf("%s v{{.Version}}\n%s\n", config.AppName, config.AppDescription))

	return cmd
}

func setupLogging(debug bool) {
	if !debug {
		// Avoid TUI corruption by only logging errors to /dev/null
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
		if err == nil {
			log.Logger = log.Output(logFile)
		}
		return
	}

	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	cacheDir, err := cache.GetCacheDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
		cacheDir = os.TempDir()
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
	}
	logPath := filepath.Join(cacheDir, "debug.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
		logFile = os.Stderr
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05"})
	fmt.Printf("Debug log: %s\n", logPath)
	log.Info().Msgf("Starting %s v%s (debug mode)", config.AppName, config.AppVersion)
}

func run(opts *options, location string) error {
	setupLogging(opts.debug)

	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load environment file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
	}
	if configPath, err := config.GetConfigPath(); err == nil {
		log.Debug().Msgf("Config: %s", configPath)
	}

	if location == "" {
		location, err = promptLocation(cfg.LastLocation)
		if err != nil {
			return err
		}
	}
	if location == "" {
		return errors.New("no directory or URL given")
	}

	var client *remote.Client
	if library.IsURL(location) {
		username, password := cfg.Credentials(opts.user)
		if username != "" && password == "" {
			password, err = promptPassword(username)
			if err != nil {
				return err
			}
		}
		client = remote.NewClient(username, password)
		if username != "" {
			cfg.Username = username
		}
	}

	lib := library.New(location, fetcherOrNil(client), trackCache())

	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	tracks, err := lib.Load(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", location, err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w in %s", ui.ErrNoTracks, location)
	}
	log.Debug().Int("tracks", len(tracks)).Str("location", location).Msg("Library loaded")

	rate := beep.SampleRate(cfg.OutputSampleRate)
	var opener device.Opener
	if opts.headless {
		opener = device.NewHeadless(rate, cfg.BufferDuration())
	} else {
		opener = device.NewSpeaker(rate, cfg.BufferDuration())
	}

	var cookieUI *ui.UI
	cookiePlayer := player.New(opener,
		player.WithPollInterval(cfg.PollInterval()),
		player.WithFinishedHandler(func(snap player.Snapshot) {
			cookieUI.TrackFinished(snap)
		}),
	)
	cookieUI = ui.NewUI(cookiePlayer, lib, cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, cleaning up...")
		cookieUI.Shutdown()
	}()

	log.Info().Msg("Starting UI...")

	uiErr := cookieUI.Run()

	// Ensure player is fully stopped before exiting
	cookiePlayer.Close()

	if uiErr != nil {
		log.Error().Err(uiErr).Msg("Error running UI")
		return uiErr
	}
	log.Info().Msgf("%s stopped", config.AppName)
	return nil
}

// fetcherOrNil keeps a nil *remote.Client from becoming a non-nil interface.
func fetcherOrNil(c *remote.Client) library.Fetcher {
	if c == nil {
		return nil
	}
	return c
}

func trackCache() library.TrackCache {
	c, err := cache.NewCache()
	if err != nil {
		log.Warn().Err(err).Msg("Track cache disabled")
		return nil
	}
	if dir, err := cache.GetCacheDir(); err == nil {
		log.Debug().Msgf("Cache: %s", dir)
	}

	go func() {
		if err := c.CleanExpired(); err != nil {
			log.Debug().Err(err).Msg("Failed to clean expired tracks")
		}
	}()

	return c
}

func promptLocation(last string) (string, error) {
	if last != "" {
		fmt.Printf("Directory or URL [%s]: ", last)
	} else {
		fmt.Print("Directory or URL: ")
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		if last != "" {
			return last, nil
		}
		return "", fmt.Errorf("failed to read location: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return last, nil
	}
	return line, nil
}

func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
