// Package library resolves a directory or remote index into a track list and
// turns tracks into playable sources.
package library

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/glebovdev/cookie-player/internal/audio"
	"github.com/glebovdev/cookie-player/internal/track"
	"github.com/rs/zerolog/log"
)

// Fetcher lists and downloads remote tracks.
type Fetcher interface {
	ListTracks(ctx context.Context, listingURL string) ([]string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TrackCache stores downloaded track bytes between runs.
type TrackCache interface {
	GetTrack(url string) []byte
	SaveTrack(url string, data []byte) error
}

// Library holds the tracks found at one location.
type Library struct {
	location string
	remote   bool
	client   Fetcher
	cache    TrackCache

	tracks []track.Track
	mu     sync.RWMutex

	watch watchState
}

// New creates a Library for location. client may be nil for local
// directories and cache may be nil to disable caching.
func New(location string, client Fetcher, cache TrackCache) *Library {
	return &Library{
		location: location,
		remote:   IsURL(location),
		client:   client,
		cache:    cache,
	}
}

// IsURL reports whether location should be listed over HTTP.
func IsURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (l *Library) Location() string {
	return l.location
}

func (l *Library) IsRemote() bool {
	return l.remote
}

// Load lists the location and replaces the track list.
func (l *Library) Load(ctx context.Context) ([]track.Track, error) {
	var (
		ids []string
		err error
	)
	if l.remote {
		ids, err = l.listRemote(ctx)
	} else {
		ids, err = l.listLocal()
	}
	if err != nil {
		return nil, err
	}

	tracks := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, track.New(l.location, id, l.remote))
	}
	track.Sort(tracks)

	l.mu.Lock()
	l.tracks = tracks
	l.mu.Unlock()

	log.Debug().Int("count", len(tracks)).Str("location", l.location).Msg("Library loaded")
	return l.Tracks(), nil
}

func (l *Library) listRemote(ctx context.Context) ([]string, error) {
	if l.client == nil {
		return nil, audio.Wrap("list", l.location, fmt.Errorf("%w: no remote client", audio.ErrSourceUnavailable))
	}
	ids, err := l.client.ListTracks(ctx, l.location)
	if err != nil {
		return nil, audio.Wrap("list", l.location, fmt.Errorf("%w: %w", audio.ErrSourceUnavailable, err))
	}
	return ids, nil
}

func (l *Library) listLocal() ([]string, error) {
	entries, err := os.ReadDir(l.location)
	if err != nil {
		return nil, audio.Wrap("list", l.location, fmt.Errorf("%w: %w", audio.ErrSourceUnavailable, err))
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if !track.IsMusicFile(name) {
			continue
		}
		// Stat follows symlinks, ReadDir's type bits do not.
		info, err := os.Stat(filepath.Join(l.location, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		ids = append(ids, name)
	}
	return ids, nil
}

// Tracks returns a copy of the current track list.
func (l *Library) Tracks() []track.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]track.Track, len(l.tracks))
	copy(result, l.tracks)
	return result
}

func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Track returns a copy of the track at index, or nil if out of bounds.
func (l *Library) Track(index int) *track.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index < 0 || index >= len(l.tracks) {
		return nil
	}
	t := l.tracks[index]
	return &t
}

func (l *Library) IndexOf(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, t := range l.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Fetch turns t into a playable source. Remote tracks are downloaded whole,
// or served from the cache when a fresh copy exists.
func (l *Library) Fetch(ctx context.Context, t track.Track) (audio.Source, error) {
	if !t.Remote {
		src := audio.Local(t.Location).WithName(t.Name)
		if f, err := os.Open(t.Location); err == nil {
			src = src.WithName(tagName(f))
			f.Close()
		}
		return src, nil
	}

	data, err := l.fetchRemote(ctx, t.Location)
	if err != nil {
		return audio.Source{}, err
	}

	src := audio.Remote(t.Name, data)
	return src.WithName(tagName(bytes.NewReader(data))), nil
}

func (l *Library) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	if l.cache != nil {
		if data := l.cache.GetTrack(url); len(data) > 0 {
			log.Debug().Str("url", url).Msg("Track loaded from cache")
			return data, nil
		}
	}

	if l.client == nil {
		return nil, audio.Wrap("fetch", url, fmt.Errorf("%w: no remote client", audio.ErrSourceUnavailable))
	}

	data, err := l.client.Fetch(ctx, url)
	if err != nil {
		return nil, audio.Wrap("fetch", url, fmt.Errorf("%w: %w", audio.ErrSourceUnavailable, err))
	}
	if len(data) == 0 {
		return nil, audio.Wrap("fetch", url, fmt.Errorf("%w: empty response", audio.ErrSourceUnavailable))
	}

	if l.cache != nil {
		go func() {
			if err := l.cache.SaveTrack(url, data); err != nil {
				log.Debug().Err(err).Str("url", url).Msg("Failed to cache track")
			} else {
				log.Debug().Str("url", url).Msg("Track cached")
			}
		}()
	}

	return data, nil
}

// tagName returns "Artist - Title" from embedded tags, or "" when the file
// carries none.
func tagName(r io.ReadSeeker) string {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(m.Title())
	if title == "" {
		return ""
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		return artist + " - " + title
	}
	return title
}
