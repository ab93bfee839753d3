// Package track defines the playable entries of a music library.
package track

import (
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// MusicExtensions lists the file extensions shown in a library.
var MusicExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a"}

// Track is one entry of a directory or remote listing.
type Track struct {
	ID       string // name as listed, relative to the library location
	Name     string // decoded display name
	Location string // absolute file path or URL
	Remote   bool
}

// New builds a track for id listed under base, a directory or a listing URL.
func New(base, id string, remote bool) Track {
	t := Track{
		ID:     id,
		Name:   DisplayName(id),
		Remote: remote,
	}
	if remote {
		t.Location = ResolveURL(base, id)
	} else {
		t.Location = filepath.Join(base, id)
	}
	return t
}

// IsMusicFile reports whether name has one of the MusicExtensions, ignoring case.
func IsMusicFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range MusicExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DisplayName returns the url-decoded base name of id. Malformed escapes are kept as is.
func DisplayName(id string) string {
	base := id
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if decoded, err := url.QueryUnescape(base); err == nil {
		return decoded
	}
	return strings.ReplaceAll(base, "+", " ")
}

// ResolveURL resolves href against the listing URL base.
func ResolveURL(base, href string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base + href
	}
	return b.ResolveReference(ref).String()
}

// Sort orders tracks by ID, ignoring case.
func Sort(tracks []Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return strings.ToLower(tracks[i].ID) < strings.ToLower(tracks[j].ID)
	})
}
