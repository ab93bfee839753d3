package track

import (
	"path/filepath"
	"testing"
)

func TestIsMusicFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"song.mp3", true},
		{"SONG.MP3", true},
		{"take.wav", true},
		{"lossless.flac", true},
		{"vorbis.ogg", true},
		{"aac.m4a", true},
		{"cover.jpg", false},
		{"notes.txt", false},
		{"mp3", false},
		{"archive.mp3.zip", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMusicFile(tt.name); got != tt.expected {
				t.Errorf("IsMusicFile(%q) = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"plain.mp3", "plain.mp3"},
		{"My%20Song.mp3", "My Song.mp3"},
		{"My+Song.mp3", "My Song.mp3"},
		{"caf%C3%A9.flac", "café.flac"},
		{"sub/dir/track%231.ogg", "track#1.ogg"},
		{"100%.mp3", "100%.mp3"},
		{"bad%zz+name.wav", "bad%zz name.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := DisplayName(tt.id); got != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.id, got, tt.expected)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base     string
		href     string
		expected string
	}{
		{"http://host/music/", "a.mp3", "http://host/music/a.mp3"},
		{"http://host/music", "a.mp3", "http://host/music/a.mp3"},
		{"http://host/music/", "/other/b.mp3", "http://host/other/b.mp3"},
		{"http://host/music/", "https://cdn/c.mp3", "https://cdn/c.mp3"},
		{"http://host/music/", "My%20Song.mp3", "http://host/music/My%20Song.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := ResolveURL(tt.base, tt.href); got != tt.expected {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	local := New("/music", "a%20b.mp3", false)
	if local.Location != filepath.Join("/music", "a%20b.mp3") {
		t.Errorf("local Location = %q", local.Location)
	}
	if local.Name != "a b.mp3" {
		t.Errorf("local Name = %q, want %q", local.Name, "a b.mp3")
	}
	if local.Remote {
		t.Error("local track should not be remote")
	}

	remote := New("http://host/dir", "x.flac", true)
	if remote.Location != "http://host/dir/x.flac" {
		t.Errorf("remote Location = %q", remote.Location)
	}
	if !remote.Remote {
		t.Error("remote track should be remote")
	}
	if remote.ID != "x.flac" {
		t.Errorf("remote ID = %q", remote.ID)
	}
}

func TestSort(t *testing.T) {
	tracks := []Track{{ID: "beta.mp3"}, {ID: "Alpha.mp3"}, {ID: "gamma.mp3"}, {ID: "ALPHA2.mp3"}}
	Sort(tracks)

	expected := []string{"Alpha.mp3", "ALPHA2.mp3", "beta.mp3", "gamma.mp3"}
	for i, id := range expected {
		if tracks[i].ID != id {
			t.Errorf("tracks[%d].ID = %q, want %q", i, tracks[i].ID, id)
		}
	}
}
