package main

import "testing"

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=a&list=PL123", true},
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://music.youtube.com/playlist?list=OLAK5", true},
		{"https://www.youtube.com/watch?v=a", false},
		{"https://youtu.be/a", false},
	}
	for _, tt := range tests {
		if got := isPlaylistURL(tt.url); got != tt.want {
			t.Errorf("isPlaylistURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestStripSourcePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[YT] never gonna give you up", "never gonna give you up"},
		{"[YTM] never gonna give you up", "never gonna give you up"},
		{"[yt] lowercase prefix", "lowercase prefix"},
		{"never gonna give you up", "never gonna give you up"},
		{"[PL] playlists keep theirs", "[PL] playlists keep theirs"},
	}
	for _, tt := range tests {
		if got := stripSourcePrefix(tt.in); got != tt.want {
			t.Errorf("stripSourcePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlaylistPrefix(t *testing.T) {
	tests := []struct {
		in    string
		has   bool
		strip string
	}{
		{"[PL] lofi beats", true, "lofi beats"},
		{"[pl] lowercase", true, "lowercase"},
		{"  [PL] padded  ", true, "padded"},
		{"[YT] not a playlist", false, "[YT] not a playlist"},
		{"plain query", false, "plain query"},
	}
	for _, tt := range tests {
		if got := hasPlaylistPrefix(tt.in); got != tt.has {
			t.Errorf("hasPlaylistPrefix(%q) = %v, want %v", tt.in, got, tt.has)
		}
		if got := stripPlaylistPrefix(tt.in); got != tt.strip {
			t.Errorf("stripPlaylistPrefix(%q) = %q, want %q", tt.in, got, tt.strip)
		}
	}
}

func TestSourcePrefixDefaults(t *testing.T) {
	prev := GlobalConfig
	t.Cleanup(func() { GlobalConfig = prev })

	GlobalConfig = nil
	if getYoutubePrefix() != DefaultYoutubePrefix || getYTMusicPrefix() != DefaultYTMusicPrefix {
		t.Fatal("nil config did not fall back to defaults")
	}

	GlobalConfig = &Config{YoutubePrefix: "[Y]", YTMusicPrefix: "[M]"}
	if getYoutubePrefix() != "[Y]" || getYTMusicPrefix() != "[M]" {
		t.Fatal("configured prefixes not used")
	}
}

func TestIsLikelyMusicStreamingSite(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://open.spotify.com/track/abc", true},
		{"https://music.apple.com/us/album/x/1", true},
		{"https://tidal.com/browse/track/1", true},
		{"https://www.youtube.com/watch?v=a", false},
		{"https://soundcloud.com/someuser/cool-song", false},
	}
	for _, tt := range tests {
		if got := isLikelyMusicStreamingSite(tt.url); got != tt.want {
			t.Errorf("isLikelyMusicStreamingSite(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
