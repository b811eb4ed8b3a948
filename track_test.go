package main

import (
	"strings"
	"testing"
	"time"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?list=PL123&v=abc123", "abc123"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/xyz789", "xyz789"},
		{"https://music.youtube.com/watch?v=abc&si=foo", "abc"},
	}
	for _, tt := range tests {
		if got := ExtractTrackID(tt.url); got != tt.want {
			t.Errorf("ExtractTrackID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}

	// URLs without a platform id fall back to a stable 16-char hash.
	a := ExtractTrackID("https://example.com/track/1")
	b := ExtractTrackID("https://example.com/track/1")
	c := ExtractTrackID("https://example.com/track/2")
	if len(a) != 16 || a != b {
		t.Errorf("hash fallback not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("distinct URLs hashed identically: %q", a)
	}
}

func TestExtractVideoID(t *testing.T) {
	if got := extractVideoID("https://youtu.be/abc"); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
	if got := extractVideoID("https://example.com/song"); got != "" {
		t.Errorf("non-platform URL yielded %q", got)
	}
}

func TestIsMediaURL(t *testing.T) {
	if !IsMediaURL("https://example.com") || !IsMediaURL("http://example.com") {
		t.Error("http(s) URLs not recognized")
	}
	if IsMediaURL("never gonna give you up") || IsMediaURL("ftp://example.com") {
		t.Error("non-http input recognized as URL")
	}
	if !IsYouTubeURL("https://www.youtube.com/watch?v=a") || !IsYouTubeURL("https://youtu.be/a") {
		t.Error("youtube URLs not recognized")
	}
	if IsYouTubeURL("https://example.com/watch?v=a") {
		t.Error("non-youtube host recognized")
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		iso     string
		want    time.Duration
		wantErr bool
	}{
		{"PT3M20S", 3*time.Minute + 20*time.Second, false},
		{"PT1H2M", time.Hour + 2*time.Minute, false},
		{"PT45S", 45 * time.Second, false},
		{"PT2H", 2 * time.Hour, false},
		{"P0D", 0, false},
		{"", 0, false},
		{"3:20", 0, true},
		{"PT", 0, false},
		{"garbage", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseISODuration(tt.iso)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseISODuration(%q) error = %v, wantErr %v", tt.iso, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseISODuration(%q) = %v, want %v", tt.iso, got, tt.want)
		}
	}
}

func TestParseColonDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3:20", 3*time.Minute + 20*time.Second, false},
		{"1:05:20", time.Hour + 5*time.Minute + 20*time.Second, false},
		{"0:07", 7 * time.Second, false},
		{" 2:00 ", 2 * time.Minute, false},
		{"42", 0, true},
		{"1:2:3:4", 0, true},
		{"a:b", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseColonDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColonDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColonDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{7 * time.Second, "0:07"},
		{3*time.Minute + 20*time.Second, "3:20"},
		{time.Hour + 5*time.Minute + 20*time.Second, "1:05:20"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := RenderProgressBar(time.Minute, 2*time.Minute, 11)
	if !strings.Contains(bar, "●") {
		t.Fatalf("no position marker in %q", bar)
	}
	if !strings.Contains(bar, "1:00 / 2:00") {
		t.Fatalf("timestamps missing in %q", bar)
	}

	// Position marker lands mid-bar at 50%.
	inner := bar[strings.Index(bar, "`")+1:]
	inner = inner[:strings.Index(inner, "`")]
	if idx := strings.Index(inner, "●"); idx < 0 {
		t.Fatalf("marker missing in %q", inner)
	}

	live := RenderProgressBar(time.Minute, 0, 11)
	if !strings.Contains(live, "live") {
		t.Fatalf("zero-duration bar not marked live: %q", live)
	}

	over := RenderProgressBar(3*time.Minute, 2*time.Minute, 11)
	if !strings.HasSuffix(over, "`3:00 / 2:00`") {
		t.Fatalf("overrun timestamps wrong: %q", over)
	}
	if !strings.Contains(over, "●`") {
		t.Fatalf("overrun marker not clamped to end: %q", over)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain title", "plain title"},
		{"a*b", `a\*b`},
		{"[link](url)", `\[link\]\(url\)`},
		{"under_score", `under\_score`},
	}
	for _, tt := range tests {
		if got := EscapeMarkdown(tt.in); got != tt.want {
			t.Errorf("EscapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	withURL := Track{Title: "Song *1*", URL: "https://youtu.be/a"}
	if got := withURL.DisplayTitle(); got != `[Song \*1\*](https://youtu.be/a)` {
		t.Errorf("DisplayTitle = %q", got)
	}
	bare := Track{Title: "Song"}
	if got := bare.DisplayTitle(); got != "Song" {
		t.Errorf("DisplayTitle without URL = %q", got)
	}
}

func TestTruncateHelpers(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := TruncateCenter("abcdefghij", 7); got != "ab...ij" {
		t.Errorf("TruncateCenter = %q", got)
	}
	if got := TruncateWithPreserve("abcdefghijklmnopqrstuvwxyz", 20, "[YT] ", ""); !strings.HasPrefix(got, "[YT] ") || len([]rune(got)) > 20 {
		t.Errorf("TruncateWithPreserve = %q", got)
	}
}
