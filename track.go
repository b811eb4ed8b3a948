package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Tracks
// ============================================================================

// Track is the immutable descriptor of a playable item. Everything mutable
// (state, elapsed time, display message) lives on NowPlaying, not here.
type Track struct {
	ID        string
	Title     string
	Artist    string
	URL       string
	Thumbnail string
	Duration  time.Duration
	IsLive    bool
}

// QueueItem wraps a Track with its request metadata. Created on enqueue,
// never mutated afterwards.
type QueueItem struct {
	EntryID     int64
	Track       Track
	RequestedBy snowflake.ID
	Requester   string
	Persist     bool
	ViaRoulette bool
}

var nextEntryID atomic.Int64

func NewQueueItem(track Track, requestedBy snowflake.ID, requester string, persist bool) QueueItem {
	return QueueItem{
		EntryID:     nextEntryID.Add(1),
		Track:       track,
		RequestedBy: requestedBy,
		Requester:   requester,
		Persist:     persist,
	}
}

var (
	videoIDRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?:\?|&)v=([^&]+)`),
		regexp.MustCompile(`(?:\?|&)id=([^&]+)`),
		regexp.MustCompile(`youtu\.be/([^?&/]+)`),
		regexp.MustCompile(`shorts/([^?&/]+)`),
	}
	isoDurationRegex = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	markdownRegex    = regexp.MustCompile("([\\\\*_~`|\\[\\]()>#])")
)

// ExtractTrackID pulls the platform video id out of a URL, falling back to a
// stable hash for URLs from other sites.
func ExtractTrackID(url string) string {
	for _, re := range videoIDRegexes {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}

// extractVideoID returns the platform video id, or "" when the URL has none.
func extractVideoID(url string) string {
	for _, re := range videoIDRegexes {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

func IsMediaURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func IsYouTubeURL(s string) bool {
	return IsMediaURL(s) && (strings.Contains(s, "youtube.com") || strings.Contains(s, "youtu.be"))
}

// ParseISODuration parses the ISO-8601 durations the metadata APIs return,
// e.g. "PT3M20S" or "PT1H2M".
func ParseISODuration(iso string) (time.Duration, error) {
	if iso == "" || iso == "P0D" {
		return 0, nil
	}
	m := isoDurationRegex.FindStringSubmatch(iso)
	if m == nil {
		return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	return time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(s)*time.Second, nil
}

// ParseColonDuration parses "3:20" and "1:05:20" style durations.
func ParseColonDuration(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	var total time.Duration
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %q", s)
		}
		total = total*60 + time.Duration(v)*time.Second
	}
	return total, nil
}

// FormatTimestamp renders a duration as "3:20" or "1:05:20".
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// RenderProgressBar draws a fixed-width elapsed/total bar for the player
// message.
func RenderProgressBar(elapsed, total time.Duration, width int) string {
	if width < 2 {
		width = 2
	}
	if total <= 0 {
		return "`" + strings.Repeat("─", width) + "` `live`"
	}
	ratio := float64(elapsed) / float64(total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	pos := int(ratio * float64(width-1))
	bar := strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos)
	return fmt.Sprintf("`%s` `%s / %s`", bar, FormatTimestamp(elapsed), FormatTimestamp(total))
}

// EscapeMarkdown prevents track titles from breaking message formatting.
func EscapeMarkdown(s string) string {
	return markdownRegex.ReplaceAllString(s, "\\$1")
}

// DisplayTitle renders the track as a markdown link with an escaped title.
func (t Track) DisplayTitle() string {
	title := EscapeMarkdown(Truncate(t.Title, 80))
	if t.URL == "" {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, t.URL)
}
