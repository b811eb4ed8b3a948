package main

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	prev := DB
	if err := InitDatabase(t.Context(), filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatal(err)
	}
	mine := DB
	t.Cleanup(func() {
		mine.Close()
		DB = prev
	})
}

func TestRecordPlayUpsert(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		if err := RecordPlay(ctx, "u1", "t1", "Song", "Artist", "https://youtu.be/t1", 3*time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if err := RecordPlay(ctx, "u2", "t1", "Song", "Artist", "https://youtu.be/t1", 3*time.Minute); err != nil {
		t.Fatal(err)
	}

	recent, err := GetRecentHistory(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d rows, want one per (user, track): %+v", len(recent), recent)
	}

	counts := map[string]int{}
	for _, e := range recent {
		counts[e.UserID] = e.RequestCount
		if e.Duration != 3*time.Minute {
			t.Errorf("duration round-tripped as %v", e.Duration)
		}
	}
	if counts["u1"] != 3 || counts["u2"] != 1 {
		t.Fatalf("request counts %v, want u1=3 u2=1", counts)
	}
}

func TestGetMostPlayedAggregatesUsers(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	_ = RecordPlay(ctx, "u1", "hit", "Hit", "", "https://youtu.be/hit", time.Minute)
	_ = RecordPlay(ctx, "u1", "hit", "Hit", "", "https://youtu.be/hit", time.Minute)
	_ = RecordPlay(ctx, "u2", "hit", "Hit", "", "https://youtu.be/hit", time.Minute)
	_ = RecordPlay(ctx, "u1", "other", "Other", "", "https://youtu.be/other", time.Minute)

	top, err := GetMostPlayed(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d tracks, want 2", len(top))
	}
	if top[0].TrackID != "hit" || top[0].RequestCount != 3 {
		t.Fatalf("top entry %+v, want hit with 3 plays", top[0])
	}
}

func TestGetRandomHistoryFilters(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	_ = RecordPlay(ctx, "u1", "a", "A", "", "https://youtu.be/a", time.Minute)
	_ = RecordPlay(ctx, "u2", "b", "B", "", "https://youtu.be/b", time.Minute)
	_ = RecordPlay(ctx, "u2", "banned", "Banned", "", "https://youtu.be/banned", time.Minute)
	if err := AddToBlacklist(ctx, "banned", "Banned", "admin"); err != nil {
		t.Fatal(err)
	}

	all, err := GetRandomHistory(ctx, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d tracks, want 2 (blacklisted excluded): %+v", len(all), all)
	}
	for _, e := range all {
		if e.TrackID == "banned" {
			t.Fatal("blacklisted track sampled")
		}
	}

	mine, err := GetRandomHistory(ctx, 10, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].TrackID != "a" {
		t.Fatalf("user filter returned %+v", mine)
	}
}

func TestLikedTracks(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	if err := LikeTrack(ctx, "u1", "t1", "Song", "https://youtu.be/t1"); err != nil {
		t.Fatal(err)
	}
	// Liking twice is a no-op.
	if err := LikeTrack(ctx, "u1", "t1", "Song", "https://youtu.be/t1"); err != nil {
		t.Fatal(err)
	}

	liked, err := GetLikedTracks(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(liked) != 1 || liked[0].TrackID != "t1" {
		t.Fatalf("liked = %+v", liked)
	}

	if other, _ := GetLikedTracks(ctx, "u2", 10); len(other) != 0 {
		t.Fatalf("likes leaked across users: %+v", other)
	}

	removed, err := UnlikeTrack(ctx, "u1", "t1")
	if err != nil || !removed {
		t.Fatalf("unlike = %v, %v", removed, err)
	}
	removed, err = UnlikeTrack(ctx, "u1", "t1")
	if err != nil || removed {
		t.Fatalf("double unlike = %v, %v", removed, err)
	}
}

func TestBlacklist(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	banned, err := IsBlacklisted(ctx, "t1")
	if err != nil || banned {
		t.Fatalf("fresh track blacklisted: %v, %v", banned, err)
	}

	if err := AddToBlacklist(ctx, "t1", "Bad Song", "admin"); err != nil {
		t.Fatal(err)
	}
	banned, err = IsBlacklisted(ctx, "t1")
	if err != nil || !banned {
		t.Fatalf("blacklisted track not detected: %v, %v", banned, err)
	}

	titles, err := GetBlacklist(ctx, 10)
	if err != nil || len(titles) != 1 || titles[0] != "Bad Song" {
		t.Fatalf("blacklist = %v, %v", titles, err)
	}

	removed, err := RemoveFromBlacklist(ctx, "t1")
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	if banned, _ := IsBlacklisted(ctx, "t1"); banned {
		t.Fatal("track still blacklisted after removal")
	}
}

func TestPruneHistory(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := RecordPlay(ctx, "u1", id, id, "", "https://youtu.be/"+id, time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	pruned, err := PruneHistory(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 2 {
		t.Fatalf("pruned %d rows, want 2", pruned)
	}
	left, _ := GetRecentHistory(ctx, 10)
	if len(left) != 3 {
		t.Fatalf("%d rows remain, want 3", len(left))
	}
}

func TestRecordPlayHistoryStaysBounded(t *testing.T) {
	setupTestDB(t)
	prev := GlobalConfig
	GlobalConfig = &Config{HistoryMaxTracks: 3}
	t.Cleanup(func() { GlobalConfig = prev })

	for i := 0; i < 6; i++ {
		track := Track{
			ID:    fmt.Sprintf("t%d", i),
			Title: fmt.Sprintf("Track %d", i),
			URL:   fmt.Sprintf("https://youtu.be/t%d", i),
		}
		recordPlayHistory(NewQueueItem(track, 1, "tester", true))
	}

	recent, err := GetRecentHistory(t.Context(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("history holds %d rows, want the configured cap of 3", len(recent))
	}
}

func TestBotConfigRoundTrip(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	if v, err := GetBotConfig(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("missing key = %q, %v", v, err)
	}
	if err := SetBotConfig(ctx, "volume", "80"); err != nil {
		t.Fatal(err)
	}
	if err := SetBotConfig(ctx, "volume", "120"); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetBotConfig(ctx, "volume"); v != "120" {
		t.Fatalf("config = %q, want 120", v)
	}
}
