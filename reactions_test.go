package main

import (
	"testing"
)

func TestUndoReactionControl(t *testing.T) {
	setupTestDB(t)
	ctx := t.Context()

	item := &QueueItem{Track: Track{ID: "t1", Title: "Song", URL: "https://youtu.be/t1"}}

	// Withdrawing the heart un-likes the track for that user only.
	if err := LikeTrack(ctx, "u1", "t1", "Song", "https://youtu.be/t1"); err != nil {
		t.Fatal(err)
	}
	if err := LikeTrack(ctx, "u2", "t1", "Song", "https://youtu.be/t1"); err != nil {
		t.Fatal(err)
	}
	undoReactionControl(EmojiLike, "u1", item)
	if liked, _ := GetLikedTracks(ctx, "u1", 10); len(liked) != 0 {
		t.Fatalf("u1 still has %d liked tracks", len(liked))
	}
	if liked, _ := GetLikedTracks(ctx, "u2", 10); len(liked) != 1 {
		t.Fatalf("u2's like disturbed: %d rows", len(liked))
	}

	// Withdrawing the ban lifts the blacklist entry.
	if err := AddToBlacklist(ctx, "t1", "Song", "u1"); err != nil {
		t.Fatal(err)
	}
	undoReactionControl(EmojiBan, "u1", item)
	if banned, _ := IsBlacklisted(ctx, "t1"); banned {
		t.Fatal("track still blacklisted after the ban was withdrawn")
	}

	// Unrelated emoji removals are ignored.
	_ = AddToBlacklist(ctx, "t1", "Song", "u1")
	undoReactionControl("🎉", "u1", item)
	if banned, _ := IsBlacklisted(ctx, "t1"); !banned {
		t.Fatal("unrelated emoji cleared the blacklist")
	}
}
