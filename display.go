package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
// Player Display
// ============================================================================

const (
	MsgDisplayCreateFail   = "Failed to create player message: %v"
	MsgDisplayEditFail     = "Failed to edit player message: %v"
	MsgDisplayDeleteFail   = "Failed to delete stale player message: %v"
	MsgDisplayReactionFail = "Failed to sync control reactions: %v"

	EmojiLike   = "❤️"
	EmojiBan    = "🚫"
	EmojiSkip   = "⏭️"
	EmojiReplay = "🔁"
)

// PlayerDisplay renders session snapshots to a single player message.
// Updates are coalesced latest-wins: at most one edit is in flight, and a
// tick arriving mid-edit replaces any still-pending snapshot instead of
// queueing behind it.
type PlayerDisplay struct {
	client    bot.Client
	channelID snowflake.ID
	onMessage func(MessageRef)
	limiter   *rate.Limiter

	mu        sync.Mutex
	pending   *DisplaySnapshot
	last      *DisplaySnapshot
	inFlight  bool
	stale     bool
	messageID snowflake.ID
	terminal  bool
}

func NewPlayerDisplay(client bot.Client, channelID snowflake.ID, onMessage func(MessageRef)) *PlayerDisplay {
	return &PlayerDisplay{
		client:    client,
		channelID: channelID,
		onMessage: onMessage,
		limiter:   rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (d *PlayerDisplay) Update(snap DisplaySnapshot) {
	d.mu.Lock()
	d.pending = &snap
	if d.inFlight {
		d.mu.Unlock()
		return
	}
	d.inFlight = true
	d.mu.Unlock()
	safeGo(d.flush)
}

// MarkStale flags the player message for a delete-and-repost once another
// message has pushed it off the bottom of its channel.
func (d *PlayerDisplay) MarkStale(channelID, latestMessageID snowflake.ID) {
	d.mu.Lock()
	if channelID != d.channelID || d.messageID == 0 || d.messageID == latestMessageID || d.stale {
		d.mu.Unlock()
		return
	}
	d.stale = true
	snap := d.last
	d.mu.Unlock()
	// Re-render from the last snapshot so the repost happens right away
	// instead of waiting for the next progress tick.
	if snap != nil {
		d.Update(*snap)
	}
}

func (d *PlayerDisplay) flush() {
	for {
		d.mu.Lock()
		snap := d.pending
		d.pending = nil
		if snap == nil {
			d.inFlight = false
			d.mu.Unlock()
			return
		}
		d.last = snap
		var staleID snowflake.ID
		if d.stale && d.messageID != 0 {
			staleID = d.messageID
			d.messageID = 0
		}
		d.stale = false
		messageID := d.messageID
		wasTerminal := d.terminal
		d.mu.Unlock()

		_ = d.limiter.Wait(context.Background())

		if staleID != 0 {
			if err := d.client.Rest.DeleteMessage(d.channelID, staleID); err != nil {
				LogDisplay(MsgDisplayDeleteFail, err)
			}
		}

		container := BuildPlayerContainer(*snap)

		if messageID == 0 {
			msg, err := SendContainerV2(d.client, d.channelID, container, nil)
			if err != nil {
				LogDisplay(MsgDisplayCreateFail, err)
				continue
			}
			d.mu.Lock()
			d.messageID = msg.ID
			messageID = msg.ID
			d.mu.Unlock()
			if d.onMessage != nil {
				d.onMessage(MessageRef{ChannelID: d.channelID, MessageID: msg.ID})
			}
			d.initReactions(messageID, snap.State.Terminal())
		} else {
			if _, err := EditContainerV2(d.client, d.channelID, messageID, container); err != nil {
				LogDisplay(MsgDisplayEditFail, err)
			}
			nowTerminal := snap.State.Terminal()
			if nowTerminal != wasTerminal {
				d.syncReactions(messageID, nowTerminal)
			}
		}

		d.mu.Lock()
		d.terminal = snap.State.Terminal()
		d.mu.Unlock()
	}
}

// initReactions arms a fresh message with the full control set: like, ban,
// then skip while active or replay when the track already ended.
func (d *PlayerDisplay) initReactions(messageID snowflake.ID, terminal bool) {
	control := EmojiSkip
	if terminal {
		control = EmojiReplay
	}
	var err error
	for _, emoji := range []string{EmojiLike, EmojiBan, control} {
		if e := d.client.Rest.AddReaction(d.channelID, messageID, emoji); e != nil {
			err = e
		}
	}
	if err != nil {
		LogDisplay(MsgDisplayReactionFail, err)
	}
}

// syncReactions swaps the lifecycle control on a terminal flip: skip while
// active, replay once terminal.
func (d *PlayerDisplay) syncReactions(messageID snowflake.ID, nowTerminal bool) {
	var err error
	if nowTerminal {
		if e := d.client.Rest.RemoveOwnReaction(d.channelID, messageID, EmojiSkip); e != nil {
			err = e
		}
		if e := d.client.Rest.AddReaction(d.channelID, messageID, EmojiReplay); e != nil {
			err = e
		}
	} else {
		if e := d.client.Rest.RemoveOwnReaction(d.channelID, messageID, EmojiReplay); e != nil {
			err = e
		}
		if e := d.client.Rest.AddReaction(d.channelID, messageID, EmojiSkip); e != nil {
			err = e
		}
	}
	if err != nil {
		LogDisplay(MsgDisplayReactionFail, err)
	}
}

// Reset detaches from the current message so the next update creates a new
// one, leaving the old message terminal-rendered.
func (d *PlayerDisplay) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messageID = 0
	d.pending = nil
	d.last = nil
	d.stale = false
	d.terminal = false
}

func stateAccent(s PlayState) int {
	switch s {
	case StateLoading:
		return AccentColorLoading
	case StatePlaying:
		return AccentColorPlaying
	case StatePaused:
		return AccentColorPaused
	case StateError:
		return AccentColorError
	}
	return AccentColorFinished
}

func stateLabel(s PlayState) string {
	switch s {
	case StateLoading:
		return "⏳ Loading"
	case StatePlaying:
		return "▶️ Now Playing"
	case StatePaused:
		return "⏸️ Paused"
	case StateFinished:
		return "✅ Finished"
	case StateSkipped:
		return "⏭️ Skipped"
	case StateError:
		return "❌ Error"
	}
	return s.String()
}

// BuildPlayerContainer renders a snapshot into the player container: state
// header, track link, progress while active, then the queue head with an
// overflow count.
func BuildPlayerContainer(snap DisplaySnapshot) Container {
	var parts []any

	if !snap.HasTrack {
		parts = append(parts, NewTextDisplay("**Nothing playing.** Queue something with `/play`."))
	} else {
		track := snap.Item.Track
		header := fmt.Sprintf("**%s**\n%s", stateLabel(snap.State), track.DisplayTitle())
		if track.Artist != "" {
			header += "\n-# " + EscapeMarkdown(track.Artist)
		}
		if track.Thumbnail != "" {
			parts = append(parts, NewSection(header, NewThumbnail(track.Thumbnail)))
		} else {
			parts = append(parts, NewTextDisplay(header))
		}

		switch {
		case snap.State == StateError && snap.Err != nil:
			parts = append(parts, NewTextDisplay("```"+Truncate(snap.Err.Error(), 200)+"```"))
		case !snap.State.Terminal():
			parts = append(parts, NewTextDisplay(RenderProgressBar(snap.Elapsed, track.Duration, 24)))
		}

		parts = append(parts, NewTextDisplay(fmt.Sprintf("-# Requested by %s", snap.Item.Requester)))
	}

	if len(snap.Queue) > 0 {
		parts = append(parts, NewSeparatorWithSpacing(true, SeparatorSpacingSmall))
		var sb strings.Builder
		sb.WriteString("**Up next**\n")
		for i, item := range snap.Queue {
			sb.WriteString(fmt.Sprintf("`%d.` %s `%s`\n", i+1, item.Track.DisplayTitle(), FormatTimestamp(item.Track.Duration)))
		}
		if snap.Overflow > 0 {
			sb.WriteString(fmt.Sprintf("-# ...and %d more", snap.Overflow))
		}
		parts = append(parts, NewTextDisplay(sb.String()))
	}

	accent := AccentColorFinished
	if snap.HasTrack {
		accent = stateAccent(snap.State)
	}
	return NewV2ContainerAccent(accent, parts...)
}
