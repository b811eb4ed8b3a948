package main

import (
	"context"

	"github.com/disgoorg/disgo/events"
)

// ===========================
// Reaction Controls
// ===========================

// The player message carries reaction buttons: like, ban, skip while a
// track is active; replay once it ends. Reactions from users are consumed
// and mapped onto controller calls, then removed so the button stays armed.

const (
	MsgReactionLiked       = "User %s liked %s"
	MsgReactionUnliked     = "User %s unliked %s"
	MsgReactionBanned      = "User %s banned %s"
	MsgReactionUnbanned    = "User %s lifted the blacklist on %s"
	MsgReactionSkip        = "User %s skipped via reaction in guild %s"
	MsgReactionReplay      = "User %s replayed via reaction in guild %s"
	MsgReactionStoreFail   = "Reaction store write failed: %v"
	MsgReactionControlFail = "Reaction control failed: %v"
)

func init() {
	RegisterReactionAddHandler(onPlayerReactionAdd)
	RegisterReactionRemoveHandler(onPlayerReactionRemove)
}

func onPlayerReactionAdd(event *events.GuildMessageReactionAdd) {
	if event.Member.User.Bot {
		return
	}
	if event.Emoji.Name == nil {
		return
	}
	emoji := *event.Emoji.Name

	gp := GetPlayerManager().Get(event.GuildID)
	if gp == nil {
		return
	}
	if !gp.Session.MessageRefFor(event.ChannelID, event.MessageID) {
		return
	}

	switch emoji {
	case EmojiLike:
		// Stays on the message; pulling it back off un-likes.
		handleLikeReaction(event, gp)
		return
	case EmojiBan:
		handleBanReaction(event, gp)
		return
	case EmojiSkip:
		LogPlayer(MsgReactionSkip, event.UserID, event.GuildID)
		if err := gp.Session.Skip(); err != nil {
			LogPlayer(MsgReactionControlFail, err)
		}
	case EmojiReplay:
		LogPlayer(MsgReactionReplay, event.UserID, event.GuildID)
		if err := gp.Session.Replay(AppContext); err != nil {
			LogPlayer(MsgReactionControlFail, err)
		}
	default:
		return
	}

	// Consume the user's reaction so the control can be pressed again.
	_ = event.Client().Rest.RemoveUserReaction(event.ChannelID, event.MessageID, emoji, event.UserID)
}

func onPlayerReactionRemove(event *events.GuildMessageReactionRemove) {
	if event.Emoji.Name == nil {
		return
	}
	// The bot consumes skip and replay presses itself; those removals are
	// not a user withdrawing anything.
	if event.UserID == event.Client().ID() {
		return
	}

	gp := GetPlayerManager().Get(event.GuildID)
	if gp == nil {
		return
	}
	if !gp.Session.MessageRefFor(event.ChannelID, event.MessageID) {
		return
	}
	item := gp.Session.NowPlayingItem()
	if item == nil {
		return
	}
	undoReactionControl(*event.Emoji.Name, event.UserID.String(), item)
}

// undoReactionControl reverses a like or ban when its reaction is withdrawn.
func undoReactionControl(emoji, userID string, item *QueueItem) {
	switch emoji {
	case EmojiLike:
		removed, err := UnlikeTrack(context.Background(), userID, item.Track.ID)
		if err != nil {
			LogPlayer(MsgReactionStoreFail, err)
		} else if removed {
			LogPlayer(MsgReactionUnliked, userID, item.Track.Title)
		}
	case EmojiBan:
		removed, err := RemoveFromBlacklist(context.Background(), item.Track.ID)
		if err != nil {
			LogPlayer(MsgReactionStoreFail, err)
		} else if removed {
			LogPlayer(MsgReactionUnbanned, userID, item.Track.Title)
		}
	}
}

func handleLikeReaction(event *events.GuildMessageReactionAdd, gp *GuildPlayer) {
	item := gp.Session.NowPlayingItem()
	if item == nil {
		return
	}
	LogPlayer(MsgReactionLiked, event.UserID, item.Track.Title)
	if err := LikeTrack(context.Background(), event.UserID.String(), item.Track.ID, item.Track.Title, item.Track.URL); err != nil {
		LogPlayer(MsgReactionStoreFail, err)
	}
}

func handleBanReaction(event *events.GuildMessageReactionAdd, gp *GuildPlayer) {
	item := gp.Session.NowPlayingItem()
	if item == nil {
		return
	}
	LogPlayer(MsgReactionBanned, event.UserID, item.Track.Title)
	if err := AddToBlacklist(context.Background(), item.Track.ID, item.Track.Title, event.UserID.String()); err != nil {
		LogPlayer(MsgReactionStoreFail, err)
		return
	}
	// Banned entries also come out of the queue.
	gp.Session.RemoveByTrackID(item.Track.ID)
	if err := gp.Session.Skip(); err != nil {
		LogPlayer(MsgReactionControlFail, err)
	}
}
