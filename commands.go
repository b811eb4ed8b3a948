package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
)

// ===========================
// Message Constants
// ===========================

const (
	MsgCmdNotInGuild      = "This command only works in a server."
	MsgCmdNotInVoice      = "Join a voice channel first."
	MsgCmdNothingPlaying  = "Nothing is playing."
	MsgCmdResolveFail     = "Couldn't find anything for that."
	MsgCmdBlacklisted     = "That track is blacklisted."
	MsgCmdQueued          = "Queued **%s**."
	MsgCmdQueuedAt        = "Queued **%s** at position %d."
	MsgCmdQueuedBatch     = "Queued **%d** tracks."
	MsgCmdForcePlaying    = "Force playing **%s**."
	MsgCmdNowPlaying      = "Playing **%s**."
	MsgCmdPaused          = "Paused."
	MsgCmdResumed         = "Resumed."
	MsgCmdSkipped         = "Skipped."
	MsgCmdStopped         = "🛑 Stopped and disconnected."
	MsgCmdCleared         = "Cleared **%d** tracks from the queue."
	MsgCmdShuffled        = "Queue shuffled."
	MsgCmdShuffleTooShort = "Not enough tracks to shuffle."
	MsgCmdRemoved         = "Removed **%d** track(s)."
	MsgCmdRemovedNone     = "Nothing at that position."
	MsgCmdMoved           = "Moved position %d to the front."
	MsgCmdSwapped         = "Swapped positions %d and %d."
	MsgCmdInvalidPosition = "Invalid queue position."
	MsgCmdVolumeSet       = "Volume set to **%d%%**."
	MsgCmdRouletteEmpty   = "No history to draw from."
	MsgCmdRouletteSpun    = "🎲 Rolled **%d** track(s) from the history."
	MsgCmdReplayed        = "Replaying."
	MsgCmdTTSDisabled     = "Speech synthesis is not configured."
	MsgCmdVoiceIntent     = "Heard %s: executing **%s** %s"
	MsgCmdVoiceUnknown    = "Couldn't make out a command in that voice message."
)

// ===========================
// Player Manager
// ===========================

// GuildPlayer bundles the per-guild playback stack: voice device, player
// session, and the coalesced display editor.
type GuildPlayer struct {
	Session *PlayerSession
	Device  *VoiceDevice
	Display *PlayerDisplay

	autoPausedMu sync.Mutex
	autoPaused   bool
}

// PlayerManager owns all guild players plus the shared resolver and audio
// cache.
type PlayerManager struct {
	mu       sync.Mutex
	client   bot.Client
	bound    bool
	resolver *TrackResolver
	source   *AudioCache
	players  map[snowflake.ID]*GuildPlayer
}

var (
	playerManager     *PlayerManager
	playerManagerOnce sync.Once
)

func GetPlayerManager() *PlayerManager {
	playerManagerOnce.Do(func() {
		playerManager = &PlayerManager{
			players: make(map[snowflake.ID]*GuildPlayer),
		}
	})
	return playerManager
}

func (pm *PlayerManager) bind(client bot.Client) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.bound {
		return nil
	}
	source, err := NewAudioCache()
	if err != nil {
		return err
	}
	pm.client = client
	pm.resolver = NewTrackResolver()
	pm.source = source
	pm.bound = true
	return nil
}

func (pm *PlayerManager) Get(guildID snowflake.ID) *GuildPlayer {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.players[guildID]
}

// Prepare returns the guild player, creating it and joining the voice
// channel when needed.
func (pm *PlayerManager) Prepare(ctx context.Context, guildID, voiceChannelID, textChannelID snowflake.ID) (*GuildPlayer, error) {
	pm.mu.Lock()
	gp, ok := pm.players[guildID]
	if !ok {
		device := NewVoiceDevice(pm.client, guildID)
		gp = &GuildPlayer{Device: device}
		gp.Display = NewPlayerDisplay(pm.client, textChannelID, func(ref MessageRef) {
			gp.Session.SetMessageRef(ref)
		})
		gp.Session = NewPlayerSession(guildID, pm.resolver, pm.source,
			device, NewAnnounceDevice(device), gp.Display,
			rand.New(rand.NewSource(time.Now().UnixNano())))
		pm.players[guildID] = gp
	}
	pm.mu.Unlock()

	if !gp.Device.Joined() {
		if err := gp.Device.Join(ctx, voiceChannelID); err != nil {
			return nil, err
		}
	}
	return gp, nil
}

// Leave tears down the guild player and disconnects.
func (pm *PlayerManager) Leave(ctx context.Context, guildID snowflake.ID) {
	pm.mu.Lock()
	gp, ok := pm.players[guildID]
	if ok {
		delete(pm.players, guildID)
	}
	pm.mu.Unlock()
	if !ok {
		return
	}
	gp.Session.Shutdown()
	gp.Device.Leave(ctx)
	gp.Display.Reset()
}

func (pm *PlayerManager) Shutdown(ctx context.Context) {
	pm.mu.Lock()
	ids := make([]snowflake.ID, 0, len(pm.players))
	for id := range pm.players {
		ids = append(ids, id)
	}
	pm.mu.Unlock()
	for _, id := range ids {
		pm.Leave(ctx, id)
	}
}

// onVoiceStateUpdate auto-pauses when the channel empties and tears down
// when the bot is kicked off voice.
func (pm *PlayerManager) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	gp := pm.Get(event.VoiceState.GuildID)
	if gp == nil {
		return
	}

	if event.VoiceState.UserID == event.Client().ID() {
		if event.VoiceState.ChannelID == nil {
			LogPlayer("Bot disconnected by external event in guild %s", event.VoiceState.GuildID)
			pm.Leave(context.Background(), event.VoiceState.GuildID)
		}
		return
	}

	channelID := gp.Device.ChannelID()
	if channelID == 0 {
		return
	}
	humanCount := 0
	for state := range event.Client().Caches.VoiceStates(event.VoiceState.GuildID) {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == event.Client().ID() {
			continue
		}
		if state.SelfDeaf {
			continue
		}
		if m, ok := event.Client().Caches.Member(event.VoiceState.GuildID, state.UserID); !ok || !m.User.Bot {
			humanCount++
		}
	}

	gp.autoPausedMu.Lock()
	defer gp.autoPausedMu.Unlock()
	if humanCount == 0 && !gp.autoPaused {
		if err := gp.Session.Pause(); err == nil {
			LogPlayer("Auto-pausing in guild %s (no listeners)", event.VoiceState.GuildID)
			gp.autoPaused = true
		}
	} else if humanCount > 0 && gp.autoPaused {
		gp.autoPaused = false
		if err := gp.Session.Resume(); err == nil {
			LogPlayer("Auto-resuming in guild %s", event.VoiceState.GuildID)
		}
	}
}

// ===========================
// Command Registration
// ===========================

func init() {
	astiav.SetLogLevel(astiav.LogLevelFatal)

	OnClientReady(func(ctx context.Context, client bot.Client) {
		pm := GetPlayerManager()
		if err := pm.bind(client); err != nil {
			LogError("Failed to initialize player manager: %v", err)
			return
		}
		RegisterDaemon(LogPlayer, func(ctx context.Context) (bool, func(), func()) {
			return true, func() {}, func() {
				LogPlayer("Shutting down player manager...")
				pm.Shutdown(context.Background())
			}
		})
		RegisterVoiceStateUpdateHandler(pm.onVoiceStateUpdate)
	})

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "music",
		Description: "Music playback",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play or queue a track, playlist, or search query",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "query",
						Description:  "URL or song name",
						Required:     true,
						Autocomplete: true,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "position",
						Description: "Queue position to insert at (1 = next)",
						MinValue:    intPtr(1),
					},
					discord.ApplicationCommandOptionBool{
						Name:        "force",
						Description: "Preempt the current track immediately",
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{Name: "pause", Description: "Pause playback"},
			discord.ApplicationCommandOptionSubCommand{Name: "resume", Description: "Resume playback"},
			discord.ApplicationCommandOptionSubCommand{Name: "skip", Description: "Skip the current track"},
			discord.ApplicationCommandOptionSubCommand{Name: "replay", Description: "Replay the current or last track"},
			discord.ApplicationCommandOptionSubCommand{Name: "stop", Description: "Stop playback and leave"},
			discord.ApplicationCommandOptionSubCommand{Name: "clear", Description: "Clear the queue"},
			discord.ApplicationCommandOptionSubCommand{Name: "queue", Description: "Show the queue"},
			discord.ApplicationCommandOptionSubCommand{Name: "shuffle", Description: "Shuffle the queue"},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove queue entries",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "start",
						Description: "First position to remove",
						Required:    true,
						MinValue:    intPtr(1),
					},
					discord.ApplicationCommandOptionInt{
						Name:        "end",
						Description: "Last position to remove (inclusive)",
						MinValue:    intPtr(1),
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "move",
				Description: "Move a queue entry to the front",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "position",
						Description: "Position to move",
						Required:    true,
						MinValue:    intPtr(1),
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "swap",
				Description: "Swap two queue entries",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "first",
						Description: "First position",
						Required:    true,
						MinValue:    intPtr(1),
					},
					discord.ApplicationCommandOptionInt{
						Name:        "second",
						Description: "Second position",
						Required:    true,
						MinValue:    intPtr(1),
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "roulette",
				Description: "Queue random tracks from the play history",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "count",
						Description: "How many tracks to roll",
						MinValue:    intPtr(1),
						MaxValue:    intPtr(25),
					},
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Only draw from this user's history",
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "volume",
				Description: "Adjust playback volume",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "set",
						Description: "Volume percentage (0-200)",
						Required:    true,
						MinValue:    intPtr(0),
						MaxValue:    intPtr(200),
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{Name: "liked", Description: "Show your liked tracks"},
			discord.ApplicationCommandOptionSubCommand{Name: "mostplayed", Description: "Show the most played tracks"},
		},
	}, handleMusic)
	RegisterAutocompleteHandler("music", handleMusicAutocomplete)

	adminPerm := discord.PermissionAdministrator
	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "blacklist",
		Description:              "Track blacklist management",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Blacklist the currently playing track",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove a track from the blacklist",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "track",
						Description: "Track ID or URL",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "show",
				Description: "Show the blacklist",
			},
		},
	}, handleBlacklist)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "tts",
		Description: "Speak a message over the music",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "text",
				Description: "What to say",
				Required:    true,
			},
		},
	}, handleTTS)

	RegisterComponentHandler("queue:", handleQueuePage)
	RegisterMessageCreateHandler(onVoiceMessage)
	RegisterMessageCreateHandler(onChannelMessage)
}

// onChannelMessage reposts the player message when channel chatter pushes
// it off the bottom.
func onChannelMessage(event *events.MessageCreate) {
	if event.GuildID == nil {
		return
	}
	gp := GetPlayerManager().Get(*event.GuildID)
	if gp == nil {
		return
	}
	gp.Display.MarkStale(event.ChannelID, event.MessageID)
}

// ===========================
// Command Handlers
// ===========================

func handleMusic(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil {
		return
	}
	if event.GuildID() == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNotInGuild, true)
		return
	}
	switch *data.SubCommandName {
	case "play":
		handleMusicPlay(event, data)
	case "pause":
		handleSessionOp(event, func(gp *GuildPlayer) (string, error) { return MsgCmdPaused, gp.Session.Pause() })
	case "resume":
		handleSessionOp(event, func(gp *GuildPlayer) (string, error) { return MsgCmdResumed, gp.Session.Resume() })
	case "skip":
		handleSessionOp(event, func(gp *GuildPlayer) (string, error) { return MsgCmdSkipped, gp.Session.Skip() })
	case "replay":
		handleSessionOp(event, func(gp *GuildPlayer) (string, error) {
			return MsgCmdReplayed, gp.Session.Replay(AppContext)
		})
	case "stop":
		handleMusicStop(event)
	case "clear":
		handleSessionOp(event, func(gp *GuildPlayer) (string, error) {
			return fmt.Sprintf(MsgCmdCleared, gp.Session.Clear()), nil
		})
	case "queue":
		handleMusicQueue(event)
	case "shuffle":
		handleSessionOp(event, func(gp *GuildPlayer) (string, error) { return MsgCmdShuffled, gp.Session.Shuffle() })
	case "remove":
		handleMusicRemove(event, data)
	case "move":
		handleMusicMove(event, data)
	case "swap":
		handleMusicSwap(event, data)
	case "roulette":
		handleMusicRoulette(event, data)
	case "volume":
		handleMusicVolume(event, data)
	case "liked":
		handleMusicLiked(event)
	case "mostplayed":
		handleMusicMostPlayed(event)
	}
}

// handleSessionOp runs a controller call against the existing session and
// renders the result or the error.
func handleSessionOp(event *events.ApplicationCommandInteractionCreate, op func(gp *GuildPlayer) (string, error)) {
	gp := GetPlayerManager().Get(*event.GuildID())
	if gp == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNothingPlaying, true)
		return
	}
	msg, err := op(gp)
	if err != nil {
		_ = RespondInteractionV2(*event.Client(), event, userFacingError(err), true)
		return
	}
	_ = RespondInteractionV2(*event.Client(), event, msg, false)
}

func userFacingError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNothingPlaying):
		return MsgCmdNothingPlaying
	case errors.Is(err, ErrEmptyQueue):
		return MsgCmdShuffleTooShort
	case errors.Is(err, ErrInvalidPosition):
		return MsgCmdInvalidPosition
	default:
		return "Failed: " + err.Error()
	}
}

func handleMusicPlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query := data.String("query")
	position, hasPosition := data.OptInt("position")
	force, _ := data.OptBool("force")

	guildID := *event.GuildID()
	voiceChannelID := memberVoiceChannel(*event.Client(), guildID, event.User().ID)
	if voiceChannelID == 0 {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNotInVoice, true)
		return
	}

	_ = event.DeferCreateMessage(false)

	gp, err := GetPlayerManager().Prepare(AppContext, guildID, voiceChannelID, event.Channel().ID())
	if err != nil {
		_ = EditInteractionV2(*event.Client(), event, "Failed to join voice: "+err.Error())
		return
	}

	resolveCtx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()
	tracks, err := GetPlayerManager().resolver.Resolve(resolveCtx, query)
	if err != nil {
		_ = EditInteractionV2(*event.Client(), event, MsgCmdResolveFail)
		return
	}

	tracks = dropBlacklisted(resolveCtx, tracks)
	if len(tracks) == 0 {
		_ = EditInteractionV2(*event.Client(), event, MsgCmdBlacklisted)
		return
	}

	items := make([]QueueItem, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, NewQueueItem(t, event.User().ID, event.User().Username, true))
	}

	insertAt := -1
	if hasPosition {
		// Positions are 1-based in the command surface.
		insertAt = position - 1
	}

	ack := ""
	switch {
	case force:
		if err := gp.Session.Play(AppContext, items[0], PlayOptions{Force: true}); err != nil {
			_ = EditInteractionV2(*event.Client(), event, userFacingError(err))
			return
		}
		gp.Session.EnqueueAll(AppContext, items[1:], -1)
		ack = fmt.Sprintf(MsgCmdForcePlaying, items[0].Track.Title)
	case len(items) > 1:
		gp.Session.EnqueueAll(AppContext, items, insertAt)
		ack = fmt.Sprintf(MsgCmdQueuedBatch, len(items))
	default:
		wasActive := gp.Session.Active()
		if err := gp.Session.Play(AppContext, items[0], PlayOptions{Position: insertAt}); err != nil {
			_ = EditInteractionV2(*event.Client(), event, userFacingError(err))
			return
		}
		if !wasActive {
			ack = fmt.Sprintf(MsgCmdNowPlaying, items[0].Track.Title)
		} else if hasPosition {
			ack = fmt.Sprintf(MsgCmdQueuedAt, items[0].Track.Title, position)
		} else {
			ack = fmt.Sprintf(MsgCmdQueued, items[0].Track.Title)
		}
	}
	_ = EditInteractionV2(*event.Client(), event, ack)
}

func handleMusicStop(event *events.ApplicationCommandInteractionCreate) {
	gp := GetPlayerManager().Get(*event.GuildID())
	if gp == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNothingPlaying, true)
		return
	}
	LogPlayer("User %s (%s) stopped playback in guild %s", event.User().Username, event.User().ID, *event.GuildID())
	GetPlayerManager().Leave(context.Background(), *event.GuildID())
	_ = RespondInteractionV2(*event.Client(), event, MsgCmdStopped, false)
}

const QueuePageSize = 10

func handleMusicQueue(event *events.ApplicationCommandInteractionCreate) {
	gp := GetPlayerManager().Get(*event.GuildID())
	if gp == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNothingPlaying, true)
		return
	}
	_ = RespondInteractionContainerV2(*event.Client(), event, buildQueueView(gp, 0), true)
}

// handleQueuePage serves the queue pagination buttons.
func handleQueuePage(event *events.ComponentInteractionCreate) {
	if event.GuildID() == nil {
		return
	}
	gp := GetPlayerManager().Get(*event.GuildID())
	if gp == nil {
		_ = UpdateInteractionContainerV2(*event.Client(), event, NewV2Container(NewTextDisplay(MsgCmdNothingPlaying)))
		return
	}
	page, _ := strconv.Atoi(strings.TrimPrefix(event.Data.CustomID(), "queue:page:"))
	_ = UpdateInteractionContainerV2(*event.Client(), event, buildQueueView(gp, page))
}

func buildQueueView(gp *GuildPlayer, page int) Container {
	var now *QueueItem
	if gp.Session.Active() {
		now = gp.Session.NowPlayingItem()
	}
	return BuildQueueContainer(now, gp.Session.QueueItems(), page)
}

// BuildQueueContainer renders one page of the queue view used by
// /music queue. Out-of-range pages are clamped.
func BuildQueueContainer(now *QueueItem, items []QueueItem, page int) Container {
	var parts []interface{}

	if now != nil {
		parts = append(parts, NewTextDisplay("**Now Playing:**"))
		parts = append(parts, NewTextDisplay(fmt.Sprintf("%s · %s", now.Track.DisplayTitle(), EscapeMarkdown(now.Track.Artist))))
		parts = append(parts, NewSeparator(true))
	}

	pages := (len(items) + QueuePageSize - 1) / QueuePageSize
	if pages == 0 {
		pages = 1
	}
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}

	parts = append(parts, NewTextDisplay("**Queue:**"))
	if len(items) == 0 {
		parts = append(parts, NewTextDisplay("_Empty_"))
	} else {
		start := page * QueuePageSize
		end := start + QueuePageSize
		if end > len(items) {
			end = len(items)
		}
		var list strings.Builder
		for i, item := range items[start:end] {
			list.WriteString(fmt.Sprintf("`%d.` %s `%s`\n", start+i+1, item.Track.DisplayTitle(), FormatTimestamp(item.Track.Duration)))
		}
		parts = append(parts, NewTextDisplay(list.String()))
	}

	if pages > 1 {
		parts = append(parts, NewActionRow(
			NewSecondaryButton("◀", fmt.Sprintf("queue:page:%d", page-1), page == 0),
			NewSecondaryButton(fmt.Sprintf("%d/%d", page+1, pages), "queue:page:current", true),
			NewSecondaryButton("▶", fmt.Sprintf("queue:page:%d", page+1), page == pages-1),
		))
	}
	return NewV2Container(parts...)
}

func handleMusicRemove(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	start := data.Int("start")
	end, _ := data.OptInt("end")
	handleSessionOp(event, func(gp *GuildPlayer) (string, error) {
		removed := gp.Session.RemoveRange(start, end)
		if len(removed) == 0 {
			return MsgCmdRemovedNone, nil
		}
		return fmt.Sprintf(MsgCmdRemoved, len(removed)), nil
	})
}

func handleMusicMove(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	position := data.Int("position")
	handleSessionOp(event, func(gp *GuildPlayer) (string, error) {
		if err := gp.Session.MoveToFront(position); err != nil {
			return "", err
		}
		return fmt.Sprintf(MsgCmdMoved, position), nil
	})
}

func handleMusicSwap(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	first, second := data.Int("first"), data.Int("second")
	handleSessionOp(event, func(gp *GuildPlayer) (string, error) {
		if err := gp.Session.SwapPositions(first, second); err != nil {
			return "", err
		}
		return fmt.Sprintf(MsgCmdSwapped, first, second), nil
	})
}

func handleMusicRoulette(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	count, ok := data.OptInt("count")
	if !ok {
		count = 5
	}
	userFilter := ""
	if u, ok := data.OptUser("user"); ok {
		userFilter = u.ID.String()
	}

	guildID := *event.GuildID()
	voiceChannelID := memberVoiceChannel(*event.Client(), guildID, event.User().ID)
	if voiceChannelID == 0 {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNotInVoice, true)
		return
	}

	_ = event.DeferCreateMessage(false)

	entries, err := GetRandomHistory(AppContext, count, userFilter)
	if err != nil || len(entries) == 0 {
		_ = EditInteractionV2(*event.Client(), event, MsgCmdRouletteEmpty)
		return
	}

	gp, err := GetPlayerManager().Prepare(AppContext, guildID, voiceChannelID, event.Channel().ID())
	if err != nil {
		_ = EditInteractionV2(*event.Client(), event, "Failed to join voice: "+err.Error())
		return
	}

	items := make([]QueueItem, 0, len(entries))
	for _, e := range entries {
		track := Track{
			ID:       e.TrackID,
			Title:    e.Title,
			Artist:   e.Artist,
			URL:      e.URL,
			Duration: e.Duration,
		}
		// Roulette draws replay existing history; they don't re-seed it.
		item := NewQueueItem(track, event.User().ID, event.User().Username, false)
		item.ViaRoulette = true
		items = append(items, item)
	}
	gp.Session.EnqueueAll(AppContext, items, -1)
	_ = EditInteractionV2(*event.Client(), event, fmt.Sprintf(MsgCmdRouletteSpun, len(items)))
}

func handleMusicVolume(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	vol := data.Int("set")
	gp := GetPlayerManager().Get(*event.GuildID())
	if gp == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNothingPlaying, true)
		return
	}
	gp.Device.Volume.Store(int32(vol))
	_ = RespondInteractionV2(*event.Client(), event, fmt.Sprintf(MsgCmdVolumeSet, vol), false)
}

func handleMusicLiked(event *events.ApplicationCommandInteractionCreate) {
	liked, err := GetLikedTracks(AppContext, event.User().ID.String(), 20)
	if err != nil || len(liked) == 0 {
		_ = RespondInteractionV2(*event.Client(), event, "You haven't liked any tracks yet.", true)
		return
	}
	var list strings.Builder
	list.WriteString("**Your liked tracks:**\n")
	for i, t := range liked {
		list.WriteString(fmt.Sprintf("`%d.` [%s](%s)\n", i+1, EscapeMarkdown(Truncate(t.Title, 80)), t.URL))
	}
	_ = RespondInteractionV2(*event.Client(), event, list.String(), true)
}

func handleMusicMostPlayed(event *events.ApplicationCommandInteractionCreate) {
	entries, err := GetMostPlayed(AppContext, 15)
	if err != nil || len(entries) == 0 {
		_ = RespondInteractionV2(*event.Client(), event, "No play history yet.", true)
		return
	}
	var list strings.Builder
	list.WriteString("**Most played:**\n")
	for i, e := range entries {
		list.WriteString(fmt.Sprintf("`%d.` [%s](%s) — %d plays\n", i+1, EscapeMarkdown(Truncate(e.Title, 80)), e.URL, e.RequestCount))
	}
	_ = RespondInteractionV2(*event.Client(), event, list.String(), true)
}

func handleBlacklist(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil || event.GuildID() == nil {
		return
	}
	switch *data.SubCommandName {
	case "add":
		gp := GetPlayerManager().Get(*event.GuildID())
		if gp == nil {
			_ = RespondInteractionV2(*event.Client(), event, MsgCmdNothingPlaying, true)
			return
		}
		item := gp.Session.NowPlayingItem()
		if item == nil {
			_ = RespondInteractionV2(*event.Client(), event, MsgCmdNothingPlaying, true)
			return
		}
		if err := AddToBlacklist(AppContext, item.Track.ID, item.Track.Title, event.User().ID.String()); err != nil {
			_ = RespondInteractionV2(*event.Client(), event, "Failed: "+err.Error(), true)
			return
		}
		_ = gp.Session.Skip()
		_ = RespondInteractionV2(*event.Client(), event, fmt.Sprintf("🚫 Blacklisted **%s** and skipped it.", EscapeMarkdown(item.Track.Title)), false)
	case "remove":
		trackID := ExtractTrackID(data.String("track"))
		removed, err := RemoveFromBlacklist(AppContext, trackID)
		if err != nil {
			_ = RespondInteractionV2(*event.Client(), event, "Failed: "+err.Error(), true)
			return
		}
		if !removed {
			_ = RespondInteractionV2(*event.Client(), event, "That track isn't blacklisted.", true)
			return
		}
		_ = RespondInteractionV2(*event.Client(), event, "Removed from the blacklist.", false)
	case "show":
		titles, err := GetBlacklist(AppContext, 25)
		if err != nil || len(titles) == 0 {
			_ = RespondInteractionV2(*event.Client(), event, "The blacklist is empty.", true)
			return
		}
		var list strings.Builder
		list.WriteString("**Blacklisted tracks:**\n")
		for i, t := range titles {
			list.WriteString(fmt.Sprintf("`%d.` %s\n", i+1, EscapeMarkdown(Truncate(t, 80))))
		}
		_ = RespondInteractionV2(*event.Client(), event, list.String(), true)
	}
}

func handleTTS(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	text := data.String("text")

	if event.GuildID() == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNotInGuild, true)
		return
	}
	svc := GetSpeechService()
	if svc == nil {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdTTSDisabled, true)
		return
	}

	guildID := *event.GuildID()
	voiceChannelID := memberVoiceChannel(*event.Client(), guildID, event.User().ID)
	if voiceChannelID == 0 {
		_ = RespondInteractionV2(*event.Client(), event, MsgCmdNotInVoice, true)
		return
	}

	_ = event.DeferCreateMessage(true)

	gp, err := GetPlayerManager().Prepare(AppContext, guildID, voiceChannelID, event.Channel().ID())
	if err != nil {
		_ = EditInteractionV2(*event.Client(), event, "Failed to join voice: "+err.Error())
		return
	}
	if err := svc.Announce(AppContext, gp.Session, text); err != nil {
		_ = EditInteractionV2(*event.Client(), event, "Failed: "+err.Error())
		return
	}
	_ = EditInteractionV2(*event.Client(), event, fmt.Sprintf("🗣️ Said: %s", EscapeMarkdown(Truncate(text, 100))))
}

// ===========================
// Autocomplete
// ===========================

func handleMusicAutocomplete(event *events.AutocompleteInteractionCreate) {
	f := event.Data.Focused()
	if f.Name != "query" {
		return
	}
	q := f.String()
	if q == "" || strings.Contains(q, "http") {
		_ = event.AutocompleteResult(nil)
		return
	}
	var rs []SearchResult
	var err error
	if hasPlaylistPrefix(q) {
		rs, err = GetPlayerManager().resolver.SearchPlaylist(stripPlaylistPrefix(q))
	} else {
		rs, err = GetPlayerManager().resolver.Search(q)
	}
	if err != nil {
		_ = event.AutocompleteResult(nil)
		return
	}
	var cs []discord.AutocompleteChoice
	for i, r := range rs {
		if i >= 25 {
			break
		}
		n := r.Title
		if len(n) > 100 {
			n = n[:97] + "..."
		}
		v := r.URL
		if len(v) > 100 {
			v = Truncate(r.Title, 100)
		}
		cs = append(cs, discord.AutocompleteChoiceString{Name: n, Value: v})
	}
	_ = event.AutocompleteResult(cs)
}

// ===========================
// Helpers
// ===========================

func memberVoiceChannel(client bot.Client, guildID, userID snowflake.ID) snowflake.ID {
	state, ok := client.Caches.VoiceState(guildID, userID)
	if !ok || state.ChannelID == nil {
		return 0
	}
	return *state.ChannelID
}

func dropBlacklisted(ctx context.Context, tracks []Track) []Track {
	kept := tracks[:0]
	for _, t := range tracks {
		banned, err := IsBlacklisted(ctx, t.ID)
		if err == nil && banned {
			LogPlayer("Dropping blacklisted track %s", t.Title)
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// ===========================
// Spoken Commands
// ===========================

// onVoiceMessage transcribes Discord voice messages and executes the
// command they contain.
func onVoiceMessage(event *events.MessageCreate) {
	if GlobalConfig == nil || !GlobalConfig.VoiceCommands {
		return
	}
	if event.Message.Author.Bot || event.GuildID == nil {
		return
	}
	svc := GetSpeechService()
	if svc == nil {
		return
	}

	var att *discord.Attachment
	for i := range event.Message.Attachments {
		a := &event.Message.Attachments[i]
		if a.DurationSecs != nil && strings.HasSuffix(a.Filename, ".ogg") {
			att = a
			break
		}
	}
	if att == nil {
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	resp, err := HttpClient.Get(att.URL)
	if err != nil {
		LogSpeech(MsgSpeechTranscribeFail, err)
		return
	}
	defer resp.Body.Close()

	transcript, err := svc.Transcribe(ctx, resp.Body, att.Filename)
	if err != nil {
		LogSpeech(MsgSpeechTranscribeFail, err)
		return
	}
	LogSpeech(MsgSpeechTranscribed, transcript)

	intent := svc.Interpret(ctx, transcript)
	executeSpokenIntent(event, intent)
}

func executeSpokenIntent(event *events.MessageCreate, intent SpokenIntent) {
	pm := GetPlayerManager()
	guildID := *event.GuildID
	client := *event.Client()

	reply := func(text string) {
		_, _ = SendContainerV2(client, event.ChannelID, NewV2Container(NewTextDisplay(text)), &discord.MessageReference{MessageID: &event.MessageID})
	}

	if intent.Action == ActionUnknown {
		reply(MsgCmdVoiceUnknown)
		return
	}

	if intent.Action == ActionPlay {
		voiceChannelID := memberVoiceChannel(client, guildID, event.Message.Author.ID)
		if voiceChannelID == 0 {
			reply(MsgCmdNotInVoice)
			return
		}
		gp, err := pm.Prepare(AppContext, guildID, voiceChannelID, event.ChannelID)
		if err != nil {
			reply("Failed to join voice: " + err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
		defer cancel()
		tracks, err := pm.resolver.Resolve(ctx, intent.Query)
		if err != nil {
			reply(MsgCmdResolveFail)
			return
		}
		tracks = dropBlacklisted(ctx, tracks)
		if len(tracks) == 0 {
			reply(MsgCmdBlacklisted)
			return
		}
		items := make([]QueueItem, 0, len(tracks))
		for _, t := range tracks {
			items = append(items, NewQueueItem(t, event.Message.Author.ID, event.Message.Author.Username, true))
		}
		gp.Session.EnqueueAll(AppContext, items, -1)
		reply(fmt.Sprintf(MsgCmdQueued, EscapeMarkdown(items[0].Track.Title)))
		return
	}

	gp := pm.Get(guildID)
	if gp == nil {
		reply(MsgCmdNothingPlaying)
		return
	}

	var msg string
	var err error
	switch intent.Action {
	case ActionPause:
		msg, err = MsgCmdPaused, gp.Session.Pause()
	case ActionResume:
		msg, err = MsgCmdResumed, gp.Session.Resume()
	case ActionSkip:
		msg, err = MsgCmdSkipped, gp.Session.Skip()
	case ActionStop:
		pm.Leave(context.Background(), guildID)
		msg = MsgCmdStopped
	case ActionShuffle:
		msg, err = MsgCmdShuffled, gp.Session.Shuffle()
	case ActionClear:
		msg = fmt.Sprintf(MsgCmdCleared, gp.Session.Clear())
	case ActionQueue:
		_, _ = SendContainerV2(client, event.ChannelID, buildQueueView(gp, 0), &discord.MessageReference{MessageID: &event.MessageID})
		return
	case ActionReplay:
		msg, err = MsgCmdReplayed, gp.Session.Replay(AppContext)
	default:
		reply(MsgCmdVoiceUnknown)
		return
	}
	if err != nil {
		reply(userFacingError(err))
		return
	}
	reply(msg)
}
