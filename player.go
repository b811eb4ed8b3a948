package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Player Session
// ============================================================================

const (
	MsgPlayerTrackStart    = "Starting track: %s"
	MsgPlayerTrackEnd      = "Track ended (%s): %s"
	MsgPlayerTrackFail     = "Track failed, advancing: %v"
	MsgPlayerForcePlay     = "Force-playing: %s"
	MsgPlayerQueueAdvance  = "Advancing queue (%d pending)"
	MsgPlayerHistoryFail   = "Failed to record history: %v"
	MsgPlayerDuplexRestore = "Restoring playback after announcement (was paused: %v)"
)

var (
	ErrMediaUnavailable  = errors.New("media unavailable")
	ErrStreamUnavailable = errors.New("stream unavailable")
	ErrDeviceFault       = errors.New("playback device fault")
	ErrInvalidPosition   = errors.New("invalid position")
	ErrEmptyQueue        = errors.New("queue is empty")
	ErrNothingPlaying    = errors.New("nothing is playing")
)

// MediaResolver turns a free-form query or URL into playable tracks. A
// playlist URL resolves to multiple tracks; individual failures inside a
// batch are skipped, not fatal.
type MediaResolver interface {
	Resolve(ctx context.Context, query string) ([]Track, error)
}

// AudioSource produces the audio payload for a resolved track, preferring
// the local cache over a live fetch.
type AudioSource interface {
	OpenStream(ctx context.Context, track Track) (io.ReadCloser, error)
}

// playbackDevice is the single-consumer audio sink. Start returns once the
// stream is handed to the device; onStarted fires when audio actually
// begins, onIdle when the stream ends (err != nil for a device fault).
// Callbacks fire asynchronously and at most once each.
type playbackDevice interface {
	Start(ctx context.Context, track Track, stream io.ReadCloser, onStarted func(), onIdle func(err error)) error
	Stop()
	SetPaused(paused bool)
	Paused() bool
}

// sessionDisplay receives state snapshots to render. Implementations own
// their own coalescing; Update must never block the caller.
type sessionDisplay interface {
	Update(snap DisplaySnapshot)
}

// DisplaySnapshot is everything the renderer needs, captured under the
// session lock so the renderer itself stays lock-free.
type DisplaySnapshot struct {
	HasTrack bool
	Item     QueueItem
	State    PlayState
	Elapsed  time.Duration
	Err      error
	Queue    []QueueItem
	Overflow int
}

type PlayOptions struct {
	Force    bool
	Position int // -1 appends
	Persist  bool
}

// PlayerSession owns the queue and now-playing state for one guild. Every
// public operation takes the session lock; long work (resolution, stream
// opening) runs outside it and re-acquires before mutating.
type PlayerSession struct {
	GuildID snowflake.ID

	mu       sync.Mutex
	queue    *PlaybackQueue
	now      *NowPlaying
	device   playbackDevice
	announce playbackDevice
	source   AudioSource
	resolver MediaResolver
	display  sessionDisplay
	rng      *rand.Rand

	tickerStop chan struct{}
	closed     bool
}

func NewPlayerSession(guildID snowflake.ID, resolver MediaResolver, source AudioSource, device, announce playbackDevice, display sessionDisplay, rng *rand.Rand) *PlayerSession {
	return &PlayerSession{
		GuildID:  guildID,
		queue:    NewPlaybackQueue(),
		device:   device,
		announce: announce,
		source:   source,
		resolver: resolver,
		display:  display,
		rng:      rng,
	}
}

// Play resolves nothing itself; the caller resolves first so resolution
// errors surface to the user synchronously. With Force set the current
// track is skipped and the new one bypasses the queue.
func (s *PlayerSession) Play(ctx context.Context, item QueueItem, opts PlayOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDeviceFault
	}

	active := s.now != nil && !s.now.State.Terminal()

	if active && !opts.Force {
		s.queue.Enqueue(opts.Position, item)
		s.publishLocked()
		return nil
	}

	if active && opts.Force {
		LogPlayer(MsgPlayerForcePlay, item.Track.Title)
		// Record the skip before stopping the device: the device's idle
		// callback fires asynchronously and must not land as Finished.
		s.now.AutoAdvance = false
		s.now.Apply(eventSkip)
		s.stopTickerLocked()
		s.device.Stop()
	}

	s.startLocked(ctx, item)
	return nil
}

// EnqueueAll appends a resolved batch, used for playlist imports. When the
// session is idle the first item starts immediately.
func (s *PlayerSession) EnqueueAll(ctx context.Context, items []QueueItem, position int) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.now == nil || s.now.State.Terminal() {
		s.startLocked(ctx, items[0])
		items = items[1:]
	}
	if len(items) > 0 {
		s.queue.Enqueue(position, items...)
	}
	s.publishLocked()
}

// Replay restarts the just-ended track on the same display surface. On a
// non-terminal state it behaves like force-play.
func (s *PlayerSession) Replay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now == nil {
		return ErrNothingPlaying
	}
	if !s.now.State.Terminal() {
		item := s.now.Item
		s.now.AutoAdvance = false
		s.now.Apply(eventSkip)
		s.stopTickerLocked()
		s.device.Stop()
		s.startLocked(ctx, item)
		return nil
	}
	np := s.now
	np.Apply(eventOverride)
	s.publishLocked()
	safeGo(func() { s.runTrack(ctx, np) })
	return nil
}

func (s *PlayerSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now == nil || s.now.State.Terminal() {
		return ErrNothingPlaying
	}
	if !s.now.Apply(eventPause) {
		return ErrNothingPlaying
	}
	s.device.SetPaused(true)
	s.stopTickerLocked()
	s.publishLocked()
	return nil
}

func (s *PlayerSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now == nil || s.now.State.Terminal() {
		return ErrNothingPlaying
	}
	if !s.now.Apply(eventResume) {
		return ErrNothingPlaying
	}
	s.device.SetPaused(false)
	s.startTickerLocked()
	s.publishLocked()
	return nil
}

func (s *PlayerSession) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now == nil || s.now.State.Terminal() {
		return ErrNothingPlaying
	}
	// Skip intent lands before the device stop so the async idle callback
	// cannot overwrite it with Finished.
	s.now.Apply(eventSkip)
	s.stopTickerLocked()
	s.publishLocked()
	s.device.Stop()
	return nil
}

// Stop skips the current track and drops every pending item.
func (s *PlayerSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Clear()
	if s.now != nil && !s.now.State.Terminal() {
		s.now.AutoAdvance = false
		s.now.Apply(eventSkip)
		s.stopTickerLocked()
		s.publishLocked()
		s.device.Stop()
	}
	return nil
}

func (s *PlayerSession) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queue.Clear()
	s.publishLocked()
	return n
}

func (s *PlayerSession) Shuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() < 2 {
		return ErrEmptyQueue
	}
	s.queue.Shuffle(s.rng)
	s.publishLocked()
	return nil
}

func (s *PlayerSession) RemoveRange(start, end int) []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.queue.RemoveRange(start, end)
	if len(removed) > 0 {
		s.publishLocked()
	}
	return removed
}

func (s *PlayerSession) RemoveByTrackID(trackID string) *QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.queue.RemoveByTrackID(trackID)
	if removed != nil {
		s.publishLocked()
	}
	return removed
}

func (s *PlayerSession) MoveToFront(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.queue.MoveToFront(index); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

func (s *PlayerSession) SwapPositions(i, j int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.queue.Swap(i, j); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

// QueueItems returns a copy of every pending item.
func (s *PlayerSession) QueueItems() []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Items()
}

// QueueSnapshot returns the pending items and the current track, if any.
func (s *PlayerSession) QueueSnapshot(top int) DisplaySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(top)
}

// Active reports whether a track is currently loading, playing, or paused.
func (s *PlayerSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now != nil && !s.now.State.Terminal()
}

// NowPlayingItem returns the active (or just-ended) item, or nil when
// nothing has played yet.
func (s *PlayerSession) NowPlayingItem() *QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now == nil {
		return nil
	}
	item := s.now.Item
	return &item
}

// SetMessageRef attaches the player message once the first render created it.
func (s *PlayerSession) SetMessageRef(ref MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now != nil {
		s.now.Message = ref
	}
}

// MessageRefFor reports whether the given message is this session's player
// message, used to route reaction controls.
func (s *PlayerSession) MessageRefFor(channelID, messageID snowflake.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now != nil && s.now.Message.ChannelID == channelID && s.now.Message.MessageID == messageID
}

// Announce plays an ad hoc payload (TTS, sound effect) on the secondary
// device, pausing queue playback around it. The pre-announcement pause state
// is snapshotted and restored exactly: a track the user paused stays paused.
func (s *PlayerSession) Announce(ctx context.Context, stream io.ReadCloser) error {
	s.mu.Lock()
	wasPaused := s.now != nil && s.now.State == StatePaused
	hadTrack := s.now != nil && !s.now.State.Terminal()
	if hadTrack && !wasPaused {
		s.device.SetPaused(true)
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	err := s.announce.Start(ctx, Track{Title: "announcement"}, stream, nil, func(err error) {
		done <- err
	})
	if err == nil {
		select {
		case err = <-done:
		case <-ctx.Done():
			s.announce.Stop()
			err = ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	LogPlayer(MsgPlayerDuplexRestore, wasPaused)
	if s.now != nil && !s.now.State.Terminal() && !wasPaused {
		s.device.SetPaused(false)
	}
	return err
}

// Shutdown tears the session down; pending items are dropped.
func (s *PlayerSession) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue.Clear()
	if s.now != nil && !s.now.State.Terminal() {
		s.now.AutoAdvance = false
		s.now.Apply(eventSkip)
	}
	s.stopTickerLocked()
	s.device.Stop()
	s.announce.Stop()
}

// --- internals (all *Locked methods require s.mu held) ---

func (s *PlayerSession) startLocked(ctx context.Context, item QueueItem) {
	LogPlayer(MsgPlayerTrackStart, item.Track.Title)
	// A pause belongs to the track it was issued on; the device gate must be
	// open before a fresh instance starts or frames never flow.
	s.device.SetPaused(false)
	np := NewNowPlaying(item)
	s.now = np
	s.publishLocked()
	safeGo(func() { s.runTrack(ctx, np) })
}

// runTrack opens the stream and hands it to the device. It runs without the
// lock; all state mutation happens in the callbacks.
func (s *PlayerSession) runTrack(ctx context.Context, np *NowPlaying) {
	stream, err := s.source.OpenStream(ctx, np.Item.Track)
	if err == nil {
		err = s.device.Start(ctx, np.Item.Track, stream,
			func() { s.onDeviceStarted(ctx, np) },
			func(devErr error) { s.onDeviceIdle(ctx, np, devErr) },
		)
		if err != nil {
			stream.Close()
		}
	}
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.now != np {
			return
		}
		np.Err = fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
		np.Apply(eventError)
		s.finalizeLocked(ctx, np)
	}
}

func (s *PlayerSession) onDeviceStarted(ctx context.Context, np *NowPlaying) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now != np {
		return
	}
	if np.Apply(eventStarted) {
		s.startTickerLocked()
		s.publishLocked()
	}
}

func (s *PlayerSession) onDeviceIdle(ctx context.Context, np *NowPlaying, devErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now != np {
		// A force-play already replaced this instance; its terminal state
		// was rendered when the skip was recorded.
		return
	}
	if devErr != nil {
		np.Err = fmt.Errorf("%w: %v", ErrDeviceFault, devErr)
		np.Apply(eventError)
	} else {
		// Rejected when a skip or error already landed; that is the point.
		np.Apply(eventFinish)
	}
	s.finalizeLocked(ctx, np)
}

func (s *PlayerSession) finalizeLocked(ctx context.Context, np *NowPlaying) {
	s.stopTickerLocked()
	LogPlayer(MsgPlayerTrackEnd, np.State, np.Item.Track.Title)
	s.publishLocked()

	if np.State == StateFinished && np.Item.Persist {
		item := np.Item
		safeGo(func() { recordPlayHistory(item) })
	}
	if np.State == StateError {
		LogPlayer(MsgPlayerTrackFail, np.Err)
	}

	if !np.AutoAdvance {
		return
	}
	s.advanceLocked(ctx)
}

// recordPlayHistory persists a finished play and keeps the history table
// bounded to the configured size.
func recordPlayHistory(item QueueItem) {
	ctx := context.Background()
	if err := RecordPlay(ctx, item.RequestedBy.String(), item.Track.ID, item.Track.Title, item.Track.Artist, item.Track.URL, item.Track.Duration); err != nil {
		LogPlayer(MsgPlayerHistoryFail, err)
		return
	}
	max := 500
	if GlobalConfig != nil && GlobalConfig.HistoryMaxTracks > 0 {
		max = GlobalConfig.HistoryMaxTracks
	}
	if _, err := PruneHistory(ctx, max); err != nil {
		LogPlayer(MsgPlayerHistoryFail, err)
	}
}

func (s *PlayerSession) advanceLocked(ctx context.Context) {
	next := s.queue.DequeueNext()
	if next == nil {
		// Keep the terminal instance around: the replay control on its
		// message still needs a target.
		return
	}
	LogPlayer(MsgPlayerQueueAdvance, s.queue.Len())
	s.startLocked(ctx, *next)
}

func (s *PlayerSession) publishLocked() {
	if s.display != nil {
		s.display.Update(s.snapshotLocked(8))
	}
}

func (s *PlayerSession) snapshotLocked(top int) DisplaySnapshot {
	head, overflow := s.queue.Peek(top)
	snap := DisplaySnapshot{
		Queue:    head,
		Overflow: overflow,
	}
	if s.now != nil {
		snap.HasTrack = true
		snap.Item = s.now.Item
		snap.State = s.now.State
		snap.Elapsed = s.now.Elapsed()
		snap.Err = s.now.Err
	}
	return snap
}

// The progress ticker re-renders elapsed time while Playing only. It is
// acquired on entry to Playing and released on any exit, so no ticker
// survives a track transition.
func (s *PlayerSession) startTickerLocked() {
	if s.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	s.tickerStop = stop
	safeGo(func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.now != nil && s.now.State == StatePlaying {
					s.publishLocked()
				}
				s.mu.Unlock()
			}
		}
	})
}

func (s *PlayerSession) stopTickerLocked() {
	if s.tickerStop != nil {
		close(s.tickerStop)
		s.tickerStop = nil
	}
}
