package main

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDevice records calls and exposes the callbacks of each Start so tests
// can fire them like the real device's async worker would.
type fakeDevice struct {
	mu      sync.Mutex
	paused  bool
	stops   int
	pauses  []bool
	starts  []fakeStart
	started chan struct{}
}

type fakeStart struct {
	track     Track
	stream    io.ReadCloser
	onStarted func()
	onIdle    func(err error)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{started: make(chan struct{}, 16)}
}

func (d *fakeDevice) Start(ctx context.Context, track Track, stream io.ReadCloser, onStarted func(), onIdle func(err error)) error {
	d.mu.Lock()
	d.starts = append(d.starts, fakeStart{track: track, stream: stream, onStarted: onStarted, onIdle: onIdle})
	d.mu.Unlock()
	d.started <- struct{}{}
	return nil
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	d.stops++
	d.mu.Unlock()
}

func (d *fakeDevice) SetPaused(paused bool) {
	d.mu.Lock()
	d.paused = paused
	d.pauses = append(d.pauses, paused)
	d.mu.Unlock()
}

func (d *fakeDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *fakeDevice) waitStart(t *testing.T) fakeStart {
	t.Helper()
	select {
	case <-d.started:
	case <-time.After(2 * time.Second):
		t.Fatal("device Start never called")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts[len(d.starts)-1]
}

func (d *fakeDevice) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.starts)
}

func (d *fakeDevice) stopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// announceDone completes every announcement immediately.
type announceDone struct{ starts int }

func (a *announceDone) Start(ctx context.Context, track Track, stream io.ReadCloser, onStarted func(), onIdle func(err error)) error {
	a.starts++
	stream.Close()
	onIdle(nil)
	return nil
}
func (a *announceDone) Stop()                {}
func (a *announceDone) SetPaused(bool)       {}
func (a *announceDone) Paused() bool         { return false }

type fakeSource struct{}

func (fakeSource) OpenStream(ctx context.Context, track Track) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("audio")), nil
}

type failingSource struct{ err error }

func (s failingSource) OpenStream(ctx context.Context, track Track) (io.ReadCloser, error) {
	return nil, s.err
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, query string) ([]Track, error) {
	return []Track{{ID: query, Title: query}}, nil
}

// recordingDisplay stores every published snapshot.
type recordingDisplay struct {
	mu    sync.Mutex
	snaps []DisplaySnapshot
}

func (d *recordingDisplay) Update(snap DisplaySnapshot) {
	d.mu.Lock()
	d.snaps = append(d.snaps, snap)
	d.mu.Unlock()
}

func (d *recordingDisplay) states() []PlayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PlayState, 0, len(d.snaps))
	for _, s := range d.snaps {
		if s.HasTrack {
			out = append(out, s.State)
		}
	}
	return out
}

func newTestSession(t *testing.T, device *fakeDevice, source AudioSource) (*PlayerSession, *recordingDisplay) {
	t.Helper()
	if source == nil {
		source = fakeSource{}
	}
	display := &recordingDisplay{}
	s := NewPlayerSession(1, fakeResolver{}, source, device, &announceDone{}, display, rand.New(rand.NewSource(1)))
	t.Cleanup(s.Shutdown)
	return s, display
}

func TestPlayStartsWhenIdle(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	item := makeItems("a")[0]
	if err := s.Play(context.Background(), item, PlayOptions{Position: -1}); err != nil {
		t.Fatal(err)
	}
	start := device.waitStart(t)
	if start.track.Title != "a" {
		t.Fatalf("device got %q", start.track.Title)
	}
	start.onStarted()
	if got := s.NowPlayingItem(); got == nil || got.Track.Title != "a" {
		t.Fatalf("now playing %v", got)
	}
	if !s.Active() {
		t.Fatal("session not active after start")
	}
}

func TestPlayEnqueuesWhileActive(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	items := makeItems("a", "b", "c")
	_ = s.Play(ctx, items[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()

	_ = s.Play(ctx, items[1], PlayOptions{Position: -1})
	_ = s.Play(ctx, items[2], PlayOptions{Position: 0})

	snap := s.QueueSnapshot(10)
	if len(snap.Queue) != 2 || snap.Queue[0].Track.Title != "c" || snap.Queue[1].Track.Title != "b" {
		t.Fatalf("queue order wrong: %v", snap.Queue)
	}
	if device.startCount() != 1 {
		t.Fatalf("device started %d times, want 1", device.startCount())
	}
}

func TestIdleAdvancesQueue(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	items := makeItems("a", "b")
	_ = s.Play(ctx, items[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()
	_ = s.Play(ctx, items[1], PlayOptions{Position: -1})

	first.onIdle(nil)

	second := device.waitStart(t)
	if second.track.Title != "b" {
		t.Fatalf("advanced to %q, want b", second.track.Title)
	}
	if snap := s.QueueSnapshot(10); len(snap.Queue) != 0 {
		t.Fatalf("queue not drained: %v", snap.Queue)
	}
}

func TestSkipRecordedBeforeDeviceStop(t *testing.T) {
	device := newFakeDevice()
	s, display := newTestSession(t, device, nil)

	_ = s.Play(context.Background(), makeItems("a")[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()

	if err := s.Skip(); err != nil {
		t.Fatal(err)
	}
	if device.stopCount() != 1 {
		t.Fatalf("device stopped %d times, want 1", device.stopCount())
	}

	// The skip snapshot must have been published before the stop, so the
	// async idle callback can never render this instance as Finished.
	states := display.states()
	if len(states) == 0 || states[len(states)-1] != StateSkipped {
		t.Fatalf("last published state %v, want Skipped", states)
	}

	// Raced idle callback reporting a normal finish: must keep Skipped.
	first.onIdle(nil)
	states = display.states()
	for _, st := range states {
		if st == StateFinished {
			t.Fatalf("finish leaked through after skip: %v", states)
		}
	}
}

func TestForcePlayRace(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	items := makeItems("a", "b", "queued")
	_ = s.Play(ctx, items[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()
	_ = s.Play(ctx, items[2], PlayOptions{Position: -1})

	if err := s.Play(ctx, items[1], PlayOptions{Force: true}); err != nil {
		t.Fatal(err)
	}
	second := device.waitStart(t)
	if second.track.Title != "b" {
		t.Fatalf("forced track %q, want b", second.track.Title)
	}

	// The stale idle callback from the replaced instance arrives late; it
	// must neither advance the queue nor replace the forced track.
	first.onIdle(nil)
	time.Sleep(50 * time.Millisecond)

	if got := s.NowPlayingItem(); got == nil || got.Track.Title != "b" {
		t.Fatalf("now playing %v, want b", got)
	}
	if snap := s.QueueSnapshot(10); len(snap.Queue) != 1 || snap.Queue[0].Track.Title != "queued" {
		t.Fatalf("queue disturbed by stale idle: %v", snap.Queue)
	}
	if device.startCount() != 2 {
		t.Fatalf("device started %d times, want 2", device.startCount())
	}
}

func TestStreamErrorAdvances(t *testing.T) {
	device := newFakeDevice()
	s, display := newTestSession(t, device, nil)

	_ = s.Play(context.Background(), makeItems("a")[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()

	first.onIdle(errors.New("voice gateway dropped"))
	time.Sleep(50 * time.Millisecond)

	var sawError bool
	for _, snap := range func() []DisplaySnapshot {
		display.mu.Lock()
		defer display.mu.Unlock()
		return append([]DisplaySnapshot(nil), display.snaps...)
	}() {
		if snap.State == StateError && snap.Err != nil {
			if !errors.Is(snap.Err, ErrDeviceFault) {
				t.Fatalf("error not wrapped as device fault: %v", snap.Err)
			}
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("device fault never published")
	}
}

func TestOpenStreamFailureSurfacesAndAdvances(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, failingSource{err: errors.New("fetch refused")})

	ctx := context.Background()
	items := makeItems("bad", "good")
	s.EnqueueAll(ctx, items, -1)

	// The failing first track must not start the device; once the error
	// lands the session advances and tries the second.
	deadline := time.After(2 * time.Second)
	for {
		if got := s.NowPlayingItem(); got != nil && got.Track.Title == "good" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("never advanced past failing track: %v", s.NowPlayingItem())
		case <-time.After(10 * time.Millisecond):
		}
	}
	if device.startCount() != 0 {
		t.Fatalf("device started %d times for unopenable streams", device.startCount())
	}
}

func TestPauseResume(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	if err := s.Pause(); err != ErrNothingPlaying {
		t.Fatalf("pause while idle: %v", err)
	}
	if err := s.Resume(); err != ErrNothingPlaying {
		t.Fatalf("resume while idle: %v", err)
	}

	_ = s.Play(context.Background(), makeItems("a")[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if !device.Paused() {
		t.Fatal("device not paused")
	}
	// Idempotent: pausing a paused track is not an error.
	if err := s.Pause(); err != nil {
		t.Fatalf("second pause: %v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}
	if device.Paused() {
		t.Fatal("device still paused after resume")
	}
}

func TestPauseClearedOnTrackTransition(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	items := makeItems("a", "b")
	_ = s.Play(ctx, items[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()
	_ = s.Play(ctx, items[1], PlayOptions{Position: -1})

	// Pause then skip: the pause belonged to "a" and must not gate "b".
	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := s.Skip(); err != nil {
		t.Fatal(err)
	}
	first.onIdle(nil)

	second := device.waitStart(t)
	if second.track.Title != "b" {
		t.Fatalf("advanced to %q, want b", second.track.Title)
	}
	if device.Paused() {
		t.Fatal("device still paused when the next track started")
	}
	second.onStarted()

	// Same through the force-play path.
	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := s.Play(ctx, makeItems("c")[0], PlayOptions{Force: true}); err != nil {
		t.Fatal(err)
	}
	third := device.waitStart(t)
	if third.track.Title != "c" {
		t.Fatalf("forced track %q, want c", third.track.Title)
	}
	if device.Paused() {
		t.Fatal("pause leaked into the forced track")
	}
}

func TestStopClearsQueueAndSkips(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	items := makeItems("a", "b", "c")
	s.EnqueueAll(ctx, items, -1)
	first := device.waitStart(t)
	first.onStarted()

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if snap := s.QueueSnapshot(10); len(snap.Queue) != 0 {
		t.Fatalf("queue survived stop: %v", snap.Queue)
	}
	if device.stopCount() != 1 {
		t.Fatalf("device stops = %d, want 1", device.stopCount())
	}

	// The stale idle callback must not restart anything.
	first.onIdle(nil)
	time.Sleep(50 * time.Millisecond)
	if device.startCount() != 1 {
		t.Fatalf("playback restarted after stop: %d starts", device.startCount())
	}
}

func TestReplayAfterFinish(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	_ = s.Play(ctx, makeItems("a")[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()
	first.onIdle(nil)

	// Natural finish with an empty queue: the instance stays addressable
	// and replay restarts it.
	if err := s.Replay(ctx); err != nil {
		t.Fatal(err)
	}
	second := device.waitStart(t)
	if second.track.Title != "a" {
		t.Fatalf("replayed %q, want a", second.track.Title)
	}
}

func TestAnnounceRestoresPauseState(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	ctx := context.Background()
	_ = s.Play(ctx, makeItems("a")[0], PlayOptions{Position: -1})
	first := device.waitStart(t)
	first.onStarted()

	// Playing: the announcement pauses the track and resumes it after.
	if err := s.Announce(ctx, io.NopCloser(strings.NewReader("tts"))); err != nil {
		t.Fatal(err)
	}
	if device.Paused() {
		t.Fatal("track left paused after announcement")
	}

	// Paused by the user: the announcement must not resume it.
	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := s.Announce(ctx, io.NopCloser(strings.NewReader("tts"))); err != nil {
		t.Fatal(err)
	}
	if !device.Paused() {
		t.Fatal("user pause lost across announcement")
	}
}

func TestShuffleRequiresTwo(t *testing.T) {
	device := newFakeDevice()
	s, _ := newTestSession(t, device, nil)

	if err := s.Shuffle(); err != ErrEmptyQueue {
		t.Fatalf("empty shuffle: %v", err)
	}

	ctx := context.Background()
	items := makeItems("a", "b")
	s.EnqueueAll(ctx, items, -1)
	device.waitStart(t)
	// One pending item only; still too short.
	if err := s.Shuffle(); err != ErrEmptyQueue {
		t.Fatalf("single-item shuffle: %v", err)
	}
}
