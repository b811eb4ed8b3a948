package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Voice Device
// ============================================================================

var (
	OpusSilence     = []byte{0xf8, 0xff, 0xfe}
	SilenceDuration = 1 * time.Second
)

// VoiceDevice drives a single guild voice connection: it owns the opus
// frame provider and the transcoder pipeline feeding it. The PlayerSession
// treats it purely through the playbackDevice interface.
type VoiceDevice struct {
	GuildID snowflake.ID

	client    bot.Client
	conn      voice.Conn
	cancelCtx context.Context
	cancel    context.CancelFunc
	Volume    atomic.Int32

	mu           sync.Mutex
	channelID    snowflake.ID
	joined       bool
	provider     *opusProvider
	streamCancel context.CancelFunc

	pauseMu   sync.RWMutex
	pauseChan chan struct{}
	paused    bool
}

func NewVoiceDevice(client bot.Client, guildID snowflake.ID) *VoiceDevice {
	ctx, cancel := context.WithCancel(context.Background())
	d := &VoiceDevice{
		GuildID:   guildID,
		client:    client,
		conn:      client.VoiceManager.CreateConn(guildID),
		cancelCtx: ctx,
		cancel:    cancel,
		pauseChan: make(chan struct{}),
	}
	d.Volume.Store(100)
	close(d.pauseChan)
	return d
}

// Join opens the gateway voice connection with backoff.
func (d *VoiceDevice) Join(ctx context.Context, channelID snowflake.ID) error {
	d.mu.Lock()
	if d.joined && d.channelID == channelID {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	LogVoice("Joining channel %s in guild %s", channelID, d.GuildID)

	var lastErr error
	for i := range 5 {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 1000 * time.Millisecond
			LogVoice("Retrying voice connection in %v (Attempt %d/5)", backoff, i+1)
			time.Sleep(backoff)
		}
		if err := d.conn.Open(ctx, channelID, false, false); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		LogVoice("Failed to connect to voice in guild %s after 5 attempts: %v", d.GuildID, lastErr)
		d.conn.Close(ctx)
		return lastErr
	}

	d.mu.Lock()
	d.joined = true
	d.channelID = channelID
	d.mu.Unlock()
	return nil
}

// Leave clears the channel's voice status and closes the connection.
func (d *VoiceDevice) Leave(ctx context.Context) {
	d.mu.Lock()
	channelID := d.channelID
	d.joined = false
	d.mu.Unlock()

	if channelID != 0 {
		route := rest.NewEndpoint(http.MethodPut, "/channels/"+channelID.String()+"/voice-status")
		_ = d.client.Rest.Do(route.Compile(nil), map[string]string{"status": ""}, nil)
	}

	d.Stop()
	d.cancel()
	d.conn.Close(ctx)
}

func (d *VoiceDevice) Joined() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.joined
}

func (d *VoiceDevice) ChannelID() snowflake.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channelID
}

// SetVoiceStatus sets the channel's live status line, fire-and-forget.
func (d *VoiceDevice) SetVoiceStatus(status string) {
	d.mu.Lock()
	channelID := d.channelID
	d.mu.Unlock()
	if channelID == 0 {
		return
	}
	if len([]rune(status)) > 128 {
		status = string([]rune(status)[:128])
	}
	safeGo(func() {
		route := rest.NewEndpoint(http.MethodPut, "/channels/"+channelID.String()+"/voice-status")
		_ = d.client.Rest.Do(route.Compile(nil), map[string]string{"status": status}, nil)
	})
}

// Start hands a stream to the device. It returns once the pipeline is
// launched; onStarted fires when frames begin flowing, onIdle exactly once
// when the stream ends.
func (d *VoiceDevice) Start(ctx context.Context, track Track, stream io.ReadCloser, onStarted func(), onIdle func(err error)) error {
	d.mu.Lock()
	if d.cancelCtx.Err() != nil {
		d.mu.Unlock()
		return errors.New("device closed")
	}
	if d.streamCancel != nil {
		d.streamCancel()
	}
	p := newOpusProvider(d)
	d.provider = p
	done := make(chan struct{})
	p.OnFinish = func() { close(done) }
	streamCtx, cancel := context.WithCancel(d.cancelCtx)
	d.streamCancel = cancel
	p.SetContext(streamCtx)
	d.mu.Unlock()

	var transcodeErr error
	var errMu sync.Mutex

	safeGo(func() {
		defer p.PushFrame(nil)
		t := NewAstiavTranscoder()
		t.volume = &d.Volume
		defer t.Close()
		if err := t.OpenInput("", stream); err != nil {
			LogVoice("Transcoder OpenInput failed: %v", err)
			errMu.Lock()
			transcodeErr = err
			errMu.Unlock()
			return
		}
		if err := t.SetupDecoder(); err != nil {
			LogVoice("Transcoder SetupDecoder failed: %v", err)
			errMu.Lock()
			transcodeErr = err
			errMu.Unlock()
			return
		}
		if err := t.SetupEncoder(); err != nil {
			LogVoice("Transcoder SetupEncoder failed: %v", err)
			errMu.Lock()
			transcodeErr = err
			errMu.Unlock()
			return
		}
		if err := t.Transcode(streamCtx, p.PushFrame); err != nil && !errors.Is(err, context.Canceled) {
			LogVoice("Transcoder finished for %s: %v", track.Title, err)
			errMu.Lock()
			transcodeErr = err
			errMu.Unlock()
		}
	})

	safeGo(func() {
		defer cancel()
		defer stream.Close()

		d.setOpusFrameProviderSafe(p)
		d.setSpeakingSafe(voice.SpeakingFlagMicrophone)
		if onStarted != nil {
			onStarted()
		}
		if track.Title != "" {
			d.SetVoiceStatus("🎵 " + track.Title)
		}

		canceled := false
		select {
		case <-done:
			LogVoice("Playback finished: %s", track.Title)
		case <-streamCtx.Done():
			LogVoice("Playback stopped: %s", track.Title)
			canceled = true
		case <-d.cancelCtx.Done():
			canceled = true
		}

		d.mu.Lock()
		mine := d.provider == p
		d.mu.Unlock()
		if mine {
			d.SetVoiceStatus("")
			d.setOpusFrameProviderSafe(nil)
			d.setSpeakingSafe(0)
			select {
			case <-time.After(200 * time.Millisecond):
			case <-d.cancelCtx.Done():
			}
		}

		if onIdle != nil {
			errMu.Lock()
			err := transcodeErr
			errMu.Unlock()
			if canceled {
				err = nil
			}
			onIdle(err)
		}
	})

	return nil
}

func (d *VoiceDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamCancel != nil {
		d.streamCancel()
		d.streamCancel = nil
	}
}

// SetPaused gates the frame provider via the closed-channel idiom: a closed
// pauseChan means frames flow, an open one blocks the provider.
func (d *VoiceDevice) SetPaused(paused bool) {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()
	if paused == d.paused {
		return
	}
	d.paused = paused
	if paused {
		d.pauseChan = make(chan struct{})
	} else {
		close(d.pauseChan)
	}
}

func (d *VoiceDevice) Paused() bool {
	d.pauseMu.RLock()
	defer d.pauseMu.RUnlock()
	return d.paused
}

func (d *VoiceDevice) setOpusFrameProviderSafe(provider voice.OpusFrameProvider) {
	if d.cancelCtx.Err() != nil {
		return
	}
	if d.conn == nil || (reflect.ValueOf(d.conn).Kind() == reflect.Ptr && reflect.ValueOf(d.conn).IsNil()) {
		return
	}

	for i := range 3 {
		if d.trySetOpusFrameProvider(provider) {
			return
		}
		if i < 2 {
			select {
			case <-time.After(150 * time.Millisecond):
			case <-d.cancelCtx.Done():
				return
			}
		}
		if d.cancelCtx.Err() != nil {
			return
		}
	}
	LogVoice("Exhausted retries for SetOpusFrameProvider in guild %s", d.GuildID)
}

func (d *VoiceDevice) trySetOpusFrameProvider(provider voice.OpusFrameProvider) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	d.conn.SetOpusFrameProvider(provider)
	return true
}

func (d *VoiceDevice) setSpeakingSafe(flags voice.SpeakingFlags) {
	if d.cancelCtx.Err() != nil {
		return
	}
	if d.conn == nil || (reflect.ValueOf(d.conn).Kind() == reflect.Ptr && reflect.ValueOf(d.conn).IsNil()) {
		return
	}

	for i := range 3 {
		if d.trySetSpeaking(flags) {
			return
		}
		if i < 2 {
			select {
			case <-time.After(150 * time.Millisecond):
			case <-d.cancelCtx.Done():
				return
			}
		}
		if d.cancelCtx.Err() != nil {
			return
		}
	}
	LogVoice("Exhausted retries for SetSpeaking in guild %s", d.GuildID)
}

func (d *VoiceDevice) trySetSpeaking(flags voice.SpeakingFlags) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	d.conn.SetSpeaking(d.cancelCtx, flags)
	return true
}

// AnnounceDevice plays ad hoc payloads (TTS) through the same connection.
// When its stream ends it restores the queue device's provider, so a paused
// track resumes exactly where its frames were gated.
type AnnounceDevice struct {
	d *VoiceDevice

	mu           sync.Mutex
	streamCancel context.CancelFunc
}

func NewAnnounceDevice(d *VoiceDevice) *AnnounceDevice {
	return &AnnounceDevice{d: d}
}

func (a *AnnounceDevice) Start(ctx context.Context, track Track, stream io.ReadCloser, onStarted func(), onIdle func(err error)) error {
	d := a.d

	d.mu.Lock()
	prev := d.provider
	d.mu.Unlock()

	p := newOpusProvider(d)
	p.ignorePause = true
	done := make(chan struct{})
	p.OnFinish = func() { close(done) }
	streamCtx, cancel := context.WithCancel(d.cancelCtx)
	p.SetContext(streamCtx)

	a.mu.Lock()
	if a.streamCancel != nil {
		a.streamCancel()
	}
	a.streamCancel = cancel
	a.mu.Unlock()

	safeGo(func() {
		defer p.PushFrame(nil)
		t := NewAstiavTranscoder()
		defer t.Close()
		if err := t.OpenInput("", stream); err != nil {
			LogVoice("Announce OpenInput failed: %v", err)
			return
		}
		if err := t.SetupDecoder(); err != nil {
			return
		}
		if err := t.SetupEncoder(); err != nil {
			return
		}
		_ = t.Transcode(streamCtx, p.PushFrame)
	})

	safeGo(func() {
		defer cancel()
		defer stream.Close()

		d.setOpusFrameProviderSafe(p)
		d.setSpeakingSafe(voice.SpeakingFlagMicrophone)
		if onStarted != nil {
			onStarted()
		}

		select {
		case <-done:
		case <-streamCtx.Done():
		case <-d.cancelCtx.Done():
		}

		// Hand the connection back to whatever was playing before.
		d.setOpusFrameProviderSafe(prev)
		if prev == nil {
			d.setSpeakingSafe(0)
		}

		if onIdle != nil {
			onIdle(nil)
		}
	})

	return nil
}

func (a *AnnounceDevice) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.streamCancel != nil {
		a.streamCancel()
		a.streamCancel = nil
	}
}

func (a *AnnounceDevice) SetPaused(bool) {}
func (a *AnnounceDevice) Paused() bool   { return false }

// ============================================================================
// Opus Frame Provider
// ============================================================================

// opusProvider feeds 20ms opus frames to the voice gateway, gating on the
// device's pause channel and draining a short silence tail at end of stream.
type opusProvider struct {
	frames        chan []byte
	OnFinish      func()
	once          sync.Once
	dev           *VoiceDevice
	ctx           context.Context
	draining      bool
	silenceFrames int
	ignorePause   bool
}

func newOpusProvider(d *VoiceDevice) *opusProvider {
	return &opusProvider{
		frames: make(chan []byte, 100),
		dev:    d,
	}
}

func (p *opusProvider) SetContext(ctx context.Context) {
	p.ctx = ctx
}

func (p *opusProvider) Close() {
	p.once.Do(func() {
		if p.OnFinish != nil {
			p.OnFinish()
		}
	})
}

func (p *opusProvider) PushFrame(f []byte) {
	select {
	case p.frames <- f:
	case <-p.dev.cancelCtx.Done():
	case <-p.ctx.Done():
	}
}

func (p *opusProvider) ProvideOpusFrame() ([]byte, error) {
	if !p.ignorePause {
		p.dev.pauseMu.RLock()
		pauseChan := p.dev.pauseChan
		p.dev.pauseMu.RUnlock()

		select {
		case <-pauseChan:
		case <-p.dev.cancelCtx.Done():
			return nil, io.EOF
		case <-p.ctx.Done():
			return nil, io.EOF
		}
	}

	if p.draining {
		target := int(SilenceDuration.Milliseconds() / 20)
		if p.silenceFrames < target {
			p.silenceFrames++
			return OpusSilence, nil
		}
		p.Close()
		return nil, io.EOF
	}

	select {
	case f := <-p.frames:
		if f == nil {
			p.draining = true
			return OpusSilence, nil
		}
		return f, nil
	case <-p.dev.cancelCtx.Done():
		p.Close()
		return nil, io.EOF
	case <-p.ctx.Done():
		p.Close()
		return nil, io.EOF
	case <-time.After(500 * time.Millisecond):
		return OpusSilence, nil
	}
}

// ============================================================================
// Transcoder
// ============================================================================

// AstiavTranscoder decodes arbitrary audio input and re-encodes it as 48kHz
// stereo opus in 20ms frames.
type AstiavTranscoder struct {
	inputCtx               *astiav.FormatContext
	decoderCtx, encoderCtx *astiav.CodecContext
	audioStreamIndex       int
	packet                 *astiav.Packet
	frame                  *astiav.Frame
	resampleCtx            *astiav.SoftwareResampleContext
	resampleFrame          *astiav.Frame
	fifo                   *astiav.AudioFifo
	reader                 io.Reader
	onFrame                func([]byte)
	pts                    int64
	volume                 *atomic.Int32
}

func NewAstiavTranscoder() *AstiavTranscoder {
	return &AstiavTranscoder{
		packet:        astiav.AllocPacket(),
		frame:         astiav.AllocFrame(),
		resampleFrame: astiav.AllocFrame(),
	}
}

func (t *AstiavTranscoder) GetTimestamp() int64 {
	return atomic.LoadInt64(&t.pts)
}

func (t *AstiavTranscoder) OpenInput(in string, r io.Reader) error {
	t.inputCtx = astiav.AllocFormatContext()
	if t.inputCtx == nil {
		return errors.New("failed to alloc ctx")
	}
	if r != nil {
		t.reader = r
		seekFunc := func(offset int64, whence int) (int64, error) {
			if whence == 2 {
				return -1, errors.New("seeking from end not supported during download")
			}
			if s, ok := r.(io.Seeker); ok {
				return s.Seek(offset, whence)
			}
			return 0, errors.New("seek not supported")
		}

		ioCtx, err := astiav.AllocIOContext(16*1024, false, func(b []byte) (int, error) {
			return t.reader.Read(b)
		}, seekFunc, nil)
		if err != nil {
			return err
		}
		t.inputCtx.SetPb(ioCtx)
		t.inputCtx.SetFlags(t.inputCtx.Flags().Add(astiav.FormatContextFlagCustomIo))

		opts := astiav.NewDictionary()
		defer opts.Free()
		opts.Set("probesize", "10000000", 0)
		opts.Set("analyzeduration", "10000000", 0)
		opts.Set("fflags", "nobuffer", 0)
		opts.Set("flags", "low_delay", 0)

		if err := t.inputCtx.OpenInput(in, nil, opts); err != nil {
			return err
		}
	} else {
		var opts *astiav.Dictionary
		if len(in) >= 4 && in[:4] == "http" {
			opts = astiav.NewDictionary()
			defer opts.Free()
			opts.Set("reconnect", "1", 0)
			opts.Set("reconnect_at_eof", "1", 0)
			opts.Set("reconnect_streamed", "1", 0)
			opts.Set("reconnect_delay_max", "30", 0)
			opts.Set("timeout", "30000000", 0)
			opts.Set("probesize", "10000000", 0)
			opts.Set("analyzeduration", "10000000", 0)
		}
		if err := t.inputCtx.OpenInput(in, nil, opts); err != nil {
			return err
		}
	}
	if err := t.inputCtx.FindStreamInfo(nil); err != nil {
		return err
	}
	t.audioStreamIndex = -1
	for _, s := range t.inputCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			t.audioStreamIndex = s.Index()
			break
		}
	}
	if t.audioStreamIndex == -1 {
		return errors.New("no audio")
	}
	return nil
}

func (t *AstiavTranscoder) SetupDecoder() error {
	p := t.inputCtx.Streams()[t.audioStreamIndex].CodecParameters()
	d := astiav.FindDecoder(p.CodecID())
	if d == nil {
		return errors.New("no decoder")
	}
	t.decoderCtx = astiav.AllocCodecContext(d)
	_ = p.ToCodecContext(t.decoderCtx)
	return t.decoderCtx.Open(d, nil)
}

func (t *AstiavTranscoder) SetupEncoder() error {
	e := astiav.FindEncoderByName("libopus")
	if e == nil {
		e = astiav.FindEncoder(astiav.CodecIDOpus)
	}
	if e == nil {
		return errors.New("no encoder")
	}
	t.encoderCtx = astiav.AllocCodecContext(e)
	t.encoderCtx.SetBitRate(192000)
	t.encoderCtx.SetSampleRate(48000)
	t.encoderCtx.SetChannelLayout(astiav.ChannelLayoutStereo)
	t.encoderCtx.SetSampleFormat(astiav.SampleFormatS16)
	t.encoderCtx.SetTimeBase(astiav.NewRational(1, 48000))
	o := astiav.NewDictionary()
	defer o.Free()
	o.Set("vbr", "on", 0)
	o.Set("compression_level", "10", 0)
	o.Set("frame_size", "20", 0)
	if err := t.encoderCtx.Open(e, o); err != nil {
		return err
	}
	t.resampleCtx = astiav.AllocSoftwareResampleContext()
	if t.resampleCtx == nil {
		return errors.New("failed to allocate resampler")
	}
	return nil
}

func (t *AstiavTranscoder) Transcode(ctx context.Context, on func([]byte)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcoder panic: %v", r)
			LogVoice("CRITICAL: Transcoder panic recovered: %v", r)
		}
	}()

	defer t.packet.Unref()
	t.onFrame = on
	defer func() {
		if t.onFrame != nil {
			t.onFrame(nil)
		}
	}()

	fifoSize := 960 * 2
	t.fifo = astiav.AllocAudioFifo(t.encoderCtx.SampleFormat(), t.encoderCtx.ChannelLayout().Channels(), fifoSize)
	if t.fifo == nil {
		return errors.New("failed to alloc fifo")
	}
	defer func() {
		if t.fifo != nil {
			t.fifo.Free()
			t.fifo = nil
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t.packet.Unref()

		if err := t.inputCtx.ReadFrame(t.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			return err
		}

		if t.packet.StreamIndex() != t.audioStreamIndex {
			continue
		}

		if err := t.decoderCtx.SendPacket(t.packet); err != nil {
			return err
		}

		for {
			if err := t.decoderCtx.ReceiveFrame(t.frame); err != nil {
				break
			}

			if err := t.pushToFifo(); err != nil {
				return err
			}

			t.frame.Unref()
		}
	}

	// Flush Decoder
	if t.decoderCtx != nil {
		_ = t.decoderCtx.SendPacket(nil)
		for {
			if err := t.decoderCtx.ReceiveFrame(t.frame); err != nil {
				break
			}
			if err := t.pushToFifo(); err != nil {
				return err
			}
			t.frame.Unref()
		}
	}

	// Clear FIFO
	if err := t.processFifo(true); err != nil {
		return err
	}

	// Flush Encoder
	if t.encoderCtx != nil {
		_ = t.encoderCtx.SendFrame(nil)
		for {
			t.packet.Unref()
			if t.encoderCtx.ReceivePacket(t.packet) != nil {
				break
			}
			if t.onFrame != nil {
				d := t.packet.Data()
				fd := make([]byte, len(d))
				copy(fd, d)
				t.onFrame(fd)
			}
		}
	}
	return nil
}

func (t *AstiavTranscoder) encodeAndWrite(f *astiav.Frame) error {
	if err := t.encoderCtx.SendFrame(f); err != nil {
		return err
	}
	for {
		t.packet.Unref()
		if t.encoderCtx.ReceivePacket(t.packet) != nil {
			break
		}
		if t.onFrame != nil {
			d := t.packet.Data()
			fd := make([]byte, len(d))
			copy(fd, d)
			t.onFrame(fd)
		}
	}
	return nil
}

func (t *AstiavTranscoder) pushToFifo() error {
	t.resampleFrame.Unref()
	t.resampleFrame.SetChannelLayout(t.encoderCtx.ChannelLayout())
	t.resampleFrame.SetSampleFormat(t.encoderCtx.SampleFormat())
	t.resampleFrame.SetSampleRate(t.encoderCtx.SampleRate())
	nb := int(astiav.RescaleQ(int64(t.frame.NbSamples()), astiav.NewRational(1, t.frame.SampleRate()), astiav.NewRational(1, t.encoderCtx.SampleRate())))
	if nb > 0 {
		t.resampleFrame.SetNbSamples(nb)
		_ = t.resampleFrame.AllocBuffer(0)
		if t.resampleCtx.ConvertFrame(t.frame, t.resampleFrame) == nil {
			_, _ = t.fifo.Write(t.resampleFrame)
			return t.processFifo(false)
		}
	}
	return nil
}

func (t *AstiavTranscoder) processFifo(drain bool) error {
	if t.fifo == nil {
		return nil
	}
	for {
		sz := 960
		if t.fifo.Size() < sz {
			if !drain || t.fifo.Size() == 0 {
				return nil
			}
			sz = t.fifo.Size()
		}
		t.resampleFrame.Unref()
		t.resampleFrame.SetNbSamples(sz)
		t.resampleFrame.SetChannelLayout(t.encoderCtx.ChannelLayout())
		t.resampleFrame.SetSampleFormat(t.encoderCtx.SampleFormat())
		t.resampleFrame.SetSampleRate(t.encoderCtx.SampleRate())
		_ = t.resampleFrame.AllocBuffer(0)
		_, _ = t.fifo.Read(t.resampleFrame)

		if t.volume != nil {
			vol := t.volume.Load()
			if vol != 100 {
				data, _ := t.resampleFrame.Data().Bytes(1)
				limit := sz * 4
				if limit > len(data) {
					limit = len(data)
				}
				for i := 0; i < limit; i += 2 {
					sample := int16(data[i]) | int16(data[i+1])<<8
					scaled := int64(sample) * int64(vol) / 100
					if scaled > 32767 {
						scaled = 32767
					} else if scaled < -32768 {
						scaled = -32768
					}
					data[i] = byte(scaled)
					data[i+1] = byte(scaled >> 8)
				}
				_ = t.resampleFrame.Data().SetBytes(data, 1)
			}
		}

		t.resampleFrame.SetPts(atomic.LoadInt64(&t.pts))
		atomic.AddInt64(&t.pts, int64(sz))
		if err := t.encodeAndWrite(t.resampleFrame); err != nil {
			return err
		}
	}
}

func (t *AstiavTranscoder) Close() {
	if t.resampleCtx != nil {
		t.resampleCtx.Free()
	}
	if t.resampleFrame != nil {
		t.resampleFrame.Free()
	}
	if t.packet != nil {
		t.packet.Free()
	}
	if t.frame != nil {
		t.frame.Free()
	}
	if t.decoderCtx != nil {
		t.decoderCtx.Free()
	}
	if t.encoderCtx != nil {
		t.encoderCtx.Free()
	}
	if t.inputCtx != nil {
		t.inputCtx.CloseInput()
		t.inputCtx.Free()
	}
}
