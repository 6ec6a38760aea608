// ABOUTME: Playback controller owning the loaded beatmap's channels
// ABOUTME: Serializes loads, fans out transport commands and tracks completion
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/beatmix/beatmix/internal/beatmap"
	"github.com/beatmix/beatmix/internal/cache"
	"github.com/beatmix/beatmix/internal/channel"
	"github.com/beatmix/beatmix/internal/config"
	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/beatmix/beatmix/pkg/audio/mixer"
	"github.com/beatmix/beatmix/pkg/audio/stretch"
)

var (
	// ErrNothingLoaded is returned by transport calls before a load
	ErrNothingLoaded = errors.New("no beatmap loaded")

	// ErrLoadCancelled is returned when a newer load or shutdown superseded a load
	ErrLoadCancelled = errors.New("load cancelled")

	// ErrPlaylistEnd is returned when there is no item to advance to
	ErrPlaylistEnd = errors.New("end of playlist")
)

// Channel ids
const (
	MusicChannel    = "music"
	HitsoundChannel = "hitsounds"
	SampleChannel   = "samples"
)

// VolumeKind selects which level SetVolume changes
type VolumeKind string

const (
	VolumeMain     VolumeKind = "main"
	VolumeMusic    VolumeKind = "music"
	VolumeHitsound VolumeKind = "hitsound"
	VolumeSample   VolumeKind = "sample"
)

// Config holds controller configuration
type Config struct {
	Mixer    *mixer.Mixer
	Decoder  channel.FileDecoder
	Library  *cache.Library
	Settings config.Settings

	// PollInterval is the position update period; zero means 50ms
	PollInterval time.Duration

	// EventTick is the hit-sound scan period; zero uses the channel default
	EventTick time.Duration

	// Now drives event channel clocks; nil means time.Now
	Now channel.Clock

	// LoadBeatmap reads a reference; nil means LoadRef
	LoadBeatmap func(ref string) (*beatmap.Beatmap, error)
}

// State is a snapshot for display
type State struct {
	LoadID        string
	Ref           string
	Title         string
	Status        channel.Status
	Position      time.Duration
	Duration      time.Duration
	Rate          float64
	UseTempo      bool
	Mod           PlayMod
	Volume        config.Volume
	Balance       float32
	PlaylistIndex int
	PlaylistLen   int
	PlaylistMode  PlaylistMode

	// DeviceError is the last audio device fault, nil while healthy
	DeviceError error
}

// playback is one loaded beatmap and its channels
type playback struct {
	id       string
	ref      string
	beatmap  *beatmap.Beatmap
	music    channel.Channel
	channels []channel.Channel

	// sem serializes transport commands on this context
	sem *semaphore.Weighted

	// Completion tracking, guarded by Controller.mu
	done     map[string]bool
	finished bool

	ctx    context.Context
	cancel context.CancelFunc
}

func (pc *playback) channel(id string) channel.Channel {
	for _, ch := range pc.channels {
		if ch.ID() == id {
			return ch
		}
	}
	return nil
}

func (pc *playback) close() {
	pc.cancel()
	for _, ch := range pc.channels {
		if err := ch.Close(); err != nil {
			log.Printf("Failed to close channel %s: %v", ch.ID(), err)
		}
	}
}

// Controller plays beatmaps
type Controller struct {
	config   Config
	events   *broadcaster
	playlist *Playlist
	loadSem  *semaphore.Weighted

	mu         sync.Mutex
	current    *playback
	status     channel.Status
	loadID     string
	loadCancel context.CancelFunc
	folder     string
	rate       float64
	useTempo   bool
	mod        PlayMod
	volume     config.Volume
	deviceErr  error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller. Call Start to run its background loops.
func New(config Config) *Controller {
	if config.PollInterval <= 0 {
		config.PollInterval = 50 * time.Millisecond
	}
	if config.LoadBeatmap == nil {
		config.LoadBeatmap = LoadRef
	}

	mod, err := ParsePlayMod(config.Settings.Play.Mod)
	if err != nil {
		log.Printf("Ignoring play mod setting: %v", err)
	}
	listMode, err := ParsePlaylistMode(config.Settings.Play.PlaylistMode)
	if err != nil {
		log.Printf("Ignoring playlist mode setting: %v", err)
	}
	playlist := NewPlaylist()
	playlist.SetMode(listMode)
	rate, useTempo := mod.Playback()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:   config,
		events:   newBroadcaster(),
		playlist: playlist,
		loadSem:  semaphore.NewWeighted(1),
		status:   channel.StatusUninitialized,
		rate:     rate,
		useTempo: useTempo,
		mod:      mod,
		volume:   config.Settings.Volume,
		ctx:      ctx,
		cancel:   cancel,
	}
	config.Mixer.SetMasterVolume(c.volume.Main)
	return c
}

// LoadRef reads a .osu file, or wraps a bare audio file as a beatmap with
// no hit objects
func LoadRef(ref string) (*beatmap.Beatmap, error) {
	if strings.EqualFold(filepath.Ext(ref), ".osu") {
		return beatmap.Load(ref)
	}
	base := filepath.Base(ref)
	return &beatmap.Beatmap{
		Path:          ref,
		Folder:        filepath.Dir(ref),
		AudioFilename: base,
		Title:         strings.TrimSuffix(base, filepath.Ext(base)),
	}, nil
}

// Start runs the position poller and the mixer error drain
func (c *Controller) Start() {
	c.wg.Add(2)
	go c.pollPosition()
	go c.drainMixerErrors()
}

// Close cancels any load, tears down the current beatmap and stops loops
func (c *Controller) Close() error {
	c.cancel()

	c.mu.Lock()
	if c.loadCancel != nil {
		c.loadCancel()
	}
	pc := c.current
	c.current = nil
	c.mu.Unlock()

	if pc != nil {
		pc.close()
	}
	c.wg.Wait()
	return nil
}

// Subscribe returns a channel of events and a function to stop them
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

func (c *Controller) publish(e Event) {
	c.events.publish(e)
}

// Playlist returns the controller's playlist
func (c *Controller) Playlist() *Playlist {
	return c.playlist
}

// LoadAndPlay tears down the current beatmap and loads ref. A newer call
// cancels this one; a superseded load returns ErrLoadCancelled and never
// becomes current.
func (c *Controller) LoadAndPlay(ctx context.Context, ref string, autoPlay bool) error {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := uuid.NewString()

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return ErrLoadCancelled
	}
	if c.loadCancel != nil {
		c.loadCancel()
	}
	c.loadCancel = cancel
	c.loadID = id
	c.mu.Unlock()

	c.publish(Event{Type: EventPreLoadStarted, LoadID: id, Ref: ref})

	if err := c.loadSem.Acquire(loadCtx, 1); err != nil {
		return fmt.Errorf("%w: %s", ErrLoadCancelled, ref)
	}
	defer c.loadSem.Release(1)

	if !c.isLoad(loadCtx, id) {
		return fmt.Errorf("%w: %s", ErrLoadCancelled, ref)
	}

	c.teardown()

	pc, err := c.load(loadCtx, id, ref)
	if err != nil {
		if loadCtx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrLoadCancelled, ref)
		}
		log.Printf("Failed to load %s: %v", ref, err)
		c.publish(Event{Type: EventError, LoadID: id, Ref: ref, Err: err})
		return err
	}

	c.mu.Lock()
	if c.loadID != id || loadCtx.Err() != nil {
		c.mu.Unlock()
		pc.close()
		return fmt.Errorf("%w: %s", ErrLoadCancelled, ref)
	}
	c.current = pc
	c.status = channel.StatusReady
	c.loadCancel = nil
	rate, useTempo := c.rate, c.useTempo
	c.mu.Unlock()

	for _, ch := range pc.channels {
		ch.SetPlaybackRate(rate, useTempo)
		c.wg.Add(1)
		go c.watch(pc, ch)
	}

	log.Printf("Loaded %s (%s)", pc.beatmap.DisplayName(), id)
	c.publish(Event{
		Type:     EventLoadFinished,
		LoadID:   id,
		Ref:      ref,
		Title:    pc.beatmap.DisplayName(),
		Duration: pc.music.Duration(),
	})
	c.publish(Event{Type: EventPlayStatusChanged, LoadID: id, Status: channel.StatusReady})

	if autoPlay {
		return c.Play()
	}
	return nil
}

func (c *Controller) isLoad(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadID == id && ctx.Err() == nil
}

// teardown closes the current beatmap
func (c *Controller) teardown() {
	c.mu.Lock()
	pc := c.current
	c.current = nil
	c.status = channel.StatusUninitialized
	c.mu.Unlock()

	if pc != nil {
		pc.close()
		c.publish(Event{Type: EventPlayStatusChanged, LoadID: pc.id, Status: channel.StatusUninitialized})
	}
}

// load builds and initializes every channel for ref
func (c *Controller) load(ctx context.Context, id, ref string) (*playback, error) {
	c.publish(Event{Type: EventLoadStarted, LoadID: id, Ref: ref})

	bm, err := c.config.LoadBeatmap(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read beatmap: %w", err)
	}
	c.publish(Event{Type: EventMetaLoaded, LoadID: id, Ref: ref, Title: bm.DisplayName()})

	c.mu.Lock()
	folderChanged := c.folder != "" && c.folder != bm.Folder
	c.folder = bm.Folder
	volume, mod := c.volume, c.mod
	c.mu.Unlock()

	if folderChanged && c.config.Library != nil {
		c.config.Library.Cache().Clear()
	}

	pcCtx, pcCancel := context.WithCancel(c.ctx)
	pc := &playback{
		id:      id,
		ref:     ref,
		beatmap: bm,
		sem:     semaphore.NewWeighted(1),
		done:    make(map[string]bool),
		ctx:     pcCtx,
		cancel:  pcCancel,
	}

	music, err := c.loadMusic(ctx, id, bm, volume)
	if err != nil {
		pc.close()
		return nil, err
	}
	pc.music = music
	pc.channels = append(pc.channels, music)
	c.publish(Event{Type: EventMusicLoaded, LoadID: id, Ref: ref, Duration: music.Duration()})

	offset := c.config.Settings.OffsetFor(ref)
	hits := bm.HitSounds()
	if mod == ModNightCore {
		hits = append(hits, bm.NightcoreBeat(music.Duration())...)
	}

	hitCh := channel.NewEventChannel(channel.EventConfig{
		ID:            HitsoundChannel,
		Mixer:         c.config.Mixer,
		Samples:       c.config.Library,
		Folder:        bm.Folder,
		Elements:      shift(hits, offset),
		Volume:        volume.Hitsound,
		BalanceFactor: volume.BalanceFactor,
		MinDuration:   music.Duration(),
		Tick:          c.config.EventTick,
		Now:           c.config.Now,
	})
	pc.channels = append(pc.channels, hitCh)

	samples := bm.SampleTrack()
	if len(samples) > 0 {
		pc.channels = append(pc.channels, channel.NewEventChannel(channel.EventConfig{
			ID:          SampleChannel,
			Mixer:       c.config.Mixer,
			Samples:     c.config.Library,
			Folder:      bm.Folder,
			Elements:    shift(samples, offset),
			Volume:      volume.Sample,
			MinDuration: music.Duration(),
			Tick:        c.config.EventTick,
			Now:         c.config.Now,
		}))
	}

	if c.config.Library != nil {
		if err := c.config.Library.Prefetch(ctx, bm.Folder, sampleNames(hits, samples)); err != nil {
			pc.close()
			return nil, fmt.Errorf("failed to prefetch samples: %w", err)
		}
	}

	for _, ch := range pc.channels[1:] {
		if err := ch.Initialize(ctx); err != nil {
			pc.close()
			return nil, fmt.Errorf("failed to initialize %s: %w", ch.ID(), err)
		}
	}
	return pc, nil
}

// loadMusic initializes the music channel, substituting silence when the
// track cannot be played so hit-sounds still run
func (c *Controller) loadMusic(ctx context.Context, id string, bm *beatmap.Beatmap, volume config.Volume) (channel.Channel, error) {
	music := channel.NewStreamChannel(channel.StreamConfig{
		ID:      MusicChannel,
		Mixer:   c.config.Mixer,
		Path:    bm.AudioPath(),
		Decoder: c.config.Decoder,
		Volume:  volume.Music,
	})

	err := music.Initialize(ctx)
	if err == nil {
		return music, nil
	}
	music.Close()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Printf("Music unplayable, using blank track: %v", err)
	c.publish(Event{Type: EventError, LoadID: id, Ref: bm.Path, Err: err})

	blank := channel.NewStreamChannel(channel.StreamConfig{
		ID:     MusicChannel,
		Mixer:  c.config.Mixer,
		Buffer: audio.Silence(blankLength(bm), audio.Canonical),
		Volume: volume.Music,
	})
	if err := blank.Initialize(ctx); err != nil {
		blank.Close()
		return nil, err
	}
	return blank, nil
}

// blankLength covers every hit object and sample plus one second
func blankLength(bm *beatmap.Beatmap) time.Duration {
	end := bm.Length()
	for _, s := range bm.Samples {
		if s.Offset > end {
			end = s.Offset
		}
	}
	return end + time.Second
}

// sampleNames returns each distinct sample name once, in first-use order
func sampleNames(tracks ...[]channel.SoundElement) []string {
	seen := make(map[string]bool)
	var names []string
	for _, track := range tracks {
		for _, e := range track {
			if e.Sample == "" || seen[e.Sample] {
				continue
			}
			seen[e.Sample] = true
			names = append(names, e.Sample)
		}
	}
	return names
}

// shift moves elements by offset, keeping them at or after zero
func shift(elements []channel.SoundElement, offset time.Duration) []channel.SoundElement {
	if offset == 0 {
		return elements
	}
	out := make([]channel.SoundElement, len(elements))
	for i, e := range elements {
		e.Offset += offset
		if e.Offset < 0 {
			e.Offset = 0
		}
		out[i] = e
	}
	return out
}

// watch feeds channel completions into the completion counter
func (c *Controller) watch(pc *playback, ch channel.Channel) {
	defer c.wg.Done()

	for {
		select {
		case <-pc.ctx.Done():
			return
		case <-ch.Finished():
			c.channelFinished(pc, ch.ID())
		}
	}
}

// channelFinished raises PlayerFinished once every channel has finished
func (c *Controller) channelFinished(pc *playback, id string) {
	c.mu.Lock()
	if c.current != pc || pc.finished {
		c.mu.Unlock()
		return
	}
	pc.done[id] = true
	if len(pc.done) < len(pc.channels) {
		c.mu.Unlock()
		return
	}
	pc.finished = true
	c.status = channel.StatusFinished
	autoNext := c.config.Settings.Play.AutoNext
	c.mu.Unlock()

	log.Printf("Finished %s", pc.beatmap.DisplayName())
	c.publish(Event{Type: EventPlayStatusChanged, LoadID: pc.id, Status: channel.StatusFinished})
	c.publish(Event{Type: EventPlayerFinished, LoadID: pc.id, Ref: pc.ref, Duration: pc.music.Duration()})

	if autoNext && c.playlist.Index() >= 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			err := c.advance(c.ctx, c.playlist.Advance)
			if err != nil && !errors.Is(err, ErrLoadCancelled) && !errors.Is(err, ErrPlaylistEnd) {
				log.Printf("Auto-advance failed: %v", err)
			}
		}()
	}
}

func (c *Controller) resetCompletion(pc *playback) {
	c.mu.Lock()
	pc.done = make(map[string]bool)
	pc.finished = false
	c.mu.Unlock()
}

// transport runs fn on the current beatmap, one command at a time
func (c *Controller) transport(fn func(pc *playback) error) error {
	c.mu.Lock()
	pc := c.current
	c.mu.Unlock()

	if pc == nil {
		return ErrNothingLoaded
	}
	if err := pc.sem.Acquire(pc.ctx, 1); err != nil {
		return ErrNothingLoaded
	}
	defer pc.sem.Release(1)

	return fn(pc)
}

func (c *Controller) setStatus(pc *playback, s channel.Status) {
	c.mu.Lock()
	if c.current != pc || c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	c.publish(Event{Type: EventPlayStatusChanged, LoadID: pc.id, Status: s})
}

func (c *Controller) currentStatus() channel.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// forEach applies op to every channel and joins the errors
func forEach(pc *playback, op func(channel.Channel) error) error {
	var errs []error
	for _, ch := range pc.channels {
		if err := op(ch); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Play starts or resumes every channel. Playing while playing is a no-op.
func (c *Controller) Play() error {
	return c.transport(c.play)
}

func (c *Controller) play(pc *playback) error {
	switch c.currentStatus() {
	case channel.StatusPlaying:
		return nil
	case channel.StatusFinished:
		c.resetCompletion(pc)
	}

	err := forEach(pc, channel.Channel.Play)
	c.setStatus(pc, channel.StatusPlaying)
	return err
}

// Pause pauses every channel and keeps the position
func (c *Controller) Pause() error {
	return c.transport(func(pc *playback) error {
		if c.currentStatus() != channel.StatusPlaying {
			return nil
		}
		err := forEach(pc, channel.Channel.Pause)
		c.setStatus(pc, channel.StatusPaused)
		return err
	})
}

// Stop stops every channel and rewinds to zero
func (c *Controller) Stop() error {
	return c.transport(c.stop)
}

func (c *Controller) stop(pc *playback) error {
	err := forEach(pc, channel.Channel.Stop)
	c.resetCompletion(pc)
	c.setStatus(pc, channel.StatusStopped)
	c.publish(Event{Type: EventPositionUpdated, LoadID: pc.id, Position: 0, Duration: pc.music.Duration()})
	return err
}

// Replay restarts from zero and plays
func (c *Controller) Replay() error {
	return c.transport(func(pc *playback) error {
		if err := c.stop(pc); err != nil {
			return err
		}
		return c.play(pc)
	})
}

// SkipTo pauses, repositions every channel and resumes only if playback
// was running before
func (c *Controller) SkipTo(pos time.Duration) error {
	return c.transport(func(pc *playback) error {
		prior := c.currentStatus()

		errs := []error{forEach(pc, channel.Channel.Pause)}
		errs = append(errs, forEach(pc, func(ch channel.Channel) error { return ch.SkipTo(pos) }))
		c.resetCompletion(pc)

		switch prior {
		case channel.StatusPlaying:
			errs = append(errs, forEach(pc, channel.Channel.Play))
		case channel.StatusFinished:
			c.setStatus(pc, channel.StatusPaused)
		}

		c.publish(Event{Type: EventPositionUpdated, LoadID: pc.id, Position: pc.music.Position(), Duration: pc.music.Duration()})
		return errors.Join(errs...)
	})
}

// Position returns the music position
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	pc := c.current
	c.mu.Unlock()
	if pc == nil {
		return 0
	}
	return pc.music.Position()
}

// Duration returns the music duration
func (c *Controller) Duration() time.Duration {
	c.mu.Lock()
	pc := c.current
	c.mu.Unlock()
	if pc == nil {
		return 0
	}
	return pc.music.Duration()
}

// Status returns the transport status
func (c *Controller) Status() channel.Status {
	return c.currentStatus()
}

// SetPlaybackRate changes speed on every channel; useTempo keeps pitch
func (c *Controller) SetPlaybackRate(rate float64, useTempo bool) {
	s := stretch.ForPlaybackRate(rate, useTempo)
	rate = s.Speed()

	c.mu.Lock()
	c.rate = rate
	c.useTempo = useTempo
	pc := c.current
	c.mu.Unlock()

	if pc != nil {
		for _, ch := range pc.channels {
			ch.SetPlaybackRate(rate, useTempo)
		}
	}
	c.publish(Event{Type: EventRateChanged, Rate: rate, UseTempo: useTempo})
}

// SetPlayMod applies a modifier's rate. The nightcore beat follows the
// modifier on the next load.
func (c *Controller) SetPlayMod(mod PlayMod) {
	c.mu.Lock()
	c.mod = mod
	c.mu.Unlock()

	rate, useTempo := mod.Playback()
	c.SetPlaybackRate(rate, useTempo)
}

// SetVolume sets one level of the volume model
func (c *Controller) SetVolume(kind VolumeKind, value float32) error {
	if value != value || value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	c.mu.Lock()
	var target string
	switch kind {
	case VolumeMain:
		c.volume.Main = value
	case VolumeMusic:
		c.volume.Music = value
		target = MusicChannel
	case VolumeHitsound:
		c.volume.Hitsound = value
		target = HitsoundChannel
	case VolumeSample:
		c.volume.Sample = value
		target = SampleChannel
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown volume %q", kind)
	}
	pc := c.current
	c.mu.Unlock()

	if kind == VolumeMain {
		c.config.Mixer.SetMasterVolume(value)
	} else if pc != nil {
		if ch := pc.channel(target); ch != nil {
			ch.SetVolume(value)
		}
	}
	c.publish(Event{Type: EventVolumeChanged})
	return nil
}

// SetBalance sets the output stereo balance
func (c *Controller) SetBalance(value float32) {
	c.config.Mixer.SetBalance(value)
	c.publish(Event{Type: EventVolumeChanged})
}

// State returns a snapshot for display
func (c *Controller) State() State {
	c.mu.Lock()
	s := State{
		Status:   c.status,
		Rate:     c.rate,
		UseTempo: c.useTempo,
		Mod:      c.mod,
		Volume:   c.volume,
	}
	s.DeviceError = c.deviceErr
	pc := c.current
	c.mu.Unlock()

	s.Balance = c.config.Mixer.Balance()
	s.PlaylistIndex = c.playlist.Index()
	s.PlaylistLen = c.playlist.Len()
	s.PlaylistMode = c.playlist.Mode()
	if pc != nil {
		s.LoadID = pc.id
		s.Ref = pc.ref
		s.Title = pc.beatmap.DisplayName()
		s.Position = pc.music.Position()
		s.Duration = pc.music.Duration()
	}
	return s
}

// SetPlaylist replaces the playlist
func (c *Controller) SetPlaylist(items []string) {
	c.playlist.Set(items)
}

// ReportDeviceError records an audio device fault and raises
// EventDeviceError. Playback continues on whatever output is attached.
func (c *Controller) ReportDeviceError(err error) {
	c.mu.Lock()
	c.deviceErr = err
	c.mu.Unlock()

	log.Printf("Audio device error: %v", err)
	c.publish(Event{Type: EventDeviceError, Err: err})
}

// SetPlaylistMode changes how the playlist orders and repeats items
func (c *Controller) SetPlaylistMode(mode PlaylistMode) {
	c.playlist.SetMode(mode)
	log.Printf("Playlist mode set to %s", mode)
}

// Next loads the next playlist item, skipping items that fail to load
func (c *Controller) Next(ctx context.Context) error {
	return c.advance(ctx, c.playlist.Next)
}

// Previous loads the previous playlist item
func (c *Controller) Previous(ctx context.Context) error {
	return c.advance(ctx, c.playlist.Previous)
}

// PlayIndex loads playlist item i
func (c *Controller) PlayIndex(ctx context.Context, i int) error {
	return c.advance(ctx, func() (string, bool) { return c.playlist.Select(i) })
}

// Open loads ref on request. A ref in the playlist becomes its current
// item. When the load fails the playlist moves on the way it does for a
// failed item, and the load error is still returned.
func (c *Controller) Open(ctx context.Context, ref string, autoPlay bool) error {
	if i := c.playlist.IndexOf(ref); i >= 0 {
		c.playlist.Select(i)
	}

	err := c.LoadAndPlay(ctx, ref, autoPlay)
	if err == nil || errors.Is(err, ErrLoadCancelled) || c.playlist.Len() == 0 {
		return err
	}

	if aerr := c.advance(ctx, c.playlist.Next); aerr != nil && !errors.Is(aerr, ErrPlaylistEnd) && !errors.Is(aerr, ErrLoadCancelled) {
		log.Printf("Advance after failed load of %s: %v", ref, aerr)
	}
	return err
}

// advance loads the item chosen by step. Load failures move forward until
// an item plays or the list is exhausted.
func (c *Controller) advance(ctx context.Context, step func() (string, bool)) error {
	autoPlay := c.config.Settings.Play.AutoPlay
	for attempts := 0; attempts <= c.playlist.Len(); attempts++ {
		ref, ok := step()
		if !ok {
			return ErrPlaylistEnd
		}

		err := c.LoadAndPlay(ctx, ref, autoPlay)
		if err == nil || errors.Is(err, ErrLoadCancelled) {
			return err
		}
		log.Printf("Skipping %s: %v", ref, err)
		step = c.playlist.Next
	}
	return ErrPlaylistEnd
}
