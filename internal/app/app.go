// ABOUTME: Player application orchestration
// ABOUTME: Builds the audio pipeline and wires controller, remote, discovery and UI
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/beatmix/beatmix/internal/cache"
	"github.com/beatmix/beatmix/internal/channel"
	"github.com/beatmix/beatmix/internal/config"
	"github.com/beatmix/beatmix/internal/discovery"
	"github.com/beatmix/beatmix/internal/player"
	"github.com/beatmix/beatmix/internal/remote"
	"github.com/beatmix/beatmix/internal/ui"
	"github.com/beatmix/beatmix/internal/version"
	"github.com/beatmix/beatmix/pkg/audio"
	"github.com/beatmix/beatmix/pkg/audio/decode"
	"github.com/beatmix/beatmix/pkg/audio/mixer"
	"github.com/beatmix/beatmix/pkg/audio/output"
	"github.com/beatmix/beatmix/pkg/audio/resample"
)

// Config holds application configuration
type Config struct {
	Settings config.Settings

	// Refs is the initial playlist of .osu or audio files
	Refs []string

	// RemoteAddr enables the control server when set, e.g. ":8927"
	RemoteAddr string

	UseTUI bool
}

// App owns every long-lived component
type App struct {
	config Config

	decoder    *decode.Service
	cache      *cache.Cache
	library    *cache.Library
	mixer      *mixer.Mixer
	output     output.Output
	controller *player.Controller
	remote     *remote.Server
	discovery  *discovery.Manager
	tui        *ui.TUI

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the application. Nothing runs until Start.
func New(config Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{config: config, ctx: ctx, cancel: cancel}
}

// Start builds the pipeline, opens the device and starts serving
func (a *App) Start() error {
	s := a.config.Settings

	a.decoder = decode.NewService(decode.Config{
		Target:  audio.Canonical,
		Quality: resample.ParseQuality(s.Resample),
	})
	a.cache = cache.New(a.decoder)
	a.library = cache.NewLibrary(a.cache, s.DefaultSamples)

	a.mixer = mixer.New(mixer.Config{Format: audio.Canonical})
	a.mixer.Start()

	out, fallback, err := openOutput(s, a.mixer)
	if err != nil {
		a.mixer.Close()
		return err
	}
	a.output = out

	a.controller = player.New(player.Config{
		Mixer:    a.mixer,
		Decoder:  a.decoder,
		Library:  a.library,
		Settings: s,
	})
	a.controller.Start()
	if fallback != nil {
		a.controller.ReportDeviceError(fallback)
	}

	events, unsubscribe := a.controller.Subscribe(64)
	go func() {
		defer unsubscribe()
		syncDevice(a.ctx, a.output, events, a.controller.ReportDeviceError)
	}()

	if a.config.RemoteAddr != "" {
		a.remote = remote.New(remote.Config{
			Addr:   a.config.RemoteAddr,
			Name:   s.Remote.Name,
			Player: a.controller,
		})
		if err := a.remote.Start(); err != nil {
			a.Stop()
			return fmt.Errorf("failed to start remote control: %w", err)
		}

		if s.Remote.MDNS {
			a.advertise(s.Remote.Name)
		}
	}

	log.Printf("%s started (output %T, buffer %v)", version.String(), a.output, s.BufferDuration())

	if len(a.config.Refs) > 0 {
		a.controller.SetPlaylist(a.config.Refs)
		go func() {
			if err := a.controller.Next(a.ctx); err != nil && !errors.Is(err, player.ErrLoadCancelled) {
				log.Printf("Playlist start failed: %v", err)
			}
		}()
	}
	return nil
}

// newDevice creates the system audio output
var newDevice = func(cfg output.Config) output.Output {
	return output.NewOto(cfg)
}

// openOutput opens the configured device, falling back to the null sink
// when no device can be opened. fallback is the device error that caused
// the fallback, if any.
func openOutput(s config.Settings, src *mixer.Mixer) (out output.Output, fallback error, err error) {
	cfg := output.Config{BufferDuration: s.BufferDuration()}

	if !s.Output.Headless {
		dev := newDevice(cfg)
		err := dev.Open(audio.Canonical, src)
		if err == nil {
			return dev, nil, nil
		}
		if !errors.Is(err, output.ErrDeviceUnavailable) {
			return nil, nil, fmt.Errorf("failed to open output: %w", err)
		}
		log.Printf("Audio device unavailable, playing silently: %v", err)
		fallback = err
	}

	null := output.NewNull(cfg)
	if err := null.Open(audio.Canonical, src); err != nil {
		return nil, fallback, fmt.Errorf("failed to open null output: %w", err)
	}
	return null, fallback, nil
}

// syncDevice pauses the device while the transport is not playing and
// forwards device faults to report. It returns when ctx ends or events
// closes.
func syncDevice(ctx context.Context, out output.Output, events <-chan player.Event, report func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-out.Errors():
			report(err)
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type != player.EventPlayStatusChanged {
				continue
			}

			var err error
			switch e.Status {
			case channel.StatusPlaying:
				err = out.Resume()
			case channel.StatusPaused, channel.StatusStopped, channel.StatusFinished:
				err = out.Pause()
			}
			if err != nil {
				log.Printf("Failed to follow transport on output: %v", err)
			}
		}
	}
}

// advertise announces the control server on the local network
func (a *App) advertise(name string) {
	port := 0
	if tcp, ok := a.remote.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	a.discovery = discovery.NewManager(discovery.Config{
		ServiceName: name,
		Port:        port,
		Path:        remote.Path,
	})
	if err := a.discovery.Advertise(); err != nil {
		log.Printf("Failed to start mDNS advertisement: %v", err)
		a.discovery = nil
	}
}

// Run blocks until ctx ends or the TUI quits
func (a *App) Run(ctx context.Context) error {
	if !a.config.UseTUI {
		select {
		case <-ctx.Done():
		case <-a.ctx.Done():
		}
		return nil
	}

	a.tui = ui.New(a.controller)
	events, unsubscribe := a.controller.Subscribe(256)
	defer unsubscribe()

	go func() {
		select {
		case <-ctx.Done():
			a.tui.Stop()
		case <-a.ctx.Done():
		}
	}()
	if a.remote != nil {
		go a.reportRemotes()
	}

	err := a.tui.Run(events)
	a.cancel()
	return err
}

// reportRemotes keeps the TUI's remote count current
func (a *App) reportRemotes() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if n := a.remote.ClientCount(); n != last {
				a.tui.SetRemotes(n)
				last = n
			}
		}
	}
}

// Controller returns the playback controller
func (a *App) Controller() *player.Controller {
	return a.controller
}

// RemoteAddr returns the control server address, or nil
func (a *App) RemoteAddr() net.Addr {
	if a.remote == nil {
		return nil
	}
	return a.remote.Addr()
}

// Stop shuts every component down in reverse order
func (a *App) Stop() {
	a.cancel()

	if a.discovery != nil {
		a.discovery.Stop()
	}
	if a.remote != nil {
		a.remote.Stop()
	}
	if a.controller != nil {
		a.controller.Close()
	}
	if a.output != nil {
		if err := a.output.Close(); err != nil {
			log.Printf("Error closing output: %v", err)
		}
	}
	if a.mixer != nil {
		a.mixer.Close()
	}

	if a.cache != nil {
		st := a.cache.Stats()
		log.Printf("Stopped; %d decodes, %d cached samples", st.Decodes, st.Entries+st.Defaults)
	}
}
