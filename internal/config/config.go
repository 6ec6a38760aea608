// ABOUTME: User settings loaded from YAML
// ABOUTME: Volumes, output, play modifier, resample quality and per-map offsets
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Volume holds the mix levels, each 0..1
type Volume struct {
	Main          float32 `yaml:"main"`
	Music         float32 `yaml:"music"`
	Hitsound      float32 `yaml:"hitsound"`
	Sample        float32 `yaml:"sample"`
	BalanceFactor float32 `yaml:"balance_factor"`
}

// Output selects and tunes the audio device
type Output struct {
	Device    string `yaml:"device"`
	Exclusive bool   `yaml:"exclusive"`
	BufferMs  int    `yaml:"buffer_ms"`
	Headless  bool   `yaml:"headless"`
}

// Play holds playback behaviour
type Play struct {
	Mod          string `yaml:"mod"`
	AutoPlay     bool   `yaml:"autoplay"`
	AutoNext     bool   `yaml:"autonext"`
	PlaylistMode string `yaml:"playlist_mode"`
}

// Remote configures the control server
type Remote struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
	MDNS bool   `yaml:"mdns"`
}

// Settings is the read-only user configuration
type Settings struct {
	Volume         Volume         `yaml:"volume"`
	Output         Output         `yaml:"output"`
	Play           Play           `yaml:"play"`
	Remote         Remote         `yaml:"remote"`
	Resample       string         `yaml:"resample_quality"`
	DefaultSamples string         `yaml:"default_samples"`
	Offsets        map[string]int `yaml:"offsets"`
}

// DefaultSettings returns a fully populated configuration
func DefaultSettings() Settings {
	return Settings{
		Volume: Volume{
			Main:          0.8,
			Music:         1,
			Hitsound:      1,
			Sample:        1,
			BalanceFactor: 0.35,
		},
		Output: Output{BufferMs: 40},
		Play: Play{
			Mod:          "none",
			AutoPlay:     true,
			AutoNext:     true,
			PlaylistMode: "normal",
		},
		Remote: Remote{
			Port: 8927,
			Name: hostname(),
			MDNS: true,
		},
		Resample: "medium",
		Offsets:  map[string]int{},
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "beatmix"
	}
	return name
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Config %s not found, using defaults", path)
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if s.Offsets == nil {
		s.Offsets = map[string]int{}
	}
	s.normalize()
	return s, nil
}

// normalize clamps values into range
func (s *Settings) normalize() {
	for _, v := range []*float32{&s.Volume.Main, &s.Volume.Music, &s.Volume.Hitsound, &s.Volume.Sample, &s.Volume.BalanceFactor} {
		if *v < 0 {
			*v = 0
		}
		if *v > 1 {
			*v = 1
		}
	}
	if s.Output.BufferMs <= 0 {
		s.Output.BufferMs = 40
	}
	if s.Play.Mod == "" {
		s.Play.Mod = "none"
	}
	if s.Play.PlaylistMode == "" {
		s.Play.PlaylistMode = "normal"
	}
}

// BufferDuration is the output buffer length
func (s Settings) BufferDuration() time.Duration {
	return time.Duration(s.Output.BufferMs) * time.Millisecond
}

// OffsetFor returns the offset configured for a beatmap file
func (s Settings) OffsetFor(beatmapPath string) time.Duration {
	ms, ok := s.Offsets[filepath.Base(beatmapPath)]
	if !ok {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
