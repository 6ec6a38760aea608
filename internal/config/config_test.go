// ABOUTME: Tests for settings loading
// ABOUTME: Covers defaults, partial files, clamping and per-map offsets
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beatmix.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := DefaultSettings()
	if s.Volume != want.Volume || s.Play != want.Play || s.Resample != want.Resample {
		t.Errorf("settings = %+v, want defaults", s)
	}

	s, err = Load("")
	if err != nil || s.Output.BufferMs != 40 {
		t.Errorf("Load(\"\") = %+v, %v", s, err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
volume:
  main: 0.5
  hitsound: 2
play:
  mod: nc
  playlist_mode: loop_random
offsets:
  "xi - Blue Zenith (Asphyxia) [FOUR DIMENSIONS].osu": -25
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Volume.Main != 0.5 {
		t.Errorf("Main = %v, want 0.5", s.Volume.Main)
	}
	if s.Volume.Hitsound != 1 {
		t.Errorf("Hitsound = %v, want clamped to 1", s.Volume.Hitsound)
	}
	if s.Volume.Music != 1 {
		t.Errorf("Music = %v, want default 1", s.Volume.Music)
	}
	if s.Play.Mod != "nc" || !s.Play.AutoPlay || s.Play.PlaylistMode != "loop_random" {
		t.Errorf("Play = %+v", s.Play)
	}

	got := s.OffsetFor("/songs/1/xi - Blue Zenith (Asphyxia) [FOUR DIMENSIONS].osu")
	if got != -25*time.Millisecond {
		t.Errorf("OffsetFor = %v, want -25ms", got)
	}
	if s.OffsetFor("/songs/other.osu") != 0 {
		t.Error("unknown map should have zero offset")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "volume: [unclosed")
	s, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if s.Volume != DefaultSettings().Volume {
		t.Error("failed load should still return defaults")
	}
}

func TestBufferDuration(t *testing.T) {
	s := DefaultSettings()
	s.Output.BufferMs = 25
	if got := s.BufferDuration(); got != 25*time.Millisecond {
		t.Errorf("BufferDuration = %v, want 25ms", got)
	}
}
