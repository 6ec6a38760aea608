// ABOUTME: Converts beatmap content into timed sound elements
// ABOUTME: Resolves hit-sound banks, storyboard samples and the nightcore beat
package beatmap

import (
	"fmt"
	"time"

	"github.com/beatmix/beatmix/internal/channel"
)

// playfieldCenter is half the osu! playfield width
const playfieldCenter = 256

// Force-track ids for the nightcore beat; each instrument cuts itself off
const (
	trackKick = iota + 1
	trackClap
	trackHat
	trackFinish
)

// HitSounds returns the hit-sound elements of every hit object in time order
func (b *Beatmap) HitSounds() []channel.SoundElement {
	var out []channel.SoundElement
	for _, h := range b.HitObjects {
		switch {
		case h.Type&TypeSlider != 0:
			slide := b.slideDuration(h)
			for edge := 0; edge <= h.Slides; edge++ {
				sound := h.HitSound
				if edge < len(h.EdgeSounds) {
					sound = h.EdgeSounds[edge]
				}
				sample := h.Sample
				if edge < len(h.EdgeSets) {
					sample.NormalSet = h.EdgeSets[edge].Normal
					sample.AdditionSet = h.EdgeSets[edge].Addition
				}
				out = append(out, b.soundsAt(h.Time+slide*time.Duration(edge), h.X, sound, sample)...)
			}
		case h.Type&TypeSpinner != 0:
			out = append(out, b.soundsAt(h.EndTime, playfieldCenter, h.HitSound, h.Sample)...)
		default:
			out = append(out, b.soundsAt(h.Time, h.X, h.HitSound, h.Sample)...)
		}
	}
	return out
}

// soundsAt expands one hit-sound trigger into sample elements
func (b *Beatmap) soundsAt(t time.Duration, x, sound int, hs HitSample) []channel.SoundElement {
	tp := b.TimingAt(t)

	normal := hs.NormalSet
	if normal == SampleSetAuto {
		normal = tp.SampleSet
	}
	if normal == SampleSetAuto {
		normal = b.SampleSet
	}
	if normal == SampleSetAuto {
		normal = SampleSetNormal
	}
	addition := hs.AdditionSet
	if addition == SampleSetAuto {
		addition = normal
	}

	index := hs.Index
	if index == 0 {
		index = tp.SampleIndex
	}
	volume := hs.Volume
	if volume == 0 {
		volume = tp.Volume
	}

	base := channel.SoundElement{
		Offset:  t,
		Volume:  float32(volume) / 100,
		Balance: balanceForX(x),
	}

	if hs.Filename != "" {
		base.Sample = hs.Filename
		return []channel.SoundElement{base}
	}

	out := make([]channel.SoundElement, 0, 4)
	add := func(set SampleSet, name string) {
		e := base
		e.Sample = sampleName(set, name, index)
		out = append(out, e)
	}

	add(normal, "normal")
	if sound&SoundWhistle != 0 {
		add(addition, "whistle")
	}
	if sound&SoundFinish != 0 {
		add(addition, "finish")
	}
	if sound&SoundClap != 0 {
		add(addition, "clap")
	}
	return out
}

// sampleName builds names like "soft-hitclap2". The extension is left to
// path probing.
func sampleName(set SampleSet, sound string, index int) string {
	if index > 1 {
		return fmt.Sprintf("%s-hit%s%d", set, sound, index)
	}
	return fmt.Sprintf("%s-hit%s", set, sound)
}

func balanceForX(x int) float32 {
	b := float32(x-playfieldCenter) / playfieldCenter
	if b < -1 {
		return -1
	}
	if b > 1 {
		return 1
	}
	return b
}

// SampleTrack returns the storyboard sample events
func (b *Beatmap) SampleTrack() []channel.SoundElement {
	out := make([]channel.SoundElement, 0, len(b.Samples))
	for _, s := range b.Samples {
		out = append(out, channel.SoundElement{
			Offset: s.Offset,
			Sample: s.Path,
			Volume: float32(s.Volume) / 100,
		})
	}
	return out
}

// NightcoreBeat tiles the nightcore kick, clap, hat and finish samples over
// every uninherited timing section up to end
func (b *Beatmap) NightcoreBeat(end time.Duration) []channel.SoundElement {
	var sections []TimingPoint
	for _, tp := range b.TimingPoints {
		if tp.Uninherited && tp.BeatLength >= MinBeatLength && tp.BeatLength <= MaxBeatLength {
			sections = append(sections, tp)
		}
	}

	var out []channel.SoundElement
	for i, tp := range sections {
		stop := end
		if i+1 < len(sections) && sections[i+1].Offset < stop {
			stop = sections[i+1].Offset
		}

		beat := time.Duration(tp.BeatLength * float64(time.Millisecond))
		volume := float32(tp.Volume) / 100
		for k := 0; ; k++ {
			t := tp.Offset + beat*time.Duration(k)
			if t >= stop {
				break
			}
			pos := k % tp.Meter
			bar := k / tp.Meter

			if pos == 0 && bar%4 == 0 && k > 0 {
				out = append(out, channel.SoundElement{Offset: t, Sample: "nightcore-finish", Volume: volume, Track: trackFinish})
			}
			sample, track := "nightcore-kick", trackKick
			if pos%2 == 1 {
				sample, track = "nightcore-clap", trackClap
			}
			out = append(out, channel.SoundElement{Offset: t, Sample: sample, Volume: volume, Track: track})

			if half := t + beat/2; half < stop {
				out = append(out, channel.SoundElement{Offset: half, Sample: "nightcore-hat", Volume: volume, Track: trackHat})
			}
		}
	}
	return out
}
