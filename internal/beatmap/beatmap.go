// ABOUTME: Minimal .osu beatmap reader
// ABOUTME: Parses the sections the player needs: audio, timing, hit objects and samples
package beatmap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FormatError reports malformed beatmap content
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("beatmap line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("beatmap %s line %d: %s", e.Path, e.Line, e.Msg)
}

// SampleSet is a hit-sound bank
type SampleSet int

const (
	SampleSetAuto SampleSet = iota
	SampleSetNormal
	SampleSetSoft
	SampleSetDrum
)

func (s SampleSet) String() string {
	switch s {
	case SampleSetNormal:
		return "normal"
	case SampleSetSoft:
		return "soft"
	case SampleSetDrum:
		return "drum"
	default:
		return "auto"
	}
}

func parseSampleSetName(name string) SampleSet {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "normal":
		return SampleSetNormal
	case "soft":
		return SampleSetSoft
	case "drum":
		return SampleSetDrum
	default:
		return SampleSetAuto
	}
}

// Hit object type bits
const (
	TypeCircle  = 1
	TypeSlider  = 2
	TypeSpinner = 8
	TypeHold    = 128
)

// Hit-sound flag bits
const (
	SoundNormal  = 1
	SoundWhistle = 2
	SoundFinish  = 4
	SoundClap    = 8
)

// Bounds on values that drive element expansion. Content outside them is
// rejected as malformed.
const (
	MinBeatLength = 6.0
	MaxBeatLength = 60000.0
	MaxSlides     = 1000
)

// TimingPoint is one line of [TimingPoints]
type TimingPoint struct {
	Offset      time.Duration
	BeatLength  float64
	Meter       int
	SampleSet   SampleSet
	SampleIndex int
	Volume      int
	Uninherited bool
}

// HitSample is the trailing sample override of a hit object
type HitSample struct {
	NormalSet   SampleSet
	AdditionSet SampleSet
	Index       int
	Volume      int
	Filename    string
}

// EdgeSet is the bank pair of one slider edge
type EdgeSet struct {
	Normal   SampleSet
	Addition SampleSet
}

// HitObject is one line of [HitObjects]
type HitObject struct {
	X, Y     int
	Time     time.Duration
	Type     int
	HitSound int
	EndTime  time.Duration

	// Slider fields
	Slides     int
	Length     float64
	EdgeSounds []int
	EdgeSets   []EdgeSet

	Sample HitSample
}

// StoryboardSample is a Sample event
type StoryboardSample struct {
	Offset time.Duration
	Layer  int
	Path   string
	Volume int
}

// Beatmap holds what playback needs from a .osu file
type Beatmap struct {
	Path   string
	Folder string

	AudioFilename string
	AudioLeadIn   time.Duration
	SampleSet     SampleSet
	Mode          int

	Title   string
	Artist  string
	Creator string
	Version string

	SliderMultiplier float64

	TimingPoints []TimingPoint
	HitObjects   []HitObject
	Samples      []StoryboardSample
}

// Load reads and parses a .osu file
func Load(path string) (*Beatmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open beatmap: %w", err)
	}
	defer f.Close()

	b, err := Parse(f)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Path = path
		}
		return nil, err
	}
	b.Path = path
	b.Folder = filepath.Dir(path)
	return b, nil
}

// Parse reads .osu content. Unknown sections and keys are ignored.
func Parse(r io.Reader) (*Beatmap, error) {
	b := &Beatmap{
		SampleSet:        SampleSetNormal,
		SliderMultiplier: 1.4,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	headerSeen := false
	section := ""

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if !headerSeen {
			if !strings.HasPrefix(line, "osu file format v") {
				return nil, &FormatError{Line: lineNo, Msg: "missing osu file format header"}
			}
			headerSeen = true
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}

		var err error
		switch section {
		case "General", "Metadata", "Difficulty":
			err = b.parseKeyValue(section, line)
		case "Events":
			err = b.parseEvent(line)
		case "TimingPoints":
			err = b.parseTimingPoint(line)
		case "HitObjects":
			err = b.parseHitObject(line)
		}
		if err != nil {
			return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("[%s] %v", section, err)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read beatmap: %w", err)
	}
	if !headerSeen {
		return nil, &FormatError{Line: lineNo, Msg: "empty beatmap"}
	}

	return b, nil
}

func (b *Beatmap) parseKeyValue(section, line string) error {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return fmt.Errorf("expected key:value, got %q", line)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch section + "." + key {
	case "General.AudioFilename":
		b.AudioFilename = value
	case "General.AudioLeadIn":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("bad AudioLeadIn: %w", err)
		}
		b.AudioLeadIn = time.Duration(ms) * time.Millisecond
	case "General.SampleSet":
		if s := parseSampleSetName(value); s != SampleSetAuto {
			b.SampleSet = s
		}
	case "General.Mode":
		mode, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("bad Mode: %w", err)
		}
		b.Mode = mode
	case "Metadata.Title":
		b.Title = value
	case "Metadata.Artist":
		b.Artist = value
	case "Metadata.Creator":
		b.Creator = value
	case "Metadata.Version":
		b.Version = value
	case "Difficulty.SliderMultiplier":
		sm, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("bad SliderMultiplier: %w", err)
		}
		if sm > 0 {
			b.SliderMultiplier = sm
		}
	}
	return nil
}

// parseEvent keeps only Sample events: Sample,time,layer,"path",volume
func (b *Beatmap) parseEvent(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) < 4 || (fields[0] != "Sample" && fields[0] != "5") {
		return nil
	}

	offset, err := parseMillis(fields[1])
	if err != nil {
		return fmt.Errorf("bad sample time: %w", err)
	}
	layer, _ := strconv.Atoi(strings.TrimSpace(fields[2]))
	volume := 100
	if len(fields) > 4 {
		if v, err := strconv.Atoi(strings.TrimSpace(fields[4])); err == nil {
			volume = v
		}
	}

	path := strings.Trim(strings.TrimSpace(fields[3]), `"`)
	path = strings.ReplaceAll(path, `\`, "/")

	b.Samples = append(b.Samples, StoryboardSample{
		Offset: offset,
		Layer:  layer,
		Path:   path,
		Volume: volume,
	})
	return nil
}

// parseTimingPoint reads time,beatLength,meter,sampleSet,sampleIndex,volume,uninherited,effects
func (b *Beatmap) parseTimingPoint(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return fmt.Errorf("expected at least 2 fields, got %d", len(fields))
	}

	offset, err := parseMillis(fields[0])
	if err != nil {
		return fmt.Errorf("bad time: %w", err)
	}
	beatLength, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return fmt.Errorf("bad beat length: %w", err)
	}

	tp := TimingPoint{
		Offset:      offset,
		BeatLength:  beatLength,
		Meter:       4,
		Volume:      100,
		Uninherited: beatLength > 0,
	}

	ints := []*int{&tp.Meter, nil, &tp.SampleIndex, &tp.Volume}
	for i, dst := range ints {
		idx := i + 2
		if idx >= len(fields) || dst == nil {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(fields[idx]))
		if err != nil {
			return fmt.Errorf("bad field %d: %w", idx, err)
		}
		*dst = v
	}
	if len(fields) > 3 {
		set, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			return fmt.Errorf("bad sample set: %w", err)
		}
		tp.SampleSet = SampleSet(set)
	}
	if len(fields) > 6 {
		tp.Uninherited = strings.TrimSpace(fields[6]) == "1"
	}
	if tp.Meter <= 0 {
		tp.Meter = 4
	}
	if tp.Uninherited && !(beatLength >= MinBeatLength && beatLength <= MaxBeatLength) {
		return fmt.Errorf("beat length %v outside [%v, %v] ms", beatLength, MinBeatLength, MaxBeatLength)
	}

	b.TimingPoints = append(b.TimingPoints, tp)
	return nil
}

// parseHitObject reads x,y,time,type,hitSound,objectParams...,hitSample
func (b *Beatmap) parseHitObject(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}

	var nums [5]int
	for i := 0; i < 5; i++ {
		if i == 2 {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return fmt.Errorf("bad field %d: %w", i, err)
		}
		nums[i] = v
	}
	t, err := parseMillis(fields[2])
	if err != nil {
		return fmt.Errorf("bad time: %w", err)
	}

	h := HitObject{
		X:        nums[0],
		Y:        nums[1],
		Time:     t,
		Type:     nums[3],
		HitSound: nums[4],
		EndTime:  t,
	}
	rest := fields[5:]

	switch {
	case h.Type&TypeSlider != 0:
		if len(rest) < 3 {
			return fmt.Errorf("slider needs curve, slides and length")
		}
		if h.Slides, err = strconv.Atoi(strings.TrimSpace(rest[1])); err != nil {
			return fmt.Errorf("bad slides: %w", err)
		}
		if h.Slides < 1 {
			h.Slides = 1
		}
		if h.Slides > MaxSlides {
			return fmt.Errorf("slides %d exceeds %d", h.Slides, MaxSlides)
		}
		if h.Length, err = strconv.ParseFloat(strings.TrimSpace(rest[2]), 64); err != nil {
			return fmt.Errorf("bad slider length: %w", err)
		}
		if len(rest) > 3 && rest[3] != "" {
			for _, s := range strings.Split(rest[3], "|") {
				v, err := strconv.Atoi(s)
				if err != nil {
					return fmt.Errorf("bad edge sound: %w", err)
				}
				h.EdgeSounds = append(h.EdgeSounds, v)
			}
		}
		if len(rest) > 4 && rest[4] != "" {
			for _, s := range strings.Split(rest[4], "|") {
				n, a, _ := strings.Cut(s, ":")
				ns, _ := strconv.Atoi(n)
				as, _ := strconv.Atoi(a)
				h.EdgeSets = append(h.EdgeSets, EdgeSet{Normal: SampleSet(ns), Addition: SampleSet(as)})
			}
		}
		if len(rest) > 5 {
			h.Sample = parseHitSample(rest[5])
		}
		h.EndTime = h.Time + b.slideDuration(h)*time.Duration(h.Slides)

	case h.Type&TypeSpinner != 0:
		if len(rest) < 1 {
			return fmt.Errorf("spinner needs end time")
		}
		if h.EndTime, err = parseMillis(rest[0]); err != nil {
			return fmt.Errorf("bad spinner end: %w", err)
		}
		if len(rest) > 1 {
			h.Sample = parseHitSample(rest[1])
		}

	case h.Type&TypeHold != 0:
		if len(rest) > 0 {
			end, sample, _ := strings.Cut(rest[0], ":")
			if h.EndTime, err = parseMillis(end); err != nil {
				return fmt.Errorf("bad hold end: %w", err)
			}
			h.Sample = parseHitSample(sample)
		}

	default:
		if len(rest) > 0 {
			h.Sample = parseHitSample(rest[0])
		}
	}

	b.HitObjects = append(b.HitObjects, h)
	return nil
}

// parseHitSample reads normalSet:additionSet:index:volume:filename. Missing
// or malformed parts keep their defaults.
func parseHitSample(s string) HitSample {
	var hs HitSample
	parts := strings.SplitN(strings.TrimSpace(s), ":", 5)
	ints := []*int{(*int)(&hs.NormalSet), (*int)(&hs.AdditionSet), &hs.Index, &hs.Volume}
	for i, dst := range ints {
		if i < len(parts) {
			if v, err := strconv.Atoi(parts[i]); err == nil {
				*dst = v
			}
		}
	}
	if len(parts) == 5 {
		hs.Filename = parts[4]
	}
	return hs
}

func parseMillis(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(v * float64(time.Millisecond)), nil
}

// TimingAt returns the timing point in effect at t. Points before the first
// one use the first.
func (b *Beatmap) TimingAt(t time.Duration) TimingPoint {
	return b.timingAt(t, false)
}

// BeatAt returns the uninherited timing point in effect at t
func (b *Beatmap) BeatAt(t time.Duration) TimingPoint {
	return b.timingAt(t, true)
}

func (b *Beatmap) timingAt(t time.Duration, uninheritedOnly bool) TimingPoint {
	found := false
	var tp TimingPoint
	for _, p := range b.TimingPoints {
		if uninheritedOnly && !p.Uninherited {
			continue
		}
		if !found || p.Offset <= t {
			tp = p
			found = true
		}
		if p.Offset > t {
			break
		}
	}
	if !found {
		return TimingPoint{BeatLength: 500, Meter: 4, Volume: 100, Uninherited: true}
	}
	return tp
}

// slideDuration is the time for one pass over a slider
func (b *Beatmap) slideDuration(h HitObject) time.Duration {
	beat := b.BeatAt(h.Time)
	sv := 1.0
	if tp := b.TimingAt(h.Time); !tp.Uninherited && tp.BeatLength < 0 {
		sv = -100 / tp.BeatLength
		if sv < 0.1 {
			sv = 0.1
		}
		if sv > 10 {
			sv = 10
		}
	}
	ms := h.Length / (b.SliderMultiplier * 100 * sv) * beat.BeatLength
	return time.Duration(ms * float64(time.Millisecond))
}

// Length is the end of the last hit object
func (b *Beatmap) Length() time.Duration {
	var end time.Duration
	for _, h := range b.HitObjects {
		if h.EndTime > end {
			end = h.EndTime
		}
	}
	return end
}

// AudioPath is the music file inside the beatmap folder
func (b *Beatmap) AudioPath() string {
	if b.AudioFilename == "" {
		return ""
	}
	return filepath.Join(b.Folder, b.AudioFilename)
}

// DisplayName is "Artist - Title [Version]"
func (b *Beatmap) DisplayName() string {
	name := b.Title
	if b.Artist != "" {
		name = b.Artist + " - " + name
	}
	if b.Version != "" {
		name += " [" + b.Version + "]"
	}
	if strings.TrimSpace(name) == "" {
		return filepath.Base(b.Path)
	}
	return name
}
