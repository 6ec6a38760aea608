// ABOUTME: Sample lookup across beatmap folders and the default skin
// ABOUTME: Beatmap-provided samples always take precedence over default ones
package cache

import (
	"context"
	"path/filepath"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Library resolves sample names for a beatmap folder, falling back to the
// default skin directory when the folder does not provide a playable file.
type Library struct {
	cache      *Cache
	defaultDir string
}

// NewLibrary creates a library; defaultDir may be empty to disable fallback
func NewLibrary(cache *Cache, defaultDir string) *Library {
	return &Library{cache: cache, defaultDir: defaultDir}
}

// Cache returns the underlying cache
func (l *Library) Cache() *Cache {
	return l.cache
}

// Sample returns the buffer for name. folder content wins over the default
// skin. The returned error is from the last lookup attempted.
func (l *Library) Sample(ctx context.Context, folder, name string) (*audio.PCMBuffer, error) {
	var err error
	if folder != "" {
		var buf *audio.PCMBuffer
		buf, err = l.cache.GetOrCreate(ctx, filepath.Join(folder, name))
		if err == nil {
			return buf, nil
		}
		if isCancellation(err) {
			return nil, err
		}
	}

	if l.defaultDir == "" {
		return nil, err
	}
	return l.cache.GetOrCreateDefault(ctx, filepath.Join(l.defaultDir, name))
}

// Prefetch decodes every name for folder ahead of playback
func (l *Library) Prefetch(ctx context.Context, folder string, names []string) error {
	paths := make([]string, 0, len(names))
	for _, n := range names {
		paths = append(paths, filepath.Join(folder, n))
	}
	if err := l.cache.CreateMany(ctx, paths); err != nil {
		return err
	}

	// Warm defaults for anything the folder could not supply
	for _, n := range names {
		if _, err := l.Sample(ctx, folder, n); isCancellation(err) {
			return err
		}
	}
	return nil
}
