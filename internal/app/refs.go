// ABOUTME: Playlist argument expansion
// ABOUTME: Turns files and beatmap folders into an ordered list of references
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandRefs keeps files as given and replaces each directory with the
// .osu files directly inside it, sorted by name
func ExpandRefs(args []string) ([]string, error) {
	var refs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %w", arg, err)
		}
		if !info.IsDir() {
			refs = append(refs, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot list %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".osu") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no .osu files in %s", arg)
		}
		sort.Strings(found)
		refs = append(refs, found...)
	}
	return refs, nil
}
