package soundstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// resolveThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// sound name match.
const resolveThreshold = 0.85

// Resolve finds the sound whose name best matches query. Exact matches
// (case-insensitive) win outright; otherwise the highest-scoring name at
// or above the similarity threshold is returned. Returns [ErrNotFound]
// when nothing comes close.
func Resolve(ctx context.Context, store Store, query string) (Sound, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return Sound{}, fmt.Errorf("%w: empty query", ErrNotFound)
	}
	if snd, err := store.Get(ctx, query); err == nil {
		return snd, nil
	}

	sounds, err := store.List(ctx)
	if err != nil {
		return Sound{}, fmt.Errorf("soundstore: resolve %q: %w", query, err)
	}

	var (
		best      Sound
		bestScore float64
	)
	for _, snd := range sounds {
		name := strings.ToLower(snd.Name)
		if name == query {
			return snd, nil
		}
		score := matchr.JaroWinkler(query, name, false)
		if strings.Contains(name, query) && score < resolveThreshold {
			score = resolveThreshold
		}
		if score > bestScore {
			best, bestScore = snd, score
		}
	}
	if bestScore < resolveThreshold {
		return Sound{}, fmt.Errorf("%w: no sound matching %q", ErrNotFound, query)
	}
	return best, nil
}
