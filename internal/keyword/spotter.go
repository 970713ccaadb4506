// Package keyword implements trigger-word spotting over transcribed speech.
//
// Matching proceeds in three stages, cheapest first:
//
//  1. Exact substring: the canonical keyword appearing anywhere in the
//     normalised transcript scores 1.0.
//
//  2. Variant table: curated misrecognitions of the keyword (e.g. "tchau"
//     for "chao") appearing as substrings score their configured per-variant
//     confidence; the highest matching variant wins.
//
//  3. Phonetic fuzzy matching: Double Metaphone codes are computed for the
//     transcript's word n-grams and for the keyword. On phonetic overlap the
//     Jaro-Winkler similarity of the strings becomes the score; without
//     overlap a higher pure-similarity bar (0.85) applies.
//
// A keyword is spotted when its best score reaches the configured threshold.
// The spotter's table can be swapped at runtime, which is how config reloads
// propagate.
package keyword

import (
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

const (
	// defaultVariantScore is assigned to variants registered without an
	// explicit confidence.
	defaultVariantScore = 0.9

	// fuzzyFloor is the pure Jaro-Winkler bar applied when the candidate has
	// no phonetic overlap with the keyword.
	fuzzyFloor = 0.85

	defaultThreshold = 0.7
)

// Entry maps one canonical keyword to the sound it triggers and its known
// misrecognitions.
type Entry struct {
	// Keyword is the canonical trigger word or phrase.
	Keyword string

	// Sound names the sound to play on a match. Empty means the keyword
	// itself is the sound name.
	Sound string

	// Variants maps curated misrecognitions that also trigger the keyword
	// to their confidence score in (0, 1]. A score outside that range
	// falls back to 0.9.
	Variants map[string]float64
}

// Match describes one spotted keyword.
type Match struct {
	// Keyword is the canonical keyword that matched.
	Keyword string

	// Sound is the sound to play for this match.
	Sound string

	// Matched is the transcript fragment that produced the score.
	Matched string

	// Score is the match confidence in (0, 1].
	Score float64
}

// variant is one curated misrecognition and its confidence.
type variant struct {
	text  string
	score float64
}

// entry is the normalised internal form of an Entry.
type entry struct {
	keyword  string
	tokens   []string
	codes    map[string]struct{}
	sound    string
	variants []variant
}

// Spotter scans transcripts for registered keywords. It is safe for
// concurrent use; SetEntries may be called while Spot is running.
type Spotter struct {
	mu        sync.RWMutex
	entries   []entry
	threshold float64
}

// Option is a functional option for configuring a [Spotter].
type Option func(*Spotter)

// WithThreshold sets the minimum score for a keyword to count as spotted.
// Default: 0.7.
func WithThreshold(threshold float64) Option {
	return func(s *Spotter) {
		if threshold > 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// New returns a Spotter with the given keyword entries.
func New(entries []Entry, opts ...Option) *Spotter {
	s := &Spotter{threshold: defaultThreshold}
	for _, o := range opts {
		o(s)
	}
	s.SetEntries(entries)
	return s
}

// SetEntries atomically replaces the keyword table. Entries with an empty
// keyword are skipped.
func (s *Spotter) SetEntries(entries []Entry) {
	normalised := make([]entry, 0, len(entries))
	for _, e := range entries {
		if ne, ok := normalise(e); ok {
			normalised = append(normalised, ne)
		}
	}

	s.mu.Lock()
	s.entries = normalised
	s.mu.Unlock()
}

// Register adds or replaces one keyword entry without disturbing the rest of
// the table. Entries with an empty keyword are ignored.
func (s *Spotter) Register(e Entry) {
	ne, ok := normalise(e)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.entries {
		if existing.keyword == ne.keyword {
			s.entries[i] = ne
			return
		}
	}
	s.entries = append(s.entries, ne)
}

// Unregister removes a keyword from the table. It reports whether the
// keyword was registered.
func (s *Spotter) Unregister(keyword string) bool {
	kw := norm(keyword)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.keyword == kw {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// normalise converts an Entry into its internal form. ok is false when the
// keyword is empty.
func normalise(e Entry) (entry, bool) {
	kw := norm(e.Keyword)
	if kw == "" {
		return entry{}, false
	}
	tokens := strings.Fields(kw)
	sound := norm(e.Sound)
	if sound == "" {
		sound = kw
	}
	variants := make([]variant, 0, len(e.Variants))
	for v, score := range e.Variants {
		v = norm(v)
		if v == "" {
			continue
		}
		if score <= 0 || score > 1 {
			score = defaultVariantScore
		}
		variants = append(variants, variant{text: v, score: score})
	}
	return entry{
		keyword:  kw,
		tokens:   tokens,
		codes:    codesForTokens(tokens),
		sound:    sound,
		variants: variants,
	}, true
}

// Keywords returns the canonical keywords currently registered.
func (s *Spotter) Keywords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.keyword
	}
	return out
}

// Spot scans text for registered keywords and returns the highest-scoring
// match at or above the threshold. ok is false when nothing reached it.
func (s *Spotter) Spot(text string) (best Match, ok bool) {
	text = norm(text)
	if text == "" {
		return Match{}, false
	}
	tokens := strings.Fields(text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		m, found := s.spotOne(e, text, tokens)
		if !found {
			continue
		}
		if !ok || m.Score > best.Score {
			best, ok = m, true
		}
		if best.Score == 1.0 {
			break
		}
	}
	return best, ok
}

// spotOne scores a single keyword entry against the transcript.
func (s *Spotter) spotOne(e entry, text string, tokens []string) (Match, bool) {
	// Stage 1: canonical keyword as substring.
	if strings.Contains(text, e.keyword) {
		return Match{Keyword: e.keyword, Sound: e.sound, Matched: e.keyword, Score: 1.0}, true
	}

	// Stage 2: curated variants as substrings. The highest-scoring
	// matching variant wins.
	var bestVariant variant
	for _, v := range e.variants {
		if strings.Contains(text, v.text) && v.score > bestVariant.score {
			bestVariant = v
		}
	}
	if bestVariant.text != "" && bestVariant.score >= s.threshold {
		return Match{Keyword: e.keyword, Sound: e.sound, Matched: bestVariant.text, Score: bestVariant.score}, true
	}

	// Stage 3: phonetic fuzzy match over word n-grams the size of the keyword.
	n := len(e.tokens)
	if n == 0 || len(tokens) < n {
		return Match{}, false
	}

	var (
		bestScore    float64
		bestFragment string
		bestPhonetic bool
	)
	for i := 0; i+n <= len(tokens); i++ {
		gram := tokens[i : i+n]
		fragment := strings.Join(gram, " ")

		phonetic := codesOverlap(codesForTokens(gram), e.codes)
		score := bestJWScore(gram, e.tokens, fragment, e.keyword)

		if phonetic {
			if score >= s.threshold && (!bestPhonetic || score > bestScore) {
				bestScore, bestFragment, bestPhonetic = score, fragment, true
			}
		} else if !bestPhonetic {
			if score >= fuzzyFloor && score >= s.threshold && score > bestScore {
				bestScore, bestFragment = score, fragment
			}
		}
	}

	if bestFragment == "" {
		return Match{}, false
	}
	return Match{Keyword: e.keyword, Sound: e.sound, Matched: bestFragment, Score: bestScore}, true
}

// norm lowercases and trims a string for matching.
func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or
// contains no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the
// transcript fragment and the keyword using three strategies:
//
//  1. Full-string comparison.
//  2. Space-stripped comparison (multi-word phrases heard as one word).
//  3. Best pairwise token comparison.
func bestJWScore(inputTokens, keywordTokens []string, inputFull, keywordFull string) float64 {
	score := matchr.JaroWinkler(inputFull, keywordFull, false)

	if len(inputTokens) > 1 || len(keywordTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(keywordTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, kt := range keywordTokens {
			if s := matchr.JaroWinkler(it, kt, false); s > score {
				score = s
			}
		}
	}

	return score
}
