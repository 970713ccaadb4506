package keyword

import (
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		{Keyword: "chao", Sound: "chao-bell", Variants: map[string]float64{"tchau": 0.9, "xau": 0.75}},
		{Keyword: "windows", Variants: map[string]float64{"windose": 0.9}},
		{Keyword: "tiago rama", Sound: "tiago"},
	}
}

func TestSpot_ExactSubstringScoresOne(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	m, ok := s.Spot("ok pessoal chao a todos")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Keyword != "chao" {
		t.Errorf("keyword = %q, want chao", m.Keyword)
	}
	if m.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.0", m.Score)
	}
	if m.Sound != "chao-bell" {
		t.Errorf("sound = %q, want chao-bell", m.Sound)
	}
}

func TestSpot_CaseInsensitive(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	m, ok := s.Spot("I just reinstalled WINDOWS again")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Keyword != "windows" {
		t.Errorf("keyword = %q, want windows", m.Keyword)
	}
	// No explicit sound configured: keyword doubles as the sound name.
	if m.Sound != "windows" {
		t.Errorf("sound = %q, want windows", m.Sound)
	}
}

func TestSpot_VariantMatch(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	m, ok := s.Spot("bom tchau e boa noite")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Keyword != "chao" {
		t.Errorf("keyword = %q, want chao", m.Keyword)
	}
	if m.Matched != "tchau" {
		t.Errorf("matched fragment = %q, want tchau", m.Matched)
	}
	if m.Score != 0.9 {
		t.Errorf("variant score = %.2f, want its configured 0.9", m.Score)
	}
}

func TestSpot_VariantScoresAreGraded(t *testing.T) {
	t.Parallel()
	s := New([]Entry{
		{Keyword: "airhorn", Variants: map[string]float64{"air horn": 0.95, "horn": 0.5}},
	})

	// Only the weak variant is present: its own score applies and it sits
	// below the threshold.
	if m, ok := s.Spot("a horn sound"); ok {
		t.Errorf("weak variant must not match at 0.7, got %.2f", m.Score)
	}

	// Both variants appear as substrings; the maximum matching score wins.
	m, ok := s.Spot("blow the air horn now")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Score != 0.95 || m.Matched != "air horn" {
		t.Errorf("match = %q/%.2f, want \"air horn\"/0.95", m.Matched, m.Score)
	}
}

func TestSpot_VariantWithoutScoreGetsDefault(t *testing.T) {
	t.Parallel()
	s := New([]Entry{
		{Keyword: "chao", Variants: map[string]float64{"tchau": 0}},
	})

	m, ok := s.Spot("bom tchau")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Score != 0.9 {
		t.Errorf("score = %.2f, want the 0.9 default", m.Score)
	}
}

func TestSpot_FuzzyPhoneticMatch(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	// "windose" is a variant; "windoes" is not and must go the fuzzy route.
	m, ok := s.Spot("my windoes crashed")
	if !ok {
		t.Fatal("expected a fuzzy match")
	}
	if m.Keyword != "windows" {
		t.Errorf("keyword = %q, want windows", m.Keyword)
	}
	if m.Score < 0.7 {
		t.Errorf("score = %.2f, want >= 0.7", m.Score)
	}
	if m.Score >= 1.0 {
		t.Errorf("fuzzy match must not score 1.0, got %.2f", m.Score)
	}
}

func TestSpot_MultiWordKeyword(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	m, ok := s.Spot("foi o tiago rama que fez isso")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Keyword != "tiago rama" {
		t.Errorf("keyword = %q, want tiago rama", m.Keyword)
	}
	if m.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.0", m.Score)
	}
}

func TestSpot_NoMatchBelowThreshold(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	if m, ok := s.Spot("completely unrelated sentence"); ok {
		t.Errorf("expected no match, got %q with score %.2f", m.Keyword, m.Score)
	}
}

func TestSpot_EmptyInputs(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	if _, ok := s.Spot(""); ok {
		t.Error("empty text must not match")
	}
	if _, ok := s.Spot("   "); ok {
		t.Error("whitespace-only text must not match")
	}

	empty := New(nil)
	if _, ok := empty.Spot("chao"); ok {
		t.Error("spotter with no entries must not match")
	}
}

func TestSpot_BestScoreWins(t *testing.T) {
	t.Parallel()
	s := New([]Entry{
		{Keyword: "chao"},
		{Keyword: "chaos"},
	})

	// Exact "chaos" must beat a fuzzy score against "chao".
	m, ok := s.Spot("pure chaos in here")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.0", m.Score)
	}
}

func TestSetEntries_SwapsTableAtRuntime(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	if _, ok := s.Spot("ganda malandro"); ok {
		t.Fatal("unexpected match before table swap")
	}

	s.SetEntries([]Entry{{Keyword: "malandro"}})

	if _, ok := s.Spot("ganda malandro"); !ok {
		t.Error("expected match after table swap")
	}
	if _, ok := s.Spot("chao"); ok {
		t.Error("old keyword must be gone after table swap")
	}
}

func TestRegister_AddsAndReplacesSingleKeyword(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	s.Register(Entry{Keyword: "malandro", Sound: "ganda"})

	m, ok := s.Spot("ganda malandro")
	if !ok || m.Sound != "ganda" {
		t.Fatalf("match = %+v ok=%v, want malandro/ganda", m, ok)
	}
	// Existing keywords are untouched.
	if _, ok := s.Spot("chao"); !ok {
		t.Error("previously registered keyword must still match")
	}

	// Re-registering replaces the entry in place.
	s.Register(Entry{Keyword: "malandro", Sound: "other"})
	m, _ = s.Spot("ganda malandro")
	if m.Sound != "other" {
		t.Errorf("sound = %q, want other after re-register", m.Sound)
	}
	if got := len(s.Keywords()); got != 4 {
		t.Errorf("got %d keywords, want 4 (no duplicate entries)", got)
	}
}

func TestUnregister_RemovesKeyword(t *testing.T) {
	t.Parallel()
	s := New(testEntries())

	if !s.Unregister("CHAO ") {
		t.Fatal("Unregister must report a removed keyword")
	}
	if _, ok := s.Spot("chao"); ok {
		t.Error("unregistered keyword must not match")
	}
	if _, ok := s.Spot("windows"); !ok {
		t.Error("other keywords must survive an unregister")
	}
	if s.Unregister("chao") {
		t.Error("second Unregister must report the keyword as absent")
	}
}

func TestSpot_ThresholdIsRespected(t *testing.T) {
	t.Parallel()
	strict := New(testEntries(), WithThreshold(0.99))

	// Fuzzy and variant matches fall below 0.99; only exact passes.
	if _, ok := strict.Spot("my windoes crashed"); ok {
		t.Error("fuzzy match must not pass a 0.99 threshold")
	}
	if _, ok := strict.Spot("bom tchau"); ok {
		t.Error("variant match must not pass a 0.99 threshold")
	}
	if _, ok := strict.Spot("windows"); !ok {
		t.Error("exact match must pass any threshold")
	}
}

func TestKeywords_ListsCanonicalKeywords(t *testing.T) {
	t.Parallel()
	s := New(testEntries())
	got := s.Keywords()
	if len(got) != 3 {
		t.Fatalf("got %d keywords, want 3", len(got))
	}
}
