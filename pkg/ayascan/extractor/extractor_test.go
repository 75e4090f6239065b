package extractor

import (
	"testing"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
)

// box returns a 10x10 box centered on (cx, cy).
func box(cx, cy float64) *model.Rect {
	return &model.Rect{Left: cx - 5, Top: cy - 5, Right: cx + 5, Bottom: cy + 5}
}

func frag(text string, cx, cy float64) model.TextFragment {
	return model.TextFragment{Text: text, Box: box(cx, cy)}
}

func TestExtractBadgeLayout(t *testing.T) {
	// 1000x1000 frame: inner radius is 200px.
	fragments := []model.TextFragment{
		frag("A", 500, 500),
		frag("7", 600, 500), // inside the inner radius
		frag("3", 50, 500),
		frag("9", 10, 500),
	}

	pair, ok := Extract(fragments, 1000, 1000)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Letter != "A" {
		t.Errorf("Expected letter 'A', got '%s'", pair.Letter)
	}
	if pair.Digits != "93" {
		t.Errorf("Expected digits '93', got '%s'", pair.Digits)
	}
}

func TestExtractUppercasesLetter(t *testing.T) {
	fragments := []model.TextFragment{
		frag("k", 320, 240),
		frag("12", 40, 240),
	}

	pair, ok := Extract(fragments, 640, 480)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Letter != "K" {
		t.Errorf("Expected letter 'K', got '%s'", pair.Letter)
	}
}

func TestExtractNoLetter(t *testing.T) {
	cases := map[string][]model.TextFragment{
		"empty":        nil,
		"digits only":  {frag("12", 10, 10), frag("34", 900, 900)},
		"multi letter": {frag("AB", 500, 500), frag("12", 10, 10)},
		"blank text":   {frag("   ", 500, 500), frag("12", 10, 10)},
		"symbol":       {frag("#", 500, 500), frag("12", 10, 10)},
		"no uppercase": {frag("ß", 500, 500), frag("12", 10, 10)},
		"uncased":      {frag("あ", 500, 500), frag("12", 10, 10)},
	}

	for name, fragments := range cases {
		t.Run(name, func(t *testing.T) {
			if pair, ok := Extract(fragments, 1000, 1000); ok {
				t.Errorf("Expected no candidate, got %v", pair)
			}
		})
	}
}

func TestIsBadgeLetter(t *testing.T) {
	for _, r := range "AzéΩж" {
		if !IsBadgeLetter(r) {
			t.Errorf("IsBadgeLetter(%q) = false, want true", r)
		}
	}
	for _, r := range "ß7#あ " {
		if IsBadgeLetter(r) {
			t.Errorf("IsBadgeLetter(%q) = true, want false", r)
		}
	}
}

func TestExtractNoDigitRing(t *testing.T) {
	fragments := []model.TextFragment{
		frag("B", 500, 500),
		frag("4", 520, 520), // too close to the center
		frag("x9", 10, 10),  // not all digits
		frag("", 900, 900),  // discarded
	}

	if pair, ok := Extract(fragments, 1000, 1000); ok {
		t.Errorf("Expected no candidate, got %v", pair)
	}
}

func TestExtractPicksLetterClosestToCenter(t *testing.T) {
	fragments := []model.TextFragment{
		frag("Q", 100, 100),
		frag("M", 490, 510),
		frag("Z", 700, 700),
		frag("5", 950, 500),
	}

	pair, ok := Extract(fragments, 1000, 1000)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Letter != "M" {
		t.Errorf("Expected letter 'M', got '%s'", pair.Letter)
	}
}

func TestExtractEquidistantLettersFirstWins(t *testing.T) {
	fragments := []model.TextFragment{
		frag("R", 400, 500),
		frag("L", 600, 500),
		frag("8", 950, 500),
	}

	pair, ok := Extract(fragments, 1000, 1000)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Letter != "R" {
		t.Errorf("Expected first encountered letter 'R', got '%s'", pair.Letter)
	}
}

func TestExtractSkipsFragmentsWithoutBox(t *testing.T) {
	fragments := []model.TextFragment{
		{Text: "A", Box: nil},
		frag("C", 800, 800),
		{Text: "1", Box: nil},
		frag("2", 100, 500),
	}

	pair, ok := Extract(fragments, 1000, 1000)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Letter != "C" || pair.Digits != "2" {
		t.Errorf("Expected C-2, got %v", pair)
	}
}

func TestExtractTrimsText(t *testing.T) {
	fragments := []model.TextFragment{
		frag(" d ", 500, 500),
		frag(" 42\n", 100, 500),
	}

	pair, ok := Extract(fragments, 1000, 1000)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Letter != "D" || pair.Digits != "42" {
		t.Errorf("Expected D-42, got %v", pair)
	}
}

func TestExtractRectangularFrameUsesLongerSide(t *testing.T) {
	// 1280x720: inner radius is 256px.
	fragments := []model.TextFragment{
		frag("E", 640, 360),
		frag("1", 640+250, 360), // 250px, inside
		frag("6", 640-300, 360), // 300px, outside
	}

	pair, ok := Extract(fragments, 1280, 720)
	if !ok {
		t.Fatal("Expected a candidate pair")
	}
	if pair.Digits != "6" {
		t.Errorf("Expected digits '6', got '%s'", pair.Digits)
	}
}

func TestExtractCustomRatio(t *testing.T) {
	fragments := []model.TextFragment{
		frag("F", 500, 500),
		frag("7", 600, 500),
	}

	if _, ok := New(0.20).Extract(fragments, 1000, 1000); ok {
		t.Fatal("Expected no candidate with default ratio")
	}
	pair, ok := New(0.05).Extract(fragments, 1000, 1000)
	if !ok {
		t.Fatal("Expected a candidate with a smaller inner radius")
	}
	if pair.Digits != "7" {
		t.Errorf("Expected digits '7', got '%s'", pair.Digits)
	}
}
