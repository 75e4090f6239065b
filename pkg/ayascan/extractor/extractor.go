package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
)

// DefaultInnerRadiusRatio is the fraction of the longer frame side inside
// which digit fragments are treated as noise around the central letter.
const DefaultInnerRadiusRatio = 0.20

// Extractor picks the central letter and the outer digit ring of a badge
// from one frame's OCR fragments.
type Extractor struct {
	InnerRadiusRatio float64
}

// New returns an extractor with the given inner radius ratio. A non-positive
// ratio selects DefaultInnerRadiusRatio.
func New(innerRadiusRatio float64) *Extractor {
	if innerRadiusRatio <= 0 {
		innerRadiusRatio = DefaultInnerRadiusRatio
	}
	return &Extractor{InnerRadiusRatio: innerRadiusRatio}
}

// Extract runs the default extractor.
func Extract(fragments []model.TextFragment, frameWidth, frameHeight int) (model.Pair, bool) {
	return New(DefaultInnerRadiusRatio).Extract(fragments, frameWidth, frameHeight)
}

type node struct {
	text string
	cx   float64
	cy   float64
	dist float64
}

// Extract returns the badge reading for one frame, or false when the frame
// holds no single-letter fragment or no digit fragment outside the inner
// radius.
//
// Among equidistant letters the first one in input order wins; digits with
// equal x keep their input order.
func (e *Extractor) Extract(fragments []model.TextFragment, frameWidth, frameHeight int) (model.Pair, bool) {
	cx := float64(frameWidth) / 2
	cy := float64(frameHeight) / 2

	nodes := make([]node, 0, len(fragments))
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" || f.Box == nil {
			continue
		}
		x, y := f.Box.Center()
		nodes = append(nodes, node{
			text: text,
			cx:   x,
			cy:   y,
			dist: f.Box.DistanceTo(cx, cy),
		})
	}
	if len(nodes) == 0 {
		return model.Pair{}, false
	}

	letter := ""
	best := math.Inf(1)
	for _, n := range nodes {
		if !isSingleLetter(n.text) {
			continue
		}
		if n.dist < best {
			best = n.dist
			letter = n.text
		}
	}
	if letter == "" {
		return model.Pair{}, false
	}

	innerRadius := float64(max(frameWidth, frameHeight)) * e.ratio()
	ring := make([]node, 0, len(nodes))
	for _, n := range nodes {
		if isAllDigits(n.text) && n.dist >= innerRadius {
			ring = append(ring, n)
		}
	}
	sort.SliceStable(ring, func(i, j int) bool { return ring[i].cx < ring[j].cx })

	var digits strings.Builder
	for _, n := range ring {
		digits.WriteString(n.text)
	}
	if digits.Len() == 0 {
		return model.Pair{}, false
	}

	return model.Pair{Letter: strings.ToUpper(letter), Digits: digits.String()}, true
}

func (e *Extractor) ratio() float64 {
	if e == nil || e.InnerRadiusRatio <= 0 {
		return DefaultInnerRadiusRatio
	}
	return e.InnerRadiusRatio
}

func isSingleLetter(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return IsBadgeLetter(r)
}

// IsBadgeLetter reports whether r is a letter with an uppercase form.
// Uncased letters and ones like 'ß' that stay lowercase are rejected.
func IsBadgeLetter(r rune) bool {
	return unicode.IsLetter(r) && unicode.IsUpper(unicode.ToUpper(r))
}

// isAllDigits accepts ASCII 0-9 only.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
