package ayascan

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/extractor"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
)

// Aliases so callers only need to import this package.
type (
	Rect         = model.Rect
	TextFragment = model.TextFragment
	Pair         = model.Pair
	Record       = model.Record
	Frame        = model.Frame
)

// NewFrame wraps image data in a Frame whose Close invokes release.
func NewFrame(id string, image []byte, width, height, rotation int, release func()) *Frame {
	return model.NewFrame(id, image, width, height, rotation, release)
}

var (
	// ErrRecognition wraps any failure of the OCR collaborator.
	ErrRecognition = errors.New("recognition failed")
	// ErrStorageUnavailable is returned when no store has been configured.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidReading rejects a letter or number a badge cannot carry.
	ErrInvalidReading = errors.New("invalid reading")
)

// NormalizeReading trims and uppercases a manually entered reading and checks
// it has the shape the extractor produces: one letter and a run of ASCII
// digits.
func NormalizeReading(letter, number string) (string, string, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	number = strings.TrimSpace(number)

	if r, size := utf8.DecodeRuneInString(letter); size == 0 || size != len(letter) || !extractor.IsBadgeLetter(r) {
		return "", "", fmt.Errorf("%w: letter %q", ErrInvalidReading, letter)
	}
	if number == "" {
		return "", "", fmt.Errorf("%w: empty number", ErrInvalidReading)
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return "", "", fmt.Errorf("%w: number %q", ErrInvalidReading, number)
		}
	}
	return letter, number, nil
}
