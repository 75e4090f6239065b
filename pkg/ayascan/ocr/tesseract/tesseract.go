// Package tesseract recognizes badge text with the Tesseract engine through
// gosseract. It needs libtesseract at build and run time.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/ocr"
)

// DefaultWhitelist limits recognition to what a badge can carry.
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Engine turns frame images into word fragments with bounding boxes.
type Engine struct {
	languages     []string
	whitelist     string
	pageSegMode   gosseract.PageSegMode
	clientFactory func() *gosseract.Client
}

type Option func(*Engine)

func WithLanguages(langs ...string) Option {
	return func(e *Engine) { e.languages = langs }
}

// WithWhitelist restricts the recognized characters. An empty whitelist
// disables the restriction.
func WithWhitelist(chars string) Option {
	return func(e *Engine) { e.whitelist = chars }
}

func WithPageSegMode(mode gosseract.PageSegMode) Option {
	return func(e *Engine) { e.pageSegMode = mode }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		languages:     []string{"eng"},
		whitelist:     DefaultWhitelist,
		pageSegMode:   gosseract.PSM_SPARSE_TEXT,
		clientFactory: gosseract.NewClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize rotates the image upright and returns one fragment per word,
// boxed in upright pixel coordinates.
func (e *Engine) Recognize(ctx context.Context, image []byte, rotationDegrees int) ([]model.TextFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := ocr.Prepare(image, rotationDegrees)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if e.whitelist != "" {
		if err := c.SetWhitelist(e.whitelist); err != nil {
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetPageSegMode(e.pageSegMode); err != nil {
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}
	return toFragments(boxes), nil
}

func toFragments(boxes []gosseract.BoundingBox) []model.TextFragment {
	out := make([]model.TextFragment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, model.TextFragment{
			Text: text,
			Box: &model.Rect{
				Left:   float64(b.Box.Min.X),
				Top:    float64(b.Box.Min.Y),
				Right:  float64(b.Box.Max.X),
				Bottom: float64(b.Box.Max.Y),
			},
		})
	}
	return out
}
