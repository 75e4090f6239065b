package ayascan

import (
	"context"
)

// Storage is the persisted reading history. Insert is the only mutation;
// listings are newest first.
type Storage interface {
	Insert(ctx context.Context, letter, number string) (Record, error)
	GetAll(ctx context.Context) ([]Record, error)
	Search(ctx context.Context, query string) ([]Record, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Recognizer is the external OCR collaborator: image bytes in, positioned
// text fragments out.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, rotationDegrees int) ([]TextFragment, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte, rotationDegrees int) ([]TextFragment, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte, rotationDegrees int) ([]TextFragment, error) {
	return f(ctx, image, rotationDegrees)
}

// StablePairFunc receives every confirmation from the stabilizer.
type StablePairFunc func(letter, number string)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
