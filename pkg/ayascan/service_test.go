package ayascan

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewServiceOpensSQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "ayascan.sqlite3")

	svc, err := NewService(ctx,
		WithDBPath(dbPath),
		WithRecognizer(newScripted()),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	defer svc.Close()

	rec, err := svc.Save(ctx, "A", "93")
	require.NoError(t, err)
	require.NotZero(t, rec.ID)

	all, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	hits, err := svc.Search(ctx, "9")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestServiceFramesReachSession(t *testing.T) {
	ctx := context.Background()
	stor := openTestStorage(t)

	svc, err := NewService(ctx,
		WithStorage(stor),
		WithRecognizer(newScripted()),
		WithThreshold(2),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	frames := newFrameCounter()
	ch := make(chan *Frame, 4)
	ch <- frames.frame("B2")
	ch <- frames.frame("B2")
	close(ch)
	require.NoError(t, svc.Run(ctx, ch))

	latest, ok := svc.Session().Latest()
	require.True(t, ok)
	require.Equal(t, "B", latest.Letter)
	require.Equal(t, "2", latest.Number)

	_, saved, err := svc.Session().SaveLatest(ctx)
	require.NoError(t, err)
	require.True(t, saved)

	all, err := stor.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Injected storage stays open after Close.
	require.NoError(t, svc.Close())
	_, err = stor.GetAll(ctx)
	require.NoError(t, err)
}

func TestServiceToggleThroughSession(t *testing.T) {
	svc, err := NewService(context.Background(),
		WithStorage(openTestStorage(t)),
		WithRecognizer(newScripted()),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	require.False(t, svc.Session().ToggleAnalyzing())
	require.False(t, svc.Pipeline().Analyzing())
}

func TestNewServiceInvalidWindow(t *testing.T) {
	_, err := NewService(context.Background(),
		WithStorage(openTestStorage(t)),
		WithWindowSize(1),
		WithThreshold(2),
		WithLogger(quietLogger()),
	)
	require.Error(t, err)
}
