package controllers

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeLookup serves canned metadata; ids missing from both maps fail
type fakeLookup struct {
	mu     sync.Mutex
	movies map[int64]*models.MovieInfo
	shows  map[int64]*models.ShowInfo
	failed map[int64]error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		movies: map[int64]*models.MovieInfo{},
		shows:  map[int64]*models.ShowInfo{},
		failed: map[int64]error{},
	}
}

func (f *fakeLookup) setMovie(info *models.MovieInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movies[info.ID] = info
}

func (f *fakeLookup) setShow(info *models.ShowInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shows[info.ID] = info
}

func (f *fakeLookup) fail(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = err
}

func (f *fakeLookup) LookupMovie(ctx context.Context, id int64) (*models.MovieInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failed[id]; ok {
		return nil, err
	}
	info, ok := f.movies[id]
	if !ok {
		return nil, fmt.Errorf("movie %d: %w", id, models.ErrNotFound)
	}
	copied := *info
	return &copied, nil
}

func (f *fakeLookup) LookupShow(ctx context.Context, id int64) (*models.ShowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failed[id]; ok {
		return nil, err
	}
	info, ok := f.shows[id]
	if !ok {
		return nil, fmt.Errorf("show %d: %w", id, models.ErrNotFound)
	}
	copied := *info
	return &copied, nil
}

type sentMessage struct {
	UserID   int64
	ImageURL string
	Text     string
}

// fakeGateway records deliveries and fails on demand
type fakeGateway struct {
	mu          sync.Mutex
	photos      []sentMessage
	texts       []sentMessage
	rejectURLs  map[string]bool
	photoErrors map[int64]error
	textErrors  map[int64]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rejectURLs:  map[string]bool{},
		photoErrors: map[int64]error{},
		textErrors:  map[int64]error{},
	}
}

func (f *fakeGateway) SendPhoto(ctx context.Context, userID int64, imageURL, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectURLs[imageURL] {
		return fmt.Errorf("bad request: %w", models.ErrDeliveryRejected)
	}
	if err := f.photoErrors[userID]; err != nil {
		return err
	}
	f.photos = append(f.photos, sentMessage{UserID: userID, ImageURL: imageURL, Text: caption})
	return nil
}

func (f *fakeGateway) SendText(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.textErrors[userID]; err != nil {
		return err
	}
	f.texts = append(f.texts, sentMessage{UserID: userID, Text: text})
	return nil
}
