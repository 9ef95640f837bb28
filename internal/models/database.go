package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

var _ Store = (*Database)(nil)

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// update runs fn in a single read-write transaction. bbolt serializes
// writers, so a read-modify-write inside fn is atomic.
func (db *Database) update(fn func(tx *bbolt.Tx) error) error {
	return db.store.Bolt().Update(fn)
}

// User operations

// EnsureUser creates the user if it does not exist yet
func (db *Database) EnsureUser(ctx context.Context, userID int64) error {
	return db.update(func(tx *bbolt.Tx) error {
		var user User
		err := db.store.TxGet(tx, userID, &user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bolthold.ErrNotFound) {
			return err
		}
		user = User{ID: userID, CreatedAt: time.Now()}
		return db.store.TxInsert(tx, userID, &user)
	})
}

// Movie operations

// AddMovieSubscriber upserts the movie and subscribes the user
func (db *Database) AddMovieSubscriber(ctx context.Context, movie TrackedMovie, userID int64) (bool, error) {
	var added bool
	err := db.update(func(tx *bbolt.Tx) error {
		var existing TrackedMovie
		err := db.store.TxGet(tx, movie.ID, &existing)
		switch {
		case errors.Is(err, bolthold.ErrNotFound):
			existing = TrackedMovie{ID: movie.ID, CreatedAt: time.Now()}
		case err != nil:
			return err
		}

		existing.Title = movie.Title
		existing.UpdatedAt = time.Now()
		added = existing.AddSubscriber(userID)

		return db.store.TxUpsert(tx, existing.ID, &existing)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert movie %d: %w", movie.ID, err)
	}
	return added, nil
}

// RemoveMovieSubscriber unsubscribes the user, deleting the movie when empty
func (db *Database) RemoveMovieSubscriber(ctx context.Context, movieID, userID int64) (bool, error) {
	var removed bool
	err := db.update(func(tx *bbolt.Tx) error {
		var movie TrackedMovie
		if err := db.store.TxGet(tx, movieID, &movie); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return nil
			}
			return err
		}

		removed = movie.RemoveSubscriber(userID)
		if !removed {
			return nil
		}
		if len(movie.Subscribers) == 0 {
			return db.store.TxDelete(tx, movieID, &TrackedMovie{})
		}
		movie.UpdatedAt = time.Now()
		return db.store.TxUpdate(tx, movieID, &movie)
	})
	return removed, err
}

// ListMovies retrieves all tracked movies
func (db *Database) ListMovies(ctx context.Context) ([]*TrackedMovie, error) {
	var movies []*TrackedMovie
	err := db.store.Find(&movies, nil)
	return movies, err
}

// MoviesForUser retrieves the movies the user is subscribed to
func (db *Database) MoviesForUser(ctx context.Context, userID int64) ([]*TrackedMovie, error) {
	var movies []*TrackedMovie
	err := db.store.Find(&movies, bolthold.Where("Subscribers").Contains(userID))
	return movies, err
}

// DeleteMovie deletes a movie and returns the deleted record
func (db *Database) DeleteMovie(ctx context.Context, movieID int64) (*TrackedMovie, error) {
	var movie TrackedMovie
	err := db.update(func(tx *bbolt.Tx) error {
		if err := db.store.TxGet(tx, movieID, &movie); err != nil {
			return err
		}
		return db.store.TxDelete(tx, movieID, &TrackedMovie{})
	})
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// Show operations

// AddShowSubscriber upserts the show and subscribes the user
func (db *Database) AddShowSubscriber(ctx context.Context, show TrackedShow, userID int64) (bool, error) {
	var added bool
	err := db.update(func(tx *bbolt.Tx) error {
		var existing TrackedShow
		err := db.store.TxGet(tx, show.ID, &existing)
		switch {
		case errors.Is(err, bolthold.ErrNotFound):
			existing = TrackedShow{ID: show.ID, CreatedAt: time.Now()}
		case err != nil:
			return err
		}

		existing.Title = show.Title
		existing.UpdatedAt = time.Now()
		added = existing.AddSubscriber(userID)

		return db.store.TxUpsert(tx, existing.ID, &existing)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert show %d: %w", show.ID, err)
	}
	return added, nil
}

// RemoveShowSubscriber unsubscribes the user, deleting the show when empty
func (db *Database) RemoveShowSubscriber(ctx context.Context, showID, userID int64) (bool, error) {
	var removed bool
	err := db.update(func(tx *bbolt.Tx) error {
		var show TrackedShow
		if err := db.store.TxGet(tx, showID, &show); err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				return nil
			}
			return err
		}

		removed = show.RemoveSubscriber(userID)
		if !removed {
			return nil
		}
		if len(show.Subscribers) == 0 {
			return db.store.TxDelete(tx, showID, &TrackedShow{})
		}
		show.UpdatedAt = time.Now()
		return db.store.TxUpdate(tx, showID, &show)
	})
	return removed, err
}

// ListShows retrieves all tracked shows
func (db *Database) ListShows(ctx context.Context) ([]*TrackedShow, error) {
	var shows []*TrackedShow
	err := db.store.Find(&shows, nil)
	return shows, err
}

// ShowsForUser retrieves the shows the user is subscribed to
func (db *Database) ShowsForUser(ctx context.Context, userID int64) ([]*TrackedShow, error) {
	var shows []*TrackedShow
	err := db.store.Find(&shows, bolthold.Where("Subscribers").Contains(userID))
	return shows, err
}

// UpdateShow applies fn to the stored show inside one transaction
func (db *Database) UpdateShow(ctx context.Context, showID int64, fn func(show *TrackedShow) bool) (*TrackedShow, error) {
	var show TrackedShow
	err := db.update(func(tx *bbolt.Tx) error {
		if err := db.store.TxGet(tx, showID, &show); err != nil {
			return err
		}
		if !fn(&show) {
			return nil
		}
		show.UpdatedAt = time.Now()
		return db.store.TxUpdate(tx, showID, &show)
	})
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// IsSubscribed checks the subscription edge between a user and a title
func (db *Database) IsSubscribed(ctx context.Context, ref TitleRef, userID int64) (bool, error) {
	var err error
	switch ref.Kind {
	case MediaTypeMovie:
		var movie TrackedMovie
		if err = db.store.Get(ref.ID, &movie); err == nil {
			return movie.HasSubscriber(userID), nil
		}
	case MediaTypeTV:
		var show TrackedShow
		if err = db.store.Get(ref.ID, &show); err == nil {
			return show.HasSubscriber(userID), nil
		}
	default:
		return false, fmt.Errorf("unknown media type %q", ref.Kind)
	}
	if errors.Is(err, bolthold.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Stats counts users, tracked titles and subscriptions
func (db *Database) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	var users []User
	if err := db.store.Find(&users, nil); err != nil {
		return stats, err
	}
	movies, err := db.ListMovies(ctx)
	if err != nil {
		return stats, err
	}
	shows, err := db.ListShows(ctx)
	if err != nil {
		return stats, err
	}

	stats.Users = len(users)
	stats.Movies = len(movies)
	stats.Shows = len(shows)
	for _, movie := range movies {
		stats.Subscriptions += len(movie.Subscribers)
	}
	for _, show := range shows {
		stats.Subscriptions += len(show.Subscribers)
	}
	return stats, nil
}
