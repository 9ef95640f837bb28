package models

import "context"

// Store is the persistent storage for users and tracked titles.
//
// Every method that reads and writes the same record does so atomically with
// respect to other calls on that record.
type Store interface {
	// EnsureUser creates the user on first interaction
	EnsureUser(ctx context.Context, userID int64) error

	// AddMovieSubscriber creates the movie if absent, otherwise refreshes its
	// title, then subscribes the user. It reports false when the user was
	// already subscribed.
	AddMovieSubscriber(ctx context.Context, movie TrackedMovie, userID int64) (bool, error)

	// AddShowSubscriber is AddMovieSubscriber for shows. A created show starts
	// at season 0 episode 0 whatever the passed record holds.
	AddShowSubscriber(ctx context.Context, show TrackedShow, userID int64) (bool, error)

	// RemoveMovieSubscriber unsubscribes the user and deletes the movie once
	// nobody is left. It reports whether the user was subscribed.
	RemoveMovieSubscriber(ctx context.Context, movieID, userID int64) (bool, error)
	RemoveShowSubscriber(ctx context.Context, showID, userID int64) (bool, error)

	// IsSubscribed reports whether the user holds a subscription to the title
	IsSubscribed(ctx context.Context, ref TitleRef, userID int64) (bool, error)

	ListMovies(ctx context.Context) ([]*TrackedMovie, error)
	ListShows(ctx context.Context) ([]*TrackedShow, error)
	MoviesForUser(ctx context.Context, userID int64) ([]*TrackedMovie, error)
	ShowsForUser(ctx context.Context, userID int64) ([]*TrackedShow, error)

	// DeleteMovie removes the movie and returns it as it was at deletion
	// time. Returns ErrNotFound if it does not exist.
	DeleteMovie(ctx context.Context, movieID int64) (*TrackedMovie, error)

	// UpdateShow loads the show, applies fn and saves the result when fn
	// reports a change. fn may be called more than once. Returns ErrNotFound
	// if the show does not exist.
	UpdateShow(ctx context.Context, showID int64, fn func(show *TrackedShow) bool) (*TrackedShow, error)

	Stats(ctx context.Context) (Stats, error)

	Close() error
}
