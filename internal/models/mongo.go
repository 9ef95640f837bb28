package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxUpdateAttempts = 5

// Mongo is a Store backed by MongoDB
type Mongo struct {
	client *mongo.Client
	users  *mongo.Collection
	movies *mongo.Collection
	shows  *mongo.Collection
}

var _ Store = (*Mongo)(nil)

// NewMongo connects to MongoDB and prepares the collections
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	m := newMongo(client.Database(database))

	subscriberIndex := mongo.IndexModel{Keys: bson.D{{Key: "subscribers", Value: 1}}}
	for _, col := range []*mongo.Collection{m.movies, m.shows} {
		if _, err := col.Indexes().CreateOne(ctx, subscriberIndex); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create index on %s: %w", col.Name(), err)
		}
	}

	return m, nil
}

func newMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		client: db.Client(),
		users:  db.Collection("users"),
		movies: db.Collection("movies"),
		shows:  db.Collection("shows"),
	}
}

// Close disconnects the client
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) EnsureUser(ctx context.Context, userID int64) error {
	_, err := m.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": bson.M{"created_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// addSubscriber upserts a title document and adds the user to its
// subscribers in one FindOneAndUpdate. The pre-image tells whether the user
// was already there.
func (m *Mongo) addSubscriber(ctx context.Context, col *mongo.Collection, id int64, title string, onInsert bson.M, userID int64, before any) (bool, error) {
	now := time.Now()
	insert := bson.M{"created_at": now}
	for k, v := range onInsert {
		insert[k] = v
	}
	update := bson.M{
		"$set":         bson.M{"title": title, "updated_at": now},
		"$setOnInsert": insert,
		"$addToSet":    bson.M{"subscribers": userID},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(before)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return true, nil
		}
		// Two concurrent upserts of a new id: the loser retries as an update.
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return false, err
		}
		return false, nil
	}
	return false, err
}

func (m *Mongo) AddMovieSubscriber(ctx context.Context, movie TrackedMovie, userID int64) (bool, error) {
	var before TrackedMovie
	inserted, err := m.addSubscriber(ctx, m.movies, movie.ID, movie.Title, nil, userID, &before)
	if err != nil {
		return false, fmt.Errorf("failed to upsert movie %d: %w", movie.ID, err)
	}
	return inserted || !before.HasSubscriber(userID), nil
}

func (m *Mongo) AddShowSubscriber(ctx context.Context, show TrackedShow, userID int64) (bool, error) {
	var before TrackedShow
	onInsert := bson.M{"last_season": 0, "last_episode": 0}
	inserted, err := m.addSubscriber(ctx, m.shows, show.ID, show.Title, onInsert, userID, &before)
	if err != nil {
		return false, fmt.Errorf("failed to upsert show %d: %w", show.ID, err)
	}
	return inserted || !before.HasSubscriber(userID), nil
}

// removeSubscriber pulls the user and deletes the document only while its
// subscriber list is still empty, so a concurrent subscribe is never lost.
func (m *Mongo) removeSubscriber(ctx context.Context, col *mongo.Collection, id, userID int64) (bool, error) {
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": id, "subscribers": userID},
		bson.M{"$pull": bson.M{"subscribers": userID}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	_, err = col.DeleteOne(ctx, bson.M{"_id": id, "subscribers": bson.M{"$size": 0}})
	return true, err
}

func (m *Mongo) RemoveMovieSubscriber(ctx context.Context, movieID, userID int64) (bool, error) {
	return m.removeSubscriber(ctx, m.movies, movieID, userID)
}

func (m *Mongo) RemoveShowSubscriber(ctx context.Context, showID, userID int64) (bool, error) {
	return m.removeSubscriber(ctx, m.shows, showID, userID)
}

func (m *Mongo) IsSubscribed(ctx context.Context, ref TitleRef, userID int64) (bool, error) {
	var col *mongo.Collection
	switch ref.Kind {
	case MediaTypeMovie:
		col = m.movies
	case MediaTypeTV:
		col = m.shows
	default:
		return false, fmt.Errorf("unknown media type %q", ref.Kind)
	}
	n, err := col.CountDocuments(ctx, bson.M{"_id": ref.ID, "subscribers": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Mongo) ListMovies(ctx context.Context) ([]*TrackedMovie, error) {
	return findAll[TrackedMovie](ctx, m.movies, bson.M{})
}

func (m *Mongo) ListShows(ctx context.Context) ([]*TrackedShow, error) {
	return findAll[TrackedShow](ctx, m.shows, bson.M{})
}

func (m *Mongo) MoviesForUser(ctx context.Context, userID int64) ([]*TrackedMovie, error) {
	return findAll[TrackedMovie](ctx, m.movies, bson.M{"subscribers": userID})
}

func (m *Mongo) ShowsForUser(ctx context.Context, userID int64) ([]*TrackedShow, error) {
	return findAll[TrackedShow](ctx, m.shows, bson.M{"subscribers": userID})
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M) ([]*T, error) {
	cursor, err := col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []*T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) DeleteMovie(ctx context.Context, movieID int64) (*TrackedMovie, error) {
	var movie TrackedMovie
	err := m.movies.FindOneAndDelete(ctx, bson.M{"_id": movieID}).Decode(&movie)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// UpdateShow applies fn with optimistic concurrency on the episode marker
func (m *Mongo) UpdateShow(ctx context.Context, showID int64, fn func(show *TrackedShow) bool) (*TrackedShow, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var show TrackedShow
		err := m.shows.FindOne(ctx, bson.M{"_id": showID}).Decode(&show)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		prevSeason, prevEpisode := show.LastSeason, show.LastEpisode
		if !fn(&show) {
			return &show, nil
		}
		show.UpdatedAt = time.Now()

		res, err := m.shows.UpdateOne(ctx,
			bson.M{"_id": showID, "last_season": prevSeason, "last_episode": prevEpisode},
			bson.M{"$set": bson.M{
				"title":        show.Title,
				"last_season":  show.LastSeason,
				"last_episode": show.LastEpisode,
				"updated_at":   show.UpdatedAt,
			}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return &show, nil
		}
	}
	return nil, fmt.Errorf("failed to update show %d: concurrent modification", showID)
}

func (m *Mongo) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	users, err := m.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	movies, err := m.movies.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	shows, err := m.shows.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats.Users, stats.Movies, stats.Shows = int(users), int(movies), int(shows)

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"n":   bson.M{"$sum": bson.M{"$size": bson.M{"$ifNull": bson.A{"$subscribers", bson.A{}}}}},
		}}},
	}
	for _, col := range []*mongo.Collection{m.movies, m.shows} {
		cursor, err := col.Aggregate(ctx, pipeline)
		if err != nil {
			return stats, err
		}
		var rows []struct {
			N int `bson:"n"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return stats, err
		}
		for _, row := range rows {
			stats.Subscriptions += row.N
		}
	}
	return stats, nil
}
