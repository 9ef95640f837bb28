package models

import "time"

// User represents a Telegram user
type User struct {
	ID        int64     `boltholdKey:"ID" bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// TrackedMovie represents a movie being watched for release
type TrackedMovie struct {
	ID          int64   `boltholdKey:"ID" bson:"_id"` // TMDB movie ID
	Title       string  `bson:"title"`
	Subscribers []int64 `bson:"subscribers"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// HasSubscriber reports whether the user is subscribed
func (m *TrackedMovie) HasSubscriber(userID int64) bool {
	return containsUser(m.Subscribers, userID)
}

// AddSubscriber adds the user and reports whether it was missing
func (m *TrackedMovie) AddSubscriber(userID int64) bool {
	var added bool
	m.Subscribers, added = addUser(m.Subscribers, userID)
	return added
}

// RemoveSubscriber removes the user and reports whether it was present
func (m *TrackedMovie) RemoveSubscriber(userID int64) bool {
	var removed bool
	m.Subscribers, removed = removeUser(m.Subscribers, userID)
	return removed
}

// TrackedShow represents a TV show being watched for new episodes.
// LastSeason and LastEpisode hold the newest episode already announced.
type TrackedShow struct {
	ID          int64   `boltholdKey:"ID" bson:"_id"` // TMDB show ID
	Title       string  `bson:"title"`
	LastSeason  int     `bson:"last_season"`
	LastEpisode int     `bson:"last_episode"`
	Subscribers []int64 `bson:"subscribers"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// HasSubscriber reports whether the user is subscribed
func (s *TrackedShow) HasSubscriber(userID int64) bool {
	return containsUser(s.Subscribers, userID)
}

// AddSubscriber adds the user and reports whether it was missing
func (s *TrackedShow) AddSubscriber(userID int64) bool {
	var added bool
	s.Subscribers, added = addUser(s.Subscribers, userID)
	return added
}

// RemoveSubscriber removes the user and reports whether it was present
func (s *TrackedShow) RemoveSubscriber(userID int64) bool {
	var removed bool
	s.Subscribers, removed = removeUser(s.Subscribers, userID)
	return removed
}

func containsUser(ids []int64, userID int64) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}

func addUser(ids []int64, userID int64) ([]int64, bool) {
	if containsUser(ids, userID) {
		return ids, false
	}
	return append(ids, userID), true
}

func removeUser(ids []int64, userID int64) ([]int64, bool) {
	out := ids[:0]
	removed := false
	for _, id := range ids {
		if id == userID {
			removed = true
			continue
		}
		out = append(out, id)
	}
	return out, removed
}
