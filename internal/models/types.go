package models

// MediaType represents the type of media (movie or tv show)
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// MovieStatus is the upstream lifecycle state of a movie
type MovieStatus string

const (
	MovieStatusReleased   MovieStatus = "released"
	MovieStatusUnreleased MovieStatus = "unreleased"
	MovieStatusUnknown    MovieStatus = "unknown"
)

// NotificationKind identifies which transition produced a notification
type NotificationKind string

const (
	NotificationMovieReleased   NotificationKind = "movie_released"
	NotificationSeasonReleased  NotificationKind = "season_released"
	NotificationEpisodeReleased NotificationKind = "episode_released"
)

// MovieInfo is normalized movie metadata from the title lookup service
type MovieInfo struct {
	ID        int64
	Title     string
	Status    MovieStatus
	PosterURL string // empty when upstream has no poster
}

// EpisodeInfo describes the most recently aired episode of a show
type EpisodeInfo struct {
	Season   int
	Episode  int
	StillURL string
}

// ShowInfo is normalized TV show metadata from the title lookup service
type ShowInfo struct {
	ID            int64
	Name          string
	LastAired     *EpisodeInfo   // nil when nothing has aired yet
	SeasonPosters map[int]string // keyed by season number
}

// TitleRef points at a title in the lookup service
type TitleRef struct {
	ID   int64
	Kind MediaType
}

// SearchResult is a single title search match
type SearchResult struct {
	TitleRef
	Title string
	Year  string
}

// Notification is a single message owed to one subscriber
type Notification struct {
	UserID   int64
	TitleID  int64
	Kind     NotificationKind
	Caption  string
	ImageURL string // empty when no image should be attached
}

// Stats summarizes the store contents
type Stats struct {
	Users         int `json:"users"`
	Movies        int `json:"movies"`
	Shows         int `json:"shows"`
	Subscriptions int `json:"subscriptions"`
}
