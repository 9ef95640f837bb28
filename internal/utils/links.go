package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/releasebot/internal/models"
)

var (
	imdbLinkPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?imdb\.com/title/(tt\d+)(?:[/?#].*)?$`)
	tmdbLinkPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?themoviedb\.org/(movie|tv)/(\d+)(?:[-/?#].*)?$`)
)

// TitleLink is a parsed link to a title page. Exactly one of IMDbID and Ref
// is set.
type TitleLink struct {
	IMDbID string
	Ref    models.TitleRef
}

// ParseTitleLink recognizes IMDb title links and TMDB movie or tv links
func ParseTitleLink(text string) (TitleLink, bool) {
	text = strings.TrimSpace(text)

	if m := imdbLinkPattern.FindStringSubmatch(text); m != nil {
		return TitleLink{IMDbID: strings.ToLower(m[1])}, true
	}

	if m := tmdbLinkPattern.FindStringSubmatch(text); m != nil {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return TitleLink{}, false
		}
		kind := models.MediaTypeMovie
		if strings.EqualFold(m[1], "tv") {
			kind = models.MediaTypeTV
		}
		return TitleLink{Ref: models.TitleRef{ID: id, Kind: kind}}, true
	}

	return TitleLink{}, false
}
