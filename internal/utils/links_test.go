package utils

import (
	"testing"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParseTitleLink(t *testing.T) {
	tests := []struct {
		input string
		want  TitleLink
		ok    bool
	}{
		{"https://www.imdb.com/title/tt1160419/", TitleLink{IMDbID: "tt1160419"}, true},
		{"www.imdb.com/title/tt1160419/?ref_=nv_sr_srsg_0", TitleLink{IMDbID: "tt1160419"}, true},
		{"imdb.com/title/tt1160419", TitleLink{IMDbID: "tt1160419"}, true},
		{"https://m.imdb.com/title/tt11280740/episodes", TitleLink{IMDbID: "tt11280740"}, true},
		{"https://www.themoviedb.org/movie/438631-dune", TitleLink{Ref: models.TitleRef{ID: 438631, Kind: models.MediaTypeMovie}}, true},
		{"https://www.themoviedb.org/tv/95396", TitleLink{Ref: models.TitleRef{ID: 95396, Kind: models.MediaTypeTV}}, true},
		{"  https://themoviedb.org/tv/95396-severance/season/2  ", TitleLink{Ref: models.TitleRef{ID: 95396, Kind: models.MediaTypeTV}}, true},
		{"https://www.imdb.com/name/nm0000138/", TitleLink{}, false},
		{"https://www.themoviedb.org/person/1", TitleLink{}, false},
		{"dune", TitleLink{}, false},
		{"", TitleLink{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTitleLink(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
