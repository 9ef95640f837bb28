package controllers

import (
	"context"

	"github.com/amaumene/releasebot/internal/models"
)

// TitleLookup resolves tracked ids to fresh upstream metadata
type TitleLookup interface {
	LookupMovie(ctx context.Context, id int64) (*models.MovieInfo, error)
	LookupShow(ctx context.Context, id int64) (*models.ShowInfo, error)
}

// Gateway delivers messages to users. SendPhoto returns
// models.ErrDeliveryRejected when the platform refuses the photo.
type Gateway interface {
	SendPhoto(ctx context.Context, userID int64, imageURL, caption string) error
	SendText(ctx context.Context, userID int64, text string) error
}
