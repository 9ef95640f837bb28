package controllers

import (
	"context"
	"errors"

	"github.com/amaumene/releasebot/internal/metrics"
	"github.com/amaumene/releasebot/internal/models"
	"github.com/sirupsen/logrus"
)

// DispatchSummary counts how notifications were delivered
type DispatchSummary struct {
	Photo   int `json:"photo"`
	Text    int `json:"text"`
	Dropped int `json:"dropped"`
}

// Total returns the number of notifications handled
func (s DispatchSummary) Total() int {
	return s.Photo + s.Text + s.Dropped
}

// Dispatcher delivers notifications through the messaging gateway
type Dispatcher struct {
	gateway Gateway
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(gateway Gateway, m *metrics.Metrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		gateway: gateway,
		metrics: m,
		logger:  logger,
	}
}

// Dispatch delivers every notification once. A notification that cannot be
// delivered is logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications []models.Notification) DispatchSummary {
	var summary DispatchSummary
	for _, n := range notifications {
		switch d.deliver(ctx, n) {
		case deliveredPhoto:
			summary.Photo++
		case deliveredText:
			summary.Text++
		default:
			summary.Dropped++
		}
	}

	d.logger.WithFields(logrus.Fields{
		"photo":   summary.Photo,
		"text":    summary.Text,
		"dropped": summary.Dropped,
	}).Info("Notifications dispatched")
	return summary
}

const (
	deliveredPhoto = "photo"
	deliveredText  = "text"
	dropped        = "dropped"
)

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) string {
	log := d.logger.WithFields(logrus.Fields{
		"user_id":  n.UserID,
		"title_id": n.TitleID,
		"kind":     n.Kind,
	})

	if n.ImageURL != "" {
		err := d.gateway.SendPhoto(ctx, n.UserID, n.ImageURL, n.Caption)
		if err == nil {
			d.metrics.Delivered(deliveredPhoto)
			return deliveredPhoto
		}
		if !errors.Is(err, models.ErrDeliveryRejected) {
			log.WithError(err).Error("Failed to send photo notification")
			d.metrics.Delivered(dropped)
			return dropped
		}
		log.WithError(err).WithField("image_url", n.ImageURL).Warn("Photo rejected, falling back to text")
	}

	if err := d.gateway.SendText(ctx, n.UserID, n.Caption); err != nil {
		log.WithError(err).Error("Failed to send text notification")
		d.metrics.Delivered(dropped)
		return dropped
	}
	d.metrics.Delivered(deliveredText)
	return deliveredText
}
