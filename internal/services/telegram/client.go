package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/amaumene/releasebot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const pollTimeout = 60

// Button is an inline keyboard button carrying callback data
type Button struct {
	Text string
	Data string
}

// Client wraps the Telegram Bot API
type Client struct {
	bot    *tgbotapi.BotAPI
	logger *logrus.Logger
}

// NewClient authenticates against the Bot API. endpoint may be empty to use
// api.telegram.org, otherwise it must look like "https://host/bot%s/%s".
func NewClient(token, endpoint string, logger *logrus.Logger) (*Client, error) {
	return NewClientWithHTTPClient(token, endpoint, &http.Client{}, logger)
}

// NewClientWithHTTPClient is NewClient with a custom HTTP client
func NewClientWithHTTPClient(token, endpoint string, httpClient tgbotapi.HTTPClient, logger *logrus.Logger) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	if err := tgbotapi.SetLogger(logger.WithField("component", "telegram")); err != nil {
		return nil, fmt.Errorf("failed to set telegram logger: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate telegram bot: %w", err)
	}

	logger.WithField("username", bot.Self.UserName).Info("Authorized on Telegram")
	return &Client{bot: bot, logger: logger}, nil
}

// Username returns the bot's username
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendPhoto sends an image by URL with a caption. Returns
// models.ErrDeliveryRejected when Telegram answers Bad Request.
func (c *Client) SendPhoto(ctx context.Context, userID int64, imageURL, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(imageURL))
	photo.Caption = caption
	_, err := c.bot.Send(photo)
	return classify(err)
}

// SendText sends a plain text message
func (c *Client) SendText(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(tgbotapi.NewMessage(userID, text))
	return classify(err)
}

// SendChoices sends a message with one inline button per row
func (c *Client) SendChoices(ctx context.Context, userID int64, text string, buttons []Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data)))
	}

	msg := tgbotapi.NewMessage(userID, text)
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := c.bot.Send(msg)
	return classify(err)
}

// AnswerCallback acknowledges a button press
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return classify(err)
}

// Updates starts long polling
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	return c.bot.GetUpdatesChan(u)
}

// Stop stops long polling
func (c *Client) Stop() {
	c.bot.StopReceivingUpdates()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
		return fmt.Errorf("telegram: %s: %w", apiErr.Message, models.ErrDeliveryRejected)
	}
	return fmt.Errorf("telegram: %w", err)
}
