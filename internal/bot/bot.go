package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amaumene/releasebot/internal/controllers"
	"github.com/amaumene/releasebot/internal/models"
	"github.com/amaumene/releasebot/internal/services/telegram"
	"github.com/amaumene/releasebot/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

const searchLimit = 5

const (
	msgWelcome          = "Hello! I'm a bot for tracking releases of new shows"
	msgInvalidLink      = "Invalid link"
	msgAlreadyReleased  = "The movie was already released"
	msgTrackUsage       = "Command is not in the format '/track {url}'"
	msgUntrackUsage     = "Command is not in the format '/untrack {url}'"
	msgSearchUsage      = "Command is not in the format '/search {title}'"
	msgNothingFound     = "Nothing found"
	msgChoose           = "Choose a title to track:"
	msgNotTracking      = "You are not tracking this title"
	msgStoppedTracking  = "Stopped tracking this title"
	msgSomethingWrong   = "Something went wrong, please try again later"
	msgUnknownSelection = "This button is no longer valid"
)

const helpText = `Send me a link to a movie or TV show on IMDb or TMDB, or just its title.

/track <link> - track a movie or TV show
/search <title> - search for a title to track
/shows - list what you are tracking
/untrack <link> - stop tracking a title
/help - show this message`

// Sender is the part of the Telegram client the bot replies through
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendChoices(ctx context.Context, chatID int64, text string, buttons []telegram.Button) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Lookup resolves links and search queries to titles
type Lookup interface {
	controllers.TitleLookup
	FindByIMDB(ctx context.Context, imdbID string) (models.TitleRef, error)
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Bot handles chat commands and button presses
type Bot struct {
	store    models.Store
	registry *controllers.Registry
	lookup   Lookup
	sender   Sender
	logger   *logrus.Logger
}

// NewBot creates a new bot
func NewBot(store models.Store, registry *controllers.Registry, lookup Lookup, sender Sender, logger *logrus.Logger) *Bot {
	return &Bot{
		store:    store,
		registry: registry,
		lookup:   lookup,
		sender:   sender,
		logger:   logger,
	}
}

// Run handles updates until ctx is cancelled or the channel is closed. Each
// update is handled in its own goroutine; Run waits for them before returning.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg conc.WaitGroup
	defer wg.Wait()

	b.logger.Info("Listening for Telegram updates")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Go(func() {
				b.HandleUpdate(ctx, update)
			})
		}
	}
}

// HandleUpdate dispatches a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("update_id", update.UpdateID).Errorf("Panic while handling update: %v", r)
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if err := b.store.EnsureUser(ctx, userID); err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Error("Failed to register user")
		b.reply(ctx, chatID, msgSomethingWrong)
		return
	}

	if !msg.IsCommand() {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}
		if _, ok := utils.ParseTitleLink(text); ok {
			b.reply(ctx, chatID, b.trackLink(ctx, text, userID))
			return
		}
		b.search(ctx, chatID, userID, text)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	b.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"command": msg.Command(),
	}).Debug("Handling command")

	switch msg.Command() {
	case "start":
		b.reply(ctx, chatID, msgWelcome)
	case "track":
		if args == "" || strings.ContainsAny(args, " \n") {
			b.reply(ctx, chatID, msgTrackUsage)
			return
		}
		b.reply(ctx, chatID, b.trackLink(ctx, args, userID))
	case "search":
		if args == "" {
			b.reply(ctx, chatID, msgSearchUsage)
			return
		}
		b.search(ctx, chatID, userID, args)
	case "shows":
		b.reply(ctx, chatID, b.trackedList(ctx, userID))
	case "untrack":
		if args == "" {
			b.reply(ctx, chatID, msgUntrackUsage)
			return
		}
		b.reply(ctx, chatID, b.untrackLink(ctx, args, userID))
	default:
		b.reply(ctx, chatID, helpText)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	userID := cb.From.ID
	chatID := userID
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	}

	ref, ok := parseCallbackData(cb.Data)
	if !ok {
		b.answer(ctx, cb.ID, msgUnknownSelection)
		return
	}

	if err := b.store.EnsureUser(ctx, userID); err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Error("Failed to register user")
		b.answer(ctx, cb.ID, msgSomethingWrong)
		return
	}

	text := b.track(ctx, ref, userID)
	b.answer(ctx, cb.ID, text)
	b.reply(ctx, chatID, text)
}

// trackLink resolves a link and tracks the title it points to
func (b *Bot) trackLink(ctx context.Context, text string, userID int64) string {
	ref, reply := b.resolveLink(ctx, text)
	if reply != "" {
		return reply
	}
	return b.track(ctx, ref, userID)
}

func (b *Bot) untrackLink(ctx context.Context, text string, userID int64) string {
	ref, reply := b.resolveLink(ctx, text)
	if reply != "" {
		return reply
	}

	removed, err := b.registry.Untrack(ctx, ref, userID)
	if err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Error("Failed to untrack title")
		return msgSomethingWrong
	}
	if !removed {
		return msgNotTracking
	}
	return msgStoppedTracking
}

// resolveLink turns a link into a title reference. A non-empty reply means
// the link could not be resolved and the reply should be sent instead.
func (b *Bot) resolveLink(ctx context.Context, text string) (models.TitleRef, string) {
	link, ok := utils.ParseTitleLink(text)
	if !ok {
		return models.TitleRef{}, msgInvalidLink
	}
	if link.IMDbID == "" {
		return link.Ref, ""
	}

	ref, err := b.lookup.FindByIMDB(ctx, link.IMDbID)
	if errors.Is(err, models.ErrNotFound) {
		return models.TitleRef{}, msgInvalidLink
	}
	if err != nil {
		b.logger.WithError(err).WithField("imdb_id", link.IMDbID).Error("Failed to resolve IMDb link")
		return models.TitleRef{}, msgSomethingWrong
	}
	return ref, ""
}

// track fetches fresh metadata and subscribes the user, returning the reply
func (b *Bot) track(ctx context.Context, ref models.TitleRef, userID int64) string {
	var title string
	var err error

	switch ref.Kind {
	case models.MediaTypeMovie:
		var info *models.MovieInfo
		if info, err = b.lookup.LookupMovie(ctx, ref.ID); err == nil {
			title = info.Title
			err = b.registry.TrackMovie(ctx, info, userID)
		}
	case models.MediaTypeTV:
		var info *models.ShowInfo
		if info, err = b.lookup.LookupShow(ctx, ref.ID); err == nil {
			title = info.Name
			err = b.registry.TrackShow(ctx, info, userID)
		}
	default:
		return msgInvalidLink
	}

	switch {
	case err == nil:
		return fmt.Sprintf("Started tracking %s", title)
	case errors.Is(err, models.ErrAlreadyReleased):
		return msgAlreadyReleased
	case errors.Is(err, models.ErrAlreadyTracking):
		return fmt.Sprintf("You are already tracking %s", title)
	case errors.Is(err, models.ErrNotFound):
		return msgInvalidLink
	default:
		b.logger.WithError(err).WithFields(logrus.Fields{
			"kind":    ref.Kind,
			"id":      ref.ID,
			"user_id": userID,
		}).Error("Failed to track title")
		return msgSomethingWrong
	}
}

func (b *Bot) search(ctx context.Context, chatID, userID int64, query string) {
	results, err := b.lookup.Search(ctx, query, searchLimit)
	if err != nil {
		b.logger.WithError(err).WithField("query", query).Error("Search failed")
		b.reply(ctx, chatID, msgSomethingWrong)
		return
	}
	if len(results) == 0 {
		b.reply(ctx, chatID, msgNothingFound)
		return
	}

	buttons := make([]telegram.Button, 0, len(results))
	for _, r := range results {
		label := r.Title
		if r.Year != "" {
			label += " (" + r.Year + ")"
		}
		if r.Kind == models.MediaTypeTV {
			label += " [TV]"
		}
		if tracked, err := b.store.IsSubscribed(ctx, r.TitleRef, userID); err == nil && tracked {
			label = "✓ " + label
		}
		buttons = append(buttons, telegram.Button{Text: label, Data: callbackData(r.TitleRef)})
	}

	if err := b.sender.SendChoices(ctx, chatID, msgChoose, buttons); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send search results")
	}
}

// trackedList renders the user's movies and shows
func (b *Bot) trackedList(ctx context.Context, userID int64) string {
	movies, err := b.store.MoviesForUser(ctx, userID)
	if err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Error("Failed to list movies")
		return msgSomethingWrong
	}
	shows, err := b.store.ShowsForUser(ctx, userID)
	if err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Error("Failed to list shows")
		return msgSomethingWrong
	}

	movieTitles := make([]string, 0, len(movies))
	for _, m := range movies {
		movieTitles = append(movieTitles, m.Title)
	}
	showTitles := make([]string, 0, len(shows))
	for _, s := range shows {
		showTitles = append(showTitles, s.Title)
	}
	sort.Strings(movieTitles)
	sort.Strings(showTitles)

	var sb strings.Builder
	sb.WriteString("Movies:\n")
	for _, title := range movieTitles {
		sb.WriteString("- " + title + "\n")
	}
	sb.WriteString("TV shows:\n")
	for _, title := range showTitles {
		sb.WriteString("- " + title + "\n")
	}
	return sb.String()
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendText(ctx, chatID, text); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send reply")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.sender.AnswerCallback(ctx, callbackID, text); err != nil {
		b.logger.WithError(err).Debug("Failed to answer callback")
	}
}

// callbackData encodes a title as "track:<kind>:<id>"
func callbackData(ref models.TitleRef) string {
	return fmt.Sprintf("track:%s:%d", ref.Kind, ref.ID)
}

func parseCallbackData(data string) (models.TitleRef, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "track" {
		return models.TitleRef{}, false
	}
	kind := models.MediaType(parts[1])
	if kind != models.MediaTypeMovie && kind != models.MediaTypeTV {
		return models.TitleRef{}, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return models.TitleRef{}, false
	}
	return models.TitleRef{ID: id, Kind: kind}, true
}
