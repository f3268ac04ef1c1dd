// Package telegram presents swipe cards in Telegram chats using the go-telegram/bot library.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"songswipe/internal/chat"
	"songswipe/internal/core"
	"songswipe/internal/flood"
	"songswipe/internal/i18n"
	"songswipe/internal/session"
)

const (
	// SessionPrefix marks session ids owned by this frontend
	SessionPrefix = "tg:"
	// CallbackPrefix starts the data of every card button
	CallbackPrefix = "swipe:"

	actionLike    = "like"
	actionDislike = "dislike"
	actionRetry   = "retry"

	sendTimeout = 10 * time.Second
)

// Config holds Telegram-specific configuration
type Config struct {
	BotToken string
	Enabled  bool
	Language string // Bot language for user-facing messages
}

// ThrottleRecorder counts rejected updates.
type ThrottleRecorder interface {
	RecordThrottled(frontend string)
}

type Option func(*Frontend)

// WithArtistSearch enables /seeds name lookup.
func WithArtistSearch(s core.ArtistSearcher) Option {
	return func(f *Frontend) { f.artists = s }
}

func WithLimiter(l *flood.Limiter) Option {
	return func(f *Frontend) { f.limiter = l }
}

func WithThrottleRecorder(r ThrottleRecorder) Option {
	return func(f *Frontend) { f.throttled = r }
}

// Frontend implements chat.Frontend for Telegram
type Frontend struct {
	config    *Config
	logger    *zap.Logger
	bot       *bot.Bot
	localizer *i18n.Localizer
	sessions  *session.Manager
	artists   core.ArtistSearcher
	limiter   *flood.Limiter
	throttled ThrottleRecorder

	// chat id -> message id of the card buttons act on
	cardsMu sync.Mutex
	cards   map[int64]int
}

var _ chat.Frontend = (*Frontend)(nil)

// NewFrontend creates a new Telegram frontend
func NewFrontend(config *Config, sessions *session.Manager, logger *zap.Logger, opts ...Option) *Frontend {
	language := config.Language
	if language == "" {
		language = i18n.DefaultLanguage
	}

	f := &Frontend{
		config:    config,
		logger:    logger.Named("telegram"),
		localizer: i18n.NewLocalizer(language),
		sessions:  sessions,
		cards:     make(map[int64]int),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start creates the bot and checks the token
func (f *Frontend) Start(_ context.Context) error {
	if !f.config.Enabled {
		f.logger.Info("Telegram frontend is disabled, skipping initialization")
		return nil
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(f.handleUpdate),
		bot.WithCallbackQueryDataHandler(CallbackPrefix, bot.MatchTypePrefix, f.handleCallback),
	}

	b, err := bot.New(f.config.BotToken, opts...)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	f.bot = b

	f.logger.Info("Telegram frontend started successfully")
	return nil
}

// Run polls for updates until ctx is done
func (f *Frontend) Run(ctx context.Context) error {
	if !f.config.Enabled || f.bot == nil {
		return nil
	}
	f.bot.Start(ctx)
	return nil
}

// AfterCommit redraws the card once a swipe decision was applied. Sessions of other frontends are ignored.
func (f *Frontend) AfterCommit(s *session.Session, d core.Decision, err error) {
	chatID, ok := ChatIDFromSession(s.ID)
	if !ok || f.bot == nil {
		return
	}
	if err != nil {
		f.logger.Debug("Decision failed, showing error card",
			zap.Int64("chat_id", chatID), zap.String("decision", d.String()), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	f.showCard(ctx, chatID, s.Controller.State(), true)
}

// SessionID maps a chat to its swipe session.
func SessionID(chatID int64) string {
	return SessionPrefix + strconv.FormatInt(chatID, 10)
}

// ChatIDFromSession is the inverse of SessionID.
func ChatIDFromSession(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, SessionPrefix)
	if !ok {
		return 0, false
	}
	chatID, err := strconv.ParseInt(rest, 10, 64)
	return chatID, err == nil
}

func (f *Frontend) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message != nil {
		f.handleMessage(ctx, update.Message)
	}
}

func (f *Frontend) handleMessage(ctx context.Context, msg *models.Message) {
	if msg.From != nil && msg.From.IsBot {
		return
	}

	cmd, ok := chat.ParseCommand(msg.Text)
	if !ok {
		return
	}

	chatID := msg.Chat.ID
	if !f.allow(chatID) {
		f.sendText(ctx, chatID, f.localizer.T("error.rate_limited"))
		return
	}

	s := f.sessions.Get(SessionID(chatID))
	f.logger.Debug("Command received", zap.Int64("chat_id", chatID), zap.String("command", cmd.Name))

	switch cmd.Name {
	case "start":
		f.sendText(ctx, chatID, f.localizer.T("bot.welcome"))
		if err := s.Controller.Start(ctx); err != nil {
			f.logger.Warn("Initial working set failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		f.showCard(ctx, chatID, s.Controller.State(), false)
	case "next":
		f.handleNext(ctx, chatID, s)
	case "seeds":
		f.handleSeeds(ctx, chatID, s, chat.SplitNames(cmd.Args))
	case "clear":
		s.Gesture.Stop()
		if err := s.Controller.SetSeedArtists(ctx, nil); err != nil {
			f.logger.Warn("Rebuild after clearing seeds failed", zap.Error(err))
		}
		f.showCard(ctx, chatID, s.Controller.State(), false)
	case "retry":
		if err := s.Controller.Retry(ctx); err != nil {
			f.logger.Warn("Retry failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		f.showCard(ctx, chatID, s.Controller.State(), false)
	default:
		f.sendText(ctx, chatID, f.localizer.T("bot.help"))
	}
}

func (f *Frontend) handleNext(ctx context.Context, chatID int64, s *session.Session) {
	st := s.Controller.State()
	if st.Track == nil {
		f.showCard(ctx, chatID, st, false)
		return
	}
	if !s.Gesture.Press(core.DecisionDislike) {
		f.sendText(ctx, chatID, f.localizer.T("callback.busy"))
	}
}

func (f *Frontend) handleSeeds(ctx context.Context, chatID int64, s *session.Session, names []string) {
	if len(names) == 0 {
		f.sendText(ctx, chatID, f.localizer.T("error.seeds.missing"))
		return
	}

	artists, err := chat.ResolveArtists(ctx, f.artists, names)
	var unknown *chat.UnknownArtistError
	switch {
	case errors.As(err, &unknown):
		f.sendText(ctx, chatID, f.localizer.T("error.seeds.unknown", unknown.Name))
		return
	case err != nil:
		f.logger.Warn("Artist lookup failed", zap.Error(err))
		f.sendText(ctx, chatID, f.localizer.T("error.provider"))
		return
	}

	s.Gesture.Stop()
	if err := s.Controller.SetSeedArtists(ctx, artists); err != nil {
		f.logger.Warn("Rebuild after new seeds failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	f.sendText(ctx, chatID, f.localizer.T("success.seeds_updated", chat.ArtistNames(artists)))
	f.showCard(ctx, chatID, s.Controller.State(), false)
}

func (f *Frontend) handleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	if cq.Message.Message == nil {
		f.answer(ctx, b, cq.ID, f.localizer.T("callback.expired"))
		return
	}
	chatID := cq.Message.Message.Chat.ID

	if !f.allow(chatID) {
		f.answer(ctx, b, cq.ID, f.localizer.T("error.rate_limited"))
		return
	}

	cb, ok := parseCallback(cq.Data)
	if !ok {
		f.answer(ctx, b, cq.ID, f.localizer.T("callback.expired"))
		return
	}

	if cb.action == actionRetry {
		s := f.sessions.Get(SessionID(chatID))
		f.answer(ctx, b, cq.ID, f.localizer.T("callback.received"))
		if err := s.Controller.Retry(ctx); err != nil {
			f.logger.Warn("Retry failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		f.rememberCard(chatID, cq.Message.Message.ID)
		f.showCard(ctx, chatID, s.Controller.State(), true)
		return
	}

	text, accepted := f.press(chatID, cb)
	if accepted {
		f.rememberCard(chatID, cq.Message.Message.ID)
	}
	f.answer(ctx, b, cq.ID, text)

	f.logger.Debug("Swipe pressed",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", cq.From.ID),
		zap.String("action", cb.action),
		zap.Bool("accepted", accepted))
}

// press applies a like or dislike button to the card it was rendered for and returns the
// callback answer. Buttons on cards of a session that no longer exists are expired.
func (f *Frontend) press(chatID int64, cb callback) (string, bool) {
	s, ok := f.sessions.Lookup(SessionID(chatID))
	if !ok {
		return f.localizer.T("callback.expired"), false
	}

	st := s.Controller.State()
	if st.Track == nil || st.Version != cb.version || st.Index != cb.index {
		return f.localizer.T("callback.expired"), false
	}

	d := cb.decision()
	if !s.Gesture.Press(d) {
		return f.localizer.T("callback.busy"), false
	}

	key := "success.liked"
	if d == core.DecisionDislike {
		key = "success.disliked"
	}
	return f.localizer.T(key, st.Track.ArtistName, st.Track.Title), true
}

// showCard edits the chat's card in place when replace is set, otherwise posts a new one.
func (f *Frontend) showCard(ctx context.Context, chatID int64, st session.Status, replace bool) {
	if f.bot == nil {
		return
	}
	text, markup := renderCard(f.localizer, st)
	disabled := true
	previews := &models.LinkPreviewOptions{IsDisabled: &disabled}

	if replace {
		if msgID, ok := f.cardFor(chatID); ok {
			edit := &bot.EditMessageTextParams{
				ChatID:             chatID,
				MessageID:          msgID,
				Text:               text,
				LinkPreviewOptions: previews,
			}
			if markup != nil {
				edit.ReplyMarkup = markup
			}
			_, err := f.bot.EditMessageText(ctx, edit)
			if err == nil {
				return
			}
			f.logger.Debug("Card edit failed, sending a new one", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}

	params := &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		LinkPreviewOptions: previews,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	msg, err := f.bot.SendMessage(ctx, params)
	if err != nil {
		f.logger.Warn("Failed to send card", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	f.rememberCard(chatID, msg.ID)
}

func (f *Frontend) sendText(ctx context.Context, chatID int64, text string) {
	if f.bot == nil {
		return
	}
	disabled := true
	_, err := f.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	})
	if err != nil {
		f.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (f *Frontend) answer(ctx context.Context, b *bot.Bot, callbackQueryID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
	if err != nil {
		f.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

func (f *Frontend) allow(chatID int64) bool {
	if f.limiter == nil || f.limiter.Allow(SessionID(chatID)) {
		return true
	}
	if f.throttled != nil {
		f.throttled.RecordThrottled("telegram")
	}
	return false
}

func (f *Frontend) rememberCard(chatID int64, msgID int) {
	f.cardsMu.Lock()
	f.cards[chatID] = msgID
	f.cardsMu.Unlock()
}

func (f *Frontend) cardFor(chatID int64) (int, bool) {
	f.cardsMu.Lock()
	defer f.cardsMu.Unlock()
	id, ok := f.cards[chatID]
	return id, ok
}

// renderCard returns the card text and its buttons. Swipe buttons carry the working set
// version and index so presses on an outdated card can be told apart.
func renderCard(l *i18n.Localizer, st session.Status) (string, *models.InlineKeyboardMarkup) {
	switch {
	case st.Track != nil:
		keyboard := [][]models.InlineKeyboardButton{
			{
				{
					Text:         l.T("button.dislike"),
					CallbackData: callbackData(actionDislike, st.Version, st.Index),
				},
				{
					Text:         l.T("button.like"),
					CallbackData: callbackData(actionLike, st.Version, st.Index),
				},
			},
		}
		return chat.CardText(l, *st.Track), &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	case st.Error != "":
		keyboard := [][]models.InlineKeyboardButton{
			{{Text: l.T("button.retry"), CallbackData: callbackData(actionRetry, st.Version, st.Index)}},
		}
		return st.Error, &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	case st.Loading:
		return l.T("status.loading"), nil
	default:
		return l.T("status.no_track"), nil
	}
}

type callback struct {
	action  string
	version uint64
	index   int
}

func (c callback) decision() core.Decision {
	if c.action == actionLike {
		return core.DecisionLike
	}
	return core.DecisionDislike
}

func callbackData(action string, version uint64, index int) string {
	return fmt.Sprintf("%s%s:%d:%d", CallbackPrefix, action, version, index)
}

func parseCallback(data string) (callback, bool) {
	rest, ok := strings.CutPrefix(data, CallbackPrefix)
	if !ok {
		return callback{}, false
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return callback{}, false
	}

	switch parts[0] {
	case actionLike, actionDislike, actionRetry:
	default:
		return callback{}, false
	}

	version, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return callback{}, false
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return callback{}, false
	}
	return callback{action: parts[0], version: version, index: index}, true
}
