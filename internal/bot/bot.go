package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"channelbot/internal/config"
	"channelbot/internal/model"
	"channelbot/internal/repository"
	"channelbot/internal/service"
)

const (
	cbAdminMailing = "admin:mailing"
	cbAdminStats   = "admin:stats"
	cbAdminUsers   = "admin:users"
)

const btnHumanCheck = "Я человек"

// telegramAPI is the slice of *tgbotapi.BotAPI the handlers use.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot aggregates the Telegram API with services.
type Bot struct {
	api          telegramAPI
	userRepo     *repository.UserRepository
	statsSvc     *service.StatsService
	broadcastSvc *service.BroadcastService
	config       *config.Config
	log          zerolog.Logger
	sessions     map[int64]*mailingSession
	mu           sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, statsSvc *service.StatsService, broadcastSvc *service.BroadcastService, cfg *config.Config, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:          api,
		userRepo:     userRepo,
		statsSvc:     statsSvc,
		broadcastSvc: broadcastSvc,
		config:       cfg,
		log:          log,
		sessions:     make(map[int64]*mailingSession),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.ChatJoinRequest != nil:
			if err := b.handleJoinRequest(ctx, update.ChatJoinRequest); err != nil {
				b.log.Error().Err(err).Msg("handle join request")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user_id", msg.From.ID).Str("command", msg.Command()).Msg("command received")
		switch msg.Command() {
		case "start":
			return b.handleStart(ctx, msg)
		case "mailing":
			return b.handleMailingCommand(ctx, msg)
		}
		return nil
	}

	if b.hasSession(msg.From.ID) {
		return b.handleMailingMessage(ctx, msg)
	}

	if strings.TrimSpace(msg.Text) == btnHumanCheck {
		return b.handleHumanCheck(msg)
	}

	return nil
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	if !b.config.IsAdmin(msg.From.ID) {
		b.log.Debug().Int64("user_id", msg.From.ID).Msg("not an admin, panel hidden")
		return nil
	}

	text := fmt.Sprintf("👋 Привет, %s!\n\n🔧 <b>Панель администратора</b>\n\nВыберите действие:", escape(msg.From.FirstName))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, adminPanelKeyboard())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil {
		return nil
	}

	switch {
	case strings.HasPrefix(cb.Data, "admin:"):
		return b.handleAdminCallback(ctx, cb)
	case strings.HasPrefix(cb.Data, "mailing:"):
		return b.handleMailingCallback(ctx, cb)
	default:
		b.ackCallback(cb.ID)
		return nil
	}
}

func (b *Bot) handleAdminCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	b.ackCallback(cb.ID)
	if !b.config.IsAdmin(cb.From.ID) {
		return nil
	}

	switch cb.Data {
	case cbAdminMailing:
		return b.editOrSend(cb, "📧 <b>СИСТЕМА РАССЫЛКИ</b>\n\nОтправьте /mailing, чтобы составить сообщение для рассылки.")
	case cbAdminStats:
		stats := b.statsSvc.Summary(ctx, time.Now())
		return b.editOrSend(cb, formatStats(stats))
	case cbAdminUsers:
		return b.editOrSend(cb, formatRecentUsers(b.statsSvc.Recent(ctx, 10)))
	default:
		return nil
	}
}

func (b *Bot) handleJoinRequest(ctx context.Context, req *tgbotapi.ChatJoinRequest) error {
	from := req.From
	b.log.Info().Int64("user_id", from.ID).Str("username", from.UserName).Msg("join request")

	if _, err := b.userRepo.UpsertFromTelegram(ctx, from.ID, from.UserName, from.FirstName, from.LastName); err != nil {
		b.log.Error().Err(err).Int64("user_id", from.ID).Msg("save user from join request")
	}

	msg := tgbotapi.NewMessage(from.ID, "Для доступа в канал необходимо подтвердить, что вы человек:")
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnHumanCheck)),
	)
	if _, err := b.api.Send(msg); err != nil {
		if service.ClassifyDeliveryError(err) == service.FailureBlocked {
			b.log.Warn().Int64("user_id", from.ID).Msg("user blocked the bot, verification prompt not sent")
			return nil
		}
		return fmt.Errorf("send verification prompt to %d: %w", from.ID, err)
	}
	return nil
}

// handleHumanCheck replies with the reserve channel links once the user
// confirms the human-check button.
func (b *Bot) handleHumanCheck(msg *tgbotapi.Message) error {
	b.log.Info().Int64("user_id", msg.From.ID).Str("username", msg.From.UserName).Msg("human check passed")

	var builder strings.Builder
	builder.WriteString(b.config.VerifyMessage)
	for i, link := range b.config.ReserveLinks {
		builder.WriteString(fmt.Sprintf("Резерв %d – %s\n\n", i+1, link))
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, builder.String())
	reply.ParseMode = tgbotapi.ModeHTML
	reply.DisableWebPagePreview = true
	if _, err := b.api.Send(reply); err != nil {
		if service.ClassifyDeliveryError(err) == service.FailureBlocked {
			b.log.Warn().Int64("user_id", msg.From.ID).Msg("user blocked the bot, links not sent")
			return nil
		}
		return fmt.Errorf("send reserve links to %d: %w", msg.From.ID, err)
	}
	return nil
}

// SendStatsDigest pushes the current user statistics to every admin.
func (b *Bot) SendStatsDigest(ctx context.Context) {
	text := formatStats(b.statsSvc.Summary(ctx, time.Now()))
	for _, id := range b.config.AdminIDs {
		if err := b.sendHTML(id, text); err != nil {
			b.log.Warn().Err(err).Int64("admin_id", id).Msg("send stats digest")
		}
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
}

// SendText delivers one broadcast text message. Entities are passed
// through as-is, without a parse mode.
func (b *Bot) SendText(chatID int64, text string, entities []tgbotapi.MessageEntity, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.Entities = entities
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

// SendPhoto delivers one broadcast photo by its Telegram file ID.
func (b *Bot) SendPhoto(chatID int64, fileID, caption string, entities []tgbotapi.MessageEntity, markup *tgbotapi.InlineKeyboardMarkup) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	photo.CaptionEntities = entities
	if markup != nil {
		photo.ReplyMarkup = markup
	}
	_, err := b.api.Send(photo)
	return err
}

func (b *Bot) sendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

// editOrSend edits the callback's message in place when it is a text
// message, otherwise (photo previews) answers with a new message.
func (b *Bot) editOrSend(cb *tgbotapi.CallbackQuery, text string) error {
	if cb.Message.Text != "" {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		return err
	}
	return b.sendHTML(cb.Message.Chat.ID, text)
}

func (b *Bot) ackCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
}

func (b *Bot) alertCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(id, text)); err != nil {
		b.log.Warn().Err(err).Msg("callback alert")
	}
}

func formatStats(stats service.Stats) string {
	return fmt.Sprintf(
		"📊 <b>СТАТИСТИКА</b>\n\n👥 Всего пользователей: %d\n🆕 Сегодня: %d\n📅 За неделю: %d",
		stats.Total, stats.Today, stats.Week,
	)
}

func formatRecentUsers(users []model.User) string {
	if len(users) == 0 {
		return "👥 Пользователей пока нет"
	}
	var builder strings.Builder
	builder.WriteString("👥 <b>ПОСЛЕДНИЕ ПОЛЬЗОВАТЕЛИ:</b>\n\n")
	for i, user := range users {
		username := "Нет username"
		if user.Username != "" {
			username = "@" + user.Username
		}
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if name == "" {
			name = "Имя не указано"
		}
		builder.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, escape(name), escape(username)))
	}
	return strings.TrimSpace(builder.String())
}

func escape(s string) string {
	return html.EscapeString(s)
}
