package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channelbot/internal/service"
)

type mailingStage int

const (
	stageAwaitingContent mailingStage = iota
	stagePreviewReady
	stageAwaitingButtonLabel
	stageAwaitingButtonURL
)

const (
	cbMailingAddButton = "mailing:add_button"
	cbMailingConfirm   = "mailing:confirm_send"
	cbMailingCancel    = "mailing:confirm_cancel"
)

const (
	maxMailingButtons = 4
	maxButtonLabelLen = 64
)

var allowedButtonSchemes = []string{"http://", "https://", "tg://"}

var (
	errUnsupportedContent = errors.New("unsupported content kind")
	errLabelEmpty         = errors.New("button label is empty")
	errLabelTooLong       = errors.New("button label too long")
	errBadButtonURL       = errors.New("button url scheme not allowed")
)

// mailingSession is one admin's in-progress broadcast draft.
type mailingSession struct {
	stage        mailingStage
	payload      service.Payload
	pendingLabel string
}

// captureContent records the broadcast payload from the admin's message.
// Only plain text and photos with a caption are accepted; entities are
// kept verbatim so formatting survives to delivery.
func (s *mailingSession) captureContent(msg *tgbotapi.Message) error {
	switch {
	case msg.Text != "":
		s.payload = service.Payload{
			Kind:     service.PayloadText,
			Text:     msg.Text,
			Entities: msg.Entities,
		}
	case len(msg.Photo) > 0:
		// The last size is the largest one.
		photo := msg.Photo[len(msg.Photo)-1]
		s.payload = service.Payload{
			Kind:            service.PayloadPhoto,
			PhotoFileID:     photo.FileID,
			Caption:         msg.Caption,
			CaptionEntities: msg.CaptionEntities,
		}
	default:
		return errUnsupportedContent
	}
	s.stage = stagePreviewReady
	return nil
}

func (s *mailingSession) canAddButton() bool {
	return len(s.payload.Buttons) < maxMailingButtons
}

func (s *mailingSession) setButtonLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return errLabelEmpty
	}
	if utf8.RuneCountInString(label) > maxButtonLabelLen {
		return errLabelTooLong
	}
	s.pendingLabel = label
	s.stage = stageAwaitingButtonURL
	return nil
}

func (s *mailingSession) addButton(url string) error {
	url = strings.TrimSpace(url)
	if !validButtonURL(url) {
		return errBadButtonURL
	}
	s.payload.Buttons = append(s.payload.Buttons, service.Button{Label: s.pendingLabel, URL: url})
	s.pendingLabel = ""
	s.stage = stagePreviewReady
	return nil
}

func validButtonURL(url string) bool {
	for _, scheme := range allowedButtonSchemes {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}

func (b *Bot) handleMailingCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.config.IsAdmin(msg.From.ID) {
		b.log.Debug().Int64("user_id", msg.From.ID).Msg("mailing command from non-admin ignored")
		return nil
	}

	b.setSession(msg.From.ID, &mailingSession{stage: stageAwaitingContent})
	return b.sendHTML(msg.Chat.ID,
		"📧 <b>СИСТЕМА РАССЫЛКИ</b>\n\n"+
			"Отправьте сообщение или фото с подписью для рассылки.\n"+
			"Поддерживается форматирование текста!\n\n"+
			"После отправки вы увидите предварительный просмотр.")
}

func (b *Bot) handleMailingMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.config.IsAdmin(msg.From.ID) {
		b.clearSession(msg.From.ID)
		return b.sendHTML(msg.Chat.ID, "❌ У вас нет прав для использования рассылки.")
	}

	session := b.getSession(msg.From.ID)
	if session == nil {
		return nil
	}

	switch session.stage {
	case stageAwaitingContent:
		if err := session.captureContent(msg); err != nil {
			return b.sendHTML(msg.Chat.ID, "❌ Поддерживаются только текстовые сообщения или фото с подписью.\nПопробуйте еще раз.")
		}
		return b.sendMailingPreview(msg.Chat.ID, session)
	case stageAwaitingButtonLabel:
		switch err := session.setButtonLabel(msg.Text); err {
		case nil:
			return b.sendHTML(msg.Chat.ID, "🔗 <b>ССЫЛКА КНОПКИ</b>\n\nОтправьте ссылку для кнопки (например: https://example.com)")
		case errLabelTooLong:
			return b.sendHTML(msg.Chat.ID, "❌ Название кнопки слишком длинное (максимум 64 символа). Попробуйте еще раз.")
		default:
			return b.sendHTML(msg.Chat.ID, "❌ Отправьте текстовое название кнопки.")
		}
	case stageAwaitingButtonURL:
		if err := session.addButton(msg.Text); err != nil {
			return b.sendHTML(msg.Chat.ID, "❌ Неверный формат ссылки. Ссылка должна начинаться с http://, https:// или tg://")
		}
		return b.sendMailingPreview(msg.Chat.ID, session)
	default:
		// Preview is on screen, waiting for a keyboard action.
		return nil
	}
}

func (b *Bot) handleMailingCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if !b.config.IsAdmin(cb.From.ID) {
		b.clearSession(cb.From.ID)
		b.alertCallback(cb.ID, "❌ У вас нет прав для использования рассылки.")
		return nil
	}

	session := b.getSession(cb.From.ID)

	switch cb.Data {
	case cbMailingAddButton:
		b.ackCallback(cb.ID)
		if session == nil || session.stage != stagePreviewReady || !session.canAddButton() {
			return nil
		}
		session.stage = stageAwaitingButtonLabel
		return b.editOrSend(cb, "📝 <b>ДОБАВЛЕНИЕ КНОПКИ</b>\n\nОтправьте название кнопки (например: «Наш сайт», «Подписаться», «Купить»)")
	case cbMailingConfirm:
		if session == nil || session.stage != stagePreviewReady {
			b.alertCallback(cb.ID, "❌ Данные рассылки не найдены")
			return nil
		}
		return b.runMailing(ctx, cb, session)
	case cbMailingCancel:
		b.ackCallback(cb.ID)
		b.clearSession(cb.From.ID)
		return b.editOrSend(cb, "❌ <b>РАССЫЛКА ОТМЕНЕНА</b>")
	default:
		b.ackCallback(cb.ID)
		return nil
	}
}

func (b *Bot) runMailing(ctx context.Context, cb *tgbotapi.CallbackQuery, session *mailingSession) error {
	// Checked before the preview is touched: with nobody to send to the
	// draft and its keyboard stay intact.
	if b.broadcastSvc.RecipientCount(ctx) == 0 {
		b.alertCallback(cb.ID, "❌ Нет пользователей для рассылки")
		return nil
	}

	b.ackCallback(cb.ID)
	if err := b.editOrSend(cb, "📤 <b>ОТПРАВКА РАССЫЛКИ...</b>\n\nПожалуйста, подождите..."); err != nil {
		b.log.Warn().Err(err).Msg("send mailing placeholder")
	}

	result := b.broadcastSvc.Dispatch(ctx, b, session.payload)
	if result.Total == 0 {
		// Storage went away between the count and the dispatch.
		return b.editOrSend(cb, "❌ Нет пользователей для рассылки")
	}

	b.clearSession(cb.From.ID)
	return b.editOrSend(cb, fmt.Sprintf(
		"✅ <b>РАССЫЛКА ЗАВЕРШЕНА!</b>\n\n"+
			"📊 <b>Статистика:</b>\n"+
			"✅ Успешно отправлено: %d\n"+
			"❌ Ошибок: %d\n"+
			"📈 Всего пользователей: %d",
		result.Sent, result.Failed, result.Total))
}

// sendMailingPreview re-renders the draft exactly as recipients will
// see it, with the action keyboard attached.
func (b *Bot) sendMailingPreview(chatID int64, session *mailingSession) error {
	markup := previewKeyboard(session.payload.Buttons)

	if session.payload.Kind == service.PayloadPhoto {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(session.payload.PhotoFileID))
		photo.Caption = session.payload.Caption
		photo.CaptionEntities = session.payload.CaptionEntities
		photo.ReplyMarkup = markup
		_, err := b.api.Send(photo)
		return err
	}

	msg := tgbotapi.NewMessage(chatID, session.payload.Text)
	msg.Entities = session.payload.Entities
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setSession(userID int64, session *mailingSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[userID] = session
}

func (b *Bot) getSession(userID int64) *mailingSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[userID]
}

func (b *Bot) hasSession(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[userID]
	return ok
}

func (b *Bot) clearSession(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, userID)
}
