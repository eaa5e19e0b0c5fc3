package service

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// sendInterval is the pause between two deliveries, the Bot API flood
// limit headroom.
const sendInterval = 50 * time.Millisecond

// PayloadKind selects which delivery primitive a broadcast uses.
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadPhoto PayloadKind = "photo"
)

// Button is one link button attached under a broadcast message.
type Button struct {
	Label string
	URL   string
}

// Payload is a finalized broadcast draft. Entities are carried through
// to delivery untouched so the admin's original formatting survives.
type Payload struct {
	Kind PayloadKind

	Text     string
	Entities []tgbotapi.MessageEntity

	PhotoFileID     string
	Caption         string
	CaptionEntities []tgbotapi.MessageEntity

	Buttons []Button
}

// Keyboard builds the inline keyboard delivered with the payload, or
// nil when there are no buttons.
func (p Payload) Keyboard() *tgbotapi.InlineKeyboardMarkup {
	if len(p.Buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(p.Buttons))
	for _, btn := range p.Buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// Result summarizes one dispatch run. Sent + Failed == Total.
type Result struct {
	Total  int
	Sent   int
	Failed int
}

// Sender is the outbound delivery channel, one call per recipient.
type Sender interface {
	SendText(chatID int64, text string, entities []tgbotapi.MessageEntity, markup *tgbotapi.InlineKeyboardMarkup) error
	SendPhoto(chatID int64, fileID, caption string, entities []tgbotapi.MessageEntity, markup *tgbotapi.InlineKeyboardMarkup) error
}

// Directory lists broadcast recipients.
type Directory interface {
	RecipientIDs(ctx context.Context) ([]int64, error)
}

// BroadcastService delivers one payload to every known recipient.
type BroadcastService struct {
	directory Directory
	log       zerolog.Logger
	limiter   *rate.Limiter
}

func NewBroadcastService(directory Directory, log zerolog.Logger) *BroadcastService {
	return &BroadcastService{
		directory: directory,
		log:       log,
		limiter:   rate.NewLimiter(rate.Every(sendInterval), 1),
	}
}

// RecipientCount reports how many users a dispatch would reach right
// now, zero when storage is unavailable.
func (s *BroadcastService) RecipientCount(ctx context.Context) int {
	ids, err := s.directory.RecipientIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("broadcast: list recipients")
		return 0
	}
	return len(ids)
}

// Dispatch sends the payload to every recipient sequentially. Failures
// are classified and counted, never abort the run. A storage failure
// while listing recipients degrades to an empty run.
func (s *BroadcastService) Dispatch(ctx context.Context, sender Sender, payload Payload) Result {
	ids, err := s.directory.RecipientIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("broadcast: list recipients")
		return Result{}
	}
	if len(ids) == 0 {
		return Result{}
	}

	markup := payload.Keyboard()
	result := Result{Total: len(ids)}

	s.log.Info().Int("recipients", len(ids)).Str("kind", string(payload.Kind)).Msg("broadcast started")

	for i, id := range ids {
		// A confirmed run goes to completion; if ctx is cancelled the
		// limiter stops waiting, so keep the pacing with a plain sleep.
		if err := s.limiter.Wait(ctx); err != nil {
			time.Sleep(sendInterval)
		}

		var sendErr error
		switch payload.Kind {
		case PayloadPhoto:
			sendErr = sender.SendPhoto(id, payload.PhotoFileID, payload.Caption, payload.CaptionEntities, markup)
		default:
			sendErr = sender.SendText(id, payload.Text, payload.Entities, markup)
		}

		if sendErr != nil {
			result.Failed++
			s.log.Warn().
				Err(sendErr).
				Int64("user_id", id).
				Int("position", i+1).
				Int("total", result.Total).
				Str("reason", ClassifyDeliveryError(sendErr).String()).
				Msg("broadcast send failed")
			continue
		}

		result.Sent++
		s.log.Info().
			Int64("user_id", id).
			Int("position", i+1).
			Int("total", result.Total).
			Msg("broadcast send ok")
	}

	s.log.Info().
		Int("total", result.Total).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("broadcast finished")

	return result
}
