package notifier

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"groupbuy_market/internal/worker"
	"groupbuy_market/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type TelegramBot struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Run запускает обработку алертов из канала.
func (b *TelegramBot) Run(ctx context.Context, alerts <-chan worker.TierAlert) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case alert, ok := <-alerts:
			if !ok {
				return nil
			}
			if err := b.SendTierAlert(ctx, alert); err != nil {
				logger(ctx).Error("failed to send tier alert", "error", err)
			}
		}
	}
}

// SendTierAlert отправляет сообщение о переходе сделки на новый тир.
func (b *TelegramBot) SendTierAlert(ctx context.Context, alert worker.TierAlert) error {
	text := fmt.Sprintf(
		"📉 <b>PRICE DROP!</b>\n\n"+
			"🛒 <b>Deal:</b> %s\n"+
			"👥 <b>Participants:</b> %d / %d\n"+
			"🎯 <b>Tier:</b> %d–%d (−%.0f%%)\n"+
			"💰 <b>Price:</b> %d (first %d, last %d)",
		alert.Deal.Title,
		alert.Deal.OccupiedCount,
		alert.Deal.TotalCapacity,
		alert.Tier.MinParticipants,
		alert.Tier.MaxParticipants,
		alert.Tier.DiscountPercent,
		alert.Pricing.AvgPrice,
		alert.Pricing.FirstBuyerPrice,
		alert.Pricing.LastBuyerPrice,
	)

	msg := tu.Message(
		tu.ID(b.chatID),
		text,
	).WithParseMode(telego.ModeHTML)

	_, err := b.bot.SendMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}
