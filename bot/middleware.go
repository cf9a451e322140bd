package bot

import (
	"context"
	"log/slog"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

// participantMiddleware refuses banned senders and records everyone else in
// the chat directory
func (b *Bot) participantMiddleware(ctx *th.Context, update telego.Update) error {
	if update.Message != nil && !b.admit(ctx, update.Message) {
		return nil
	}

	return ctx.Next(update)
}

// admit reports whether the message may be handled
func (b *Bot) admit(ctx context.Context, msg *telego.Message) bool {
	if msg.From == nil {
		return true
	}
	user := msg.From

	if b.bans.IsBanned(user.ID) {
		slog.Debug("bot: Message from banned user ignored", "user_id", user.ID, "chat_id", msg.Chat.ID)
		b.metrics.BannedMessage()
		b.sendMessage(ctx, msg.Chat.ID, mdf(":exclamation:Вы забанены и не можете отправлять сообщения. :exclamation:"))
		return false
	}

	p := b.dir.Observe(msg.Chat.ID, user.ID, user.FirstName, user.Username)

	if b.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, b.storeTimeout)
		defer cancel()

		if err := b.store.UpsertParticipant(storeCtx, p); err != nil {
			slog.Error("bot: Cannot persist participant", "error", err,
				"chat_id", p.ChatID, "user_id", p.UserID)
		}
	}

	return true
}
