package bot

import (
	"context"
	"log/slog"

	t "github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// isAdmin checks whether the user administers the chat
func (b *Bot) isAdmin(ctx context.Context, chatID, userID int64) bool {
	member, err := b.api.GetChatMember(ctx, &t.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		slog.Error("bot: Failed to get chat member", "error", err, "chat_id", chatID, "user_id", userID)
		return false
	}

	switch member.MemberStatus() {
	case t.MemberStatusCreator, t.MemberStatusAdministrator:
		return true
	default:
		return false
	}
}

// requireAdmin replies with denial when the user is not an admin
func (b *Bot) requireAdmin(ctx context.Context, chatID, userID int64, denial string) bool {
	if b.isAdmin(ctx, chatID, userID) {
		return true
	}

	slog.Info("bot: Admin command denied", "chat_id", chatID, "user_id", userID)
	b.sendMessage(ctx, chatID, mdf(":x:%s", denial))
	return false
}

// kick removes the user from the chat but lets them join again
func (b *Bot) kick(ctx context.Context, chatID, userID int64) error {
	err := b.api.BanChatMember(ctx, &t.BanChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		slog.Error("bot: Failed to kick user", "error", err, "chat_id", chatID, "user_id", userID)
		return err
	}

	err = b.api.UnbanChatMember(ctx, &t.UnbanChatMemberParams{
		ChatID:       tu.ID(chatID),
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		slog.Error("bot: Failed to unban kicked user", "error", err, "chat_id", chatID, "user_id", userID)
		return err
	}

	slog.Info("bot: User kicked", "chat_id", chatID, "user_id", userID)
	return nil
}
