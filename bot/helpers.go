package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kyokomi/emoji/v2"
	t "github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
)

// markdown is text that is already valid MarkdownV2 and must not be escaped again
type markdown string

// mdf renders a MarkdownV2 message. The template may contain emoji codes
// (":ring:") and only %s or %v verbs. Arguments are escaped unless they are
// markdown.
func mdf(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, arg := range args {
		if m, ok := arg.(markdown); ok {
			escaped[i] = string(m)
			continue
		}
		escaped[i] = escapeMarkdownV2(fmt.Sprint(arg))
	}

	return fmt.Sprintf(escapeMarkdownV2(emoji.Sprint(format)), escaped...)
}

func escapeMarkdownV2(text string) string {
	specialChars := []string{
		"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!",
	}

	for _, char := range specialChars {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// mention links to a user without showing the username
func mention(name string, userID int64) markdown {
	return markdown(fmt.Sprintf("[%s](tg://user?id=%d)", escapeMarkdownV2(name), userID))
}

// mentionOf links to a participant, using fallback when the user is unknown in the chat
func (b *Bot) mentionOf(chatID, userID int64) markdown {
	return mention(b.dir.Name(chatID, userID, unknownName), userID)
}

func (b *Bot) nameOf(chatID, userID int64) string {
	return b.dir.Name(chatID, userID, unknownName)
}

func participantName(p participants.Participant) string {
	if p.FirstName == "" {
		return unknownName
	}
	return p.FirstName
}

// plural picks the Russian word form for n, e.g. день/дня/дней
func plural(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	switch {
	case n%10 == 1 && n%100 != 11:
		return one
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return few
	default:
		return many
	}
}

func days(n int) string {
	return fmt.Sprintf("%d %s", n, plural(n, "день", "дня", "дней"))
}

func createReplyKeyboard(buttons []string) *t.ReplyKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}

	// Create keyboard with 2 columns
	keyboard := make([][]t.KeyboardButton, 0, (len(buttons)+1)/2)
	for i := 0; i < len(buttons); i += 2 {
		row := make([]t.KeyboardButton, 0, 2)
		row = append(row, t.KeyboardButton{Text: buttons[i]})
		if i+1 < len(buttons) {
			row = append(row, t.KeyboardButton{Text: buttons[i+1]})
		}
		keyboard = append(keyboard, row)
	}

	return &t.ReplyKeyboardMarkup{
		Keyboard:       keyboard,
		ResizeKeyboard: true,
	}
}

// retryAfter extracts the flood wait from a Telegram error.
// Format: "telego: sendMessage: api: 429 \"Too Many Requests: retry after 5\", migrate to chat ID: 0, retry after: 5"
func retryAfter(err error) (time.Duration, bool) {
	if err == nil || !strings.Contains(err.Error(), "Too Many Requests") {
		return 0, false
	}

	parts := strings.Split(err.Error(), "retry after: ")
	if len(parts) != 2 {
		return 0, false
	}

	var seconds int
	if _, _ = fmt.Sscanf(parts[1], "%d", &seconds); seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tu.Message(tu.ID(chatID), text))
}

func (b *Bot) send(ctx context.Context, message *t.SendMessageParams) {
	message.ParseMode = t.ModeMarkdownV2

	_, err := b.api.SendMessage(ctx, message)
	if wait, ok := retryAfter(err); ok {
		slog.Debug("bot: API error", "error", err.Error())
		slog.Info("bot: Rate limit hit, waiting", "seconds", wait.Seconds())

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(wait):
			_, err = b.api.SendMessage(ctx, message)
			if err == nil {
				slog.Info("bot: Message sent successfully after rate limit wait")
			}
		}
	}
	if err != nil {
		slog.Error("bot: Failed to send message", "error", err,
			"chat_id", message.ChatID.ID, "text_length", len(message.Text))
		return
	}

	slog.Debug("bot: Message sent successfully", "chat_id", message.ChatID.ID)
}
