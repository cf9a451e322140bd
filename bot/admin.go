package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"git.skobk.in/skobkin/telegram-social-games-bot/duel"
)

// maxBanSeconds caps /ban at the length of a "forever" duel ban
const maxBanSeconds = int(duel.ForeverBan / time.Second)

var startKeyboard = []string{
	"Рис рейтинг чая",
	"Мой брак",
	"Браки",
	"Кто дуэль",
	"Дуэли стата",
	"Дуэль да",
}

const helpText = `Привет! Вот список команд:

Чай: «Чай пить {сорт}», «Рис рейтинг чая»
Браки: «Брак {ссылка}», «Брак да», «Брак нет», «Развод», «Мой брак», «Твой брак {ссылка}», «Браки {страница}», «Брак продлить {дни}»
Дуэли: «Дуэль {ссылка}», «Кто дуэль», «Дуэль да», «Дуэль нет», «Дуэль отмена», «Прицелиться», «Сбросить прицел», «Выстрел», «Дуэли стата»
Разное: «Рис кто …», «Инфа что …», «Крутим бутылко …»
Администраторам: «Поженить пару», «Развести пару», «Сброс браков», «Брак цена продления {число}», «Дуэли исход {параметр}», «!сброс дуэлей», /ban {ID} {секунды}`

func (b *Bot) startHandler(ctx *th.Context, msg telego.Message) error {
	b.start(ctx, msg.Chat.ID)
	return nil
}

func (b *Bot) start(ctx context.Context, chatID int64) {
	slog.Info("bot: /start", "chat_id", chatID)

	message := tu.Message(tu.ID(chatID), mdf(":wave:"+helpText))
	if kb := createReplyKeyboard(startKeyboard); kb != nil {
		message.ReplyMarkup = kb
	}
	b.send(ctx, message)
}

func (b *Bot) banHandler(ctx *th.Context, msg telego.Message) error {
	if msg.From == nil {
		return nil
	}
	b.ban(ctx, msg.Chat.ID, msg.From.ID, msg.Text)
	return nil
}

// ban handles "/ban <user_id> <seconds>"
func (b *Bot) ban(ctx context.Context, chatID, userID int64, text string) {
	if !b.isAdmin(ctx, chatID, userID) {
		b.sendMessage(ctx, chatID, mdf(":exclamation:Только администратор может забанить пользователя. :exclamation:"))
		return
	}

	args := strings.Fields(text)
	if len(args) < 3 {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: /ban <ID пользователя> <время в секундах> :x:"))
		return
	}

	targetID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		b.sendMessage(ctx, chatID, mdf(":x:Неверный формат ID пользователя или времени. :x:"))
		return
	}
	seconds, err := strconv.Atoi(args[2])
	if err != nil || seconds <= 0 || seconds > maxBanSeconds {
		b.sendMessage(ctx, chatID, mdf(":x:Неверный формат ID пользователя или времени. :x:"))
		return
	}

	b.bans.BanUntil(ctx, targetID, time.Duration(seconds)*time.Second)
	b.metrics.BanIssued()

	b.sendMessage(ctx, chatID, mdf(":no_entry_sign:Пользователь %s забанен на %s %s. :no_entry_sign:",
		targetID, seconds, plural(seconds, "секунду", "секунды", "секунд")))
}
