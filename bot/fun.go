package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
)

var (
	whoPhrases    = []string{"🔮Я вижу", "🔮Я знаю", "🥠Мне кажется", "🧙Я уверен"}
	infoPhrases   = []string{"🔍Я обнаружил", "🤔По моим данным", "🧐Я подсчитал", "🧮Кажется, я определил"}
	bottlePhrases = []string{
		"🍾 Бутылка решила, что",
		"🎉 Судьба через бутылку: выберите",
		"💫 Бутылка указывает на",
		"🥂 Бутылка выбрала",
	}
)

func (b *Bot) pick(phrases []string) string {
	return phrases[b.rng.IntN(len(phrases))]
}

func (b *Bot) teaRating(ctx context.Context, chatID int64) {
	entries, err := b.tea.Top(ctx, teaTopSize)
	if err != nil {
		b.internalError(ctx, chatID, "tea rating", err)
		return
	}
	if len(entries) == 0 {
		b.sendMessage(ctx, chatID, mdf(":bar_chart:На данный момент нет данных для рейтинга чая. :coffee:"))
		return
	}

	var sb strings.Builder
	sb.WriteString(mdf(":tea:Рейтинг по чаю за неделю:\n"))
	for _, e := range entries {
		name := b.dir.Name(chatID, e.UserID, "Неизвестный")
		sb.WriteString(mdf("%s: %s литров :coffee:\n", mention(name, e.UserID), liters(e.Liters)))
	}

	b.sendMessage(ctx, chatID, sb.String())
}

func liters(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func (b *Bot) drinkTea(ctx context.Context, chatID int64, user *telego.User, kind string) {
	if kind == "" {
		return
	}

	amount, err := b.tea.Drink(ctx, user.ID)
	if err != nil {
		b.internalError(ctx, chatID, "drink tea", err)
		return
	}
	b.metrics.TeaDrunk(amount)

	b.sendMessage(ctx, chatID, mdf(":tea:%s, выпил %s литров чая %s :yum:", user.FirstName, liters(amount), kind))
}

// who names a random chat member, the bot included
func (b *Bot) who(ctx context.Context, chatID int64, subject string) {
	candidates := b.dir.Members(chatID)
	if !containsUser(candidates, b.self.ID) {
		candidates = append(candidates, participants.Participant{ChatID: chatID, UserID: b.self.ID, FirstName: botName})
	}
	chosen := candidates[b.rng.IntN(len(candidates))]

	b.sendMessage(ctx, chatID, mdf("%s, что %s %s :smile:",
		b.pick(whoPhrases), mention(participantName(chosen), chosen.UserID), subject))
}

func containsUser(list []participants.Participant, userID int64) bool {
	for _, p := range list {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (b *Bot) info(ctx context.Context, chatID int64, subject string) {
	percentage := b.rng.IntN(100) + 1

	b.sendMessage(ctx, chatID, mdf(":bulb:%s, что %s составляет %s%% :relieved:",
		b.pick(infoPhrases), subject, percentage))
}

// bottle picks two distinct chat members
func (b *Bot) bottle(ctx context.Context, chatID int64, action string) {
	members := b.dir.Members(chatID)
	if len(members) < 2 {
		b.sendMessage(ctx, chatID, mdf(":x:Нельзя крутануть бутылко, нужно хотя бы два человека. :x:"))
		return
	}

	i := b.rng.IntN(len(members))
	j := b.rng.IntN(len(members) - 1)
	if j >= i {
		j++
	}
	first, second := members[i], members[j]
	name1, name2 := participantName(first), participantName(second)

	var phrase string
	if action != "" {
		phrase = mdf("%s %s %s %s :arrows_counterclockwise:", b.pick(bottlePhrases), name1, action, name2)
	} else {
		phrase = mdf("%s %s и %s :arrows_counterclockwise:", b.pick(bottlePhrases), name1, name2)
	}

	b.sendMessage(ctx, chatID, phrase+mdf("\n%s | %s", mention(name1, first.UserID), mention(name2, second.UserID)))
}
