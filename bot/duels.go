package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"git.skobk.in/skobkin/telegram-social-games-bot/duel"
	"git.skobk.in/skobkin/telegram-social-games-bot/storage"
)

var outcomeTexts = map[duel.Outcome]string{
	duel.OutcomeKick:          "Будет произведён кик.",
	duel.OutcomeBanMinute:     "Произведён бан на минуту.",
	duel.OutcomeBanTenMinutes: "Произведён бан на 10 минут.",
	duel.OutcomeBanHour:       "Произведён бан на час.",
	duel.OutcomeBanDay:        "Произведён бан на сутки.",
	duel.OutcomeBanForever:    "Произведён бан навсегда.",
}

func outcomeList() string {
	names := make([]string, 0, len(duel.Outcomes()))
	for _, o := range duel.Outcomes() {
		names = append(names, string(o))
	}
	return strings.Join(names, ", ")
}

func (b *Bot) challenge(ctx context.Context, chatID, userID int64, ref string) {
	if ref == "" {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: дуэль {ссылка}"))
		return
	}

	d, err := b.duels.Challenge(chatID, userID, ref)
	switch {
	case errors.Is(err, duel.ErrDuelInProgress):
		b.sendMessage(ctx, chatID, mdf(":x:В чате уже идёт дуэль."))
	case errors.Is(err, duel.ErrTargetNotFound):
		b.sendMessage(ctx, chatID, mdf(":x:Не удалось найти пользователя по указанной ссылке/имени."))
	case errors.Is(err, duel.ErrSelfTarget):
		b.sendMessage(ctx, chatID, mdf(":x:Нельзя вызвать себя на дуэль!"))
	case err != nil:
		b.internalError(ctx, chatID, "challenge", err)
	default:
		b.sendMessage(ctx, chatID, mdf(":crossed_swords:%s вызывает %s на дуэль!\n%s, ответьте командами «Дуэль да» или «Дуэль нет».",
			b.nameOf(chatID, d.ChallengerID), b.nameOf(chatID, d.TargetID), b.mentionOf(chatID, d.TargetID)))
	}
}

func (b *Bot) challengeRandom(ctx context.Context, chatID, userID int64) {
	d, err := b.duels.ChallengeRandom(chatID, userID)
	switch {
	case errors.Is(err, duel.ErrDuelInProgress):
		b.sendMessage(ctx, chatID, mdf(":x:В чате уже идёт дуэль."))
	case errors.Is(err, duel.ErrNotEnoughParticipants):
		b.sendMessage(ctx, chatID, mdf(":x:Недостаточно участников для дуэли."))
	case err != nil:
		b.internalError(ctx, chatID, "random challenge", err)
	default:
		b.sendMessage(ctx, chatID, mdf(":crossed_swords:%s приглашает %s на дуэль!\n%s, ответьте «Дуэль да» или «Дуэль нет».",
			b.nameOf(chatID, d.ChallengerID), b.nameOf(chatID, d.TargetID), b.mentionOf(chatID, d.TargetID)))
	}
}

// pendingReply maps errors of a pending challenge answer
func (b *Bot) pendingReply(ctx context.Context, chatID int64, op string, err error) {
	switch {
	case errors.Is(err, duel.ErrNoDuel):
		b.sendMessage(ctx, chatID, mdf(":x:Нет активных вызовов дуэли."))
	case errors.Is(err, duel.ErrNoChallenge):
		b.sendMessage(ctx, chatID, mdf(":x:У вас нет вызова на дуэль."))
	case errors.Is(err, duel.ErrNotChallenger):
		b.sendMessage(ctx, chatID, mdf(":x:Только инициатор может отменить вызов."))
	default:
		b.internalError(ctx, chatID, op, err)
	}
}

func (b *Bot) acceptDuel(ctx context.Context, chatID, userID int64) {
	d, err := b.duels.Accept(chatID, userID)
	if err != nil {
		b.pendingReply(ctx, chatID, "accept duel", err)
		return
	}

	b.sendMessage(ctx, chatID, mdf(":crossed_swords:Дуэль между %s и %s началась!\nПервый ход у %s. Команды: «Выстрел», «Прицелиться», «Сбросить прицел».",
		b.nameOf(chatID, d.ChallengerID), b.nameOf(chatID, d.TargetID), b.mentionOf(chatID, d.TurnID)))
}

func (b *Bot) declineDuel(ctx context.Context, chatID, userID int64) {
	if _, err := b.duels.Decline(chatID, userID); err != nil {
		b.pendingReply(ctx, chatID, "decline duel", err)
		return
	}

	b.sendMessage(ctx, chatID, mdf(":x:Вызов на дуэль отклонён."))
}

func (b *Bot) cancelDuel(ctx context.Context, chatID, userID int64) {
	if _, err := b.duels.Cancel(chatID, userID); err != nil {
		b.pendingReply(ctx, chatID, "cancel duel", err)
		return
	}

	b.sendMessage(ctx, chatID, mdf(":x:Вызов на дуэль отменён."))
}

// turnReply maps errors of in-duel actions. Outsiders and chats without an
// active duel get no reply.
func (b *Bot) turnReply(ctx context.Context, chatID int64, op string, err error) {
	switch {
	case errors.Is(err, duel.ErrNoDuel), errors.Is(err, duel.ErrNotParticipant):
		slog.Debug("bot: Duel action ignored", "op", op, "chat_id", chatID, "reason", err)
	case errors.Is(err, duel.ErrNotYourTurn):
		b.sendMessage(ctx, chatID, mdf(":x:Сейчас не ваш ход."))
	default:
		b.internalError(ctx, chatID, op, err)
	}
}

func (b *Bot) aim(ctx context.Context, chatID, userID int64) {
	bonus, err := b.duels.Aim(chatID, userID)
	if err != nil {
		b.turnReply(ctx, chatID, "aim", err)
		return
	}

	b.sendMessage(ctx, chatID, mdf(":dart:%s прицелился. Бонус: %s%%, шанс попадания: %s%%",
		b.nameOf(chatID, userID), bonus, duel.HitChance(bonus)))
}

func (b *Bot) resetAim(ctx context.Context, chatID, userID int64) {
	if err := b.duels.ResetAim(chatID, userID); err != nil {
		b.turnReply(ctx, chatID, "reset aim", err)
		return
	}

	b.sendMessage(ctx, chatID, mdf(":dart:%s сбросил прицел.", b.nameOf(chatID, userID)))
}

func (b *Bot) shoot(ctx context.Context, chatID, userID int64) {
	res, err := b.duels.Shoot(ctx, chatID, userID)
	if err != nil {
		b.turnReply(ctx, chatID, "shoot", err)
		return
	}
	b.metrics.DuelShot(res.Hit)

	shooter := b.nameOf(chatID, userID)
	if !res.Hit {
		b.sendMessage(ctx, chatID, mdf(":sweat_smile:%s выстрелил, но промахнулся!\nСейчас ход у %s.",
			shooter, b.mentionOf(chatID, res.NextTurnID)))
		return
	}

	msg := mdf(":boom:%s выстрелил и попал! Дуэль окончена.", shooter)
	if text, ok := outcomeTexts[res.Outcome]; ok {
		msg += mdf("\n%s", text)
	}
	b.sendMessage(ctx, chatID, msg)

	if _, ok := res.Outcome.BanDuration(); ok {
		b.metrics.BanIssued()
	}
	if res.Outcome == duel.OutcomeKick {
		if err := b.kick(ctx, chatID, res.LoserID); err != nil {
			b.sendMessage(ctx, chatID, mdf(":warning:Не удалось кикнуть %s. Проверьте права бота.", b.nameOf(chatID, res.LoserID)))
		}
	}
}

func (b *Bot) setOutcome(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireAdmin(ctx, chatID, userID, "Только администратор может менять исход дуэли.") {
		return
	}
	if args == "" {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: Дуэли исход {параметр}\nДоступно: %s", outcomeList()))
		return
	}

	o, err := duel.ParseOutcome(args)
	if err != nil {
		b.sendMessage(ctx, chatID, mdf(":x:Неизвестный исход. Доступно: %s", outcomeList()))
		return
	}

	b.duels.SetOutcome(o)
	b.persistSetting(ctx, storage.SettingDuelOutcome, string(o))
	b.sendMessage(ctx, chatID, mdf(":gear:Исход дуэли установлен: %s", o))
}

func (b *Bot) duelStats(ctx context.Context, chatID int64) {
	entries := b.duels.Stats().Snapshot()
	if len(entries) == 0 {
		b.sendMessage(ctx, chatID, mdf(":information_source:Статистика дуэлей пуста."))
		return
	}

	var sb strings.Builder
	sb.WriteString(mdf(":trophy:Статистика дуэлей:\n"))
	for _, e := range entries {
		sb.WriteString(mdf("%s: Выигрышей %s | Проигрышей %s | Ничьих %s\n",
			b.nameOf(chatID, e.UserID), e.Wins, e.Losses, e.Draws))
	}

	b.sendMessage(ctx, chatID, sb.String())
}

func (b *Bot) resetDuelStats(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(ctx, chatID, userID, "Только администратор может сбросить статистику дуэлей.") {
		return
	}

	b.duels.Stats().Reset()
	b.sendMessage(ctx, chatID, mdf(":arrows_counterclockwise:Статистика дуэлей сброшена."))
}
