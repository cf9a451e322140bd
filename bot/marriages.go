package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"git.skobk.in/skobkin/telegram-social-games-bot/marriage"
	"git.skobk.in/skobkin/telegram-social-games-bot/metrics"
	"git.skobk.in/skobkin/telegram-social-games-bot/storage"
)

const extensionTimeLayout = "02.01.2006 15:04:05"

func (b *Bot) propose(ctx context.Context, chatID, userID int64, ref string) {
	if ref == "" {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: брак {ссылка}"))
		return
	}

	p, err := b.marriages.Propose(chatID, userID, ref)
	switch {
	case errors.Is(err, marriage.ErrTargetNotFound):
		b.sendMessage(ctx, chatID, mdf(":x:Не удалось найти пользователя по указанной ссылке/имени."))
	case errors.Is(err, marriage.ErrSelfTarget):
		b.sendMessage(ctx, chatID, mdf(":x:Нельзя предложить брак самому себе!"))
	case errors.Is(err, marriage.ErrProposerMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Вы уже состоите в браке!"))
	case errors.Is(err, marriage.ErrTargetMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Этот пользователь уже состоит в браке!"))
	case err != nil:
		b.internalError(ctx, chatID, "propose", err)
	default:
		target := b.mentionOf(chatID, p.TargetID)
		b.sendMessage(ctx, chatID, mdf(":ring:%s предлагает вступить в брак с %s.\n%s, ответьте командой «Брак да» или «Брак нет».",
			b.nameOf(chatID, userID), b.nameOf(chatID, p.TargetID), target))
	}
}

func (b *Bot) acceptMarriage(ctx context.Context, chatID, userID int64) {
	res, err := b.marriages.Accept(chatID, userID)
	switch {
	case errors.Is(err, marriage.ErrNoProposal):
		b.sendMessage(ctx, chatID, mdf(":x:У вас нет предложений брака."))
	case errors.Is(err, marriage.ErrAlreadyMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Один из участников уже состоит в браке."))
	case err != nil:
		b.internalError(ctx, chatID, "accept marriage", err)
	case res.Reconciled:
		b.metrics.MarriageEvent(metrics.MarriageReconciled)
		b.sendMessage(ctx, chatID, mdf(":ring:Брак восстановлен! Поздравляем, %s и %s!",
			b.mentionOf(chatID, res.ProposerID), b.mentionOf(chatID, userID)))
	default:
		b.metrics.MarriageEvent(metrics.MarriageCreated)
		b.sendMessage(ctx, chatID, mdf(":ring:Поздравляем, %s и %s, вы теперь в браке!",
			b.mentionOf(chatID, res.ProposerID), b.mentionOf(chatID, userID)))
	}
}

func (b *Bot) declineMarriage(ctx context.Context, chatID, userID int64) {
	_, err := b.marriages.Decline(chatID, userID)
	switch {
	case errors.Is(err, marriage.ErrNoProposal):
		b.sendMessage(ctx, chatID, mdf(":x:У вас нет предложений брака."))
	case err != nil:
		b.internalError(ctx, chatID, "decline marriage", err)
	default:
		b.sendMessage(ctx, chatID, mdf(":x:Предложение отклонено."))
	}
}

func (b *Bot) divorce(ctx context.Context, chatID, userID int64) {
	_, err := b.marriages.Dissolve(userID)
	switch {
	case errors.Is(err, marriage.ErrNotMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Вы не состоите в браке."))
	case err != nil:
		b.internalError(ctx, chatID, "dissolve marriage", err)
	default:
		b.metrics.MarriageEvent(metrics.MarriageDissolved)
		b.sendMessage(ctx, chatID, mdf(":broken_heart:Брак расторгнут. У вас есть %s, чтобы помириться.",
			days(int(marriage.ReconciliationWindow.Hours()/24))))
	}
}

func (b *Bot) myMarriage(ctx context.Context, chatID, userID int64) {
	st, err := b.marriages.Query(userID)
	switch {
	case errors.Is(err, marriage.ErrNotMarried):
		b.sendMessage(ctx, chatID, mdf(":information_source:У вас нет брака."))
	case err != nil:
		b.internalError(ctx, chatID, "query marriage", err)
	default:
		b.sendMessage(ctx, chatID, mdf(":ring:Ваш брак с %s длится уже %s.",
			b.nameOf(chatID, st.PartnerID), days(st.Marriage.Days(b.now()))))
	}
}

func (b *Bot) theirMarriage(ctx context.Context, chatID int64, ref string) {
	if ref == "" {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: твой брак {ссылка}"))
		return
	}

	target, st, err := b.marriages.QueryOther(chatID, ref)
	switch {
	case errors.Is(err, marriage.ErrTargetNotFound):
		b.sendMessage(ctx, chatID, mdf(":x:Пользователь не найден."))
	case errors.Is(err, marriage.ErrNotMarried):
		b.sendMessage(ctx, chatID, mdf(":information_source:Пользователь %s не состоит в браке.", participantName(target)))
	case err != nil:
		b.internalError(ctx, chatID, "query other marriage", err)
	default:
		b.sendMessage(ctx, chatID, mdf(":ring:Брак пользователя %s с %s длится %s.",
			participantName(target), b.nameOf(chatID, st.PartnerID), days(st.Marriage.Days(b.now()))))
	}
}

func (b *Bot) listMarriages(ctx context.Context, chatID int64, args string) {
	page := 1
	if args != "" {
		n, err := strconv.Atoi(strings.Fields(args)[0])
		if err != nil || n < 1 {
			b.sendMessage(ctx, chatID, mdf(":x:Использование: браки {номер страницы}"))
			return
		}
		page = n
	}

	res, err := b.marriages.List(chatID, page, b.pageSize)
	switch {
	case errors.Is(err, marriage.ErrEmpty):
		b.sendMessage(ctx, chatID, mdf(":information_source:В чате нет активных браков."))
		return
	case err != nil:
		b.internalError(ctx, chatID, "list marriages", err)
		return
	}

	if len(res.Items) == 0 {
		b.sendMessage(ctx, chatID, mdf(":information_source:Страница %s пуста. Всего страниц: %s.", res.Page, res.Pages))
		return
	}

	now := b.now()
	var sb strings.Builder
	sb.WriteString(mdf(":ring:Список браков:\n"))
	for _, m := range res.Items {
		sb.WriteString(mdf("%s & %s – %s\n",
			b.nameOf(chatID, m.Pair.Low), b.nameOf(chatID, m.Pair.High), days(m.Days(now))))
	}
	sb.WriteString(mdf("\nСтраница %s из %s", res.Page, res.Pages))

	b.sendMessage(ctx, chatID, sb.String())
}

// pairRefs splits "ref1 ref2"
func pairRefs(args string) (string, string, bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func (b *Bot) marryPair(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireAdmin(ctx, chatID, userID, "Только администратор может женить пары.") {
		return
	}
	ref1, ref2, ok := pairRefs(args)
	if !ok {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: поженить пару {ссылка1} {ссылка2}"))
		return
	}

	m, err := b.marriages.AdminPair(chatID, ref1, ref2)
	switch {
	case errors.Is(err, marriage.ErrTargetNotFound):
		b.sendMessage(ctx, chatID, mdf(":x:Не удалось найти одного из пользователей."))
	case errors.Is(err, marriage.ErrSelfTarget):
		b.sendMessage(ctx, chatID, mdf(":x:Нельзя поженить пользователя с самим собой."))
	case errors.Is(err, marriage.ErrAlreadyMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Один из пользователей уже состоит в браке."))
	case err != nil:
		b.internalError(ctx, chatID, "admin pair", err)
	default:
		b.metrics.MarriageEvent(metrics.MarriageCreated)
		b.sendMessage(ctx, chatID, mdf(":ring:%s и %s теперь состоят в браке!",
			b.mentionOf(chatID, m.Pair.Low), b.mentionOf(chatID, m.Pair.High)))
	}
}

func (b *Bot) divorcePair(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireAdmin(ctx, chatID, userID, "Только администратор может разводить пары.") {
		return
	}
	ref1, ref2, ok := pairRefs(args)
	if !ok {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: развести пару {ссылка1} {ссылка2}"))
		return
	}

	m, err := b.marriages.AdminUnpair(chatID, ref1, ref2)
	switch {
	case errors.Is(err, marriage.ErrTargetNotFound):
		b.sendMessage(ctx, chatID, mdf(":x:Не удалось найти одного из пользователей."))
	case errors.Is(err, marriage.ErrNotMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Указанная пара не состоит в активном браке."))
	case err != nil:
		b.internalError(ctx, chatID, "admin unpair", err)
	default:
		b.metrics.MarriageEvent(metrics.MarriageDissolved)
		b.sendMessage(ctx, chatID, mdf(":broken_heart:Брак между %s и %s расторгнут.",
			b.nameOf(chatID, m.Pair.Low), b.nameOf(chatID, m.Pair.High)))
	}
}

func (b *Bot) resetMarriages(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(ctx, chatID, userID, "Только администратор может сбросить браки.") {
		return
	}

	b.marriages.ResetAll()
	b.sendMessage(ctx, chatID, mdf(":boom:Все браки сброшены."))
}

func (b *Bot) setExtensionPrice(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireAdmin(ctx, chatID, userID, "Только администратор может менять цену продления.") {
		return
	}

	price, err := strconv.Atoi(args)
	if err == nil {
		err = b.marriages.SetExtensionPrice(price)
	}
	if err != nil {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: Брак цена продления {число}"))
		return
	}

	b.persistSetting(ctx, storage.SettingMarriageExtPrice, strconv.Itoa(price))
	b.sendMessage(ctx, chatID, mdf(":moneybag:Цена продления брака установлена на %s.", price))
}

func (b *Bot) extendMarriage(ctx context.Context, chatID, userID int64, args string) {
	n, err := strconv.Atoi(args)
	if err != nil {
		b.sendMessage(ctx, chatID, mdf(":x:Использование: Брак продлить {кол-во дней}"))
		return
	}

	m, err := b.marriages.Extend(userID, n)
	switch {
	case errors.Is(err, marriage.ErrInvalidArgument):
		b.sendMessage(ctx, chatID, mdf(":x:Использование: Брак продлить {кол-во дней}"))
	case errors.Is(err, marriage.ErrNotMarried):
		b.sendMessage(ctx, chatID, mdf(":x:Вы не состоите в браке."))
	case err != nil:
		b.internalError(ctx, chatID, "extend marriage", err)
	default:
		b.sendMessage(ctx, chatID, mdf(":hourglass_flowing_sand:Брак продлён до %s. Цена продления: %s.",
			m.ExtendedUntil.Format(extensionTimeLayout), b.marriages.ExtensionPrice()))
	}
}
