package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"git.skobk.in/skobkin/telegram-social-games-bot/duel"
	"git.skobk.in/skobkin/telegram-social-games-bot/marriage"
	"git.skobk.in/skobkin/telegram-social-games-bot/metrics"
	"git.skobk.in/skobkin/telegram-social-games-bot/moderation"
	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
	"git.skobk.in/skobkin/telegram-social-games-bot/tea"
)

var (
	ErrGetMe          = errors.New("cannot retrieve api user")
	ErrUpdatesChannel = errors.New("cannot get updates channel")
	ErrHandlerInit    = errors.New("cannot initialize handler")
)

const (
	unknownName = "Неизвестно"
	botName     = "Бот"
	teaTopSize  = 10
)

// chatAPI is the part of the Telegram Bot API used by the handlers
type chatAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
	BanChatMember(ctx context.Context, params *telego.BanChatMemberParams) error
	UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error
}

// Store persists participants and bot settings
type Store interface {
	UpsertParticipant(ctx context.Context, p participants.Participant) error
	SetSetting(ctx context.Context, key, value string) error
}

type Rand interface {
	IntN(n int) int
}

type Config struct {
	Directory *participants.Directory
	Marriages *marriage.Registry
	Duels     *duel.Engine
	Bans      *moderation.BanList
	Tea       *tea.Ledger
	Store     Store
	Metrics   *metrics.Metrics
	Rand      Rand

	MarriagePageSize int
	// StoreTimeout limits a single storage call made while handling a message
	StoreTimeout time.Duration
	Clock        func() time.Time
}

type Bot struct {
	bot  *telego.Bot
	api  chatAPI
	self telego.User

	dir       *participants.Directory
	marriages *marriage.Registry
	duels     *duel.Engine
	bans      *moderation.BanList
	tea       *tea.Ledger
	store     Store
	metrics   *metrics.Metrics
	rng       Rand

	pageSize     int
	storeTimeout time.Duration
	now          func() time.Time
}

// NewAPI creates the Telegram client and fetches the bot's own user
func NewAPI(ctx context.Context, token string) (*telego.Bot, *telego.User, error) {
	api, err := telego.NewBot(token, telego.WithLogger(slogLogger{}))
	if err != nil {
		slog.Error("bot: Failed to create bot", "error", err)
		return nil, nil, fmt.Errorf("failed to create bot: %w", err)
	}

	botUser, err := api.GetMe(ctx)
	if err != nil {
		slog.Error("bot: Cannot retrieve api user", "error", err)
		return nil, nil, ErrGetMe
	}

	slog.Info("bot: Running api as",
		"id", botUser.ID,
		"username", botUser.Username,
		"name", botUser.FirstName,
		"is_bot", botUser.IsBot,
	)

	return api, botUser, nil
}

func New(api *telego.Bot, self *telego.User, cfg Config) *Bot {
	b := newBot(api, *self, cfg)
	b.bot = api
	return b
}

func newBot(api chatAPI, self telego.User, cfg Config) *Bot {
	b := &Bot{
		api:          api,
		self:         self,
		dir:          cfg.Directory,
		marriages:    cfg.Marriages,
		duels:        cfg.Duels,
		bans:         cfg.Bans,
		tea:          cfg.Tea,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		rng:          cfg.Rand,
		pageSize:     cfg.MarriagePageSize,
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Clock,
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if b.pageSize < 1 {
		b.pageSize = 5
	}
	if b.storeTimeout <= 0 {
		b.storeTimeout = 5 * time.Second
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Run receives updates via long polling until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		slog.Error("bot: Cannot get update channel", "error", err)
		return ErrUpdatesChannel
	}

	bh, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		slog.Error("bot: Cannot initialize bot handler", "error", err)
		return ErrHandlerInit
	}

	bh.Use(b.participantMiddleware)

	bh.HandleMessage(b.startHandler, th.CommandEqual("start"))
	bh.HandleMessage(b.banHandler, th.CommandEqual("ban"))
	bh.HandleMessage(b.teaRatingHandler, th.CommandEqual("rating_chai"))
	bh.HandleMessage(b.textHandler, th.AnyMessageWithText())

	go func() {
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := bh.StopWithContext(stopCtx); err != nil {
			slog.Warn("bot: Failed to stop bot handler", "error", err)
		}
	}()

	slog.Info("bot: Handling updates")

	return bh.Start()
}

func (b *Bot) textHandler(ctx *th.Context, msg telego.Message) error {
	b.handleText(ctx, msg)
	return nil
}

func (b *Bot) teaRatingHandler(ctx *th.Context, msg telego.Message) error {
	b.teaRating(ctx, msg.Chat.ID)
	return nil
}

// handleText dispatches a chat phrase to its handler
func (b *Bot) handleText(ctx context.Context, msg telego.Message) {
	if msg.From == nil {
		return
	}

	in := parseIntent(msg.Text)
	if in.cmd == cmdNone {
		return
	}

	slog.Debug("bot: Command recognized", "command", string(in.cmd),
		"chat_id", msg.Chat.ID, "user_id", msg.From.ID)
	b.metrics.CommandHandled(string(in.cmd))

	chatID, userID := msg.Chat.ID, msg.From.ID

	switch in.cmd {
	case cmdTeaRating:
		b.teaRating(ctx, chatID)
	case cmdTeaDrink:
		b.drinkTea(ctx, chatID, msg.From, in.args)

	case cmdMarriagePropose:
		b.propose(ctx, chatID, userID, in.args)
	case cmdMarriageAccept:
		b.acceptMarriage(ctx, chatID, userID)
	case cmdMarriageDecline:
		b.declineMarriage(ctx, chatID, userID)
	case cmdDivorce:
		b.divorce(ctx, chatID, userID)
	case cmdMyMarriage:
		b.myMarriage(ctx, chatID, userID)
	case cmdTheirMarriage:
		b.theirMarriage(ctx, chatID, in.args)
	case cmdMarriageList:
		b.listMarriages(ctx, chatID, in.args)
	case cmdMarryPair:
		b.marryPair(ctx, chatID, userID, in.args)
	case cmdDivorcePair:
		b.divorcePair(ctx, chatID, userID, in.args)
	case cmdMarriageReset:
		b.resetMarriages(ctx, chatID, userID)
	case cmdMarriagePrice:
		b.setExtensionPrice(ctx, chatID, userID, in.args)
	case cmdMarriageExtend:
		b.extendMarriage(ctx, chatID, userID, in.args)

	case cmdDuelChallenge:
		b.challenge(ctx, chatID, userID, in.args)
	case cmdDuelRandom:
		b.challengeRandom(ctx, chatID, userID)
	case cmdDuelAccept:
		b.acceptDuel(ctx, chatID, userID)
	case cmdDuelDecline:
		b.declineDuel(ctx, chatID, userID)
	case cmdDuelCancel:
		b.cancelDuel(ctx, chatID, userID)
	case cmdDuelAim:
		b.aim(ctx, chatID, userID)
	case cmdDuelResetAim:
		b.resetAim(ctx, chatID, userID)
	case cmdDuelShoot:
		b.shoot(ctx, chatID, userID)
	case cmdDuelOutcome:
		b.setOutcome(ctx, chatID, userID, in.args)
	case cmdDuelStats:
		b.duelStats(ctx, chatID)
	case cmdDuelStatsReset:
		b.resetDuelStats(ctx, chatID, userID)

	case cmdWho:
		b.who(ctx, chatID, in.args)
	case cmdInfo:
		b.info(ctx, chatID, in.args)
	case cmdBottle:
		b.bottle(ctx, chatID, in.args)
	}
}

// internalError logs an unexpected failure and tells the chat about it
func (b *Bot) internalError(ctx context.Context, chatID int64, op string, err error) {
	slog.Error("bot: Command failed", "op", op, "error", err, "chat_id", chatID)
	b.sendMessage(ctx, chatID, mdf(":warning:Что-то пошло не так, попробуйте позже."))
}

// persistSetting stores a setting without failing the command
func (b *Bot) persistSetting(ctx context.Context, key, value string) {
	if b.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.storeTimeout)
	defer cancel()

	if err := b.store.SetSetting(ctx, key, value); err != nil {
		slog.Error("bot: Failed to persist setting", "error", err, "key", key)
	}
}

// slogLogger routes telego logs to slog
type slogLogger struct{}

func (slogLogger) Debugf(format string, args ...any) {
	slog.Debug("telego: " + fmt.Sprintf(format, args...))
}

func (slogLogger) Errorf(format string, args ...any) {
	slog.Error("telego: " + fmt.Sprintf(format, args...))
}
