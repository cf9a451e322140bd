package bot

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

type command string

const (
	cmdNone command = ""

	cmdTeaRating command = "tea_rating"
	cmdTeaDrink  command = "tea_drink"

	cmdMarriageAccept  command = "marriage_accept"
	cmdMarriageDecline command = "marriage_decline"
	cmdMarriagePropose command = "marriage_propose"
	cmdDivorce         command = "marriage_dissolve"
	cmdMyMarriage      command = "marriage_query"
	cmdTheirMarriage   command = "marriage_query_other"
	cmdMarriageList    command = "marriage_list"
	cmdMarryPair       command = "marriage_admin_pair"
	cmdDivorcePair     command = "marriage_admin_unpair"
	cmdMarriageReset   command = "marriage_reset"
	cmdMarriagePrice   command = "marriage_price"
	cmdMarriageExtend  command = "marriage_extend"

	cmdDuelChallenge  command = "duel_challenge"
	cmdDuelRandom     command = "duel_random"
	cmdDuelAccept     command = "duel_accept"
	cmdDuelDecline    command = "duel_decline"
	cmdDuelCancel     command = "duel_cancel"
	cmdDuelAim        command = "duel_aim"
	cmdDuelResetAim   command = "duel_reset_aim"
	cmdDuelShoot      command = "duel_shoot"
	cmdDuelOutcome    command = "duel_outcome"
	cmdDuelStats      command = "duel_stats"
	cmdDuelStatsReset command = "duel_stats_reset"

	cmdWho    command = "fun_who"
	cmdInfo   command = "fun_info"
	cmdBottle command = "fun_bottle"
)

// intent is a recognized chat phrase. Args is the original text that follows
// the command words.
type intent struct {
	cmd  command
	args string
}

type rule struct {
	words []string
	cmd   command
	// exact rules do not accept trailing text
	exact bool
	// except lists words that must not follow the rule words
	except []string
}

// Rules are checked in order, so longer phrases go before their prefixes.
var rules = []rule{
	{words: []string{"рис", "рейтинг", "чая"}, cmd: cmdTeaRating},
	{words: []string{"рейтинг", "чая"}, cmd: cmdTeaRating},
	{words: []string{"чай", "пить"}, cmd: cmdTeaDrink},
	{words: []string{"пить", "чай"}, cmd: cmdTeaDrink},

	{words: []string{"брак", "да"}, cmd: cmdMarriageAccept, exact: true},
	{words: []string{"брак", "нет"}, cmd: cmdMarriageDecline, exact: true},
	{words: []string{"брак", "цена", "продления"}, cmd: cmdMarriagePrice},
	{words: []string{"брак", "продлить"}, cmd: cmdMarriageExtend},
	{words: []string{"продление", "брака"}, cmd: cmdMarriageExtend},
	{words: []string{"брак"}, cmd: cmdMarriagePropose},
	{words: []string{"развод"}, cmd: cmdDivorce, exact: true},
	{words: []string{"!развод"}, cmd: cmdDivorce, exact: true},
	{words: []string{"мой", "брак"}, cmd: cmdMyMarriage, exact: true},
	{words: []string{"твой", "брак"}, cmd: cmdTheirMarriage},
	{words: []string{"браки"}, cmd: cmdMarriageList},
	{words: []string{"топ", "браков"}, cmd: cmdMarriageList},
	{words: []string{"поженить", "пару"}, cmd: cmdMarryPair},
	{words: []string{"развести", "пару"}, cmd: cmdDivorcePair},
	{words: []string{"сброс", "браков"}, cmd: cmdMarriageReset, exact: true},

	{words: []string{"кто", "дуэль"}, cmd: cmdDuelRandom, exact: true},
	{words: []string{"дуэль", "да"}, cmd: cmdDuelAccept, exact: true},
	{words: []string{"дуэль", "нет"}, cmd: cmdDuelDecline, exact: true},
	{words: []string{"дуэль", "отмена"}, cmd: cmdDuelCancel, exact: true},
	{words: []string{"дуэль"}, cmd: cmdDuelChallenge, except: []string{"да", "нет", "отмена"}},
	{words: []string{"прицелиться"}, cmd: cmdDuelAim, exact: true},
	{words: []string{"сбросить", "прицел"}, cmd: cmdDuelResetAim, exact: true},
	{words: []string{"выстрел"}, cmd: cmdDuelShoot, exact: true},
	{words: []string{"дуэли", "исход"}, cmd: cmdDuelOutcome},
	{words: []string{"дуэли", "стата"}, cmd: cmdDuelStats, exact: true},
	{words: []string{"!дуэли", "сброс"}, cmd: cmdDuelStatsReset, exact: true},
	{words: []string{"!сброс", "дуэлей"}, cmd: cmdDuelStatsReset, exact: true},

	{words: []string{"рис", "кто"}, cmd: cmdWho},
	{words: []string{"кто", "рисует"}, cmd: cmdWho},
	{words: []string{"рис", "инфа", "что"}, cmd: cmdInfo},
	{words: []string{"инфа", "что"}, cmd: cmdInfo},
	{words: []string{"крутим", "бутылко"}, cmd: cmdBottle},
	{words: []string{"кто", "крутит", "бутылко"}, cmd: cmdBottle},
}

// parseIntent classifies a chat message. Matching is case-insensitive and
// tolerates extra whitespace between words.
func parseIntent(text string) intent {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return intent{}
	}

	fold := cases.Fold()
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = fold.String(f)
	}

	for _, r := range rules {
		if !hasWords(folded, r.words) {
			continue
		}
		if r.exact && len(fields) != len(r.words) {
			continue
		}
		if len(folded) > len(r.words) && slices.Contains(r.except, folded[len(r.words)]) {
			continue
		}
		return intent{cmd: r.cmd, args: afterWords(text, len(r.words))}
	}

	return intent{}
}

func hasWords(fields, words []string) bool {
	if len(fields) < len(words) {
		return false
	}
	for i, w := range words {
		if fields[i] != w {
			return false
		}
	}
	return true
}

// afterWords drops the first n words of text and returns the trimmed rest
func afterWords(text string, n int) string {
	rest := strings.TrimSpace(text)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}
