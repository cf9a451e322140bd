package duel

import (
	"strings"
	"time"
)

// Outcome is the penalty applied to the loser of a duel
type Outcome string

const (
	OutcomeNone          Outcome = "ничего"
	OutcomeKick          Outcome = "кик"
	OutcomeBanMinute     Outcome = "бан минута"
	OutcomeBanTenMinutes Outcome = "бан 10 минут"
	OutcomeBanHour       Outcome = "бан час"
	OutcomeBanDay        Outcome = "бан сутки"
	OutcomeBanForever    Outcome = "бан навсегда"
)

// ForeverBan is how long a "forever" ban lasts
const ForeverBan = 10 * 365 * 24 * time.Hour

var banDurations = map[Outcome]time.Duration{
	OutcomeBanMinute:     time.Minute,
	OutcomeBanTenMinutes: 10 * time.Minute,
	OutcomeBanHour:       time.Hour,
	OutcomeBanDay:        24 * time.Hour,
	OutcomeBanForever:    ForeverBan,
}

// ParseOutcome reads an outcome setting as typed in chat
func ParseOutcome(text string) (Outcome, error) {
	o := Outcome(strings.Join(strings.Fields(strings.ToLower(text)), " "))
	switch o {
	case "", "0", OutcomeNone:
		return OutcomeNone, nil
	case OutcomeKick:
		return OutcomeKick, nil
	}
	if _, ok := banDurations[o]; ok {
		return o, nil
	}
	return OutcomeNone, ErrUnknownOutcome
}

// BanDuration returns the ban length for ban outcomes
func (o Outcome) BanDuration() (time.Duration, bool) {
	d, ok := banDurations[o]
	return d, ok
}

// Outcomes lists every accepted setting
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeNone,
		OutcomeKick,
		OutcomeBanMinute,
		OutcomeBanTenMinutes,
		OutcomeBanHour,
		OutcomeBanDay,
		OutcomeBanForever,
	}
}
