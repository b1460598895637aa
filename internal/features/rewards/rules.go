// Package rewards: rules.go holds the pure reward arithmetic:
// streak continuation, milestone bonuses and daily cap clamping.
package rewards

import "serotonyl.ru/plaza-rewards/internal/common"

// Rules is the reward configuration. Built once at startup and never
// mutated afterwards.
type Rules struct {
	DailyBase     int64
	StreakBonuses map[int]int64 // exact milestone day → bonus
	DailyCap      int64         // max tokens per user per day from all sources
}

// NewRules copies bonuses so later changes to the caller's map cannot leak in.
func NewRules(dailyBase int64, bonuses map[int]int64, dailyCap int64) Rules {
	copied := make(map[int]int64, len(bonuses))
	for day, bonus := range bonuses {
		copied[day] = bonus
	}
	return Rules{DailyBase: dailyBase, StreakBonuses: copied, DailyCap: dailyCap}
}

// NominalBonus returns the bonus for reaching exactly this streak day.
// Days between milestones get nothing.
func (r Rules) NominalBonus(streak int) int64 {
	return r.StreakBonuses[streak]
}

// CapRemaining returns how much may still be earned today.
func (r Rules) CapRemaining(earnedToday int64) int64 {
	return capRemaining(r.DailyCap, earnedToday)
}

// Clamp splits what is left of the cap between base and bonus.
// The base is served first; the bonus only gets what the base left over.
//
//	cap 100, earned 90, base 5, bonus 20 → base 5, bonus 5
func (r Rules) Clamp(nominalBonus, earnedToday int64) (base, bonus int64) {
	remaining := r.CapRemaining(earnedToday)
	base = min(r.DailyBase, remaining)
	bonus = min(nominalBonus, max(0, remaining-base))
	return base, bonus
}

func capRemaining(dailyCap, earnedToday int64) int64 {
	return max(0, dailyCap-earnedToday)
}

// NextStreak returns the streak after an award today. It continues when the
// last award was yesterday, otherwise a new streak starts at 1: the day of
// return counts as its first day.
func NextStreak(lastAwardDate *string, streakCount int, today string) (int, error) {
	if lastAwardDate == nil {
		return 1, nil
	}
	yesterday, err := common.PreviousDay(today)
	if err != nil {
		return 0, err
	}
	if *lastAwardDate == yesterday {
		return streakCount + 1, nil
	}
	return 1, nil
}
