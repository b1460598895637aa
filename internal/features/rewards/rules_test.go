package rewards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRules() Rules {
	return NewRules(5, map[int]int64{7: 20, 14: 50, 30: 100}, 100)
}

func strPtr(s string) *string { return &s }

func TestNextStreak(t *testing.T) {
	tests := []struct {
		name   string
		last   *string
		count  int
		today  string
		expect int
	}{
		{"first award", nil, 0, "2026-10-15", 1},
		{"yesterday continues", strPtr("2026-10-14"), 6, "2026-10-15", 7},
		{"gap restarts", strPtr("2026-10-12"), 9, "2026-10-15", 1},
		{"across month", strPtr("2026-09-30"), 3, "2026-10-01", 4},
		{"across leap day", strPtr("2028-02-29"), 1, "2028-03-01", 2},
		{"across year", strPtr("2025-12-31"), 29, "2026-01-01", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStreak(tt.last, tt.count, tt.today)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestNextStreak_BadDay(t *testing.T) {
	_, err := NextStreak(strPtr("2026-10-14"), 1, "15/10/2026")
	assert.Error(t, err)
}

func TestNominalBonus_ExactMilestonesOnly(t *testing.T) {
	r := defaultRules()
	assert.Equal(t, int64(20), r.NominalBonus(7))
	assert.Equal(t, int64(50), r.NominalBonus(14))
	assert.Equal(t, int64(100), r.NominalBonus(30))
	for _, day := range []int{1, 6, 8, 13, 15, 29, 31, 60} {
		assert.Zero(t, r.NominalBonus(day), "day %d", day)
	}
}

func TestNewRules_CopiesBonuses(t *testing.T) {
	bonuses := map[int]int64{7: 20}
	r := NewRules(5, bonuses, 100)
	bonuses[7] = 999
	assert.Equal(t, int64(20), r.NominalBonus(7))
}

func TestClamp(t *testing.T) {
	r := defaultRules()
	tests := []struct {
		name        string
		nominal     int64
		earned      int64
		base, bonus int64
	}{
		{"plain day", 0, 0, 5, 0},
		{"milestone fits", 20, 0, 5, 20},
		{"bonus trimmed", 20, 90, 5, 5},
		{"base trimmed, no bonus", 20, 97, 3, 0},
		{"cap reached", 100, 100, 0, 0},
		{"over cap", 20, 150, 0, 0},
		{"day 30 from zero", 100, 0, 5, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, bonus := r.Clamp(tt.nominal, tt.earned)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.bonus, bonus)
			assert.LessOrEqual(t, tt.earned+base+bonus, max(r.DailyCap, tt.earned))
		})
	}
}

func TestClamp_ZeroCap(t *testing.T) {
	r := NewRules(5, map[int]int64{7: 20}, 0)
	base, bonus := r.Clamp(20, 0)
	assert.Zero(t, base)
	assert.Zero(t, bonus)
}

func TestKindGrantable(t *testing.T) {
	assert.True(t, KindAchievement.Grantable())
	assert.True(t, KindAdminGrant.Grantable())
	assert.False(t, KindDailyLogin.Grantable())
	assert.False(t, KindShopPurchase.Grantable())
	assert.False(t, Kind("gift").Grantable())
}
