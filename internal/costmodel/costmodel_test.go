package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bikepass-cli/internal/calc"
	"github.com/sells-group/bikepass-cli/internal/model"
)

func testPolicy() *model.PolicySet {
	return &model.PolicySet{
		Values: map[string]model.PolicyValue{
			model.MembershipPrice:                  {Value: 90},
			model.MemberIncludedMinutes:            {Value: 45},
			model.MemberEbikePerMinute:             {Value: 0.06},
			model.MemberClassicOveragePerMinute:    {Value: 0.30},
			model.MemberUnlockFee:                  {Value: 0.10},
			model.SingleRidePrice:                  {Value: 15},
			model.NonMemberIncludedMinutes:         {Value: 30},
			model.NonMemberEbikePerMinute:          {Value: 0.48},
			model.NonMemberClassicOveragePerMinute: {Value: 0.30},
			model.NonMemberUnlockFee:               {Value: 1},
		},
	}
}

func testStats() *model.RideStats {
	return &model.RideStats{
		TotalRides:    30,
		EbikeMinutes:  200,
		ClassicOver30: 100,
		ClassicOver45: 20,
	}
}

func TestPlanComparison(t *testing.T) {
	t.Parallel()

	policy := testPolicy()
	stats := testStats()

	pay := PayPerUseTerms(stats, policy)
	// base: 30 rides at (15 - 1 unlock) = 420; overage 100*0.30 = 30;
	// e-bike 200*0.48 = 96; unlocks 30*1 = 30.
	assert.InDelta(t, 420, pay.Base, 0.001)
	assert.InDelta(t, 30, pay.ClassicOverage, 0.001)
	assert.InDelta(t, 96, pay.EbikeSurcharge, 0.001)
	assert.InDelta(t, 30, pay.UnlockFees, 0.001)

	member := MembershipTerms(stats, policy)
	// fee 90; overage 20*0.30 = 6; e-bike 200*0.06 = 12; unlocks 30*0.10 = 3.
	assert.InDelta(t, 90, member.MembershipFee, 0.001)
	assert.InDelta(t, 6, member.ClassicOverage, 0.001)
	assert.InDelta(t, 12, member.EbikeSurcharge, 0.001)
	assert.InDelta(t, 3, member.UnlockFees, 0.001)

	payTotal, err := calc.Eval(pay.Expression())
	require.NoError(t, err)
	memberTotal, err := calc.Eval(member.Expression())
	require.NoError(t, err)

	assert.InDelta(t, 576, payTotal, 0.001)
	assert.InDelta(t, 111, memberTotal, 0.001)
	assert.InDelta(t, pay.Sum(), payTotal, 0.001)
	assert.InDelta(t, member.Sum(), memberTotal, 0.001)

	summary, decision := Summarize(pay, payTotal, member, memberTotal)
	assert.Equal(t, model.DecisionMembership, decision)
	assert.InDelta(t, 576, summary.PayPerUse.Total, 0.001)
	assert.InDelta(t, 111, summary.Membership.Total, 0.001)

	rides := BreakEvenRides(policy)
	require.NotNil(t, rides)
	assert.Equal(t, 6, *rides)
}

func TestExpression(t *testing.T) {
	t.Parallel()

	terms := Terms{Base: 420, ClassicOverage: 30, EbikeSurcharge: 96, UnlockFees: 30}
	assert.Equal(t, "420+30+96+30", terms.Expression())

	terms = Terms{MembershipFee: 18.1, EbikeSurcharge: 2.55}
	assert.Equal(t, "18.1+0+2.55+0", terms.Expression())
}

func TestSummarizeTieFavorsMembership(t *testing.T) {
	t.Parallel()

	_, decision := Summarize(Terms{}, 100, Terms{}, 100)
	assert.Equal(t, model.DecisionMembership, decision)

	_, decision = Summarize(Terms{}, 99, Terms{}, 100)
	assert.Equal(t, model.DecisionPayPerUse, decision)
}

func TestBreakEvenRides(t *testing.T) {
	t.Parallel()

	policy := testPolicy()
	rides := BreakEvenRides(policy)
	require.NotNil(t, rides)
	assert.Equal(t, 6, *rides)

	// Ceiling, not rounding.
	policy.Values[model.SingleRidePrice] = model.PolicyValue{Value: 14}
	rides = BreakEvenRides(policy)
	require.NotNil(t, rides)
	assert.Equal(t, 7, *rides)

	// Unknown single-ride price means no estimate.
	policy.Values[model.SingleRidePrice] = model.PolicyValue{Value: 0}
	assert.Nil(t, BreakEvenRides(policy))
}

func TestWeeklyTable(t *testing.T) {
	t.Parallel()

	policy := testPolicy()
	weeks := []model.WeekStats{
		{WeekStart: "2024-03-04", Rides: 4, AvgMinutes: 18.5, EbikeRides: 1, EbikeMinutes: 10, ClassicOver30: 5, ClassicOver45: 0},
		{WeekStart: "2024-03-11", Rides: 2, AvgMinutes: 12, EbikeRides: 0, EbikeMinutes: 0, ClassicOver30: 0, ClassicOver45: 0},
	}

	table := WeeklyTable(weeks, policy)
	require.Len(t, table, 2)

	// Week one pay-per-use: 4*15 + 5*0.30 + 10*0.48 + 4*1 = 70.30.
	// Membership fee splits across the two observed weeks: 45 + 10*0.06 + 4*0.10 = 46.00.
	assert.Equal(t, "2024-03-04", table[0].WeekStart)
	assert.Equal(t, 4, table[0].Rides)
	assert.Equal(t, "18.50", table[0].AvgDuration)
	assert.Equal(t, "25.0%", table[0].EbikeShare)
	assert.Equal(t, "$70.30", table[0].PayPerUseCost)
	assert.Equal(t, "$46.00", table[0].MembershipCost)

	assert.Equal(t, "$32.00", table[1].PayPerUseCost)
	assert.Equal(t, "$45.20", table[1].MembershipCost)
	assert.Equal(t, "0.0%", table[1].EbikeShare)
}

func TestWeeklyTableEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, WeeklyTable(nil, testPolicy()))
}

func TestFormatters(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "$18.10", FormatCurrency(18.1))
	assert.Equal(t, "33.3%", FormatPercent(1.0/3))
	assert.Equal(t, "12.50", FormatNumber(12.5))
}
