// Package costmodel combines ride aggregates and tariff policy values into
// the two plan totals, the recommendation, the break-even estimate, and the
// per-week cost table. The plan sums are rendered as plain arithmetic text
// and evaluated through the restricted calculator so the load-bearing
// arithmetic stays auditable.
package costmodel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// Free-allowance thresholds in minutes for classic rides.
const (
	NonMemberIncludedDefault = 30
	MemberIncludedDefault    = 45
)

// Terms itemizes one plan's cost components before summation.
type Terms struct {
	Base           float64
	MembershipFee  float64
	ClassicOverage float64
	EbikeSurcharge float64
	UnlockFees     float64
}

// Expression renders the term sum as restricted-calculator input.
func (t Terms) Expression() string {
	parts := []float64{t.Base + t.MembershipFee, t.ClassicOverage, t.EbikeSurcharge, t.UnlockFees}
	rendered := make([]string, len(parts))
	for i, p := range parts {
		rendered[i] = strconv.FormatFloat(p, 'f', -1, 64)
	}
	return strings.Join(rendered, "+")
}

// PayPerUseTerms computes the pay-per-use cost components. The single-ride
// base excludes the unlock fee (floored at zero) so unlocks are not counted
// twice; the classic overage uses the 30-minute non-member allowance.
func PayPerUseTerms(stats *model.RideStats, policy *model.PolicySet) Terms {
	base := policy.Value(model.SingleRidePrice) - policy.Value(model.NonMemberUnlockFee)
	if base < 0 {
		base = 0
	}
	return Terms{
		Base:           stats.TotalRides * base,
		ClassicOverage: stats.ClassicOver30 * policy.Value(model.NonMemberClassicOveragePerMinute),
		EbikeSurcharge: stats.EbikeMinutes * policy.Value(model.NonMemberEbikePerMinute),
		UnlockFees:     stats.TotalRides * policy.Value(model.NonMemberUnlockFee),
	}
}

// MembershipTerms computes the membership cost components; the classic
// overage uses the 45-minute member allowance.
func MembershipTerms(stats *model.RideStats, policy *model.PolicySet) Terms {
	return Terms{
		MembershipFee:  policy.Value(model.MembershipPrice),
		ClassicOverage: stats.ClassicOver45 * policy.Value(model.MemberClassicOveragePerMinute),
		EbikeSurcharge: stats.EbikeMinutes * policy.Value(model.MemberEbikePerMinute),
		UnlockFees:     stats.TotalRides * policy.Value(model.MemberUnlockFee),
	}
}

// Sum is the plain-arithmetic fallback when a caller wants the term total
// without going through the calculator.
func (t Terms) Sum() float64 {
	return t.Base + t.MembershipFee + t.ClassicOverage + t.EbikeSurcharge + t.UnlockFees
}

// Summarize assembles the cost summary and decision from the evaluated plan
// totals. Ties favor membership.
func Summarize(pay Terms, payTotal float64, member Terms, memberTotal float64) (model.CostSummary, string) {
	summary := model.CostSummary{
		PayPerUse: model.CostBreakdown{
			Total:          payTotal,
			Base:           pay.Base,
			ClassicOverage: pay.ClassicOverage,
			EbikeSurcharge: pay.EbikeSurcharge,
			UnlockFees:     pay.UnlockFees,
		},
		Membership: model.CostBreakdown{
			Total:          memberTotal,
			MembershipFee:  member.MembershipFee,
			ClassicOverage: member.ClassicOverage,
			EbikeSurcharge: member.EbikeSurcharge,
			UnlockFees:     member.UnlockFees,
		},
	}

	decision := model.DecisionPayPerUse
	if memberTotal <= payTotal {
		decision = model.DecisionMembership
	}
	return summary, decision
}

// BreakEvenRides estimates the ride count at which pay-per-use spend reaches
// the membership fee, ignoring overage and surcharge terms. Nil when no
// single-ride price is known.
func BreakEvenRides(policy *model.PolicySet) *int {
	price := policy.Value(model.SingleRidePrice)
	if price <= 0 {
		return nil
	}
	rides := int(math.Ceil(policy.Value(model.MembershipPrice) / price))
	return &rides
}

// WeeklyTable recomputes both plan costs per calendar-week bucket. The
// membership fee is allocated evenly across observed weeks (4 when there is
// no weekly data); the split is an approximation, not a reconciliation.
func WeeklyTable(weeks []model.WeekStats, policy *model.PolicySet) []model.WeekCost {
	membershipWeeks := float64(len(weeks))
	if membershipWeeks == 0 {
		membershipWeeks = 4
	}
	weekFee := policy.Value(model.MembershipPrice) / membershipWeeks

	table := make([]model.WeekCost, 0, len(weeks))
	for _, w := range weeks {
		payTotal := w.Rides*policy.Value(model.SingleRidePrice) +
			w.ClassicOver30*policy.Value(model.NonMemberClassicOveragePerMinute) +
			w.EbikeMinutes*policy.Value(model.NonMemberEbikePerMinute) +
			w.Rides*policy.Value(model.NonMemberUnlockFee)

		memberTotal := weekFee +
			w.ClassicOver45*policy.Value(model.MemberClassicOveragePerMinute) +
			w.EbikeMinutes*policy.Value(model.MemberEbikePerMinute) +
			w.Rides*policy.Value(model.MemberUnlockFee)

		ebikeShare := 0.0
		if w.Rides > 0 {
			ebikeShare = w.EbikeRides / w.Rides
		}

		table = append(table, model.WeekCost{
			WeekStart:      w.WeekStart,
			Rides:          int(w.Rides),
			AvgDuration:    FormatNumber(w.AvgMinutes),
			EbikeShare:     FormatPercent(ebikeShare),
			PayPerUseCost:  FormatCurrency(payTotal),
			MembershipCost: FormatCurrency(memberTotal),
		})
	}
	return table
}

// FormatCurrency renders a dollar amount with two decimals.
func FormatCurrency(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// FormatPercent renders a 0..1 fraction as a percentage with one decimal.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// FormatNumber renders a number with two decimals.
func FormatNumber(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
