package pricing

import (
	"github.com/shopspring/decimal"

	"protrack/model"
)

// Per-package prices for the repack activity. Repack is the one activity
// not priced from the rules table.
var (
	repackCanPrice      = decimal.RequireFromString("0.10")
	repackPetPrice      = decimal.RequireFromString("0.15")
	repackOneWayPrice   = decimal.RequireFromString("0.20")
	repackLongNeckPrice = decimal.RequireFromString("0.20")
)

// Strategy computes a completed task's value. Matches decides whether the
// strategy owns an activity; Apply returns the value and the normalized
// quantities to record.
type Strategy struct {
	Name    string
	Matches func(activity string) bool
	Apply   func(base decimal.Decimal, q model.Quantities) (decimal.Decimal, model.Quantities)
}

func inSet(set []string) func(string) bool {
	return func(activity string) bool {
		for _, a := range set {
			if a == activity {
				return true
			}
		}
		return false
	}
}

func perPackage(_ decimal.Decimal, q model.Quantities) (decimal.Decimal, model.Quantities) {
	value := repackCanPrice.Mul(decimal.NewFromInt(int64(q.Can))).
		Add(repackPetPrice.Mul(decimal.NewFromInt(int64(q.Pet)))).
		Add(repackOneWayPrice.Mul(decimal.NewFromInt(int64(q.OneWay)))).
		Add(repackLongNeckPrice.Mul(decimal.NewFromInt(int64(q.LongNeck))))
	return value, q
}

func perUnit(base decimal.Decimal, q model.Quantities) (decimal.Decimal, model.Quantities) {
	if q.Produced < 1 {
		q.Produced = 1
	}
	return base.Mul(decimal.NewFromInt(int64(q.Produced))), q
}

func flatDaily(base decimal.Decimal, q model.Quantities) (decimal.Decimal, model.Quantities) {
	q.Produced = 1
	return base, q
}

// strategies is checked in order and the first match wins. The order
// matters: activity names could legitimately appear in more than one
// configured set, and repack must never fall through to the table price.
var strategies = []Strategy{
	{Name: "per_package", Matches: func(a string) bool { return a == ActivityRepack }, Apply: perPackage},
	{Name: "per_unit", Matches: inSet(PerVehicleActivities), Apply: perUnit},
	{Name: "flat_daily", Matches: inSet(FlatDailyActivities), Apply: flatDaily},
}

// Resolve picks the strategy for an activity and applies it. Activities not
// claimed by any strategy are priced per unit.
func Resolve(activity string, base decimal.Decimal, q model.Quantities) (decimal.Decimal, model.Quantities) {
	for _, s := range strategies {
		if s.Matches(activity) {
			return s.Apply(base, q)
		}
	}
	return perUnit(base, q)
}
