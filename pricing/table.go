// Package pricing holds the activity price table and the strategies that
// turn a completed task's reported quantities into its value.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"protrack/model"
	"protrack/store"
)

// Activity sets that select a pricing strategy or mark a KPI declaration.
var (
	// ActivityRepack is priced per package unit, not from the price table.
	ActivityRepack = "REPACK"

	// PerVehicleActivities are priced per reported vehicle/unit.
	PerVehicleActivities = []string{"AMARRAÇÃO", "DESCARREGAMENTO DE VAN"}

	// FlatDailyActivities pay the table price once per day regardless of
	// reported quantity.
	FlatDailyActivities = []string{"MÁQUINA LIMPEZA", "5S MARIA MOLE", "5S PICKING/ABASTECIMENTO"}

	// KPIActivities are the daily-goal markers subject to supervisor
	// validation and override.
	KPIActivities = []string{"EFC", "TMA", "FEFO"}
)

// IsKPI reports whether an activity is a daily-goal marker.
func IsKPI(activity string) bool {
	for _, a := range KPIActivities {
		if a == activity {
			return true
		}
	}
	return false
}

// DefaultRules is the seed price list, installed on first run when the
// rules table does not exist yet.
var DefaultRules = []model.PricingRule{
	{Activity: "SELO VERMELHO (T/M)", UnitPrice: decimal.RequireFromString("1.25")},
	{Activity: "SELO VERMELHO (B/V)", UnitPrice: decimal.RequireFromString("1.50")},
	{Activity: "AMARRAÇÃO", UnitPrice: decimal.RequireFromString("3.00")},
	{Activity: "REFUGO", UnitPrice: decimal.RequireFromString("0.90")},
	{Activity: "BLITZ (EMPURRADA)", UnitPrice: decimal.RequireFromString("1.50")},
	{Activity: "BLITZ (CARREG)", UnitPrice: decimal.RequireFromString("1.50")},
	{Activity: "BLITZ (RETORNO)", UnitPrice: decimal.RequireFromString("1.50")},
	{Activity: "REPACK", UnitPrice: decimal.Zero},
	{Activity: "DEVOLUÇÃO", UnitPrice: decimal.RequireFromString("1.25")},
	{Activity: "TRANSBORDO", UnitPrice: decimal.RequireFromString("1.50")},
	{Activity: "TRIAGEM AVARIAS ARMAZÉM D", UnitPrice: decimal.RequireFromString("1.25")},
	{Activity: "PRÉ PICKING MKT PLACE (DESTILADOS)", UnitPrice: decimal.RequireFromString("2.00")},
	{Activity: "PRÉ PICKING MKT PLACE (REDBULL)", UnitPrice: decimal.RequireFromString("1.50")},
	{Activity: "CÂMARA FRIA", UnitPrice: decimal.RequireFromString("3.00")},
	{Activity: "MÁQUINA LIMPEZA", UnitPrice: decimal.RequireFromString("5.00")},
	{Activity: "5S MARIA MOLE", UnitPrice: decimal.RequireFromString("14.50")},
	{Activity: "5S PICKING/ABASTECIMENTO", UnitPrice: decimal.RequireFromString("14.50")},
	{Activity: "DESCARREGAMENTO DE VAN", UnitPrice: decimal.RequireFromString("2.00")},
	{Activity: "EFC", UnitPrice: decimal.RequireFromString("3.85")},
	{Activity: "TMA", UnitPrice: decimal.RequireFromString("7.70")},
	{Activity: "FEFO", UnitPrice: decimal.RequireFromString("3.85")},
}

// DefaultRuleRows renders the seed list for table creation.
func DefaultRuleRows() [][]string {
	rows := make([][]string, 0, len(DefaultRules))
	for _, r := range DefaultRules {
		rows = append(rows, r.Row())
	}
	return rows
}

// Table is the loaded activity → unit price map.
type Table struct {
	prices map[string]decimal.Decimal
}

// Load reads the rules table. A missing table yields an empty price map,
// not an error; lookups then fall back to zero.
func Load(ctx context.Context, s store.TableStore) (*Table, error) {
	prices := make(map[string]decimal.Decimal)
	tbl, err := s.ReadTable(ctx, store.TableRules)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return &Table{prices: prices}, nil
		}
		return nil, err
	}
	for _, row := range tbl.Rows {
		rule := model.RuleFromRow(tbl.Header, row)
		if rule.Activity == "" {
			continue
		}
		prices[rule.Activity] = rule.UnitPrice
	}
	return &Table{prices: prices}, nil
}

// Lookup returns the unit price for an activity, zero when no rule exists.
// A missing rule is never an error: tasks for unpriced activities are still
// tracked, they just pay nothing until the table is fixed.
func (t *Table) Lookup(activity string) decimal.Decimal {
	if p, ok := t.prices[activity]; ok {
		return p
	}
	return decimal.Zero
}
