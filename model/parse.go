package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column sets for the three backing tables. The order here is the canonical
// write order; reads locate columns by header name so re-ordered or
// partially corrupted files still load.
var (
	TaskColumns = []string{
		"id", "owner", "approver", "activity", "area", "description",
		"product_reference", "priority", "status", "value", "created_at",
		"started_at", "finished_at", "elapsed_minutes", "rejection_reason",
		"qty_can", "qty_pet", "qty_oneway", "qty_longneck", "qty_produced",
		"evidence_ref",
	}
	WorkerColumns = []string{"name", "login_id", "role_tag", "balance"}
	RuleColumns   = []string{"activity", "unit_price"}
)

// ParseDecimal reads a numeric cell. Comma decimal separators are accepted;
// blank or malformed cells coerce to zero rather than failing the read.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCount reads an integer cell with the same coercion rules as
// ParseDecimal.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return int(ParseDecimal(s).IntPart())
}

// ParseTime reads a timestamp cell. The zero time marks an absent or
// unparseable cell; callers treat that as non-fatal.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// colIndex maps header names to positions once per table read.
func colIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// TaskFromRow decodes one task row against its table header.
func TaskFromRow(header, row []string) Task {
	idx := colIndex(header)
	return Task{
		ID:               cell(row, idx, "id"),
		OwnerID:          cell(row, idx, "owner"),
		ApproverID:       cell(row, idx, "approver"),
		Activity:         cell(row, idx, "activity"),
		Area:             cell(row, idx, "area"),
		Description:      cell(row, idx, "description"),
		ProductReference: cell(row, idx, "product_reference"),
		Priority:         cell(row, idx, "priority"),
		Status:           Status(strings.TrimSpace(cell(row, idx, "status"))),
		Value:            ParseDecimal(cell(row, idx, "value")),
		CreatedAt:        ParseTime(cell(row, idx, "created_at")),
		StartedAt:        ParseTime(cell(row, idx, "started_at")),
		FinishedAt:       ParseTime(cell(row, idx, "finished_at")),
		ElapsedMinutes:   ParseCount(cell(row, idx, "elapsed_minutes")),
		RejectionReason:  cell(row, idx, "rejection_reason"),
		Quantities: Quantities{
			Can:      ParseCount(cell(row, idx, "qty_can")),
			Pet:      ParseCount(cell(row, idx, "qty_pet")),
			OneWay:   ParseCount(cell(row, idx, "qty_oneway")),
			LongNeck: ParseCount(cell(row, idx, "qty_longneck")),
			Produced: ParseCount(cell(row, idx, "qty_produced")),
		},
		EvidenceRef: cell(row, idx, "evidence_ref"),
	}
}

// Row encodes the task in TaskColumns order.
func (t Task) Row() []string {
	return []string{
		t.ID, t.OwnerID, t.ApproverID, t.Activity, t.Area, t.Description,
		t.ProductReference, t.Priority, string(t.Status), t.Value.StringFixed(2),
		formatTime(t.CreatedAt), formatTime(t.StartedAt), formatTime(t.FinishedAt),
		strconv.Itoa(t.ElapsedMinutes), t.RejectionReason,
		strconv.Itoa(t.Quantities.Can), strconv.Itoa(t.Quantities.Pet),
		strconv.Itoa(t.Quantities.OneWay), strconv.Itoa(t.Quantities.LongNeck),
		strconv.Itoa(t.Quantities.Produced), t.EvidenceRef,
	}
}

// WorkerFromRow decodes one worker row against its table header.
func WorkerFromRow(header, row []string) Worker {
	idx := colIndex(header)
	return Worker{
		Name:    cell(row, idx, "name"),
		LoginID: strings.TrimSpace(cell(row, idx, "login_id")),
		Role:    ParseRole(cell(row, idx, "role_tag")),
		Balance: ParseDecimal(cell(row, idx, "balance")),
	}
}

// Row encodes the worker in WorkerColumns order.
func (w Worker) Row() []string {
	return []string{w.Name, w.LoginID, string(w.Role), w.Balance.StringFixed(2)}
}

// RuleFromRow decodes one pricing rule row against its table header.
func RuleFromRow(header, row []string) PricingRule {
	idx := colIndex(header)
	return PricingRule{
		Activity:  strings.TrimSpace(cell(row, idx, "activity")),
		UnitPrice: ParseDecimal(cell(row, idx, "unit_price")),
	}
}

// Row encodes the rule in RuleColumns order.
func (r PricingRule) Row() []string {
	return []string{r.Activity, r.UnitPrice.StringFixed(2)}
}
