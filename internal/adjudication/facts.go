package adjudication

import (
	"sort"
	"time"

	"clearvet/internal/matrix/models"
	"clearvet/internal/order"
)

// Facts is the structured snapshot of an order's screening findings used as
// evaluator input. Values are the JSON scalar types plus time.Time for dates.
type Facts map[string]any

// Fact keys produced by BuildFacts. Rule authors reference these in condition
// trees.
const (
	FactPositionCategory = "position_category"
	FactSeverity         = "severity"
	FactSeverityRank     = "severity_rank"
	FactOffenseType      = "offense_type"
	FactOffenseDate      = "offense_date"
	FactOffenseAgeYears  = "offense_age_years"
	FactFindingCount     = "finding_count"
)

// BuildFacts reduces an order to a fact map. Evaluation is per-order, so the
// map carries the order's position category plus the worst finding: highest
// severity first, most recent as tiebreaker. finding_count lets catch-all
// rules distinguish clean orders.
func BuildFacts(o *order.Order, now time.Time) Facts {
	facts := Facts{
		FactPositionCategory: o.PositionCategory,
		FactFindingCount:     len(o.Findings),
	}
	worst := worstFinding(o.Findings)
	if worst == nil {
		return facts
	}
	facts[FactSeverity] = worst.Severity
	facts[FactSeverityRank] = models.Severity(worst.Severity).Rank()
	facts[FactOffenseType] = worst.OffenseType
	facts[FactOffenseDate] = worst.OffenseDate
	facts[FactOffenseAgeYears] = yearsBetween(worst.OffenseDate, now)
	return facts
}

func worstFinding(findings []order.Finding) *order.Finding {
	if len(findings) == 0 {
		return nil
	}
	sorted := append([]order.Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri := models.Severity(sorted[i].Severity).Rank()
		rj := models.Severity(sorted[j].Severity).Rank()
		if ri != rj {
			return ri > rj
		}
		return sorted[i].OffenseDate.After(sorted[j].OffenseDate)
	})
	return &sorted[0]
}

func yearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / (24 * 365.25)
}

// OffenseWithin reports whether the fact map's offense occurred within the
// given number of years before now. Orders with no findings have no offense
// date, so a lookback-constrained rule never matches them.
func (f Facts) OffenseWithin(years int, now time.Time) bool {
	raw, ok := f[FactOffenseDate]
	if !ok {
		return false
	}
	offenseDate, ok := raw.(time.Time)
	if !ok {
		return false
	}
	cutoff := now.AddDate(-years, 0, 0)
	return !offenseDate.Before(cutoff)
}
