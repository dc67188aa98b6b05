package adjudication

import (
	"sort"
	"time"

	"clearvet/internal/matrix/models"
)

// Match walks a matrix's rules in ascending order and returns the first rule
// whose populated scalar fields AND condition tree all match the fact map, or
// nil when nothing matches.
//
// Ordering is the whole contract: rules are not weighted or scored. Operators
// order rules from most-specific to most-general, exactly as a firewall rule
// list, and evaluation stops at the first hit. A matrix with no rules behaves
// identically to a matrix where no rule matched.
func Match(m *models.RuleMatrix, facts Facts, now time.Time) *models.Rule {
	rules := append([]*models.Rule(nil), m.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Order < rules[j].Order })
	for _, rule := range rules {
		if ruleMatches(rule, facts, now) {
			return rule
		}
	}
	return nil
}

// ruleMatches requires every populated scalar field to be satisfied. A rule
// with no populated fields and no condition tree matches every fact set.
func ruleMatches(r *models.Rule, facts Facts, now time.Time) bool {
	if r.PositionCategory != "" && !factEquals(facts, FactPositionCategory, r.PositionCategory) {
		return false
	}
	if r.OffenseType != "" && !factEquals(facts, FactOffenseType, r.OffenseType) {
		return false
	}
	// Severity matches by exact equality. At-or-above ordinal matching is a
	// pending product clarification; see Severity.Rank.
	if r.Severity != "" && !factEquals(facts, FactSeverity, string(r.Severity)) {
		return false
	}
	if r.LookbackYears != nil && !facts.OffenseWithin(*r.LookbackYears, now) {
		return false
	}
	return EvaluateCondition(r.Condition, facts)
}

func factEquals(facts Facts, key, want string) bool {
	got, ok := facts[key].(string)
	return ok && got == want
}
