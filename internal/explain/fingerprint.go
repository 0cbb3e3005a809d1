// Package explain provides the explanation cache and the natural-language
// explanation generator for risk assessments.
package explain

import (
	"sort"
	"strconv"
	"strings"
)

// Fingerprint builds the order-independent cache key for an explanation:
// amount, currency, and email joined with the lexicographically sorted
// triggered-rule labels. Callers passing the same rule set in any order
// hit the same entry.
func Fingerprint(amount float64, currency, email string, triggeredRules []string) string {
	sorted := make([]string, len(triggeredRules))
	copy(sorted, triggeredRules)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(strconv.FormatFloat(amount, 'f', -1, 64))
	b.WriteString("-")
	b.WriteString(currency)
	b.WriteString("-")
	b.WriteString(email)
	b.WriteString("-")
	b.WriteString(strings.Join(sorted, "|"))
	return b.String()
}
