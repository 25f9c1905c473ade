package conflict

import (
	"math"
	"strings"
)

// Hint classifies what a numeric property means for merging purposes.
type Hint int

const (
	// HintNone merges by rounded average.
	HintNone Hint = iota
	// HintDepleting is for health/HP-like quantities that must never be
	// restored by a stale high reading: the lower side wins.
	HintDepleting
	// HintMonotonic is for score/experience-like accumulators that never
	// regress: the higher side wins.
	HintMonotonic
)

// HintForPath derives the semantic hint from a dotted property path.
func HintForPath(path string) Hint {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "health") || strings.Contains(p, "hp"):
		return HintDepleting
	case strings.Contains(p, "score") || strings.Contains(p, "exp"):
		return HintMonotonic
	default:
		return HintNone
	}
}

// mergePolicy merges two same-kind values for one property.
type mergePolicy func(local, remote Value, path string) Value

// mergePolicies is the per-kind policy table. It is consulted only when the
// two sides hold the same kind; mismatched kinds always keep local. Filled
// in init: mergeStructured recurses through MergeValues, so a literal would
// form an initialization cycle.
var mergePolicies map[Kind]mergePolicy

func init() {
	mergePolicies = map[Kind]mergePolicy{
		KindNumber:     mergeNumbers,
		KindText:       mergeTexts,
		KindFlag:       mergeFlags,
		KindSequence:   mergeSequences,
		KindStructured: mergeStructured,
	}
}

func mergeNumbers(local, remote Value, path string) Value {
	l, r := local.Number(), remote.Number()
	switch HintForPath(path) {
	case HintDepleting:
		return Number(math.Min(l, r))
	case HintMonotonic:
		return Number(math.Max(l, r))
	default:
		return Number(math.Round((l + r) / 2))
	}
}

// mergeTexts keeps the longer string; on equal length, the lexicographically
// greater one, so both sides converge on the same pick.
func mergeTexts(local, remote Value, _ string) Value {
	l, r := local.Text(), remote.Text()
	if len(l) > len(r) {
		return local
	}
	if len(r) > len(l) {
		return remote
	}
	if l >= r {
		return local
	}
	return remote
}

// mergeFlags prefers local to minimize flip-flopping.
func mergeFlags(local, _ Value, _ string) Value {
	return local
}

// mergeSequences unions the two lists: every local element in original
// order, then remote elements not already present under deep equality.
func mergeSequences(local, remote Value, _ string) Value {
	merged := append([]Value(nil), local.Items()...)
	for _, item := range remote.Items() {
		present := false
		for _, existing := range merged {
			if existing.Equal(item) {
				present = true
				break
			}
		}
		if !present {
			merged = append(merged, item)
		}
	}
	return Sequence(merged...)
}

// mergeStructured applies the policy table recursively per key. Keys present
// on only one side carry over unchanged.
func mergeStructured(local, remote Value, _ string) Value {
	fields := make(map[string]Value, len(local.Fields()))
	for k, lv := range local.Fields() {
		if rv, ok := remote.Field(k); ok {
			fields[k] = MergeValues(lv, rv, k)
		} else {
			fields[k] = lv
		}
	}
	for k, rv := range remote.Fields() {
		if _, ok := local.Field(k); !ok {
			fields[k] = rv
		}
	}
	return Structured(fields)
}

// MergeValues merges two property values below whole-snapshot granularity.
// Equal values are returned as-is; same-kind values go through the policy
// table; anything else keeps local.
func MergeValues(local, remote Value, path string) Value {
	if local.Equal(remote) {
		return local
	}
	if local.IsAbsent() {
		return remote
	}
	if remote.IsAbsent() {
		return local
	}
	if local.Kind() == remote.Kind() {
		if policy, ok := mergePolicies[local.Kind()]; ok {
			return policy(local, remote, path)
		}
	}
	return local
}
