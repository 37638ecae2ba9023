package compliance

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ParseMissingItems reads the pipeline's missing-item text. The pipeline writes a
// comma-separated list ("No Helmet, No Vest"); a JSON string array is accepted too.
// Anything unreadable yields an empty list and malformed=true.
func ParseMissingItems(raw string) (items []string, malformed bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}, false
	}

	if strings.HasPrefix(trimmed, "[") {
		var decoded []string
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return []string{}, true
		}
		return cleanItems(decoded), false
	}

	return cleanItems(strings.Split(trimmed, ",")), false
}

func cleanItems(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SelectLatest picks the candidate with the latest LastUpdatedAt. Any timestamp
// that parses is newer than one that does not; parsed timestamps compare as time,
// the rest as text. EmployeeID breaks ties so the choice does not depend on input
// order. ambiguous is true when more than one candidate was supplied.
func SelectLatest(candidates []OutcomeRecord) (chosen OutcomeRecord, ambiguous bool, ok bool) {
	if len(candidates) == 0 {
		return OutcomeRecord{}, false, false
	}

	sorted := make([]OutcomeRecord, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return newerThan(sorted[i], sorted[j])
	})
	return sorted[0], len(candidates) > 1, true
}

func newerThan(a OutcomeRecord, b OutcomeRecord) bool {
	if cmp := compareTimestamps(a.LastUpdatedAt, b.LastUpdatedAt); cmp != 0 {
		return cmp > 0
	}
	return a.EmployeeID > b.EmployeeID
}

func compareTimestamps(a string, b string) int {
	ta, errA := parseTimestamp(a)
	tb, errB := parseTimestamp(b)
	switch {
	case errA == nil && errB == nil:
		return ta.Compare(tb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(strings.TrimSpace(a), strings.TrimSpace(b))
	}
}

func parseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return t, nil
	}
	// The pipeline sometimes writes naive UTC timestamps.
	return time.Parse("2006-01-02T15:04:05", trimmed)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
