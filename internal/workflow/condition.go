package workflow

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Evaluate decides whether a stage applies given its condition spec and the
// request payload. It is pure and total: every malformed input resolves to
// true, so a stage is never silently skipped because of bad data. Extra
// approvals are preferred over missing ones.
//
// A condition maps payload field names to numeric comparison rules in one
// of two forms:
//
//	{"Amount": {">": 1000, "<=": 5000}}
//	{"Amount": ">1000"}
//
// All comparisons are ANDed; any failed comparison makes the stage skip.
func Evaluate(condition, payload json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(condition))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return true
	}

	var rules map[string]json.RawMessage
	if err := json.Unmarshal(condition, &rules); err != nil {
		return true
	}

	fields := map[string]json.RawMessage{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return true
		}
	}

	// Any referenced field that is missing or non-numeric makes the whole
	// evaluation true, regardless of the other comparisons. Checked up
	// front so the result never depends on map iteration order.
	actuals := make(map[string]float64, len(rules))
	for key := range rules {
		actual, ok := numberValue(fields[key])
		if !ok {
			return true
		}
		actuals[key] = actual
	}

	for key, rule := range rules {
		if !evalRule(rule, actuals[key]) {
			return false
		}
	}
	return true
}

func evalRule(rule json.RawMessage, actual float64) bool {
	trimmed := bytes.TrimSpace(rule)
	if len(trimmed) == 0 {
		return true
	}
	if trimmed[0] == '{' {
		var ops map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &ops); err != nil {
			return true
		}
		for op, limitRaw := range ops {
			limit, ok := numberValue(limitRaw)
			if !ok {
				continue
			}
			if !compare(op, actual, limit) {
				return false
			}
		}
		return true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		// Rule is neither an object nor a string; nothing to enforce.
		return true
	}
	op, rest := splitOperator(s)
	if op == "" {
		return true
	}
	limit, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return true
	}
	return compare(op, actual, limit)
}

// splitOperator peels a leading comparison operator off a string rule like
// ">1000" or "<=5". Longest operators match first.
func splitOperator(s string) (op, rest string) {
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if strings.HasPrefix(s, candidate) {
			return candidate, s[len(candidate):]
		}
	}
	return "", s
}

func compare(op string, actual, limit float64) bool {
	switch op {
	case ">":
		return actual > limit
	case ">=":
		return actual >= limit
	case "<":
		return actual < limit
	case "<=":
		return actual <= limit
	case "=", "==":
		return actual == limit
	case "!=":
		return actual != limit
	}
	// Unknown operators enforce nothing.
	return true
}

// numberValue coerces a raw JSON value to a float. Payload fields routinely
// arrive as strings ("500") because form inputs serialize loosely.
func numberValue(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
