package config

import "fmt"

// IsValidUserConfig guards import from untrusted sources. It runs on the
// loosely-typed decoded JSON document, before Migrate or struct
// decoding, so a malicious or corrupt document is rejected before any field
// access assumes a shape.
func IsValidUserConfig(doc map[string]any) error {
	if looksLikeHistoryRecord(doc) {
		return fmt.Errorf("config: document looks like a history record, not a user config")
	}

	if hasNumericKeyArray(doc) {
		return fmt.Errorf("config: document has numerically-keyed object masquerading as an array")
	}

	if eb, ok := doc["enabled_backends"]; ok {
		if _, isArray := eb.([]any); !isArray {
			return fmt.Errorf("config: enabled_backends must be an array")
		}
	}

	if b, ok := doc["backends"]; ok {
		if _, isObject := b.(map[string]any); !isObject {
			return fmt.Errorf("config: backends must be an object")
		}
	}

	return nil
}

// looksLikeHistoryRecord detects the telltale shape of a history.Store
// record (results + primary_backend + timestamp_ms) being imported where a
// UserConfig is expected.
func looksLikeHistoryRecord(doc map[string]any) bool {
	_, hasResults := doc["results"]
	_, hasPrimary := doc["primary_backend"]
	_, hasTimestamp := doc["timestamp_ms"]

	return hasResults && hasPrimary && hasTimestamp
}

// hasNumericKeyArray reports whether any top-level object value uses
// purely numeric string keys ("0", "1", "2", ...) — a shape produced by
// serializing a JS/Python array as a map, which should have been a JSON
// array instead.
func hasNumericKeyArray(doc map[string]any) bool {
	for _, v := range doc {
		m, ok := v.(map[string]any)
		if !ok || len(m) == 0 {
			continue
		}

		allNumeric := true

		for k := range m {
			if !isDigits(k) {
				allNumeric = false
				break
			}
		}

		if allNumeric {
			return true
		}
	}

	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
