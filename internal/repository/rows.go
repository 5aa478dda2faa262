package repository

import (
	"encoding/json"
	"fmt"
	"time"
)

// decodeRows unmarshals a PostgREST response body.
func decodeRows(data []byte) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return rows, nil
}

// Helper functions for type conversion
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// getTime parses a timestamptz column. Missing, null or malformed values
// yield nil.
func getTime(data map[string]interface{}, key string) *time.Time {
	raw := getString(data, key)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// formatTimestamp renders a time the way PostgREST filters expect it.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
