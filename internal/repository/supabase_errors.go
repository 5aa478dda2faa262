package repository

import (
	"fmt"
	"regexp"
	"strings"

	"plan-gate-server/internal/domain"
)

const (
	pgUndefinedColumn      = "42703"
	postgrestUnknownColumn = "PGRST204"
)

var postgrestCodePattern = regexp.MustCompile(`^\(([A-Z0-9]+)\)`)

// translateError converts a raw PostgREST error into a SchemaDriftError when
// it reports a missing column. Other errors are wrapped with op.
func translateError(op, table, column string, err error) error {
	if err == nil {
		return nil
	}
	if code, ok := missingColumnCode(err.Error()); ok {
		return &domain.SchemaDriftError{Table: table, Column: column, Code: code, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// missingColumnCode recognises both the "(code) message" form produced by
// postgrest-go and bare messages from older PostgREST versions.
func missingColumnCode(msg string) (string, bool) {
	if m := postgrestCodePattern.FindStringSubmatch(msg); m != nil {
		switch m[1] {
		case pgUndefinedColumn, postgrestUnknownColumn:
			return m[1], true
		}
	}
	if strings.Contains(msg, pgUndefinedColumn) {
		return pgUndefinedColumn, true
	}
	if strings.Contains(msg, postgrestUnknownColumn) {
		return postgrestUnknownColumn, true
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "column") &&
		(strings.Contains(lower, "does not exist") || strings.Contains(lower, "could not find")) {
		return pgUndefinedColumn, true
	}
	return "", false
}
