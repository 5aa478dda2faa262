package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"plan-gate-server/internal/domain"
)

// OpenPostgres connects to DATABASE_URL through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("missing DATABASE_URL")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// translatePgError maps undefined_column to SchemaDriftError.
func translatePgError(op, table, column string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
		return &domain.SchemaDriftError{Table: table, Column: column, Code: pgErr.Code, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// cooldownColumn guards the identifiers interpolated into SQL.
func cooldownColumn(column string) (string, error) {
	for _, known := range domain.CooldownColumns() {
		if known == column {
			return column, nil
		}
	}
	return "", fmt.Errorf("%w: column %q", domain.ErrUnknownFeature, column)
}
