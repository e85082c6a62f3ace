package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgDiagnostics is the subset of a Postgres error worth logging. Both the pgx
// driver used by gorm and lib/pq used by the outbox listener report it.
type pgDiagnostics struct {
	code, constraint, table, column, detail, message string
}

func postgresDiagnostics(err error) (pgDiagnostics, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgDiagnostics{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgDiagnostics{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgDiagnostics{}, false
}

// Fields flattens err into structured log fields. Empty values are omitted so
// gateway and validation failures do not carry blank pg_* keys.
func Fields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if pg, ok := postgresDiagnostics(err); ok {
		for key, value := range map[string]string{
			"pg_code":       pg.code,
			"pg_constraint": pg.constraint,
			"pg_table":      pg.table,
			"pg_column":     pg.column,
			"pg_detail":     pg.detail,
			"pg_message":    pg.message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
