package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

type querySpanKey struct{}

// queryTracer opens a child span for every statement issued under a traced request.
type queryTracer struct {
	maxStatementLen int
}

func newQueryTracer() *queryTracer {
	return &queryTracer{maxStatementLen: 512}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	statement := t.compact(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithOpName("db.sql.query"),
		sentry.WithDescription(statement),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")
	if verb, table := statementTarget(statement); verb != "" {
		span.SetData("db.operation", verb)
		if table != "" {
			span.SetData("db.collection.name", table)
		}
	}

	return context.WithValue(span.Context(), querySpanKey{}, span)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(*sentry.Span)
	if !ok || span == nil {
		return
	}
	defer span.Finish()

	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
		return
	}
	span.Status = sentry.SpanStatusOK
	span.SetData("db.rows_affected", data.CommandTag.RowsAffected())
}

func (t *queryTracer) compact(statement string) string {
	compacted := strings.Join(strings.Fields(statement), " ")
	if compacted == "" {
		return "sql.query"
	}
	if t.maxStatementLen > 0 && len(compacted) > t.maxStatementLen {
		return compacted[:t.maxStatementLen]
	}
	return compacted
}

// statementTarget returns the SQL verb and, when it can be found cheaply, the
// table the statement acts on.
func statementTarget(statement string) (string, string) {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "", ""
	}
	verb := strings.ToUpper(fields[0])

	var marker string
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		return verb, tableName(fields, 1)
	default:
		return verb, ""
	}
	for i, field := range fields {
		if strings.EqualFold(field, marker) {
			return verb, tableName(fields, i+1)
		}
	}
	return verb, ""
}

func tableName(fields []string, index int) string {
	if index >= len(fields) {
		return ""
	}
	name := strings.TrimRight(fields[index], "(,;")
	if strings.HasPrefix(name, "(") {
		return ""
	}
	return strings.ToLower(name)
}
