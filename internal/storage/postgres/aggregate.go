package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"clickup_collector/internal/domain"
)

const (
	aggregateColumns = 8
	// stays below the 65535 bind parameter limit of the protocol
	aggregateBatchSize = 1000
)

type AggregateStore struct {
	db *sqlx.DB
}

func NewAggregateStore(db *sqlx.DB) *AggregateStore {
	return &AggregateStore{db: db}
}

// UpsertBatch writes the rows keyed by (root_task_id, assignee_user_id),
// replacing any previous total.
func (s *AggregateStore) UpsertBatch(ctx context.Context, aggregates []domain.Aggregate) error {
	exec := GetExecutor(ctx, s.db)
	for start := 0; start < len(aggregates); start += aggregateBatchSize {
		end := min(start+aggregateBatchSize, len(aggregates))
		query, args := buildAggregateUpsert(aggregates[start:end])
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func buildAggregateUpsert(rows []domain.Aggregate) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO aggregates (
		root_task_id, assignee_user_id, root_name, client_name, extracted_month,
		total_minutes, total_seconds, calculated_at
	) VALUES `)
	args := make([]any, 0, len(rows)*aggregateColumns)

	for i, a := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= aggregateColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*aggregateColumns + c))
		}
		sb.WriteString(")")
		args = append(args,
			a.RootTaskID,
			a.AssigneeUserID,
			a.RootName,
			a.ClientName,
			a.ExtractedMonth,
			a.TotalMinutes,
			a.TotalSeconds,
			a.CalculatedAt,
		)
	}
	sb.WriteString(` ON CONFLICT (root_task_id, assignee_user_id) DO UPDATE SET
		root_name = EXCLUDED.root_name,
		client_name = EXCLUDED.client_name,
		extracted_month = EXCLUDED.extracted_month,
		total_minutes = EXCLUDED.total_minutes,
		total_seconds = EXCLUDED.total_seconds,
		calculated_at = EXCLUDED.calculated_at`)

	return sb.String(), args
}
