package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/llmgate/internal/models"
)

type MetricRepo struct {
	DB DBTX
}

const recordHit = `-- name: RecordHit
INSERT INTO activity_metrics (method, endpoint, user_id, request_count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (method, endpoint, user_id)
DO UPDATE SET request_count = activity_metrics.request_count + 1
`

func (r *MetricRepo) RecordHit(ctx context.Context, method string, endpoint string, userID int64) error {
	_, err := r.DB.Exec(ctx, recordHit, method, endpoint, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listMetrics = `-- name: ListMetrics
SELECT method, endpoint, user_id, request_count FROM activity_metrics
ORDER BY request_count DESC, method, endpoint, user_id
`

func (r *MetricRepo) ListMetrics(ctx context.Context) ([]models.EndpointMetric, error) {
	rows, _ := r.DB.Query(ctx, listMetrics)
	metrics, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.EndpointMetric])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return metrics, nil
}
