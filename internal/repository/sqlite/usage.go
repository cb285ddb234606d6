package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/repository"
)

var _ repository.UsageRepository = (*UsageStore)(nil)

// UsageStore is the append-only token/cost ledger.
type UsageStore struct {
	conn *sql.DB
}

// Record appends one usage row. The date and cost are computed by the caller.
func (s *UsageStore) Record(ctx context.Context, rec *model.UsageRecord) error {
	result, err := s.conn.ExecContext(ctx,
		`INSERT INTO usage_log (user_id, date, input_tokens, output_tokens, total_tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Date, rec.InputTokens, rec.OutputTokens, rec.TotalTokens, rec.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording usage for user %s: %w", rec.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading usage id: %w", err)
	}
	rec.ID = id
	return nil
}

// Summary sums the user's rows per date, newest first, limited to days rows.
func (s *UsageStore) Summary(ctx context.Context, userID string, days int) ([]model.UsageDay, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT date,
		        SUM(input_tokens),
		        SUM(output_tokens),
		        SUM(total_tokens),
		        SUM(cost_usd)
		 FROM usage_log
		 WHERE user_id = ?
		 GROUP BY date
		 ORDER BY date DESC
		 LIMIT ?`,
		userID, days,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: summarising usage for user %s: %w", userID, err)
	}
	defer rows.Close()

	summary := []model.UsageDay{}
	for rows.Next() {
		var d model.UsageDay
		if err := rows.Scan(&d.Date, &d.InputTokens, &d.OutputTokens, &d.TotalTokens, &d.CostUSD); err != nil {
			return nil, fmt.Errorf("sqlite: scanning usage row: %w", err)
		}
		summary = append(summary, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating usage rows: %w", err)
	}
	return summary, nil
}
