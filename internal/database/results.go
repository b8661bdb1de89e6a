// internal/database/results.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchResultRow is the persisted record of a terminal match.
type MatchResultRow struct {
	MatchID   uuid.UUID
	Winner    string
	Loser     string
	Reason    string
	Wager     float64
	Moves     int
	Published bool
}

// UpsertMatchResult records a terminal match. Published=false rows mark
// settlements the wallet service has not been told about; the operator
// channel replays those.
//
// Expected schema:
//
//	CREATE TABLE match_results (
//	  match_id  uuid PRIMARY KEY,
//	  winner    text NOT NULL,
//	  loser     text NOT NULL,
//	  reason    text NOT NULL,
//	  wager     numeric NOT NULL,
//	  moves     int NOT NULL,
//	  published boolean NOT NULL,
//	  ended_at  timestamptz NOT NULL DEFAULT now()
//	);
func UpsertMatchResult(ctx context.Context, pool *pgxpool.Pool, row MatchResultRow) error {
	q := `
		INSERT INTO match_results (match_id, winner, loser, reason, wager, moves, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id)
		DO UPDATE SET published = $7
	`
	if _, err := pool.Exec(ctx, q, row.MatchID, row.Winner, row.Loser, row.Reason, row.Wager, row.Moves, row.Published); err != nil {
		return fmt.Errorf("upsert match result: %w", err)
	}
	return nil
}
