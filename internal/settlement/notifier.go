// internal/settlement/notifier.go
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tbu5358/risko-realtime/internal/database"
	"github.com/tbu5358/risko-realtime/internal/retry"
	"github.com/tbu5358/risko-realtime/internal/session"
)

// DefaultQueueName is the Redis list the external wallet service consumes.
var DefaultQueueName = "arena_settlements"

// Record is what the wallet service needs to credit the winner.
type Record struct {
	MatchID     uuid.UUID        `json:"match_id"`
	Winner      string           `json:"winner"`
	Loser       string           `json:"loser"`
	Wager       float64          `json:"wager"`
	Reason      string           `json:"reason"`
	FinalClocks map[string]int64 `json:"final_clocks_ms"`
	Moves       int              `json:"moves"`
	Timestamp   int64            `json:"timestamp"`
}

// ConnectRedis initializes a Redis client for the settlement queue.
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Notifier publishes terminal sessions to the settlement queue. The
// contract is fire-and-forget: publishing happens off the caller's
// goroutine, a transient failure is retried once, and persistent failure
// is logged and persisted for the operator channel. It never reopens or
// blocks the already-ended session.
type Notifier struct {
	rdb    *redis.Client
	pool   *pgxpool.Pool
	queue  string
	logger *logrus.Logger
}

// NewNotifier wires a notifier. rdb and pool may each be nil (dev mode);
// publishing then degrades to logging.
func NewNotifier(rdb *redis.Client, pool *pgxpool.Pool, queue string, logger *logrus.Logger) *Notifier {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Notifier{rdb: rdb, pool: pool, queue: queue, logger: logger}
}

// Publish implements lobby.Settler.
func (n *Notifier) Publish(res session.Result) {
	rec := Record{
		MatchID:     res.MatchID,
		Winner:      res.Winner,
		Loser:       res.Loser,
		Wager:       res.Wager,
		Reason:      res.Reason,
		FinalClocks: make(map[string]int64, len(res.FinalClocks)),
		Moves:       res.Moves,
		Timestamp:   time.Now().Unix(),
	}
	for role, d := range res.FinalClocks {
		rec.FinalClocks[role] = d.Milliseconds()
	}
	go n.publish(rec)
}

func (n *Notifier) publish(rec Record) {
	published := n.push(rec)
	if !published {
		n.logger.Errorf("settlement: publish failed for match %s; flagged for operator replay", rec.MatchID)
	}
	n.persist(rec, published)
}

// push RPushes the record, retrying once after a backoff delay.
func (n *Notifier) push(rec Record) bool {
	if n.rdb == nil {
		n.logger.Warnf("settlement: no queue configured, match %s not published", rec.MatchID)
		return false
	}
	data, err := json.Marshal(rec)
	if err != nil {
		n.logger.Errorf("settlement: failed to marshal record for match %s: %v", rec.MatchID, err)
		return false
	}
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(retry.Backoff(attempt))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = n.rdb.RPush(ctx, n.queue, data).Err()
		cancel()
		if err == nil {
			return true
		}
		n.logger.Warnf("settlement: RPush attempt %d failed for match %s: %v", attempt+1, rec.MatchID, err)
	}
	return false
}

func (n *Notifier) persist(rec Record, published bool) {
	if n.pool == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := database.UpsertMatchResult(ctx, n.pool, database.MatchResultRow{
		MatchID:   rec.MatchID,
		Winner:    rec.Winner,
		Loser:     rec.Loser,
		Reason:    rec.Reason,
		Wager:     rec.Wager,
		Moves:     rec.Moves,
		Published: published,
	})
	if err != nil {
		n.logger.Errorf("settlement: failed to persist result for match %s: %v", rec.MatchID, err)
	}
}
