package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// ErrBatchExists is returned when a record's sequence number was already stored.
var ErrBatchExists = errors.New("event batch already recorded")

// EventLogRepository stores encounter event batches. It implements combat.EventSink.
type EventLogRepository struct {
	db *pgxpool.Pool
}

// NewEventLogRepository creates an EventLogRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEventLogRepository(db *pgxpool.Pool) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// Append stores every event of rec in one transaction, one row per event.
//
// Precondition: rec.EncounterID must be non-empty.
// Postcondition: either all of rec's events are stored or none are;
// ErrBatchExists if (EncounterID, Seq) was already recorded.
func (r *EventLogRepository) Append(ctx context.Context, rec combat.Record) error {
	if rec.EncounterID == "" {
		return fmt.Errorf("appending events: encounter id must not be empty")
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for i, ev := range rec.Events {
		payload, err := sim.EncodeEvent(ev)
		if err != nil {
			return fmt.Errorf("encoding %s event %d of batch %d: %w", ev.Kind(), i, rec.Seq, err)
		}
		batch.Queue(
			`INSERT INTO encounter_events (encounter_id, seq, position, round, actor_id, kind, payload, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.EncounterID, rec.Seq, i, rec.Round, rec.ActorID, string(ev.Kind()), payload, rec.At,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isDuplicateKeyError(err) {
				return ErrBatchExists
			}
			return fmt.Errorf("inserting events: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing events: %w", err)
	}
	return nil
}

// Load returns the stored batches of encounterID in sequence order. Batches
// with no events are not stored and so are not returned.
//
// Postcondition: each Record's Events are in their original order.
func (r *EventLogRepository) Load(ctx context.Context, encounterID string) ([]combat.Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT seq, round, actor_id, payload, recorded_at
		 FROM encounter_events
		 WHERE encounter_id = $1
		 ORDER BY seq, position`,
		encounterID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []combat.Record
	for rows.Next() {
		var rec combat.Record
		var payload []byte
		if err := rows.Scan(&rec.Seq, &rec.Round, &rec.ActorID, &payload, &rec.At); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev, err := sim.DecodeEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding event of batch %d: %w", rec.Seq, err)
		}
		if n := len(out); n > 0 && out[n-1].Seq == rec.Seq {
			out[n-1].Events = append(out[n-1].Events, ev)
			continue
		}
		rec.EncounterID = encounterID
		rec.Events = []sim.Event{ev}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return out, nil
}

// Delete removes every event of encounterID and returns how many rows went.
func (r *EventLogRepository) Delete(ctx context.Context, encounterID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM encounter_events WHERE encounter_id = $1`, encounterID)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
