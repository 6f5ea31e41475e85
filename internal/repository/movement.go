package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Evgen-Mutagen/finledger/internal/model"
)

// MovementRepository is the append-only movement log.
type MovementRepository interface {
	// Atomic runs fn in one unit of work that holds exclusive locks on userIDs,
	// taken in ascending order. Appends made through tx become visible only if
	// fn returns nil and the unit commits; otherwise none of them persist. All
	// appends of one unit share a timestamp.
	Atomic(ctx context.Context, userIDs []int64, fn func(ctx context.Context, tx MovementTx) error) error
	// ListByUser returns the committed movements of a user, oldest first.
	ListByUser(ctx context.Context, userID int64) ([]*model.Movement, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Movement, error)
}

// MovementTx is the view of the movement log inside an Atomic unit of work.
type MovementTx interface {
	ListByUser(ctx context.Context, userID int64) ([]*model.Movement, error)
	Append(ctx context.Context, draft model.MovementDraft) (*model.Movement, error)
}

// LockOrder returns the distinct ids in the order locks must be taken.
func LockOrder(userIDs []int64) []int64 {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	return slices.Compact(ids)
}

type movementRepository struct {
	db *Database
}

func NewMovementRepository(db *Database) MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Atomic(ctx context.Context, userIDs []int64, fn func(ctx context.Context, tx MovementTx) error) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", r.db.dialect.classify(err))
	}
	defer tx.Rollback()

	lock := r.db.query(`SELECT id FROM users WHERE id = $1` + r.db.dialect.lockSuffix)
	for _, id := range LockOrder(userIDs) {
		var locked int64
		err := tx.QueryRowContext(ctx, lock, id).Scan(&locked)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock user %d: %w", id, r.db.dialect.classify(err))
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := fn(ctx, &movementTx{tx: tx, db: r.db, now: now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", r.db.dialect.classify(err))
	}
	return nil
}

func (r *movementRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Movement, error) {
	return listMovements(ctx, r.db, r.db.db, userID)
}

func (r *movementRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Movement, error) {
	query := r.db.query(`SELECT ` + movementColumns + ` FROM movements WHERE id = $1`)
	m, err := scanMovement(r.db.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return m, nil
}

type movementTx struct {
	tx  *sql.Tx
	db  *Database
	now time.Time
}

func (t *movementTx) ListByUser(ctx context.Context, userID int64) ([]*model.Movement, error) {
	return listMovements(ctx, t.db, t.tx, userID)
}

func (t *movementTx) Append(ctx context.Context, draft model.MovementDraft) (*model.Movement, error) {
	m := draft.Commit(uuid.New(), t.now)

	var counterpart sql.NullInt64
	if m.CounterpartID != nil {
		counterpart = sql.NullInt64{Int64: *m.CounterpartID, Valid: true}
	}

	query := t.db.query(`INSERT INTO movements (id, user_id, kind, amount, description, counterpart_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	_, err := t.tx.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		string(m.Kind),
		m.Amount,
		m.Description,
		counterpart,
		m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append movement: %w", t.db.dialect.classify(err))
	}
	return m, nil
}

const movementColumns = `id, user_id, kind, amount, description, counterpart_id, created_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func listMovements(ctx context.Context, db *Database, q queryer, userID int64) ([]*model.Movement, error) {
	query := db.query(`SELECT ` + movementColumns + `
              FROM movements
              WHERE user_id = $1
              ORDER BY seq ASC`)
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", db.dialect.classify(err))
	}
	defer rows.Close()

	movements := make([]*model.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return movements, nil
}

func scanMovement(row scanner) (*model.Movement, error) {
	var (
		m           model.Movement
		kind        string
		counterpart sql.NullInt64
	)
	if err := row.Scan(
		&m.ID,
		&m.UserID,
		&kind,
		&m.Amount,
		&m.Description,
		&counterpart,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}

	m.Kind = model.Kind(kind)
	if counterpart.Valid {
		id := counterpart.Int64
		m.CounterpartID = &id
	}
	return &m, nil
}
