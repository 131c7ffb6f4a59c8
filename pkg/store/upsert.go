package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-ingest/pkg/dedupe"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchSize bounds the rows per INSERT statement inside one upsert transaction.
const BatchSize = 500

var (
	// ErrMissingKey is returned when a row has a zero natural key (or key half).
	ErrMissingKey = errors.New("row has no natural key")

	// ErrNoPayload is returned for ConflictUpdate on a link spec without payload columns.
	ErrNoPayload = errors.New("conflict update requires payload columns")

	// ErrInvalidSpec is returned when a spec names no table or key columns.
	ErrInvalidSpec = errors.New("invalid upsert spec")
)

// ConflictPolicy selects what a link upsert does with an existing row.
type ConflictPolicy int

const (
	// ConflictIgnore keeps the existing row (ON CONFLICT DO NOTHING).
	ConflictIgnore ConflictPolicy = iota

	// ConflictUpdate overwrites the payload columns (ON CONFLICT DO UPDATE).
	ConflictUpdate
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictIgnore:
		return "ignore"
	case ConflictUpdate:
		return "update"
	default:
		return fmt.Sprintf("ConflictPolicy(%d)", int(p))
	}
}

// EntitySpec describes an entity table keyed by a natural key.
type EntitySpec struct {
	Table         string
	KeyColumns    []string
	UpdateColumns []string
}

// LinkSpec describes a junction table keyed by a composite key.
type LinkSpec struct {
	Table          string
	KeyColumns     []string
	PayloadColumns []string
}

// Entity is a row with a single natural key.
type Entity interface {
	NaturalKey() int64
}

// Link is a junction row with a two-part key.
type Link interface {
	LinkKey() (int64, int64)
}

type linkKey struct{ a, b int64 }

// UpsertEntities writes rows with INSERT ... ON CONFLICT (keys) DO UPDATE SET
// col = EXCLUDED.col for every update column, in one transaction. Rows sharing
// a key are collapsed last-wins first. An empty batch returns nil without
// touching db.
func UpsertEntities[T Entity](ctx context.Context, db *gorm.DB, spec EntitySpec, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if spec.Table == "" || len(spec.KeyColumns) == 0 {
		return fmt.Errorf("%w: table %q keys %v", ErrInvalidSpec, spec.Table, spec.KeyColumns)
	}
	for i, r := range rows {
		if r.NaturalKey() <= 0 {
			return fmt.Errorf("upsert %s row %d: %w", spec.Table, i, ErrMissingKey)
		}
	}

	rows = dedupe.Dedupe(rows, func(r T) int64 { return r.NaturalKey() })

	onConflict := clause.OnConflict{Columns: columns(spec.KeyColumns)}
	if len(spec.UpdateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(spec.UpdateColumns)
	} else {
		onConflict.DoNothing = true
	}

	return write(ctx, db, spec.Table, onConflict, rows)
}

// UpsertLinks writes junction rows. ConflictIgnore leaves existing rows
// untouched; ConflictUpdate overwrites the payload columns. An empty batch
// returns nil without touching db.
func UpsertLinks[T Link](ctx context.Context, db *gorm.DB, spec LinkSpec, rows []T, policy ConflictPolicy) error {
	if len(rows) == 0 {
		return nil
	}
	if spec.Table == "" || len(spec.KeyColumns) == 0 {
		return fmt.Errorf("%w: table %q keys %v", ErrInvalidSpec, spec.Table, spec.KeyColumns)
	}

	onConflict := clause.OnConflict{Columns: columns(spec.KeyColumns)}
	switch policy {
	case ConflictIgnore:
		onConflict.DoNothing = true
	case ConflictUpdate:
		if len(spec.PayloadColumns) == 0 {
			return fmt.Errorf("upsert %s: %w", spec.Table, ErrNoPayload)
		}
		onConflict.DoUpdates = clause.AssignmentColumns(spec.PayloadColumns)
	default:
		return fmt.Errorf("%w: unknown conflict policy %v", ErrInvalidSpec, policy)
	}

	for i, r := range rows {
		a, b := r.LinkKey()
		if a <= 0 || b <= 0 {
			return fmt.Errorf("upsert %s row %d: %w", spec.Table, i, ErrMissingKey)
		}
	}

	rows = dedupe.Dedupe(rows, func(r T) linkKey {
		a, b := r.LinkKey()
		return linkKey{a, b}
	})

	return write(ctx, db, spec.Table, onConflict, rows)
}

func write[T any](ctx context.Context, db *gorm.DB, table string, onConflict clause.OnConflict, rows []T) error {
	start := time.Now()
	defer func() {
		upsertDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	}()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).Clauses(onConflict).CreateInBatches(rows, BatchSize).Error
	})
	if err != nil {
		class := errorClass(err)
		upsertErrorsTotal.WithLabelValues(table, class).Inc()
		if class == "constraint" {
			return fmt.Errorf("upsert %s: %w: %w", table, ErrConstraint, err)
		}
		return fmt.Errorf("upsert %s: %w", table, err)
	}

	upsertRowsTotal.WithLabelValues(table).Add(float64(len(rows)))
	return nil
}

func columns(names []string) []clause.Column {
	cols := make([]clause.Column, len(names))
	for i, n := range names {
		cols[i] = clause.Column{Name: n}
	}
	return cols
}
