// Package repository defines the ranked result store interface and errors.
package repository

import (
	"context"
	"time"
)

// Record is one persisted game result.
type Record struct {
	ID        int64
	Name      string
	Score     int64
	ImageFile string
	CreatedAt time.Time
}

// Store provides durable access to the ranked results.
type Store interface {
	// Insert persists a new result and returns the stored record with its
	// assigned id. An empty name is rejected with ErrValidation.
	Insert(ctx context.Context, name string, score int64, imageFile string) (Record, error)

	// TopN returns the top-N records ordered by score desc. Ties keep
	// insertion order. n <= 0 means no limit.
	TopN(ctx context.Context, n int) ([]Record, error)

	// Delete removes the record with the given id. The removed record is
	// returned so the caller can cascade asset cleanup; ok is false when the
	// id was not present, which is not an error.
	Delete(ctx context.Context, id int64) (rec Record, ok bool, err error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int
}
