package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/octobees/leads-generator/worker/internal/dto"
	"github.com/octobees/leads-generator/worker/internal/entity"
)

// ListingsRepository is the shared store the crawl writes into. Every insert
// assigns a fresh store id, and listings come back most recent first unless
// another sort is requested.
type ListingsRepository interface {
	Insert(ctx context.Context, listing *entity.BusinessListing) error
	DeleteMany(ctx context.Context, filter dto.IdentityFilter) (int64, error)
	Find(ctx context.Context, filter dto.ListFilter) ([]entity.BusinessListing, error)
	Count(ctx context.Context, filter dto.ListFilter) (int64, error)
}

// ErrNilListing is returned when Insert receives no listing.
var ErrNilListing = errors.New("listing payload is nil")

// pgxPool is the part of *pgxpool.Pool the repositories use.
type pgxPool interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// normalizeWindow clamps skip and limit to the supported range.
func normalizeWindow(filter dto.ListFilter) (skip, limit int) {
	skip = filter.Skip
	if skip < 0 {
		skip = 0
	}
	limit = filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit
}

func sortKey(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "rating":
		return "rating"
	case "name":
		return "name"
	case "score":
		return "score"
	default:
		return "recent"
	}
}

func stringOrNil(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
