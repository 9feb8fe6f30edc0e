package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-generator/worker/internal/dto"
	"github.com/octobees/leads-generator/worker/internal/entity"
)

// PGXListingsRepository implements ListingsRepository on the places table.
// The seq column orders rows by insertion so a re-ingested listing always
// sorts as the most recent.
type PGXListingsRepository struct {
	pool pgxPool
	now  func() time.Time
}

// NewPGXListingsRepository wires a pgx backed repository.
func NewPGXListingsRepository(pool *pgxpool.Pool) *PGXListingsRepository {
	return &PGXListingsRepository{pool: pool, now: time.Now}
}

var _ pgxPool = (*pgxpool.Pool)(nil)
var _ ListingsRepository = (*PGXListingsRepository)(nil)

const insertPlaceSQL = `
        INSERT INTO places (
            id,
            name,
            address,
            phone,
            phone_e164,
            website,
            email,
            social_links,
            rating,
            reviews_count,
            category,
            batch_id,
            url,
            ingested_at,
            lead_score
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14, $15)
    `

// Insert stores listing under a new id and sets listing.ID and IngestedAt.
func (r *PGXListingsRepository) Insert(ctx context.Context, listing *entity.BusinessListing) error {
	if listing == nil {
		return ErrNilListing
	}

	links := listing.SocialLinks
	if links == nil {
		links = map[string]string{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal social links: %w", err)
	}

	id := uuid.New()
	ingestedAt := listing.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = r.clock()().UTC()
	}

	_, err = r.pool.Exec(ctx, insertPlaceSQL,
		id,
		listing.Name,
		stringOrNil(listing.Address),
		stringOrNil(listing.Phone),
		stringOrNil(listing.PhoneE164),
		stringOrNil(listing.Website),
		stringOrNil(listing.Email),
		string(linksJSON),
		stringOrNil(listing.Rating),
		stringOrNil(listing.ReviewsCount),
		stringOrNil(listing.Category),
		listing.BatchID,
		listing.SourceURL,
		ingestedAt,
		listing.LeadScore,
	)
	if err != nil {
		return fmt.Errorf("insert place: %w", err)
	}

	listing.ID = id.String()
	listing.IngestedAt = ingestedAt
	return nil
}

// DeleteMany removes every row matching the identity filter. When the filter
// has no address, rows match on name alone whatever their address.
func (r *PGXListingsRepository) DeleteMany(ctx context.Context, filter dto.IdentityFilter) (int64, error) {
	query := "DELETE FROM places WHERE name = $1"
	args := []any{filter.Name}
	if filter.Address != nil {
		query += " AND address = $2"
		args = append(args, *filter.Address)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete places: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Find lists places matching filter.
func (r *PGXListingsRepository) Find(ctx context.Context, filter dto.ListFilter) ([]entity.BusinessListing, error) {
	query := strings.Builder{}
	query.WriteString(`
        SELECT
            id,
            name,
            address,
            phone,
            phone_e164,
            website,
            email,
            social_links,
            rating,
            reviews_count,
            category,
            batch_id,
            url,
            ingested_at,
            lead_score
        FROM places
    `)

	clauses, args := placesWhere(filter)
	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}

	query.WriteString(" ORDER BY ")
	switch sortKey(filter.Sort) {
	case "rating":
		query.WriteString("CAST(NULLIF(rating, '') AS NUMERIC) DESC NULLS LAST, seq DESC")
	case "name":
		query.WriteString("name ASC, seq DESC")
	case "score":
		query.WriteString("lead_score DESC, seq DESC")
	default:
		query.WriteString("seq DESC")
	}

	skip, limit := normalizeWindow(filter)
	idx := len(args) + 1
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
	args = append(args, limit, skip)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	return scanPlaces(rows)
}

// Count returns how many places match filter, ignoring skip and limit.
func (r *PGXListingsRepository) Count(ctx context.Context, filter dto.ListFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM places"
	clauses, args := placesWhere(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count places: %w", err)
	}
	return total, nil
}

func (r *PGXListingsRepository) clock() func() time.Time {
	if r.now == nil {
		return time.Now
	}
	return r.now
}

func placesWhere(filter dto.ListFilter) ([]string, []any) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if q := strings.TrimSpace(filter.Q); q != "" {
		pattern := fmt.Sprintf("%%%s%%", q)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR address ILIKE $%d)", idx, idx+1))
		args = append(args, pattern, pattern)
		idx += 2
	}
	if filter.BatchID != "" {
		clauses = append(clauses, fmt.Sprintf("batch_id = $%d", idx))
		args = append(args, filter.BatchID)
		idx++
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", idx))
		args = append(args, filter.Category)
	}
	switch strings.ToLower(filter.WebsiteStatus) {
	case "missing":
		clauses = append(clauses, "(website IS NULL OR website = '')")
	case "available":
		clauses = append(clauses, "(website IS NOT NULL AND website <> '')")
	}

	return clauses, args
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}

func scanPlaces(rows pgx.Rows) ([]entity.BusinessListing, error) {
	var listings []entity.BusinessListing
	for rows.Next() {
		var (
			l            entity.BusinessListing
			id           uuid.UUID
			address      sql.NullString
			phone        sql.NullString
			phoneE164    sql.NullString
			website      sql.NullString
			email        sql.NullString
			socialLinks  []byte
			rating       sql.NullString
			reviewsCount sql.NullString
			category     sql.NullString
		)

		err := rows.Scan(
			&id,
			&l.Name,
			&address,
			&phone,
			&phoneE164,
			&website,
			&email,
			&socialLinks,
			&rating,
			&reviewsCount,
			&category,
			&l.BatchID,
			&l.SourceURL,
			&l.IngestedAt,
			&l.LeadScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}

		l.ID = id.String()
		l.Address = nullStringToPtr(address)
		l.Phone = nullStringToPtr(phone)
		l.PhoneE164 = nullStringToPtr(phoneE164)
		l.Website = nullStringToPtr(website)
		l.Email = nullStringToPtr(email)
		l.Rating = nullStringToPtr(rating)
		l.ReviewsCount = nullStringToPtr(reviewsCount)
		l.Category = nullStringToPtr(category)

		l.SocialLinks = map[string]string{}
		if len(socialLinks) > 0 {
			if err := json.Unmarshal(socialLinks, &l.SocialLinks); err != nil {
				return nil, fmt.Errorf("decode social_links: %w", err)
			}
		}

		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}

	return listings, nil
}
