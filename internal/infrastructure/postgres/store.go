package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/cheapmatch/backend/internal/domain"
)

const matchCacheTable = "match_cache"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var matchCacheColumns = []string{
	"source_item_id", "currency", "found",
	"candidate_id", "title", "price", "match_currency", "savings",
	"destination_url", "image_url", "confidence",
	"last_checked", "created_at", "updated_at",
}

// upsertSuffix keeps created_at and moves updated_at strictly forward
const upsertSuffix = `ON CONFLICT (source_item_id, currency) DO UPDATE SET
	found = EXCLUDED.found,
	candidate_id = EXCLUDED.candidate_id,
	title = EXCLUDED.title,
	price = EXCLUDED.price,
	match_currency = EXCLUDED.match_currency,
	savings = EXCLUDED.savings,
	destination_url = EXCLUDED.destination_url,
	image_url = EXCLUDED.image_url,
	confidence = EXCLUDED.confidence,
	last_checked = EXCLUDED.last_checked,
	updated_at = GREATEST(EXCLUDED.updated_at, match_cache.updated_at + INTERVAL '1 microsecond')
RETURNING created_at, updated_at`

// Store persists result cache entries in the match_cache table
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a result store backed by Postgres
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get retrieves the entry for key
func (s *Store) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	query, args, err := psql.Select(matchCacheColumns...).
		From(matchCacheTable).
		Where(sq.Eq{"source_item_id": key.SourceItemID, "currency": string(key.Currency)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		entry          domain.CacheEntry
		currency       string
		found          bool
		candidateID    *string
		title          *string
		price          *float64
		matchCurrency  *string
		savings        *float64
		destinationURL *string
		imageURL       *string
		confidence     *float64
	)

	err = s.db.Pool.QueryRow(ctx, query, args...).Scan(
		&entry.SourceItemID, &currency, &found,
		&candidateID, &title, &price, &matchCurrency, &savings,
		&destinationURL, &imageURL, &confidence,
		&entry.LastChecked, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	entry.Currency = domain.Currency(currency)
	if found {
		entry.Match = &domain.MatchResult{
			CandidateID:    deref(candidateID),
			Title:          deref(title),
			Price:          deref(price),
			Currency:       domain.Currency(deref(matchCurrency)),
			Savings:        deref(savings),
			DestinationURL: deref(destinationURL),
			ImageURL:       deref(imageURL),
			Confidence:     deref(confidence),
		}
	}

	return &entry, nil
}

// Upsert inserts or replaces the entry for its key in a single statement
func (s *Store) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	now := s.now()
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	values := []interface{}{
		entry.SourceItemID, string(entry.Currency), !entry.Negative(),
	}
	if m := entry.Match; m != nil {
		values = append(values,
			m.CandidateID, m.Title, m.Price, string(m.Currency), m.Savings,
			m.DestinationURL, m.ImageURL, m.Confidence,
		)
	} else {
		values = append(values, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	values = append(values, entry.LastChecked, createdAt, now)

	query, args, err := psql.Insert(matchCacheTable).
		Columns(matchCacheColumns...).
		Values(values...).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return fmt.Errorf("%w: upsert match cache: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
