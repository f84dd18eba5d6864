package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/convtrack/convtrack/internal/model"
)

// VisitorRepository provides database access for visitor telemetry records.
type VisitorRepository struct {
	repo *Repository
}

// NewVisitorRepository creates a new VisitorRepository.
func NewVisitorRepository(repo *Repository) *VisitorRepository {
	return &VisitorRepository{repo: repo}
}

// Upsert stores a visitor record, replacing any previous record for the same
// session. A returning session keeps a single, freshest row.
func (r *VisitorRepository) Upsert(ctx context.Context, v *model.VisitorRecord) error {
	query := `
		INSERT INTO visitors (
			session_id, captured_at, ip, country, country_code, region, city,
			postal_code, timezone, isp, user_agent, page_url, referrer,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			fbp, fbc, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, NOW(), NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			captured_at = EXCLUDED.captured_at,
			ip = EXCLUDED.ip,
			country = EXCLUDED.country,
			country_code = EXCLUDED.country_code,
			region = EXCLUDED.region,
			city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code,
			timezone = EXCLUDED.timezone,
			isp = EXCLUDED.isp,
			user_agent = EXCLUDED.user_agent,
			page_url = EXCLUDED.page_url,
			referrer = EXCLUDED.referrer,
			utm_source = EXCLUDED.utm_source,
			utm_medium = EXCLUDED.utm_medium,
			utm_campaign = EXCLUDED.utm_campaign,
			utm_content = EXCLUDED.utm_content,
			utm_term = EXCLUDED.utm_term,
			fbp = EXCLUDED.fbp,
			fbc = EXCLUDED.fbc,
			updated_at = NOW()
	`

	_, err := r.repo.pool.Exec(ctx, query,
		v.SessionID,
		v.CapturedAt,
		nullableString(v.IP),
		nullableString(v.Country),
		nullableString(v.CountryCode),
		nullableString(v.Region),
		nullableString(v.City),
		nullableString(v.PostalCode),
		nullableString(v.Timezone),
		nullableString(v.ISP),
		nullableString(v.UserAgent),
		nullableString(v.PageURL),
		nullableString(v.Referrer),
		nullableString(v.UTMSource),
		nullableString(v.UTMMedium),
		nullableString(v.UTMCampaign),
		nullableString(v.UTMContent),
		nullableString(v.UTMTerm),
		nullableString(v.FBP),
		nullableString(v.FBC),
	)
	if err != nil {
		return fmt.Errorf("upsert visitor %s: %w", v.SessionID, err)
	}
	return nil
}

// Recent returns visitors captured within the window ending at the given
// reference time, most recent first. These are the matching candidates for a
// sale that happened around ref.
func (r *VisitorRepository) Recent(ctx context.Context, ref time.Time, window time.Duration) ([]*model.VisitorRecord, error) {
	query := `
		SELECT session_id, captured_at,
			COALESCE(ip, ''), COALESCE(country, ''), COALESCE(country_code, ''),
			COALESCE(region, ''), COALESCE(city, ''), COALESCE(postal_code, ''),
			COALESCE(timezone, ''), COALESCE(isp, ''), COALESCE(user_agent, ''),
			COALESCE(page_url, ''), COALESCE(referrer, ''),
			COALESCE(utm_source, ''), COALESCE(utm_medium, ''),
			COALESCE(utm_campaign, ''), COALESCE(utm_content, ''),
			COALESCE(utm_term, ''), COALESCE(fbp, ''), COALESCE(fbc, '')
		FROM visitors
		WHERE captured_at >= $1 AND captured_at <= $2
		ORDER BY captured_at DESC
	`

	rows, err := r.repo.pool.Query(ctx, query, ref.Add(-window), ref.Add(window))
	if err != nil {
		return nil, fmt.Errorf("query recent visitors: %w", err)
	}
	defer rows.Close()

	var visitors []*model.VisitorRecord
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}

	return visitors, rows.Err()
}

// PurgeOlderThan deletes visitors captured before the retention cutoff and
// returns the number of rows removed.
func (r *VisitorRepository) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.repo.pool.Exec(ctx,
		`DELETE FROM visitors WHERE captured_at < $1`,
		time.Now().Add(-retention),
	)
	if err != nil {
		return 0, fmt.Errorf("purge visitors: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats returns aggregate counters for the operational surface.
func (r *VisitorRepository) Stats(ctx context.Context) (*model.VisitorStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE captured_at >= NOW() - INTERVAL '24 hours'),
			COUNT(DISTINCT country) FILTER (WHERE country IS NOT NULL),
			COUNT(DISTINCT city) FILTER (WHERE city IS NOT NULL),
			MAX(captured_at)
		FROM visitors
	`

	var stats model.VisitorStats
	var mostRecent *time.Time
	err := r.repo.pool.QueryRow(ctx, query).Scan(
		&stats.Total,
		&stats.Last24h,
		&stats.UniqueCountries,
		&stats.UniqueCities,
		&mostRecent,
	)
	if err != nil {
		return nil, fmt.Errorf("query visitor stats: %w", err)
	}
	stats.MostRecentVisit = mostRecent

	return &stats, nil
}

func scanVisitor(rows pgx.Rows) (*model.VisitorRecord, error) {
	var v model.VisitorRecord
	err := rows.Scan(
		&v.SessionID,
		&v.CapturedAt,
		&v.IP,
		&v.Country,
		&v.CountryCode,
		&v.Region,
		&v.City,
		&v.PostalCode,
		&v.Timezone,
		&v.ISP,
		&v.UserAgent,
		&v.PageURL,
		&v.Referrer,
		&v.UTMSource,
		&v.UTMMedium,
		&v.UTMCampaign,
		&v.UTMContent,
		&v.UTMTerm,
		&v.FBP,
		&v.FBC,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
