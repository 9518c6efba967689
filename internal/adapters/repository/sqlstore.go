package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
	"github.com/okian/leadscore/pkg/metrics"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

// schema is applied statement by statement on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		domain     TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT '',
		alignment  INTEGER,
		has_cto    INTEGER,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		type       TEXT NOT NULL,
		event_time INTEGER,
		confidence REAL,
		source     TEXT NOT NULL DEFAULT '',
		url        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS events_company_time ON events (company_id, event_time)`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		company_id TEXT PRIMARY KEY,
		added_at   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outreach_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		sent_at    INTEGER NOT NULL,
		outcome    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS outreach_company_sent ON outreach_history (company_id, sent_at)`,
	`CREATE TABLE IF NOT EXISTS readiness_snapshots (
		company_id     TEXT NOT NULL,
		as_of          TEXT NOT NULL,
		momentum       INTEGER NOT NULL,
		complexity     INTEGER NOT NULL,
		pressure       INTEGER NOT NULL,
		leadership_gap INTEGER NOT NULL,
		composite      INTEGER NOT NULL,
		explain        TEXT NOT NULL,
		PRIMARY KEY (company_id, as_of)
	)`,
	`CREATE TABLE IF NOT EXISTS engagement_snapshots (
		company_id      TEXT NOT NULL,
		as_of           TEXT NOT NULL,
		esl_score       REAL NOT NULL,
		engagement_type TEXT NOT NULL,
		svi             REAL NOT NULL,
		spi             REAL NOT NULL,
		csi             REAL NOT NULL,
		cadence_blocked INTEGER NOT NULL,
		outreach_score  INTEGER NOT NULL,
		explain         TEXT NOT NULL,
		PRIMARY KEY (company_id, as_of)
	)`,
	`CREATE TABLE IF NOT EXISTS outreach_recommendations (
		id                  TEXT PRIMARY KEY,
		company_id          TEXT NOT NULL,
		as_of               TEXT NOT NULL,
		recommendation_type TEXT NOT NULL,
		outreach_score      INTEGER NOT NULL,
		flagged             INTEGER NOT NULL,
		payload             TEXT NOT NULL,
		UNIQUE (company_id, as_of)
	)`,
}

// SQLStore implements Store on database/sql. It is written against the
// pure-Go sqlite driver but uses only portable upsert syntax.
type SQLStore struct {
	db          *sql.DB
	now         func() time.Time
	busyTimeout time.Duration
}

var _ Store = (*SQLStore)(nil)

// Open opens (or creates) a sqlite database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// An in-memory database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	s, err := NewSQLStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return s, nil
}

// NewSQLStore wraps an open database and applies the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{db: db, now: time.Now, busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

func dateKey(t time.Time) string { return model.DateOf(t).Format(model.DateLayout) }

// dayBounds returns [from, to+1day) in unix millis.
func dayBounds(from, to time.Time) (int64, int64) {
	return model.DateOf(from).UnixMilli(), model.DateOf(to).AddDate(0, 0, 1).UnixMilli()
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	return model.Bool(n.Bool)
}

func (s *SQLStore) fail(op string, err error) error {
	metrics.RecordErrorByComponent("repository", op)
	return fmt.Errorf("%s: %w", op, err)
}

// UpsertCompany inserts or replaces company metadata.
func (s *SQLStore) UpsertCompany(ctx context.Context, c model.Company) error {
	if c.ID == "" {
		return ErrInvalidInput
	}
	const q = `INSERT INTO companies (id, name, domain, status, alignment, has_cto, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, domain = excluded.domain, status = excluded.status,
			alignment = excluded.alignment, has_cto = excluded.has_cto, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, c.ID, c.Name, c.Domain, c.Status,
		nullBool(c.AlignmentOKToContact), nullBool(c.HasCTO), s.now().UnixMilli())
	if err != nil {
		return s.fail("upsert_company", err)
	}
	return nil
}

// GetCompany returns ErrNotFound for unknown ids.
func (s *SQLStore) GetCompany(ctx context.Context, id string) (model.Company, error) {
	const q = `SELECT id, name, domain, status, alignment, has_cto FROM companies WHERE id = ?`
	var (
		c                 model.Company
		alignment, hasCTO sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.Domain, &c.Status, &alignment, &hasCTO)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Company{}, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Company{}, s.fail("get_company", err)
	}
	c.AlignmentOKToContact = boolPtr(alignment)
	c.HasCTO = boolPtr(hasCTO)
	return c, nil
}

// InsertEvent stores e unless its id is already known.
func (s *SQLStore) InsertEvent(ctx context.Context, e model.Event) (bool, error) {
	if e.ID == "" || e.CompanyID == "" || e.Type == "" {
		return false, ErrInvalidInput
	}
	var at sql.NullInt64
	if !e.Time.IsZero() {
		at = sql.NullInt64{Int64: e.Time.UnixMilli(), Valid: true}
	}
	var conf sql.NullFloat64
	if e.Confidence != nil {
		conf = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
	}
	const q = `INSERT INTO events (id, company_id, type, event_time, confidence, source, url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, e.ID, e.CompanyID, e.Type, at, conf, e.Source, e.URL)
	if err != nil {
		return false, s.fail("insert_event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("insert_event", err)
	}
	return n == 1, nil
}

// EventsBetween skips events without a timestamp; they can never score.
func (s *SQLStore) EventsBetween(ctx context.Context, companyID string, from, to time.Time) ([]model.Event, error) {
	lo, hi := dayBounds(from, to)
	const q = `SELECT id, company_id, type, event_time, confidence, source, url
		FROM events
		WHERE company_id = ? AND event_time >= ? AND event_time < ?
		ORDER BY event_time, id`
	rows, err := s.db.QueryContext(ctx, q, companyID, lo, hi)
	if err != nil {
		return nil, s.fail("events_between", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Event
	for rows.Next() {
		var (
			e    model.Event
			at   int64
			conf sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Type, &at, &conf, &e.Source, &e.URL); err != nil {
			return nil, s.fail("events_between", err)
		}
		e.Time = time.UnixMilli(at).UTC()
		if conf.Valid {
			e.Confidence = model.Float(conf.Float64)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("events_between", err)
	}
	return out, nil
}

// AddToWatchlist is idempotent.
func (s *SQLStore) AddToWatchlist(ctx context.Context, companyID string) error {
	if companyID == "" {
		return ErrInvalidInput
	}
	const q = `INSERT INTO watchlist (company_id, added_at) VALUES (?, ?) ON CONFLICT(company_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, companyID, s.now().UnixMilli()); err != nil {
		return s.fail("add_watchlist", err)
	}
	return nil
}

// RemoveFromWatchlist returns ErrNotFound when the company was not listed.
func (s *SQLStore) RemoveFromWatchlist(ctx context.Context, companyID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE company_id = ?`, companyID)
	if err != nil {
		return s.fail("remove_watchlist", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("remove_watchlist", err)
	}
	if n == 0 {
		return fmt.Errorf("watchlist %s: %w", companyID, ErrNotFound)
	}
	return nil
}

// RecordOutreach appends to the outreach log.
func (s *SQLStore) RecordOutreach(ctx context.Context, a model.OutreachAttempt) error {
	if a.CompanyID == "" || a.SentAt.IsZero() {
		return ErrInvalidInput
	}
	const q = `INSERT INTO outreach_history (company_id, sent_at, outcome) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, a.CompanyID, a.SentAt.UnixMilli(), string(a.Outcome)); err != nil {
		return s.fail("record_outreach", err)
	}
	return nil
}

// OutreachHistory returns attempts dated on or before asOf.
func (s *SQLStore) OutreachHistory(ctx context.Context, companyID string, asOf time.Time) ([]model.OutreachAttempt, error) {
	_, hi := dayBounds(asOf, asOf)
	const q = `SELECT company_id, sent_at, outcome FROM outreach_history
		WHERE company_id = ? AND sent_at < ?
		ORDER BY sent_at, id`
	rows, err := s.db.QueryContext(ctx, q, companyID, hi)
	if err != nil {
		return nil, s.fail("outreach_history", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.OutreachAttempt
	for rows.Next() {
		var (
			a       model.OutreachAttempt
			sent    int64
			outcome string
		)
		if err := rows.Scan(&a.CompanyID, &sent, &outcome); err != nil {
			return nil, s.fail("outreach_history", err)
		}
		a.SentAt = time.UnixMilli(sent).UTC()
		a.Outcome = model.ParseOutcome(outcome)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("outreach_history", err)
	}
	return out, nil
}

// EligibleCompanies returns ids sorted ascending.
func (s *SQLStore) EligibleCompanies(ctx context.Context, asOf time.Time, lookbackDays int) ([]string, error) {
	lo, hi := dayBounds(asOf.AddDate(0, 0, -lookbackDays), asOf)
	const q = `SELECT company_id FROM events WHERE event_time >= ? AND event_time < ?
		UNION
		SELECT company_id FROM watchlist
		ORDER BY 1`
	rows, err := s.db.QueryContext(ctx, q, lo, hi)
	if err != nil {
		return nil, s.fail("eligible_companies", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, s.fail("eligible_companies", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("eligible_companies", err)
	}
	return ids, nil
}

// UpsertReadiness overwrites the snapshot for the same company and date.
func (s *SQLStore) UpsertReadiness(ctx context.Context, snap scoring.Snapshot) error {
	explain, err := json.Marshal(snap.Explain)
	if err != nil {
		return fmt.Errorf("encode readiness explain: %w", err)
	}
	const q = `INSERT INTO readiness_snapshots
		(company_id, as_of, momentum, complexity, pressure, leadership_gap, composite, explain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, as_of) DO UPDATE SET
			momentum = excluded.momentum, complexity = excluded.complexity,
			pressure = excluded.pressure, leadership_gap = excluded.leadership_gap,
			composite = excluded.composite, explain = excluded.explain`
	_, err = s.db.ExecContext(ctx, q, snap.CompanyID, dateKey(snap.AsOf),
		snap.Momentum, snap.Complexity, snap.Pressure, snap.LeadershipGap, snap.Composite, string(explain))
	if err != nil {
		return s.fail("upsert_readiness", err)
	}
	return nil
}

// GetReadiness returns ErrNotFound when no snapshot exists for the date.
func (s *SQLStore) GetReadiness(ctx context.Context, companyID string, asOf time.Time) (scoring.Snapshot, error) {
	const q = `SELECT momentum, complexity, pressure, leadership_gap, composite, explain
		FROM readiness_snapshots WHERE company_id = ? AND as_of = ?`
	snap := scoring.Snapshot{CompanyID: companyID, AsOf: model.DateOf(asOf)}
	var explain string
	err := s.db.QueryRowContext(ctx, q, companyID, dateKey(asOf)).Scan(
		&snap.Momentum, &snap.Complexity, &snap.Pressure, &snap.LeadershipGap, &snap.Composite, &explain)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.Snapshot{}, fmt.Errorf("readiness %s@%s: %w", companyID, dateKey(asOf), ErrNotFound)
	}
	if err != nil {
		return scoring.Snapshot{}, s.fail("get_readiness", err)
	}
	if err := json.Unmarshal([]byte(explain), &snap.Explain); err != nil {
		return scoring.Snapshot{}, fmt.Errorf("decode readiness explain: %w", err)
	}
	return snap, nil
}

// PressureHistory feeds the sustained pressure index.
func (s *SQLStore) PressureHistory(ctx context.Context, companyID string, from, to time.Time) ([]engagement.PressurePoint, error) {
	const q = `SELECT as_of, pressure FROM readiness_snapshots
		WHERE company_id = ? AND as_of >= ? AND as_of <= ?
		ORDER BY as_of`
	rows, err := s.db.QueryContext(ctx, q, companyID, dateKey(from), dateKey(to))
	if err != nil {
		return nil, s.fail("pressure_history", err)
	}
	defer func() { _ = rows.Close() }()

	var out []engagement.PressurePoint
	for rows.Next() {
		var (
			day string
			p   engagement.PressurePoint
		)
		if err := rows.Scan(&day, &p.Pressure); err != nil {
			return nil, s.fail("pressure_history", err)
		}
		if p.AsOf, err = model.ParseDate(day); err != nil {
			return nil, s.fail("pressure_history", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("pressure_history", err)
	}
	return out, nil
}

// UpsertEngagement overwrites the snapshot for the same company and date.
func (s *SQLStore) UpsertEngagement(ctx context.Context, snap engagement.Snapshot) error {
	explain, err := json.Marshal(snap.Explain)
	if err != nil {
		return fmt.Errorf("encode engagement explain: %w", err)
	}
	const q = `INSERT INTO engagement_snapshots
		(company_id, as_of, esl_score, engagement_type, svi, spi, csi, cadence_blocked, outreach_score, explain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, as_of) DO UPDATE SET
			esl_score = excluded.esl_score, engagement_type = excluded.engagement_type,
			svi = excluded.svi, spi = excluded.spi, csi = excluded.csi,
			cadence_blocked = excluded.cadence_blocked, outreach_score = excluded.outreach_score,
			explain = excluded.explain`
	_, err = s.db.ExecContext(ctx, q, snap.CompanyID, dateKey(snap.AsOf), snap.ESLScore, string(snap.EngagementType),
		snap.SVI, snap.SPI, snap.CSI, snap.CadenceBlocked, snap.OutreachScore, string(explain))
	if err != nil {
		return s.fail("upsert_engagement", err)
	}
	return nil
}

// GetEngagement returns ErrNotFound when no snapshot exists for the date.
func (s *SQLStore) GetEngagement(ctx context.Context, companyID string, asOf time.Time) (engagement.Snapshot, error) {
	const q = `SELECT esl_score, engagement_type, svi, spi, csi, cadence_blocked, outreach_score, explain
		FROM engagement_snapshots WHERE company_id = ? AND as_of = ?`
	snap := engagement.Snapshot{CompanyID: companyID, AsOf: model.DateOf(asOf)}
	var (
		recType string
		explain string
	)
	err := s.db.QueryRowContext(ctx, q, companyID, dateKey(asOf)).Scan(
		&snap.ESLScore, &recType, &snap.SVI, &snap.SPI, &snap.CSI, &snap.CadenceBlocked, &snap.OutreachScore, &explain)
	if errors.Is(err, sql.ErrNoRows) {
		return engagement.Snapshot{}, fmt.Errorf("engagement %s@%s: %w", companyID, dateKey(asOf), ErrNotFound)
	}
	if err != nil {
		return engagement.Snapshot{}, s.fail("get_engagement", err)
	}
	snap.EngagementType = engagement.RecommendationType(recType)
	if err := json.Unmarshal([]byte(explain), &snap.Explain); err != nil {
		return engagement.Snapshot{}, fmt.Errorf("decode engagement explain: %w", err)
	}
	return snap, nil
}

// UpsertRecommendation stores the full recommendation as JSON next to the
// columns the service filters on.
func (s *SQLStore) UpsertRecommendation(ctx context.Context, rec outreach.Recommendation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode recommendation: %w", err)
	}
	const q = `INSERT INTO outreach_recommendations
		(id, company_id, as_of, recommendation_type, outreach_score, flagged, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recommendation_type = excluded.recommendation_type,
			outreach_score = excluded.outreach_score,
			flagged = excluded.flagged, payload = excluded.payload`
	_, err = s.db.ExecContext(ctx, q, rec.ID, rec.CompanyID, dateKey(rec.AsOf),
		string(rec.RecommendationType), rec.OutreachScore, rec.FlaggedForReview, string(payload))
	if err != nil {
		return s.fail("upsert_recommendation", err)
	}
	return nil
}

// GetRecommendation returns ErrNotFound when none was produced for the date.
func (s *SQLStore) GetRecommendation(ctx context.Context, companyID string, asOf time.Time) (outreach.Recommendation, error) {
	const q = `SELECT payload FROM outreach_recommendations WHERE company_id = ? AND as_of = ?`
	var payload string
	err := s.db.QueryRowContext(ctx, q, companyID, dateKey(asOf)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return outreach.Recommendation{}, fmt.Errorf("recommendation %s@%s: %w", companyID, dateKey(asOf), ErrNotFound)
	}
	if err != nil {
		return outreach.Recommendation{}, s.fail("get_recommendation", err)
	}
	var rec outreach.Recommendation
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return outreach.Recommendation{}, fmt.Errorf("decode recommendation: %w", err)
	}
	return rec, nil
}

// LatestEntries reads each company's newest engagement snapshot.
func (s *SQLStore) LatestEntries(ctx context.Context) ([]Entry, error) {
	const q = `SELECT e.company_id, e.as_of, e.outreach_score, e.engagement_type, COALESCE(r.composite, 0)
		FROM engagement_snapshots e
		JOIN (SELECT company_id, MAX(as_of) AS as_of FROM engagement_snapshots GROUP BY company_id) l
			ON l.company_id = e.company_id AND l.as_of = e.as_of
		LEFT JOIN readiness_snapshots r
			ON r.company_id = e.company_id AND r.as_of = e.as_of
		ORDER BY e.company_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, s.fail("latest_entries", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			day     string
			recType string
		)
		if err := rows.Scan(&e.CompanyID, &day, &e.OutreachScore, &recType, &e.Composite); err != nil {
			return nil, s.fail("latest_entries", err)
		}
		if e.AsOf, err = model.ParseDate(day); err != nil {
			return nil, s.fail("latest_entries", err)
		}
		e.Recommendation = engagement.RecommendationType(recType)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("latest_entries", err)
	}
	return out, nil
}

// Counts runs one COUNT per table.
func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"companies", &c.Companies},
		{"events", &c.Events},
		{"watchlist", &c.Watchlist},
		{"readiness_snapshots", &c.Readiness},
		{"engagement_snapshots", &c.Engagement},
		{"outreach_recommendations", &c.Recommendations},
	}
	for _, t := range targets {
		// table names come from the fixed list above
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return Counts{}, s.fail("counts", err)
		}
	}
	return c, nil
}
