package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ETAnderson/celltrack/internal/domain"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// SQLStore keeps the catalog and status rows in MySQL or SQLite. Both
// take "?" placeholders; only upserts differ.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// upsert builds an insert that overwrites cols on a key conflict.
func (s *SQLStore) upsert(table string, keys []string, cols []string) string {
	all := append(append([]string{}, keys...), cols...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), marks)

	sets := make([]string, 0, len(cols))
	switch s.dialect {
	case DialectMySQL:
		for _, c := range cols {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		for _, c := range cols {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
		return q + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(sets, ", "))
	}
}

func (s *SQLStore) insertIgnore() string {
	if s.dialect == DialectMySQL {
		return "INSERT IGNORE INTO"
	}
	return "INSERT OR IGNORE INTO"
}

func (s *SQLStore) ListSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, location, phases FROM sites ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		var site domain.Site
		var phases string
		if err := rows.Scan(&site.Name, &site.Location, &phases); err != nil {
			return nil, err
		}
		site.Phases = splitPhases(phases)
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetSite(ctx context.Context, name string) (domain.Site, bool, error) {
	var site domain.Site
	var phases string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, location, phases FROM sites WHERE name = ?`, name,
	).Scan(&site.Name, &site.Location, &phases)

	if err == sql.ErrNoRows {
		return domain.Site{}, false, nil
	}
	if err != nil {
		return domain.Site{}, false, err
	}
	site.Phases = splitPhases(phases)
	return site, true, nil
}

func (s *SQLStore) UpsertSite(ctx context.Context, site domain.Site) error {
	_, err := s.db.ExecContext(ctx,
		s.upsert("sites", []string{"name"}, []string{"location", "phases"}),
		site.Name, site.Location, joinPhases(site.Phases),
	)
	return err
}

func (s *SQLStore) DeleteSite(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM site_cells WHERE site = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ListCellTypes(ctx context.Context) ([]domain.CellType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description FROM cell_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CellType
	for rows.Next() {
		var ct domain.CellType
		if err := rows.Scan(&ct.Name, &ct.Description); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertCellType(ctx context.Context, ct domain.CellType) error {
	_, err := s.db.ExecContext(ctx,
		s.upsert("cell_types", []string{"name"}, []string{"description"}),
		ct.Name, ct.Description,
	)
	return err
}

func (s *SQLStore) DeleteCellType(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cell_types WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *SQLStore) ListSiteCells(ctx context.Context, site string) ([]domain.SiteCell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site, cell_type, cell FROM site_cells WHERE site = ? ORDER BY cell_type, cell`, site)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SiteCell
	for rows.Next() {
		var sc domain.SiteCell
		if err := rows.Scan(&sc.Site, &sc.CellType, &sc.Cell); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) AddSiteCell(ctx context.Context, sc domain.SiteCell) error {
	_, err := s.db.ExecContext(ctx,
		s.insertIgnore()+` site_cells (site, cell_type, cell) VALUES (?, ?, ?)`,
		sc.Site, sc.CellType, sc.Cell,
	)
	return err
}

func (s *SQLStore) DeleteSiteCell(ctx context.Context, sc domain.SiteCell) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM site_cells WHERE site = ? AND cell_type = ? AND cell = ?`,
		sc.Site, sc.CellType, sc.Cell,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *SQLStore) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT test_id, cell_type, scope, cells, description FROM test_cases ORDER BY test_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TestCase
	for rows.Next() {
		var tc domain.TestCase
		if err := rows.Scan(&tc.TestID, &tc.CellType, &tc.Scope, &tc.Cells, &tc.Description); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetTestCase(ctx context.Context, testID string) (domain.TestCase, bool, error) {
	var tc domain.TestCase
	err := s.db.QueryRowContext(ctx,
		`SELECT test_id, cell_type, scope, cells, description FROM test_cases WHERE test_id = ?`, testID,
	).Scan(&tc.TestID, &tc.CellType, &tc.Scope, &tc.Cells, &tc.Description)

	if err == sql.ErrNoRows {
		return domain.TestCase{}, false, nil
	}
	if err != nil {
		return domain.TestCase{}, false, err
	}
	return tc, true, nil
}

func (s *SQLStore) UpsertTestCase(ctx context.Context, tc domain.TestCase) error {
	_, err := s.db.ExecContext(ctx,
		s.upsert("test_cases", []string{"test_id"}, []string{"cell_type", "scope", "cells", "description"}),
		tc.TestID, tc.CellType, tc.Scope, string(tc.Cells), tc.Description,
	)
	return err
}

func (s *SQLStore) DeleteTestCase(ctx context.Context, testID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM test_cases WHERE test_id = ?`, testID)
	if err != nil {
		return err
	}
	return affected(res)
}

const statusColumns = `unique_test_id, site, phase, cell_type, cell, test_id,
	status, note, volume, test_date, start_time, end_time, availability,
	updated_by, updated_at`

func (s *SQLStore) ListStatuses(ctx context.Context, site string, phase string) ([]StatusRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statusColumns+` FROM test_status
		 WHERE site = ? AND phase = ?
		 ORDER BY cell_type, cell, test_id`,
		site, phase,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusRecord
	for rows.Next() {
		r, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetStatus(ctx context.Context, uniqueTestID string) (StatusRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM test_status WHERE unique_test_id = ?`, uniqueTestID)

	r, err := scanStatus(row)
	if err == sql.ErrNoRows {
		return StatusRecord{}, false, nil
	}
	if err != nil {
		return StatusRecord{}, false, err
	}
	return r, true, nil
}

// InsertStatuses adds rows in one transaction; rows whose slot already
// exists are ignored.
func (s *SQLStore) InsertStatuses(ctx context.Context, recs []StatusRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.insertIgnore()+` test_status (`+statusColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.UniqueTestID, r.Site, r.Phase, r.CellType, r.Cell, r.TestID,
			string(r.Status), r.Note, r.Volume, r.Date, r.StartTime, r.EndTime, r.Availability,
			r.UpdatedBy, nullTime(r.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert status %s: %w", r.UniqueTestID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) UpdateStatus(ctx context.Context, r StatusRecord) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE test_status
SET status = ?, note = ?, volume = ?, test_date = ?, start_time = ?, end_time = ?,
    availability = ?, updated_by = ?, updated_at = ?
WHERE unique_test_id = ?
`,
		string(r.Status), r.Note, r.Volume, r.Date, r.StartTime, r.EndTime,
		r.Availability, r.UpdatedBy, nullTime(r.UpdatedAt),
		r.UniqueTestID,
	)
	if err != nil {
		return err
	}

	err = affected(res)
	if err == ErrNotFound {
		// MySQL counts changed rows only; an identical rewrite reports 0.
		if _, ok, gerr := s.GetStatus(ctx, r.UniqueTestID); gerr == nil && ok {
			return nil
		}
	}
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(sc scanner) (StatusRecord, error) {
	var r StatusRecord
	var status string
	var updated sql.NullTime

	err := sc.Scan(
		&r.UniqueTestID, &r.Site, &r.Phase, &r.CellType, &r.Cell, &r.TestID,
		&status, &r.Note, &r.Volume, &r.Date, &r.StartTime, &r.EndTime, &r.Availability,
		&r.UpdatedBy, &updated,
	)
	if err != nil {
		return StatusRecord{}, err
	}

	r.Status = domain.Status(status)
	if updated.Valid {
		r.UpdatedAt = updated.Time.UTC()
	}
	return r, nil
}

// affected maps "no rows touched" to ErrNotFound.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func splitPhases(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPhases(phases []string) string {
	return strings.Join(phases, ",")
}
