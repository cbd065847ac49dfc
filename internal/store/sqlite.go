package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/wildcast/wildcast/internal/models"
)

// Store wraps the SQLite database. Dates are stored as midnight-UTC DATE
// values; loc is the venue timezone used for date formatting on the way out.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

const dateLayout = "2006-01-02"

func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	// SQLite may echo a bare DATE back with a time component attached.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

func (s *Store) UpsertLocation(l models.Location) (int64, error) {
	_, err := s.db.Exec(`
		INSERT INTO locations (name, description)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET description = excluded.description
	`, l.Name, l.Description)
	if err != nil {
		return 0, fmt.Errorf("upsert location %q: %w", l.Name, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM locations WHERE name = ?`, l.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup location %q: %w", l.Name, err)
	}
	return id, nil
}

func (s *Store) GetLocation(name string) (*models.Location, error) {
	row := s.db.QueryRow(`SELECT id, name, COALESCE(description, '') FROM locations WHERE name = ?`, name)

	var l models.Location
	err := row.Scan(&l.ID, &l.Name, &l.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertObservation inserts or replaces the attendance row for
// (date, location). Re-entering a date overwrites count and weather.
func (s *Store) UpsertObservation(obs models.Observation) error {
	_, err := s.db.Exec(`
		INSERT INTO observations (date, location_id, count, high_temp, precipitation)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, location_id) DO UPDATE SET
			count = excluded.count,
			high_temp = excluded.high_temp,
			precipitation = excluded.precipitation
	`, dateKey(obs.Date), obs.LocationID, obs.Count, obs.HighTempF, obs.PrecipMM)
	if err != nil {
		return fmt.Errorf("upsert observation %s: %w", dateKey(obs.Date), err)
	}
	return nil
}

// GetObservations returns the full attendance history for a location,
// ordered by date ascending.
func (s *Store) GetObservations(locationID int64) ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, date, location_id, count, high_temp, precipitation, created_at
		FROM observations
		WHERE location_id = ?
		ORDER BY date ASC
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// GetRecentObservations returns up to limit observations, newest first, for
// the data-entry page.
func (s *Store) GetRecentObservations(locationID int64, limit int) ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, date, location_id, count, high_temp, precipitation, created_at
		FROM observations
		WHERE location_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

func scanObservation(rows *sql.Rows) (models.Observation, error) {
	var obs models.Observation
	var date string
	if err := rows.Scan(&obs.ID, &date, &obs.LocationID, &obs.Count, &obs.HighTempF, &obs.PrecipMM, &obs.CreatedAt); err != nil {
		return obs, err
	}
	d, err := parseDate(date)
	if err != nil {
		return obs, fmt.Errorf("parse observation date %q: %w", date, err)
	}
	obs.Date = d
	return obs, nil
}

func tableForFamily(family string) (string, error) {
	switch family {
	case models.FamilySevenDay:
		return "seven_day_predictions", nil
	case models.FamilyLongRange:
		return "long_range_predictions", nil
	default:
		return "", fmt.Errorf("unknown prediction family %q", family)
	}
}

// ReplacePredictions swaps the full contents of a prediction family for a
// location inside one transaction. Readers see either the old set or the new
// set, never a partial mix; on any error the prior rows are left intact.
func (s *Store) ReplacePredictions(family string, locationID int64, preds []models.Prediction) error {
	table, err := tableForFamily(family)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", family, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE location_id = ?`, locationID); err != nil {
		return fmt.Errorf("clear %s: %w", family, err)
	}

	var stmt *sql.Stmt
	if family == models.FamilySevenDay {
		stmt, err = tx.Prepare(`
			INSERT INTO seven_day_predictions (date, location_id, value, lower_bound, upper_bound, high_temp, precipitation)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
	} else {
		stmt, err = tx.Prepare(`
			INSERT INTO long_range_predictions (date, location_id, value, lower_bound, upper_bound)
			VALUES (?, ?, ?, ?, ?)
		`)
	}
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", family, err)
	}
	defer stmt.Close()

	for _, p := range preds {
		if family == models.FamilySevenDay {
			_, err = stmt.Exec(dateKey(p.Date), locationID, p.Value, p.LowerBound, p.UpperBound, p.HighTempF, p.PrecipMM)
		} else {
			_, err = stmt.Exec(dateKey(p.Date), locationID, p.Value, p.LowerBound, p.UpperBound)
		}
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", family, dateKey(p.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace %s: %w", family, err)
	}
	return nil
}

// GetPredictions returns a family's rows for a location, ordered by date.
func (s *Store) GetPredictions(family string, locationID int64) ([]models.Prediction, error) {
	table, err := tableForFamily(family)
	if err != nil {
		return nil, err
	}

	var query string
	if family == models.FamilySevenDay {
		query = `SELECT id, date, location_id, value, lower_bound, upper_bound, high_temp, precipitation, created_at FROM ` + table + ` WHERE location_id = ? ORDER BY date ASC`
	} else {
		query = `SELECT id, date, location_id, value, lower_bound, upper_bound, created_at FROM ` + table + ` WHERE location_id = ? ORDER BY date ASC`
	}

	rows, err := s.db.Query(query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var p models.Prediction
		var date string
		if family == models.FamilySevenDay {
			err = rows.Scan(&p.ID, &date, &p.LocationID, &p.Value, &p.LowerBound, &p.UpperBound, &p.HighTempF, &p.PrecipMM, &p.CreatedAt)
		} else {
			err = rows.Scan(&p.ID, &date, &p.LocationID, &p.Value, &p.LowerBound, &p.UpperBound, &p.CreatedAt)
		}
		if err != nil {
			return nil, err
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse prediction date %q: %w", date, err)
		}
		p.Date = d
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// CountObservations returns the number of distinct dates on record for a
// location. The health endpoint uses it as its database check.
func (s *Store) CountObservations(locationID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT date) FROM observations WHERE location_id = ?`, locationID).Scan(&n)
	return n, err
}
