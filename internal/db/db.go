// Package db persists measurement results in sqlite: one row per
// session, the averaged curve points and any fits computed from them.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (or creates) the results database and applies all pending
// migrations.
func Open(path string) (*DB, error) {
	// The pragma rides in the DSN so every pooled connection enforces
	// foreign keys, not just the first one.
	sqldb, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	db := &DB{sqldb}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// A Session records one acquisition run.
type Session struct {
	ID         uuid.UUID
	Object     string // ensemble or sequence name
	Kind       string // "ensemble" or "sequence"
	Sweeps     int64
	Incomplete bool
	StartedAt  time.Time
}

// RecordSession inserts the session row.
func (db *DB) RecordSession(s Session) error {
	_, err := db.Exec(
		`INSERT INTO sessions (id, object, kind, sweeps, incomplete, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Object, s.Kind, s.Sweeps, s.Incomplete, s.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", s.ID, err)
	}
	return nil
}

// A CurvePoint is one persisted (x, y) sample of a session's curve.
// Invalid points are stored with null y so NaN survives the round trip.
type CurvePoint struct {
	Series int // 0 for the primary series, 1 for the parallel variant
	Index  int
	X      float64
	Y      sql.NullFloat64
	YErr   sql.NullFloat64
}

// RecordCurve stores all points of a session's curve.
func (db *DB) RecordCurve(session uuid.UUID, points []CurvePoint) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO curve_points (session_id, series, point_index, x, y, y_err)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(session.String(), p.Series, p.Index, p.X, p.Y, p.YErr); err != nil {
			return fmt.Errorf("recording curve point %d of session %s: %w", p.Index, session, err)
		}
	}
	return tx.Commit()
}

// CurveForSession loads a session's curve points ordered by series and
// index.
func (db *DB) CurveForSession(session uuid.UUID) ([]CurvePoint, error) {
	rows, err := db.Query(
		`SELECT series, point_index, x, y, y_err FROM curve_points
		 WHERE session_id = ? ORDER BY series, point_index`, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []CurvePoint
	for rows.Next() {
		var p CurvePoint
		if err := rows.Scan(&p.Series, &p.Index, &p.X, &p.Y, &p.YErr); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// A FitRecord is one persisted fit outcome.
type FitRecord struct {
	Model       string
	Params      map[string]float64
	Residual    float64
	ReducedChi2 float64
	Converged   bool
}

// RecordFit stores a fit outcome against its session.
func (db *DB) RecordFit(session uuid.UUID, fit FitRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO fit_results (session_id, model, residual, reduced_chi2, converged)
		 VALUES (?, ?, ?, ?, ?)`,
		session.String(), fit.Model, fit.Residual, fit.ReducedChi2, fit.Converged)
	if err != nil {
		return fmt.Errorf("recording fit for session %s: %w", session, err)
	}
	fitID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for name, value := range fit.Params {
		if _, err := tx.Exec(
			`INSERT INTO fit_params (fit_id, name, value) VALUES (?, ?, ?)`,
			fitID, name, value); err != nil {
			return fmt.Errorf("recording fit parameter %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// FitsForSession loads all fits of a session with their parameters.
func (db *DB) FitsForSession(session uuid.UUID) ([]FitRecord, error) {
	rows, err := db.Query(
		`SELECT id, model, residual, reduced_chi2, converged FROM fit_results
		 WHERE session_id = ? ORDER BY id`, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fits []FitRecord
	var ids []int64
	for rows.Next() {
		var id int64
		var f FitRecord
		if err := rows.Scan(&id, &f.Model, &f.Residual, &f.ReducedChi2, &f.Converged); err != nil {
			return nil, err
		}
		f.Params = make(map[string]float64)
		fits = append(fits, f)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		prows, err := db.Query(`SELECT name, value FROM fit_params WHERE fit_id = ?`, id)
		if err != nil {
			return nil, err
		}
		for prows.Next() {
			var name string
			var value float64
			if err := prows.Scan(&name, &value); err != nil {
				prows.Close()
				return nil, err
			}
			fits[i].Params[name] = value
		}
		if err := prows.Err(); err != nil {
			prows.Close()
			return nil, err
		}
		prows.Close()
	}
	return fits, nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	rows, err := db.Query(
		`SELECT id, object, kind, sweeps, incomplete, started_at FROM sessions
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var id string
		if err := rows.Scan(&id, &s.Object, &s.Kind, &s.Sweeps, &s.Incomplete, &s.StartedAt); err != nil {
			return nil, err
		}
		s.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("session row has malformed id %q: %w", id, err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
