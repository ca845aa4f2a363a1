package db

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xleonplayz/IQO-s/internal/analysis"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	db, err := Open(path)
	require.NoError(t, err)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Positive(t, version)
	require.NoError(t, db.Close())

	// Reopening an already migrated database is a no-op.
	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)

	s := Session{
		ID:        uuid.New(),
		Object:    "rabi_ens",
		Kind:      "ensemble",
		Sweeps:    200,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, db.RecordSession(s))

	sessions, err := db.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, s.ID, sessions[0].ID)
	require.Equal(t, "rabi_ens", sessions[0].Object)
	require.EqualValues(t, 200, sessions[0].Sweeps)
	require.False(t, sessions[0].Incomplete)
}

func TestCurveRoundTripPreservesNaN(t *testing.T) {
	db := openTestDB(t)

	session := uuid.New()
	require.NoError(t, db.RecordSession(Session{
		ID: session, Object: "t1_ens", Kind: "ensemble", StartedAt: time.Now(),
	}))

	curve := &analysis.Curve{
		X:    []float64{1e-6, 2e-6, 3e-6},
		Y:    []float64{10, math.NaN(), 8},
		YErr: []float64{0.5, math.NaN(), 0.4},
	}
	require.NoError(t, db.RecordCurve(session, PointsFromCurve(curve)))

	points, err := db.CurveForSession(session)
	require.NoError(t, err)
	got := CurveFromPoints(points)

	require.Equal(t, curve.X, got.X)
	require.InDelta(t, 10, got.Y[0], 1e-12)
	require.True(t, math.IsNaN(got.Y[1]))
	require.True(t, math.IsNaN(got.YErr[1]))
	require.InDelta(t, 8, got.Y[2], 1e-12)
}

func TestCurveSecondSeries(t *testing.T) {
	db := openTestDB(t)

	session := uuid.New()
	require.NoError(t, db.RecordSession(Session{
		ID: session, Object: "odmr_ens", Kind: "ensemble", StartedAt: time.Now(),
	}))

	curve := &analysis.Curve{
		X:     []float64{1, 2},
		Y:     []float64{10, 11},
		YErr:  []float64{1, 1},
		Y2:    []float64{20, 21},
		Y2Err: []float64{2, 2},
	}
	require.NoError(t, db.RecordCurve(session, PointsFromCurve(curve)))

	points, err := db.CurveForSession(session)
	require.NoError(t, err)
	require.Len(t, points, 4)

	got := CurveFromPoints(points)
	require.True(t, got.HasSecondSeries())
	require.Equal(t, []float64{20, 21}, got.Y2)
}

func TestCurveRequiresSession(t *testing.T) {
	db := openTestDB(t)

	// Foreign keys are on: points without a session row are rejected.
	err := db.RecordCurve(uuid.New(), []CurvePoint{{Index: 0, X: 1}})
	require.Error(t, err)
}

func TestFitRoundTrip(t *testing.T) {
	db := openTestDB(t)

	session := uuid.New()
	require.NoError(t, db.RecordSession(Session{
		ID: session, Object: "rabi_ens", Kind: "ensemble", StartedAt: time.Now(),
	}))

	fit := FitRecord{
		Model: "sine_damped",
		Params: map[string]float64{
			"offset":    1.0,
			"amplitude": 0.5,
			"frequency": 2.5e6,
			"phase":     0.4,
			"tau":       3e-6,
		},
		Residual:    0.002,
		ReducedChi2: 0.0001,
		Converged:   true,
	}
	require.NoError(t, db.RecordFit(session, fit))
	// An unconverged best-effort record sits alongside.
	require.NoError(t, db.RecordFit(session, FitRecord{
		Model:  "decay_exp",
		Params: map[string]float64{"tau": 1e-3},
	}))

	fits, err := db.FitsForSession(session)
	require.NoError(t, err)
	require.Len(t, fits, 2)
	require.Equal(t, "sine_damped", fits[0].Model)
	require.True(t, fits[0].Converged)
	require.InDelta(t, 2.5e6, fits[0].Params["frequency"], 1e-6)
	require.False(t, fits[1].Converged)
}
