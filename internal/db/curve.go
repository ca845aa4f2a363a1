package db

import (
	"database/sql"
	"math"

	"github.com/xleonplayz/IQO-s/internal/analysis"
)

// PointsFromCurve flattens a curve into storable rows. NaN values map to
// null so invalid points survive the round trip instead of turning into
// zeros.
func PointsFromCurve(c *analysis.Curve) []CurvePoint {
	points := make([]CurvePoint, 0, 2*len(c.X))
	for i := range c.X {
		points = append(points, CurvePoint{
			Series: 0,
			Index:  i,
			X:      c.X[i],
			Y:      nullable(c.Y[i]),
			YErr:   nullable(c.YErr[i]),
		})
	}
	if c.HasSecondSeries() {
		for i := range c.X {
			points = append(points, CurvePoint{
				Series: 1,
				Index:  i,
				X:      c.X[i],
				Y:      nullable(c.Y2[i]),
				YErr:   nullable(c.Y2Err[i]),
			})
		}
	}
	return points
}

// CurveFromPoints rebuilds a curve from stored rows, null mapping back
// to NaN. Rows must be ordered by series then index, as CurveForSession
// returns them.
func CurveFromPoints(points []CurvePoint) *analysis.Curve {
	c := &analysis.Curve{}
	for _, p := range points {
		switch p.Series {
		case 0:
			c.X = append(c.X, p.X)
			c.Y = append(c.Y, floatOrNaN(p.Y))
			c.YErr = append(c.YErr, floatOrNaN(p.YErr))
		default:
			c.Y2 = append(c.Y2, floatOrNaN(p.Y))
			c.Y2Err = append(c.Y2Err, floatOrNaN(p.YErr))
		}
	}
	return c
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
