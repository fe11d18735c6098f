package ftl

import "sync/atomic"

// fuelGauge counts executed statements against the render's fuel setting.
// FuelLevels may read it while a render is running.
type fuelGauge struct {
	limit uint64
	used  atomic.Uint64
}

func newFuelGauge(limit uint64) *fuelGauge {
	return &fuelGauge{limit: limit}
}

// burn uses up one unit and fails once the limit is exceeded.
func (g *fuelGauge) burn() error {
	if g.used.Add(1) > g.limit {
		return newErrorf(ErrOutOfFuel, "out of fuel after %d statements", g.limit)
	}
	return nil
}

func (g *fuelGauge) levels() (consumed, remaining uint64) {
	consumed = min(g.used.Load(), g.limit)
	return consumed, g.limit - consumed
}
