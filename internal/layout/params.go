package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is wrapped by Params.Validate.
var ErrInvalidParams = errors.New("layout: invalid parameters")

// Params holds the physical constants of the simulation.
type Params struct {
	// Theta is the Barnes-Hut opening threshold: an aggregate is used when
	// width/distance < Theta.
	Theta float64

	// Cooling multiplies every body's temperature once per tick.
	Cooling float64

	// HaltSpeed is the speed under which a body stops moving for good.
	HaltSpeed float64

	// Spring rest length, Hooke constant and relative-velocity damping.
	SpringLength float64
	Stiffness    float64
	Damping      float64

	// Repulsion scales the inverse-square push between bodies.
	Repulsion float64

	// MinDistance is the shortest distance used in force terms. Shorter
	// separations get a random direction instead.
	MinDistance float64

	// MergeTolerance is passed to the octree.
	MergeTolerance float64

	// Temperature is the per-level base temperature; a level's bodies start
	// at Temperature * (levels still to refine + 1).
	Temperature float64

	// Mass of every body.
	Mass float64
}

// DefaultParams returns the constants used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Theta:          0.9,
		Cooling:        0.91,
		HaltSpeed:      0.05,
		SpringLength:   10,
		Stiffness:      0.05,
		Damping:        0.5,
		Repulsion:      50,
		MinDistance:    1e-4,
		MergeTolerance: 1e-3,
		Temperature:    10,
		Mass:           1,
	}
}

// Validate checks that every constant is usable.
func (p Params) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"theta", p.Theta > 0},
		{"cooling", p.Cooling > 0 && p.Cooling < 1},
		{"halt speed", p.HaltSpeed > 0},
		{"spring length", p.SpringLength >= 0},
		{"stiffness", p.Stiffness >= 0},
		{"damping", p.Damping >= 0},
		{"repulsion", p.Repulsion >= 0},
		{"min distance", p.MinDistance > 0},
		{"merge tolerance", p.MergeTolerance > 0},
		{"temperature", p.Temperature > 0},
		{"mass", p.Mass > 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s out of range", ErrInvalidParams, c.name)
		}
	}
	for _, v := range []float64{p.Theta, p.SpringLength, p.Stiffness, p.Damping, p.Repulsion, p.Temperature, p.Mass} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidParams)
		}
	}
	return nil
}
