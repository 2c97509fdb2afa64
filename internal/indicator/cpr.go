package indicator

import "math"

// CPRLevels are the central pivot range and support/resistance levels derived
// from one session's high, low and close.
type CPRLevels struct {
	Pivot float64
	TC    float64
	BC    float64
	R1    float64
	R2    float64
	R3    float64
	R4    float64
	S1    float64
	S2    float64
	S3    float64
	S4    float64
	Width float64
}

// Level is a named price level.
type Level struct {
	Name  string
	Value float64
}

// ComputeCPR derives the levels of the next session from a session's high, low and close.
func ComputeCPR(high, low, closePrice float64) CPRLevels {
	pivot := (high + low + closePrice) / 3
	bc := (high + low) / 2
	tc := 2*pivot - bc
	r1, s1 := 2*pivot-low, 2*pivot-high
	r2, s2 := pivot+(high-low), pivot-(high-low)
	r3, s3 := high+2*(pivot-low), low-2*(high-pivot)
	r4, s4 := r3+(r2-r1), s3-(s1-s2)

	return CPRLevels{
		Pivot: pivot,
		TC:    tc,
		BC:    bc,
		R1:    r1,
		R2:    r2,
		R3:    r3,
		R4:    r4,
		S1:    s1,
		S2:    s2,
		S3:    s3,
		S4:    s4,
		Width: math.Abs(tc - bc),
	}
}

// Ordered returns the levels from lowest support to highest resistance:
// s4, s3, s2, s1, bc, tc, r1, r2, r3, r4.
func (c CPRLevels) Ordered() []Level {
	return []Level{
		{Name: "s4", Value: c.S4},
		{Name: "s3", Value: c.S3},
		{Name: "s2", Value: c.S2},
		{Name: "s1", Value: c.S1},
		{Name: "bc", Value: c.BC},
		{Name: "tc", Value: c.TC},
		{Name: "r1", Value: c.R1},
		{Name: "r2", Value: c.R2},
		{Name: "r3", Value: c.R3},
		{Name: "r4", Value: c.R4},
	}
}
