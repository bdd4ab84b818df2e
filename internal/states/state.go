// Package states parses time-tagged orbital state vectors from text files
// and groups them into per-epoch object pairs.
package states

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// fieldCount is the number of fields on a state line:
// objectId epoch x y z vx vy vz.
const fieldCount = 8

// State is one sampled state vector of one object at one epoch.
type State struct {
	ObjectID uint16
	// SampleIndex is the 0-based order of appearance within its
	// (epoch, object) group. It is assigned by GroupByEpoch.
	SampleIndex int32
	Epoch       float64
	Position    r3.Vec
	Velocity    r3.Vec
}

// EpochGroup holds the samples of exactly two objects at one epoch. A is
// always the object with the smaller id.
type EpochGroup struct {
	Epoch float64
	IDA   uint16
	IDB   uint16
	A     []State
	B     []State
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == ',' || r == '\r'
}

// ParseLine decodes one "objectId epoch x y z vx vy vz" line. Fields may be
// separated by any mix of spaces, tabs and commas. It reports false for
// blank lines, wrong field counts, unparsable numbers and any NaN or
// infinite value.
func ParseLine(line string) (State, bool) {
	fields := strings.FieldsFunc(line, isSeparator)
	if len(fields) != fieldCount {
		return State{}, false
	}

	id, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return State{}, false
	}

	var vals [fieldCount - 1]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return State{}, false
		}
		vals[i] = v
	}

	return State{
		ObjectID: uint16(id),
		Epoch:    vals[0],
		Position: r3.Vec{X: vals[1], Y: vals[2], Z: vals[3]},
		Velocity: r3.Vec{X: vals[4], Y: vals[5], Z: vals[6]},
	}, true
}
