package snapshot

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/snapshot/internal/states"
)

func group() states.EpochGroup {
	return states.EpochGroup{
		Epoch: 42,
		IDA:   1,
		IDB:   2,
		A: []states.State{
			{ObjectID: 1, Position: r3.Vec{X: 7000}, Velocity: r3.Vec{Y: 7.5}},
			{ObjectID: 1, SampleIndex: 1, Position: r3.Vec{X: 7000}, Velocity: r3.Vec{X: 7.5}}, // parallel
			{ObjectID: 1, SampleIndex: 2, Position: r3.Vec{X: 7001}, Velocity: r3.Vec{Y: 7.5}},
		},
		B: []states.State{
			{ObjectID: 2, Position: r3.Vec{X: 7000, Z: 1}, Velocity: r3.Vec{Y: 7.5}},
			{ObjectID: 2, SampleIndex: 1, Position: r3.Vec{X: 7000, Z: 2}, Velocity: r3.Vec{Y: 7.5}},
		},
	}
}

func TestNew_BuildsInputs(t *testing.T) {
	d := New(group())

	assert.Equal(t, 42.0, d.Epoch)
	assert.Equal(t, uint16(1), d.IDA)
	assert.Equal(t, uint16(2), d.IDB)
	assert.Len(t, d.BasesA, 3)
	assert.Len(t, d.PosA, 3)
	assert.Len(t, d.PosB, 2)
	assert.Equal(t, []bool{true, false, true}, d.ValidA)
	assert.Equal(t, 1, d.Degenerate)
	assert.Equal(t, 3, d.SamplesA())
	assert.Equal(t, 2, d.SamplesB())

	for i, b := range d.BasesA {
		for _, row := range b {
			if math.IsNaN(row.X) || math.IsNaN(row.Y) || math.IsNaN(row.Z) {
				t.Errorf("basis %d contains NaN", i)
			}
		}
	}
}

func TestOneToOne_Memoised(t *testing.T) {
	d := New(group())
	calls := 0
	compute := func() ([]DiffPoint, error) {
		calls++
		return []DiffPoint{{X: 1, Count: 1}}, nil
	}

	first, err := d.OneToOne(compute)
	require.NoError(t, err)
	second, err := d.OneToOne(compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestOneToOne_ErrorsNotCached(t *testing.T) {
	d := New(group())
	boom := errors.New("boom")

	_, err := d.OneToOne(func() ([]DiffPoint, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	pts, err := d.OneToOne(func() ([]DiffPoint, error) { return []DiffPoint{{Count: 1}}, nil })
	require.NoError(t, err)
	assert.Len(t, pts, 1)
}

func TestAllToAll_KeyedByBinning(t *testing.T) {
	d := New(group())
	calls := 0
	compute := func() ([]DiffPoint, error) {
		calls++
		return []DiffPoint{{Count: uint32(calls)}}, nil
	}
	p1 := BinningParams{BinCount: 100, InitialMultiplier: 1.5, MaxTries: 5}
	p2 := BinningParams{BinCount: 200, InitialMultiplier: 1.5, MaxTries: 5}

	_, _ = d.AllToAll(p1, compute)
	_, _ = d.AllToAll(p1, compute)
	assert.Equal(t, 1, calls)

	pts, _ := d.AllToAll(p2, compute)
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint32(2), pts[0].Count)
}

func TestPublish(t *testing.T) {
	d := New(group())

	if d.Output() != nil {
		t.Fatal("expected no output before publish")
	}
	if _, ok := d.Stats(); ok {
		t.Fatal("expected Stats ok=false before publish")
	}
	if d.Vertices() != nil {
		t.Fatal("expected nil vertices before publish")
	}

	out := &Output{
		Stats:    Stats{Count: 10, Hits: 1, Pc: 0.1, HBR: 0.5},
		Vertices: []Vertex{{Weight: 10}},
		RunID:    "run-1",
	}
	d.Publish(out)

	st, ok := d.Stats()
	require.True(t, ok)
	assert.Equal(t, 0.1, st.Pc)
	assert.Len(t, d.Vertices(), 1)
	assert.Equal(t, "run-1", d.Output().RunID)
}

func TestPublish_ConcurrentReaders(t *testing.T) {
	d := New(group())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Publish(&Output{Stats: Stats{Count: uint64(i)}, Vertices: make([]Vertex, i)})
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if out := d.Output(); out != nil && int(out.Stats.Count) != len(out.Vertices) {
					t.Errorf("torn output: count %d, vertices %d", out.Stats.Count, len(out.Vertices))
				}
			}
		}()
	}
	wg.Wait()
}

func TestStatsDistances(t *testing.T) {
	s := Stats{MinMiss: [3]float32{3, 4, 0}, MaxMiss: [3]float32{0, 0, -2}}
	assert.InDelta(t, 5.0, s.MinMissDistance(), 1e-9)
	assert.InDelta(t, 2.0, s.MaxMissDistance(), 1e-9)
}

func TestRange3(t *testing.T) {
	r := Range3{Min: [3]float32{-1, 0, 2}, Max: [3]float32{3, 0, 6}}
	assert.Equal(t, 4.0, r.Width(0))
	assert.Equal(t, 0.0, r.Width(1))
	assert.Equal(t, 1.0, r.Centre(0))
	assert.Equal(t, 4.0, r.Centre(2))
}
