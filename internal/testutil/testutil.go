// Package testutil provides shared test helpers and synthetic state-vector
// fixtures.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/banshee-data/snapshot/internal/fsutil"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request with an optional JSON body.
func NewTestRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Sample is one line of a state file.
type Sample struct {
	ID    uint16
	Epoch float64
	Pos   [3]float64
	Vel   [3]float64
}

// Line renders the sample as "id epoch x y z vx vy vz".
func (s Sample) Line() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("%d %s %s %s %s %s %s %s",
		s.ID, f(s.Epoch), f(s.Pos[0]), f(s.Pos[1]), f(s.Pos[2]), f(s.Vel[0]), f(s.Vel[1]), f(s.Vel[2]))
}

// Format renders samples one per line with a trailing newline.
func Format(samples []Sample) string {
	var b strings.Builder
	for _, s := range samples {
		b.WriteString(s.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

// Encounter builds a synthetic close approach. At every epoch the nA
// samples of idA lie along +X from (7000,0,0) km moving along +Y, and the
// nB samples of idB sit at (7000,0,0)+offset, spread along Y and, in a
// shuffled order, along Z. Spacing is spread km. With nA == nB the
// all-pairs differences stay inside the one-to-one bounds.
func Encounter(idA, idB uint16, epochs []float64, nA, nB int, offset [3]float64, spread float64) []Sample {
	var out []Sample
	for _, ep := range epochs {
		for i := 0; i < nA; i++ {
			out = append(out, Sample{
				ID:    idA,
				Epoch: ep,
				Pos:   [3]float64{7000 + float64(i)*spread, 0, 0},
				Vel:   [3]float64{0, 7.5, 0},
			})
		}
		for j := 0; j < nB; j++ {
			out = append(out, Sample{
				ID:    idB,
				Epoch: ep,
				Pos: [3]float64{
					7000 + offset[0],
					offset[1] + float64(j)*spread,
					offset[2] + float64((3*j)%nB)*spread,
				},
				Vel: [3]float64{0, 7.5, 0},
			})
		}
	}
	return out
}

// WriteStateFile writes samples to dir/name on disk and returns the path.
func WriteStateFile(t *testing.T, dir, name string, samples []Sample) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(Format(samples)), 0o644); err != nil {
		t.Fatalf("write state file: %v", err)
	}
	return path
}

// WriteStates writes raw content to path on the given filesystem.
func WriteStates(t *testing.T, fs fsutil.FileSystem, path, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := fs.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
