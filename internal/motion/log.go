package motion

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/lestrrat-go/strftime"
)

// Log is the in-memory event buffer backing the motion model's
// logging side channel (spec.md §4.4/§6). Entries accumulate in
// memory and are only written out on Flush, matching the "flushes to
// a tab-separated file on model destruction" behavior.
type Log struct {
	mu      sync.Mutex
	path    string
	entries []logRow
}

type logRow struct {
	isEstimate      bool
	t               float64
	pos             r3.Vector
	view            r3.Vector
	up              r3.Vector
	numInvolvedKeys int
}

// NewLog builds a Log whose output path is derived from a strftime
// pattern (e.g. "motion-%Y%m%d-%H%M%S.tsv"), evaluated against at.
// Grounded on the teacher's direct dependency on
// github.com/lestrrat-go/strftime for exactly this kind of
// timestamped log file naming.
func NewLog(pattern string, at time.Time) (*Log, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("motion: bad log path pattern %q: %w", pattern, err)
	}
	return &Log{path: f.FormatString(at)}, nil
}

func (l *Log) LogInput(t float64, pos, view, up r3.Vector) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logRow{t: t, pos: pos, view: view, up: up, numInvolvedKeys: 1})
}

func (l *Log) LogEstimate(t float64, pose Pose, numInvolvedKeys int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logRow{
		isEstimate:      true,
		t:               t,
		pos:             pose.Position,
		view:            pose.View,
		up:              pose.Up,
		numInvolvedKeys: numInvolvedKeys,
	})
}

const tsvHeader = "time\tpos_x\tpos_y\tpos_z\tview_x\tview_y\tview_z\tup_x\tup_y\tup_z\tquat_x\tquat_y\tquat_z\tquat_w\tnum_involved_keys"

// Flush writes every buffered entry to l.path as tab-separated text
// with the header spec.md §6 specifies, 12-digit float precision.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("motion: creating log file: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString(tsvHeader)
	b.WriteByte('\n')
	for _, e := range l.entries {
		qx, qy, qz, qw := quatFromBasis(e.view, e.up)
		b.WriteString(f12(e.t))
		for _, v := range []float64{e.pos.X, e.pos.Y, e.pos.Z, e.view.X, e.view.Y, e.view.Z, e.up.X, e.up.Y, e.up.Z, qx, qy, qz, qw} {
			b.WriteByte('\t')
			b.WriteString(f12(v))
		}
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(e.numInvolvedKeys))
		b.WriteByte('\n')
	}
	_, err = f.WriteString(b.String())
	return err
}

func f12(v float64) string {
	return strconv.FormatFloat(v, 'g', 12, 64)
}

// quatFromBasis derives a unit quaternion (x, y, z, w) from a
// forward/up orthonormal basis, renormalizing and re-orthogonalizing
// defensively the same way metrics.NewFrame does.
func quatFromBasis(view, up r3.Vector) (x, y, z, w float64) {
	forward := normalizeOrFallback(view, r3.Vector{X: 0, Y: 0, Z: -1})
	upOrtho := up.Sub(forward.Mul(up.Dot(forward)))
	upOrtho = normalizeOrFallback(upOrtho, r3.Vector{X: 0, Y: 1, Z: 0})
	right := forward.Cross(upOrtho)

	// Columns of the rotation matrix are (right, up, -forward) to
	// match a right-handed, -Z-forward convention.
	m00, m01, m02 := right.X, upOrtho.X, -forward.X
	m10, m11, m12 := right.Y, upOrtho.Y, -forward.Y
	m20, m21, m22 := right.Z, upOrtho.Z, -forward.Z

	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		w = 0.25 / s
		x = (m21 - m12) * s
		y = (m02 - m20) * s
		z = (m10 - m01) * s
	case m00 > m11 && m00 > m22:
		s := 2.0 * math.Sqrt(1.0+m00-m11-m22)
		w = (m21 - m12) / s
		x = 0.25 * s
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	case m11 > m22:
		s := 2.0 * math.Sqrt(1.0+m11-m00-m22)
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = 0.25 * s
		z = (m12 + m21) / s
	default:
		s := 2.0 * math.Sqrt(1.0+m22-m00-m11)
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = 0.25 * s
	}
	return x, y, z, w
}
