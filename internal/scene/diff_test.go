package scene

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sortedCopy(ids []int64) []int64 {
	cp := append([]int64(nil), ids...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return cp
}

func TestDiffIDs_Basic(t *testing.T) {
	d := diffIDs([]int64{1, 2, 3}, []int64{2, 3, 4})
	require.ElementsMatch(t, []int64{4}, d.New)
	require.ElementsMatch(t, []int64{1}, d.Deleted)
	require.ElementsMatch(t, []int64{2, 3}, d.Common)
}

func TestDiffIDs_Identical(t *testing.T) {
	d := diffIDs([]int64{5, 6}, []int64{5, 6})
	require.Empty(t, d.New)
	require.Empty(t, d.Deleted)
	require.ElementsMatch(t, []int64{5, 6}, d.Common)
}

func TestDiffIDs_Disjoint(t *testing.T) {
	d := diffIDs([]int64{1, 2}, []int64{3, 4})
	require.ElementsMatch(t, []int64{3, 4}, d.New)
	require.ElementsMatch(t, []int64{1, 2}, d.Deleted)
	require.Empty(t, d.Common)
}

// Test_DiffPartitionsUnion implements spec.md §8's diff-correctness
// invariant: for all id-sets A, B, diff(A,B) partitions A∪B exactly
// into (B\A, A\B, A∩B), with no id appearing in more than one part.
func Test_DiffPartitionsUnion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.SliceOfDistinct(rapid.Int64Range(0, 50), func(v int64) int64 { return v }).Draw(rt, "a")
		b := rapid.SliceOfDistinct(rapid.Int64Range(0, 50), func(v int64) int64 { return v }).Draw(rt, "b")

		d := diffIDs(a, b)

		union := make(map[int64]struct{})
		for _, id := range a {
			union[id] = struct{}{}
		}
		for _, id := range b {
			union[id] = struct{}{}
		}

		seen := make(map[int64]int)
		for _, id := range d.New {
			seen[id]++
		}
		for _, id := range d.Deleted {
			seen[id]++
		}
		for _, id := range d.Common {
			seen[id]++
		}

		require.Equal(rt, len(union), len(seen), "partition must cover exactly the union")
		for id, count := range seen {
			require.Containsf(rt, union, id, "id %d not in either set", id)
			require.Equal(rt, 1, count, "id %d appears in more than one partition", id)
		}

		aSet := make(map[int64]struct{}, len(a))
		for _, id := range a {
			aSet[id] = struct{}{}
		}
		bSet := make(map[int64]struct{}, len(b))
		for _, id := range b {
			bSet[id] = struct{}{}
		}
		for _, id := range d.New {
			_, inA := aSet[id]
			_, inB := bSet[id]
			require.False(rt, inA)
			require.True(rt, inB)
		}
		for _, id := range d.Deleted {
			_, inA := aSet[id]
			_, inB := bSet[id]
			require.True(rt, inA)
			require.False(rt, inB)
		}
		for _, id := range d.Common {
			_, inA := aSet[id]
			_, inB := bSet[id]
			require.True(rt, inA)
			require.True(rt, inB)
		}
	})
}

func TestDiffContainer_PointerEqualityShortCircuits(t *testing.T) {
	c := NewContainer[*SurfaceState]()
	d := DiffContainer[*SurfaceState](c, c)
	require.Empty(t, d.New)
	require.Empty(t, d.Deleted)
	require.Empty(t, d.Common)
}

// Test_SceneDiffFollowsManagerMutations grounds DiffScene against
// real Manager-produced scene versions: adding one source to a
// derived scene should diff as exactly that source New, with the
// receivers/portals/surfaces containers untouched (pointer-equal,
// empty diffs) and any pre-existing source Common.
func Test_SceneDiffFollowsManagerMutations(t *testing.T) {
	m := NewManager()
	base := m.Head()

	d1 := m.CreateDerived(base, 1)
	src1, err := m.AddSoundSource(d1)
	require.Nil(t, err)
	m.Publish(d1)

	gen2 := m.Head()
	d2 := m.CreateDerived(gen2, 2)
	src2, err := m.AddSoundSource(d2)
	require.Nil(t, err)
	m.Publish(d2)

	sd := DiffScene(gen2, m.Head())
	require.Equal(t, []int64{src2.ID()}, sd.Sources.New)
	require.Equal(t, []int64{src1.ID()}, sd.Sources.Common)
	require.Empty(t, sd.Sources.Deleted)

	require.Empty(t, sd.Receivers.New)
	require.Empty(t, sd.Receivers.Deleted)
	require.Empty(t, sd.Receivers.Common)
	require.Empty(t, sd.Portals.New)
	require.Empty(t, sd.Surfaces.New)
}
