package scene

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestManager_HeadStartsEmptyAndFixed(t *testing.T) {
	m := NewManager()
	require.True(t, m.Head().Fixed())
	require.Equal(t, 0, m.Head().Sources().Len())
}

// Test_CoWSharingAcrossDerivation implements spec.md §8's copy-on-write
// sharing invariant: deriving a scene and mutating only its sources
// container must leave receivers/portals/surfaces shared by pointer
// with the base (O(1) "no change" diff), and must not perturb the
// base's own sources container or its contents.
func Test_CoWSharingAcrossDerivation(t *testing.T) {
	m := NewManager()
	base := m.Head()

	derived := m.CreateDerived(base, 1)
	require.Same(t, base.Receivers(), derived.Receivers())
	require.Same(t, base.Portals(), derived.Portals())
	require.Same(t, base.Surfaces(), derived.Surfaces())
	require.Same(t, base.Sources(), derived.Sources())

	_, aerrv := m.AddSoundSource(derived)
	require.Nil(t, aerrv)

	// Sources diverges (cloned on first touch); the rest stay shared.
	require.NotSame(t, base.Sources(), derived.Sources())
	require.Same(t, base.Receivers(), derived.Receivers())
	require.Same(t, base.Portals(), derived.Portals())
	require.Same(t, base.Surfaces(), derived.Surfaces())

	// The base scene is untouched.
	require.Equal(t, 0, base.Sources().Len())
	require.Equal(t, 1, derived.Sources().Len())
}

// Test_AlterClonesLeafOnlyWhenShared covers the leaf-level half of the
// same invariant: altering a source that the base scene still
// references must install a distinct leaf object, while a second
// alter within the same still-unpublished derivation (now solely
// owned) must not clone again.
func Test_AlterClonesLeafOnlyWhenShared(t *testing.T) {
	m := NewManager()
	base := m.Head()

	gen1 := m.CreateDerived(base, 1)
	src, aerrv := m.AddSoundSource(gen1)
	require.Nil(t, aerrv)
	require.Nil(t, src.SetPower(2.0))
	m.Publish(gen1)

	published := m.Head()
	publishedSrc, ok := published.Sources().Get(src.ID())
	require.True(t, ok)

	gen2 := m.CreateDerived(published, 2)
	altered, aerrv := m.AlterSoundSourceState(gen2, src.ID())
	require.Nil(t, aerrv)
	require.NotSame(t, publishedSrc, altered, "altering a leaf shared with a published scene must clone it")
	require.Nil(t, altered.SetPower(5.0))

	// Published scene's own leaf is untouched.
	require.Equal(t, 2.0, publishedSrc.Power())
	require.Equal(t, 5.0, altered.Power())

	again, aerrv := m.AlterSoundSourceState(gen2, src.ID())
	require.Nil(t, aerrv)
	require.Same(t, altered, again, "altering an already solely-owned leaf must not clone again")
}

func TestManager_RemoveSoundSource(t *testing.T) {
	m := NewManager()
	base := m.Head()

	d := m.CreateDerived(base, 1)
	src, aerrv := m.AddSoundSource(d)
	require.Nil(t, aerrv)

	require.Nil(t, m.RemoveSoundSource(d, src.ID()))
	require.Equal(t, 0, d.Sources().Len())

	aerrv = m.RemoveSoundSource(d, src.ID())
	require.NotNil(t, aerrv)
}

func TestManager_MutatingFixedSceneFails(t *testing.T) {
	m := NewManager()
	head := m.Head()

	_, aerrv := m.AddSoundSource(head)
	require.NotNil(t, aerrv)
}

func TestManager_MotionStateAttachment(t *testing.T) {
	m := NewManager()
	base := m.Head()

	d := m.CreateDerived(base, 1)
	src, aerrv := m.AddSoundSource(d)
	require.Nil(t, aerrv)

	ms := m.NewMotionState()
	require.Nil(t, ms.SetPose(
		r3.Vector{X: 1, Y: 0, Z: 0},
		r3.Vector{X: 0, Y: 0, Z: -1},
		r3.Vector{X: 0, Y: 1, Z: 0},
	))
	require.Nil(t, src.SetMotionState(ms))
	m.ReleaseMotionState(ms)

	require.Equal(t, int32(1), ms.RefCount())
	require.NotNil(t, src.MotionState())
}
