package updatemsg

import (
	"testing"

	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, mgr *scene.Manager, derived *scene.SceneState) *scene.SoundSourceState {
	t.Helper()
	s, aerr := mgr.AddSoundSource(derived)
	require.Nil(t, aerr)
	return s
}

func TestMessage_AddTakesReferenceAndPreReleaseDrops(t *testing.T) {
	mgr := scene.NewManager()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src := newTestSource(t, mgr, derived)
	mgr.Publish(derived)

	require.EqualValues(t, 1, src.RefCount())

	msgPool := pool.New[*Message](2, 2, NewFactory(4))
	msg := msgPool.Request()
	msg.AddNewSource(src)
	require.EqualValues(t, 2, src.RefCount())

	pool.RemoveReference[*Message](msg)
	require.EqualValues(t, 1, src.RefCount())
}

func TestMessage_ResetForReuseClearsVectors(t *testing.T) {
	mgr := scene.NewManager()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src := newTestSource(t, mgr, derived)
	mgr.Publish(derived)

	msgPool := pool.New[*Message](1, 1, NewFactory(4))
	msg := msgPool.Request()
	msg.AddNewSource(src)
	pool.RemoveReference[*Message](msg)

	msg2 := msgPool.Request()
	require.Empty(t, msg2.NewSources)
}

func TestQueue_FIFOOrderAndFullBackpressure(t *testing.T) {
	q := NewQueue(2)
	msgPool := pool.New[*Message](4, 4, NewFactory(1))

	a := msgPool.Request()
	b := msgPool.Request()
	c := msgPool.Request()

	require.True(t, q.Push(a))
	require.True(t, q.Push(b))
	require.False(t, q.Push(c)) // ring rounds up to 2, now full

	require.Equal(t, 2, q.Len())
	require.Same(t, a, q.Pop())
	require.Same(t, b, q.Pop())
	require.Nil(t, q.Pop())
}

func TestQueue_EmptyPopReturnsNil(t *testing.T) {
	q := NewQueue(4)
	require.Nil(t, q.Pop())
	require.Equal(t, 0, q.Len())
}
