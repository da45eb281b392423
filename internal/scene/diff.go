package scene

// Diff is the three-way split spec.md §4.3 (C4) defines: New is
// B\A, Deleted is A\B, Common is A∩B, computed in O(|A|+|B|) over
// each container's id list.
type Diff struct {
	New     []int64
	Deleted []int64
	Common  []int64
}

// diffIDs is the set-theoretic core of DiffContainer, factored out so
// it can be unit-tested without constructing real pooled entities.
func diffIDs(a, b []int64) Diff {
	aSet := make(map[int64]struct{}, len(a))
	for _, id := range a {
		aSet[id] = struct{}{}
	}
	bSet := make(map[int64]struct{}, len(b))
	for _, id := range b {
		bSet[id] = struct{}{}
	}

	var d Diff
	for _, id := range b {
		if _, ok := aSet[id]; ok {
			d.Common = append(d.Common, id)
		} else {
			d.New = append(d.New, id)
		}
	}
	for _, id := range a {
		if _, ok := bSet[id]; !ok {
			d.Deleted = append(d.Deleted, id)
		}
	}
	return d
}

// DiffContainer computes the three-way diff of two container
// versions. Pointer equality (a == b) short-circuits to an empty
// diff without walking either container, since an unmutated
// container is always shared by pointer across scene versions
// (spec.md §4.3).
func DiffContainer[T Entity](a, b *Container[T]) Diff {
	if a == b {
		return Diff{}
	}
	return diffIDs(a.IDs(), b.IDs())
}

// SceneDiff bundles the per-kind diffs between two scene versions.
type SceneDiff struct {
	Sources   Diff
	Receivers Diff
	Portals   Diff
	Surfaces  Diff
}

// DiffScene computes SceneDiff between two scene states. Each
// container is diffed only if its pointer differs from the other
// scene's (spec.md §4.3: "pointer equality ⇒ no change, empty diff").
func DiffScene(a, b *SceneState) SceneDiff {
	return SceneDiff{
		Sources:   DiffContainer[*SoundSourceState](a.sources, b.sources),
		Receivers: DiffContainer[*ReceiverState](a.receivers, b.receivers),
		Portals:   DiffContainer[*PortalState](a.portals, b.portals),
		Surfaces:  DiffContainer[*SurfaceState](a.surfaces, b.surfaces),
	}
}
