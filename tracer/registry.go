package tracer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/meshfire/meshfire/log"
	"github.com/meshfire/meshfire/mesh"
)

// TreeRegistry allocates tree handles and owns every tree built by a tracer
// instance. Surface and element trees live in two disjoint dense id spaces.
// Builds mutate the registry and must be serialized by the caller; lookups
// and the trees themselves are read-only after build.
type TreeRegistry struct {
	logger log.Logger

	surfaceTrees []*SurfaceTree
	elementTrees []*ElementTree

	volumeSurface map[mesh.ID]TreeID
	volumeElement map[mesh.ID]TreeID
	userData      map[mesh.ID]*GeometryUserData

	globalSurface TreeID
	globalElement TreeID
	globalStale   bool
}

// NewTreeRegistry creates an empty registry.
func NewTreeRegistry() *TreeRegistry {
	return &TreeRegistry{
		logger:        log.New("treeRegistry"),
		volumeSurface: make(map[mesh.ID]TreeID),
		volumeElement: make(map[mesh.ID]TreeID),
		userData:      make(map[mesh.ID]*GeometryUserData),
		globalSurface: TreeNone,
		globalElement: TreeNone,
	}
}

// NextSurfaceTreeID returns the handle the next surface tree build will be
// issued.
func (r *TreeRegistry) NextSurfaceTreeID() TreeID {
	return TreeID(len(r.surfaceTrees))
}

// NextElementTreeID returns the handle the next element tree build will be
// issued.
func (r *TreeRegistry) NextElementTreeID() TreeID {
	return TreeID(len(r.elementTrees))
}

// RegisterVolume builds the surface tree and, when the mesh carries
// tetrahedra, the element tree of a volume. Re-registering a volume is a
// no-op that returns the already-issued handles. Any previously built global
// tree is marked stale.
func (r *TreeRegistry) RegisterVolume(mm mesh.Manager, volume mesh.ID) (TreeID, TreeID, error) {
	if id, exists := r.volumeSurface[volume]; exists {
		elemID := TreeNone
		if eid, ok := r.volumeElement[volume]; ok {
			elemID = eid
		}
		r.logger.Debugf("volume %d already registered as tree %d", volume, id)
		return id, elemID, nil
	}

	surfTree, userData, err := BuildSurfaceTree(mm, volume, r.NextSurfaceTreeID())
	if err != nil {
		return TreeNone, TreeNone, errors.Wrapf(err, "registering volume %d", volume)
	}
	r.addSurfaceTree(surfTree, userData)
	r.volumeSurface[volume] = surfTree.ID

	elemID := TreeNone
	elemTree, err := BuildElementTree(mm, volume, r.NextElementTreeID())
	if err != nil {
		return TreeNone, TreeNone, errors.Wrapf(err, "registering volume %d", volume)
	}
	if elemTree != nil {
		r.elementTrees = append(r.elementTrees, elemTree)
		r.volumeElement[volume] = elemTree.ID
		elemID = elemTree.ID
	}

	if r.globalSurface != TreeNone || r.globalElement != TreeNone {
		r.logger.Warningf("volume %d registered after a global tree build; global trees are now stale", volume)
		r.globalStale = true
	}

	r.logger.Debugf(
		"registered volume %d: surface tree %d (%d triangles), element tree %d",
		volume, surfTree.ID, surfTree.NumPrimitives(), elemID,
	)
	return surfTree.ID, elemID, nil
}

// CreateGlobalSurfaceTree builds one tree over every surface the mesh manager
// lists (mm.Surfaces()); surfaces of volumes that were never registered are
// included as well. Repeated calls rebuild only when a registration
// invalidated the previous build.
func (r *TreeRegistry) CreateGlobalSurfaceTree(mm mesh.Manager) (TreeID, error) {
	if r.globalSurface != TreeNone && !r.globalStale {
		return r.globalSurface, nil
	}

	tree, userData, err := BuildGlobalSurfaceTree(mm, r.NextSurfaceTreeID())
	if err != nil {
		return TreeNone, err
	}
	r.addSurfaceTree(tree, userData)
	r.globalSurface = tree.ID
	r.globalStale = false
	return tree.ID, nil
}

func (r *TreeRegistry) addSurfaceTree(tree *SurfaceTree, userData []*GeometryUserData) {
	r.surfaceTrees = append(r.surfaceTrees, tree)
	for _, ud := range userData {
		r.userData[ud.SurfaceID] = ud
	}
}

// GlobalSurfaceTree returns the global tree handle or TreeNone.
func (r *TreeRegistry) GlobalSurfaceTree() TreeID { return r.globalSurface }

// SurfaceTree returns the surface tree handle of a volume or TreeNone.
func (r *TreeRegistry) SurfaceTree(volume mesh.ID) TreeID {
	if id, ok := r.volumeSurface[volume]; ok {
		return id
	}
	return TreeNone
}

// ElementTree returns the element tree handle of a volume or TreeNone.
func (r *TreeRegistry) ElementTree(volume mesh.ID) TreeID {
	if id, ok := r.volumeElement[volume]; ok {
		return id
	}
	return TreeNone
}

// NumRegisteredTrees returns the total number of trees issued by this
// registry across both id spaces.
func (r *TreeRegistry) NumRegisteredTrees() int {
	return len(r.surfaceTrees) + len(r.elementTrees)
}

// GeometryData returns the user-data record of a surface. The surface must
// belong to a registered tree.
func (r *TreeRegistry) GeometryData(surface mesh.ID) *GeometryUserData {
	ud, ok := r.userData[surface]
	if !ok {
		panic(fmt.Sprintf("tracer: geometry data requested for unregistered surface %d", surface))
	}
	return ud
}

// MustSurfaceTree resolves a surface tree handle. Unissued handles and stale
// global handles are caller bugs.
func (r *TreeRegistry) MustSurfaceTree(id TreeID) *SurfaceTree {
	if id < 0 || int(id) >= len(r.surfaceTrees) {
		panic(fmt.Sprintf("tracer: query against unregistered surface tree %d", id))
	}
	if id == r.globalSurface && r.globalStale {
		panic(fmt.Sprintf("tracer: global surface tree %d is stale; rebuild it after registering volumes", id))
	}
	return r.surfaceTrees[id]
}

// MustElementTree resolves an element tree handle.
func (r *TreeRegistry) MustElementTree(id TreeID) *ElementTree {
	if id < 0 || int(id) >= len(r.elementTrees) {
		panic(fmt.Sprintf("tracer: query against unregistered element tree %d", id))
	}
	return r.elementTrees[id]
}
