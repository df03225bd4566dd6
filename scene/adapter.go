package scene

import (
	"certcanvas/core"

	"github.com/sirupsen/logrus"
)

// Adapter is the synchronization engine between the caller's element
// sequence and the live scene graph. SyncStateToCanvas is the destructive,
// always-correct baseline; the incremental operations exist so that
// high-frequency interactions (drag, single add/remove) do not pay an O(n)
// teardown/rebuild and do not disturb unrelated nodes.
//
// Every operation degrades to a logged no-op when the stage or its element
// layer is absent: an unmounted scene is a normal transient state, not an
// error.
type Adapter struct {
	factory *Factory
}

func NewAdapter(factory *Factory) *Adapter {
	if factory == nil {
		factory = NewFactory()
	}
	return &Adapter{factory: factory}
}

func (a *Adapter) Factory() *Factory { return a.factory }

// SyncCanvasToState walks the element layer in paint order, skips chrome,
// and extracts an element record per managed node.
func (a *Adapter) SyncCanvasToState(stage *Stage) []core.Element {
	layer := stage.Layer()
	if layer == nil {
		logrus.Warn("Stage has no element layer, returning empty state")
		return []core.Element{}
	}

	nodes := layer.Nodes()
	elements := make([]core.Element, 0, len(nodes))
	for _, n := range nodes {
		if !n.Managed() {
			continue
		}
		if el := a.factory.ExtractElement(n); el != nil {
			elements = append(elements, *el)
		}
	}
	return elements
}

// SyncStateToCanvas destructively rebuilds the element layer from the
// element sequence. The clear completes before the first create, so an id
// from the previous state is never live alongside its replacement.
func (a *Adapter) SyncStateToCanvas(stage *Stage, elements []core.Element, cb Callbacks) {
	layer := stage.Layer()
	if layer == nil {
		logrus.Warn("Stage has no element layer, skipping resync")
		return
	}

	a.ClearCanvas(stage)
	for _, el := range elements {
		if n := a.factory.CreateNode(el, cb); n != nil {
			layer.Add(n)
		}
	}
	layer.BatchDraw()
}

// ClearCanvas destroys every managed node, leaving chrome in place.
// Idempotent; repaints only when something was removed.
func (a *Adapter) ClearCanvas(stage *Stage) {
	layer := stage.Layer()
	if layer == nil {
		logrus.Warn("Stage has no element layer, nothing to clear")
		return
	}

	removed := 0
	for _, n := range layer.Nodes() {
		if n.Managed() {
			a.factory.DestroyNode(n)
			removed++
		}
	}
	if removed > 0 {
		layer.BatchDraw()
	}
}

// AddElementToCanvas creates and appends a single node without touching
// existing nodes.
func (a *Adapter) AddElementToCanvas(stage *Stage, el core.Element, cb Callbacks) {
	layer := stage.Layer()
	if layer == nil {
		logrus.WithField("element_id", el.ID).Warn("Stage has no element layer, cannot add element")
		return
	}

	if n := a.factory.CreateNode(el, cb); n != nil {
		layer.Add(n)
		layer.BatchDraw()
	}
}

// UpdateElementOnCanvas applies a partial update to the node carrying the
// given id. An unknown id is a silent no-op: the element was likely just
// removed by a concurrent caller action, which is benign.
func (a *Adapter) UpdateElementOnCanvas(stage *Stage, elementID string, patch ElementPatch) {
	layer := stage.Layer()
	if layer == nil {
		logrus.WithField("element_id", elementID).Warn("Stage has no element layer, cannot update element")
		return
	}

	n := layer.FindByID(elementID)
	if n == nil {
		return
	}
	a.factory.UpdateNode(n, patch)
	layer.BatchDraw()
}

// GetElementFromCanvas extracts a single element by id, or nil if absent.
func (a *Adapter) GetElementFromCanvas(stage *Stage, elementID string) *core.Element {
	layer := stage.Layer()
	if layer == nil {
		logrus.WithField("element_id", elementID).Warn("Stage has no element layer, cannot read element")
		return nil
	}

	n := layer.FindByID(elementID)
	if n == nil {
		return nil
	}
	return a.factory.ExtractElement(n)
}
