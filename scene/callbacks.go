package scene

type (
	// Position is a final drag position in canvas coordinates.
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Transform is the final geometry of a completed transform gesture.
	Transform struct {
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		Rotation float64 `json:"rotation"`
	}

	// Callbacks is the fixed interaction surface wired to every managed
	// node at creation time. Every field is optional: an absent callback
	// leaves that interaction unwired. Callbacks fire once at gesture
	// completion, never per frame, and must only report facts upward. A
	// callback that mutates the scene graph would race the caller's own
	// re-render.
	Callbacks struct {
		OnElementDrag        func(id string, pos Position)
		OnElementSelect      func(id string)
		OnElementDoubleClick func(id string)
		OnElementTransform   func(id string, t Transform)
	}
)

func (c Callbacks) wire(n *Node) {
	if c.OnElementDrag != nil {
		n.onDragEnd = c.OnElementDrag
	}
	if c.OnElementSelect != nil {
		n.onSelect = c.OnElementSelect
	}
	if c.OnElementDoubleClick != nil {
		n.onDoubleClick = c.OnElementDoubleClick
	}
	if c.OnElementTransform != nil {
		n.onTransformEnd = c.OnElementTransform
	}
}
