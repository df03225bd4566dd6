package scene

import (
	"sync"
	"sync/atomic"

	"certcanvas/core"
)

// Chrome node kinds. Chrome is interaction furniture (selection rectangles,
// transform handles) that lives on the element layer but is never part of
// the document.
const (
	KindTransformer = "transformer"
	KindSelection   = "selection-rect"
)

type (
	// Stage is the root of the headless scene graph. It owns a single
	// element layer sized to the document canvas.
	Stage struct {
		width      float64
		height     float64
		background string
		layer      *Layer
	}

	// Layer holds nodes in paint order and counts repaints so callers and
	// tests can observe redraw activity.
	Layer struct {
		nodes []*Node
		draws atomic.Int64
	}
)

func NewStage(width, height float64, background string) *Stage {
	return &Stage{width: width, height: height, background: background, layer: NewLayer()}
}

// Layer returns the element layer, or nil if the stage is not mounted.
func (s *Stage) Layer() *Layer {
	if s == nil {
		return nil
	}
	return s.layer
}

func (s *Stage) Size() (width, height float64) { return s.width, s.height }

func (s *Stage) SetSize(width, height float64) {
	s.width, s.height = width, height
}

func (s *Stage) Background() string { return s.background }

func (s *Stage) SetBackground(background string) { s.background = background }

func NewLayer() *Layer {
	return &Layer{}
}

// Add attaches the node to the layer. A repaint that completed while the
// node was detached (an image load finishing before attach) is delivered
// now instead of being dropped.
func (l *Layer) Add(n *Node) {
	n.mu.Lock()
	n.layer = l
	flush := n.pendingDraw
	n.pendingDraw = false
	n.mu.Unlock()

	l.nodes = append(l.nodes, n)
	if flush {
		l.BatchDraw()
	}
}

func (l *Layer) Remove(n *Node) {
	for i, candidate := range l.nodes {
		if candidate == n {
			l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
			n.mu.Lock()
			n.layer = nil
			n.mu.Unlock()
			return
		}
	}
}

// Nodes returns the layer's nodes in paint order.
func (l *Layer) Nodes() []*Node {
	out := make([]*Node, len(l.nodes))
	copy(out, l.nodes)
	return out
}

// FindByID returns the managed node carrying the given element id.
func (l *Layer) FindByID(id string) *Node {
	for _, n := range l.nodes {
		if n.managed && n.id == id {
			return n
		}
	}
	return nil
}

// BatchDraw schedules a repaint. In this headless graph it only advances
// the draw counter; a rendering frontend would flush here.
func (l *Layer) BatchDraw() {
	l.draws.Add(1)
}

func (l *Layer) DrawCount() int64 {
	return l.draws.Load()
}

// Node is one live object on the element layer. Managed nodes carry the id
// of their element record; the full record lives in the factory's arena,
// never on the node.
type Node struct {
	id      string
	kind    string
	managed bool

	x, y          float64
	width, height float64
	rotation      float64
	opacity       float64
	visible       bool
	draggable     bool
	zIndex        int

	// text
	text          string
	fontSize      float64
	fontFamily    string
	fill          string
	align         string
	lineHeight    float64
	letterSpacing float64
	padding       float64

	// shape
	shapeType   string
	radius      float64
	stroke      string
	strokeWidth float64

	// image
	src        string
	imageState ImageState
	intrinsicW float64
	intrinsicH float64

	// qr-code composite internals
	children []*Node
	qrData   string

	// mu guards layer, pendingDraw and the image fields: the image-load
	// goroutine touches them concurrently with attach and gestures.
	mu          sync.Mutex
	layer       *Layer
	pendingDraw bool

	onDragEnd      func(id string, pos Position)
	onSelect       func(id string)
	onDoubleClick  func(id string)
	onTransformEnd func(id string, t Transform)
}

// NewChromeNode creates an unmanaged node for selection/transform
// furniture. The adapter skips chrome on extraction and leaves it in place
// when clearing the layer.
func NewChromeNode(kind string) *Node {
	return &Node{kind: kind, visible: true}
}

func (n *Node) ID() string         { return n.id }
func (n *Node) Kind() string       { return n.kind }
func (n *Node) Managed() bool      { return n.managed }
func (n *Node) Position() (x, y float64) { return n.x, n.y }
func (n *Node) Size() (width, height float64) { return n.width, n.height }
func (n *Node) Rotation() float64  { return n.rotation }
func (n *Node) Opacity() float64   { return n.opacity }
func (n *Node) Visible() bool      { return n.visible }
func (n *Node) Draggable() bool    { return n.draggable }
func (n *Node) ZIndex() int        { return n.zIndex }
func (n *Node) Text() string       { return n.text }
func (n *Node) FontSize() float64  { return n.fontSize }
func (n *Node) FontFamily() string { return n.fontFamily }
func (n *Node) Fill() string       { return n.fill }
func (n *Node) Align() string      { return n.align }
func (n *Node) ShapeType() string  { return n.shapeType }
func (n *Node) Radius() float64    { return n.radius }
func (n *Node) Src() string        { return n.src }
func (n *Node) QRData() string     { return n.qrData }
func (n *Node) Children() []*Node  { return n.children }

// Center returns the midpoint of the node's bounding box. Circles paint
// centered here.
func (n *Node) Center() (x, y float64) {
	return n.x + n.width/2, n.y + n.height/2
}

// EndDrag applies the final position of a completed drag gesture and
// reports it. Locked elements are not draggable, so the gesture is ignored
// for them.
func (n *Node) EndDrag(x, y float64) {
	if !n.draggable {
		return
	}
	n.x, n.y = x, y
	if n.onDragEnd != nil {
		n.onDragEnd(n.id, Position{X: x, Y: y})
	}
	n.redraw()
}

// Click reports a select intent.
func (n *Node) Click() {
	if n.onSelect != nil {
		n.onSelect(n.id)
	}
}

// DoubleClick reports an edit intent. The inline editor itself lives in
// the caller.
func (n *Node) DoubleClick() {
	if n.onDoubleClick != nil {
		n.onDoubleClick(n.id)
	}
}

// EndTransform applies the final state of a completed transform gesture:
// width and height become the base size scaled by the gesture's final
// factors, rotation is absolute in degrees. The scale itself is not
// retained.
func (n *Node) EndTransform(x, y, scaleX, scaleY, rotation float64) {
	n.x, n.y = x, y
	n.width *= scaleX
	n.height *= scaleY
	n.rotation = rotation
	if n.kind == core.ElementShape && n.shapeType == core.ShapeCircle {
		n.radius = circleRadius(n.width, n.height)
	}
	if n.onTransformEnd != nil {
		n.onTransformEnd(n.id, Transform{
			X: n.x, Y: n.y, Width: n.width, Height: n.height, Rotation: n.rotation,
		})
	}
	n.redraw()
}

// redraw repaints the node's layer. While the node is detached the
// repaint is remembered and delivered by the next Add.
func (n *Node) redraw() {
	n.mu.Lock()
	layer := n.layer
	if layer == nil {
		n.pendingDraw = true
	}
	n.mu.Unlock()

	if layer != nil {
		layer.BatchDraw()
	}
}

func circleRadius(width, height float64) float64 {
	if width < height {
		return width / 2
	}
	return height / 2
}
