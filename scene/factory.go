package scene

import (
	"context"

	"certcanvas/core"

	"github.com/sirupsen/logrus"
)

// Factory builds live scene nodes from element records and re-extracts
// records from live nodes.
//
// It keeps an arena of source-of-truth records keyed by element id. Nodes
// carry only the id, never a copy of the record, so a node cannot drift
// from a stale embedded snapshot: extraction reads live geometry off the
// node and overlays it onto the arena record.
type Factory struct {
	records map[string]core.Element
	loader  ImageLoader
}

func NewFactory() *Factory {
	return &Factory{records: make(map[string]core.Element)}
}

// SetImageLoader enables asynchronous bitmap resolution for image nodes.
// Without a loader image nodes stay in ImageNone.
func (f *Factory) SetImageLoader(loader ImageLoader) {
	f.loader = loader
}

// CreateNode constructs the live node for an element and wires the
// interaction callbacks. An unrecognized type is refused: no node is
// created and the caller is warned, since a type outside the closed set is
// a data-integrity signal rather than a crash.
func (f *Factory) CreateNode(el core.Element, cb Callbacks) *Node {
	var n *Node
	switch el.Type {
	case core.ElementText:
		n = newTextNode(el)
	case core.ElementImage:
		n = newImageNode(el)
	case core.ElementShape:
		n = newShapeNode(el)
	case core.ElementQRCode:
		n = newQRNode(el)
	default:
		logrus.WithFields(logrus.Fields{
			"element_id": el.ID,
			"type":       el.Type,
		}).Warn("Refusing to create node for unrecognized element type")
		return nil
	}

	n.id = el.ID
	n.kind = el.Type
	n.managed = true
	n.x, n.y = el.X, el.Y
	n.width, n.height = el.Width, el.Height
	n.rotation = el.Rotation
	n.opacity = el.Opacity
	n.visible = el.Visible
	n.zIndex = el.ZIndex
	// Locked inverts to the node's drag flag.
	n.draggable = !el.Locked

	f.records[el.ID] = el.Clone()
	cb.wire(n)
	f.startImageLoad(n)
	return n
}

func newTextNode(el core.Element) *Node {
	p := el.Properties
	n := &Node{
		text:          p.Text,
		fontSize:      p.FontSize,
		fontFamily:    p.FontFamily,
		fill:          p.Color,
		align:         p.TextAlign,
		lineHeight:    p.LineHeight,
		letterSpacing: p.LetterSpacing,
		padding:       p.Padding,
	}
	if n.fontSize == 0 {
		n.fontSize = core.DefaultFontSize
	}
	if n.fontFamily == "" {
		n.fontFamily = core.DefaultFontFamily
	}
	if n.fill == "" {
		n.fill = core.DefaultTextColor
	}
	if n.align == "" {
		n.align = core.DefaultTextAlign
	}
	return n
}

func newImageNode(el core.Element) *Node {
	return &Node{src: el.Properties.Src}
}

// startImageLoad kicks off background bitmap resolution for an image
// node. It runs only after CreateNode has written every node field, so
// the loader goroutine never observes a half-built node; the completion
// repaint is delivered through redraw, which handles a not-yet-attached
// node. Creation never blocks on the load.
func (f *Factory) startImageLoad(n *Node) {
	if n.kind != core.ElementImage || f.loader == nil || n.src == "" {
		return
	}
	n.imageState = ImagePending
	go func(loader ImageLoader, node *Node, src string) {
		info, err := loader.Load(context.Background(), src)
		node.resolveImage(info, err)
	}(f.loader, n, n.src)
}

func newShapeNode(el core.Element) *Node {
	p := el.Properties
	n := &Node{
		shapeType:   p.ShapeType,
		fill:        p.Fill,
		stroke:      p.Stroke,
		strokeWidth: p.StrokeWidth,
	}
	if n.shapeType == core.ShapeCircle {
		// Circles center in the bounding box with radius half the
		// smaller dimension.
		n.radius = circleRadius(el.Width, el.Height)
	} else {
		// Anything else, absent included, paints as an axis-aligned
		// rectangle over the box verbatim.
		n.shapeType = core.ShapeRectangle
	}
	return n
}

// newQRNode builds the visual stand-in for a QR element: a background
// plate with a centered caption, keyed by the QR payload. The actual QR
// matrix is produced by the export pipeline, not here.
func newQRNode(el core.Element) *Node {
	n := &Node{qrData: el.Properties.QRCodeData}
	plate := &Node{
		kind:        "qr-background",
		width:       el.Width,
		height:      el.Height,
		fill:        "#ffffff",
		stroke:      "#999999",
		strokeWidth: 1,
		visible:     true,
	}
	caption := &Node{
		kind:     "qr-label",
		text:     "QR",
		fontSize: core.DefaultFontSize,
		fill:     "#666666",
		align:    "center",
		visible:  true,
	}
	n.children = []*Node{plate, caption}
	return n
}

// ExtractElement reads a managed node back into an element record.
// Geometry, paint order and (for text) typography come from the live node
// so interactive transforms are reflected; everything else comes from the
// arena record. Unmanaged nodes yield nil with a warning.
func (f *Factory) ExtractElement(n *Node) *core.Element {
	if n == nil || !n.managed {
		logrus.Warn("Cannot extract element from unmanaged node")
		return nil
	}
	rec, ok := f.records[n.id]
	if !ok {
		logrus.WithField("element_id", n.id).Warn("No element record for node")
		return nil
	}

	el := rec.Clone()
	el.X, el.Y = n.x, n.y
	el.Width, el.Height = n.width, n.height
	el.Rotation = n.rotation
	el.Opacity = n.opacity
	el.Visible = n.visible
	el.Locked = !n.draggable
	el.ZIndex = n.zIndex

	if n.kind == core.ElementText {
		el.Properties.Text = n.text
		el.Properties.FontSize = n.fontSize
		el.Properties.FontFamily = n.fontFamily
		el.Properties.Color = n.fill
		el.Properties.TextAlign = n.align
	}
	return &el
}

// ElementPatch is a partial element update. Nil fields are left untouched
// on both the node and its arena record.
type ElementPatch struct {
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64
	Opacity  *float64
	Visible  *bool
	Locked   *bool
	ZIndex   *int

	Text       *string
	FontSize   *float64
	FontFamily *string
	Color      *string
	TextAlign  *string
}

// UpdateNode applies the fields present in the patch to the live node and
// shallow-merges them into the arena record, so a later extraction sees
// the update.
func (f *Factory) UpdateNode(n *Node, patch ElementPatch) {
	if n == nil || !n.managed {
		return
	}
	rec, ok := f.records[n.id]
	if !ok {
		rec = core.Element{ID: n.id, Type: n.kind}
	}

	if patch.X != nil {
		n.x, rec.X = *patch.X, *patch.X
	}
	if patch.Y != nil {
		n.y, rec.Y = *patch.Y, *patch.Y
	}
	if patch.Width != nil {
		n.width, rec.Width = *patch.Width, *patch.Width
	}
	if patch.Height != nil {
		n.height, rec.Height = *patch.Height, *patch.Height
	}
	if patch.Rotation != nil {
		n.rotation, rec.Rotation = *patch.Rotation, *patch.Rotation
	}
	if patch.Opacity != nil {
		n.opacity, rec.Opacity = *patch.Opacity, *patch.Opacity
	}
	if patch.Visible != nil {
		n.visible, rec.Visible = *patch.Visible, *patch.Visible
	}
	if patch.Locked != nil {
		rec.Locked = *patch.Locked
		n.draggable = !*patch.Locked
	}
	if patch.ZIndex != nil {
		n.zIndex, rec.ZIndex = *patch.ZIndex, *patch.ZIndex
	}

	if n.kind == core.ElementText {
		if patch.Text != nil {
			n.text, rec.Properties.Text = *patch.Text, *patch.Text
		}
		if patch.FontSize != nil {
			n.fontSize, rec.Properties.FontSize = *patch.FontSize, *patch.FontSize
		}
		if patch.FontFamily != nil {
			n.fontFamily, rec.Properties.FontFamily = *patch.FontFamily, *patch.FontFamily
		}
		if patch.Color != nil {
			n.fill, rec.Properties.Color = *patch.Color, *patch.Color
		}
		if patch.TextAlign != nil {
			n.align, rec.Properties.TextAlign = *patch.TextAlign, *patch.TextAlign
		}
	}

	if n.kind == core.ElementShape && n.shapeType == core.ShapeCircle &&
		(patch.Width != nil || patch.Height != nil) {
		n.radius = circleRadius(n.width, n.height)
	}

	f.records[n.id] = rec
}

// DestroyNode detaches the node from its layer and drops its arena record.
func (f *Factory) DestroyNode(n *Node) {
	if n == nil {
		return
	}
	delete(f.records, n.id)
	if n.layer != nil {
		n.layer.Remove(n)
	}
}
