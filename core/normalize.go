package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalization accepts documents shaped by the canonical schema or by the
// looser legacy shapes older clients produced (snake_case keys, nested
// design.canvas / design.elements, alternate field names). Every field is
// resolved through an explicit alias table: canonical key first, then each
// known alias, then a hard-coded default. Input is never rejected.

// Canvas defaults used when a document carries no usable canvas settings.
const (
	DefaultCanvasWidth      = 800.0
	DefaultCanvasHeight     = 600.0
	DefaultCanvasBackground = "#ffffff"
)

var documentAliases = map[string][]string{
	"id":          {"template_id", "templateId"},
	"name":        {"template_name", "title"},
	"description": {"desc"},
	"category":    {"category_name"},
	"createdAt":   {"created_at"},
	"updatedAt":   {"updated_at"},
	"createdBy":   {"created_by", "author"},
}

var canvasAliases = map[string][]string{
	"width":      {"canvas_width", "w"},
	"height":     {"canvas_height", "h"},
	"background": {"backgroundColor", "background_color", "fillColor", "bg"},
}

var elementAliases = map[string][]string{
	"id":       {"element_id"},
	"type":     {"element_type", "kind"},
	"x":        {"left", "pos_x"},
	"y":        {"top", "pos_y"},
	"width":    {"w"},
	"height":   {"h"},
	"rotation": {"angle"},
	"opacity":  {"alpha"},
	"visible":  {"is_visible"},
	"locked":   {"is_locked"},
	"zIndex":   {"z_index", "z"},
}

var propertyAliases = map[string][]string{
	"text":          {"content", "value"},
	"fontSize":      {"font_size"},
	"fontFamily":    {"font_family", "font"},
	"color":         {"fontColor", "font_color", "textColor", "text_color"},
	"textAlign":     {"text_align", "align", "alignment"},
	"lineHeight":    {"line_height"},
	"letterSpacing": {"letter_spacing"},
	"padding":       {},
	"src":           {"imageUrl", "image_url", "url"},
	"shapeType":     {"shape_type", "shape"},
	"fill":          {"fillColor", "fill_color", "backgroundColor", "background_color"},
	"stroke":        {"strokeColor", "stroke_color", "borderColor", "border_color"},
	"strokeWidth":   {"stroke_width", "border_width"},
	"qrCodeData":    {"qr_code_data", "qrData", "qr_data"},
}

var bindingAliases = map[string][]string{
	"fieldPath": {"field_path", "field", "path"},
	"type":      {"field_type"},
	"label":     {"field_label"},
}

// canonicalType folds legacy type spellings onto the closed variant set.
// Unrecognized types fall back to text, the safest visual stand-in.
var canonicalType = map[string]string{
	"text":      ElementText,
	"label":     ElementText,
	"image":     ElementImage,
	"img":       ElementImage,
	"shape":     ElementShape,
	"rectangle": ElementShape,
	"rect":      ElementShape,
	"circle":    ElementShape,
	"qr-code":   ElementQRCode,
	"qr_code":   ElementQRCode,
	"qrcode":    ElementQRCode,
	"qr":        ElementQRCode,
}

// NormalizeRaw parses a JSON payload and normalizes it into a Document.
func NormalizeRaw(data []byte) (Document, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Document{}, fmt.Errorf("parse document payload: %w", err)
	}
	return NormalizeDocument(m), nil
}

// NormalizeDocument converts a loosely shaped document map into the
// canonical Document.
func NormalizeDocument(raw map[string]any) Document {
	if raw == nil {
		raw = map[string]any{}
	}
	design, _ := raw["design"].(map[string]any)

	doc := Document{
		ID:          stringOr(raw, nil, documentAliases, "id", ""),
		Name:        stringOr(raw, nil, documentAliases, "name", "Untitled"),
		Description: stringOr(raw, nil, documentAliases, "description", ""),
		Category:    stringOr(raw, nil, documentAliases, "category", DefaultCategory),
		CreatedBy:   stringOr(raw, nil, documentAliases, "createdBy", ""),
		CreatedAt:   timeOr(raw, documentAliases, "createdAt"),
		UpdatedAt:   timeOr(raw, documentAliases, "updatedAt"),
	}

	canvasSrc, _ := raw["canvas"].(map[string]any)
	if canvasSrc == nil {
		canvasSrc, _ = design["canvas"].(map[string]any)
	}
	doc.Canvas = normalizeCanvas(canvasSrc, raw)

	for _, key := range []any{raw["elements"], design["elements"], raw["items"]} {
		list, ok := key.([]any)
		if !ok {
			continue
		}
		doc.Elements = make([]Element, 0, len(list))
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			doc.Elements = append(doc.Elements, NormalizeElement(m))
		}
		break
	}
	return doc
}

func normalizeCanvas(src, top map[string]any) CanvasConfig {
	// Legacy flat documents carry canvas_width/canvas_height at the top
	// level instead of a nested canvas object.
	return CanvasConfig{
		Width:      floatOr(src, top, canvasAliases, "width", DefaultCanvasWidth),
		Height:     floatOr(src, top, canvasAliases, "height", DefaultCanvasHeight),
		Background: stringOr(src, top, canvasAliases, "background", DefaultCanvasBackground),
	}
}

// NormalizeElement converts a loosely shaped element map into the canonical
// Element, applying the documented defaults for missing fields. Opacity,
// visible and locked are defaulted only when absent: 0 and false are
// legitimate values and are preserved.
func NormalizeElement(raw map[string]any) Element {
	if raw == nil {
		raw = map[string]any{}
	}
	rawType := strings.ToLower(stringOr(raw, nil, elementAliases, "type", ""))
	typ, known := canonicalType[rawType]
	if !known {
		typ = ElementText
	}

	el := Element{
		Type:     typ,
		X:        floatOr(raw, nil, elementAliases, "x", 0),
		Y:        floatOr(raw, nil, elementAliases, "y", 0),
		Width:    floatOr(raw, nil, elementAliases, "width", 100),
		Height:   floatOr(raw, nil, elementAliases, "height", 50),
		Rotation: floatOr(raw, nil, elementAliases, "rotation", 0),
		Opacity:  floatOr(raw, nil, elementAliases, "opacity", 1),
		Visible:  boolOr(raw, elementAliases, "visible", true),
		Locked:   boolOr(raw, elementAliases, "locked", false),
		ZIndex:   int(floatOr(raw, nil, elementAliases, "zIndex", 0)),
	}
	el.ID = stringOr(raw, nil, elementAliases, "id", "")
	if el.ID == "" {
		el.ID = NewElementID(typ)
	}

	// Properties may live in a nested bag or flattened onto the element.
	props, _ := raw["properties"].(map[string]any)
	el.Properties = normalizeProperties(props, raw, typ, rawType)
	return el
}

func normalizeProperties(props, flat map[string]any, typ, rawType string) Properties {
	p := Properties{
		Text:          stringOr(props, flat, propertyAliases, "text", ""),
		FontSize:      floatOr(props, flat, propertyAliases, "fontSize", 0),
		FontFamily:    stringOr(props, flat, propertyAliases, "fontFamily", ""),
		Color:         stringOr(props, flat, propertyAliases, "color", ""),
		TextAlign:     stringOr(props, flat, propertyAliases, "textAlign", ""),
		LineHeight:    floatOr(props, flat, propertyAliases, "lineHeight", 0),
		LetterSpacing: floatOr(props, flat, propertyAliases, "letterSpacing", 0),
		Padding:       floatOr(props, flat, propertyAliases, "padding", 0),
		Src:           stringOr(props, flat, propertyAliases, "src", ""),
		ShapeType:     stringOr(props, flat, propertyAliases, "shapeType", ""),
		Fill:          stringOr(props, flat, propertyAliases, "fill", ""),
		Stroke:        stringOr(props, flat, propertyAliases, "stroke", ""),
		StrokeWidth:   floatOr(props, flat, propertyAliases, "strokeWidth", 0),
		QRCodeData:    stringOr(props, flat, propertyAliases, "qrCodeData", ""),
	}

	if typ == ElementShape && p.ShapeType == "" {
		// A legacy type of "circle" was itself the shape discriminator.
		if rawType == ShapeCircle {
			p.ShapeType = ShapeCircle
		} else {
			p.ShapeType = ShapeRectangle
		}
	}

	for _, src := range []map[string]any{props, flat} {
		for _, key := range []string{"dataBinding", "data_binding", "binding"} {
			if m, ok := src[key].(map[string]any); ok {
				p.DataBinding = normalizeBinding(m)
				return p
			}
		}
	}
	return p
}

func normalizeBinding(raw map[string]any) *DataBinding {
	b := DataBinding{
		FieldPath: stringOr(raw, nil, bindingAliases, "fieldPath", ""),
		Type:      stringOr(raw, nil, bindingAliases, "type", ""),
		Label:     stringOr(raw, nil, bindingAliases, "label", ""),
	}
	if b.FieldPath == "" && b.Label == "" {
		return nil
	}
	return &b
}

// lookup resolves key against primary then fallback, trying the canonical
// name before each alias in table order.
func lookup(primary, fallback map[string]any, aliases map[string][]string, key string) (any, bool) {
	keys := append([]string{key}, aliases[key]...)
	for _, src := range []map[string]any{primary, fallback} {
		if src == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := src[k]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func stringOr(primary, fallback map[string]any, aliases map[string][]string, key, def string) string {
	v, ok := lookup(primary, fallback, aliases, key)
	if !ok {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return def
}

func floatOr(primary, fallback map[string]any, aliases map[string][]string, key string, def float64) float64 {
	v, ok := lookup(primary, fallback, aliases, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

func boolOr(m map[string]any, aliases map[string][]string, key string, def bool) bool {
	v, ok := lookup(m, nil, aliases, key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	case float64:
		return b != 0
	}
	return def
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func timeOr(m map[string]any, aliases map[string][]string, key string) time.Time {
	v, ok := lookup(m, nil, aliases, key)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	case float64:
		// Epoch milliseconds.
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
