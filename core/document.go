package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// ErrNotFound reports that no template carries the requested id. Store
// implementations wrap it so callers can tell absence apart from a
// backend failure.
var ErrNotFound = errors.New("template not found")

// Element type discriminators. The set is closed; anything else is refused
// by the scene factory and canonicalized to text during normalization.
const (
	ElementText   = "text"
	ElementImage  = "image"
	ElementShape  = "shape"
	ElementQRCode = "qr-code"
)

// Shape subtypes carried in Properties.ShapeType.
const (
	ShapeRectangle = "rectangle"
	ShapeCircle    = "circle"
)

// DefaultCategory is assigned to documents saved without a category.
const DefaultCategory = "certificate"

// Typography fallbacks used when a text element omits a styling property.
const (
	DefaultFontSize   = 16.0
	DefaultFontFamily = "Arial, Helvetica, sans-serif"
	DefaultTextColor  = "#000000"
	DefaultTextAlign  = "left"
)

type (
	// CanvasConfig holds the drawing surface settings of a document.
	CanvasConfig struct {
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
		Background string  `json:"background"`
	}

	// DataBinding marks an element as a template placeholder that is filled
	// from record data at render time rather than carrying static content.
	DataBinding struct {
		FieldPath string `json:"fieldPath"`
		Type      string `json:"type,omitempty"`
		Label     string `json:"label,omitempty"`
	}

	// Properties is the union of the per-type payload fields. Only the
	// fields matching the element's Type are consulted; the rest are
	// preserved untouched so documents survive round trips.
	Properties struct {
		// text
		Text          string  `json:"text,omitempty"`
		FontSize      float64 `json:"fontSize,omitempty"`
		FontFamily    string  `json:"fontFamily,omitempty"`
		Color         string  `json:"color,omitempty"`
		TextAlign     string  `json:"textAlign,omitempty"`
		LineHeight    float64 `json:"lineHeight,omitempty"`
		LetterSpacing float64 `json:"letterSpacing,omitempty"`
		Padding       float64 `json:"padding,omitempty"`

		// image
		Src string `json:"src,omitempty"`

		// shape
		ShapeType   string  `json:"shapeType,omitempty"`
		Fill        string  `json:"fill,omitempty"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`

		// qr-code
		QRCodeData string `json:"qrCodeData,omitempty"`

		DataBinding *DataBinding `json:"dataBinding,omitempty"`
	}

	// Element is one visual object on the canvas.
	Element struct {
		ID         string     `json:"id"`
		Type       string     `json:"type"`
		X          float64    `json:"x"`
		Y          float64    `json:"y"`
		Width      float64    `json:"width"`
		Height     float64    `json:"height"`
		Rotation   float64    `json:"rotation"`
		Opacity    float64    `json:"opacity"`
		Visible    bool       `json:"visible"`
		Locked     bool       `json:"locked"`
		ZIndex     int        `json:"zIndex"`
		Properties Properties `json:"properties"`
	}

	// Document is the persisted unit: canvas settings plus an ordered
	// element sequence. Order is paint order unless overridden by ZIndex.
	Document struct {
		ID          string       `json:"id,omitempty"`
		Name        string       `json:"name"`
		Description string       `json:"description,omitempty"`
		Category    string       `json:"category"`
		Canvas      CanvasConfig `json:"canvas"`
		Elements    []Element    `json:"elements"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
		CreatedBy   string       `json:"createdBy,omitempty"`
	}

	// TemplateStore is the persistence contract the template server
	// exposes over /templates/simple.
	TemplateStore interface {
		List(ctx context.Context) ([]Document, error)
		Get(ctx context.Context, id string) (*Document, error)
		Save(ctx context.Context, doc *Document) error
		Delete(ctx context.Context, id string) error
	}
)

// NewElementID generates a caller-side element id of the form
// "{type}-{timestamp}-{random}".
func NewElementID(elementType string) string {
	return fmt.Sprintf("%s-%d-%s", elementType, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NewElement returns an element of the given type with a generated id and
// the documented geometry and visibility defaults.
func NewElement(elementType string) Element {
	return Element{
		ID:      NewElementID(elementType),
		Type:    elementType,
		Width:   100,
		Height:  50,
		Opacity: 1,
		Visible: true,
	}
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	c := e
	if e.Properties.DataBinding != nil {
		db := *e.Properties.DataBinding
		c.Properties.DataBinding = &db
	}
	return c
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	c := d
	if d.Elements != nil {
		c.Elements = make([]Element, len(d.Elements))
		for i := range d.Elements {
			c.Elements[i] = d.Elements[i].Clone()
		}
	}
	return c
}

func (c CanvasConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Width, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.Height, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

func (e Element) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Type, validation.Required,
			validation.In(ElementText, ElementImage, ElementShape, ElementQRCode)),
		validation.Field(&e.Opacity, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (d Document) Validate() error {
	if err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Canvas),
		validation.Field(&d.Elements),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Elements))
	for _, el := range d.Elements {
		if _, dup := seen[el.ID]; dup {
			return fmt.Errorf("duplicate element id %s", el.ID)
		}
		seen[el.ID] = struct{}{}
	}
	return nil
}
