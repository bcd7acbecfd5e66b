// Package fastview pushes server side views to browsers. A source stream is converted to a
// shared view-model, fanned out to each view, and each view turns it into element updates
// that a websocket client applies to the page.
package fastview

import (
	"html/template"
)

// TextContent is the Op key that sets an element's text rather than an attribute.
const TextContent = "textContent"

// EleUpdate lists the changes to apply to the page element with id EleId.
type EleUpdate struct {
	EleId string
	Ops   []Op
}

// Op sets Key, an attribute name or TextContent, to Value.
type Op struct {
	Key   string
	Value string
}

// SetText returns the Op replacing an element's text.
func SetText(value string) Op {
	return Op{Key: TextContent, Value: value}
}

// ViewComponent is one server side view. Parse defines its initial markup in the page
// template under the returned name; Updates streams its element updates afterwards.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	Parse(*template.Template) (string, error)
}
