package scanning

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/clbanning/mxj/v2"
)

// JSON conversion conventions, fixed by mxj's defaults:
//   - element tags become keys
//   - repeated sibling tags become []any
//   - attributes become keys prefixed with AttrPrefix
//   - text next to attributes or children lives under TextKey
//   - every leaf value is a string
const (
	AttrPrefix = "-"
	TextKey    = "#text"
)

// descendants returns every element below el named tag, in document order.
// etree's "//" path is breadth-first, so nested matches would be reordered.
func descendants(el *etree.Element, tag string) []*etree.Element {
	var found []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if c.Tag == tag {
				found = append(found, c)
			}
			walk(c)
		}
	}
	walk(el)
	return found
}

// documentJSON serializes doc and re-reads it as a generic nested map.
func documentJSON(doc *etree.Document) (map[string]any, error) {
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize xml: %w", err)
	}
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("convert xml to map: %w", err)
	}
	return map[string]any(m), nil
}

// elementJSON converts a detached copy of el and its subtree.
func elementJSON(el *etree.Element) (map[string]any, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return documentJSON(doc)
}
