package board

import (
	"encoding/json"
	"fmt"
)

// MarshalElement serializes an element with its kind tag.
func MarshalElement(e Element) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalElement decodes an element, dispatching on the "type" tag.
// Unknown tags decode into a Rectangle carrying the core attributes, so a
// document written by a newer client still round-trips without data loss on
// the fields this version understands.
func UnmarshalElement(data []byte) (Element, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("element envelope: %w", err)
	}

	var e Element
	switch probe.Type {
	case KindDiamond:
		e = &Diamond{}
	case KindEllipse:
		e = &Ellipse{}
	case KindLine:
		e = &Line{}
	case KindArrow:
		e = &Arrow{}
	case KindPen:
		e = &Pen{}
	case KindLaser:
		e = &Laser{}
	case KindText:
		e = &Text{}
	case KindTile:
		e = &Tile{}
	case KindFrame:
		e = &Frame{}
	case KindWebEmbed:
		e = &WebEmbed{}
	default:
		e = &Rectangle{}
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("element %q: %w", probe.Type, err)
	}
	if probe.Type == "" {
		e.Base().Type = KindRectangle
	}
	return e, nil
}

// MarshalJSON implements json.Marshaler for Elements.
func (els Elements) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(els))
	for i, e := range els {
		b, err := MarshalElement(e)
		if err != nil {
			return nil, err
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler for Elements.
func (els *Elements) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Elements, 0, len(raw))
	for _, r := range raw {
		e, err := UnmarshalElement(r)
		if err != nil {
			return err
		}
		out = append(out, e)
	}
	*els = out
	return nil
}
