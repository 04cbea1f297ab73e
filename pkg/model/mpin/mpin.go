//nolint:revive // exported
package mpin

// PinType is a closed tag set. Unknown values round-trip untouched so that
// graphs written by newer schema versions stay loadable.
type PinType = string

const (
	PinTypeExecution  PinType = "execution"
	PinTypeString     PinType = "string"
	PinTypeNumber     PinType = "number"
	PinTypeBoolean    PinType = "boolean"
	PinTypeObject     PinType = "object"
	PinTypeArray      PinType = "array"
	PinTypeAny        PinType = "any"
	PinTypeProvider   PinType = "provider"
	PinTypeModel      PinType = "model"
	PinTypeTools      PinType = "tools"
	PinTypeMemory     PinType = "memory"
	PinTypeAssertions PinType = "assertions"
)

// Pin is a typed named port on a node. The ID is the stable identifier edges
// reference; Label and Doc are presentation-only.
type Pin struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Type  PinType `json:"type"`
	Doc   string  `json:"doc,omitempty"`
}

func IsExecution(t PinType) bool {
	return t == PinTypeExecution
}

// Compatible reports whether an output pin of type out may connect to an
// input pin of type in. Execution pins connect only to execution pins; data
// pins connect when the types are equal or either side is "any".
func Compatible(out, in PinType) bool {
	if IsExecution(out) || IsExecution(in) {
		return out == in
	}
	if out == PinTypeAny || in == PinTypeAny {
		return true
	}
	return out == in
}

// FindByID returns the index of the pin with the given id, or -1.
func FindByID(pins []Pin, id string) int {
	for i := range pins {
		if pins[i].ID == id {
			return i
		}
	}
	return -1
}
