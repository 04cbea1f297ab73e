package mpin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		name string
		out  PinType
		in   PinType
		want bool
	}{
		{name: "execution to execution", out: PinTypeExecution, in: PinTypeExecution, want: true},
		{name: "execution to string", out: PinTypeExecution, in: PinTypeString, want: false},
		{name: "string to execution", out: PinTypeString, in: PinTypeExecution, want: false},
		{name: "any to execution", out: PinTypeAny, in: PinTypeExecution, want: false},
		{name: "equal data types", out: PinTypeString, in: PinTypeString, want: true},
		{name: "mismatched data types", out: PinTypeString, in: PinTypeNumber, want: false},
		{name: "any source", out: PinTypeAny, in: PinTypeNumber, want: true},
		{name: "any target", out: PinTypeObject, in: PinTypeAny, want: true},
		{name: "domain types equal", out: PinTypeProvider, in: PinTypeProvider, want: true},
		{name: "domain types mixed", out: PinTypeProvider, in: PinTypeModel, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.out, tt.in))
		})
	}
}

func TestFindByID(t *testing.T) {
	pins := []Pin{{ID: "exec-in"}, {ID: "prompt"}}
	assert.Equal(t, 1, FindByID(pins, "prompt"))
	assert.Equal(t, -1, FindByID(pins, "ghost"))
	assert.Equal(t, -1, FindByID(nil, "prompt"))
}
