package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIRObject(t *testing.T) {
	obj := NewIRObject(O{"type", IRInt(3)}, O{"value", IRString("x")})

	assert.Equal(t, IRObject{"type": IRInt(3), "value": IRString("x")}, obj)
}

func TestNewIRObjectLastPairWins(t *testing.T) {
	obj := NewIRObject(O{"k", IRInt(1)}, O{"k", IRInt(2)})

	assert.Equal(t, IRInt(2), obj["k"])
}

func TestSortedKeysASCII(t *testing.T) {
	obj := IRObject{"value": IRInt(1), "datatype": IRInt(2), "scope": IRInt(3), "type": IRInt(4)}

	assert.Equal(t, []string{"datatype", "scope", "type", "value"}, obj.SortedKeys())
}
