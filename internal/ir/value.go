package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the value shapes that may take part in
// a structural signature. Floats and nulls are deliberately absent: a
// signature must be a pure function of the construct, and both break that.
type IRValue interface {
	irValue()
}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value. Construct ids are encoded as IRInt.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
// Sets (scopes, role lists) must be sorted by the caller before wrapping.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values.
// Use SortedKeys for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// O pairs a key with a value for NewIRObject.
type O struct {
	Key   string
	Value IRValue
}

// NewIRObject builds an IRObject from key/value pairs.
//
//	ir.NewIRObject(ir.O{"type", ir.IRInt(4)}, ir.O{"value", ir.IRString("x")})
func NewIRObject(pairs ...O) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// IntSet converts ids into a sorted IRArray of IRInt, dropping duplicates.
// Used to encode scopes and other unordered sets of constructs.
func IntSet(ids []uint64) IRArray {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	arr := make(IRArray, len(sorted))
	for i, id := range sorted {
		arr[i] = IRInt(int64(id))
	}
	return arr
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison is UTF-8 byte order, which differs for
// characters outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
