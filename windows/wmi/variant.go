// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"fmt"
	"math"

	ole "github.com/go-ole/go-ole"
)

// Variant is a WMI property value tagged with its runtime VARTYPE.  Which payload field is
// meaningful depends on VT:
//
//	VT_BOOL                       Val (VARIANT_TRUE or VARIANT_FALSE)
//	VT_UI1 VT_UI2 VT_UI4 VT_UINT  Val, zero extended from the nominal width
//	VT_I1 VT_I2 VT_I4 VT_INT      Val, sign extended from the nominal width
//	VT_I8 VT_UI8                  Val, all 64 bits (VT_UI8 stores the bit pattern)
//	VT_R4 VT_R8                   Val, the IEEE 754 bit pattern
//	VT_BSTR                       Str
//	VT_ARRAY|any of the above     Array
//
// A Variant returned from ClassObject.Get owns whatever buffer backs it and must be released
// with Clear.
type Variant struct {
	VT    ole.VT
	Val   int64
	Str   string
	Array SafeArray

	clear func() error
}

// NewVariant returns a Variant whose Clear calls release.  Backends use it to attach the release of
// the underlying VARIANT buffer.
func NewVariant(vt ole.VT, release func() error) *Variant {
	return &Variant{VT: vt, clear: release}
}

// Clear releases the buffer backing the Variant.  Clearing an already cleared or nil Variant is
// a no-op.
func (v *Variant) Clear() error {
	if v == nil || v.clear == nil {
		return nil
	}
	release := v.clear
	v.clear = nil
	return release()
}

// IsNull reports whether the property holds no value
func (v *Variant) IsNull() bool {
	return v == nil || v.VT == ole.VT_NULL || v.VT == ole.VT_EMPTY
}

// vtName returns a printable form of the VARTYPE, including the array flag
func vtName(vt ole.VT) string {
	if vt&ole.VT_ARRAY != 0 {
		return "VT_ARRAY|" + (vt &^ ole.VT_ARRAY).String()
	}
	return vt.String()
}

// String returns the tag and the scalar payload, intended for diagnostics
func (v *Variant) String() string {
	if v == nil {
		return "<nil>"
	}
	if v.VT&ole.VT_ARRAY != 0 {
		return vtName(v.VT)
	}
	switch v.VT {
	case ole.VT_BSTR:
		return fmt.Sprintf("%s(%q)", vtName(v.VT), v.Str)
	case ole.VT_NULL, ole.VT_EMPTY:
		return vtName(v.VT)
	case ole.VT_R4:
		return fmt.Sprintf("%s(%v)", vtName(v.VT), math.Float32frombits(uint32(v.Val)))
	case ole.VT_R8:
		return fmt.Sprintf("%s(%v)", vtName(v.VT), math.Float64frombits(uint64(v.Val)))
	case ole.VT_UI8:
		return fmt.Sprintf("%s(%d)", vtName(v.VT), uint64(v.Val))
	default:
		return fmt.Sprintf("%s(%d)", vtName(v.VT), v.Val)
	}
}
