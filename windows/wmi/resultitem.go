// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"math"
	"reflect"

	ole "github.com/go-ole/go-ole"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
)

// ResultItem owns one row of a WMI query result.  The typed getters fetch a single property by
// name, verify its VARTYPE matches the getter exactly and copy the value out; nothing is cached
// and no numeric widening or narrowing is ever performed.  On failure the getters return the zero
// value and a *cerrors.WmiError whose code is RetrievalFailed, TypeMismatch or (GetDateTime only)
// SubsystemFailure.
//
// A ResultItem must not be copied; use Move to hand the row to a new owner.
type ResultItem struct {
	obj       ClassObject
	subsystem Subsystem
}

// NewResultItem takes ownership of obj.  subsystem supplies the SWbemDateTime interpreter used by
// GetDateTime.
func NewResultItem(obj ClassObject, subsystem Subsystem) *ResultItem {
	return &ResultItem{obj: obj, subsystem: subsystem}
}

// Valid reports whether the item still owns a row
func (r *ResultItem) Valid() bool {
	return r != nil && r.obj != nil
}

// Release drops the row.  Releasing an empty item is a no-op.
func (r *ResultItem) Release() {
	if r == nil || r.obj == nil {
		return
	}
	r.obj.Release()
	r.obj = nil
}

// Move returns a new ResultItem owning the row and leaves r empty.  Moving a nil item returns nil.
func (r *ResultItem) Move() *ResultItem {
	if r == nil {
		return nil
	}
	moved := &ResultItem{obj: r.obj, subsystem: r.subsystem}
	r.obj = nil
	return moved
}

func clearVariant(name string, value *Variant) {
	if err := value.Clear(); err != nil {
		log.Warnf("Unable to clear variant, property=%v, err=%v", name, err)
	}
}

// get retrieves the raw property value.  The caller must clear the returned variant.
func (r *ResultItem) get(name string) (*Variant, error) {
	if name == "" {
		return nil, cerrors.NewWmiError(cerrors.InvalidArgument, "empty property name")
	}
	if !r.Valid() {
		return nil, cerrors.NewWmiErrorf(cerrors.RetrievalFailed, "no WMI query result row to retrieve %q from", name)
	}
	value, err := r.obj.Get(name)
	if err != nil {
		clearVariant(name, value)
		return nil, cerrors.NewWmiError(cerrors.RetrievalFailed, "error retrieving "+name+" from WMI query result", err)
	}
	if value == nil {
		return nil, cerrors.NewWmiErrorf(cerrors.RetrievalFailed, "no value returned for %s", name)
	}
	return value, nil
}

// getTagged retrieves the property and fails unless its VARTYPE is exactly vt
func (r *ResultItem) getTagged(name string, vt ole.VT) (*Variant, error) {
	value, err := r.get(name)
	if err != nil {
		return nil, err
	}
	if value.VT != vt {
		actual := value.VT
		clearVariant(name, value)
		return nil, cerrors.NewWmiErrorf(cerrors.TypeMismatch, "invalid data type returned for %s, expected %s, got %s", name, vtName(vt), vtName(actual))
	}
	return value, nil
}

// GetBool returns a VT_BOOL property
func (r *ResultItem) GetBool(name string) (bool, error) {
	value, err := r.getTagged(name, ole.VT_BOOL)
	if err != nil {
		return false, err
	}
	defer clearVariant(name, value)
	return int16(value.Val) == VARIANT_TRUE, nil
}

// GetUint8 returns a VT_UI1 property
func (r *ResultItem) GetUint8(name string) (uint8, error) {
	value, err := r.getTagged(name, ole.VT_UI1)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return uint8(value.Val), nil
}

// GetUint16 returns a VT_UI2 property
func (r *ResultItem) GetUint16(name string) (uint16, error) {
	value, err := r.getTagged(name, ole.VT_UI2)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return uint16(value.Val), nil
}

// GetUint32 returns a VT_UINT property
func (r *ResultItem) GetUint32(name string) (uint32, error) {
	value, err := r.getTagged(name, ole.VT_UINT)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return uint32(value.Val), nil
}

// GetInt32 returns a VT_I4 property
func (r *ResultItem) GetInt32(name string) (int32, error) {
	value, err := r.getTagged(name, ole.VT_I4)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return int32(value.Val), nil
}

// GetULong returns a VT_UI4 property
func (r *ResultItem) GetULong(name string) (uint32, error) {
	value, err := r.getTagged(name, ole.VT_UI4)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return uint32(value.Val), nil
}

// GetInt64 returns a VT_I8 property
func (r *ResultItem) GetInt64(name string) (int64, error) {
	value, err := r.getTagged(name, ole.VT_I8)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return value.Val, nil
}

// GetUint64 returns a VT_UI8 property
func (r *ResultItem) GetUint64(name string) (uint64, error) {
	value, err := r.getTagged(name, ole.VT_UI8)
	if err != nil {
		return 0, err
	}
	defer clearVariant(name, value)
	return uint64(value.Val), nil
}

// GetString returns a VT_BSTR property
func (r *ResultItem) GetString(name string) (string, error) {
	value, err := r.getTagged(name, ole.VT_BSTR)
	if err != nil {
		return "", err
	}
	defer clearVariant(name, value)
	return value.Str, nil
}

// GetStringSlice returns a VT_ARRAY|VT_BSTR property in array storage order.  An array whose
// upper bound is below its lower bound is returned as an empty slice.
func (r *ResultItem) GetStringSlice(name string) ([]string, error) {
	value, err := r.getTagged(name, ole.VT_ARRAY|ole.VT_BSTR)
	if err != nil {
		return nil, err
	}
	defer clearVariant(name, value)
	return readStringArray(name, value.Array)
}

// arrayLength returns the element count of a one dimensional array
func arrayLength(name string, array SafeArray) (int64, error) {
	if array == nil {
		return 0, cerrors.NewWmiErrorf(cerrors.RetrievalFailed, "no array data returned for %s", name)
	}
	lower, upper, err := array.Bounds()
	if err != nil {
		return 0, cerrors.NewWmiError(cerrors.RetrievalFailed, "unable to read array bounds of "+name, err)
	}
	if count := int64(upper) - int64(lower) + 1; count > 0 {
		return count, nil
	}
	return 0, nil
}

// lockArray gives read access to the array data; the caller must call the returned unlock
func lockArray(name string, array SafeArray) (unlock func(), err error) {
	if err = array.Lock(); err != nil {
		return nil, cerrors.NewWmiError(cerrors.RetrievalFailed, "unable to access array data of "+name, err)
	}
	return func() {
		if unlockErr := array.Unlock(); unlockErr != nil {
			log.Warnf("Unable to unaccess array data, property=%v, err=%v", name, unlockErr)
		}
	}, nil
}

func readStringArray(name string, array SafeArray) ([]string, error) {
	count, err := arrayLength(name, array)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, count)
	if count == 0 {
		return ret, nil
	}

	unlock, err := lockArray(name, array)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for offset := int64(0); offset < count; offset++ {
		element, err := array.Element(int32(offset))
		if err != nil {
			return nil, cerrors.NewWmiErrorf(cerrors.RetrievalFailed, "unable to read element %d of %s: %v", offset, name, err)
		}
		ret = append(ret, element)
	}
	return ret, nil
}

// readNumberArray returns an array of vt elements as a slice of the Go type numberValue maps vt to
func readNumberArray(name string, vt ole.VT, array SafeArray) (interface{}, error) {
	sample := numberValue(vt, 0)
	if sample == nil {
		return nil, cerrors.NewWmiErrorf(cerrors.TypeMismatch, "unsupported data type returned for %s, got %s", name, vtName(vt|ole.VT_ARRAY))
	}
	count, err := arrayLength(name, array)
	if err != nil {
		return nil, err
	}
	ret := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(sample)), 0, int(count))
	if count == 0 {
		return ret.Interface(), nil
	}

	unlock, err := lockArray(name, array)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for offset := int64(0); offset < count; offset++ {
		element, err := array.Number(int32(offset), vt)
		if err != nil {
			return nil, cerrors.NewWmiErrorf(cerrors.RetrievalFailed, "unable to read element %d of %s: %v", offset, name, err)
		}
		ret = reflect.Append(ret, reflect.ValueOf(numberValue(vt, element)))
	}
	return ret.Interface(), nil
}

// numberValue converts a scalar payload to the Go type matching vt, or returns nil when vt is not
// a boolean or numeric VARTYPE
func numberValue(vt ole.VT, val int64) interface{} {
	switch vt {
	case ole.VT_BOOL:
		return int16(val) == VARIANT_TRUE
	case ole.VT_I1:
		return int8(val)
	case ole.VT_I2:
		return int16(val)
	case ole.VT_I4, ole.VT_INT:
		return int32(val)
	case ole.VT_I8:
		return val
	case ole.VT_UI1:
		return uint8(val)
	case ole.VT_UI2:
		return uint16(val)
	case ole.VT_UI4, ole.VT_UINT:
		return uint32(val)
	case ole.VT_UI8:
		return uint64(val)
	case ole.VT_R4:
		return math.Float32frombits(uint32(val))
	case ole.VT_R8:
		return math.Float64frombits(uint64(val))
	}
	return nil
}

// GetDateTime converts a CIM DATETIME property (delivered as VT_BSTR) into a FILETIME through the
// SWbemDateTime interpreter, interpreting the value as local time when local is set and as UTC
// otherwise.
func (r *ResultItem) GetDateTime(name string, local bool) (FileTime, error) {
	value, err := r.getTagged(name, ole.VT_BSTR)
	if err != nil {
		return FileTime{}, err
	}
	text := value.Str
	clearVariant(name, value)

	if r.subsystem == nil {
		return FileTime{}, cerrors.NewWmiError(cerrors.SubsystemFailure, "failed to create SWbemDateTime object: no subsystem")
	}
	dt, err := r.subsystem.NewDateTime()
	if err != nil || dt == nil {
		return FileTime{}, cerrors.NewWmiError(cerrors.SubsystemFailure, "failed to create SWbemDateTime object", err)
	}
	defer dt.Release()

	if err = dt.SetValue(text); err != nil {
		return FileTime{}, cerrors.NewWmiError(cerrors.SubsystemFailure, "failed to set SWbemDateTime value", err)
	}

	fileTimeText, err := dt.FileTime(local)
	if err != nil {
		return FileTime{}, cerrors.NewWmiError(cerrors.SubsystemFailure, "GetFileTime failed", err)
	}

	ft, err := parseFileTime(fileTimeText)
	if err != nil {
		return FileTime{}, cerrors.NewWmiError(cerrors.SubsystemFailure, "GetFileTime returned an invalid value", err)
	}
	return ft, nil
}

// Names returns the non-system property names of the row
func (r *ResultItem) Names() ([]string, error) {
	if !r.Valid() {
		return nil, cerrors.NewWmiError(cerrors.RetrievalFailed, "no WMI query result row")
	}
	names, err := r.obj.Names()
	if err != nil {
		return nil, cerrors.NewWmiError(cerrors.RetrievalFailed, "unable to query WMI class property names", err)
	}
	return names, nil
}

// Value returns the named property as the Go type matching its VARTYPE: bool, int8, int16,
// int32, int64, uint8, uint16, uint32, uint64, float32, float64 or string, or a slice of one of
// those for an array.  A null property is returned as nil.  Any other VARTYPE is a TypeMismatch.
func (r *ResultItem) Value(name string) (interface{}, error) {
	value, err := r.get(name)
	if err != nil {
		return nil, err
	}
	defer clearVariant(name, value)

	switch {
	case value.VT == ole.VT_NULL || value.VT == ole.VT_EMPTY:
		return nil, nil
	case value.VT == ole.VT_BSTR:
		return value.Str, nil
	case value.VT == ole.VT_ARRAY|ole.VT_BSTR:
		elements, err := readStringArray(name, value.Array)
		if err != nil {
			return nil, err
		}
		return elements, nil
	case value.VT&ole.VT_ARRAY != 0:
		return readNumberArray(name, value.VT&^ole.VT_ARRAY, value.Array)
	}

	if v := numberValue(value.VT, value.Val); v != nil {
		return v, nil
	}
	return nil, cerrors.NewWmiErrorf(cerrors.TypeMismatch, "unsupported data type returned for %s, got %s", name, vtName(value.VT))
}

// Describe returns the VARTYPE and scalar value of a property, e.g. `VT_BSTR("explorer.exe")`
func (r *ResultItem) Describe(name string) (string, error) {
	value, err := r.get(name)
	if err != nil {
		return "", err
	}
	defer clearVariant(name, value)

	description := value.String()
	log.Tracef("Name=%v, Type=%v", name, description)
	return description, nil
}

// Properties returns the named properties of the row keyed by name, each decoded by Value.  With
// no names, every non-system property is returned.
func (r *ResultItem) Properties(names ...string) (map[string]interface{}, error) {
	if len(names) == 0 {
		var err error
		if names, err = r.Names(); err != nil {
			return nil, err
		}
	}

	properties := make(map[string]interface{}, len(names))
	for _, name := range names {
		v, err := r.Value(name)
		if err != nil {
			return nil, err
		}
		properties[name] = v
	}
	return properties, nil
}
