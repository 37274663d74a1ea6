// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/mitchellh/mapstructure"
)

// fieldSpec is a Go struct field as seen by Decode
type fieldSpec struct {
	name     string
	nilValue string
	hasNil   bool
}

// Decode unmarshals the result rows into dst.  dst may be a pointer to a slice of structs or of
// struct pointers, which receives every row, or a pointer to a struct or struct pointer, which
// receives the first row and is left untouched when there are none.
//
// Go fields are matched to WMI properties by name, or by a `wmi:"Name"` tag; a `wmi:"-"` tag skips
// the field.  Only the properties named by the struct are fetched, and a property the row does not
// carry leaves its field unset.  WMI delivers 64 bit integers as decimal text; such text is parsed
// into numeric fields.  A `wmi:",nil=0xFFFFFFFF"` tag supplies the value used when the property is
// null or missing:
//
//	type Win32_Volume struct {
//		ConfigManagerErrorCode uint32 `wmi:",nil=0xFFFFFFFF"`
//	}
//
//	var volumes []*Win32_Volume
//	err := request.Decode(&volumes)
func (r *Request) Decode(dst interface{}) error {
	log.Tracef(">>>>> Decode, query=%v", r.query)
	defer log.Trace("<<<<< Decode")

	dstValue := reflect.ValueOf(dst)
	if dstValue.Kind() != reflect.Ptr || dstValue.IsNil() {
		return cerrors.NewWmiErrorf(cerrors.InvalidArgument, "unsupported destination object %T, pointer expected", dst)
	}

	single := true
	structType := dstValue.Elem().Type()
	if structType.Kind() == reflect.Slice {
		single = false
		structType = structType.Elem()
	}
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return cerrors.NewWmiErrorf(cerrors.InvalidArgument, "unsupported destination object %T, struct expected", dst)
	}
	fields := fieldSpecs(structType)

	rows := make([]map[string]interface{}, 0, len(r.results))
	for _, item := range r.results {
		row, err := decodeRow(item, fields)
		if err != nil {
			log.Errorf("Unable to unmarshal WMI class into Go object, err=%v", err)
			return err
		}
		rows = append(rows, row)
		if single {
			break
		}
	}

	var input interface{} = rows
	if single {
		if len(rows) == 0 {
			log.Tracef("No WMI rows to decode into %T", dst)
			return nil
		}
		input = rows[0]
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncKind(stringToScalarHook),
		TagName:    "wmi",
		Result:     dst,
	})
	if err != nil {
		return cerrors.NewWmiError(cerrors.Internal, err)
	}
	if err = decoder.Decode(input); err != nil {
		return cerrors.NewWmiError(cerrors.TypeMismatch, "unable to decode WMI rows", err)
	}
	return nil
}

// decodeRow fetches the properties named by fields that the row carries
func decodeRow(item *ResultItem, fields []fieldSpec) (map[string]interface{}, error) {
	names, err := item.Names()
	if err != nil {
		return nil, err
	}
	// WMI property names are case insensitive
	carried := make(map[string]string, len(names))
	for _, name := range names {
		carried[strings.ToLower(name)] = name
	}

	row := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		name, ok := carried[strings.ToLower(field.name)]
		if !ok {
			log.Tracef(`Field "%v" defined in Go object but not supported by WMI on this host, nilValue=%v`, field.name, field.nilValue)
			if field.hasNil {
				row[field.name] = field.nilValue
			}
			continue
		}

		v, err := item.Value(name)
		if err != nil {
			return nil, err
		}
		if v == nil && field.hasNil {
			v = field.nilValue
		}
		row[field.name] = v
	}
	return row, nil
}

// fieldSpecs returns the WMI properties a struct asks for
func fieldSpecs(t reflect.Type) []fieldSpec {
	fields := make([]fieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		field := fieldSpec{name: f.Name}
		if tag, ok := f.Tag.Lookup("wmi"); ok {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				field.name = parts[0]
			}
			for _, option := range parts[1:] {
				if strings.HasPrefix(option, "nil=") {
					field.nilValue = strings.TrimPrefix(option, "nil=")
					field.hasNil = true
				}
			}
		}
		fields = append(fields, field)
	}
	return fields
}

// stringToScalarHook parses text into numeric and boolean fields.  WMI delivers uint64 and sint64
// properties as decimal strings, and nil= defaults are always text.
func stringToScalarHook(from reflect.Kind, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String {
		return data, nil
	}
	text := strings.TrimSpace(reflect.ValueOf(data).String())

	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(text, 0, 64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.ParseUint(text, 0, 64)
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(text, 64)
	case reflect.Bool:
		return strconv.ParseBool(text)
	}
	return data, nil
}

// Query executes the WQL query in namespace, decodes the rows into dst (see Request.Decode) and
// releases the request.  Partial results are decoded and the PartialResults error is returned.
func Query(query string, namespace string, dst interface{}, opts ...RequestOption) error {
	request := NewRequest(query, namespace, opts...)
	defer request.Close()

	status := request.Status()
	if status != nil && !request.IsPartial() {
		return status
	}
	if err := request.Decode(dst); err != nil {
		return err
	}
	return status
}
