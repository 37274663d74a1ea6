// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

// Package cerrors holds the coded error type reported by WMI queries and result accessors.
package cerrors

import (
	"errors"
	"fmt"
	"strconv"

	ole "github.com/go-ole/go-ole"
	log "github.com/hpe-storage/wmi-query-libs/logger"
)

type WmiErrorCode uint32

const (
	OK                 WmiErrorCode = 0
	Unknown            WmiErrorCode = 1
	InvalidArgument    WmiErrorCode = 2
	NotSupported       WmiErrorCode = 3
	Internal           WmiErrorCode = 4
	SecurityInitFailed WmiErrorCode = 5
	LocatorFailed      WmiErrorCode = 6
	ConnectFailed      WmiErrorCode = 7
	QueryFailed        WmiErrorCode = 8
	EnumerationFailed  WmiErrorCode = 9
	PartialResults     WmiErrorCode = 10
	RetrievalFailed    WmiErrorCode = 11
	TypeMismatch       WmiErrorCode = 12
	SubsystemFailure   WmiErrorCode = 13
	Unauthenticated    WmiErrorCode = 14
	_maxCode           WmiErrorCode = 15
)

const (
	errorMessageInvalidInputParameters = "invalid input parameters"
)

// WmiError is the outcome of a failed WMI stage or accessor.  HResult is the COM HRESULT that
// caused the failure, when one is known.
type WmiError struct {
	Code    WmiErrorCode `json:"code"`
	Text    string       `json:"text,omitempty"`
	HResult uint32       `json:"hresult,omitempty"`
}

// NewWmiError takes an array of objects and returns a pointer to a WmiError object.  The
// following input parameters, in any order, are supported:
//     WmiError     - WmiError object
//     *ole.OleError - COM error; its HRESULT is recorded
//     error        - All other error objects
//     WmiErrorCode - WMI error code
//     string       - error text
func NewWmiError(args ...interface{}) *WmiError {

	var wmiError *WmiError
	var otherError error
	var hresult uint32
	errorCode := _maxCode
	errorMessage := ""

	for _, arg := range args {
		switch v := arg.(type) {
		case WmiErrorCode:
			errorCode = v
		case string:
			errorMessage = v
		case WmiError:
			wmiError = &WmiError{Code: v.Code, Text: v.Text, HResult: v.HResult}
		case *WmiError:
			if v != nil {
				wmiError = &WmiError{Code: v.Code, Text: v.Text, HResult: v.HResult}
			}
		case *ole.OleError:
			if v != nil {
				hresult = uint32(v.Code())
				otherError = v
			}
		case error:
			otherError = v
		}
	}

	err := &WmiError{Code: _maxCode}

	// Populate the text; an explicit message wins over the text of a wrapped error
	if wmiError != nil {
		err = wmiError
		if errorMessage != "" {
			err.Text = errorMessage + ": " + wmiError.Text
		}
	} else if errorMessage != "" {
		err.Text = errorMessage
		if otherError != nil {
			err.Text = errorMessage + ": " + otherError.Error()
		}
	} else if otherError != nil {
		err.Text = otherError.Error()
	}

	if hresult != 0 {
		err.HResult = hresult
	}

	if errorCode < _maxCode {
		err.Code = errorCode
	}

	// If neither an error message or an error code were provided, fail with generic error
	if (err.Code == _maxCode) && (err.Text == "") {
		return &WmiError{Code: Internal, Text: errorMessageInvalidInputParameters}
	}

	if err.Code == _maxCode {
		err.Code = Unknown
	}

	if err.Text == "" {
		err.Text = err.Code.String()
	}

	return err
}

func NewWmiErrorf(c WmiErrorCode, format string, a ...interface{}) *WmiError {
	return &WmiError{Code: c, Text: fmt.Sprintf(format, a...)}
}

func (e *WmiError) Error() string {
	if e.HResult != 0 {
		return fmt.Sprintf("status: %v msg: %s hresult: 0x%08X", e.Code, e.Text, e.HResult)
	}
	return fmt.Sprintf("status: %v msg: %s", e.Code, e.Text)
}

func (e *WmiError) LogAndError() WmiError {
	log.Errorln(e.Error())
	return *e
}

// ErrorCode returns the status code contained in WmiError
func (e *WmiError) ErrorCode() WmiErrorCode {
	if e == nil {
		return OK
	}
	return e.Code
}

// ErrorText returns the text contained in WmiError
func (e *WmiError) ErrorText() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// CodeOf returns the WmiErrorCode of err.  A nil error is OK and any error that is not (and does
// not wrap) a WmiError is Unknown.
func CodeOf(err error) WmiErrorCode {
	if err == nil {
		return OK
	}
	var wmiErr *WmiError
	if errors.As(err, &wmiErr) {
		return wmiErr.ErrorCode()
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, c WmiErrorCode) bool {
	return CodeOf(err) == c
}

func (c WmiErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case NotSupported:
		return "NotSupported"
	case Internal:
		return "Internal"
	case SecurityInitFailed:
		return "SecurityInitFailed"
	case LocatorFailed:
		return "LocatorFailed"
	case ConnectFailed:
		return "ConnectFailed"
	case QueryFailed:
		return "QueryFailed"
	case EnumerationFailed:
		return "EnumerationFailed"
	case PartialResults:
		return "PartialResults"
	case RetrievalFailed:
		return "RetrievalFailed"
	case TypeMismatch:
		return "TypeMismatch"
	case SubsystemFailure:
		return "SubsystemFailure"
	case Unauthenticated:
		return "Unauthenticated"
	default:
		return "Code(" + strconv.FormatInt(int64(c), 10) + ")"
	}
}
