// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package cerrors

import (
	"errors"
	"fmt"
	"testing"

	ole "github.com/go-ole/go-ole"
	"github.com/stretchr/testify/assert"
)

func TestNewWmiError(t *testing.T) {

	var err *WmiError
	errorMessage := "this is a simple test error message"
	errorTemplate := `Invalid WmiError, received %v:"%v", expected %v:"%v"`

	err = NewWmiError(TypeMismatch, errorMessage)
	if (err.Code != TypeMismatch) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, TypeMismatch, errorMessage)
	}

	err = NewWmiError(TypeMismatch)
	if (err.Code != TypeMismatch) || (err.Text != err.Code.String()) {
		t.Errorf(errorTemplate, err.Code, err.Text, TypeMismatch, err.Code.String())
	}

	err = NewWmiError(errorMessage)
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewWmiError(errors.New(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewWmiError(ConnectFailed, errors.New(errorMessage))
	if (err.Code != ConnectFailed) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, ConnectFailed, errorMessage)
	}

	err = NewWmiError(NewWmiError(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewWmiError(NewWmiError(errorMessage), QueryFailed)
	if (err.Code != QueryFailed) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, QueryFailed, errorMessage)
	}

	err = NewWmiError()
	if (err.Code != Internal) || (err.Text != errorMessageInvalidInputParameters) {
		t.Errorf(errorTemplate, err.Code, err.Text, Internal, errorMessageInvalidInputParameters)
	}
}

func TestNewWmiErrorDoesNotAliasSource(t *testing.T) {
	src := NewWmiError(RetrievalFailed, "source")
	derived := NewWmiError(src, PartialResults)
	assert.Equal(t, RetrievalFailed, src.Code)
	assert.Equal(t, PartialResults, derived.Code)
	assert.Equal(t, "source", derived.Text)
}

func TestNewWmiErrorMessageWrapsWmiError(t *testing.T) {
	src := NewWmiErrorf(NotSupported, "WMI is not available on %v", "linux")
	err := NewWmiError(SubsystemFailure, "failed to create SWbemDateTime object", src)
	assert.Equal(t, SubsystemFailure, err.Code)
	assert.Equal(t, "failed to create SWbemDateTime object: WMI is not available on linux", err.Text)
	assert.Equal(t, "WMI is not available on linux", src.Text)
}

func TestNewWmiErrorOleError(t *testing.T) {
	oleErr := ole.NewError(0x8004100E)

	err := NewWmiError(ConnectFailed, "ConnectServer failed", oleErr)
	assert.Equal(t, ConnectFailed, err.Code)
	assert.Equal(t, uint32(0x8004100E), err.HResult)
	assert.Contains(t, err.Text, "ConnectServer failed")
	assert.Contains(t, err.Error(), "hresult: 0x8004100E")
}

func TestCodeOf(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		code WmiErrorCode
	}{
		{name: "nil", err: nil, code: OK},
		{name: "plain error", err: errors.New("boom"), code: Unknown},
		{name: "wmi error", err: NewWmiError(TypeMismatch), code: TypeMismatch},
		{name: "wrapped wmi error", err: fmt.Errorf("outer: %w", NewWmiError(SubsystemFailure)), code: SubsystemFailure},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, CodeOf(tc.err))
			assert.True(t, Is(tc.err, tc.code))
		})
	}
}

func TestNilWmiError(t *testing.T) {
	var err *WmiError
	assert.Equal(t, OK, err.ErrorCode())
	assert.Equal(t, "", err.ErrorText())
}

func TestWmiErrorCodeString(t *testing.T) {
	assert.Equal(t, "PartialResults", PartialResults.String())
	assert.Equal(t, "Code(99)", WmiErrorCode(99).String())
}
