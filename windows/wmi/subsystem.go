// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	ole "github.com/go-ole/go-ole"
)

// The interfaces below are the contract with the WMI service.  The COM backend implements them
// on Windows; tests substitute their own implementations.

// Subsystem is the entry point into the WMI service.
type Subsystem interface {
	// InitializeSecurity performs the process wide COM and security initialization.  It must be
	// safe to call more than once; every call after the first returns the first call's result.
	InitializeSecurity() error
	// NewLocator returns a new IWbemLocator handle.
	NewLocator() (Locator, error)
	// NewDateTime returns a new SWbemDateTime interpreter.
	NewDateTime() (DateTimeInterpreter, error)
}

// Releaser is implemented by every handle returned from the WMI service.  Release drops the
// caller's reference; a handle must not be used after it is released.
type Releaser interface {
	Release()
}

// Locator is an IWbemLocator handle.
type Locator interface {
	Releaser
	ConnectServer(namespace string) (Services, error)
}

// Services is an IWbemServices handle connected to one namespace.
type Services interface {
	Releaser
	ExecQuery(dialect, query string, flags WBEM_GENERIC_FLAG_TYPE) (Enumerator, error)
}

// Enumerator is a forward only IEnumWbemClassObject cursor.  Next returns at most count rows.
// Fewer rows than count with a nil error means the enumeration is complete.  The caller owns
// every returned row, including those returned alongside an error.
type Enumerator interface {
	Releaser
	Next(timeout WBEM_TIMEOUT_TYPE, count uint32) ([]ClassObject, error)
}

// ClassObject is an IWbemClassObject handle representing one result row.
type ClassObject interface {
	Releaser
	// Get returns the named property.  The caller must Clear the returned Variant.
	Get(name string) (*Variant, error)
	// Names returns the non-system property names of the row.
	Names() ([]string, error)
}

// DateTimeInterpreter is an SWbemDateTime object.
type DateTimeInterpreter interface {
	Releaser
	// SetValue loads a CIM DATETIME string (yyyymmddHHMMSS.mmmmmmsUUU).
	SetValue(text string) error
	// FileTime renders the loaded value as the decimal text of a 64 bit FILETIME, interpreted
	// as local time when local is set and as UTC otherwise.
	FileTime(local bool) (string, error)
}

// SafeArray is a one dimensional SAFEARRAY of BSTR or of a numeric VARTYPE.
type SafeArray interface {
	// Bounds returns the lower and upper bound of the first dimension.
	Bounds() (lower, upper int32, err error)
	// Lock gives read access to the array data until Unlock is called.
	Lock() error
	// Element returns the BSTR element at the given offset from the start of the locked data.
	Element(offset int32) (string, error)
	// Number returns the element of type vt at the given offset from the start of the locked
	// data, widened the way Variant.Val is.  VT_R4 and VT_R8 elements return their bit pattern.
	Number(offset int32, vt ole.VT) (int64, error)
	Unlock() error
}

// DefaultSubsystem is the WMI service of the current platform.  On platforms without WMI every
// operation fails with NotSupported.
var DefaultSubsystem Subsystem = newPlatformSubsystem()

// Initialize performs the process wide COM security initialization against DefaultSubsystem.
// Call it once during process startup; NewRequest performs it implicitly otherwise.
func Initialize() error {
	return DefaultSubsystem.InitializeSecurity()
}
