// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

// Namespaces we use for WMI queries
const (
	rootCIMV2 = `ROOT\CIMV2`

	// DefaultNamespace is used when a request does not name one
	DefaultNamespace = rootCIMV2
)

// WQL is the only query dialect the WMI service accepts
const WQL = "WQL"

// HRESULT values
const (
	S_OK                     = 0
	S_FALSE                  = 1
	WBEM_S_NO_ERROR          = 0
	WBEM_S_FALSE             = 1
	WBEM_S_TIMEDOUT          = 0x00040004
	RPC_E_TOO_LATE           = 0x80010119
	WBEM_E_FAILED            = 0x80041001
	WBEM_E_NOT_FOUND         = 0x80041002
	WBEM_E_ACCESS_DENIED     = 0x80041003
	WBEM_E_CRITICAL_ERROR    = 0x8004100A
	WBEM_E_NOT_SUPPORTED     = 0x8004100C
	WBEM_E_INVALID_NAMESPACE = 0x8004100E
	WBEM_E_INVALID_CLASS     = 0x80041010
	WBEM_E_INVALID_QUERY     = 0x80041017
)

// VARIANT_BOOL values
const (
	VARIANT_TRUE  int16 = -1
	VARIANT_FALSE int16 = 0
)

// WBEM_GENERIC_FLAG_TYPE enumeration is used to indicate and update the type of the flag
type WBEM_GENERIC_FLAG_TYPE uint32

const (
	WBEM_FLAG_RETURN_WBEM_COMPLETE WBEM_GENERIC_FLAG_TYPE = 0x0
	WBEM_FLAG_RETURN_IMMEDIATELY   WBEM_GENERIC_FLAG_TYPE = 0x10
	WBEM_FLAG_FORWARD_ONLY         WBEM_GENERIC_FLAG_TYPE = 0x20
)

// WBEM_TIMEOUT_TYPE contains values used to specify the timeout for the IEnumWbemClassObject::Next method
type WBEM_TIMEOUT_TYPE uint32

const (
	WBEM_NO_WAIT  WBEM_TIMEOUT_TYPE = 0
	WBEM_INFINITE WBEM_TIMEOUT_TYPE = 0xFFFFFFFF
)

// WBEM_CONDITION_FLAG_TYPE contains flags used with the IWbemClassObject::GetNames method.
type WBEM_CONDITION_FLAG_TYPE uint32

const (
	WBEM_FLAG_ALWAYS         WBEM_CONDITION_FLAG_TYPE = 0
	WBEM_FLAG_NONSYSTEM_ONLY WBEM_CONDITION_FLAG_TYPE = 0x40
)

// SUCCEEDED function returns true if HRESULT succeeds, else false
func SUCCEEDED(hresult uintptr) bool {
	return int32(hresult) >= 0
}

// FAILED function returns true if HRESULT fails, else false
func FAILED(hresult uintptr) bool {
	return int32(hresult) < 0
}
