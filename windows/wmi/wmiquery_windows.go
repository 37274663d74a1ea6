// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

//go:build windows
// +build windows

package wmi

import (
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"golang.org/x/sys/windows"
)

// Package variables
var (
	// Lazy load the ole32.dll and oleaut32.dll APIs
	ole32                    = windows.NewLazySystemDLL("ole32.dll")
	procCoInitializeSecurity = ole32.NewProc("CoInitializeSecurity")
	oleaut32                 = windows.NewLazySystemDLL("oleaut32.dll")
	procSafeArrayGetLBound   = oleaut32.NewProc("SafeArrayGetLBound")
	procSafeArrayGetUBound   = oleaut32.NewProc("SafeArrayGetUBound")
	procSafeArrayAccessData  = oleaut32.NewProc("SafeArrayAccessData")
	procSafeArrayUnaccess    = oleaut32.NewProc("SafeArrayUnaccessData")

	// WMI Class and Interface GUIDs
	CLSID_WbemLocator = ole.NewGUID("4590f811-1d3a-11d0-891f-00aa004b2e24")
	IID_IWbemLocator  = ole.NewGUID("dc12a687-737f-11cf-884d-00aa004b2e24")
)

// EOLE_AUTHENTICATION_CAPABILITIES specifies various capabilities in CoInitializeSecurity
type EOLE_AUTHENTICATION_CAPABILITIES uint32

const (
	EOAC_NONE EOLE_AUTHENTICATION_CAPABILITIES = 0
)

// Authentication and impersonation levels passed to CoInitializeSecurity
const (
	RPC_C_AUTHN_LEVEL_DEFAULT   = 0
	RPC_C_IMP_LEVEL_IMPERSONATE = 3
)

// IWbemLocatorVtbl is the IWbemLocator COM virtual table
type IWbemLocatorVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	ConnectServer  uintptr
}

// IWbemServicesVtbl is the IWbemServices COM virtual table
type IWbemServicesVtbl struct {
	QueryInterface             uintptr
	AddRef                     uintptr
	Release                    uintptr
	OpenNamespace              uintptr
	CancelAsyncCall            uintptr
	QueryObjectSink            uintptr
	GetObject                  uintptr
	GetObjectAsync             uintptr
	PutClass                   uintptr
	PutClassAsync              uintptr
	DeleteClass                uintptr
	DeleteClassAsync           uintptr
	CreateClassEnum            uintptr
	CreateClassEnumAsync       uintptr
	PutInstance                uintptr
	PutInstanceAsync           uintptr
	DeleteInstance             uintptr
	DeleteInstanceAsync        uintptr
	CreateInstanceEnum         uintptr
	CreateInstanceEnumAsync    uintptr
	ExecQuery                  uintptr
	ExecQueryAsync             uintptr
	ExecNotificationQuery      uintptr
	ExecNotificationQueryAsync uintptr
	ExecMethod                 uintptr
	ExecMethodAsync            uintptr
}

// IEnumWbemClassObjectVtbl is the IEnumWbemClassObject COM virtual table
type IEnumWbemClassObjectVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	Reset          uintptr
	Next           uintptr
	NextAsync      uintptr
	Clone          uintptr
	Skip           uintptr
}

// IWbemClassObjectVtbl is the IWbemClassObject COM virtual table (the methods we call come first)
type IWbemClassObjectVtbl struct {
	QueryInterface  uintptr
	AddRef          uintptr
	Release         uintptr
	GetQualifierSet uintptr
	Get             uintptr
	Put             uintptr
	Delete          uintptr
	GetNames        uintptr
}

// comSubsystem reaches WMI through COM.  COM and its security settings are process wide, so the
// initialization runs once and its outcome is shared by every caller.
type comSubsystem struct {
	once           sync.Once
	comInitialized bool
	err            error
}

func newPlatformSubsystem() Subsystem {
	return &comSubsystem{}
}

func (s *comSubsystem) InitializeSecurity() error {
	s.once.Do(s.initialize)
	return s.err
}

func (s *comSubsystem) initialize() {
	log.Trace(">>>>> InitializeSecurity")
	defer log.Trace("<<<<< InitializeSecurity")

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Handle case where COM library is already initialized on this thread
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleCode, ok := err.(*ole.OleError)
		if !ok || (oleCode.Code() != S_OK && oleCode.Code() != S_FALSE) {
			log.Errorf("Unable to initialize COM, err=%v", err)
			s.err = cerrors.NewWmiError(cerrors.SecurityInitFailed, "unable to initialize COM", err)
			return
		}
	}
	s.comInitialized = true

	// Set general COM security levels
	hres, _, _ := procCoInitializeSecurity.Call(
		uintptr(0),
		uintptr(0xFFFFFFFF),                  // COM authentication
		uintptr(0),                           // Authentication services
		uintptr(0),                           // Reserved
		uintptr(RPC_C_AUTHN_LEVEL_DEFAULT),   // Default authentication
		uintptr(RPC_C_IMP_LEVEL_IMPERSONATE), // Default Impersonation
		uintptr(0),                           // Authentication info
		uintptr(EOAC_NONE),                   // Additional capabilities
		uintptr(0))                           // Reserved
	if hres == RPC_E_TOO_LATE {
		// Security was already configured by the hosting process
		log.Trace("COM security already initialized")
		return
	}
	if FAILED(hres) {
		log.Errorf("Unable to initialize COM security, err=%v", ole.NewError(hres))
		s.err = cerrors.NewWmiError(cerrors.SecurityInitFailed, "unable to initialize COM security", ole.NewError(hres))
	}
}

// cleanup undoes the COM initialization; only meant for process exit
func (s *comSubsystem) cleanup() {
	if s.comInitialized {
		ole.CoUninitialize()
		s.comInitialized = false
	}
}

func (s *comSubsystem) NewLocator() (Locator, error) {
	unknown, err := ole.CreateInstance(CLSID_WbemLocator, IID_IWbemLocator)
	if err != nil {
		return nil, err
	}
	return &comLocator{unknown: unknown}, nil
}

func (s *comSubsystem) NewDateTime() (DateTimeInterpreter, error) {
	unknown, err := oleutil.CreateObject("WbemScripting.SWbemDateTime")
	if err != nil {
		return nil, err
	}
	dispatch, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		return nil, err
	}
	return &comDateTime{dispatch: dispatch}, nil
}

// Cleanup is an optional routine that should only be called when the process using the WMI package
// is exiting.
func Cleanup() {
	if s, ok := DefaultSubsystem.(*comSubsystem); ok {
		s.cleanup()
	}
}

// releaseUnknown drops a COM reference
func releaseUnknown(unknown **ole.IUnknown) {
	if *unknown != nil {
		(*unknown).Release()
		*unknown = nil
	}
}

type comLocator struct {
	unknown *ole.IUnknown
}

func (l *comLocator) Release() {
	releaseUnknown(&l.unknown)
}

// ConnectServer calls IWbemLocator::ConnectServer
func (l *comLocator) ConnectServer(namespace string) (Services, error) {
	namespaceBSTR := ole.SysAllocString(namespace)
	defer ole.SysFreeString(namespaceBSTR)

	var pSvc *ole.IUnknown
	vTable := (*IWbemLocatorVtbl)(unsafe.Pointer(l.unknown.RawVTable))
	hres, _, _ := syscall.Syscall9(vTable.ConnectServer, 9,
		uintptr(unsafe.Pointer(l.unknown)),
		uintptr(unsafe.Pointer(namespaceBSTR)),
		uintptr(0),
		uintptr(0),
		uintptr(0),
		uintptr(0),
		uintptr(0),
		uintptr(0),
		uintptr(unsafe.Pointer(&pSvc)))
	if FAILED(hres) {
		return nil, ole.NewError(hres)
	}
	return &comServices{unknown: pSvc}, nil
}

type comServices struct {
	unknown *ole.IUnknown
}

func (s *comServices) Release() {
	releaseUnknown(&s.unknown)
}

// ExecQuery calls IWbemServices::ExecQuery
func (s *comServices) ExecQuery(dialect, query string, flags WBEM_GENERIC_FLAG_TYPE) (Enumerator, error) {
	dialectBSTR := ole.SysAllocString(dialect)
	defer ole.SysFreeString(dialectBSTR)
	queryBSTR := ole.SysAllocString(query)
	defer ole.SysFreeString(queryBSTR)

	var pEnumerator *ole.IUnknown
	vTable := (*IWbemServicesVtbl)(unsafe.Pointer(s.unknown.RawVTable))
	hres, _, _ := syscall.Syscall6(vTable.ExecQuery, 6,
		uintptr(unsafe.Pointer(s.unknown)),
		uintptr(unsafe.Pointer(dialectBSTR)),
		uintptr(unsafe.Pointer(queryBSTR)),
		uintptr(flags),
		uintptr(0),
		uintptr(unsafe.Pointer(&pEnumerator)))
	if FAILED(hres) {
		return nil, ole.NewError(hres)
	}
	return &comEnumerator{unknown: pEnumerator}, nil
}

type comEnumerator struct {
	unknown *ole.IUnknown
}

func (e *comEnumerator) Release() {
	releaseUnknown(&e.unknown)
}

// Next calls IEnumWbemClassObject::Next
func (e *comEnumerator) Next(timeout WBEM_TIMEOUT_TYPE, count uint32) ([]ClassObject, error) {
	if count == 0 {
		return nil, nil
	}
	objects := make([]*ole.IUnknown, count)
	var uReturn uint32

	vTable := (*IEnumWbemClassObjectVtbl)(unsafe.Pointer(e.unknown.RawVTable))
	hres, _, _ := syscall.Syscall6(vTable.Next, 5,
		uintptr(unsafe.Pointer(e.unknown)),
		uintptr(timeout),
		uintptr(count),
		uintptr(unsafe.Pointer(&objects[0])),
		uintptr(unsafe.Pointer(&uReturn)),
		uintptr(0))

	if uReturn > count {
		uReturn = count
	}
	rows := make([]ClassObject, 0, uReturn)
	for _, object := range objects[:uReturn] {
		if object != nil {
			rows = append(rows, &comClassObject{unknown: object})
		}
	}

	switch {
	case FAILED(hres):
		return rows, ole.NewError(hres)
	case hres == WBEM_S_TIMEDOUT && uReturn == 0:
		// Only possible with a finite timeout
		return rows, ole.NewError(hres)
	}
	return rows, nil
}

type comClassObject struct {
	unknown *ole.IUnknown
}

func (c *comClassObject) Release() {
	releaseUnknown(&c.unknown)
}

// Get calls IWbemClassObject::Get and converts the VARIANT into a Variant.  The VARIANT is kept
// alive until the Variant is cleared.
func (c *comClassObject) Get(name string) (*Variant, error) {
	nameUTF16, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}

	raw := new(ole.VARIANT)
	ole.VariantInit(raw)
	vTable := (*IWbemClassObjectVtbl)(unsafe.Pointer(c.unknown.RawVTable))
	hres, _, _ := syscall.Syscall6(vTable.Get, 6,
		uintptr(unsafe.Pointer(c.unknown)),
		uintptr(unsafe.Pointer(nameUTF16)), // LPCWSTR wszName - Name of the desired property.
		uintptr(0),                         // long    lFlags   - Reserved. This parameter must be 0 (zero).
		uintptr(unsafe.Pointer(raw)),       // VARIANT *pVal    - Returned WMI class property (as variant)
		uintptr(0),                         // CIMTYPE *pType   - Not needed
		uintptr(0))                         // long    *plFlavor - Not needed
	if FAILED(hres) {
		return nil, ole.NewError(hres)
	}

	value := NewVariant(raw.VT, func() error { return ole.VariantClear(raw) })
	switch raw.VT {
	case ole.VT_BOOL:
		value.Val = int64(int16(raw.Val))
	case ole.VT_I1:
		value.Val = int64(int8(raw.Val))
	case ole.VT_I2:
		value.Val = int64(int16(raw.Val))
	case ole.VT_I4, ole.VT_INT:
		value.Val = int64(int32(raw.Val))
	case ole.VT_UI1:
		value.Val = int64(uint8(raw.Val))
	case ole.VT_UI2:
		value.Val = int64(uint16(raw.Val))
	case ole.VT_UI4, ole.VT_UINT, ole.VT_R4:
		value.Val = int64(uint32(raw.Val))
	case ole.VT_I8, ole.VT_UI8, ole.VT_R8:
		value.Val = raw.Val
	case ole.VT_BSTR:
		value.Str = raw.ToString()
	default:
		if raw.VT&ole.VT_ARRAY != 0 {
			value.Array = &comSafeArray{psa: *(**ole.SafeArray)(unsafe.Pointer(&raw.Val))}
		}
	}
	return value, nil
}

// Names calls IWbemClassObject::GetNames
func (c *comClassObject) Names() ([]string, error) {
	var names *ole.SafeArray
	vTable := (*IWbemClassObjectVtbl)(unsafe.Pointer(c.unknown.RawVTable))
	hres, _, _ := syscall.Syscall6(vTable.GetNames, 5,
		uintptr(unsafe.Pointer(c.unknown)),
		uintptr(0),
		uintptr(WBEM_FLAG_ALWAYS|WBEM_FLAG_NONSYSTEM_ONLY),
		uintptr(0),
		uintptr(unsafe.Pointer(&names)),
		uintptr(0))
	if FAILED(hres) {
		return nil, ole.NewError(hres)
	}

	conversion := ole.SafeArrayConversion{Array: names}
	defer conversion.Release()
	return conversion.ToStringArray(), nil
}

// comSafeArray reads a SAFEARRAY owned by a VARIANT
type comSafeArray struct {
	psa  *ole.SafeArray
	data unsafe.Pointer
}

func (a *comSafeArray) Bounds() (lower, upper int32, err error) {
	hres, _, _ := procSafeArrayGetLBound.Call(uintptr(unsafe.Pointer(a.psa)), 1, uintptr(unsafe.Pointer(&lower)))
	if FAILED(hres) {
		return 0, 0, ole.NewError(hres)
	}
	hres, _, _ = procSafeArrayGetUBound.Call(uintptr(unsafe.Pointer(a.psa)), 1, uintptr(unsafe.Pointer(&upper)))
	if FAILED(hres) {
		return 0, 0, ole.NewError(hres)
	}
	return lower, upper, nil
}

func (a *comSafeArray) Lock() error {
	hres, _, _ := procSafeArrayAccessData.Call(uintptr(unsafe.Pointer(a.psa)), uintptr(unsafe.Pointer(&a.data)))
	if FAILED(hres) {
		return ole.NewError(hres)
	}
	return nil
}

func (a *comSafeArray) Element(offset int32) (string, error) {
	if a.data == nil {
		return "", ole.NewError(ole.E_POINTER)
	}
	bstr := *(**uint16)(unsafe.Add(a.data, uintptr(offset)*unsafe.Sizeof(uintptr(0))))
	return ole.BstrToString(bstr), nil
}

func (a *comSafeArray) Number(offset int32, vt ole.VT) (int64, error) {
	if a.data == nil {
		return 0, ole.NewError(ole.E_POINTER)
	}
	i := uintptr(offset)
	switch vt {
	case ole.VT_I1:
		return int64(*(*int8)(unsafe.Add(a.data, i))), nil
	case ole.VT_UI1:
		return int64(*(*uint8)(unsafe.Add(a.data, i))), nil
	case ole.VT_I2, ole.VT_BOOL:
		return int64(*(*int16)(unsafe.Add(a.data, i*2))), nil
	case ole.VT_UI2:
		return int64(*(*uint16)(unsafe.Add(a.data, i*2))), nil
	case ole.VT_I4, ole.VT_INT:
		return int64(*(*int32)(unsafe.Add(a.data, i*4))), nil
	case ole.VT_UI4, ole.VT_UINT, ole.VT_R4:
		return int64(*(*uint32)(unsafe.Add(a.data, i*4))), nil
	case ole.VT_I8, ole.VT_UI8, ole.VT_R8:
		return *(*int64)(unsafe.Add(a.data, i*8)), nil
	}
	return 0, ole.NewError(ole.E_INVALIDARG)
}

func (a *comSafeArray) Unlock() error {
	if a.data == nil {
		return nil
	}
	hres, _, _ := procSafeArrayUnaccess.Call(uintptr(unsafe.Pointer(a.psa)))
	a.data = nil
	if FAILED(hres) {
		return ole.NewError(hres)
	}
	return nil
}

// comDateTime is an SWbemDateTime scripting object
type comDateTime struct {
	dispatch *ole.IDispatch
}

func (d *comDateTime) Release() {
	if d.dispatch != nil {
		d.dispatch.Release()
		d.dispatch = nil
	}
}

func (d *comDateTime) SetValue(text string) error {
	result, err := oleutil.PutProperty(d.dispatch, "Value", text)
	if err != nil {
		return err
	}
	return result.Clear()
}

func (d *comDateTime) FileTime(local bool) (string, error) {
	result, err := oleutil.CallMethod(d.dispatch, "GetFileTime", local)
	if err != nil {
		return "", err
	}
	defer result.Clear()
	return result.ToString(), nil
}
