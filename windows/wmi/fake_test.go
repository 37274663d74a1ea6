// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"fmt"
	"strings"

	ole "github.com/go-ole/go-ole"
)

// The fakes below stand in for the COM objects and record every release so tests can assert
// that each handle is released exactly once and in the expected order.

type releaseLog struct {
	order []string
}

func (l *releaseLog) add(name string) {
	l.order = append(l.order, name)
}

func (l *releaseLog) count(name string) int {
	n := 0
	for _, entry := range l.order {
		if entry == name {
			n++
		}
	}
	return n
}

type fakeSubsystem struct {
	log *releaseLog

	securityErr    error
	securityCalls  int
	locatorErr     error
	connectErr     error
	queryErr       error
	dateTimeErr    error
	dateTime       *fakeDateTime
	rows           []*fakeClassObject
	failAfter      int // enumeration fails once this many rows were returned; -1 never fails
	enumErr        error
	lastNamespace  string
	lastQuery      string
	lastDialect    string
	lastFlags      WBEM_GENERIC_FLAG_TYPE
	locatorCreated bool
}

func newFakeSubsystem(rows ...*fakeClassObject) *fakeSubsystem {
	s := &fakeSubsystem{log: &releaseLog{}, failAfter: -1}
	for i, row := range rows {
		row.log = s.log
		if row.id == "" {
			row.id = fmt.Sprintf("row%d", i)
		}
	}
	s.rows = rows
	return s
}

func (s *fakeSubsystem) InitializeSecurity() error {
	s.securityCalls++
	return s.securityErr
}

func (s *fakeSubsystem) NewLocator() (Locator, error) {
	if s.locatorErr != nil {
		return nil, s.locatorErr
	}
	s.locatorCreated = true
	return &fakeLocator{s: s}, nil
}

func (s *fakeSubsystem) NewDateTime() (DateTimeInterpreter, error) {
	if s.dateTimeErr != nil {
		return nil, s.dateTimeErr
	}
	if s.dateTime == nil {
		s.dateTime = &fakeDateTime{}
	}
	return s.dateTime, nil
}

type fakeLocator struct {
	s *fakeSubsystem
}

func (l *fakeLocator) Release() {
	l.s.log.add("locator")
}

func (l *fakeLocator) ConnectServer(namespace string) (Services, error) {
	l.s.lastNamespace = namespace
	if l.s.connectErr != nil {
		return nil, l.s.connectErr
	}
	return &fakeServices{s: l.s}, nil
}

type fakeServices struct {
	s *fakeSubsystem
}

func (v *fakeServices) Release() {
	v.s.log.add("services")
}

func (v *fakeServices) ExecQuery(dialect, query string, flags WBEM_GENERIC_FLAG_TYPE) (Enumerator, error) {
	v.s.lastDialect = dialect
	v.s.lastQuery = query
	v.s.lastFlags = flags
	if v.s.queryErr != nil {
		return nil, v.s.queryErr
	}
	return &fakeEnumerator{s: v.s}, nil
}

type fakeEnumerator struct {
	s    *fakeSubsystem
	next int
}

func (e *fakeEnumerator) Release() {
	e.s.log.add("enumerator")
}

func (e *fakeEnumerator) Next(timeout WBEM_TIMEOUT_TYPE, count uint32) ([]ClassObject, error) {
	if e.s.failAfter >= 0 && e.next >= e.s.failAfter {
		return nil, e.s.enumErr
	}
	var rows []ClassObject
	for uint32(len(rows)) < count && e.next < len(e.s.rows) {
		rows = append(rows, e.s.rows[e.next])
		e.next++
	}
	return rows, nil
}

type fakeClassObject struct {
	id         string
	log        *releaseLog
	properties map[string]*fakeProperty
	names      []string
	namesErr   error
	getErr     error
	gets       int
}

// fakeProperty describes the variant handed out by fakeClassObject.Get
type fakeProperty struct {
	vt     ole.VT
	val    int64
	str    string
	array  *fakeSafeArray
	clears int
}

func newRow(properties map[string]*fakeProperty) *fakeClassObject {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	return &fakeClassObject{properties: properties, names: names}
}

func (c *fakeClassObject) Release() {
	c.log.add(c.id)
}

func (c *fakeClassObject) Get(name string) (*Variant, error) {
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.properties[name]
	if !ok {
		return nil, ole.NewError(WBEM_E_NOT_FOUND)
	}
	v := NewVariant(p.vt, func() error {
		p.clears++
		return nil
	})
	v.Val = p.val
	v.Str = p.str
	if p.array != nil {
		v.Array = p.array
	}
	return v, nil
}

func (c *fakeClassObject) Names() ([]string, error) {
	if c.namesErr != nil {
		return nil, c.namesErr
	}
	return c.names, nil
}

type fakeSafeArray struct {
	lower, upper int32
	elements     []string
	numbers      []int64
	boundsErr    error
	lockErr      error
	elementErr   error
	locks        int
	unlocks      int
}

func (a *fakeSafeArray) Bounds() (int32, int32, error) {
	return a.lower, a.upper, a.boundsErr
}

func (a *fakeSafeArray) Lock() error {
	if a.lockErr != nil {
		return a.lockErr
	}
	a.locks++
	return nil
}

func (a *fakeSafeArray) Element(offset int32) (string, error) {
	if a.elementErr != nil {
		return "", a.elementErr
	}
	return a.elements[offset], nil
}

func (a *fakeSafeArray) Number(offset int32, vt ole.VT) (int64, error) {
	if a.elementErr != nil {
		return 0, a.elementErr
	}
	return a.numbers[offset], nil
}

func (a *fakeSafeArray) Unlock() error {
	a.unlocks++
	return nil
}

type fakeDateTime struct {
	setErr   error
	fileErr  error
	fileTime string
	value    string
	local    bool
	releases int
}

func (d *fakeDateTime) Release() {
	d.releases++
}

func (d *fakeDateTime) SetValue(text string) error {
	if d.setErr != nil {
		return d.setErr
	}
	d.value = text
	return nil
}

func (d *fakeDateTime) FileTime(local bool) (string, error) {
	if d.fileErr != nil {
		return "", d.fileErr
	}
	d.local = local
	return d.fileTime, nil
}

func bstr(s string) *fakeProperty {
	return &fakeProperty{vt: ole.VT_BSTR, str: s}
}

func scalar(vt ole.VT, val int64) *fakeProperty {
	return &fakeProperty{vt: vt, val: val}
}

func stringArray(lower int32, elements ...string) *fakeProperty {
	return &fakeProperty{
		vt: ole.VT_ARRAY | ole.VT_BSTR,
		array: &fakeSafeArray{
			lower:    lower,
			upper:    lower + int32(len(elements)) - 1,
			elements: elements,
		},
	}
}

func numberArray(vt ole.VT, numbers ...int64) *fakeProperty {
	return &fakeProperty{
		vt: ole.VT_ARRAY | vt,
		array: &fakeSafeArray{
			upper:   int32(len(numbers)) - 1,
			numbers: numbers,
		},
	}
}

// processRow builds a Win32_Process shaped row
func processRow(name string, pid int64) *fakeClassObject {
	return newRow(map[string]*fakeProperty{
		"Name":            bstr(name),
		"ProcessId":       scalar(ole.VT_I4, pid),
		"ParentProcessId": scalar(ole.VT_I4, 4),
		"ExecutablePath":  bstr(`C:\Windows\` + name),
		"CommandLine":     bstr(strings.ToUpper(name)),
		"CreationDate":    bstr("20190601120000.000000-420"),
		"ThreadCount":     scalar(ole.VT_I4, 12),
	})
}
