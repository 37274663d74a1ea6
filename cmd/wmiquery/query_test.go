// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	ole "github.com/go-ole/go-ole"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	"github.com/hpe-storage/wmi-query-libs/windows/wmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSubsystem returns the same rows for every query
type stubSubsystem struct {
	rows     []map[string]wmi.Variant
	queryErr error
}

func (s *stubSubsystem) InitializeSecurity() error { return nil }

func (s *stubSubsystem) NewLocator() (wmi.Locator, error) { return &stubHandle{s: s}, nil }

func (s *stubSubsystem) NewDateTime() (wmi.DateTimeInterpreter, error) { return nil, nil }

type stubHandle struct {
	s    *stubSubsystem
	next int
}

func (h *stubHandle) Release() {}

func (h *stubHandle) ConnectServer(string) (wmi.Services, error) { return &stubHandle{s: h.s}, nil }

func (h *stubHandle) ExecQuery(string, string, wmi.WBEM_GENERIC_FLAG_TYPE) (wmi.Enumerator, error) {
	if h.s.queryErr != nil {
		return nil, h.s.queryErr
	}
	return &stubHandle{s: h.s}, nil
}

func (h *stubHandle) Next(wmi.WBEM_TIMEOUT_TYPE, uint32) ([]wmi.ClassObject, error) {
	if h.next >= len(h.s.rows) {
		return nil, nil
	}
	h.next++
	return []wmi.ClassObject{stubRow(h.s.rows[h.next-1])}, nil
}

type stubRow map[string]wmi.Variant

func (r stubRow) Release() {}

func (r stubRow) Get(name string) (*wmi.Variant, error) {
	v, ok := r[name]
	if !ok {
		return nil, ole.NewError(wmi.WBEM_E_NOT_FOUND)
	}
	return &v, nil
}

func (r stubRow) Names() ([]string, error) {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names, nil
}

func withStub(t *testing.T, s *stubSubsystem) {
	previous := requestOptions
	requestOptions = []wmi.RequestOption{wmi.WithSubsystem(s)}
	t.Cleanup(func() { requestOptions = previous })
}

func TestRunQuery(t *testing.T) {
	withStub(t, &stubSubsystem{rows: []map[string]wmi.Variant{
		{"Name": {VT: ole.VT_BSTR, Str: "System"}, "ProcessId": {VT: ole.VT_I4, Val: 4}},
	}})

	var out bytes.Buffer
	require.NoError(t, runQuery(&out, "SELECT * FROM Win32_Process", "", nil, false))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	assert.Equal(t, []map[string]interface{}{{"Name": "System", "ProcessId": float64(4)}}, rows)
}

func TestRunQueryDescribe(t *testing.T) {
	withStub(t, &stubSubsystem{rows: []map[string]wmi.Variant{
		{"Name": {VT: ole.VT_BSTR, Str: "System"}},
	}})

	var out bytes.Buffer
	require.NoError(t, runQuery(&out, "SELECT Name FROM Win32_Process", "", []string{"Name"}, true))
	assert.Equal(t, "[0]\n    Name = VT_BSTR(\"System\")\n", out.String())
}

func TestRunQueryFailure(t *testing.T) {
	withStub(t, &stubSubsystem{queryErr: ole.NewError(wmi.WBEM_E_INVALID_QUERY)})

	var out bytes.Buffer
	err := runQuery(&out, "SELEC", "", nil, false)
	assert.Equal(t, cerrors.QueryFailed, cerrors.CodeOf(err))
	assert.Empty(t, out.String())
}
