// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"testing"

	ole "github.com/go-ole/go-ole"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processSummary struct {
	Executable string `wmi:"Name"`
	ProcessId  uint32
	Threads    int64  `wmi:"ThreadCount"`
	Ignored    string `wmi:"-"`
	internal   string
}

func TestDecode(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4), processRow("explorer.exe", 5120))
	request := NewRequest(processQuery, "", WithSubsystem(s))
	defer request.Close()

	var values []processSummary
	require.NoError(t, request.Decode(&values))
	require.Len(t, values, 2)
	assert.Equal(t, processSummary{Executable: "System", ProcessId: 4, Threads: 12}, values[0])
	assert.Equal(t, "explorer.exe", values[1].Executable)
	assert.Equal(t, uint32(5120), values[1].ProcessId)

	var pointers []*processSummary
	require.NoError(t, request.Decode(&pointers))
	require.Len(t, pointers, 2)
	assert.Equal(t, "System", pointers[0].Executable)
}

func TestDecodeInvalidDestination(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4))
	request := NewRequest(processQuery, "", WithSubsystem(s))
	defer request.Close()

	var values []processSummary
	err := request.Decode(values)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.CodeOf(err))

	var ints []int
	err = request.Decode(&ints)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.CodeOf(err))

	var nilPointer *processSummary
	err = request.Decode(nilPointer)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.CodeOf(err))
}

func TestDecodeTypeMismatch(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4))
	request := NewRequest(processQuery, "", WithSubsystem(s))
	defer request.Close()

	var values []struct {
		Name int
	}
	err := request.Decode(&values)
	assert.Equal(t, cerrors.TypeMismatch, cerrors.CodeOf(err))

	var counts []struct {
		Name uint64
	}
	err = request.Decode(&counts)
	assert.Equal(t, cerrors.TypeMismatch, cerrors.CodeOf(err))
}

func TestDecodeMissingProperty(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4))
	request := NewRequest(processQuery, "", WithSubsystem(s))
	defer request.Close()

	var values []struct {
		Name           string
		NoSuchProperty string
		NoSuchCode     uint32 `wmi:",nil=0xFFFFFFFF"`
	}
	require.NoError(t, request.Decode(&values))
	require.Len(t, values, 1)
	assert.Equal(t, "System", values[0].Name)
	assert.Equal(t, "", values[0].NoSuchProperty)
	assert.Equal(t, uint32(0xFFFFFFFF), values[0].NoSuchCode)
	assert.Equal(t, 1, s.rows[0].gets)
}

func TestDecodeConversions(t *testing.T) {
	s := newFakeSubsystem(newRow(map[string]*fakeProperty{
		"Capacity":     bstr("107374182400"),
		"Offset":       bstr("-512"),
		"Capabilities": numberArray(ole.VT_I4, 3, 7),
		"ErrorCode":    &fakeProperty{vt: ole.VT_NULL},
		"Status":       &fakeProperty{vt: ole.VT_NULL},
		"Label":        &fakeProperty{vt: ole.VT_NULL},
	}))
	request := NewRequest("SELECT * FROM Win32_Volume", "", WithSubsystem(s))
	defer request.Close()

	type volume struct {
		Capacity     uint64
		Offset       int64
		Capabilities []uint16
		ErrorCode    uint32 `wmi:",nil=0xFFFFFFFF"`
		Status       string `wmi:"Status,nil=Unknown"`
		Label        *string
	}
	var volumes []volume
	require.NoError(t, request.Decode(&volumes))
	require.Len(t, volumes, 1)
	assert.Equal(t, volume{
		Capacity:     107374182400,
		Offset:       -512,
		Capabilities: []uint16{3, 7},
		ErrorCode:    0xFFFFFFFF,
		Status:       "Unknown",
	}, volumes[0])
}

func TestDecodeSingleObject(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4), processRow("smss.exe", 340))
	request := NewRequest(processQuery, "", WithSubsystem(s))
	defer request.Close()

	var value processSummary
	require.NoError(t, request.Decode(&value))
	assert.Equal(t, "System", value.Executable)

	var pointer *processSummary
	require.NoError(t, request.Decode(&pointer))
	require.NotNil(t, pointer)
	assert.Equal(t, uint32(4), pointer.ProcessId)
	// Only the first row is fetched
	assert.Zero(t, s.rows[1].gets)

	empty := NewRequest(processQuery, "", WithSubsystem(newFakeSubsystem()))
	defer empty.Close()
	var none *processSummary
	require.NoError(t, empty.Decode(&none))
	assert.Nil(t, none)
}

func TestQuery(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4), processRow("smss.exe", 340))

	var processes []*Win32_Process
	require.NoError(t, Query(processQuery, "", &processes, WithSubsystem(s)))
	require.Len(t, processes, 2)
	assert.Equal(t, "smss.exe", processes[1].Name)
	assert.Equal(t, uint32(340), processes[1].ProcessId)
	assert.Equal(t, uint32(12), processes[1].ThreadCount)
	assert.Equal(t, []string{"row0", "row1", "enumerator", "services", "locator"}, s.log.order)
}

func TestQueryPartialResults(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4), processRow("smss.exe", 340))
	s.failAfter = 1
	s.enumErr = ole.NewError(WBEM_E_FAILED)

	var processes []*Win32_Process
	err := Query(processQuery, "", &processes, WithSubsystem(s))
	assert.Equal(t, cerrors.PartialResults, cerrors.CodeOf(err))
	require.Len(t, processes, 1)
	assert.Equal(t, "System", processes[0].Name)
}

func TestQueryFailure(t *testing.T) {
	s := newFakeSubsystem()
	s.queryErr = ole.NewError(WBEM_E_INVALID_QUERY)

	var processes []*Win32_Process
	err := Query("SELEC", "", &processes, WithSubsystem(s))
	assert.Equal(t, cerrors.QueryFailed, cerrors.CodeOf(err))
	assert.Empty(t, processes)
}
