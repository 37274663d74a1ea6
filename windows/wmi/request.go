// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"context"
	"errors"
	"fmt"

	ole "github.com/go-ole/go-ole"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otLog "github.com/opentracing/opentracing-go/log"
)

// RequestState is the stage a Request has reached.  Stages only ever move forward.
type RequestState int

const (
	Unstarted RequestState = iota
	LocatorAcquired
	Connected
	QueryExecuted
	Draining
	Terminal
)

func (s RequestState) String() string {
	switch s {
	case Unstarted:
		return "Unstarted"
	case LocatorAcquired:
		return "LocatorAcquired"
	case Connected:
		return "Connected"
	case QueryExecuted:
		return "QueryExecuted"
	case Draining:
		return "Draining"
	case Terminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// Request owns one WMI query: the locator, the namespace connection, the result enumerator and
// the fully drained rows.  The handles are acquired in that order and released in reverse by
// Close; a handle that failed to acquire, and every handle after it, stays nil.
//
// A Request must not be copied; use Move to hand it to a new owner.
type Request struct {
	query     string
	namespace string
	subsystem Subsystem

	locator    Locator
	services   Services
	enumerator Enumerator

	results []*ResultItem
	status  error
	state   RequestState
}

// RequestOption customizes a Request before it runs
type RequestOption func(*Request)

// WithSubsystem runs the request against the given subsystem instead of DefaultSubsystem
func WithSubsystem(subsystem Subsystem) RequestOption {
	return func(r *Request) {
		if subsystem != nil {
			r.subsystem = subsystem
		}
	}
}

// NewRequest connects to namespace (DefaultNamespace when empty), executes the WQL query and
// drains every result row before returning.  The outcome is reported by Status; the rows by
// Results.  The caller must Close the request.
func NewRequest(query string, namespace string, opts ...RequestOption) *Request {
	return NewRequestContext(context.Background(), query, namespace, opts...)
}

// NewRequestContext is NewRequest with the request span parented on the span carried by ctx.
// The context is used for tracing only; the request cannot be canceled.
func NewRequestContext(ctx context.Context, query string, namespace string, opts ...RequestOption) *Request {
	log.Tracef(">>>>> NewRequest, query=%v, namespace=%v", query, namespace)
	defer log.Trace("<<<<< NewRequest")

	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Request{
		query:     query,
		namespace: namespace,
		subsystem: DefaultSubsystem,
	}
	for _, opt := range opts {
		opt(r)
	}

	span, _ := opentracing.StartSpanFromContext(ctx, "wmi.Request")
	defer span.Finish()
	span.SetTag("wmi.query", query)
	span.SetTag("wmi.namespace", namespace)

	r.status = r.run(span)
	r.state = Terminal

	span.SetTag("wmi.rows", len(r.results))
	if r.status != nil {
		ext.Error.Set(span, true)
		span.LogFields(otLog.Error(r.status))
	}
	return r
}

// run performs every stage in order, stopping at the first failure
func (r *Request) run(span opentracing.Span) error {

	if err := r.subsystem.InitializeSecurity(); err != nil {
		log.Errorf("Unable to initialize COM security, err=%v", err)
		return cerrors.NewWmiError(cerrors.SecurityInitFailed, "unable to initialize COM security", err)
	}

	locator, err := r.subsystem.NewLocator()
	if err != nil || locator == nil {
		releaseOrphan(locator)
		if cerrors.Is(err, cerrors.NotSupported) {
			log.Tracef("WMI not available, err=%v", err)
			return err
		}
		log.Errorf("Unable to obtain the initial locator to WMI, err=%v", err)
		return cerrors.NewWmiError(cerrors.LocatorFailed, "unable to obtain the initial locator to WMI", err)
	}
	r.locator = locator
	r.state = LocatorAcquired
	span.LogKV("event", r.state.String())

	services, err := r.locator.ConnectServer(r.namespace)
	if err != nil || services == nil {
		releaseOrphan(services)
		// A namespace that isn't present on this host is logged as informational
		if hresultOf(err) == WBEM_E_INVALID_NAMESPACE {
			log.Tracef("Failed IWbemLocator::ConnectServer method, namespace=%v, err=%v", r.namespace, err)
		} else {
			log.Errorf("Failed IWbemLocator::ConnectServer method, namespace=%v, err=%v", r.namespace, err)
		}
		return cerrors.NewWmiError(cerrors.ConnectFailed, "unable to connect to namespace "+r.namespace, err)
	}
	r.services = services
	r.state = Connected
	span.LogKV("event", r.state.String())

	enumerator, err := r.services.ExecQuery(WQL, r.query, WBEM_FLAG_FORWARD_ONLY|WBEM_FLAG_RETURN_IMMEDIATELY)
	if err != nil || enumerator == nil {
		releaseOrphan(enumerator)
		log.Errorf("Failed IWbemServices::ExecQuery method, query=%v, err=%v", r.query, err)
		return cerrors.NewWmiError(cerrors.QueryFailed, "unable to execute query", err)
	}
	r.enumerator = enumerator
	r.state = QueryExecuted
	span.LogKV("event", r.state.String())

	r.state = Draining
	return r.drain()
}

// releaseOrphan releases a handle returned together with a failure, which is never stored
func releaseOrphan(handle Releaser) {
	if handle != nil {
		handle.Release()
	}
}

// drain reads one row at a time until the enumerator reports completion or an error.  Rows read
// before an error are kept and the request reports PartialResults.
func (r *Request) drain() error {
	for {
		rows, err := r.enumerator.Next(WBEM_INFINITE, 1)
		for _, row := range rows {
			if row == nil {
				continue
			}
			log.Tracef("Enumerating WMI class object %v", len(r.results))
			r.results = append(r.results, NewResultItem(row, r.subsystem))
		}

		if err != nil {
			hres := hresultOf(err)
			if len(r.results) == 0 {
				if hres == WBEM_E_NOT_SUPPORTED || hres == WBEM_E_INVALID_CLASS {
					log.Tracef("WMI query not supported, hres=%08Xh, query=%v", hres, r.query)
					return cerrors.NewWmiError(cerrors.NotSupported, "WMI query not supported", err)
				}
				log.Errorf("Failed IEnumWbemClassObject::Next method, itemCount=0, err=%v", err)
				return cerrors.NewWmiError(cerrors.EnumerationFailed, "unable to enumerate query results", err)
			}
			log.Errorf("Failed IEnumWbemClassObject::Next method, itemCount=%v, err=%v", len(r.results), err)
			return cerrors.NewWmiError(cerrors.PartialResults, fmt.Sprintf("enumeration stopped after %d rows", len(r.results)), err)
		}

		if len(rows) == 0 {
			return nil
		}
	}
}

// hresultOf returns the HRESULT carried by a COM error, or 0
func hresultOf(err error) uintptr {
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return oleErr.Code()
	}
	var wmiErr *cerrors.WmiError
	if errors.As(err, &wmiErr) {
		return uintptr(wmiErr.HResult)
	}
	return 0
}

// Status returns nil when every stage succeeded, else a *cerrors.WmiError naming the failed
// stage.  A PartialResults status still comes with the rows read before the failure.
func (r *Request) Status() error {
	return r.status
}

// OK reports whether the request completed without error
func (r *Request) OK() bool {
	return r.status == nil && r.state == Terminal
}

// IsPartial reports whether enumeration failed after at least one row was read
func (r *Request) IsPartial() bool {
	return cerrors.Is(r.status, cerrors.PartialResults)
}

// Results returns the rows in the order the service delivered them.  The Request keeps ownership
// of the rows; they are released by Close.
func (r *Request) Results() []*ResultItem {
	return r.results
}

// State returns the stage the request reached
func (r *Request) State() RequestState {
	return r.state
}

// Query returns the WQL text of the request
func (r *Request) Query() string {
	return r.query
}

// Namespace returns the namespace the request connected to
func (r *Request) Namespace() string {
	return r.namespace
}

// Move returns a new Request owning every handle and row of r.  r is left empty: Unstarted, no
// status, no rows, and its Close releases nothing.  Moving a nil request returns nil.
func (r *Request) Move() *Request {
	if r == nil {
		return nil
	}
	moved := &Request{
		query:      r.query,
		namespace:  r.namespace,
		subsystem:  r.subsystem,
		locator:    r.locator,
		services:   r.services,
		enumerator: r.enumerator,
		results:    r.results,
		status:     r.status,
		state:      r.state,
	}
	*r = Request{query: r.query, namespace: r.namespace, subsystem: r.subsystem}
	return moved
}

// Close releases the rows, then the enumerator, the namespace connection and the locator, each
// exactly once.  Closing an empty or already closed request is a no-op.
func (r *Request) Close() {
	if r == nil {
		return
	}
	for _, item := range r.results {
		item.Release()
	}
	r.results = nil

	if r.enumerator != nil {
		r.enumerator.Release()
		r.enumerator = nil
	}
	if r.services != nil {
		r.services.Release()
		r.services = nil
	}
	if r.locator != nil {
		r.locator.Release()
		r.locator = nil
	}
}
