// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

// Package handler serves WMI queries over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	"github.com/hpe-storage/wmi-query-libs/config"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/hpe-storage/wmi-query-libs/util"
	"github.com/hpe-storage/wmi-query-libs/windows/wmi"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	uuid "github.com/satori/go.uuid"
)

const (
	// RequestIDHeader is set on every response
	RequestIDHeader = "X-Request-Id"

	classPattern = `[A-Za-z_][A-Za-z0-9_]*`

	// Shared error messages
	errorMessageEmptyQuery            = "empty wql passed in the request"
	errorMessageInvalidProperty       = "invalid property name passed in the request: "
	errorMessageHTTPHeaderNotProvided = "http.Header not provided for authorization"
	errorMessageInvalidToken          = "invalid access key"
	errorMessageTokenNotSupplied      = "access key not supplied"
)

var identifier = regexp.MustCompile(`^` + classPattern + `$`)

// Response is the body of every reply
type Response struct {
	Data interface{} `json:"data,omitempty"`
	Err  interface{} `json:"errors,omitempty"`
}

// Handler runs WMI queries on behalf of HTTP clients
type Handler struct {
	namespace string
	accessKey string
	opts      []wmi.RequestOption
}

// New returns a Handler using the namespace and access key of cfg.  opts are applied to every
// WMI request.
func New(cfg *config.Config, opts ...wmi.RequestOption) *Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = wmi.DefaultNamespace
	}
	return &Handler{namespace: namespace, accessKey: cfg.AccessKey, opts: opts}
}

// NewRouter creates a new mux.Router serving the WMI endpoints
func NewRouter(h *Handler) *mux.Router {
	routes := []util.Route{
		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/query?wql=<query>[&namespace=<ns>][&property=<name>...]
		// Description: 	Runs a WQL query and returns every row.  Without property parameters
		//                  each row holds all of its non-system properties.
		// Sample Output:
		// {
		//     "data": [
		//         {
		//             "Name": "System",
		//             "ProcessId": 4
		//         }
		//     ]
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		{
			Name:        "Query",
			Method:      "GET",
			Pattern:     "/api/v1/query",
			HandlerFunc: h.Query,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/classes/{class}[?namespace=<ns>][&property=<name>...]
		// Description: 	Returns every instance of a WMI class.
		///////////////////////////////////////////////////////////////////////////////////////////
		{
			Name:        "ClassInstances",
			Method:      "GET",
			Pattern:     "/api/v1/classes/{class:" + classPattern + "}",
			HandlerFunc: h.GetClassInstances,
		},
	}

	router := mux.NewRouter().StrictSlash(true)
	util.InitializeRouter(router, routes)
	return router
}

//@APIVersion 1.0.0
//@Title Query
//@Description runs a WQL query
//@Accept json
//@Resource /api/v1/query
//@Success 200 {array} Rows
//@Router /api/v1/query [get]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if !h.validateRequestHeader(w, r) {
		return
	}
	var wmiResp Response
	query := strings.TrimSpace(r.URL.Query().Get("wql"))
	if query == "" {
		handleError(w, wmiResp, cerrors.NewWmiError(cerrors.InvalidArgument, errorMessageEmptyQuery), http.StatusBadRequest)
		return
	}
	h.serveQuery(w, r, query)
}

//@APIVersion 1.0.0
//@Title GetClassInstances
//@Description returns every instance of a WMI class
//@Accept json
//@Resource /api/v1/classes
//@Success 200 {array} Rows
//@Router /api/v1/classes/{class} [get]
func (h *Handler) GetClassInstances(w http.ResponseWriter, r *http.Request) {
	if !h.validateRequestHeader(w, r) {
		return
	}
	var wmiResp Response
	properties, err := requestedProperties(r)
	if err != nil {
		handleError(w, wmiResp, err, http.StatusBadRequest)
		return
	}

	selected := "*"
	if len(properties) > 0 {
		selected = strings.Join(properties, ", ")
	}
	h.serveQuery(w, r, "SELECT "+selected+" FROM "+mux.Vars(r)["class"])
}

// serveQuery runs the query and replies with the rows.  Partial results are returned with a 200
// status alongside the error.
func (h *Handler) serveQuery(w http.ResponseWriter, r *http.Request, query string) {
	var wmiResp Response

	properties, err := requestedProperties(r)
	if err != nil {
		handleError(w, wmiResp, err, http.StatusBadRequest)
		return
	}
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = h.namespace
	}

	requestID := w.Header().Get(RequestIDHeader)
	span, ctx := startSpan(r, "http.query")
	defer span.Finish()
	span.SetTag("request.id", requestID)

	entry := log.WithFields(log.Fields{"requestId": requestID, "query": query, "namespace": namespace})
	entry.Debug("Running WMI query")

	request := wmi.NewRequestContext(ctx, query, namespace, h.opts...)
	defer request.Close()

	status := request.Status()
	if status != nil && !request.IsPartial() {
		ext.Error.Set(span, true)
		handleError(w, wmiResp, status, httpStatus(status))
		return
	}

	rows := make([]map[string]interface{}, 0, len(request.Results()))
	for _, item := range request.Results() {
		row, err := item.Properties(properties...)
		if err != nil {
			ext.Error.Set(span, true)
			handleError(w, wmiResp, err, httpStatus(err))
			return
		}
		rows = append(rows, row)
	}
	entry.WithField("rows", len(rows)).Debug("WMI query complete")

	wmiResp.Data = rows
	if status != nil {
		entry.Warnf("Returning partial results, err=%v", status)
		wmiResp.Err = cerrors.NewWmiError(status)
	}
	json.NewEncoder(w).Encode(wmiResp)
}

// requestedProperties returns the property parameters of the request, each checked to be a
// plain identifier
func requestedProperties(r *http.Request) ([]string, error) {
	properties := r.URL.Query()["property"]
	for _, property := range properties {
		if !identifier.MatchString(property) {
			return nil, cerrors.NewWmiError(cerrors.InvalidArgument, errorMessageInvalidProperty+property)
		}
	}
	return properties, nil
}

// startSpan continues a trace propagated in the request headers, if any
func startSpan(r *http.Request, operation string) (opentracing.Span, context.Context) {
	tracer := opentracing.GlobalTracer()
	var opts []opentracing.StartSpanOption
	if parent, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
		opts = append(opts, ext.RPCServerOption(parent))
	}
	span := tracer.StartSpan(operation, opts...)
	ext.HTTPMethod.Set(span, r.Method)
	ext.HTTPUrl.Set(span, r.URL.String())
	return span, opentracing.ContextWithSpan(r.Context(), span)
}

// httpStatus maps a WMI failure to the HTTP status returned to the client
func httpStatus(err error) int {
	var hresult uint32
	if wmiErr, ok := err.(*cerrors.WmiError); ok {
		hresult = wmiErr.HResult
	}
	switch cerrors.CodeOf(err) {
	case cerrors.InvalidArgument:
		return http.StatusBadRequest
	case cerrors.Unauthenticated:
		return http.StatusUnauthorized
	case cerrors.NotSupported:
		return http.StatusNotImplemented
	case cerrors.ConnectFailed:
		if hresult == wmi.WBEM_E_INVALID_NAMESPACE {
			return http.StatusNotFound
		}
	case cerrors.QueryFailed:
		if hresult == wmi.WBEM_E_INVALID_QUERY || hresult == wmi.WBEM_E_INVALID_CLASS {
			return http.StatusBadRequest
		}
	case cerrors.TypeMismatch:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// validateRequestHeader checks the access key when one is configured.  On failure the error is
// returned to the client and false is returned.
func (h *Handler) validateRequestHeader(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, uuid.NewV4().String())

	if h.accessKey == "" {
		return true
	}

	var err error
	if (r == nil) || (r.Header == nil) {
		err = cerrors.NewWmiError(cerrors.Unauthenticated, errorMessageHTTPHeaderNotProvided)
	} else if keys, ok := r.Header[http.CanonicalHeaderKey(config.AccessKeyHeader)]; !ok || len(keys) != 1 {
		err = cerrors.NewWmiError(cerrors.Unauthenticated, errorMessageTokenNotSupplied)
	} else if keys[0] == "" || keys[0] != h.accessKey {
		err = cerrors.NewWmiError(cerrors.Unauthenticated, errorMessageInvalidToken)
	} else {
		return true
	}

	var wmiResp Response
	handleError(w, wmiResp, err, http.StatusUnauthorized)
	return false
}

func handleError(w http.ResponseWriter, wmiResp Response, err error, statusCode int) {
	log.Error("Err :", err.Error())
	w.WriteHeader(statusCode)
	wmiResp.Err = cerrors.NewWmiError(err)
	json.NewEncoder(w).Encode(wmiResp)
}
