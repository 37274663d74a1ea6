// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package util

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/hpe-storage/wmi-query-libs/logger"
)

// Route describes one HTTP endpoint served by a mux.Router
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// InitializeRouter registers every route with router, each wrapped by the HTTP request logger
func InitializeRouter(router *mux.Router, routes []Route) {
	for _, route := range routes {
		log.Tracef("Registering route %v %v %v", route.Name, route.Method, route.Pattern)
		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(log.HTTPLogger(route.HandlerFunc, route.Name))
	}
}
