package server

import (
	"net/http"
)

// CallbackRouter serves the routes of mounted [Handler]s for GET requests only.
//
// Other methods on a mounted path get 405 and unknown paths 404. The browser's favicon request is answered with an
// empty 204 so it never reaches a callback handler.
type CallbackRouter struct {
	mux        *http.ServeMux
	middleware []Middleware
}

// NewCallbackRouter creates a [CallbackRouter] whose requests pass through middleware in the order given.
func NewCallbackRouter(middleware ...Middleware) *CallbackRouter {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return &CallbackRouter{mux: mux, middleware: middleware}
}

// Use appends middleware to the chain.
func (r *CallbackRouter) Use(middleware ...Middleware) {
	r.middleware = append(r.middleware, middleware...)
}

// Mount registers every route of h.
func (r *CallbackRouter) Mount(h Handler) {
	for _, route := range h.Routes() {
		r.mux.Handle(http.MethodGet+" "+route, h)
	}
}

// ServeHTTP implements [http.Handler]. The first middleware added is the outermost.
func (r *CallbackRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.mux
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	h.ServeHTTP(w, req)
}
