package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps http.ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes registers /healthz.
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/healthz", getOnly(h.ServeHTTP))
}

// RegisterDeliveryRoutes registers the read-only delivery API behind a bearer
// token. An empty token refuses every request.
func (r *Router) RegisterDeliveryRoutes(d *DeliveriesHandler, token string) {
	r.Handle("/api/v1/deliveries", getOnly(bearerOnly(token, d.List)))
	r.Handle("/api/v1/deliveries/export", getOnly(bearerOnly(token, d.Export)))
	r.Handle("/api/v1/deliveries/", getOnly(bearerOnly(token, func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/api/v1/deliveries/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		d.Get(w, req, id)
	})))
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

func bearerOnly(token string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		parts := strings.SplitN(req.Header.Get("Authorization"), " ", 2)
		if token == "" || len(parts) != 2 || parts[0] != "Bearer" ||
			subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
			return
		}
		h(w, req)
	}
}
