// Package mockbackend is an in-memory flower shop backend speaking the
// same HTTP contract as the production one. It backs local development
// (cmd/mock-backend) and the end-to-end tests of the client packages.
package mockbackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/itsneelabh/storefront/core"
)

// SessionCookie names the session cookie.
const SessionCookie = "sid"

// Catalog listing shapes.
const (
	ShapeEnvelope = "envelope"
	ShapeList     = "list"
)

// Where POST /orders/ reports the new order id.
const (
	IDInBody     = "body"
	IDInOrder    = "order"
	IDInData     = "data"
	IDInLocation = "location"
	IDNone       = "none"
)

// Options configure a Server.
type Options struct {
	// CatalogShape is ShapeEnvelope (default) or ShapeList.
	CatalogShape string
	// OrderIDStyle is one of the IDIn* constants; IDInBody by default.
	OrderIDStyle string
	Logger       core.Logger
}

// Server routes the backend endpoints.
type Server struct {
	store    *Store
	injector *Injector
	opts     Options
	logger   core.Logger
	handler  http.Handler
}

// New builds a server over store.
func New(store *Store, opts Options) *Server {
	if opts.CatalogShape == "" {
		opts.CatalogShape = ShapeEnvelope
	}
	if opts.OrderIDStyle == "" {
		opts.OrderIDStyle = IDInBody
	}
	logger := core.ComponentLogger(opts.Logger, "storefront/mockbackend")

	s := &Server{
		store:    store,
		injector: NewInjector(logger),
		opts:     opts,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/inject-error", s.injector.handleInject).Methods(http.MethodPost)
	admin.HandleFunc("/status", s.injector.handleStatus).Methods(http.MethodGet)
	admin.HandleFunc("/reset", s.injector.handleReset).Methods(http.MethodPost)

	r.HandleFunc("/session/check", s.checkSession).Methods(http.MethodGet)
	r.HandleFunc("/session/init", s.initSession).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/shops", s.listShops).Methods(http.MethodGet)
	r.HandleFunc("/flowers/shop/{shopId:[0-9]+}", s.listFlowers).Methods(http.MethodGet)
	r.HandleFunc("/orders/", s.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", s.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{orderId}", s.getOrder).Methods(http.MethodGet)
	r.HandleFunc("/favorites/{flowerId:[0-9]+}", s.addFavorite).Methods(http.MethodPost)
	r.HandleFunc("/favorites/{flowerId:[0-9]+}", s.removeFavorite).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.Use(s.injector.Middleware)

	s.handler = otelhttp.NewHandler(s.logRequests(r), "mock-backend")
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Store is the server's data.
func (s *Server) Store() *Store {
	return s.store
}

// Injector is the server's fault injection.
func (s *Server) Injector() *Injector {
	return s.injector
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Debug("Request served", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      m.Code,
			"bytes":       m.Written,
			"duration_ms": m.Duration.Milliseconds(),
		})
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// session returns the request's session, if its cookie is known.
func (s *Server) session(r *http.Request) (Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	return s.store.Session(c.Value)
}

type sessionData struct {
	UserID          string `json:"userId"`
	SessionID       string `json:"sessionId"`
	IsNew           bool   `json:"isNew"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

func (s *Server) checkSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "No active session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    sessionData{UserID: sess.UserID, SessionID: sess.ID},
	})
}

func (s *Server) initSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(r); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    sessionData{UserID: sess.UserID, SessionID: sess.ID},
		})
		return
	}

	sess := s.store.CreateSession()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("Session created", map[string]interface{}{
		"user_id": sess.UserID,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    sessionData{UserID: sess.UserID, SessionID: sess.ID, IsNew: true},
	})
}

func (s *Server) listShops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Shops())
}

func (s *Server) listFlowers(w http.ResponseWriter, r *http.Request) {
	shopID, _ := strconv.Atoi(mux.Vars(r)["shopId"])
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	sess, _ := s.session(r)
	flowers, totalPages, err := s.store.Flowers(shopID, sess.UserID, Listing{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "Shop not found")
		return
	}

	if s.opts.CatalogShape == ShapeList {
		writeJSON(w, http.StatusOK, flowers)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":      flowers,
		"totalPages": totalPages,
	})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, _ := s.session(r)
	o, err := s.store.CreateOrder(sess.UserID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("Order created", map[string]interface{}{
		"order_id": o.ID,
		"shop_id":  o.ShopID,
		"items":    len(o.Items),
		"total":    o.TotalPrice,
	})

	switch s.opts.OrderIDStyle {
	case IDInOrder:
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"order":   map[string]interface{}{"Id": o.ID},
		})
	case IDInData:
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"Id": o.ID},
		})
	case IDInLocation:
		w.Header().Set("Location", "/orders/"+o.ID)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
	case IDNone:
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
	default:
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"id":      o.ID,
		})
	}
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.store.Order(mux.Vars(r)["orderId"])
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    o,
	})
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, true)
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, false)
}

func (s *Server) setFavorite(w http.ResponseWriter, r *http.Request, favorite bool) {
	sess, ok := s.session(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please log in to add to favorites")
		return
	}
	flowerID, _ := strconv.Atoi(mux.Vars(r)["flowerId"])
	if err := s.store.SetFavorite(sess.UserID, flowerID, favorite); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Flower not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"flowerId":   flowerID,
		"isFavorite": favorite,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
