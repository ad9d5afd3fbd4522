package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/cart"
	"medstore/m/internal/catalog"
	"medstore/m/internal/config"
	"medstore/m/internal/export"
	"medstore/m/internal/ledger"
	"medstore/m/internal/metrics"
	"medstore/m/internal/query"
	"medstore/m/internal/store"
)

type ctxKey string

const ctxSession ctxKey = "session"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	metrics    *metrics.Metrics
	secret     string
	sessionTTL time.Duration
	origins    []string
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one open cart. Requests for the same session are serialized.
type session struct {
	mu      sync.Mutex
	cart    *cart.Cart
	expires time.Time
}

// New constructs a Handler.
func New(s *store.Store, cfg config.Config, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Handler{
		store:      s,
		metrics:    m,
		secret:     cfg.Secret,
		sessionTTL: ttl,
		origins:    cfg.AllowedOrigins,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := h.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Post("/sessions", h.createSession)
	r.Route("/cart", func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addCartItem)
		r.Delete("/items/{medicineID}", h.removeCartItem)
		r.Post("/commit", h.commitCart)
	})

	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.listMedicines)
		r.Post("/", h.createMedicine)
		r.Get("/{id}", h.getMedicine)
		r.Put("/{id}", h.updateMedicine)
		r.Delete("/{id}", h.deleteMedicine)
	})

	r.Get("/dashboard", h.dashboard)
	r.Get("/inventory/expiry-alert", h.expiryAlerts)

	r.Get("/sales", h.listSales)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/sales/daily", h.dailySales)
		r.Get("/sales/monthly", h.monthlySales)
	})

	r.Get("/export/{file}", h.export)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Cart sessions

type sessionClaims struct {
	jwt.RegisteredClaims
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	id := uuid.NewString()
	expires := now.Add(h.sessionTTL)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.secret))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to open session")
		return
	}

	h.SweepSessions()

	h.mu.Lock()
	c := cart.New(h.store, cart.WithClock(func() time.Time { return h.now() }))
	h.sessions[id] = &session{cart: c, expires: expires}
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, map[string]any{"token": token, "expires_at": expires.UTC()})
}

// SweepSessions drops expired sessions and their carts. It returns the
// number removed.
func (h *Handler) SweepSessions() int {
	now := h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, s := range h.sessions {
		if now.After(s.expires) {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		}, jwt.WithTimeFunc(h.now))
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		claims, ok := token.Claims.(*sessionClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid session claims")
			return
		}

		h.mu.Lock()
		s, found := h.sessions[claims.ID]
		h.mu.Unlock()
		if !found {
			respondError(w, http.StatusUnauthorized, "unknown session")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		ctx := context.WithValue(r.Context(), ctxSession, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session {
	return r.Context().Value(ctxSession).(*session)
}

type cartResponse struct {
	State string            `json:"state"`
	Lines []domain.LineItem `json:"lines"`
	Total float64           `json:"total"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	lines := c.Lines()
	if lines == nil {
		lines = []domain.LineItem{}
	}
	return cartResponse{State: c.State().String(), Lines: lines, Total: c.Total()}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newCartResponse(sessionFrom(r).cart))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r).cart
	c.Clear()
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

type cartItemRequest struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int64  `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.MedicineID) == "" {
		respondError(w, http.StatusBadRequest, "medicine_id is required")
		return
	}
	c := sessionFrom(r).cart
	if err := c.AddLine(r.Context(), req.MedicineID, req.Quantity); err != nil {
		h.cartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r).cart
	c.RemoveLine(chi.URLParam(r, "medicineID"))
	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handler) commitCart(w http.ResponseWriter, r *http.Request) {
	sale, err := sessionFrom(r).cart.Commit(r.Context())
	if err != nil {
		h.cartError(w, err)
		return
	}
	h.metrics.ObserveSale(sale)
	respondJSON(w, http.StatusCreated, sale)
}

func (h *Handler) cartError(w http.ResponseWriter, err error) {
	kind := "internal"
	switch {
	case errors.Is(err, domain.ErrValidation):
		kind = "validation"
	case errors.Is(err, domain.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		kind = "insufficient_stock"
	case errors.Is(err, domain.ErrEmptyCart):
		kind = "empty_cart"
	}
	h.metrics.CartErrors.WithLabelValues(kind).Inc()
	respondDomainError(w, err)
}

// Medicine handlers

type medicineRequest struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Batch    string  `json:"batch"`
	Expiry   string  `json:"expiry"`
	Supplier string  `json:"supplier"`
	Price    float64 `json:"price"`
	MRP      float64 `json:"mrp"`
	Stock    int64   `json:"stock"`
}

func (req medicineRequest) medicine(id string) domain.Medicine {
	return domain.Medicine{
		ID:       id,
		Name:     req.Name,
		Category: req.Category,
		Batch:    req.Batch,
		Expiry:   req.Expiry,
		Supplier: req.Supplier,
		Price:    req.Price,
		MRP:      req.MRP,
		Stock:    req.Stock,
	}
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, err := query.ParseStockState(q.Get("stock"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	meds, err := catalog.New(h.store).List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.metrics.CatalogSize.Set(float64(len(meds)))

	meds = query.FilterMedicines(meds, query.MedicineFilter{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Stock:    state,
	}, h.now())
	if q.Get("sort") == "name" {
		meds = query.SortByName(meds)
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": meds, "count": len(meds)})
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	med, err := catalog.New(h.store).Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var created domain.Medicine
	err := h.store.Update(r.Context(), func(tx *store.Tx) error {
		var err error
		created, err = catalog.New(tx).Add(r.Context(), req.medicine(""))
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var updated domain.Medicine
	err := h.store.Update(r.Context(), func(tx *store.Tx) error {
		cat := catalog.New(tx)
		found, err := cat.Update(r.Context(), req.medicine(id))
		if err != nil {
			return err
		}
		if !found {
			return &domain.NotFoundError{ID: id}
		}
		updated, err = cat.Get(r.Context(), id)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.store.Update(r.Context(), func(tx *store.Tx) error {
		found, err := catalog.New(tx).Delete(r.Context(), id)
		if err != nil {
			return err
		}
		if !found {
			return &domain.NotFoundError{ID: id}
		}
		return nil
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	meds, err := catalog.New(h.store).List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.metrics.CatalogSize.Set(float64(len(meds)))
	respondJSON(w, http.StatusOK, query.Dashboard(meds, h.now()))
}

func (h *Handler) expiryAlerts(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	meds, err := catalog.New(h.store).List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, query.ExpiringWithin(meds, h.now(), days))
}

// Sales history and reports

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	var f query.SaleFilter
	for _, p := range []struct {
		name string
		dest *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.name))
		if raw == "" {
			continue
		}
		day, err := time.ParseInLocation(domain.DateLayout, raw, h.now().Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, p.name+" must be in YYYY-MM-DD format")
			return
		}
		*p.dest = day
	}
	f.Search = r.URL.Query().Get("q")

	h.respondSales(w, r, f, true)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	today := h.now()
	h.respondSales(w, r, query.SaleFilter{From: today, To: today}, false)
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	today := h.now()
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	h.respondSales(w, r, query.SaleFilter{From: first, To: today}, false)
}

func (h *Handler) respondSales(w http.ResponseWriter, r *http.Request, f query.SaleFilter, withSales bool) {
	sales, err := ledger.New(h.store).List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	sales = query.FilterSales(sales, f)
	summary := query.Summarize(sales)
	if !withSales {
		respondJSON(w, http.StatusOK, summary)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sales": sales, "summary": summary})
}

// Export

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	dataset, format, ok := strings.Cut(chi.URLParam(r, "file"), ".")
	if !ok {
		respondError(w, http.StatusNotFound, "unknown export")
		return
	}
	meds, err := catalog.New(h.store).List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	sales, err := ledger.New(h.store).List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	file, err := export.Render(export.Dataset(dataset), export.Format(format), meds, sales)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(file.Body))
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zap.S().Errorw("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
