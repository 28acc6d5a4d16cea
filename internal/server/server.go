// internal/server/server.go

// Package server exposes the enrichment pipeline and wishlist storage over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wishlink/wishlink/internal/cache"
	"github.com/wishlink/wishlink/internal/config"
	"github.com/wishlink/wishlink/internal/enrich"
	"github.com/wishlink/wishlink/internal/monitoring"
	"github.com/wishlink/wishlink/internal/store"
	"github.com/wishlink/wishlink/internal/utils"
	"github.com/wishlink/wishlink/pkg/api"
)

// Server wires the HTTP routes to the pipeline, cache and store.
type Server struct {
	config   config.ServerConfig
	enricher *enrich.Enricher
	cache    cache.Cache
	cacheTTL time.Duration
	store    store.Store
	logger   utils.Logger
	metrics  *monitoring.Metrics
	limiter  *callerLimiter
	version  string
	started  time.Time
	httpSrv  *http.Server
}

// New builds the server. cache and store may be nil; the corresponding
// routes degrade gracefully (no caching) or return 503 (no storage).
func New(cfg config.ServerConfig, enricher *enrich.Enricher, productCache cache.Cache, cacheTTL time.Duration, st store.Store, logger utils.Logger, metrics *monitoring.Metrics, version string) *Server {
	s := &Server{
		config:   cfg,
		enricher: enricher,
		cache:    productCache,
		cacheTTL: cacheTTL,
		store:    st,
		logger:   logger,
		metrics:  metrics,
		limiter:  newCallerLimiter(cfg.RateLimit, cfg.RateBurst),
		version:  version,
		started:  time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(s.loggingMiddleware, s.authMiddleware, s.rateLimitMiddleware)
	apiRouter.HandleFunc("/enrich", s.handleEnrich).Methods(http.MethodPost)
	apiRouter.HandleFunc("/wishlists", s.handleCreateWishlist).Methods(http.MethodPost)
	apiRouter.HandleFunc("/wishlists", s.handleListWishlists).Methods(http.MethodGet)
	apiRouter.HandleFunc("/wishlists/{id}", s.handleGetWishlist).Methods(http.MethodGet)
	apiRouter.HandleFunc("/wishlists/{id}", s.handleDeleteWishlist).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/wishlists/{id}/items", s.handleAddItem).Methods(http.MethodPost)
	apiRouter.HandleFunc("/wishlists/{id}/items", s.handleListItems).Methods(http.MethodGet)
	apiRouter.HandleFunc("/items/{id}", s.handleDeleteItem).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/items/{id}/purchased", s.handleSetPurchased).Methods(http.MethodPut)
	apiRouter.HandleFunc("/account", s.handleDeleteAccount).Methods(http.MethodDelete)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// handleEnrich resolves a URL into a product, consulting the cache first.
// Validation failures map to 4xx error responses; fetch failures still
// return 200 with a degraded product, matching the pipeline's contract.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req api.EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.ErrCodeInvalidURL, "request body must be JSON with a url field")
		return
	}

	target, err := s.enricher.Validate(req.URL)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}

	if s.cache != nil {
		if product, err := s.cache.Get(r.Context(), target.Canonical); err == nil && product != nil {
			s.observeCache("hit")
			s.writeJSON(w, http.StatusOK, product)
			return
		}
		s.observeCache("miss")
	}

	product, err := s.enricher.Enrich(r.Context(), req.URL)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}

	// Degraded results are not cached; the page may work on the next try.
	if s.cache != nil && !product.Degraded() {
		if err := s.cache.Set(r.Context(), target.Canonical, product, s.cacheTTL); err != nil {
			s.logger.Warnf("cache set failed: %v", err)
		} else {
			s.observeCache("store")
		}
	}

	s.writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{}
	healthy := true

	if s.cache != nil {
		_, err := s.cache.Get(r.Context(), "healthcheck")
		checks["cache"] = err == nil
		healthy = healthy && err == nil
	}
	if s.store != nil {
		_, err := s.store.ListWishlists(r.Context(), "healthcheck")
		checks["store"] = err == nil
		healthy = healthy && err == nil
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, api.HealthStatus{
		Status:    status,
		Version:   s.version,
		Uptime:    time.Since(s.started),
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleCreateWishlist(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}

	list := &store.Wishlist{
		OwnerID:     callerID(r),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.store.CreateWishlist(r.Context(), list); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, list)
}

func (s *Server) handleListWishlists(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	lists, err := s.store.ListWishlists(r.Context(), callerID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if lists == nil {
		lists = []*store.Wishlist{}
	}
	s.writeJSON(w, http.StatusOK, lists)
}

func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	list, err := s.ownedWishlist(r, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteWishlist(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	if _, err := s.ownedWishlist(r, mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteWishlist(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedWishlist loads the wishlist and verifies it belongs to the caller.
// Someone else's wishlist reads as not found, so ids do not leak existence.
func (s *Server) ownedWishlist(r *http.Request, id string) (*store.Wishlist, error) {
	list, err := s.store.GetWishlist(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if list.OwnerID != callerID(r) {
		return nil, store.ErrNotFound
	}
	return list, nil
}

// ownedItem is the item counterpart of ownedWishlist.
func (s *Server) ownedItem(r *http.Request, id string) (*store.Item, error) {
	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != callerID(r) {
		return nil, store.ErrNotFound
	}
	return item, nil
}

// handleAddItem enriches the submitted URL and stores the result as a new
// item on the wishlist. A degraded enrichment still creates the item; the
// owner can edit it by hand afterwards. The caller may attach the public ID
// of an uploaded image, which feeds the cleanup queue when the item goes
// away, and an event date, which drives purchase reminders.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	var req struct {
		URL           string     `json:"url"`
		ImagePublicID string     `json:"image_public_id"`
		EventDate     *time.Time `json:"event_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, api.ErrCodeInvalidURL, "request body must be JSON with a url field")
		return
	}

	if _, err := s.ownedWishlist(r, mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}

	target, err := s.enricher.Validate(req.URL)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}

	product, err := s.enricher.Enrich(r.Context(), req.URL)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}

	price, _ := strconv.ParseFloat(product.Price, 64)
	item := &store.Item{
		WishlistID:    mux.Vars(r)["id"],
		OwnerID:       callerID(r),
		URL:           target.URL,
		CanonicalURL:  target.Canonical,
		Title:         product.Title,
		Price:         price,
		Currency:      product.Currency,
		Image:         product.Image,
		ImagePublicID: req.ImagePublicID,
		Description:   product.Description,
		Category:      product.Category,
		Rating:        product.Rating,
		Availability:  product.Availability,
		EventDate:     req.EventDate,
	}
	if err := s.store.AddItem(r.Context(), item); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	if _, err := s.ownedWishlist(r, mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	items, err := s.store.ListItems(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []*store.Item{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	if _, err := s.ownedItem(r, mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPurchased(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	var req struct {
		Purchased bool `json:"purchased"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with a purchased field")
		return
	}
	if _, err := s.ownedItem(r, mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.SetItemPurchased(r.Context(), mux.Vars(r)["id"], req.Purchased); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAccount cascades: every wishlist and item of the caller goes,
// and their stored images are queued for cleanup.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "NO_STORAGE", "storage is not configured")
		return
	}
	owner := callerID(r)
	removed, err := s.store.DeleteAccount(r.Context(), owner)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Infof("account deleted: %d items removed", removed)
	s.writeJSON(w, http.StatusOK, map[string]int{"items_removed": removed})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Code: code, Message: message})
}

// writeValidationError maps validator failures to their wire codes. All of
// them are client errors; nothing was fetched.
func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enrich.ErrSuspiciousTarget):
		s.writeError(w, http.StatusForbidden, api.ErrCodeSuspiciousTarget, err.Error())
	case errors.Is(err, enrich.ErrUntrustedDomain):
		s.writeError(w, http.StatusForbidden, api.ErrCodeUntrustedDomain, err.Error())
	default:
		s.writeError(w, http.StatusBadRequest, api.ErrCodeInvalidURL, err.Error())
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "no such resource")
		return
	}
	s.logger.Errorf("storage error: %v", err)
	s.writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "storage operation failed")
}

func (s *Server) observeCache(op string) {
	if s.metrics != nil {
		s.metrics.ObserveCache(op)
	}
}
