package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricewatch/models"
	"pricewatch/repository"
	"pricewatch/scraper"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const serviceVersion = "1.0.0"

// Extractor runs the extraction pipeline
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.ExtractionResult, error)
}

// PriceCheckRunner runs one monitor pass
type PriceCheckRunner interface {
	CheckDuePrices(ctx context.Context) (*models.CheckSummary, error)
}

// ProductReader reads monitored products and their history
type ProductReader interface {
	GetProductByID(ctx context.Context, id int) (*models.Product, error)
	GetPriceHistory(ctx context.Context, productID, limit int) ([]models.PriceHistory, error)
}

type Handlers struct {
	extractor Extractor
	checker   PriceCheckRunner
	products  ProductReader
	logger    logrus.FieldLogger
}

func NewHandlers(extractor Extractor, checker PriceCheckRunner, products ProductReader, logger logrus.FieldLogger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handlers{
		extractor: extractor,
		checker:   checker,
		products:  products,
		logger:    logger,
	}
}

// HealthCheck returns a simple health check response
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "pricewatch",
		"version":   serviceVersion,
	}
	writeJSON(w, http.StatusOK, response)
}

// ExtractPrice runs the extraction pipeline on the posted URL
func (h *Handlers) ExtractPrice(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if !isProductURL(req.URL) {
		writeError(w, http.StatusBadRequest, "URL must be an absolute http(s) URL")
		return
	}

	result, err := h.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		if !errors.Is(err, scraper.ErrExtractionFailed) {
			h.logger.WithError(err).WithField("url", req.URL).Warn("Extraction aborted")
		}
		writeError(w, http.StatusUnprocessableEntity, "extraction failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CheckPrices runs one monitor pass over every due product
func (h *Handlers) CheckPrices(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checker.CheckDuePrices(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Price check failed")
		writeError(w, http.StatusInternalServerError, "Failed to check prices")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetProduct returns one monitored product
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.products.GetProductByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.WithError(err).WithField("product_id", id).Error("Failed to get product")
		writeError(w, http.StatusInternalServerError, "Failed to get product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetPriceHistory returns the price history for a product
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	history, err := h.products.GetPriceHistory(r.Context(), id, limit)
	if err != nil {
		h.logger.WithError(err).WithField("product_id", id).Error("Failed to get price history")
		writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}
	if history == nil {
		history = []models.PriceHistory{}
	}

	writeJSON(w, http.StatusOK, history)
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return 0, false
	}
	return id, true
}

func isProductURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
