package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// InventoryHandler is the admin-only stock surface.
type InventoryHandler struct {
	Inventory *orders.Inventory
	Log       *zap.Logger
}

type createInventoryReq struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type updateInventoryReq struct {
	Quantity *int `json:"quantity"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Use(requireCaller, requireAdmin)
		r.Post("/", h.create)
		r.Get("/{productId}", h.get)
		r.Put("/{productId}", h.update)
	})
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Inventory.Get(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"inventory": it})
}

func (h *InventoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createInventoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Inventory.Create(ctx, req.ProductID, req.Name, req.Quantity, req.Price)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"inventory": it})
}

func (h *InventoryHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateInventoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity == nil {
		writeError(w, h.Log, &orders.ValidationError{Details: []string{"Valid quantity is required"}})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Inventory.SetQuantity(ctx, chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"inventory": it})
}
