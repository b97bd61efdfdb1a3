package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type OrdersHandler struct {
	Intake *orders.Intake
	Lookup *orders.Lookup
	Log    *zap.Logger
}

type paginationResp struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type listOrdersResp struct {
	Orders     []orders.Order `json:"orders"`
	Pagination paginationResp `json:"pagination"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(requireCaller)
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	in.UserID = callerFrom(r).UserID

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Intake.CreateOrder(ctx, in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"order": o})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v, err := h.Lookup.GetOrder(ctx, chi.URLParam(r, "id"), callerFrom(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Lookup.ListOrders(ctx, callerFrom(r).UserID, page, limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, listOrdersResp{
		Orders:     p.Orders,
		Pagination: paginationResp{Total: p.Total, Page: p.Page, Limit: p.Limit, Pages: p.Pages},
	})
}
