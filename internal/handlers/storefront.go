package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/services"
)

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListActive(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	h.writeData(w, r, http.StatusOK, products)
}

func (h *Handlers) PlaceShippingOrder(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.orders.PlaceShippingOrder)
}

func (h *Handlers) PlacePickupOrder(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.orders.PlacePickupOrder)
}

type placeFunc func(ctx context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error)

func (h *Handlers) placeOrder(w http.ResponseWriter, r *http.Request, place placeFunc) {
	var input services.PlaceOrderInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_request_body")
		return
	}

	result, err := place(r.Context(), input)
	if err != nil {
		// A failed checkout still returns the stored order so the client can retry.
		if result != nil {
			h.writeServiceError(w, r, err, result)
			return
		}
		h.writeServiceError(w, r, err, nil)
		return
	}
	h.writeData(w, r, http.StatusCreated, result)
}

func (h *Handlers) RetryCheckout(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.RetryCheckout(r.Context(), mux.Vars(r)["orderNo"])
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	h.writeData(w, r, http.StatusOK, result)
}

func (h *Handlers) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.orders.GetOrderByNumber(r.Context(), mux.Vars(r)["orderNo"])
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	h.writeData(w, r, http.StatusOK, receipt)
}
