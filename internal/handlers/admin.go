package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/services"
)

const (
	defaultOrderListLimit = 50
	maxOrderListLimit     = 200
)

type markPaidRequest struct {
	Note string `json:"note"`
}

type shipRequest struct {
	Carrier    string `json:"carrier"`
	TrackingNo string `json:"trackingNo"`
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultOrderListLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(parsed, maxOrderListLimit)
	}

	orders, err := h.admin.ListOrders(r.Context(), services.ListOrdersInput{
		Type:   models.OrderType(strings.TrimSpace(query.Get("type"))),
		Status: models.OrderStatus(strings.TrimSpace(query.Get("status"))),
		Limit:  limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	h.writeData(w, r, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}
	order, err := h.admin.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	h.writeData(w, r, http.StatusOK, order)
}

// UpdateOrder moves an order to the requested status.
func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}
	var input services.TransitionInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_request_body")
		return
	}
	h.writeOrderResult(w, r, orderID, "update")(h.admin.Transition(r.Context(), orderID, input))
}

func (h *Handlers) MarkPaid(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}
	var req markPaidRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_request_body")
		return
	}
	h.writeOrderResult(w, r, orderID, "mark_paid")(h.admin.MarkPaid(r.Context(), orderID, req.Note))
}

func (h *Handlers) ShipOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}
	var req shipRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_request_body")
		return
	}
	h.writeOrderResult(w, r, orderID, "ship")(h.admin.Ship(r.Context(), orderID, req.Carrier, req.TrackingNo))
}

func (h *Handlers) ListProductsAdmin(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	h.writeData(w, r, http.StatusOK, products)
}

// UpsertProduct creates or replaces a product by slug.
func (h *Handlers) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var input catalog.ProductConfig
	if err := decodeJSON(w, r, &input, false); err != nil {
		h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_request_body")
		return
	}
	product, err := h.catalog.Upsert(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	h.writeData(w, r, http.StatusOK, product)
}

// orderIDFromPath writes order_not_found for ids that cannot name an order.
func (h *Handlers) orderIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeErrorCode(w, r, http.StatusNotFound, "order_not_found")
		return uuid.Nil, false
	}
	return orderID, true
}

func (h *Handlers) writeOrderResult(w http.ResponseWriter, r *http.Request, orderID uuid.UUID, action string) func(*models.Order, error) {
	return func(order *models.Order, err error) {
		if err != nil {
			h.writeServiceError(w, r, err, nil)
			return
		}
		h.loggerFromContext(r.Context()).Info("admin order updated",
			"order_id", orderID,
			"action", action,
			"status", order.Status,
		)
		h.writeData(w, r, http.StatusOK, order)
	}
}
