package services

import (
	"errors"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/models"
)

var (
	ErrCustomerInfoRequired    = errors.New("customer name and phone are required")
	ErrAddressRequired         = errors.New("shipping address is required")
	ErrAgreementRequired       = errors.New("agreement must be accepted")
	ErrInvalidPaymentMethod    = errors.New("payment method not allowed for order type")
	ErrInvalidEmail            = errors.New("invalid email address")
	ErrOrderCreateFailed       = errors.New("failed to create order")
	ErrCheckoutCreationFailed  = errors.New("failed to create checkout")
	ErrCheckoutTotalMismatch   = errors.New("checkout lines do not add up to order total")
	ErrOrderNotFound           = errors.New("order not found")
	ErrNotPayAtPickup          = errors.New("order is not pay at pickup")
	ErrNotShippingOrder        = errors.New("order is not a shipping order")
	ErrShipmentDetailsRequired = errors.New("carrier and tracking number are required")
	ErrUnsupportedStatus       = errors.New("unsupported target status")
	ErrUnknownProvider         = errors.New("unknown payment provider")

	ErrInvalidStatusTransition = db.ErrInvalidStatusTransition
)

// ErrorCode maps err to the stable code returned to API clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCustomerInfoRequired):
		return "customer_info_required"
	case errors.Is(err, ErrAddressRequired):
		return "address_required"
	case errors.Is(err, catalog.ErrItemsRequired):
		return "items_required"
	case errors.Is(err, ErrAgreementRequired):
		return "agreement_required"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, catalog.ErrQuantityOutOfRange):
		return "quantity_out_of_range"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, catalog.ErrProductUnavailable):
		return "product_not_available"
	case errors.Is(err, catalog.ErrMixedTemperatureZone):
		return "temp_zone_mixed"
	case errors.Is(err, ErrOrderCreateFailed):
		return "order_create_failed"
	case errors.Is(err, ErrCheckoutCreationFailed), errors.Is(err, ErrCheckoutTotalMismatch):
		return "checkout_create_failed"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrInvalidStatusTransition):
		return "invalid_status"
	case errors.Is(err, ErrNotPayAtPickup):
		return "not_pay_at_pickup"
	case errors.Is(err, ErrNotShippingOrder):
		return "not_shipping_order"
	case errors.Is(err, ErrShipmentDetailsRequired):
		return "carrier_and_tracking_required"
	case errors.Is(err, ErrUnsupportedStatus):
		return "unsupported_status"
	case errors.Is(err, ErrInvalidProduct):
		return "invalid_product"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "internal_error"
	}
}

// CurrentStatus returns the order status reported by a failed transition.
func CurrentStatus(err error) (models.OrderStatus, bool) {
	var transitionErr *db.TransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr.Current, true
	}
	return "", false
}
