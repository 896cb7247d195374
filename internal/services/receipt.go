package services

import "github.com/gitshopapp/storefront/internal/models"

// NewOrderReceipt builds the customer-facing view of order. Contact details
// and payment internals are dropped here.
func NewOrderReceipt(order *models.Order) *models.OrderReceipt {
	receipt := &models.OrderReceipt{
		OrderNumber:   order.OrderNumber,
		Type:          order.Type,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TempZone:      order.TempZone,
		Currency:      order.Currency,
		Subtotal:      order.Subtotal,
		ShippingFee:   order.ShippingFee,
		Total:         order.Total,
		CustomerName:  order.CustomerName,
		PickupDate:    order.PickupDate,
		PickupTime:    order.PickupTime,
		Items:         make([]models.ReceiptItem, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
		PaidAt:        order.PaidAt,
	}
	if payment := order.LatestPayment(); payment != nil {
		receipt.PaymentStatus = payment.Status
	}
	for _, item := range order.Items {
		receipt.Items = append(receipt.Items, models.ReceiptItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.ProductName,
			SizeLabel: item.SizeLabel,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	if order.Address != nil {
		receipt.Address = &models.ReceiptAddress{
			PostalCode: order.Address.PostalCode,
			Region:     order.Address.Region,
			City:       order.Address.City,
			Address1:   order.Address.Address1,
			Address2:   order.Address.Address2,
		}
	}
	for _, shipment := range order.Shipments {
		receipt.Shipments = append(receipt.Shipments, models.ReceiptShipment{
			Carrier:     CarrierDisplayName(shipment.Carrier),
			TrackingNo:  shipment.TrackingNo,
			TrackingURL: BuildTrackingURL(shipment.Carrier, shipment.TrackingNo),
			ShippedAt:   shipment.ShippedAt,
		})
	}
	return receipt
}
