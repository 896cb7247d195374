package services

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/models"
)

var zeroDecimalCurrencies = map[string]bool{"jpy": true, "krw": true, "vnd": true}

var shopLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}()

// FormatMoney renders a minor-unit amount for display, e.g. ¥3,600 or 12.50 USD.
func FormatMoney(amount int64, currency string) string {
	currency = strings.ToLower(currency)
	negative := amount < 0
	if negative {
		amount = -amount
	}

	var out string
	if zeroDecimalCurrencies[currency] {
		out = groupThousands(amount)
		if currency == "jpy" {
			out = "¥" + out
		} else {
			out += " " + strings.ToUpper(currency)
		}
	} else {
		cents := amount % 100
		out = groupThousands(amount/100) + "." + leftPad(strconv.FormatInt(cents, 10)) + " " + strings.ToUpper(currency)
	}
	if negative {
		out = "-" + out
	}
	return out
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func leftPad(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// OrderInfoOverrides carries data that is not on the order row itself.
type OrderInfoOverrides struct {
	TrackingNumber  string
	TrackingCarrier string
}

// BuildOrderInfo builds the email template payload for order.
func BuildOrderInfo(shop ShopInfo, order *models.Order, overrides OrderInfoOverrides) *email.OrderInfo {
	info := &email.OrderInfo{
		ShopName:        shop.Name,
		ShopURL:         shop.BaseURL,
		TrackingNumber:  strings.TrimSpace(overrides.TrackingNumber),
		TrackingCarrier: CarrierDisplayName(overrides.TrackingCarrier),
		TrackingURL:     BuildTrackingURL(overrides.TrackingCarrier, overrides.TrackingNumber),
	}
	if order == nil {
		return info
	}

	info.OrderNumber = order.OrderNumber
	info.CustomerName = strings.TrimSpace(order.CustomerName)
	info.CustomerEmail = strings.TrimSpace(order.CustomerEmail)
	info.IsPickup = order.Type == models.OrderTypePickup
	info.PayAtPickup = order.IsPayAtPickup()
	info.PickupDate = order.PickupDate
	info.PickupTime = order.PickupTime
	info.ShippingAddress = order.Address.Lines()
	info.Subtotal = FormatMoney(order.Subtotal, order.Currency)
	info.Shipping = FormatMoney(order.ShippingFee, order.Currency)
	info.Total = FormatMoney(order.Total, order.Currency)
	if !order.CreatedAt.IsZero() {
		info.OrderDate = order.CreatedAt.In(shopLocation).Format("2006-01-02")
	}
	if shop.BaseURL != "" && order.OrderNumber != "" {
		info.OrderURL = strings.TrimRight(shop.BaseURL, "/") + "/complete?orderNo=" + url.QueryEscape(order.OrderNumber)
	}

	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItem{
			Name:       item.DisplayName(),
			Quantity:   item.Qty,
			UnitPrice:  FormatMoney(item.UnitPrice, order.Currency),
			TotalPrice: FormatMoney(item.LineTotal, order.Currency),
		})
	}
	return info
}
