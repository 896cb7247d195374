package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"
)

const (
	TemplateOrderConfirmation   = "order_confirmation"
	TemplatePaymentConfirmation = "payment_confirmation"
	TemplateOrderShipped        = "order_shipped"
)

// OrderInfo is the data every order template renders from. Amounts are
// preformatted for display.
type OrderInfo struct {
	OrderNumber     string
	OrderURL        string
	CustomerName    string
	CustomerEmail   string
	ShopName        string
	ShopURL         string
	IsPickup        bool
	PayAtPickup     bool
	PickupDate      string
	PickupTime      string
	ShippingAddress []string
	TrackingNumber  string
	TrackingURL     string
	TrackingCarrier string
	OrderDate       string
	Items           []OrderItem
	Subtotal        string
	Shipping        string
	Total           string
}

type OrderItem struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

type emailTemplate struct {
	subject string
	text    string
	html    string
}

var templates = map[string]emailTemplate{
	TemplateOrderConfirmation: {
		subject: "Order received - {{.OrderNumber}} - {{.ShopName}}",
		text:    orderConfirmationText,
		html:    orderConfirmationHTML,
	},
	TemplatePaymentConfirmation: {
		subject: "Payment received - {{.OrderNumber}} - {{.ShopName}}",
		text:    paymentConfirmationText,
		html:    paymentConfirmationHTML,
	},
	TemplateOrderShipped: {
		subject: "Your order has shipped - {{.OrderNumber}}",
		text:    orderShippedText,
		html:    orderShippedHTML,
	},
}

type Renderer struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func NewRenderer() (*Renderer, error) {
	text := texttemplate.New("email")
	html := htmltemplate.New("email")
	for name, t := range templates {
		if _, err := text.New(name + "_subject").Parse(t.subject); err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", name, err)
		}
		if _, err := text.New(name + "_text").Parse(t.text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", name, err)
		}
		if _, err := html.New(name + "_html").Parse(layoutHTML(t.html)); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", name, err)
		}
	}
	return &Renderer{text: text, html: html}, nil
}

func (r *Renderer) Render(templateName string, data *OrderInfo) (*Email, error) {
	if _, ok := templates[templateName]; !ok {
		return nil, fmt.Errorf("unknown email template %q", templateName)
	}
	if data == nil {
		return nil, fmt.Errorf("order info is required")
	}

	var subject, text, html bytes.Buffer
	if err := r.text.ExecuteTemplate(&subject, templateName+"_subject", data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := r.text.ExecuteTemplate(&text, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := r.html.ExecuteTemplate(&html, templateName+"_html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &Email{
		To:          data.CustomerEmail,
		Subject:     subject.String(),
		Text:        text.String(),
		HTML:        html.String(),
		Tag:         templateName,
		OrderNumber: data.OrderNumber,
	}, nil
}

var defaultRenderer = sync.OnceValues(NewRenderer)

// Send renders templateName and sends it through p. A nil provider or an
// order without an email address is a no-op.
func Send(ctx context.Context, p Provider, templateName string, info *OrderInfo) error {
	if p == nil || info == nil || info.CustomerEmail == "" {
		return nil
	}
	renderer, err := defaultRenderer()
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	email, err := renderer.Render(templateName, info)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	return p.SendEmail(ctx, email)
}

func SendOrderConfirmation(ctx context.Context, p Provider, info *OrderInfo) error {
	return Send(ctx, p, TemplateOrderConfirmation, info)
}

func SendPaymentConfirmation(ctx context.Context, p Provider, info *OrderInfo) error {
	return Send(ctx, p, TemplatePaymentConfirmation, info)
}

func SendOrderShipped(ctx context.Context, p Provider, info *OrderInfo) error {
	return Send(ctx, p, TemplateOrderShipped, info)
}

const itemsText = `{{range .Items}}- {{.Name}} x{{.Quantity}}  {{.TotalPrice}}
{{end}}
Subtotal: {{.Subtotal}}
{{if not .IsPickup}}Shipping: {{.Shipping}}
{{end}}Total: {{.Total}}`

const fulfillmentText = `{{if .IsPickup}}Pickup: {{.PickupDate}} {{.PickupTime}}
{{if .PayAtPickup}}Please pay at the counter when you collect your order.
{{end}}{{else}}Ship to:
{{range .ShippingAddress}}  {{.}}
{{end}}{{end}}`

const orderConfirmationText = `Hello {{.CustomerName}},

Thank you for your order.

Order number: {{.OrderNumber}}
Order date: {{.OrderDate}}

` + itemsText + `

` + fulfillmentText + `
{{if .OrderURL}}Order status: {{.OrderURL}}
{{end}}
{{.ShopName}}
{{.ShopURL}}
`

const paymentConfirmationText = `Hello {{.CustomerName}},

We received your payment of {{.Total}} for order {{.OrderNumber}}.
{{if .IsPickup}}We look forward to seeing you on {{.PickupDate}}.{{else}}We'll email you again when your order ships.{{end}}

{{.ShopName}}
`

const orderShippedText = `Hello {{.CustomerName}},

Your order {{.OrderNumber}} is on its way.

Carrier: {{.TrackingCarrier}}
Tracking number: {{.TrackingNumber}}
{{if .TrackingURL}}Track your parcel: {{.TrackingURL}}
{{end}}
` + fulfillmentText + `
{{.ShopName}}
`

func layoutHTML(body string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .box { background: #f9fafb; padding: 16px; border: 1px solid #e5e7eb; border-radius: 6px; margin: 12px 0; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 6px 0; border-bottom: 1px solid #e5e7eb; }
    .num { text-align: right; }
    .footer { color: #6b7280; font-size: 14px; margin-top: 24px; }
  </style>
</head>
<body>
` + body + `
  <p class="footer"><a href="{{.ShopURL}}">{{.ShopName}}</a></p>
</body>
</html>
`
}

const itemsHTML = `
  <table>
    {{range .Items}}<tr><td>{{.Name}} &times; {{.Quantity}}</td><td class="num">{{.TotalPrice}}</td></tr>
    {{end}}<tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
    {{if not .IsPickup}}<tr><td>Shipping</td><td class="num">{{.Shipping}}</td></tr>{{end}}
    <tr><td><strong>Total</strong></td><td class="num"><strong>{{.Total}}</strong></td></tr>
  </table>`

const fulfillmentHTML = `
  <div class="box">
    {{if .IsPickup}}<strong>Pickup:</strong> {{.PickupDate}} {{.PickupTime}}
    {{if .PayAtPickup}}<br>Please pay at the counter when you collect your order.{{end}}
    {{else}}<strong>Ship to:</strong><br>{{range .ShippingAddress}}{{.}}<br>{{end}}{{end}}
  </div>`

const orderConfirmationHTML = `
  <h1>Thank you for your order</h1>
  <p>Hello {{.CustomerName}},</p>
  <div class="box"><strong>Order number:</strong> {{.OrderNumber}}<br><strong>Order date:</strong> {{.OrderDate}}</div>
` + itemsHTML + fulfillmentHTML + `
  {{if .OrderURL}}<p><a href="{{.OrderURL}}">View your order</a></p>{{end}}`

const paymentConfirmationHTML = `
  <h1>Payment received</h1>
  <p>Hello {{.CustomerName}},</p>
  <p>We received your payment of <strong>{{.Total}}</strong> for order {{.OrderNumber}}.</p>
  <p>{{if .IsPickup}}We look forward to seeing you on {{.PickupDate}}.{{else}}We'll email you again when your order ships.{{end}}</p>`

const orderShippedHTML = `
  <h1>Your order has shipped</h1>
  <p>Hello {{.CustomerName}}, your order {{.OrderNumber}} is on its way.</p>
  <div class="box">
    <strong>Carrier:</strong> {{.TrackingCarrier}}<br>
    <strong>Tracking number:</strong> {{.TrackingNumber}}
    {{if .TrackingURL}}<br><a href="{{.TrackingURL}}">Track your parcel</a>{{end}}
  </div>` + fulfillmentHTML
