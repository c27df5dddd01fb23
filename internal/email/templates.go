package email

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

func (i OrderItem) DisplayName() string {
	if i.Name == "" {
		return i.ProductID
	}
	return i.Name
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

var funcs = template.FuncMap{"money": formatMoney}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #4f46e5; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thank you for your order</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
		<p style="margin: 5px 0 20px 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderNumber}}</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Items}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.DisplayName}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{$.Currency}} {{money .Price}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{$.Currency}} {{money .Subtotal}}</td>
				</tr>
			{{- end}}
			</tbody>
		</table>
		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #4f46e5; margin-left: 10px;">{{.Currency}} {{money .Total}}</span>
		</div>
		<p style="font-size: 12px; color: #999;">This is an automated message.</p>
	</div>
</body>
</html>`))

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">{{.Headline}}</h1>
	<p>Order <strong style="font-family: monospace;">{{.OrderNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
	{{- if .Note}}
	<p style="background: #f8f9fa; padding: 15px; border-radius: 5px;">{{.Note}}</p>
	{{- end}}
	<p style="font-size: 12px; color: #999;">This is an automated message.</p>
</body>
</html>`))

type confirmationData struct {
	OrderNumber string
	Currency    string
	Items       []OrderItem
	Total       decimal.Decimal
}

type statusData struct {
	Headline    string
	OrderNumber string
	Status      string
	Note        string
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderNumber, currency string, total decimal.Decimal, items []OrderItem) (string, error) {
	var buf bytes.Buffer
	err := confirmationTmpl.Execute(&buf, confirmationData{
		OrderNumber: orderNumber,
		Currency:    currency,
		Items:       items,
		Total:       total,
	})
	return buf.String(), err
}

// BuildStatusUpdateBody builds the HTML body for a status change email.
func BuildStatusUpdateBody(headline, orderNumber, status, note string) (string, error) {
	var buf bytes.Buffer
	err := statusTmpl.Execute(&buf, statusData{Headline: headline, OrderNumber: orderNumber, Status: status, Note: note})
	return buf.String(), err
}

// formatMoney renders an amount with two decimals and comma separators.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var result strings.Builder
	remainder := len(intPart) % 3
	if remainder > 0 {
		result.WriteString(intPart[:remainder])
	}
	for i := remainder; i < len(intPart); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(intPart[i : i+3])
	}
	return sign + result.String() + "." + frac
}
