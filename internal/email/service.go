package email

import (
	"fmt"
	"net/smtp"

	"github.com/shopspring/decimal"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderNumber, currency string, total decimal.Decimal, items []OrderItem) error {
	body, err := BuildOrderConfirmationBody(orderNumber, currency, total, items)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return s.deliver(to, fmt.Sprintf("Order confirmation (%s)", orderNumber), body)
}

// SendStatusUpdate tells the customer their order moved to a new status.
func (s *Service) SendStatusUpdate(to, orderNumber, status, note string) error {
	headline := statusHeadline(status)
	body, err := BuildStatusUpdateBody(headline, orderNumber, status, note)
	if err != nil {
		return fmt.Errorf("render status update: %w", err)
	}
	return s.deliver(to, fmt.Sprintf("%s (%s)", headline, orderNumber), body)
}

func statusHeadline(status string) string {
	switch status {
	case "processing":
		return "Payment received"
	case "shipped":
		return "Your order has shipped"
	case "delivered":
		return "Your order was delivered"
	case "cancelled":
		return "Your order was cancelled"
	case "refunded":
		return "Your order was refunded"
	default:
		return "Order update"
	}
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, nil, s.from, []string{to}, []byte(msg))
}
