package utils

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/Kariqs/greenleaf-api/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type EmailData struct {
	Name    string
	Message string
	Order   *models.Order
}

type SMTPConfig struct {
	From     string
	Password string
	Host     string
	Address  string
}

// Mailer sends html emails rendered from the embedded templates.
type Mailer struct {
	config   SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(config SMTPConfig) *Mailer {
	return &Mailer{config: config, sendMail: smtp.SendMail}
}

func (m *Mailer) Enabled() bool {
	return m.config.From != "" && m.config.Address != ""
}

func (m *Mailer) SendEmail(emailTo string, emailSubject string, data EmailData, templateName string) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		m.config.From,
		emailTo,
		emailSubject,
		body.String(),
	)

	var auth smtp.Auth
	if m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.From, m.config.Password, m.config.Host)
	}

	if err := m.sendMail(m.config.Address, auth, m.config.From, []string{emailTo}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// OrderConfirmed emails the customer a receipt for a paid order.
func (m *Mailer) OrderConfirmed(order *models.Order, user *models.User) error {
	if !m.Enabled() {
		return nil
	}
	data := EmailData{
		Name:    user.FirstName,
		Message: fmt.Sprintf("Your payment for order #%d has been received and the order is confirmed.", order.ID),
		Order:   order,
	}
	return m.SendEmail(user.Email, fmt.Sprintf("Order #%d confirmed", order.ID), data, "order_confirmed.html")
}
