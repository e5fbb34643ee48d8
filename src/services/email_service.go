// backend/src/services/email_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/config"
	"github.com/mingli/holding-analyzer/backend/src/logger"
)

func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

// formatMoney renders an amount in its currency's conventional format,
// falling back to a plain fixed-point string for codes go-money does not
// know.
func formatMoney(amount decimal.Decimal, currencyCode string) string {
	if money.GetCurrency(currencyCode) == nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), currencyCode)
	}
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return money.New(cents, currencyCode).Display()
}

// sortedCurrencies returns the map keys in a stable order so report
// bodies render identically for identical inputs.
func sortedCurrencies(totals map[string]decimal.Decimal) []string {
	currencies := make([]string, 0, len(totals))
	for currency := range totals {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	return currencies
}

// buildReportBodies renders the plain-text and HTML versions of a
// portfolio report.
func buildReportBodies(report PortfolioReport) (string, string) {
	date := report.GeneratedAt.Format("2006-01-02")

	var plain strings.Builder
	fmt.Fprintf(&plain, "Portfolio report for %s\n\n", date)
	fmt.Fprintf(&plain, "%-10s %-8s %12s %14s %14s\n", "Symbol", "Account", "Quantity", "Avg Price", "Market Value")
	for _, h := range report.Holdings {
		fmt.Fprintf(&plain, "%-10s %-8s %12s %14s %14s\n",
			h.Symbol, h.AccountType,
			h.Quantity.StringFixed(4),
			formatMoney(h.PurchasePrice, h.Currency),
			formatMoney(h.MarketValue, h.Currency))
	}
	plain.WriteString("\nMarket value totals:\n")
	for _, currency := range sortedCurrencies(report.Totals) {
		fmt.Fprintf(&plain, "  %s\n", formatMoney(report.Totals[currency], currency))
	}
	plain.WriteString("\nRealized P&L:\n")
	for _, currency := range sortedCurrencies(report.RealizedTotals) {
		fmt.Fprintf(&plain, "  %s\n", formatMoney(report.RealizedTotals[currency], currency))
	}

	var html strings.Builder
	fmt.Fprintf(&html, `<html><body style="font-family: Arial, sans-serif; line-height: 1.6;">`)
	fmt.Fprintf(&html, "<p>Portfolio report for %s</p>", date)
	html.WriteString(`<table border="1" cellpadding="6" cellspacing="0"><tr><th>Symbol</th><th>Account</th><th>Quantity</th><th>Avg Price</th><th>Market Value</th></tr>`)
	for _, h := range report.Holdings {
		fmt.Fprintf(&html, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			h.Symbol, h.AccountType,
			h.Quantity.StringFixed(4),
			formatMoney(h.PurchasePrice, h.Currency),
			formatMoney(h.MarketValue, h.Currency))
	}
	html.WriteString("</table><p>Market value totals:</p><ul>")
	for _, currency := range sortedCurrencies(report.Totals) {
		fmt.Fprintf(&html, "<li>%s</li>", formatMoney(report.Totals[currency], currency))
	}
	html.WriteString("</ul><p>Realized P&amp;L:</p><ul>")
	for _, currency := range sortedCurrencies(report.RealizedTotals) {
		fmt.Fprintf(&html, "<li>%s</li>", formatMoney(report.RealizedTotals[currency], currency))
	}
	html.WriteString("</ul></body></html>")

	return plain.String(), html.String()
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

func (s *SMTPEmailService) SendPortfolioReport(toEmail string, report PortfolioReport) error {
	from := s.SenderEmail
	to := []string{toEmail}
	subject := fmt.Sprintf("Portfolio report for %s", report.GeneratedAt.Format("2006-01-02"))
	body, _ := buildReportBodies(report)

	header := make(map[string]string)
	header["From"] = from
	header["To"] = toEmail
	header["Subject"] = subject
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, from, to, []byte(message)); err != nil {
		logger.L.Error("Failed to send portfolio report via SMTP", "error", err, "to", toEmail)
		return fmt.Errorf("failed to send portfolio report via SMTP: %w", err)
	}
	logger.L.Info("Portfolio report sent successfully via SMTP", "to", toEmail)
	return nil
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendPortfolioReport(toEmail string, report PortfolioReport) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := fmt.Sprintf("Portfolio report for %s", report.GeneratedAt.Format("2006-01-02"))
	plainTextBody, htmlBody := buildReportBodies(report)

	message := s.mg.NewMessage(from, subject, plainTextBody, toEmail)
	message.SetHtml(htmlBody)
	message.AddTag("portfolio-report")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send portfolio report via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Portfolio report sent successfully via Mailgun", "to", toEmail, "id", id, "mailgunResp", resp)
	return nil
}

type MockEmailService struct{}

func (m *MockEmailService) SendPortfolioReport(toEmail string, report PortfolioReport) error {
	logger.L.Info("MockEmailService: Would send portfolio report.",
		"to", toEmail,
		"holdings", len(report.Holdings),
		"generatedAt", report.GeneratedAt.Format("2006-01-02"))
	return nil
}
