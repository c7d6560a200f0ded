package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"savvycent/internal/core"
)

//go:embed templates/*.html
var templateFS embed.FS

// Mailer renders notification emails and sends them through a Transport.
type Mailer struct {
	transport Transport
	tmpl      *template.Template
}

// NewMailer parses the embedded templates.
func NewMailer(transport Transport) (*Mailer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"pct": func(v decimal.Decimal) string { return v.StringFixed(1) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Mailer{transport: transport, tmpl: tmpl}, nil
}

func (m *Mailer) SendBudgetAlert(ctx context.Context, alert core.BudgetAlert) error {
	body, err := m.render("budget_alert.html", alert)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, Message{
		To:      alert.Email,
		Subject: "Budget Alert for " + alert.AccountName,
		HTML:    body,
	})
}

func (m *Mailer) SendMonthlyReport(ctx context.Context, report core.MonthlyReport) error {
	body, err := m.render("monthly_report.html", report)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, Message{
		To:      report.Email,
		Subject: "Your Monthly Financial Report - " + report.Stats.MonthName(),
		HTML:    body,
	})
}

func (m *Mailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
