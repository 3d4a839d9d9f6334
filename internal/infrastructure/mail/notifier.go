// Package mail sends transactional email through an SMTP relay.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/notification"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultFromName   = "PCOptimize"
	defaultFromEmail  = "no-reply@pcoptimize.com"
	defaultBookingURL = "https://cal.com/pcoptimize"
)

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPKey    string
	FromName   string
	FromEmail  string
	BookingURL string
}

type mailTemplate struct {
	file            string
	subject         string
	subjectWithName string
}

var templates = map[notification.Kind]mailTemplate{
	notification.PaymentConfirmed: {
		file:            "payment_confirmed.html",
		subject:         "Tu pago fue recibido — Agenda tu sesión",
		subjectWithName: "%s, tu pago fue recibido — Agenda tu sesión",
	},
	notification.BookingConfirmed: {
		file:            "booking_confirmed.html",
		subject:         "Tu sesión está agendada",
		subjectWithName: "%s, tu sesión está agendada",
	},
}

// Notifier implements notification.Notifier over SMTP.
type Notifier struct {
	config    Config
	sender    Sender
	templates *template.Template
	logger    *zap.Logger
}

var _ notification.Notifier = (*Notifier)(nil)

// NewNotifier parses the embedded templates and dials the relay on each send.
func NewNotifier(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = defaultFromEmail
	}
	if cfg.BookingURL == "" {
		cfg.BookingURL = defaultBookingURL
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Notifier{
		config:    cfg,
		sender:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPKey),
		templates: tmpl,
		logger:    logger.Named("mail"),
	}, nil
}

// WithSender replaces the SMTP dialer.
func (n *Notifier) WithSender(s Sender) *Notifier {
	n.sender = s
	return n
}

type templateData struct {
	notification.TemplateData
	FirstName string
}

// Send renders and sends one email. Failures are logged and reported as false.
func (n *Notifier) Send(ctx context.Context, kind notification.Kind, to notification.Recipient, data notification.TemplateData) bool {
	logger := n.logger.With(zap.String("kind", string(kind)), zap.String("to", to.Email))

	if n.config.SMTPKey == "" {
		logger.Warn("SMTP key not configured, skipping email")
		return false
	}
	if to.Email == "" {
		logger.Warn("Email has no recipient")
		return false
	}

	subject, body, err := n.render(kind, to, data)
	if err != nil {
		logger.Error("Failed to render email", zap.Error(err))
		return false
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("Email cancelled", zap.Error(err))
		return false
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(n.config.FromEmail, n.config.FromName))
	if to.Name != "" {
		m.SetHeader("To", m.FormatAddress(to.Email, to.Name))
	} else {
		m.SetHeader("To", to.Email)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := n.sender.DialAndSend(m); err != nil {
		logger.Error("Failed to send email", zap.Error(err))
		return false
	}

	logger.Info("Email sent", zap.String("order_id", data.OrderID))
	return true
}

func (n *Notifier) render(kind notification.Kind, to notification.Recipient, data notification.TemplateData) (string, string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown email kind %q", kind)
	}

	if data.BookingURL == "" {
		data.BookingURL = n.config.BookingURL
	}
	td := templateData{TemplateData: data, FirstName: entity.FirstName(to.Name)}

	subject := tmpl.subject
	if td.FirstName != "" {
		subject = fmt.Sprintf(tmpl.subjectWithName, td.FirstName)
	}

	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, tmpl.file, td); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
