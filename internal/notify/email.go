package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPConfig is the mail relay configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether a relay is set up; when it isn't, main falls
// back to the log notifier.
func (c SMTPConfig) Configured() bool { return c.Host != "" && c.From != "" }

var appointmentTmpl = template.Must(template.New("appointment").Parse(`
<div style="font-family: Arial, sans-serif; padding: 20px;">
  <h2>Good news, a donor is on the way.</h2>
  <p>Hello <strong>{{.RequesterName}}</strong>,</p>
  <p>A donor has accepted your blood request for <strong>{{.PatientName}}</strong>.</p>
  <h3>Donation details</h3>
  <p>Donor: {{.DonorName}} ({{.DonorMobile}})</p>
  <p>Scheduled: {{.Date}} at {{.Time}}</p>
  <p>Message: {{if .Message}}{{.Message}}{{else}}No message provided.{{end}}</p>
  <p>Please coordinate with the hospital to receive the donor.</p>
</div>
`))

// SMTPNotifier sends appointment confirmations over a plain SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

func (n *SMTPNotifier) AppointmentScheduled(_ context.Context, notice AppointmentNotice) error {
	var body bytes.Buffer
	if err := appointmentTmpl.Execute(&body, notice); err != nil {
		return fmt.Errorf("render appointment mail: %w", err)
	}

	var msg strings.Builder
	msg.WriteString("From: " + n.cfg.From + "\r\n")
	msg.WriteString("To: " + notice.RequesterEmail + "\r\n")
	msg.WriteString("Subject: BloodLink - Donor Appointment Confirmed\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{notice.RequesterEmail}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send appointment mail: %w", err)
	}
	return nil
}

// LogNotifier records notifications instead of delivering them. Used in
// development and tests where no relay exists.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) AppointmentScheduled(ctx context.Context, notice AppointmentNotice) error {
	n.logger.InfoContext(ctx, "appointment notification (log sink)",
		"requester_email", notice.RequesterEmail,
		"patient", notice.PatientName,
		"donor", notice.DonorName,
		"date", notice.Date,
		"time", notice.Time,
	)
	return nil
}
