package mail

import (
	"fmt"

	"github.com/rensmac/sparq-chat/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends transactional email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates a new SMTP mailer
func NewMailer(cfg config.MailConfig) *Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// IsConfigured reports whether SMTP credentials are present
func (m *Mailer) IsConfigured() bool {
	return m.dialer.Username != ""
}

const otpBody = `
<html>
	<body style="font-family: Arial; padding: 20px; background: #f5f5f5;">
		<div style="max-width: 500px; margin: 0 auto; background: white; padding: 30px; border-radius: 10px;">
			<h2 style="color: #cc785c; text-align: center;">Welcome to Sparq Chat!</h2>
			<p>Hi <strong>%s</strong>,</p>
			<p>Your verification code:</p>
			<div style="background: #f8f8f8; padding: 20px; margin: 30px 0; border-radius: 8px; text-align: center;">
				<h1 style="color: #cc785c; font-size: 36px; letter-spacing: 8px; font-family: 'Courier New', monospace;">%s</h1>
			</div>
			<p style="color: #666;">This code expires in 10 minutes.</p>
		</div>
	</body>
</html>
`

// SendOTP delivers a verification code to the given address
func (m *Mailer) SendOTP(to, username, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your Verification Code - Sparq Chat")
	msg.SetBody("text/html", fmt.Sprintf(otpBody, username, code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}
	return nil
}
