package services

import (
	"fmt"
	"time"

	"instituteApp/config"

	"gopkg.in/gomail.v2"
)

// EmailService provides methods for sending notification emails
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	config *config.Config
}

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
		config: cfg,
	}
}

// SendEmail sends an email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}

// SendPaymentReceivedNotification notifies a student that a payment was recorded
func (s *EmailService) SendPaymentReceivedNotification(to, formationTitle string, amount, remaining float64) error {
	subject := "Payment received"
	body := fmt.Sprintf(`
		<h2>Payment received</h2>
		<p>Formation: %s</p>
		<p>Amount received: %.2f</p>
		<p>Remaining balance: %.2f</p>
		<p>Date: %s</p>
	`, formationTitle, amount, remaining, time.Now().Format("02/01/2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendPaymentOverdueNotification notifies a student that a payment is overdue
func (s *EmailService) SendPaymentOverdueNotification(to, formationTitle string, remaining float64) error {
	subject := "Payment overdue"
	body := fmt.Sprintf(`
		<h2>Payment overdue</h2>
		<p>Formation: %s</p>
		<p>Outstanding amount: %.2f</p>
		<p>Please contact the reception to settle your payment.</p>
	`, formationTitle, remaining)

	return s.SendEmail(to, subject, body)
}

// SendPaymentReminderNotification sends a manual payment reminder
func (s *EmailService) SendPaymentReminderNotification(to, message string) error {
	subject := "Payment reminder"
	body := fmt.Sprintf(`
		<h2>Payment reminder</h2>
		<p>%s</p>
		<p>Regards,<br>The institute team</p>
	`, message)

	return s.SendEmail(to, subject, body)
}
