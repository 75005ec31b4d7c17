package mailer

import (
	"fmt"

	"vision-assistant-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendVerificationCode(toEmail, code string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderName string, log logger.ILogger) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		logger:      log,
	}
}

func (s *emailService) SendVerificationCode(toEmail, code string) error {
	if s.dialer.Host == "" {
		s.logger.Warn("MAILER", "SMTP not configured, verification code not sent", map[string]interface{}{"to": toEmail})
		return fmt.Errorf("smtp host not configured")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your Verification Code")
	m.SetBody("text/html", fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Welcome to %s</h2>
			<p>Your verification code is:</p>
			<h1 style="letter-spacing: 5px;">%s</h1>
			<p>If you didn't sign up, please ignore this email.</p>
		</div>
	`, s.senderName, code))

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("MAILER", "Failed to send verification code", map[string]interface{}{"to": toEmail, "error": err.Error()})
		return err
	}

	s.logger.Info("MAILER", "Verification code sent", map[string]interface{}{"to": toEmail})
	return nil
}
