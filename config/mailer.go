package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

// MailSettings holds the SMTP relay used for workflow notifications.
type MailSettings struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string // e.g. "Journal Office <no-reply@journal.org>"
	SkipTLSVerify bool
}

// LoadMailSettings reads SMTP_* variables. Port defaults to 587.
func LoadMailSettings() MailSettings {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	return MailSettings{
		Host:          os.Getenv("SMTP_HOST"),
		Port:          port,
		User:          os.Getenv("SMTP_USER"),
		Pass:          os.Getenv("SMTP_PASS"),
		From:          os.Getenv("SMTP_FROM"),
		SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}
}

// Configured reports whether enough settings exist to relay mail.
func (s MailSettings) Configured() bool {
	return s.Host != "" && s.From != ""
}

// SendMail relays one HTML message over STARTTLS.
func SendMail(settings MailSettings, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !settings.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	m := mail.NewMessage()
	m.SetHeader("From", settings.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(settings.Host, settings.Port, settings.User, settings.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         settings.Host,
		InsecureSkipVerify: settings.SkipTLSVerify,
	}

	return d.DialAndSend(m)
}
