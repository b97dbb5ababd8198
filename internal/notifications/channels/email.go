package channels

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EmailConfig holds the SMTP destination for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	To       string // comma-separated recipient list
	Username string
	Password string
}

// EmailHandler sends a packet-ready message over SMTP.
type EmailHandler struct {
	cfg    EmailConfig
	logger *zap.Logger
}

// NewEmailHandler creates an SMTP email channel.
func NewEmailHandler(cfg EmailConfig, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{cfg: cfg, logger: logger}
}

// Name returns the channel's name for logging.
func (h *EmailHandler) Name() string { return "email" }

// Send emails msg to the configured recipients.
func (h *EmailHandler) Send(ctx context.Context, msg Message) error {
	to := strings.Split(h.cfg.To, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}

	mime := h.buildMIMEMessage(msg, to)

	var auth smtp.Auth
	if h.cfg.Username != "" && h.cfg.Password != "" {
		auth = smtp.PlainAuth("", h.cfg.Username, h.cfg.Password, h.cfg.Host)
	}

	port := h.cfg.Port
	if port == 0 {
		port = 587
	}
	serverAddr := fmt.Sprintf("%s:%d", h.cfg.Host, port)

	done := make(chan error, 1)
	go func() {
		if port == 465 {
			done <- h.sendTLS(serverAddr, auth, h.cfg.From, to, mime)
		} else {
			done <- smtp.SendMail(serverAddr, auth, h.cfg.From, to, []byte(mime))
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("email send timed out")
	}
}

func (h *EmailHandler) sendTLS(serverAddr string, auth smtp.Auth, from string, to []string, message string) error {
	tlsConfig := &tls.Config{ServerName: strings.Split(serverAddr, ":")[0]}

	conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, tlsConfig.ServerName)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("setting recipient %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening data writer: %w", err)
	}
	if _, err := writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return writer.Close()
}

func (h *EmailHandler) buildMIMEMessage(msg Message, to []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", h.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("MIME-Version: 1.0\r\n\r\n")
	b.WriteString(markdownToHTML(msg.Body))
	return b.String()
}

func markdownToHTML(markdown string) string {
	html := markdown
	html = strings.ReplaceAll(html, "**", "")
	html = strings.ReplaceAll(html, "\n", "<br>\n")
	return fmt.Sprintf(`<!DOCTYPE html><html><body><div>%s</div></body></html>`, html)
}
