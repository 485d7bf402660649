package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/config"
)

// SMTPClient sends the occasional outgoing message, such as an
// unsubscribe request to a mailto: link.
type SMTPClient struct {
	config *config.AccountConfig
	logger *logrus.Logger
	now    func() time.Time
}

// EmailMessage represents an email to be sent
type EmailMessage struct {
	To       []string
	Subject  string
	BodyText string
}

// NewSMTPClient creates a new SMTP client
func NewSMTPClient(cfg *config.AccountConfig) (*SMTPClient, error) {
	if !cfg.HasSMTP() {
		return nil, fmt.Errorf("account %s: SMTP_HOST is not configured", cfg.Name)
	}
	return &SMTPClient{
		config: cfg,
		logger: logrus.New(),
		now:    time.Now,
	}, nil
}

// Send sends an email. Port 465 uses implicit TLS, anything else STARTTLS.
func (c *SMTPClient) Send(msg *EmailMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	body, err := c.createMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	addr := net.JoinHostPort(c.config.SMTPHost, strconv.Itoa(c.config.SMTPPort))
	tlsConfig := &tls.Config{
		ServerName: c.config.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}

	var client *smtp.Client
	if c.config.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		client, err = smtp.NewClient(conn, c.config.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	} else {
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	defer client.Close()

	if c.config.SMTPPassword != "" {
		auth := sasl.NewPlainClient("", c.config.SMTPUsername, c.config.SMTPPassword)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(c.config.SMTPUsername, nil); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send data command: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Sent message")
	return client.Quit()
}

// createMessage renders a single-part text/plain message
func (c *SMTPClient) createMessage(msg *EmailMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(c.now())
	h.SetAddressList("From", []*mail.Address{{Address: c.config.SMTPUsername}})

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, msg.BodyText); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SetLogger sets the logger for the client
func (c *SMTPClient) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}
