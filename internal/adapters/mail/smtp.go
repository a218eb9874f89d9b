package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/metrics"
)

const (
	connectTimeout = 10 * time.Second
	socketTimeout  = 15 * time.Second
)

// SMTPMailer sends HTML mail over a hand-dialed connection so that
// connect and IO timeouts hold even on a stalled server.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

var _ domain.Mailer = (*SMTPMailer)(nil)

// NewSMTP builds a mailer. The authenticated user doubles as sender.
func NewSMTP(host string, port int, user, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, password: password, from: user}
}

// Configured reports whether credentials are present.
func (m *SMTPMailer) Configured() bool {
	return m.user != "" && m.password != ""
}

// dial prefers IPv4: some hosts publish AAAA records with no outbound
// IPv6 route, which stalls until the client timeout.
func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: connectTimeout}
	addr4 := fmt.Sprintf("%s:%d", m.host, m.port)
	conn, err := dialer.DialContext(ctx, "tcp4", addr4)
	if err == nil {
		return conn, nil
	}
	return dialer.DialContext(ctx, "tcp", addr4)
}

// Send delivers one HTML email.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Configured() {
		return fmt.Errorf("mail: smtp credentials not configured")
	}
	start := time.Now()
	err := m.send(ctx, to, subject, htmlBody)
	metrics.ObserveNetworkRequest("smtp", "send", m.host, start, err)
	return err
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("mail: connect: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(socketTimeout))

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("mail: greeting: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("mail: auth: %w", err)
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("mail: sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("mail: recipient: %w", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: data: %w", err)
	}
	msg := buildMessage(m.from, to, subject, htmlBody)
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("mail: write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("mail: close body: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return b.String()
}
