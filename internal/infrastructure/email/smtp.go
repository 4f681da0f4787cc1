package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"kama_verify_server/internal/config"
	"kama_verify_server/pkg/errorx"
)

// SMTPTransport 基于 SMTP 提交的邮件通道
// Secure 为 true 时连接即 TLS（465），否则明文连接并在服务端支持时升级 STARTTLS
// 每次 Verify/Send 都新建连接，不持有收件人相关状态
type SMTPTransport struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

// NewSMTPTransport 创建 SMTP 通道，不发起连接
func NewSMTPTransport(cfg config.EmailConfig) Transport {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.Helo == "" {
		cfg.Helo = "localhost"
	}
	return &SMTPTransport{cfg: cfg, timeout: timeout}
}

// Verify 建立连接、握手并认证，随后 QUIT
func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.dial(ctx)
	if err != nil {
		return err
	}
	return t.quit(c)
}

func (t *SMTPTransport) ValidateRecipient(addr string) bool {
	return ValidAddress(addr)
}

// Send 发送一封邮件
func (t *SMTPTransport) Send(ctx context.Context, msg Message) (*SendResult, error) {
	fromHeader := msg.From
	if fromHeader == "" {
		fromHeader = t.cfg.From
	}
	from, err := mail.ParseAddress(fromHeader)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeProviderError, "parse 'from' address %q", fromHeader)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeProviderError, "parse 'to' address %q", msg.To)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.cfg.Helo)
	body, err := buildMessage(from, to, messageID, msg)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderError, "build message")
	}

	c, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.Mail(from.Address, nil); err != nil {
		return nil, smtpError(err, "sender identification")
	}
	if err := c.Rcpt(to.Address, nil); err != nil {
		return nil, smtpError(err, "recipient designation")
	}
	w, err := c.Data()
	if err != nil {
		return nil, smtpError(err, "message transmission")
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return nil, smtpError(err, "write message")
	}
	if err := w.Close(); err != nil {
		return nil, smtpError(err, "message transmission")
	}
	// 邮件已被服务器接受，QUIT 失败不影响结果
	_ = c.Quit()

	return &SendResult{
		MessageID: messageID,
		Envelope:  Envelope{From: from.Address, To: []string{to.Address}},
		Accepted:  []string{to.Address},
	}, nil
}

func (t *SMTPTransport) dial(ctx context.Context) (*smtp.Client, error) {
	if t.cfg.Host == "" || t.cfg.Port == 0 {
		return nil, errorx.New(errorx.CodeConfigError, "smtp host/port is not configured")
	}
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))

	d := net.Dialer{Timeout: t.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeProviderError, "establish connection to %s", addr)
	}
	if t.cfg.Secure {
		conn = tls.Client(conn, &tls.Config{ServerName: t.cfg.Host})
	}

	c := smtp.NewClient(conn)
	c.CommandTimeout = t.timeout
	c.SubmissionTimeout = t.timeout

	if err := c.Hello(t.cfg.Helo); err != nil {
		_ = c.Close()
		return nil, smtpError(err, "server handshake")
	}
	if !t.cfg.Secure {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
				_ = c.Close()
				return nil, smtpError(err, "starttls")
			}
		}
	}
	if t.cfg.User != "" {
		if err := c.Auth(sasl.NewPlainClient("", t.cfg.User, t.cfg.Password)); err != nil {
			_ = c.Close()
			return nil, smtpError(err, "auth")
		}
	}
	return c, nil
}

func (t *SMTPTransport) quit(c *smtp.Client) error {
	if err := c.Quit(); err != nil {
		_ = c.Close()
		return smtpError(err, "quit")
	}
	return nil
}

// smtpError 优先使用服务器返回的描述
func smtpError(err error, stage string) error {
	if se, ok := err.(*smtp.SMTPError); ok {
		return errorx.Newf(errorx.CodeProviderError, "%s: %d %s", stage, se.Code, se.Message)
	}
	return errorx.Wrap(err, errorx.CodeProviderError, stage)
}

// buildMessage 生成 RFC 5322 报文；同时提供 Text 与 HTML 时使用 multipart/alternative
func buildMessage(from, to *mail.Address, messageID string, msg Message) ([]byte, error) {
	if msg.Text == "" && msg.HTML == "" {
		return nil, fmt.Errorf("message has neither text nor html body")
	}

	buf := &bytes.Buffer{}
	_, _ = fmt.Fprintf(buf, "From: %s\r\n", from.String())
	_, _ = fmt.Fprintf(buf, "To: %s\r\n", to.String())
	_, _ = fmt.Fprintf(buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	_, _ = fmt.Fprintf(buf, "Message-Id: %s\r\n", messageID)
	_, _ = fmt.Fprintf(buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(buf, "MIME-Version: 1.0\r\n")

	if msg.Text == "" || msg.HTML == "" {
		contentType, body := "text/plain; charset=UTF-8", msg.Text
		if msg.HTML != "" {
			contentType, body = "text/html; charset=UTF-8", msg.HTML
		}
		_, _ = fmt.Fprintf(buf, "Content-Type: %s\r\n", contentType)
		_, _ = fmt.Fprintf(buf, "Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		if err := writeQuotedPrintable(buf, body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	parts := &bytes.Buffer{}
	mw := multipart.NewWriter(parts)
	_, _ = fmt.Fprintf(buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	// HTML 放在最后，RFC 2046 5.1.4 中后出现的部分优先
	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Transfer-Encoding": {"quoted-printable"},
			"Content-Type":              {part.contentType},
		})
		if err != nil {
			return nil, err
		}
		if err := writeQuotedPrintable(w, part.body); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

func writeQuotedPrintable(w interface{ Write([]byte) (int, error) }, body string) error {
	qw := quotedprintable.NewWriter(w)
	if _, err := qw.Write([]byte(strings.ReplaceAll(body, "\r\n", "\n"))); err != nil {
		return err
	}
	return qw.Close()
}
