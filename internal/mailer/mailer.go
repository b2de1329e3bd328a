package mailer

import (
	"fmt"
	"io"

	qrcode "github.com/skip2/go-qrcode"
	gomail "gopkg.in/gomail.v2"

	"ms-booking/internal/logger"
)

// Sender is the notification boundary. Business code depends on this
// interface; delivery failures are logged by callers and never roll
// back reservation state.
type Sender interface {
	Send(to, subject, htmlBody string) error
	SendWithPaymentLink(to, subject, htmlBody, paymentLink string) error
}

// Mailer delivers notifications over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func New(host string, port int, username, password, from string, log *logger.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: log,
	}
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	return m.send(to, subject, htmlBody, nil)
}

// SendWithPaymentLink embeds a QR code of the payment link so guests
// can pay from another device.
func (m *Mailer) SendWithPaymentLink(to, subject, htmlBody, paymentLink string) error {
	var png []byte
	if paymentLink != "" {
		var err error
		png, err = qrcode.Encode(paymentLink, qrcode.Medium, 256)
		if err != nil {
			m.logger.Warn("MAILER", fmt.Sprintf("failed to render payment QR: %v", err))
			png = nil
		}
	}
	return m.send(to, subject, htmlBody, png)
}

func (m *Mailer) send(to, subject, htmlBody string, qrPNG []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if qrPNG != nil {
		msg.Embed("payment-qr.png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qrPNG)
			return err
		}))
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	m.logger.Info("MAILER", fmt.Sprintf("sent %q to %s", subject, to))
	return nil
}
