package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// Mailer composes and submits the operator email over the local relay.
type Mailer struct {
	logger zerolog.Logger
	relay  string
	from   string
	send   func(addr, from, to string, msg []byte) error
	now    func() time.Time
}

// NewMailer builds a mailer for a relay like "localhost:25".
func NewMailer(logger zerolog.Logger, relay, from string) *Mailer {
	return &Mailer{
		logger: logger,
		relay:  relay,
		from:   from,
		send: func(addr, from, to string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, []string{to}, msg)
		},
		now: time.Now,
	}
}

// SendTomorrow mails tomorrow's expected rule and volume to the
// record's operator address.
func (m *Mailer) SendTomorrow(ctx context.Context, rec *archive.Record, tomorrow Tomorrow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := rec.Notifications.AdminUser
	if to == "" {
		m.logger.Debug().Str("archive", rec.Meta.Name).Msg("no adminUser; tomorrow notice skipped")
		return nil
	}

	subject := fmt.Sprintf("[%s] %s: tomorrow %s, set %d",
		Self, rec.Meta.Name, tomorrow.Rule, tomorrow.SetIndex)
	body := m.tomorrowBody(rec, tomorrow)

	msg, err := m.compose(to, subject, body)
	if err != nil {
		return fmt.Errorf("compose operator mail: %w", err)
	}
	if err := m.send(m.relay, m.from, to, msg); err != nil {
		return fmt.Errorf("send operator mail: %w", err)
	}

	m.logger.Info().
		Str("archive", rec.Meta.Name).
		Str("to", to).
		Str("rule", string(tomorrow.Rule)).
		Int("set", tomorrow.SetIndex).
		Msg("tomorrow notice mailed")
	return nil
}

func (m *Mailer) tomorrowBody(rec *archive.Record, tomorrow Tomorrow) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Archive:  %s (%s)\n", rec.Meta.Name, rec.Meta.Description)
	fmt.Fprintf(&b, "Tomorrow: %s\n", tomorrow.Date)
	fmt.Fprintf(&b, "Rule:     %s\n", tomorrow.Rule)
	fmt.Fprintf(&b, "Set:      %d of %d\n", tomorrow.SetIndex, rec.Storage.TotalSets(tomorrow.Rule))
	if tomorrow.IncReset {
		fmt.Fprintf(&b, "Note:     incremental chain will be re-based\n")
	}
	fmt.Fprintf(&b, "Device:   %s\n", rec.Storage.RemoteDevice)
	return b.String()
}

func (m *Mailer) compose(to, subject, body string) ([]byte, error) {
	fromAddr := &mail.Address{Name: Self, Address: m.from}
	toAddr := &mail.Address{Address: to}

	var header mail.Header
	header.SetDate(m.now())
	header.SetAddressList("From", []*mail.Address{fromAddr})
	header.SetAddressList("To", []*mail.Address{toAddr})
	header.SetSubject(subject)

	var buf bytes.Buffer
	writer, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(writer, body); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
