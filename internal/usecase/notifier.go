package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/pkg/utils"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Notifier tells a customer their booking is confirmed
type Notifier interface {
	BookingConfirmed(ctx context.Context, detail *entity.BookingDetail) error
}

// LogNotifier is used when no mail server is configured
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(zap.String("notifier", "log"))}
}

func (n *LogNotifier) BookingConfirmed(_ context.Context, d *entity.BookingDetail) error {
	n.log.Info("Booking confirmation",
		zap.String("booking_id", d.ID.String()),
		zap.String("email", d.User.Email),
		zap.String("movie", d.Movie.Title),
	)
	return nil
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<h2>Hi {{.Name}},</h2>
<p>Your booking for <strong>{{.Movie}}</strong> is confirmed.</p>
<p><strong>Date:</strong> {{.Date}}<br>
<strong>Time:</strong> {{.Time}}<br>
<strong>Seats:</strong> {{.Seats}}<br>
<strong>Amount:</strong> {{.Amount}}</p>
<p>Enjoy the show!</p>`))

// mailSender is satisfied by *mail.Client
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends confirmation emails over SMTP
type SMTPNotifier struct {
	config utils.EmailConfig
	client mailSender
	log    *zap.Logger
}

func NewSMTPNotifier(config utils.EmailConfig, log *zap.Logger) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if config.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	}
	if config.Port > 0 {
		opts = append(opts, mail.WithPort(config.Port))
	}
	if config.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.User),
			mail.WithPassword(config.Password),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPNotifier{
		config: config,
		client: client,
		log:    log.With(zap.String("notifier", "smtp")),
	}, nil
}

// headerText flattens line breaks so a value cannot start a new header
var headerText = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func (n *SMTPNotifier) message(d *entity.BookingDetail) (*mail.Msg, error) {
	var body bytes.Buffer
	err := confirmationTemplate.Execute(&body, map[string]string{
		"Name":   d.User.Name,
		"Movie":  d.Movie.Title,
		"Date":   d.Show.ShowDateTime.Format("Mon, 02 Jan 2006"),
		"Time":   d.Show.ShowDateTime.Format("15:04"),
		"Seats":  strings.Join(d.BookedSeats, ", "),
		"Amount": strconv.FormatFloat(d.Amount, 'f', 2, 64),
	})
	if err != nil {
		return nil, fmt.Errorf("render confirmation email: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(n.config.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(d.User.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	// go-mail Q-encodes non-ASCII header text
	m.Subject(fmt.Sprintf("Payment Confirmation: \"%s\" booked!", headerText.Replace(d.Movie.Title)))
	m.SetBodyString(mail.TypeTextHTML, body.String())

	return m, nil
}

func (n *SMTPNotifier) BookingConfirmed(ctx context.Context, d *entity.BookingDetail) error {
	m, err := n.message(d)
	if err != nil {
		return err
	}

	if err := n.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	n.log.Info("Booking confirmation sent", zap.String("booking_id", d.ID.String()))
	return nil
}
