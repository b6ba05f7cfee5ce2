package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"cryptotracker/internal/models"
)

// EmailNotifier renders and sends the owner-facing message for a
// triggered alert over plain SMTP.
type EmailNotifier struct {
	host string
	port string
	auth smtp.Auth
	from string

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(host, port, user, pass, from string) *EmailNotifier {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &EmailNotifier{
		host: host,
		port: port,
		auth: auth,
		from: from,
		send: smtp.SendMail,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, event models.TriggeredEvent) error {
	if event.OwnerEmail == "" {
		return fmt.Errorf("no contact address for alert %s", event.AlertID)
	}

	subject := fmt.Sprintf("Price alert: %s is %s $%.2f", event.CoinID, event.Direction, event.TargetPrice)

	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\r\n\r\n", event.OwnerName)
	fmt.Fprintf(&body, "Your price alert for %s just fired.\r\n\r\n", event.CoinID)
	fmt.Fprintf(&body, "Target: %s $%.2f\r\n", event.Direction, event.TargetPrice)
	fmt.Fprintf(&body, "Current price: $%.2f\r\n", event.CurrentPrice)
	fmt.Fprintf(&body, "Triggered at: %s\r\n", event.TriggeredAt.Format("2006-01-02 15:04:05 MST"))

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, event.OwnerEmail, subject, body.String())

	addr := n.host + ":" + n.port
	return n.send(addr, n.auth, n.from, []string{event.OwnerEmail}, []byte(msg))
}
