package service

import (
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"github.com/portfest/registration-api/internal/model"
)

// Notifier is told about accepted registrations. Notification is
// best-effort and must never affect the admission outcome.
type Notifier interface {
	RegistrationAccepted(reg *model.Registration)
}

// NoopNotifier disables notifications.
type NoopNotifier struct{}

func (NoopNotifier) RegistrationAccepted(*model.Registration) {}

// EmailNotifier sends a plain-text confirmation email over SMTP.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(host string, port int, username, password, from string) *EmailNotifier {
	return &EmailNotifier{host: host, port: port, username: username, password: password, from: from}
}

// RegistrationAccepted sends the confirmation asynchronously so the HTTP
// response is never held up by SMTP.
func (n *EmailNotifier) RegistrationAccepted(reg *model.Registration) {
	go func() {
		m := gomail.NewMessage()
		m.SetHeader("From", n.from)
		m.SetHeader("To", reg.Email)
		m.SetHeader("Subject", "Registration confirmed: "+reg.EventKey)
		m.SetBody("text/plain", confirmationBody(reg))

		d := gomail.NewDialer(n.host, n.port, n.username, n.password)
		if err := d.DialAndSend(m); err != nil {
			log.Printf("send confirmation email to %s: %v", reg.Email, err)
		}
	}()
}

func confirmationBody(reg *model.Registration) string {
	return fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your registration for %s is confirmed.\n\n"+
			"Registration ID: %s\n"+
			"Transaction ID:  %s\n\n"+
			"Keep this ID handy; your entry pass is generated from it.\n",
		reg.FirstName, reg.EventKey, reg.ID, reg.TransactionID,
	)
}
