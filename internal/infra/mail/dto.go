package mail

import "gopkg.in/gomail.v2"

type LeadEmailData struct {
	LocationName string
	LeadID       string
	LeadType     string
	Name         string
	PhoneNumber  string
	Email        string
	Message      string
	Reason       string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	From   string
	dialer dialer
}
