package mailer

import (
	"fmt"
	"net/mail"
)

// Tags are provider-side labels attached to a message.
type Tags map[string]string

// Recipient formats a name and address as an RFC 5322 mailbox.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return (&mail.Address{Name: name, Address: email}).String()
}

// Email is a fully rendered message for a single recipient.
type Email struct {
	Headers map[string]string
	Tags    Tags
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Validate checks the fields every provider needs.
func (e *Email) Validate() error {
	if e == nil || e.To == "" {
		return ErrNoRecipient
	}
	if e.Subject == "" {
		return ErrNoSubject
	}
	if e.HTML == "" && e.Text == "" {
		return ErrNoContent
	}
	return nil
}

// Receipt is what a provider returns for an accepted message.
type Receipt struct {
	MessageID string
}

// FormatSender builds the From header from an address and an optional display name.
func FormatSender(email, name string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
