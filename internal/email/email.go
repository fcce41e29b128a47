// Package email abstracts the outbound mail providers behind one interface
// so the scheduler does not care whether alerts go out via SMTP or Mailjet.
package email

// Email sends a message with text and HTML parts to the recipients.
type Email interface {
	Send(subject, text, html string, recipients []string) error
}
