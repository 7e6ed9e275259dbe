package email

import "context"

// Attachment is a rendered file carried on an outgoing message.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Message is one outgoing email. SenderID is the resolved ERP actor the mail
// is authored as; From is the mailbox actually placed on the wire.
type Message struct {
	SenderID    int64
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}
