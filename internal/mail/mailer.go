package mail

import (
	"context"
	"errors"
)

// ErrNotConfigured means the outbound channel is missing settings; callers
// surface it as a service-unavailable, never a silent success.
var ErrNotConfigured = errors.New("mail transport not configured")

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer dispatches a message synchronously. Implementations must honor the
// context deadline; a timed-out send is a failure the caller can see.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// OTPMessage builds the verification mail for a one-time code.
func OTPMessage(to, code, purpose string) Message {
	subject := "Eventra - Email Verification OTP"
	if purpose == "login" {
		subject = "Eventra - Login Verification OTP"
	}

	return Message{
		To:      to,
		Subject: subject,
		Body: "Your OTP for " + purpose + " verification is: " + code + "\n" +
			"This OTP will expire in 5 minutes.\n" +
			"If you didn't request this, please ignore this email.\n",
	}
}
