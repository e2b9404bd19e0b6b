package mail

import (
	"fmt"

	"innovatech/accounts/internal/models"
)

// ActivationMessage composes the account-activation email. The link
// carries the opaque user identifier and the stateless token.
func ActivationMessage(user models.User, activationLink string) Message {
	name := user.FirstName
	if name == "" {
		name = user.Email
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nPlease click the link below to activate your account.\n%s\n",
		name, activationLink,
	)
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Please click the link below to activate your account.</p><a href="%s">Activate Account</a>`,
		name, activationLink,
	)

	return Message{
		To:      user.Email,
		Subject: "Innovative Tech Solutions - Activate Your Account",
		Text:    text,
		HTML:    html,
	}
}

// OTPMessage composes the second-factor code email.
func OTPMessage(user models.User, code string) Message {
	name := user.FirstName
	if name == "" {
		name = user.Email
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nYour one-time login code is %s. It expires shortly, do not share it.\n",
		name, code,
	)
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your one-time login code is <strong>%s</strong>. It expires shortly, do not share it.</p>`,
		name, code,
	)

	return Message{
		To:      user.Email,
		Subject: "Innovative Tech Solutions - Your Login Code",
		Text:    text,
		HTML:    html,
	}
}
