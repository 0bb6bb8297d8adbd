package notify

import (
	"fmt"
	"html"
	"strings"
)

type (
	// Builtin renders the default messages. Links point to FrontendURL.
	Builtin struct {
		FrontendURL string
	}
)

const (
	DefaultFrontendURL = "http://localhost:5173"
)

func (b Builtin) frontend() string {
	if b.FrontendURL == "" {
		return DefaultFrontendURL
	}
	return strings.TrimRight(b.FrontendURL, "/")
}

// ResetLink returns the frontend address where token can be redeemed
func (b Builtin) ResetLink(token string) string {
	return fmt.Sprintf("%v/reset-password/%v", b.frontend(), token)
}

func (b Builtin) Render(kind Kind, to, payload string) (Message, error) {
	switch kind {
	case Verification:
		link := b.frontend() + "/verify-email"
		return Message{
			Subject: "Verify Your Email",
			Text: fmt.Sprintf("Your verification code is %v.\n\nEnter it at %v. The code expires in 10 minutes.\n"+
				"If you didn't create an account, please ignore this email.\n", payload, link),
			HTML: fmt.Sprintf(`<h2>Email Verification</h2>
<p>Your verification code is:</p>
<h1 style="color: #4F46E5; font-size: 32px; letter-spacing: 4px;">%v</h1>
<p>Enter it at <a href="%v">%v</a>. This code will expire in 10 minutes.</p>
<p>If you didn't create an account, please ignore this email.</p>`, html.EscapeString(payload), link, link),
		}, nil
	case PasswordReset:
		link := b.ResetLink(payload)
		return Message{
			Subject: "Password Reset Request",
			Text: fmt.Sprintf("You requested a password reset for %v.\n\nOpen %v to reset your password. The link expires in 1 hour.\n"+
				"If you didn't request a password reset, please ignore this email.\n", to, link),
			HTML: fmt.Sprintf(`<h2>Password Reset</h2>
<p>You requested a password reset. Click the link below to reset your password:</p>
<a href="%v" style="background-color: #4F46E5; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a>
<p>This link will expire in 1 hour.</p>
<p>If you didn't request a password reset, please ignore this email.</p>`, html.EscapeString(link)),
		}, nil
	}
	return Message{}, fmt.Errorf("notify: cannot render %v", kind)
}
