package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is a rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// LinkData feeds the link-bearing templates.
type LinkData struct {
	Product   string
	UserName  string
	Link      string
	ExpiresIn time.Duration
}

// VerificationMessage renders the email-verification mail.
func VerificationMessage(to string, data LinkData) (Message, error) {
	return render(to, data.Product+" Email Verification", "verification_email.html", data)
}

// PasswordResetMessage renders the password-reset mail.
func PasswordResetMessage(to string, data LinkData) (Message, error) {
	return render(to, data.Product+" Password Reset", "password_reset_email.html", data)
}

func render(to, subject, name string, data LinkData) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}
