package submission

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	maxNameRunes    = 100
	maxMessageRunes = 5000
)

// ContactMessage is the payload submitted to the contact endpoint.
type ContactMessage struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Message   string `json:"message"`
}

// Normalize trims fields, capitalizes names, lower-cases the email domain,
// and NFC-normalizes the message body.
func (m *ContactMessage) Normalize() {
	m.FirstName = titleName(m.FirstName)
	m.LastName = titleName(m.LastName)
	m.Email = strings.TrimSpace(m.Email)
	if at := strings.LastIndex(m.Email, "@"); at > 0 {
		m.Email = m.Email[:at] + strings.ToLower(m.Email[at:])
	}
	m.Phone = strings.TrimSpace(m.Phone)
	m.Message = norm.NFC.String(strings.TrimSpace(m.Message))
}

// Validate checks required fields, lengths, and email shape.
func (m ContactMessage) Validate() error {
	var p problems
	requireText(&p, "firstName", m.FirstName, maxNameRunes)
	requireText(&p, "lastName", m.LastName, maxNameRunes)
	requireText(&p, "message", m.Message, maxMessageRunes)
	if strings.TrimSpace(m.Email) == "" {
		p.add("email", "is required")
	} else if addr, err := mail.ParseAddress(m.Email); err != nil || addr.Address != m.Email {
		p.add("email", "must be a bare email address")
	}
	if m.Phone != "" && !validPhone(m.Phone) {
		p.add("phone", "may contain only digits, spaces, and + - ( )")
	}
	return p.err()
}

// titleName upper-cases the first letter of each word and leaves the rest
// alone. Casers are stateful, so one is built per call.
func titleName(value string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	return caser.String(norm.NFC.String(strings.TrimSpace(value)))
}

func requireText(p *problems, field, value string, limit int) {
	if strings.TrimSpace(value) == "" {
		p.add(field, "is required")
		return
	}
	if utf8.RuneCountInString(value) > limit {
		p.add(field, "is too long")
	}
}

func validPhone(value string) bool {
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 5
}
