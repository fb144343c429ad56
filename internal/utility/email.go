package utility

import (
	"strings"

	emailverifier "github.com/AfterShip/email-verifier"
)

// Syntax checks only. SMTP and DNS probes stay disabled so booking never
// waits on a remote mail server.
var verifier = emailverifier.NewVerifier()

// ValidEmail reports whether s is a well-formed address. Blank counts as
// valid because e-mail is optional wherever it is collected.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	return verifier.ParseAddress(s).Valid
}
