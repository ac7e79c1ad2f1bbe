package mpesa

import (
	"regexp"
	"strings"
)

var msisdnPattern = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone canonicalizes a Kenyan subscriber number to the 12-digit
// provider form (2547XXXXXXXX). Accepted inputs: +254XXXXXXXXX, 0XXXXXXXXX
// and the already-canonical 254XXXXXXXXX. Everything else is ErrInvalidPhone.
func NormalizePhone(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, " ", "")

	switch {
	case strings.HasPrefix(p, "+254"):
		p = p[1:]
	case strings.HasPrefix(p, "0") && len(p) == 10:
		p = "254" + p[1:]
	}

	if !msisdnPattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}
