package validate

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	// Ivorian numbers are 10 digits; allow a country prefix and common separators.
	rePhone = regexp.MustCompile(`^\+?[0-9][0-9 .-]{6,18}[0-9]$`)
)

// MaxQ is the longest accepted search term, in runes.
const MaxQ = 80

const maxName = 120

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Password is the sign-up policy. Sign-in never checks it so older accounts
// keep working.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 72 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case '0' <= r && r <= '9':
			hasDigit = true
		case r > ' ':
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}

// Q trims a search term. Any text up to MaxQ runes is a valid term; longer
// terms are refused rather than cut, since a prefix can match more.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) <= MaxQ
}

// ID validates a resource identifier (uuid or seed slug).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxName {
		return "", false
	}
	return s, true
}

func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePhone.MatchString(s)
}

// ImageURL accepts site-relative paths and absolute http(s) URLs.
func ImageURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return s, true
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	return s, u.Scheme == "http" || u.Scheme == "https"
}
