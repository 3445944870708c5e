// Package handoff builds the links that open a prefilled external conversation.
package handoff

import (
	"errors"
	"net/url"
	"strings"
)

var ErrBadRecipient = errors.New("handoff: recipient is not a phone number")

// Channel turns a recipient and a message into a link the browser can follow.
type Channel interface {
	Link(recipient, text string) (string, error)
}

const DefaultWhatsAppBase = "https://wa.me"

// WhatsApp builds click-to-chat links.
type WhatsApp struct {
	BaseURL string
}

func NewWhatsApp() WhatsApp { return WhatsApp{BaseURL: DefaultWhatsAppBase} }

func (w WhatsApp) Link(recipient, text string) (string, error) {
	num, err := NormalizeRecipient(recipient)
	if err != nil {
		return "", err
	}
	base := w.BaseURL
	if base == "" {
		base = DefaultWhatsAppBase
	}
	return strings.TrimRight(base, "/") + "/" + num + "?text=" + escape(text), nil
}

// NormalizeRecipient strips a leading '+' and spaces and requires 8 to 15
// digits (E.164 without the plus).
func NormalizeRecipient(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) < 8 || len(s) > 15 {
		return "", ErrBadRecipient
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrBadRecipient
		}
	}
	return s, nil
}

// escape percent-encodes text for a query value, spaces as %20 rather than '+'.
func escape(text string) string {
	return strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
