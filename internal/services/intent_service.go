package services

import (
	"context"
	"fmt"

	"jetroc/internal/compose"
	"jetroc/internal/domain"
	"jetroc/internal/handoff"
)

// IntentService turns a customer intent into a handoff link. Nothing is
// persisted: the conversation continues on the external channel.
type IntentService struct {
	Catalog   *CatalogStore
	Channel   handoff.Channel
	Recipient string
}

func NewIntentService(catalog *CatalogStore, ch handoff.Channel, recipient string) *IntentService {
	return &IntentService{Catalog: catalog, Channel: ch, Recipient: recipient}
}

// Product loads the product an Order or Trade is about.
func (s *IntentService) Product(ctx context.Context, kind compose.Kind, id string) (*domain.Product, error) {
	if !kind.NeedsProduct() {
		return nil, nil
	}
	p, err := s.Catalog.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("intent %s: product %s: %w", kind, id, err)
	}
	return &p, nil
}

// Link composes the message from form fields and wraps it in a handoff link.
func (s *IntentService) Link(ctx context.Context, kind compose.Kind, productID string, fields map[string]string) (string, error) {
	p, err := s.Product(ctx, kind, productID)
	if err != nil {
		return "", err
	}
	msg, err := compose.Compose(kind, fields, p)
	if err != nil {
		return "", err
	}
	return s.Channel.Link(s.Recipient, msg)
}

// DirectLink skips the form and sends the short opener for kind.
func (s *IntentService) DirectLink(ctx context.Context, kind compose.Kind, productID string) (string, error) {
	p, err := s.Product(ctx, kind, productID)
	if err != nil {
		return "", err
	}
	msg, err := compose.DirectMessage(kind, p)
	if err != nil {
		return "", err
	}
	return s.Channel.Link(s.Recipient, msg)
}

func (s *IntentService) ContactLink() (string, error) {
	return s.Channel.Link(s.Recipient, compose.ContactMessage())
}
