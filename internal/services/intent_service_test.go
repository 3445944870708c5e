package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetroc/internal/compose"
	"jetroc/internal/domain"
	"jetroc/internal/handoff"
)

func newIntents(t *testing.T) *IntentService {
	t.Helper()
	items := []domain.Product{{ID: "p1", Name: "iPhone 14 Pro", Price: 650000, Category: domain.CategoryIPhones}}
	store := NewCatalogStore(&fakeSource{items: items}, nil, nil, 0)
	return NewIntentService(store, handoff.NewWhatsApp(), "2250586905549")
}

func textOf(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/2250586905549", u.Path)
	return u.Query().Get("text")
}

func TestIntentLinkOrder(t *testing.T) {
	s := newIntents(t)
	link, err := s.Link(context.Background(), compose.KindOrder, "p1", map[string]string{
		"first_name": "Awa", "last_name": "Koné", "phone": "0707070707", "address": "Cocody",
	})
	require.NoError(t, err)
	text := textOf(t, link)
	assert.Contains(t, text, "iPhone 14 Pro")
	assert.Contains(t, text, "650 000 FCFA")
	assert.Contains(t, strings.Split(text, "\n"), compose.Separator)
}

func TestIntentLinkErrors(t *testing.T) {
	s := newIntents(t)
	_, err := s.Link(context.Background(), compose.KindTrade, "nope", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Link(context.Background(), compose.KindRepair, "", map[string]string{"phone": "x"})
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	s.Recipient = "not-a-number"
	_, err = s.Link(context.Background(), compose.KindRepair, "", map[string]string{"phone": "0505050505", "description": "écran"})
	assert.ErrorIs(t, err, handoff.ErrBadRecipient)
}

func TestIntentDirectAndContactLinks(t *testing.T) {
	s := newIntents(t)
	link, err := s.DirectLink(context.Background(), compose.KindOrder, "p1")
	require.NoError(t, err)
	assert.Contains(t, textOf(t, link), "au prix de 650 000 FCFA")

	link, err = s.DirectLink(context.Background(), compose.KindSell, "")
	require.NoError(t, err)
	assert.Contains(t, textOf(t, link), "vendre")

	link, err = s.ContactLink()
	require.NoError(t, err)
	assert.Contains(t, textOf(t, link), "informations sur vos services")
}
