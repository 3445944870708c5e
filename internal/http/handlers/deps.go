package handlers

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"jetroc/internal/config"
	"jetroc/internal/handoff"
	"jetroc/internal/media"
	"jetroc/internal/repos"
	"jetroc/internal/seed"
	"jetroc/internal/services"
)

type Deps struct {
	Auth    *services.AuthService
	Catalog *services.CatalogStore

	CatalogHandler *CatalogHandler
	IntentHandler  *IntentHandler
	AuthHandler    *AuthHandler
	AdminHandler   *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, log *zap.Logger) (*Deps, error) {
	if _, err := handoff.NormalizeRecipient(cfg.WhatsAppNumber); err != nil {
		return nil, fmt.Errorf("whatsapp number %q: %w", cfg.WhatsAppNumber, err)
	}
	mediaStore, err := media.NewLocalStore(cfg.MediaDir, log)
	if err != nil {
		return nil, err
	}

	fallback, err := seed.Products()
	if err != nil {
		return nil, err
	}

	authSvc := services.NewAuthService(repos.NewUserRepo(db), repos.NewRoleRepo(db))
	catalog := services.NewCatalogStore(repos.NewProductRepo(db), fallback, log, cfg.CatalogMaxAge)
	adminSvc := services.NewAdminService(catalog, log)
	intents := services.NewIntentService(catalog, handoff.NewWhatsApp(), cfg.WhatsAppNumber)

	return &Deps{
		Auth:           authSvc,
		Catalog:        catalog,
		CatalogHandler: &CatalogHandler{Catalog: catalog, Intents: intents},
		IntentHandler:  &IntentHandler{Intents: intents},
		AuthHandler:    &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		AdminHandler:   &AdminHandler{Catalog: catalog, Admin: adminSvc, Media: mediaStore},
	}, nil
}
