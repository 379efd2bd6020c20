// Package app arma el contenedor de la aplicación: de config.Config a un
// http.Handler listo para servir, con todos los collaborators cableados.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/config"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/domain/types"
	"github.com/dropDatabas3/janus/internal/email"
	"github.com/dropDatabas3/janus/internal/geo"
	httpx "github.com/dropDatabas3/janus/internal/http"
	authorizectrl "github.com/dropDatabas3/janus/internal/http/controllers/authorize"
	oauthctrl "github.com/dropDatabas3/janus/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/janus/internal/http/controllers/oidc"
	authorizesvc "github.com/dropDatabas3/janus/internal/http/services/authorize"
	oauthsvc "github.com/dropDatabas3/janus/internal/http/services/oauth"
	oidcsvc "github.com/dropDatabas3/janus/internal/http/services/oidc"
	"github.com/dropDatabas3/janus/internal/idp"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/rate"
	"github.com/dropDatabas3/janus/internal/security/passkey"
	"github.com/dropDatabas3/janus/internal/security/secretbox"
	"github.com/dropDatabas3/janus/internal/sms"
	"github.com/dropDatabas3/janus/internal/store/postgres"
)

// Container agrupa lo que el cmd necesita después del wiring.
type Container struct {
	Handler  http.Handler
	Keystore *jwt.Keystore
	Cache    cache.Client
	DA       repository.DataAccess

	closers []func()
}

// Close libera las conexiones en orden inverso al wiring.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// New construye el contenedor completo desde la config. EnsureBootstrap corre
// acá: el server nunca arranca sin clave de firma activa.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// state store
	store, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	c.Cache = store
	c.closers = append(c.closers, func() { _ = store.Close() })

	// persistencia
	da, err := postgres.New(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("app: postgres: %w", err)
	}
	c.DA = da
	c.closers = append(c.closers, da.Close)

	// material de firma
	keystore := jwt.NewKeystore(store)
	if err := keystore.EnsureBootstrap(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("app: signing bootstrap: %w", err)
	}
	c.Keystore = keystore
	signer := jwt.NewSigner(keystore, jwt.SignerConfig{
		Issuer:       cfg.Server.PublicURL,
		Mode:         types.IssuerMode(cfg.Server.IssuerMode),
		AccessTTLSpa: cfg.JWT.AccessTTLSpa,
		AccessTTLS2S: cfg.JWT.AccessTTLS2S,
		IDTokenTTL:   cfg.JWT.IDTokenTTL,
	})

	// flujo de autorización
	coordinator := authz.NewCoordinator(store)
	flags := authz.NewFlagStore(store)
	attempts := authz.NewAttempts(store)
	machine := authz.NewMachine(coordinator, flags)
	refresh := authz.NewRefreshStore(store)

	box, err := secretbox.New(cfg.Secrets.OtpEncryptionKey)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("app: otp encryption key: %w", err)
	}

	passkeys, err := passkey.NewService(passkey.Config{
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPID:          cfg.WebAuthn.RPID,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	}, store)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("app: webauthn: %w", err)
	}

	providers, err := buildProviders(ctx, cfg.Providers, store)
	if err != nil {
		c.Close()
		return nil, err
	}

	mailer := email.NewSMTPSender(email.SMTPConfig{
		Host:    cfg.SMTP.Host,
		Port:    cfg.SMTP.Port,
		From:    cfg.SMTP.From,
		User:    cfg.SMTP.User,
		Pass:    cfg.SMTP.Pass,
		TLSMode: cfg.SMTP.TLSMode,
	})

	var geoResolver geo.Resolver = geo.Noop{}
	if cfg.Geo.BaseURL != "" {
		geoResolver = geo.NewHTTPResolver(cfg.Geo.BaseURL)
	}

	loginLimiter := rate.NewFixedWindow(store, "login", cfg.Rate.LoginLimit, cfg.Rate.LoginWindow)
	system := cfg.AuthSystem()

	// services
	authorizeService := authorizesvc.NewService(authorizesvc.Deps{
		DA:           da,
		Coordinator:  coordinator,
		Machine:      machine,
		Flags:        flags,
		Attempts:     attempts,
		LoginLimiter: loginLimiter,
		Box:          box,
		Passkeys:     passkeys,
		Providers:    providers,
		Mailer:       mailer,
		Texter:       sms.LogSender{},
		Store:        store,
		System:       system,
	})
	tokenService := oauthsvc.NewTokenService(da, coordinator, machine, refresh, signer, system, geoResolver)
	oidcService := oidcsvc.NewService(signer, keystore, da, cfg.Server.PublicURL)

	// controllers + router
	c.Handler = httpx.NewRouter(httpx.RouterDeps{
		Authorize:          authorizectrl.NewController(authorizeService),
		Token:              oauthctrl.NewTokenController(tokenService),
		OIDC:               oidcctrl.NewController(oidcService),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})
	return c, nil
}

// buildProviders arma el registry de federación según la config declarativa.
func buildProviders(ctx context.Context, cfgs []config.ProviderConfig, store cache.Client) (*idp.Registry, error) {
	var providers []idp.Provider
	for _, pc := range cfgs {
		switch pc.Kind {
		case "oidc":
			p, err := idp.NewOIDC(ctx, idp.OIDCConfig{
				Name:         pc.Name,
				Issuer:       pc.Issuer,
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				RedirectURL:  pc.RedirectURL,
				Scopes:       pc.Scopes,
				UsePKCE:      pc.UsePKCE,
			}, store)
			if err != nil {
				return nil, fmt.Errorf("app: provider %s: %w", pc.Name, err)
			}
			providers = append(providers, p)
		case "oauth2":
			switch pc.Name {
			case "github":
				providers = append(providers, idp.NewGitHub(pc.ClientID, pc.ClientSecret, pc.RedirectURL))
			case "discord":
				providers = append(providers, idp.NewDiscord(pc.ClientID, pc.ClientSecret, pc.RedirectURL))
			default:
				return nil, fmt.Errorf("app: provider %s: oauth2 kind desconocido", pc.Name)
			}
		case "saml":
			metadata, err := os.ReadFile(pc.MetadataFile)
			if err != nil {
				return nil, fmt.Errorf("app: provider %s: metadata: %w", pc.Name, err)
			}
			p, err := idp.NewSAML(idp.SAMLConfig{
				Name:        pc.Name,
				EntityID:    pc.EntityID,
				AcsURL:      pc.AcsURL,
				MetadataXML: metadata,
			})
			if err != nil {
				return nil, fmt.Errorf("app: provider %s: %w", pc.Name, err)
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("app: provider %s: kind %q desconocido", pc.Name, pc.Kind)
		}
	}
	return idp.NewRegistry(providers...), nil
}
