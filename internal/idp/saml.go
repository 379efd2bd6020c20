package idp

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"net/url"

	"github.com/crewjam/saml"
	"github.com/crewjam/saml/samlsp"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
)

// SAMLConfig configura un service provider contra un IdP enterprise.
type SAMLConfig struct {
	Name        string
	EntityID    string
	AcsURL      string // callback ACS propio
	MetadataXML []byte // metadata del IdP
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
}

// SAMLProvider es el wrapper fino sobre crewjam/saml: arma el redirect al
// IdP y valida la response firmada. El "code" del contrato Provider es acá
// la SAMLResponse del POST al ACS, ya decodificada de base64.
type SAMLProvider struct {
	name string
	sp   *saml.ServiceProvider
}

func NewSAML(cfg SAMLConfig) (*SAMLProvider, error) {
	idpMetadata, err := samlsp.ParseMetadata(cfg.MetadataXML)
	if err != nil {
		return nil, err
	}
	acs, err := url.Parse(cfg.AcsURL)
	if err != nil {
		return nil, err
	}
	sp := &saml.ServiceProvider{
		EntityID:          cfg.EntityID,
		Key:               cfg.Key,
		Certificate:       cfg.Certificate,
		AcsURL:            *acs,
		IDPMetadata:       idpMetadata,
		AllowIDPInitiated: true,
	}
	return &SAMLProvider{name: cfg.Name, sp: sp}, nil
}

func (p *SAMLProvider) Name() string { return p.name }

func (p *SAMLProvider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	req, err := p.sp.MakeAuthenticationRequest(
		p.sp.GetSSOBindingLocation(saml.HTTPRedirectBinding),
		saml.HTTPRedirectBinding,
		saml.HTTPPostBinding,
	)
	if err != nil {
		return "", autherr.Internal(err)
	}
	redirect, err := req.Redirect(state, p.sp)
	if err != nil {
		return "", autherr.Internal(err)
	}
	return redirect.String(), nil
}

func (p *SAMLProvider) Exchange(ctx context.Context, state, samlResponse string) (*Identity, error) {
	assertion, err := p.sp.ParseXMLResponse([]byte(samlResponse), nil)
	if err != nil {
		return nil, autherr.ErrUnauthorized
	}
	ident := &Identity{Provider: p.name}
	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		ident.Subject = assertion.Subject.NameID.Value
	}
	if ident.Subject == "" {
		return nil, autherr.ErrUnauthorized
	}
	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			if len(attr.Values) == 0 {
				continue
			}
			v := attr.Values[0].Value
			switch attr.Name {
			case "email", "mail", "urn:oid:0.9.2342.19200300.100.1.3":
				ident.Email = v
				ident.EmailVerified = true
			case "firstName", "givenName", "urn:oid:2.5.4.42":
				ident.FirstName = v
			case "lastName", "sn", "urn:oid:2.5.4.4":
				ident.LastName = v
			}
		}
	}
	return ident, nil
}
