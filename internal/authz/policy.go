package authz

import (
	"fmt"
	"strings"
)

// PolicyKind discrimina el flujo que pidió el cliente en /authorize.
// Es un enum cerrado: el state machine matchea exhaustivo contra esto,
// nunca contra el string crudo.
type PolicyKind int

const (
	PolicySignInOrSignUp PolicyKind = iota
	PolicyChangePassword
	PolicyChangeEmail
	PolicyManagePasskey
	PolicySamlSso
	PolicyOidcSso
)

// Policy es el selector parseado. Provider solo aplica a los SSO.
type Policy struct {
	Kind     PolicyKind
	Provider string
}

const (
	policySignInOrSignUp = "sign_in_or_sign_up"
	policyChangePassword = "change_password"
	policyChangeEmail    = "change_email"
	policyManagePasskey  = "manage_passkey"
	policySamlPrefix     = "saml_sso_"
	policyOidcPrefix     = "oidc_sso_"
)

// ParsePolicy mapea el query param `policy` al enum. Vacío es el default
// sign-in-or-sign-up; un valor desconocido es error de validación del caller.
func ParsePolicy(raw string) (Policy, error) {
	switch raw {
	case "", policySignInOrSignUp:
		return Policy{Kind: PolicySignInOrSignUp}, nil
	case policyChangePassword:
		return Policy{Kind: PolicyChangePassword}, nil
	case policyChangeEmail:
		return Policy{Kind: PolicyChangeEmail}, nil
	case policyManagePasskey:
		return Policy{Kind: PolicyManagePasskey}, nil
	}
	if p, ok := strings.CutPrefix(raw, policySamlPrefix); ok && p != "" {
		return Policy{Kind: PolicySamlSso, Provider: p}, nil
	}
	if p, ok := strings.CutPrefix(raw, policyOidcPrefix); ok && p != "" {
		return Policy{Kind: PolicyOidcSso, Provider: p}, nil
	}
	return Policy{}, fmt.Errorf("policy desconocida %q", raw)
}

// String devuelve la forma wire (lo que se persiste en el code body).
func (p Policy) String() string {
	switch p.Kind {
	case PolicyChangePassword:
		return policyChangePassword
	case PolicyChangeEmail:
		return policyChangeEmail
	case PolicyManagePasskey:
		return policyManagePasskey
	case PolicySamlSso:
		return policySamlPrefix + p.Provider
	case PolicyOidcSso:
		return policyOidcPrefix + p.Provider
	default:
		return policySignInOrSignUp
	}
}

// IsAccountManagement: flujos que operan sobre una cuenta ya autenticada.
// Deshabilitan sign-up/reset/passkey aunque estén prendidos globalmente y
// no pasan por consent.
func (p Policy) IsAccountManagement() bool {
	switch p.Kind {
	case PolicyChangePassword, PolicyChangeEmail, PolicyManagePasskey:
		return true
	default:
		return false
	}
}

// IsFederated: el credencial primario lo verifica un IdP externo.
func (p Policy) IsFederated() bool {
	return p.Kind == PolicySamlSso || p.Kind == PolicyOidcSso
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Policy) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
