package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	cases := []struct {
		raw  string
		want Policy
	}{
		{"", Policy{Kind: PolicySignInOrSignUp}},
		{"sign_in_or_sign_up", Policy{Kind: PolicySignInOrSignUp}},
		{"change_password", Policy{Kind: PolicyChangePassword}},
		{"change_email", Policy{Kind: PolicyChangeEmail}},
		{"manage_passkey", Policy{Kind: PolicyManagePasskey}},
		{"saml_sso_okta", Policy{Kind: PolicySamlSso, Provider: "okta"}},
		{"oidc_sso_azuread", Policy{Kind: PolicyOidcSso, Provider: "azuread"}},
	}
	for _, tc := range cases {
		got, err := ParsePolicy(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParsePolicyRejectsUnknown(t *testing.T) {
	_, err := ParsePolicy("delete_account")
	assert.Error(t, err)

	// prefijo SSO sin provider tampoco vale
	_, err = ParsePolicy("saml_sso_")
	assert.Error(t, err)
}

func TestPolicyRoundTrip(t *testing.T) {
	for _, raw := range []string{"sign_in_or_sign_up", "change_password", "saml_sso_okta", "oidc_sso_auth0"} {
		p, err := ParsePolicy(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, p.String())
	}
}

func TestPolicyClassification(t *testing.T) {
	assert.True(t, Policy{Kind: PolicyChangePassword}.IsAccountManagement())
	assert.True(t, Policy{Kind: PolicyManagePasskey}.IsAccountManagement())
	assert.False(t, Policy{Kind: PolicySignInOrSignUp}.IsAccountManagement())
	assert.True(t, Policy{Kind: PolicySamlSso, Provider: "okta"}.IsFederated())
	assert.False(t, Policy{Kind: PolicyChangeEmail}.IsFederated())
}
