package authcfg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

func TestResolvePasswordlessOverridesPasswordFlags(t *testing.T) {
	sys := System{
		EnableSignUp:             true,
		EnablePasswordReset:      true,
		EnablePasswordSignIn:     true,
		AllowPasskeyEnrollment:   true,
		EnablePasswordlessSignIn: true,
		EnableUserAppConsent:     true,
	}

	r := Resolve(sys, nil, nil)

	assert.False(t, r.EnableSignUp)
	assert.False(t, r.EnablePasswordReset)
	assert.False(t, r.EnablePasswordSignIn)
	assert.False(t, r.AllowPasskeyEnrollment)
	// passwordless no toca lo que no es password-based
	assert.True(t, r.EnableUserAppConsent)
	assert.True(t, r.PasswordlessSignIn)
}

func TestResolveAppOverrideReplacesSystemMfa(t *testing.T) {
	sys := System{OtpMfaRequired: true, SmsMfaRequired: true, EmailMfaRequired: false}
	app := &repository.App{
		UseSystemMfaConfig: false,
		RequireEmailMfa:    true,
	}

	r := Resolve(sys, app, nil)

	// reemplaza, no mergea: lo que el app no pide queda apagado
	assert.True(t, r.RequireEmailMfa)
	assert.False(t, r.RequireOtpMfa)
	assert.False(t, r.RequireSmsMfa)
}

func TestResolveAppUsingSystemConfigKeepsSystemMfa(t *testing.T) {
	sys := System{OtpMfaRequired: true}
	app := &repository.App{UseSystemMfaConfig: true, RequireEmailMfa: true}

	r := Resolve(sys, app, nil)

	assert.True(t, r.RequireOtpMfa)
	assert.False(t, r.RequireEmailMfa)
}

func TestResolveOrgOverrides(t *testing.T) {
	sys := System{EnableSignUp: true, AllowPasskeyEnrollment: true}
	org := &OrgOverride{DisableSignUp: true, DisablePasskeys: true}

	r := Resolve(sys, nil, org)

	assert.False(t, r.EnableSignUp)
	assert.False(t, r.AllowPasskeyEnrollment)
}
