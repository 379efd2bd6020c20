package authz

import (
	"context"

	"github.com/dropDatabas3/janus/internal/authcfg"
)

// Step es la vista/estado que el cliente tiene que atender a continuación.
type Step string

const (
	StepEmailMfa           Step = "EmailMfa"
	StepMfaEnroll          Step = "MfaEnroll"
	StepOtpSetup           Step = "OtpSetup"
	StepOtpMfa             Step = "OtpMfa"
	StepSmsMfa             Step = "SmsMfa"
	StepPasskeyEnroll      Step = "PasskeyEnroll"
	StepRecoveryCodeEnroll Step = "RecoveryCodeEnroll"
	StepConsent            Step = "Consent"
)

// NextStepResult: o hay un paso pendiente (NextPage) o el flujo terminó y
// Redirect trae el payload final {code, redirectUri, state, scopes}.
type NextStepResult struct {
	NextPage Step
	Redirect *RedirectPayload
}

// RedirectPayload es la respuesta terminal del flujo de autorización.
type RedirectPayload struct {
	Code        string   `json:"code"`
	RedirectURI string   `json:"redirectUri"`
	State       string   `json:"state"`
	Scopes      []string `json:"scopes"`
}

func (r NextStepResult) Done() bool { return r.Redirect != nil }

// Gates es la foto de qué verificaciones ya pasaron para un code. La junta
// el orquestador leyendo FlagStore y el collaborator de consent; evaluarla
// es puro.
type Gates struct {
	EmailVerified        bool // flag email MFA de este code
	OtpVerified          bool
	SmsVerified          bool
	PasswordlessVerified bool
	HasPasskey           bool // el usuario ya tiene credencial enrolada
	HasRecoveryCodes     bool
	Consented            bool // consent previo persistido para (user, app)
}

// Machine reconstruye el estado por request desde el CodeBody persistido:
// no hay objeto vivo entre llamadas, cada transición es resumible y
// sobrevive restarts.
type Machine struct {
	coordinator *Coordinator
	flags       *FlagStore
}

func NewMachine(coordinator *Coordinator, flags *FlagStore) *Machine {
	return &Machine{coordinator: coordinator, flags: flags}
}

// CollectGates arma la foto de gates desde el state store. Consented y
// HasPasskey/HasRecoveryCodes los aporta el caller porque viven en la base,
// no en el store efímero.
func (m *Machine) CollectGates(ctx context.Context, code string, consented, hasPasskey, hasRecovery bool) (Gates, error) {
	g := Gates{Consented: consented, HasPasskey: hasPasskey, HasRecoveryCodes: hasRecovery}
	var err error
	if g.EmailVerified, err = m.flags.IsVerified(ctx, MfaEmail, code); err != nil {
		return g, err
	}
	if g.OtpVerified, err = m.flags.IsVerified(ctx, MfaOtp, code); err != nil {
		return g, err
	}
	if g.SmsVerified, err = m.flags.IsVerified(ctx, MfaSms, code); err != nil {
		return g, err
	}
	if g.PasswordlessVerified, err = m.flags.IsVerified(ctx, MfaPasswordless, code); err != nil {
		return g, err
	}
	return g, nil
}

// NextStep re-evalúa el orden fijo de gates después de cada paso. El orden
// (a)–(g) ES la regla de negocio: los pasos tardíos asumen que los tempranos
// ya pasaron, así que el short-circuit no se puede reordenar.
//
//	(a) verificación de email pendiente y exigida      → EmailMfa
//	(b) cero factores enrolados y enforcement activo   → MfaEnroll
//	(c) OTP/SMS/Email exigido y no verificado          → vista del factor
//	(d) passkey permitida, ni enrolada ni declinada    → PasskeyEnroll
//	(e) recovery codes habilitados y no generados      → RecoveryCodeEnroll
//	(f) la app pide consent y no está otorgado         → Consent
//	(g) si no, fully-authorized y payload de redirect
func NextStep(cfg authcfg.Resolved, body *CodeBody, gates Gates, code string) NextStepResult {
	user := &body.User
	policy := body.Request.Policy
	req := ResolveMfa(cfg, user)

	// (a)
	if cfg.EnableEmailVerification && !user.EmailVerified && !user.IsSocial() && !gates.EmailVerified {
		return NextStepResult{NextPage: StepEmailMfa}
	}

	// (b)
	if req.EnforceEnrollment {
		return NextStepResult{NextPage: StepMfaEnroll}
	}

	// (c) cada factor exigido se chequea contra SU flag; AND entre todos
	if req.RequireOtpMfa && !gates.OtpVerified {
		if user.OtpVerified {
			return NextStepResult{NextPage: StepOtpMfa}
		}
		return NextStepResult{NextPage: StepOtpSetup}
	}
	if req.RequireSmsMfa && !gates.SmsVerified {
		return NextStepResult{NextPage: StepSmsMfa}
	}
	if req.RequireEmailMfa && !gates.EmailVerified {
		return NextStepResult{NextPage: StepEmailMfa}
	}

	// (d) los flujos de account management y los sociales no enrolan acá
	if cfg.AllowPasskeyEnrollment &&
		policy.Kind == PolicySignInOrSignUp &&
		!user.IsSocial() &&
		!gates.HasPasskey && !body.PasskeyDeclined {
		return NextStepResult{NextPage: StepPasskeyEnroll}
	}

	// (e)
	if cfg.EnableRecoveryCode &&
		policy.Kind == PolicySignInOrSignUp &&
		!user.IsSocial() &&
		!gates.HasRecoveryCodes && !body.RecoveryCodesIssued {
		return NextStepResult{NextPage: StepRecoveryCodeEnroll}
	}

	// (f) account management no pasa por consent; social sí
	if cfg.EnableUserAppConsent && !policy.IsAccountManagement() && !gates.Consented {
		return NextStepResult{NextPage: StepConsent}
	}

	// (g)
	return NextStepResult{
		Redirect: &RedirectPayload{
			Code:        code,
			RedirectURI: body.Request.RedirectURI,
			State:       body.Request.State,
			Scopes:      body.Request.Scopes,
		},
	}
}

// Advance corre NextStep y, si el flujo terminó, persiste IsFullyAuthorized
// en el body con el stamp de versión que trae el caller.
func (m *Machine) Advance(ctx context.Context, cfg authcfg.Resolved, code string, body *CodeBody, gates Gates) (NextStepResult, error) {
	res := NextStep(cfg, body, gates, code)
	if res.Done() && !body.IsFullyAuthorized {
		body.IsFullyAuthorized = true
		if err := m.coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
			return NextStepResult{}, err
		}
	}
	return res, nil
}
