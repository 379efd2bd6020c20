// Package config carga la configuración del servidor: YAML base + overrides
// por variable de entorno. El .env (si existe) lo levanta el cmd con godotenv
// antes de llamar Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/domain/types"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		PublicURL          string   `yaml:"public_url"`  // issuer base
		IssuerMode         string   `yaml:"issuer_mode"` // global | path
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"storage"`

	Cache struct {
		Driver   string `yaml:"driver"` // memory | redis
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"cache"`

	JWT struct {
		AccessTTLSpa time.Duration `yaml:"access_ttl_spa"`
		AccessTTLS2S time.Duration `yaml:"access_ttl_s2s"`
		IDTokenTTL   time.Duration `yaml:"id_token_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		EnableSignUp             bool          `yaml:"enable_sign_up"`
		EnablePasswordReset      bool          `yaml:"enable_password_reset"`
		EnablePasswordSignIn     bool          `yaml:"enable_password_sign_in"`
		EnablePasswordlessSignIn bool          `yaml:"enable_passwordless_sign_in"`
		AllowPasskeyEnrollment   bool          `yaml:"allow_passkey_enrollment"`
		EnableRecoveryCode       bool          `yaml:"enable_recovery_code"`
		EnableUserAppConsent     bool          `yaml:"enable_user_app_consent"`
		EnableEmailVerification  bool          `yaml:"enable_email_verification"`
		EnableSignInLog          bool          `yaml:"enable_sign_in_log"`
		OtpMfaRequired           bool          `yaml:"otp_mfa_required"`
		SmsMfaRequired           bool          `yaml:"sms_mfa_required"`
		EmailMfaRequired         bool          `yaml:"email_mfa_required"`
		EnforceOneMfaEnrollment  []string      `yaml:"enforce_one_mfa_enrollment"`
		AuthCodeTTL              time.Duration `yaml:"auth_code_ttl"`
		RefreshTokenTTL          time.Duration `yaml:"refresh_token_ttl"`
		MfaCodeTTL               time.Duration `yaml:"mfa_code_ttl"`
		LockoutWindow            time.Duration `yaml:"lockout_window"`
	} `yaml:"auth"`

	Secrets struct {
		// clave AES-256 base64 para cifrar secretos TOTP at-rest
		OtpEncryptionKey string `yaml:"otp_encryption_key"`
	} `yaml:"secrets"`

	SMTP struct {
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		From    string `yaml:"from"`
		User    string `yaml:"user"`
		Pass    string `yaml:"pass"`
		TLSMode string `yaml:"tls_mode"`
	} `yaml:"smtp"`

	WebAuthn struct {
		RPDisplayName string   `yaml:"rp_display_name"`
		RPID          string   `yaml:"rp_id"`
		RPOrigins     []string `yaml:"rp_origins"`
	} `yaml:"webauthn"`

	Geo struct {
		BaseURL string `yaml:"base_url"` // vacío = deshabilitado
	} `yaml:"geo"`

	Rate struct {
		LoginLimit  int64         `yaml:"login_limit"`
		LoginWindow time.Duration `yaml:"login_window"`
	} `yaml:"rate"`

	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig configura un proveedor de federación.
type ProviderConfig struct {
	Name         string   `yaml:"name"` // google | apple | github | discord | <oidc> | <saml>
	Kind         string   `yaml:"kind"` // oidc | oauth2 | saml
	Issuer       string   `yaml:"issuer"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	UsePKCE      bool     `yaml:"use_pkce"`
	MetadataFile string   `yaml:"metadata_file"` // solo saml
	EntityID     string   `yaml:"entity_id"`     // solo saml
	AcsURL       string   `yaml:"acs_url"`       // solo saml
}

// Load lee el YAML (si path no está vacío), aplica defaults y overrides env.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "janus"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:8080"
	}
	if c.Server.IssuerMode == "" {
		c.Server.IssuerMode = string(types.IssuerModeGlobal)
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "janus"
	}
	if c.JWT.AccessTTLSpa == 0 {
		c.JWT.AccessTTLSpa = 30 * time.Minute
	}
	if c.JWT.AccessTTLS2S == 0 {
		c.JWT.AccessTTLS2S = time.Hour
	}
	if c.JWT.IDTokenTTL == 0 {
		c.JWT.IDTokenTTL = 30 * time.Minute
	}
	if c.Auth.AuthCodeTTL == 0 {
		c.Auth.AuthCodeTTL = 5 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.MfaCodeTTL == 0 {
		c.Auth.MfaCodeTTL = 5 * time.Minute
	}
	if c.Auth.LockoutWindow == 0 {
		c.Auth.LockoutWindow = 10 * time.Minute
	}
	if c.Rate.LoginLimit == 0 {
		c.Rate.LoginLimit = 10
	}
	if c.Rate.LoginWindow == 0 {
		c.Rate.LoginWindow = time.Minute
	}

	applyEnvOverrides(&c)
	if !types.IssuerMode(c.Server.IssuerMode).IsValid() {
		return nil, fmt.Errorf("config: issuer_mode inválido %q", c.Server.IssuerMode)
	}
	return &c, nil
}

// AuthSystem traduce el bloque auth al value type que consume el resolver.
func (c *Config) AuthSystem() authcfg.System {
	var enforce []repository.MfaType
	for _, t := range c.Auth.EnforceOneMfaEnrollment {
		enforce = append(enforce, repository.MfaType(t))
	}
	return authcfg.System{
		EnableSignUp:             c.Auth.EnableSignUp,
		EnablePasswordReset:      c.Auth.EnablePasswordReset,
		EnablePasswordSignIn:     c.Auth.EnablePasswordSignIn,
		EnablePasswordlessSignIn: c.Auth.EnablePasswordlessSignIn,
		AllowPasskeyEnrollment:   c.Auth.AllowPasskeyEnrollment,
		EnableRecoveryCode:       c.Auth.EnableRecoveryCode,
		EnableUserAppConsent:     c.Auth.EnableUserAppConsent,
		EnableEmailVerification:  c.Auth.EnableEmailVerification,
		EnableSignInLog:          c.Auth.EnableSignInLog,
		OtpMfaRequired:           c.Auth.OtpMfaRequired,
		SmsMfaRequired:           c.Auth.SmsMfaRequired,
		EmailMfaRequired:         c.Auth.EmailMfaRequired,
		EnforceOneMfaEnrollment:  enforce,
		AuthCodeTTL:              c.Auth.AuthCodeTTL,
		RefreshTokenTTL:          c.Auth.RefreshTokenTTL,
		MfaCodeTTL:               c.Auth.MfaCodeTTL,
		LockoutWindow:            c.Auth.LockoutWindow,
	}
}

func applyEnvOverrides(c *Config) {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}
	if v, ok := getEnvStr("ISSUER_MODE"); ok {
		c.Server.IssuerMode = v
	}
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Storage.PostgresDSN = v
	}
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.DB = v
	}
	if v, ok := getEnvStr("OTP_ENCRYPTION_KEY"); ok {
		c.Secrets.OtpEncryptionKey = v
	}
	if v, ok := getEnvBool("ENABLE_SIGN_UP"); ok {
		c.Auth.EnableSignUp = v
	}
	if v, ok := getEnvBool("ENABLE_PASSWORD_RESET"); ok {
		c.Auth.EnablePasswordReset = v
	}
	if v, ok := getEnvBool("ENABLE_PASSWORDLESS_SIGN_IN"); ok {
		c.Auth.EnablePasswordlessSignIn = v
	}
	if v, ok := getEnvBool("ENABLE_USER_APP_CONSENT"); ok {
		c.Auth.EnableUserAppConsent = v
	}
	if v, ok := getEnvBool("OTP_MFA_IS_REQUIRED"); ok {
		c.Auth.OtpMfaRequired = v
	}
	if v, ok := getEnvBool("SMS_MFA_IS_REQUIRED"); ok {
		c.Auth.SmsMfaRequired = v
	}
	if v, ok := getEnvBool("EMAIL_MFA_IS_REQUIRED"); ok {
		c.Auth.EmailMfaRequired = v
	}
	if v, ok := getEnvDur("AUTH_CODE_TTL"); ok {
		c.Auth.AuthCodeTTL = v
	}
	if v, ok := getEnvDur("REFRESH_TOKEN_TTL"); ok {
		c.Auth.RefreshTokenTTL = v
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.User = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.SMTP.Pass = v
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
