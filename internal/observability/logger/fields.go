package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos HTTP.

func RequestID(v string) zap.Field        { return zap.String("request_id", v) }
func Method(v string) zap.Field           { return zap.String("method", v) }
func Path(v string) zap.Field             { return zap.String("path", v) }
func Status(v int) zap.Field              { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field  { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field         { return zap.String("client_ip", v) }

// Campos de negocio.

func AppID(v string) zap.Field   { return zap.String("app_id", v) }
func UserID(v string) zap.Field  { return zap.String("user_id", v) }
func OrgSlug(v string) zap.Field { return zap.String("org", v) }
func Policy(v string) zap.Field  { return zap.String("policy", v) }
func Grant(v string) zap.Field   { return zap.String("grant_type", v) }
func MfaKind(v string) zap.Field { return zap.String("mfa_kind", v) }

// Campos de sistema.

func Op(v string) zap.Field    { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field  { return zap.Error(err) }

// Genéricos.

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
