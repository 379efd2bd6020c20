// Package metrics expone los contadores Prometheus del dominio de
// autenticación. Los de HTTP viven en el middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignIns cuenta sign-ins exitosos por tipo de credencial.
	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "auth",
		Name:      "sign_ins_total",
		Help:      "Sign-ins exitosos por método.",
	}, []string{"method"})

	// TokensIssued cuenta tokens emitidos por grant.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "oauth",
		Name:      "tokens_issued_total",
		Help:      "Tokens emitidos por grant type.",
	}, []string{"grant"})

	// MfaFailures cuenta verificaciones MFA fallidas por factor.
	MfaFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "auth",
		Name:      "mfa_failures_total",
		Help:      "Verificaciones MFA fallidas por factor.",
	}, []string{"factor"})
)
