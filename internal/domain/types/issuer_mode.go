// Package types define tipos de dominio compartidos entre capas.
package types

import "strings"

// IssuerMode define cómo se arma el claim iss de los tokens emitidos.
type IssuerMode string

const (
	// IssuerModeGlobal usa la URL pública base para todos los tokens.
	IssuerModeGlobal IssuerMode = "global"
	// IssuerModePath agrega /t/{org} al issuer cuando el usuario
	// pertenece a una organización.
	IssuerModePath IssuerMode = "path"
)

// IsValid acepta vacío como global implícito.
func (m IssuerMode) IsValid() bool {
	switch m {
	case "", IssuerModeGlobal, IssuerModePath:
		return true
	}
	return false
}

// IssuerFor resuelve el issuer efectivo para una organización. Sin org, o en
// modo global, siempre es la base.
func (m IssuerMode) IssuerFor(base, org string) string {
	base = strings.TrimRight(base, "/")
	if m == IssuerModePath && org != "" {
		return base + "/t/" + org
	}
	return base
}
