package validation

import "regexp"

// Nombres de scope: minúsculas, empiezan y terminan en [a-z0-9], en el medio
// se permite [a-z0-9:_.-], largo 1..64. Ejemplos: profile, profile:read,
// email:read, a_b-c.d:scope2.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName valida un nombre de scope contra el patrón permitido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}
