package email

import "fmt"

// Templates mínimos del flujo. El renderer HTML completo es un collaborator
// fuera de este core; acá solo el contenido de los códigos.

// MfaCodeEmail arma el mail del código MFA de 6 caracteres.
func MfaCodeEmail(appName, code string) (subject, html, text string) {
	subject = fmt.Sprintf("%s: tu código de verificación", appName)
	text = fmt.Sprintf("Tu código de verificación es %s. Expira en pocos minutos.", code)
	html = fmt.Sprintf("<p>Tu código de verificación es <strong>%s</strong>.</p><p>Expira en pocos minutos.</p>", code)
	return subject, html, text
}

// VerifyEmail arma el mail de verificación de cuenta.
func VerifyEmail(appName, code string) (subject, html, text string) {
	subject = fmt.Sprintf("%s: verificá tu email", appName)
	text = fmt.Sprintf("Ingresá este código para verificar tu cuenta: %s", code)
	html = fmt.Sprintf("<p>Ingresá este código para verificar tu cuenta: <strong>%s</strong></p>", code)
	return subject, html, text
}
