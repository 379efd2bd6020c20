// Package bootstrap crea la primera cuenta del sistema de forma interactiva.
// Útil antes de habilitar sign-up: sin esto un deployment nuevo no tiene
// forma de entrar.
package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/security/password"
)

// FirstUserConfig configura el seed de la primera cuenta.
type FirstUserConfig struct {
	DA repository.DataAccess

	// SkipPrompt usa Email/Password directamente (tests, CI).
	SkipPrompt bool
	Email      string
	Password   string
}

// CreateFirstUser crea la cuenta, pidiendo credenciales por stdin si no
// vinieron en la config. El email queda marcado como verificado: el operador
// que corre el seed es el dueño de la casilla.
func CreateFirstUser(ctx context.Context, cfg FirstUserConfig) error {
	email, plain := cfg.Email, cfg.Password
	if !cfg.SkipPrompt {
		var err error
		email, plain, err = promptCredentials(email)
		if err != nil {
			return err
		}
	}
	if email == "" || plain == "" {
		return fmt.Errorf("bootstrap: email y password son requeridos")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := cfg.DA.Users().GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("bootstrap: la cuenta %s ya existe", email)
	} else if !repository.IsNotFound(err) {
		return fmt.Errorf("bootstrap: %w", err)
	}

	hash, err := password.Hash(password.Default, plain)
	if err != nil {
		return fmt.Errorf("bootstrap: hash: %w", err)
	}
	user, err := cfg.DA.Users().Create(ctx, repository.CreateUserInput{
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: create: %w", err)
	}
	fmt.Printf("cuenta creada: %s (id %s)\n", user.Email, user.ID)
	return nil
}

func promptCredentials(presetEmail string) (string, string, error) {
	reader := bufio.NewReader(os.Stdin)

	email := presetEmail
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		email = strings.TrimSpace(line)
	}
	if !strings.Contains(email, "@") {
		return "", "", fmt.Errorf("bootstrap: email inválido")
	}

	fmt.Print("Password (mín 10 chars): ")
	plainBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", "", err
	}
	if len(plainBytes) < 10 {
		return "", "", fmt.Errorf("bootstrap: el password debe tener al menos 10 caracteres")
	}

	fmt.Print("Confirmar password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", "", err
	}
	if string(plainBytes) != string(confirmBytes) {
		return "", "", fmt.Errorf("bootstrap: los passwords no coinciden")
	}
	return email, string(plainBytes), nil
}
