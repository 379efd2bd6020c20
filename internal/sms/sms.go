// Package sms define el collaborator de entrega de SMS. La implementación
// real (gateway del operador) queda fuera de este core; acá el contrato y
// un sender de desarrollo que solo loguea.
package sms

import (
	"context"

	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// Sender entrega un SMS. Las fallas se loguean, no cortan el flujo.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// LogSender es el sender de desarrollo: escribe el mensaje al log.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, phoneNumber, message string) error {
	logger.From(ctx).Info("sms_send_dev",
		logger.Op("sms.send"),
		logger.String("to", phoneNumber),
		logger.String("message", message),
	)
	return nil
}
