package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// Notifier entrega una alerta nueva al usuario.
type Notifier interface {
	// NotifyAlert presenta la alerta. Un error no invalida la alerta ya persistida.
	NotifyAlert(ctx context.Context, alert domain.Alert) error
}
