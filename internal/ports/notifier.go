package ports

import (
	"context"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// SettlementPublisher publica los eventos de liquidación hacia fuera del
// proceso (consola, Kafka, ...).
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, ev domain.SettlementEvent) error
}
