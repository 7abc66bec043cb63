// Package gateway talks to the WhatsApp sending provider (Z-API) or, when no credentials
// are configured, to a local simulation that never fails.
package gateway

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/config"
)

// ErrSendFailed wraps every provider-side or transport failure of a send call.
var ErrSendFailed = errors.New("gateway send failed")

// SendResult is the provider's reference pair for an accepted message.
type SendResult struct {
	ProviderMessageID      string `json:"provider_message_id"`
	ProviderConversationID string `json:"provider_conversation_id"`
}

type ConnectionStatus struct {
	Connected           bool   `json:"connected"`
	Phone               string `json:"phone,omitempty"`
	SmartphoneConnected bool   `json:"smartphone_connected"`
}

type Client interface {
	SendText(ctx context.Context, phone, message string) (*SendResult, error)
	SendImage(ctx context.Context, phone, imageURL, caption string) (*SendResult, error)
	SendDocument(ctx context.Context, phone, documentURL, fileName string) (*SendResult, error)
	ReadMessage(ctx context.Context, phone, messageID string) error

	ConnectionStatus(ctx context.Context) (ConnectionStatus, error)
	QRCode(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error

	// Configured reports whether provider credentials are present.
	Configured() bool
	// SimulationMode is true when sends are synthesized locally.
	SimulationMode() bool
}

// New picks the real provider client when credentials are configured and the
// simulation otherwise.
func New(cfg config.GatewayConfig, log zerolog.Logger) Client {
	if cfg.Configured() {
		log.Info().Str("instance_id", cfg.InstanceID).Msg("gateway configured, sending through provider")
		return NewZAPIClient(cfg, log)
	}
	log.Warn().Msg("gateway not configured, running in simulation mode (set ZAPI_INSTANCE_ID, ZAPI_TOKEN and ZAPI_CLIENT_TOKEN)")
	return NewSimulationClient(log)
}
