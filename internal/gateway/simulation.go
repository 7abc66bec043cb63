package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SimulationClient stands in for the provider in demos: every send succeeds with a
// synthetic reference and nothing leaves the process.
type SimulationClient struct {
	log zerolog.Logger
}

func NewSimulationClient(log zerolog.Logger) *SimulationClient {
	return &SimulationClient{log: log.With().Str("component", "gateway_simulation").Logger()}
}

func (c *SimulationClient) SendText(ctx context.Context, phone, message string) (*SendResult, error) {
	c.log.Warn().Str("phone", phone).Str("text", message).Msg("simulated send text")
	return simulatedResult(), nil
}

func (c *SimulationClient) SendImage(ctx context.Context, phone, imageURL, caption string) (*SendResult, error) {
	c.log.Warn().Str("phone", phone).Str("image", imageURL).Msg("simulated send image")
	return simulatedResult(), nil
}

func (c *SimulationClient) SendDocument(ctx context.Context, phone, documentURL, fileName string) (*SendResult, error) {
	c.log.Warn().Str("phone", phone).Str("document", documentURL).Msg("simulated send document")
	return simulatedResult(), nil
}

func (c *SimulationClient) ReadMessage(ctx context.Context, phone, messageID string) error {
	return nil
}

func (c *SimulationClient) ConnectionStatus(ctx context.Context) (ConnectionStatus, error) {
	return ConnectionStatus{}, nil
}

func (c *SimulationClient) QRCode(ctx context.Context) (string, error) {
	return "", nil
}

func (c *SimulationClient) Disconnect(ctx context.Context) error {
	return nil
}

func (c *SimulationClient) Configured() bool     { return false }
func (c *SimulationClient) SimulationMode() bool { return true }

func simulatedResult() *SendResult {
	return &SendResult{
		ProviderMessageID:      simulatedID(),
		ProviderConversationID: simulatedID(),
	}
}

func simulatedID() string {
	return "sim_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
