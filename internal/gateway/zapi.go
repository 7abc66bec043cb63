package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/config"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// ZAPIClient sends through the Z-API HTTP interface:
// {baseURL}/instances/{instanceID}/token/{token}/{endpoint}, authenticated by the
// Client-Token header.
type ZAPIClient struct {
	baseURL     string
	instanceID  string
	token       string
	clientToken string

	client *http.Client
	log    zerolog.Logger
}

func NewZAPIClient(cfg config.GatewayConfig, log zerolog.Logger) *ZAPIClient {
	return &ZAPIClient{
		baseURL:     cfg.BaseURL,
		instanceID:  cfg.InstanceID,
		token:       cfg.Token,
		clientToken: cfg.ClientToken,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log.With().Str("component", "gateway_zapi").Logger(),
	}
}

type sendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendImageRequest struct {
	Phone   string `json:"phone"`
	Image   string `json:"image"`
	Caption string `json:"caption"`
}

type sendDocumentRequest struct {
	Phone    string `json:"phone"`
	Document string `json:"document"`
	FileName string `json:"fileName"`
}

type readMessageRequest struct {
	Phone     string `json:"phone"`
	MessageID string `json:"messageId"`
}

type sendResponse struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

type statusResponse struct {
	Connected           bool   `json:"connected"`
	Phone               string `json:"phone"`
	SmartphoneConnected bool   `json:"smartphoneConnected"`
}

type qrCodeResponse struct {
	Value string `json:"value"`
}

func (c *ZAPIClient) Configured() bool     { return true }
func (c *ZAPIClient) SimulationMode() bool { return false }

func (c *ZAPIClient) SendText(ctx context.Context, phone, message string) (*SendResult, error) {
	return c.send(ctx, "send-text", phone, sendTextRequest{Phone: NormalizePhone(phone), Message: message})
}

func (c *ZAPIClient) SendImage(ctx context.Context, phone, imageURL, caption string) (*SendResult, error) {
	return c.send(ctx, "send-image", phone, sendImageRequest{Phone: NormalizePhone(phone), Image: imageURL, Caption: caption})
}

func (c *ZAPIClient) SendDocument(ctx context.Context, phone, documentURL, fileName string) (*SendResult, error) {
	if fileName == "" {
		fileName = "document.pdf"
	}
	return c.send(ctx, "send-document/pdf", phone, sendDocumentRequest{Phone: NormalizePhone(phone), Document: documentURL, FileName: fileName})
}

func (c *ZAPIClient) ReadMessage(ctx context.Context, phone, messageID string) error {
	status, body, err := c.do(ctx, http.MethodPost, "read-message", readMessageRequest{Phone: NormalizePhone(phone), MessageID: messageID})
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return fmt.Errorf("read-message: unexpected status code: %d body=%q", status, string(body))
	}
	return nil
}

func (c *ZAPIClient) ConnectionStatus(ctx context.Context) (ConnectionStatus, error) {
	status, body, err := c.do(ctx, http.MethodGet, "status", nil)
	if err != nil {
		return ConnectionStatus{}, err
	}
	if !isSuccess(status) {
		return ConnectionStatus{}, fmt.Errorf("status: unexpected status code: %d body=%q", status, string(body))
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return ConnectionStatus{}, fmt.Errorf("status: failed to decode json: %w body=%q", err, string(body))
	}
	return ConnectionStatus{
		Connected:           sr.Connected,
		Phone:               sr.Phone,
		SmartphoneConnected: sr.SmartphoneConnected,
	}, nil
}

func (c *ZAPIClient) QRCode(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, http.MethodGet, "qr-code/image", nil)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", fmt.Errorf("qr-code: unexpected status code: %d body=%q", status, string(body))
	}

	var qr qrCodeResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return "", fmt.Errorf("qr-code: failed to decode json: %w body=%q", err, string(body))
	}
	return qr.Value, nil
}

func (c *ZAPIClient) Disconnect(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodDelete, "disconnect", nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return fmt.Errorf("disconnect: unexpected status code: %d body=%q", status, string(body))
	}
	return nil
}

// send performs one outbound call. Provider rejections and transport errors are both
// reported as ErrSendFailed; the caller decides what a failed send means.
func (c *ZAPIClient) send(ctx context.Context, endpoint, phone string, payload any) (*SendResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Str("phone", phone).Msg("gateway transport error")
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if !isSuccess(status) {
		c.log.Error().Str("endpoint", endpoint).Int("status", status).Str("body", string(body)).Msg("gateway rejected send")
		return nil, fmt.Errorf("%w: unexpected status code: %d body=%q", ErrSendFailed, status, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: failed to decode json: %v body=%q", ErrSendFailed, err, string(body))
	}

	res := &SendResult{ProviderMessageID: sr.MessageID, ProviderConversationID: sr.ZaapID}
	if res.ProviderMessageID == "" {
		res.ProviderMessageID = sr.ID
	}
	if res.ProviderMessageID == "" && res.ProviderConversationID == "" {
		return nil, fmt.Errorf("%w: missing message reference in response body=%q", ErrSendFailed, string(body))
	}
	return res, nil
}

func (c *ZAPIClient) do(ctx context.Context, method, endpoint string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reqBody)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Token", c.clientToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *ZAPIClient) url(endpoint string) string {
	return fmt.Sprintf("%s/instances/%s/token/%s/%s", c.baseURL, c.instanceID, c.token, endpoint)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
