package controller

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/gateway"
)

// GatewayController exposes the provider connection to operators.
type GatewayController struct {
	Gateway gateway.Client
	Log     zerolog.Logger
}

func (c *GatewayController) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"configured":      c.Gateway.Configured(),
		"simulation_mode": c.Gateway.SimulationMode(),
	}

	st, err := c.Gateway.ConnectionStatus(r.Context())
	if err != nil {
		c.Log.Warn().Err(err).Msg("gateway status check failed")
		resp["connected"] = false
		resp["error"] = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp["connected"] = st.Connected
	resp["phone"] = st.Phone
	resp["smartphone_connected"] = st.SmartphoneConnected
	writeJSON(w, http.StatusOK, resp)
}

func (c *GatewayController) QRCode(w http.ResponseWriter, r *http.Request) {
	code, err := c.Gateway.QRCode(r.Context())
	if err != nil {
		c.Log.Error().Err(err).Msg("gateway qrcode failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qrcode": code})
}

func (c *GatewayController) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := c.Gateway.Disconnect(r.Context()); err != nil {
		c.Log.Error().Err(err).Msg("gateway disconnect failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	c.Log.Info().Msg("gateway disconnected by operator")
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}
