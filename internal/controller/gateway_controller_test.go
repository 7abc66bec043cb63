package controller_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/controller"
	"github.com/unclebandit/wacrm-dispatch/internal/gateway"
)

// stubGateway embeds the simulation and overrides the connection calls.
type stubGateway struct {
	*gateway.SimulationClient
	status gateway.ConnectionStatus
	err    error
}

func (g *stubGateway) ConnectionStatus(ctx context.Context) (gateway.ConnectionStatus, error) {
	return g.status, g.err
}

func (g *stubGateway) QRCode(ctx context.Context) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "data:image/png;base64,AAA", nil
}

func (g *stubGateway) Disconnect(ctx context.Context) error { return g.err }

func TestGatewayController_Status(t *testing.T) {
	gw := &stubGateway{
		SimulationClient: gateway.NewSimulationClient(zerolog.Nop()),
		status:           gateway.ConnectionStatus{Connected: true, Phone: "5511999999999", SmartphoneConnected: true},
	}
	ctrl := &controller.GatewayController{Gateway: gw, Log: zerolog.Nop()}

	w := httptest.NewRecorder()
	ctrl.Status(w, httptest.NewRequest("GET", "/gateway/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res map[string]interface{}
	decode(t, w, &res)
	if res["configured"] != false || res["simulation_mode"] != true || res["connected"] != true || res["phone"] != "5511999999999" {
		t.Fatalf("unexpected status %+v", res)
	}

	gw.err = errors.New("provider down")
	w = httptest.NewRecorder()
	ctrl.Status(w, httptest.NewRequest("GET", "/gateway/status", nil))
	res = nil
	decode(t, w, &res)
	if res["connected"] != false || res["error"] != "provider down" {
		t.Fatalf("unexpected status on failure %+v", res)
	}
}

func TestGatewayController_QRCodeAndDisconnect(t *testing.T) {
	gw := &stubGateway{SimulationClient: gateway.NewSimulationClient(zerolog.Nop())}
	ctrl := &controller.GatewayController{Gateway: gw, Log: zerolog.Nop()}

	w := httptest.NewRecorder()
	ctrl.QRCode(w, httptest.NewRequest("GET", "/gateway/qrcode", nil))
	var qr map[string]string
	decode(t, w, &qr)
	if w.Code != http.StatusOK || qr["qrcode"] == "" {
		t.Fatalf("unexpected qrcode response %d %+v", w.Code, qr)
	}

	w = httptest.NewRecorder()
	ctrl.Disconnect(w, httptest.NewRequest("POST", "/gateway/disconnect", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	gw.err = errors.New("boom")
	w = httptest.NewRecorder()
	ctrl.Disconnect(w, httptest.NewRequest("POST", "/gateway/disconnect", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}
