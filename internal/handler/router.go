// internal/handler/router.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/controller"
)

// Routes holds the controllers mounted by NewRouter.
type Routes struct {
	Campaigns *controller.CampaignController
	Contacts  *controller.ContactController
	Gateway   *controller.GatewayController
	Webhooks  *controller.WebhookController

	// WorkerRunning reports the in-process dispatch worker state on /healthz. Optional.
	WorkerRunning func() bool
}

func NewRouter(routes Routes, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"ok": true}
		if routes.WorkerRunning != nil {
			body["worker_running"] = routes.WorkerRunning()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	// Campaign routes
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", routes.Campaigns.CreateCampaign)
		r.Get("/", routes.Campaigns.ListCampaigns)
		r.Get("/{id}", routes.Campaigns.GetCampaignDetails)
		r.Post("/{id}/start", routes.Campaigns.StartCampaign)
		r.Post("/{id}/preview", routes.Campaigns.PersonalizedPreview)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", routes.Contacts.ListContacts)
		r.Post("/", routes.Contacts.CreateContact)
		r.Patch("/{id}/opt-out", routes.Contacts.SetOptOut)
	})

	r.Route("/gateway", func(r chi.Router) {
		r.Get("/status", routes.Gateway.Status)
		r.Get("/qrcode", routes.Gateway.QRCode)
		r.Post("/disconnect", routes.Gateway.Disconnect)
	})

	r.Route("/webhooks/gateway", func(r chi.Router) {
		r.Post("/status", routes.Webhooks.MessageStatus)
		r.Post("/disconnected", routes.Webhooks.Disconnected)
	})

	return r
}

// AccessLog writes one line per request.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}
