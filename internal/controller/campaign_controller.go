// internal/controller/campaign_controller.go
package controller

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Log             zerolog.Logger
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignID, err := idParam(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	var body struct {
		ContactID        int64   `json:"contact_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), campaignID, body.ContactID, body.OverrideTemplate)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"contact_id":       body.ContactID,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string  `json:"name"`
		TemplateText string  `json:"template_text"`
		RateLimit    int     `json:"rate_limit"`
		ScheduledAt  *string `json:"scheduled_at"`
		// Either a JSON object like {"tags":["lead"]} or its serialized string form.
		AudienceFilter jsonRaw `json:"audience_filter"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}

	res, err := c.CampaignService.CreateCampaign(r.Context(), service.CreateCampaignInput{
		Name:           body.Name,
		TemplateText:   body.TemplateText,
		RateLimit:      body.RateLimit,
		AudienceFilter: body.AudienceFilter.String(),
		ScheduledAt:    body.ScheduledAt,
	})
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination, // page, page_size, total_count, total_pages
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.GetCampaignDetails(r.Context(), id)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, campaign)
}

// StartCampaign marks the campaign running and queues it for dispatch.
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.StartCampaign(r.Context(), id)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	writeJSON(w, http.StatusAccepted, campaign)
}
