package server

import (
	"errors"
	"net/http"

	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/types"
	"github.com/gin-gonic/gin"
)

type handler struct {
	gen      Generator
	settings Settings
	log      *logging.Logger
}

type settingsResponse struct {
	APIKey             string `json:"api_key"`
	HasAPIKey          bool   `json:"has_api_key"`
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	BaseURL            string `json:"base_url"`
	Region             string `json:"region"`
	AnalyzeAttachments bool   `json:"analyze_attachments"`
}

func toSettingsResponse(s config.AssistantSettings) settingsResponse {
	return settingsResponse{
		APIKey:             s.MaskedKey(),
		HasAPIKey:          s.APIKey != "",
		Provider:           s.Provider,
		Model:              s.Model,
		BaseURL:            s.BaseURL,
		Region:             s.Region,
		AnalyzeAttachments: s.AnalyzeAttachments,
	}
}

type testRequest struct {
	APIKey string `json:"api_key"`
}

func (h *handler) generate(c *gin.Context) {
	var req types.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid generate request: %v", err)
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Kind: types.KindServiceError, Message: err.Error(), Status: http.StatusBadRequest})
		return
	}
	req.Tone = types.ParseTone(string(req.Tone))

	text, err := h.gen.Generate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.GenerationResponse{Text: text})
}

func (h *handler) getSettings(c *gin.Context) {
	s, err := h.settings.Assistant()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(s))
}

func (h *handler) putSettings(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Kind: types.KindServiceError, Message: err.Error(), Status: http.StatusBadRequest})
		return
	}
	s, err := h.settings.UpdateAssistant(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Kind: types.KindServiceError, Message: err.Error(), Status: http.StatusBadRequest})
		return
	}
	h.log.Infof("settings updated")
	c.JSON(http.StatusOK, toSettingsResponse(s))
}

func (h *handler) testSettings(c *gin.Context) {
	var req testRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{Kind: types.KindServiceError, Message: err.Error(), Status: http.StatusBadRequest})
			return
		}
	}
	reply, err := h.gen.TestConnection(c.Request.Context(), req.APIKey)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reply": reply})
}

func (h *handler) fail(c *gin.Context, err error) {
	var typed *types.Error
	if !errors.As(err, &typed) {
		typed = types.WrapError(types.KindServiceError, err)
	}
	status := statusFor(typed.Kind)
	h.log.Warnf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)

	body := types.ErrorResponse{Kind: typed.Kind, Message: typed.Message, Status: typed.Status}
	if body.Status == 0 {
		body.Status = status
	}
	c.JSON(status, body)
}

func statusFor(kind types.ErrorKind) int {
	switch kind {
	case types.KindConfigurationMissing:
		return http.StatusPreconditionFailed
	case types.KindChannelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
