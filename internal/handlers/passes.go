package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/pass"
	"github.com/visitdesk/visitdesk/internal/visits"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/response"
)

// PassHandler renders QR passes. The pass endpoints are token-addressed:
// possession of the session token is the credential, so they sit outside the
// actor-resolution middleware.
type PassHandler struct {
	engine *visits.Engine
	issuer *pass.Issuer
}

// NewPassHandler constructs a pass handler.
func NewPassHandler(engine *visits.Engine, issuer *pass.Issuer) (*PassHandler, error) {
	if engine == nil {
		return nil, apperrors.New("pass.handler", "engine is required", http.StatusInternalServerError)
	}
	if issuer == nil {
		return nil, apperrors.New("pass.handler", "issuer is required", http.StatusInternalServerError)
	}
	return &PassHandler{engine: engine, issuer: issuer}, nil
}

// Summary resolves a session token to the pass view of its visit.
func (h *PassHandler) Summary(c *gin.Context) {
	summary, err := h.engine.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// QR renders the PNG badge for a session token. The image encodes the
// opaque token and nothing else.
func (h *PassHandler) QR(c *gin.Context) {
	token := c.Param("token")

	// Resolve first so an invented token yields 404 rather than a valid
	// image for a visit that does not exist.
	if _, err := h.engine.GetByToken(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}

	png, err := h.issuer.QRCode(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
