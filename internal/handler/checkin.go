package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/engine"
	"github.com/iliyamo/ev-charging-reservation/internal/utils"
)

// CheckInHandler serves the staff QR-scan endpoint.
type CheckInHandler struct {
	Engine *engine.Engine
}

func NewCheckInHandler(e *engine.Engine) *CheckInHandler {
	return &CheckInHandler{Engine: e}
}

type checkInReq struct {
	// QR is the opaque payload scanned from the customer's screen.
	// Alternatively the decoded parts may be posted directly.
	QR            string `json:"qr,omitempty"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	Token         string `json:"token,omitempty"`
}

type checkInResp struct {
	ReservationID uint64  `json:"reservation_id"`
	Status        string  `json:"status"`
	QRCheck       bool    `json:"qr_check"`
	CheckedAt     *string `json:"checked_at,omitempty"`
	AlreadyUsed   bool    `json:"already_used"`
}

// Scan validates the QR payload and confirms the reservation.  A
// second scan of the same code reports already_used instead of
// failing, so gate staff can tell a re-shown ticket from a forged one.
func (h *CheckInHandler) Scan(c echo.Context) error {
	staffID, _, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	reservationID := req.ReservationID
	token := strings.TrimSpace(req.Token)
	if qr := strings.TrimSpace(req.QR); qr != "" {
		id, tok, ok := utils.DecodeQRPayload(qr)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed qr payload"})
		}
		reservationID, token = id, tok
	}
	if reservationID == 0 || token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr or reservation_id/token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Engine.CheckIn(ctx, reservationID, token, staffID)
	if err != nil {
		return respondError(c, err)
	}
	resp := checkInResp{
		ReservationID: out.ReservationID,
		Status:        out.Status,
		QRCheck:       out.QRCheck,
		AlreadyUsed:   out.AlreadyUsed,
	}
	if out.CheckedAt != nil {
		iso := out.CheckedAt.UTC().Format(time.RFC3339)
		resp.CheckedAt = &iso
	}
	return c.JSON(http.StatusOK, resp)
}
