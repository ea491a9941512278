package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// HallHandler serves the hall resource itself.
type HallHandler struct {
	Halls *repository.HallRepo
	Svc   *service.HallService
	Log   logging.Logger
}

type blockReq struct {
	Reason string `json:"reason"`
}

// Get returns the hall row including its subscription due date.
func (h *HallHandler) Get(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	hall, err := h.Halls.GetByID(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	out := echo.Map{"hall": hall}
	if !hall.IsActive {
		reason, err := h.Halls.BlockReason(ctx, hallID)
		if err != nil {
			return respond(c, h.Log, err)
		}
		out["block_reason"] = reason
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes the hall and every row that references it, returning the
// number of rows removed per table.
func (h *HallHandler) Delete(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	removed, err := h.Svc.Delete(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": removed})
}

func (h *HallHandler) Block(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	var req blockReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Svc.Block(ctx, service.BlockInput{HallID: hallID, Reason: req.Reason}); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *HallHandler) Unblock(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Svc.Unblock(ctx, hallID); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
