package analytics

import (
	"errors"
	"strconv"

	analyticssvc "realty-backend/internal/application/analytics"
	"realty-backend/internal/middleware"
	"realty-backend/internal/pkg/response"
	"realty-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const defaultDays = 30

type Handlers struct {
	Service *analyticssvc.Service
}

func intQuery(c *fiber.Ctx, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}

// Dashboard serves GET /api/v1/admin/analytics?days=&top=. days=0 covers all time.
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	days, ok := intQuery(c, "days", defaultDays)
	if !ok {
		return response.BadRequest(c, "days must be an integer", fiber.Map{"field": "days"})
	}
	top, ok := intQuery(c, "top", analyticssvc.DefaultTop)
	if !ok {
		return response.BadRequest(c, "top must be an integer", fiber.Map{"field": "top"})
	}

	dash, err := h.Service.Dashboard(c.UserContext(), owner, analyticssvc.DashboardRequest{Days: days, Top: top})
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return response.BadRequest(c, verr.Error(), fiber.Map{"field": verr.Field})
		}
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("analytics dashboard failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Analytics fetched successfully", dash, fiber.Map{"days": days, "top": top})
}
