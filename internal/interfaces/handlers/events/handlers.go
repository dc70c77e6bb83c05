package events

import (
	"errors"

	eventsvc "realty-backend/internal/application/events"
	"realty-backend/internal/middleware"
	"realty-backend/internal/pkg/response"
	"realty-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *eventsvc.Service
}

// Track records a visitor event (POST /api/v1/events). When the client sends no
// device type it is inferred from the User-Agent header.
func (h *Handlers) Track(c *fiber.Ctx) error {
	var in eventsvc.RecordInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	if in.Device.DeviceType == "" {
		in.Device.DeviceType = eventsvc.DeviceFromUserAgent(c.Get(fiber.HeaderUserAgent))
	}
	if in.Referrer == nil {
		if ref := c.Get(fiber.HeaderReferer); ref != "" {
			in.Referrer = &ref
		}
	}

	event, err := h.Service.Record(c.UserContext(), in)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			return response.BadRequest(c, verr.Error(), fiber.Map{"field": verr.Field})
		case errors.Is(err, eventsvc.ErrListingNotFound):
			return response.BadRequest(c, err.Error(), fiber.Map{"field": "listing_id"})
		}
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("event tracking failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.SuccessCreated(c, "Event recorded", fiber.Map{"id": event.ID}, nil)
}
