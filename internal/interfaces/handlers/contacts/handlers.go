package contacts

import (
	"errors"

	contactsvc "realty-backend/internal/application/contacts"
	"realty-backend/internal/domain"
	"realty-backend/internal/middleware"
	"realty-backend/internal/pkg/response"
	"realty-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *contactsvc.Service
}

type updateStatusBody struct {
	Status domain.ContactStatus `json:"status"`
}

func writeError(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return response.BadRequest(c, verr.Error(), fiber.Map{"field": verr.Field})
	case errors.Is(err, contactsvc.ErrListingNotFound):
		return response.BadRequest(c, err.Error(), fiber.Map{"field": "listing_id"})
	case errors.Is(err, contactsvc.ErrContactNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, contactsvc.ErrForbidden):
		return response.Forbidden(c, err.Error())
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("contact request failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}

// POST /api/v1/contact-requests
func (h *Handlers) Create(c *fiber.Ctx) error {
	var in contactsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	cr, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Thanks! An agent will be in touch shortly.", fiber.Map{"id": cr.ID}, nil)
}

// GET /api/v1/admin/contact-requests?status=
func (h *Handlers) List(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	status := domain.ContactStatus(c.Query("status"))
	if status == "all" {
		status = ""
	}
	leads, err := h.Service.ListForOwner(c.UserContext(), owner, status)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Contact requests fetched successfully", leads, fiber.Map{"count": len(leads)})
}

// PATCH /api/v1/admin/contact-requests/:id
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid contact request id", fiber.Map{"field": "id"})
	}
	var body updateStatusBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	cr, err := h.Service.UpdateStatus(c.UserContext(), owner, id, body.Status)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Contact request updated successfully", cr, nil)
}
