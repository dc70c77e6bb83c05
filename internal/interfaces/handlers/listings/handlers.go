package listings

import (
	"errors"

	listsvc "realty-backend/internal/application/listings"
	"realty-backend/internal/application/query"
	"realty-backend/internal/middleware"
	"realty-backend/internal/pkg/response"
	"realty-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *listsvc.Service
}

// writeError maps service errors onto the standard error envelope.
func writeError(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return response.BadRequest(c, verr.Error(), fiber.Map{"field": verr.Field})
	case errors.Is(err, listsvc.ErrListingNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, listsvc.ErrForbidden):
		return response.Forbidden(c, err.Error())
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("listings request failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}

func listingIDParam(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// GET /api/v1/listings: published listings filtered and sorted by query string.
func (h *Handlers) ListPublished(c *fiber.Ctx) error {
	req, err := query.ParseFilter(c.Queries())
	if err != nil {
		return writeError(c, err)
	}
	listings, err := h.Service.ListPublished(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", listings, fiber.Map{"count": len(listings)})
}

// GET /api/v1/listings/:slug
func (h *Handlers) GetBySlug(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if !validation.IsValidSlug(slug) {
		return response.NotFound(c, listsvc.ErrListingNotFound.Error())
	}
	listing, err := h.Service.GetPublishedBySlug(c.UserContext(), slug)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// GET /api/v1/admin/listings: every listing of the session agent, drafts included.
func (h *Handlers) ListOwned(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	req, err := query.ParseFilter(c.Queries())
	if err != nil {
		return writeError(c, err)
	}
	listings, err := h.Service.ListOwned(c.UserContext(), owner, req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", listings, fiber.Map{"count": len(listings)})
}

// GET /api/v1/admin/listings/:id
func (h *Handlers) GetOwned(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, ok := listingIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid listing id", fiber.Map{"field": "id"})
	}
	listing, err := h.Service.FetchOwnedByID(c.UserContext(), owner, id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// POST /api/v1/admin/listings: 201 with the created listing; metadata lists the purged cache entries.
func (h *Handlers) Create(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in listsvc.ListingInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	listing, inv, err := h.Service.Create(c.UserContext(), owner, in)
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, fiber.Map{"invalidated": inv})
}

// PUT /api/v1/admin/listings/:id: partial update; omitted fields are unchanged.
func (h *Handlers) Update(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, ok := listingIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid listing id", fiber.Map{"field": "id"})
	}
	var in listsvc.ListingInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	listing, inv, err := h.Service.Update(c.UserContext(), owner, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Listing updated successfully", listing, fiber.Map{"invalidated": inv})
}

// DELETE /api/v1/admin/listings/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	owner, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, ok := listingIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid listing id", fiber.Map{"field": "id"})
	}
	listing, inv, err := h.Service.Delete(c.UserContext(), owner, id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Listing deleted successfully", fiber.Map{"id": listing.ID, "slug": listing.Slug}, fiber.Map{"invalidated": inv})
}
