package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"learnpath/backend/services"
	"learnpath/backend/utils"
)

var errInvalidID = errors.New("invalid id")

// paramID reads a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// respondError maps a service error onto the HTTP envelope. The domain code
// goes into details.
func respondError(c *fiber.Ctx, logger *log.Logger, err error) error {
	code := services.CodeOf(err)
	switch services.KindOf(err) {
	case services.KindAccess:
		return utils.Error(c, fiber.StatusForbidden, err, code)
	case services.KindLimit:
		return utils.Error(c, fiber.StatusConflict, err, code)
	case services.KindNotFound:
		return utils.Error(c, fiber.StatusNotFound, err, code)
	case services.KindDegenerate:
		return utils.Error(c, fiber.StatusUnprocessableEntity, err, code)
	}
	logger.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	return utils.InternalServerError(c, "Internal server error")
}

// parseBody decodes and validates the request body. When ok is false the
// error response has already been written.
func parseBody(c *fiber.Ctx, out interface{}) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, utils.BadRequest(c, "Cannot parse JSON")
	}
	if errs := utils.Validate(out); errs != nil {
		return false, utils.ValidationError(c, errs)
	}
	return true, nil
}
