package auth

import (
	"github.com/gofiber/fiber/v2"

	"bustrack_backend/internals/constants"
)

// CanPerform guards a route with the static action-token table.
func CanPerform(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalsUserRole).(string)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		if !constants.CanPerform(role, action) {
			return fiber.NewError(fiber.StatusForbidden, "Forbidden")
		}
		return c.Next()
	}
}

// CanPerformAny passes when any of the actions is allowed for the role.
func CanPerformAny(actions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalsUserRole).(string)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		if !constants.CanPerformAny(role, actions...) {
			return fiber.NewError(fiber.StatusForbidden, "Forbidden")
		}
		return c.Next()
	}
}

// RequirePermission guards with the stored-list mechanism
// (UserModel.HasPermission). Independent from CanPerform: a school admin may
// pass one check and fail the other.
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		if !user.HasPermission(permission) {
			return fiber.NewError(fiber.StatusForbidden, "Insufficient permissions")
		}
		return c.Next()
	}
}

// RequireSchoolAccess guards cross-tenant access using the route param
// holding the school id.
func RequireSchoolAccess(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		if !user.CanAccessSchool(c.Params(param)) {
			return fiber.NewError(fiber.StatusForbidden, "Access denied to this school")
		}
		return c.Next()
	}
}
