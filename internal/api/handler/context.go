package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const identityKey = "identity"

// SetIdentity stores the caller resolved by the auth middleware.
func SetIdentity(c echo.Context, id domain.Identity) {
	c.Set(identityKey, id)
}

// CurrentIdentity returns the caller set by the auth middleware. A missing
// identity means the route was mounted without it, which is a wiring bug;
// it is reported as domain.ErrNoToken so the request still fails closed.
func CurrentIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := c.Get(identityKey).(domain.Identity)
	if !ok || id.SubjectID == "" {
		return domain.Identity{}, domain.ErrNoToken
	}
	return id, nil
}
