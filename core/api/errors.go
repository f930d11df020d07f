package api

import (
	"errors"

	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/reconcile"
	"ckeytools/core/session"
	"ckeytools/core/storage"
	"ckeytools/core/utils"
	"ckeytools/core/verification"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

var statusTable = []struct {
	err    error
	status int
}{
	{ErrBadRequest, fiber.StatusBadRequest},
	{utils.ErrInvalidDiscordID, fiber.StatusBadRequest},
	{links.ErrInvalidCkey, fiber.StatusBadRequest},
	{links.ErrInvalidToken, fiber.StatusBadRequest},
	{verification.ErrVerificationDisabled, fiber.StatusForbidden},
	{reconcile.ErrDeverified, fiber.StatusForbidden},
	{guild.ErrUnknownGuild, fiber.StatusNotFound},
	{reconcile.ErrTokenNotFound, fiber.StatusNotFound},
	{reconcile.ErrNoHistory, fiber.StatusNotFound},
	{session.ErrSessionNotFound, fiber.StatusNotFound},
	{links.ErrNotFound, fiber.StatusNotFound},
	{storage.ErrObjectNotFound, fiber.StatusNotFound},
	{reconcile.ErrTokenAlreadyClaimed, fiber.StatusConflict},
	{reconcile.ErrAlreadyUnlinked, fiber.StatusConflict},
	{reconcile.ErrDuplicateToken, fiber.StatusConflict},
	{session.ErrSessionAlreadyOpen, fiber.StatusConflict},
	{session.ErrSessionClosed, fiber.StatusConflict},
	{session.ErrSessionExpired, fiber.StatusGone},
	{links.ErrStoreUnavailable, fiber.StatusServiceUnavailable},
	{verification.ErrExportDisabled, fiber.StatusServiceUnavailable},
	{verification.ErrMembershipUnavailable, fiber.StatusServiceUnavailable},
}

// Status returns the HTTP status for err.
func Status(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// Error writes err as a JSON error body with its mapped status.
func Error(c *fiber.Ctx, err error) error {
	return c.Status(Status(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// Fail logs err and writes it. Client errors are logged at debug level.
func Fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	if Status(err) >= fiber.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Debug(msg, zap.Error(err))
	}
	return Error(c, err)
}
