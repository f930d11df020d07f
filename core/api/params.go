package api

import (
	"fmt"

	"ckeytools/core/utils"

	"github.com/gofiber/fiber/v2"
)

// DiscordID parses a snowflake path parameter.
func DiscordID(c *fiber.Ctx, name string) (int64, error) {
	return utils.ParseDiscordID(c.Params(name))
}

// Body decodes the JSON request body into out.
func Body(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
