package admin

import (
	"fmt"

	"ckeytools/core/api"
	"ckeytools/core/links"
	"ckeytools/core/logger"
	"ckeytools/core/utils"
	"ckeytools/core/verification"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for link administration.
type Handler struct {
	service *verification.Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *verification.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the admin routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/guilds/:guild/links")
	group.Get("/", h.HandleListValid)
	group.Post("/", h.HandleForceLink)
	group.Post("/tokens", h.HandleIssueToken)
	group.Post("/export", h.HandleExport)
	group.Post("/gone", h.HandleInvalidateGone)
	group.Get("/exports", h.HandleListExports)
	group.Get("/exports/:name", h.HandleReadExport)
	group.Get("/users/:discord", h.HandleCheckUser)
	group.Get("/users/:discord/history", h.HandleHistory)
	group.Get("/users/:discord/ckeys", h.HandleCkeys)
	group.Post("/users/:discord/deverify", h.HandleDeverify)
	group.Get("/ckeys/:ckey/users", h.HandleDiscordIDs)
	group.Delete("/ckeys/:ckey", h.HandleInvalidateCkey)
}

// ForceLinkRequest links a ckey to an account.
type ForceLinkRequest struct {
	Ckey      string `json:"ckey"`
	DiscordID string `json:"discord_id"`
}

// IssueTokenRequest stores a one-time token. An empty token is generated.
type IssueTokenRequest struct {
	Ckey  string `json:"ckey"`
	Token string `json:"token"`
}

// IssueTokenResponse returns the stored token.
type IssueTokenResponse struct {
	Record *links.LinkRecord `json:"record"`
	Token  string            `json:"token"`
}

// DeverifyRequest explains a staff deverify.
type DeverifyRequest struct {
	Reason string `json:"reason"`
}

// HandleListValid lists every valid link of the guild.
// @Summary List Valid Links
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Success 200 {array} links.LinkRecord
// @Failure 503 {object} map[string]string "Store unavailable"
// @Router /guilds/{guild}/links [get]
func (h *Handler) HandleListValid(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	recs, err := h.service.ValidLinks(c.UserContext(), c.Params("guild"))
	if err != nil {
		return api.Fail(c, l, "List valid links failed", err)
	}
	return c.JSON(recs)
}

// HandleForceLink links a ckey to an account on staff request.
// @Summary Force Link
// @Tags links
// @Accept json
// @Produce json
// @Param guild path string true "Guild ID"
// @Param body body ForceLinkRequest true "Link"
// @Success 200 {object} api.Outcome
// @Failure 400 {object} map[string]string "Invalid ckey or Discord ID"
// @Router /guilds/{guild}/links [post]
func (h *Handler) HandleForceLink(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	var req ForceLinkRequest
	if err := api.Body(c, &req); err != nil {
		return api.Error(c, err)
	}
	id, err := utils.ParseDiscordID(req.DiscordID)
	if err != nil {
		return api.Error(c, err)
	}

	out, err := h.service.ForceLink(c.UserContext(), c.Params("guild"), req.Ckey, id)
	if err != nil {
		return api.Fail(c, l, "Force link failed", err)
	}
	return c.JSON(api.NewOutcome(out))
}

// HandleIssueToken stores a one-time token for a ckey.
// @Summary Issue Token
// @Tags links
// @Accept json
// @Produce json
// @Param guild path string true "Guild ID"
// @Param body body IssueTokenRequest true "Token"
// @Success 201 {object} IssueTokenResponse
// @Failure 409 {object} map[string]string "Duplicate token"
// @Router /guilds/{guild}/links/tokens [post]
func (h *Handler) HandleIssueToken(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	var req IssueTokenRequest
	if err := api.Body(c, &req); err != nil {
		return api.Error(c, err)
	}
	rec, err := h.service.IssueToken(c.UserContext(), c.Params("guild"), req.Ckey, req.Token)
	if err != nil {
		return api.Fail(c, l, "Issue token failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(IssueTokenResponse{Record: rec, Token: rec.Token})
}

// HandleExport writes a snapshot of valid links to object storage.
// @Summary Export Links
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Success 200 {object} verification.ExportResult
// @Failure 503 {object} map[string]string "Export not configured"
// @Router /guilds/{guild}/links/export [post]
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	res, err := h.service.ExportValid(c.UserContext(), c.Params("guild"))
	if err != nil {
		return api.Fail(c, l, "Export failed", err)
	}
	l.Info("Links exported", zap.String("object", res.Object), zap.Int("count", res.Count))
	return c.JSON(res)
}

// HandleListExports lists the guild's stored snapshots.
// @Summary List Exports
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Success 200 {array} storage.ObjectSummary
// @Failure 503 {object} map[string]string "Export not configured"
// @Router /guilds/{guild}/links/exports [get]
func (h *Handler) HandleListExports(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	objs, err := h.service.Exports(c.UserContext(), c.Params("guild"))
	if err != nil {
		return api.Fail(c, l, "List exports failed", err)
	}
	return c.JSON(objs)
}

// HandleReadExport returns one stored snapshot.
// @Summary Read Export
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Param name path string true "Snapshot file name"
// @Success 200 {object} verification.Snapshot
// @Failure 404 {object} map[string]string "Snapshot not found"
// @Router /guilds/{guild}/links/exports/{name} [get]
func (h *Handler) HandleReadExport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	snap, err := h.service.ReadExport(c.UserContext(), c.Params("guild"), c.Params("name"))
	if err != nil {
		return api.Fail(c, l, "Read export failed", err)
	}
	return c.JSON(snap)
}

// HandleCheckUser returns a member's link status.
// @Summary Check User
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {object} reconcile.Status
// @Router /guilds/{guild}/links/users/{discord} [get]
func (h *Handler) HandleCheckUser(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	st, err := h.service.CheckUser(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, "Check user failed", err)
	}
	return c.JSON(st)
}

// HandleHistory returns every record of a member, oldest first.
// @Summary Link History
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {array} links.LinkRecord
// @Router /guilds/{guild}/links/users/{discord}/history [get]
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	recs, err := h.service.History(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, "History failed", err)
	}
	return c.JSON(recs)
}

// HandleCkeys lists every ckey a member has been linked to.
// @Summary Ckeys For User
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {array} string
// @Router /guilds/{guild}/links/users/{discord}/ckeys [get]
func (h *Handler) HandleCkeys(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	ckeys, err := h.service.CkeysFor(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, "Ckey lookup failed", err)
	}
	return c.JSON(ckeys)
}

// HandleDeverify unlinks a member on staff request.
// @Summary Deverify
// @Description Invalidate the member's link and mark them deverified. Under the guild's force-stay policy the member is also removed.
// @Tags links
// @Accept json
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Param body body DeverifyRequest false "Reason"
// @Success 200 {object} api.Outcome
// @Failure 409 {object} map[string]string "Already unlinked"
// @Router /guilds/{guild}/links/users/{discord}/deverify [post]
func (h *Handler) HandleDeverify(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	var req DeverifyRequest
	if err := api.Body(c, &req); err != nil {
		return api.Error(c, err)
	}

	out, err := h.service.Deverify(c.UserContext(), c.Params("guild"), id, req.Reason)
	if err != nil {
		return api.Fail(c, l, "Deverify failed", err)
	}
	return c.JSON(api.NewOutcome(out))
}

// HandleDiscordIDs lists every account that claimed a token for a ckey.
// @Summary Users For Ckey
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Param ckey path string true "Ckey"
// @Success 200 {array} string
// @Router /guilds/{guild}/links/ckeys/{ckey}/users [get]
func (h *Handler) HandleDiscordIDs(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	ids, err := h.service.DiscordIDsFor(c.UserContext(), c.Params("guild"), c.Params("ckey"))
	if err != nil {
		return api.Fail(c, l, "Discord id lookup failed", err)
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = utils.FormatDiscordID(id)
	}
	return c.JSON(out)
}

// HandleInvalidateCkey unlinks every account holding a ckey.
// @Summary Invalidate Ckey
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Param ckey path string true "Ckey"
// @Success 200 {object} api.Outcome
// @Failure 409 {object} map[string]string "Already unlinked"
// @Router /guilds/{guild}/links/ckeys/{ckey} [delete]
func (h *Handler) HandleInvalidateCkey(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	out, err := h.service.InvalidateCkey(c.UserContext(), c.Params("guild"), c.Params("ckey"))
	if err != nil {
		return api.Fail(c, l, fmt.Sprintf("Invalidate ckey %s failed", c.Params("ckey")), err)
	}
	return c.JSON(api.NewOutcome(out))
}

// HandleInvalidateGone unlinks every linked account that has left the guild.
// @Summary Invalidate Departed Members
// @Description Check each linked account against the guild's member list and invalidate the links of those no longer present.
// @Tags links
// @Produce json
// @Param guild path string true "Guild ID"
// @Success 200 {object} api.Outcome
// @Failure 503 {object} map[string]string "No Discord connection"
// @Router /guilds/{guild}/links/gone [post]
func (h *Handler) HandleInvalidateGone(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	out, err := h.service.InvalidateGone(c.UserContext(), c.Params("guild"))
	if err != nil {
		return api.Fail(c, l, "Invalidate departed members failed", err)
	}
	return c.JSON(api.NewOutcome(out))
}
