package verify

import (
	"context"

	"ckeytools/core/api"
	"ckeytools/core/logger"
	"ckeytools/core/reconcile"
	"ckeytools/core/session"
	"ckeytools/core/verification"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for verification flows.
type Handler struct {
	service *verification.Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *verification.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the verify routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/guilds/:guild/members/:discord")
	group.Post("/ticket", h.HandleOpenTicket)
	group.Post("/manual", h.HandleBeginManual)
	group.Post("/code", h.HandleSubmitCode)
	group.Get("/session", h.HandleGetSession)
	group.Delete("/session", h.HandleCancelSession)
	group.Post("/join", h.HandleJoin)
	group.Post("/leave", h.HandleLeave)
}

// TicketRequest anchors the ticket's UI.
type TicketRequest struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// TicketResponse describes what opening a ticket did.
type TicketResponse struct {
	AlreadyLinked bool             `json:"already_linked"`
	AutoLinked    bool             `json:"auto_linked"`
	Session       *session.Session `json:"session,omitempty"`
	Outcome       *api.Outcome     `json:"outcome,omitempty"`
}

// CodeRequest carries the one-time token typed by the member.
type CodeRequest struct {
	Token string `json:"token"`
}

// HandleOpenTicket opens a verification ticket.
// @Summary Open Ticket
// @Description Open a ticket session. Linked members get their roles reapplied instead; with auto-verification a member with history is re-linked.
// @Tags verify
// @Accept json
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Param body body TicketRequest false "Ticket anchor"
// @Success 200 {object} TicketResponse
// @Failure 403 {object} map[string]string "Verification disabled"
// @Failure 409 {object} map[string]string "Session already open"
// @Router /guilds/{guild}/members/{discord}/ticket [post]
func (h *Handler) HandleOpenTicket(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	var req TicketRequest
	if err := api.Body(c, &req); err != nil {
		return api.Error(c, err)
	}

	res, err := h.service.OpenTicket(c.UserContext(), c.Params("guild"), id, session.Anchor{ChannelID: req.ChannelID, MessageID: req.MessageID})
	if err != nil {
		return api.Fail(c, l, "Open ticket failed", err)
	}
	return c.JSON(TicketResponse{
		AlreadyLinked: res.AlreadyLinked,
		AutoLinked:    res.AutoLinked,
		Session:       res.Session,
		Outcome:       api.NewOutcome(res.Outcome),
	})
}

// HandleBeginManual opens a manual-code session.
// @Summary Begin Manual Verification
// @Tags verify
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 201 {object} session.Session
// @Failure 409 {object} map[string]string "Session already open"
// @Router /guilds/{guild}/members/{discord}/manual [post]
func (h *Handler) HandleBeginManual(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	s, err := h.service.BeginManual(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, "Begin manual verification failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// HandleSubmitCode claims a one-time token for the member.
// @Summary Submit Code
// @Description Claim a one-time token while the member's session is open.
// @Tags verify
// @Accept json
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Param body body CodeRequest true "Token"
// @Success 200 {object} api.Outcome
// @Failure 404 {object} map[string]string "Unknown token or no session"
// @Failure 409 {object} map[string]string "Token already claimed"
// @Failure 410 {object} map[string]string "Session expired"
// @Router /guilds/{guild}/members/{discord}/code [post]
func (h *Handler) HandleSubmitCode(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	var req CodeRequest
	if err := api.Body(c, &req); err != nil {
		return api.Error(c, err)
	}

	out, err := h.service.SubmitCode(c.UserContext(), c.Params("guild"), id, req.Token)
	if err != nil {
		return api.Fail(c, l, "Submit code failed", err)
	}
	l.Info("Token claimed", zap.String("ckey", out.Record.Ckey), zap.Int64("discord_id", id))
	return c.JSON(api.NewOutcome(out))
}

// HandleGetSession returns the member's session.
// @Summary Get Session
// @Tags verify
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {object} session.Session
// @Failure 404 {object} map[string]string "No session"
// @Router /guilds/{guild}/members/{discord}/session [get]
func (h *Handler) HandleGetSession(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	s, err := h.service.Session(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, "Get session failed", err)
	}
	return c.JSON(s)
}

// HandleCancelSession cancels the member's open session.
// @Summary Cancel Session
// @Tags verify
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {object} session.Session
// @Failure 404 {object} map[string]string "No session"
// @Failure 409 {object} map[string]string "Session closed"
// @Router /guilds/{guild}/members/{discord}/session [delete]
func (h *Handler) HandleCancelSession(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	s, err := h.service.CancelSession(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, "Cancel session failed", err)
	}
	return c.JSON(s)
}

// HandleJoin reports a member joining the guild.
// @Summary Member Joined
// @Tags verify
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {object} api.Outcome
// @Router /guilds/{guild}/members/{discord}/join [post]
func (h *Handler) HandleJoin(c *fiber.Ctx) error {
	return h.membership(c, "Join", h.service.Join)
}

// HandleLeave reports a member leaving the guild.
// @Summary Member Left
// @Tags verify
// @Produce json
// @Param guild path string true "Guild ID"
// @Param discord path string true "Discord user ID"
// @Success 200 {object} api.Outcome
// @Router /guilds/{guild}/members/{discord}/leave [post]
func (h *Handler) HandleLeave(c *fiber.Ctx) error {
	return h.membership(c, "Leave", h.service.Leave)
}

type membershipFunc func(ctx context.Context, guildID string, discordID int64) (*reconcile.Outcome, error)

func (h *Handler) membership(c *fiber.Ctx, name string, fn membershipFunc) error {
	l := logger.WithRayID(h.logger, c)
	id, err := api.DiscordID(c, "discord")
	if err != nil {
		return api.Error(c, err)
	}
	out, err := fn(c.UserContext(), c.Params("guild"), id)
	if err != nil {
		return api.Fail(c, l, name+" failed", err)
	}
	return c.JSON(api.NewOutcome(out))
}
