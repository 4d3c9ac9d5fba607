package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/opsdocs/signoff"
	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/present/rest/middleware"
	"github.com/opsdocs/signoff/internal/present/rest/presenter"
	"github.com/opsdocs/signoff/internal/service"
	"github.com/opsdocs/signoff/internal/usecase"
)

type Handler struct {
	document   *usecase.DocumentUsecase
	workflow   *usecase.WorkflowUsecase
	invitation *usecase.InvitationUsecase
	permission *usecase.PermissionUsecase
	signal     *service.SignalService
}

func NewHandler(
	document *usecase.DocumentUsecase,
	workflow *usecase.WorkflowUsecase,
	invitation *usecase.InvitationUsecase,
	permission *usecase.PermissionUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		document:   document,
		workflow:   workflow,
		invitation: invitation,
		permission: permission,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, auth *middleware.AuthMiddleware) {
	api := e.Group("/api/v1", auth.RequireActor)

	api.POST("/documents", h.handleCreateDocument)
	api.GET("/documents/:id", h.handleGetDocument)
	api.PUT("/documents/:id", h.handleUpdateDocument)
	api.GET("/documents/:id/versions", h.handleVersions)
	api.GET("/documents/:id/signatures", h.handleSignatures)
	api.POST("/documents/:id/publish", h.handlePublish)
	api.POST("/documents/:id/sign", h.handleSign)
	api.POST("/documents/:id/reject", h.handleReject)
	api.POST("/documents/:id/archive", h.handleArchive)
	api.POST("/documents/:id/reset", h.handleReset)

	api.GET("/documents/:id/invitations", h.handleListInvitations)
	api.POST("/invitations", h.handleInvite)
	api.POST("/invitations/accept", h.handleAcceptInvitation)
	api.POST("/invitations/decline", h.handleDeclineInvitation)
	api.POST("/invitations/:id/resend", h.handleResendInvitation)
	api.DELETE("/invitations/:id", h.handleCancelInvitation)

	api.GET("/documents/:id/permissions", h.handleListPermissions)
	api.PUT("/documents/:id/permissions", h.handleGrantPermission)
	api.DELETE("/documents/:id/permissions/:userId", h.handleRevokePermission)

	e.GET("/realtime", h.handleRealtime, auth.RequireActor)
}

func actor(c echo.Context) domain.User {
	a, _ := middleware.Actor(c.Request().Context())
	return a
}

func (h *Handler) handleCreateDocument(c echo.Context) error {
	ctx := c.Request().Context()

	var req signoff.CreateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}

	input := usecase.CreateDocumentInput{
		Reference: req.Reference,
		Title:     req.Title,
		Version:   req.Version,
		Body:      req.Body,
	}
	for _, contributor := range req.Contributors {
		input.Contributors = append(input.Contributors, usecase.ContributorInput{
			UserID: contributor.UserID,
			Team:   contributor.Team,
		})
	}

	doc, err := h.document.Create(ctx, actor(c), input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, doc)
}

func (h *Handler) handleGetDocument(c echo.Context) error {
	doc, err := h.document.Get(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleUpdateDocument(c echo.Context) error {
	var req signoff.UpdateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}

	doc, err := h.document.Update(c.Request().Context(), actor(c), c.Param("id"), usecase.UpdateDocumentInput{
		Title:      req.Title,
		Version:    req.Version,
		Body:       req.Body,
		ChangeNote: req.ChangeNote,
		Autosave:   req.Autosave,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleVersions(c echo.Context) error {
	versions, err := h.document.Versions(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}

	summaries := make([]signoff.VersionSummary, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, signoff.VersionSummary{
			ID:         v.ID,
			Version:    v.Version,
			CreatedBy:  v.CreatedBy,
			ChangeNote: v.ChangeNote,
			CreatedAt:  v.CreatedAt,
		})
	}
	return presenter.OK(c, summaries)
}

func (h *Handler) handleSignatures(c echo.Context) error {
	signatures, err := h.document.Signatures(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, signatures)
}

func (h *Handler) handlePublish(c echo.Context) error {
	doc, err := h.workflow.Publish(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleSign(c echo.Context) error {
	var req signoff.SignRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}

	meta := usecase.SignContext{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
	doc, err := h.workflow.Sign(c.Request().Context(), actor(c), c.Param("id"), req.OnBehalfOf, req.Payload, meta)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleReject(c echo.Context) error {
	var req signoff.RejectRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}

	doc, err := h.workflow.Reject(c.Request().Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleArchive(c echo.Context) error {
	doc, err := h.workflow.Archive(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleReset(c echo.Context) error {
	doc, err := h.workflow.Reset(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleListInvitations(c echo.Context) error {
	invitations, err := h.invitation.ListByDocument(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, invitations)
}

func (h *Handler) handleInvite(c echo.Context) error {
	var req signoff.InviteRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}

	inv, err := h.invitation.Invite(c.Request().Context(), actor(c), usecase.InviteInput{
		DocumentID: req.DocumentID,
		Email:      req.Email,
		Team:       req.Team,
		Message:    req.Message,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, signoff.InvitationCreated{Invitation: inv})
}

func (h *Handler) handleAcceptInvitation(c echo.Context) error {
	var req signoff.AcceptInvitationRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}
	if req.Token == "" {
		return presenter.BadRequestMessage(c, "token is required")
	}

	inv, err := h.invitation.Accept(c.Request().Context(), actor(c), req.Token)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, inv)
}

func (h *Handler) handleDeclineInvitation(c echo.Context) error {
	var req signoff.DeclineInvitationRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}
	if req.Token == "" {
		return presenter.BadRequestMessage(c, "token is required")
	}

	inv, err := h.invitation.Decline(c.Request().Context(), actor(c), req.Token, req.Reason)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, inv)
}

func (h *Handler) handleResendInvitation(c echo.Context) error {
	inv, err := h.invitation.Resend(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, signoff.InvitationCreated{Invitation: inv})
}

func (h *Handler) handleCancelInvitation(c echo.Context) error {
	inv, err := h.invitation.Cancel(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, inv)
}

func (h *Handler) handleListPermissions(c echo.Context) error {
	grants, err := h.permission.List(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, grants)
}

func (h *Handler) handleGrantPermission(c echo.Context) error {
	var req signoff.GrantPermissionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "malformed request body")
	}

	grant, err := h.permission.Grant(c.Request().Context(), actor(c), c.Param("id"), req.UserID, req.Level)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, grant)
}

func (h *Handler) handleRevokePermission(c echo.Context) error {
	err := h.permission.Revoke(c.Request().Context(), actor(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan domain.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req signoff.RealtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				select {
				case quit <- struct{}{}:
				case <-ctx.Done():
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Documents:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Documents),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case ev := <-output:
			err := ws.WriteJSON(ev)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
