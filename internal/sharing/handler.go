package sharing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/epishare/epishare/internal/platform/auth"
	"github.com/epishare/epishare/internal/platform/exchange"
	"github.com/epishare/epishare/pkg/pagination"
)

// Handler is the operator-facing API for the share protocol.
type Handler struct {
	svc       *Service
	directory *exchange.Directory
}

func NewHandler(svc *Service, directory *exchange.Directory) *Handler {
	return &Handler{svc: svc, directory: directory}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("surveillance_officer"))
	g.GET("/partners", h.ListPartners)
	g.POST("/shares/:kind", h.Share)
	g.GET("/shares/:kind/:uuid", h.SharesOfEntity)
	g.POST("/shares/:kind/:uuid/return", h.ReturnEntity)
	g.POST("/shares/:kind/:uuid/sync", h.SyncEntity)
	g.GET("/share-requests", h.ListIncomingRequests)
	g.POST("/share-requests/:uuid/accept", h.AcceptRequest)
	g.POST("/share-requests/:uuid/reject", h.RejectRequest)
}

type shareBody struct {
	UUIDs   []string `json:"uuids"`
	Options Options  `json:"options"`
}

func (h *Handler) ListPartners(c echo.Context) error {
	partners := h.directory.List()
	// Secrets never leave the server.
	out := make([]map[string]string, 0, len(partners))
	for _, p := range partners {
		out = append(out, map[string]string{"id": p.ID, "name": p.Name})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Share(c echo.Context) error {
	var body shareBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	requestUUID, err := h.svc.Share(c.Request().Context(), c.Param("kind"), body.UUIDs, body.Options)
	if err != nil {
		return shareError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"request_uuid": requestUUID})
}

func (h *Handler) SharesOfEntity(c echo.Context) error {
	infos, err := h.svc.SharesOfEntity(c.Request().Context(), c.Param("kind"), c.Param("uuid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, infos)
}

func (h *Handler) ReturnEntity(c echo.Context) error {
	var body shareBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ReturnEntity(c.Request().Context(), c.Param("kind"), c.Param("uuid"), body.Options); err != nil {
		return shareError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SyncEntity(c echo.Context) error {
	var body shareBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SyncEntity(c.Request().Context(), c.Param("kind"), c.Param("uuid"), body.Options); err != nil {
		return shareError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListIncomingRequests(c echo.Context) error {
	status := RequestStatus(c.QueryParam("status"))
	if status == "" {
		status = StatusPending
	}
	p := pagination.FromContext(c)
	requests, total, err := h.svc.ListIncomingRequests(c.Request().Context(), status, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(requests, total, p.Limit, p.Offset))
}

func (h *Handler) AcceptRequest(c echo.Context) error {
	err := h.svc.AcceptShareRequest(c.Request().Context(), c.Param("uuid"))
	if err != nil && !exchange.IsWarning(err) {
		return shareError(err)
	}
	if err != nil {
		// Accepted locally, sender not notified.
		return c.JSON(http.StatusOK, map[string]string{"warning": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RejectRequest(c echo.Context) error {
	var body struct {
		Comment string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.RejectShareRequest(c.Request().Context(), c.Param("uuid"), body.Comment); err != nil {
		return shareError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func shareError(err error) error {
	var verrs *ValidationErrors
	if errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, verrs)
	}
	var exErr *exchange.Error
	if errors.As(err, &exErr) {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
