package sharing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/epishare/epishare/internal/platform/crypto"
	"github.com/epishare/epishare/internal/platform/exchange"
)

// Receiver exposes the partner-facing endpoints under /exchange. Every
// request carries a bearer token signed with the shared partner secret
// and a sealed envelope body.
type Receiver struct {
	instanceID string
	directory  *exchange.Directory
	sealer     *crypto.Sealer
	svc        *Service
}

func NewReceiver(instanceID string, directory *exchange.Directory, sealer *crypto.Sealer, svc *Service) *Receiver {
	return &Receiver{instanceID: instanceID, directory: directory, sealer: sealer, svc: svc}
}

func (r *Receiver) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/exchange", r.partnerAuth)
	g.POST("/requests", r.saveShareRequest)
	g.POST("/requests/reject", r.requestRejected)
	g.POST("/requests/data", r.getDataForShareRequest)
	g.POST("/requests/accepted", r.requestAccepted)
	g.POST("/:kind/save", r.saveSharedEntities)
	g.PUT("/:kind/save", r.saveReturnedEntity)
	g.POST("/:kind/sync", r.saveSyncedEntity)
}

// partnerAuth verifies the bearer token against the claimed sender's
// shared secret and stashes the partner on the request context.
func (r *Receiver) partnerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		senderID := c.Request().Header.Get("X-Sender-ID")
		if senderID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing sender")
		}
		partner, err := r.directory.Get(senderID)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown sender")
		}

		authz := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenSender, err := exchange.VerifyToken(strings.TrimPrefix(authz, "Bearer "), r.instanceID, []byte(partner.Secret))
		if err != nil || tokenSender != senderID {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
		}

		c.Set("partner", partner)
		return next(c)
	}
}

func (r *Receiver) partner(c echo.Context) *exchange.Partner {
	return c.Get("partner").(*exchange.Partner)
}

// open decodes and opens the sealed request body into v.
func (r *Receiver) open(c echo.Context, v any) error {
	var env crypto.Envelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid envelope")
	}
	if err := r.sealer.Open(&env, r.partner(c).Secret, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "envelope rejected")
	}
	return nil
}

// respond seals v into the response body.
func (r *Receiver) respond(c echo.Context, v any) error {
	env, err := r.sealer.Seal(v, r.partner(c).Secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "seal response")
	}
	return c.JSON(http.StatusOK, env)
}

func protocolError(err error) error {
	var verrs *ValidationErrors
	if errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, verrs)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (r *Receiver) saveShareRequest(c echo.Context) error {
	var env RequestEnvelope
	if err := r.open(c, &env); err != nil {
		return err
	}
	// The authenticated partner, not the body, names the sender.
	env.OriginInfo.SenderID = r.partner(c).ID
	if env.OriginInfo.SenderName == "" {
		env.OriginInfo.SenderName = r.partner(c).Name
	}
	if err := r.svc.SaveShareRequest(c.Request().Context(), env); err != nil {
		return protocolError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *Receiver) requestRejected(c echo.Context) error {
	var ref RequestReference
	if err := r.open(c, &ref); err != nil {
		return err
	}
	if err := r.svc.HandleRequestRejected(c.Request().Context(), ref.RequestUUID, ref.Comment); err != nil {
		return protocolError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *Receiver) requestAccepted(c echo.Context) error {
	var ref RequestReference
	if err := r.open(c, &ref); err != nil {
		return err
	}
	if err := r.svc.HandleRequestAccepted(c.Request().Context(), ref.RequestUUID); err != nil {
		return protocolError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *Receiver) getDataForShareRequest(c echo.Context) error {
	var ref RequestReference
	if err := r.open(c, &ref); err != nil {
		return err
	}
	env, err := r.svc.GetDataForShareRequest(c.Request().Context(), ref.RequestUUID)
	if err != nil {
		return protocolError(err)
	}
	return r.respond(c, env)
}

func (r *Receiver) saveSharedEntities(c echo.Context) error {
	var env PayloadEnvelope
	if err := r.open(c, &env); err != nil {
		return err
	}
	env.OriginInfo.SenderID = r.partner(c).ID
	if err := r.svc.SaveSharedEntities(c.Request().Context(), c.Param("kind"), env); err != nil {
		return protocolError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *Receiver) saveReturnedEntity(c echo.Context) error {
	var env PayloadEnvelope
	if err := r.open(c, &env); err != nil {
		return err
	}
	env.OriginInfo.SenderID = r.partner(c).ID
	if err := r.svc.SaveReturnedEntity(c.Request().Context(), c.Param("kind"), env); err != nil {
		return protocolError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *Receiver) saveSyncedEntity(c echo.Context) error {
	var env PayloadEnvelope
	if err := r.open(c, &env); err != nil {
		return err
	}
	env.OriginInfo.SenderID = r.partner(c).ID
	if err := r.svc.SaveSyncedEntity(c.Request().Context(), c.Param("kind"), env); err != nil {
		return protocolError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
