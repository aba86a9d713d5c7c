package console

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carepulse/console/internal/domain/account"
	"github.com/carepulse/console/internal/domain/audit"
	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/internal/domain/review"
	"github.com/carepulse/console/internal/domain/timeline"
	"github.com/carepulse/console/internal/platform/gateway"
	"github.com/carepulse/console/internal/platform/session"
	"github.com/carepulse/console/pkg/pagination"
)

// Views the rendering layer is moved between.
const (
	ViewPatients = "patients"
	ViewPatient  = "patient"
	ViewAudit    = "audit"
)

type Handler struct {
	accounts  *account.Service
	patients  *patient.Service
	audit     *audit.Service
	workspace *Workspace
	router    *Router
	sess      *session.Session
	now       func() time.Time
}

func NewHandler(accounts *account.Service, patients *patient.Service, auditSvc *audit.Service, ws *Workspace, router *Router, sess *session.Session) *Handler {
	return &Handler{
		accounts:  accounts,
		patients:  patients,
		audit:     auditSvc,
		workspace: ws,
		router:    router,
		sess:      sess,
		now:       time.Now,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/session", h.Login)

	authed := api.Group("", h.requireSession)
	authed.DELETE("/session", h.Logout)
	authed.GET("/session/me", h.Me)

	authed.GET("/patients", h.ListPatients)
	authed.GET("/patients/:id/view", h.GetView)
	authed.GET("/patients/:id/timeline", h.GetTimeline)
	authed.POST("/patients/:id/actions", h.ApplyAction)

	authed.GET("/audit/events", h.ListAuditEvents)
	authed.GET("/audit/events.csv", h.ExportAuditEvents)
	authed.GET("/audit/care", h.ListCareAudit)
}

func (h *Handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.sess.Active() {
			return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
		}
		return next(c)
	}
}

// -- Session --

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	sess, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	h.router.Show(ViewPatients)
	return c.JSON(http.StatusOK, sessionResponse{Role: string(sess.Role()), Name: sess.Name()})
}

func (h *Handler) Logout(c echo.Context) error {
	err := h.accounts.Logout(c.Request().Context())
	h.router.Show(gateway.LoginView)
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := h.accounts.Me(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Patients --

func (h *Handler) ListPatients(c echo.Context) error {
	patients, err := h.patients.ListPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	h.router.Show(ViewPatients)
	_, resp := pagination.Window(patients, pagination.FromContext(c))
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetView(c echo.Context) error {
	v, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

type timelineDay struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	*timeline.Day
}

func (h *Handler) GetTimeline(c echo.Context) error {
	v, err := h.load(c)
	if err != nil {
		return err
	}
	now := h.now()
	days := make([]timelineDay, 0, len(v.Timeline.DayKeys))
	for _, key := range v.Timeline.DayKeys {
		days = append(days, timelineDay{Key: key, Label: timeline.DayLabel(key, now), Day: v.Timeline.Day(key)})
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) ApplyAction(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var a Action
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.workspace.Apply(c.Request().Context(), id, a)
	if err != nil {
		return httpError(err)
	}
	if v == nil {
		return echo.NewHTTPError(http.StatusConflict, "load superseded")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) load(c echo.Context) (*View, error) {
	id, err := patientID(c)
	if err != nil {
		return nil, err
	}
	day := c.QueryParam("day")
	if day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "day must be YYYY-MM-DD")
		}
	}
	v, ok, err := h.workspace.Load(c.Request().Context(), id, day)
	if err != nil {
		return nil, httpError(err)
	}
	if !ok {
		return nil, echo.NewHTTPError(http.StatusConflict, "load superseded")
	}
	h.router.Show(ViewPatient)
	return v, nil
}

func patientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Audit --

func auditFilter(c echo.Context) (audit.Filter, error) {
	f := audit.Filter{
		Search:   c.QueryParam("search"),
		Category: audit.Category(c.QueryParam("category")),
		Start:    c.QueryParam("start"),
		End:      c.QueryParam("end"),
	}
	if err := f.Validate(); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return f, nil
}

func (h *Handler) ListAuditEvents(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.SystemEvents(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	h.router.Show(ViewAudit)
	_, resp := pagination.Window(entries, pagination.FromContext(c))
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExportAuditEvents(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	out, err := h.audit.ExportSystemEvents(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="audit-events.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func (h *Handler) ListCareAudit(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.CareAudit(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// httpError maps domain and gateway errors onto console responses.
func httpError(err error) error {
	var (
		validation *review.ValidationError
		apiErr     *gateway.ApiError
		transport  *gateway.TransportError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, care.ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, review.ErrNoCallLog), errors.Is(err, ErrNoView):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(apiErr.Status, err.Error())
	case errors.As(err, &transport):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
