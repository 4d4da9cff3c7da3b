package booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinicbook/internal/domain/identity"
	"github.com/clinicbook/clinicbook/internal/platform/auth"
	"github.com/clinicbook/clinicbook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/bookings", h.CreateBooking, auth.RequireRole(auth.RolePatient))
	api.GET("/bookings/:id", h.GetBooking)
	api.DELETE("/bookings/:id", h.CancelBooking)
	api.PATCH("/bookings/:id/status", h.UpdateBookingStatus, auth.RequireRole(auth.RoleDoctor))
	api.GET("/patients/:patientId/bookings", h.ListPatientBookings)
	api.GET("/doctors/:doctorId/bookings", h.ListDoctorBookings)

	api.POST("/schedules", h.CreateSchedule, auth.RequireRole(auth.RoleDoctor))
	api.GET("/schedules/:id", h.GetSchedule)
	api.PUT("/schedules/:id", h.UpdateSchedule, auth.RequireRole(auth.RoleDoctor))
	api.DELETE("/schedules/:id", h.DeleteSchedule, auth.RequireRole(auth.RoleDoctor))
	api.PUT("/schedules/:id/approve", h.ApproveSchedule, auth.RequireRole(auth.RoleAdmin))
	api.PUT("/schedules/:id/reject", h.RejectSchedule, auth.RequireRole(auth.RoleAdmin))
	api.GET("/doctors/:doctorId/schedules", h.ListDoctorSchedules)
}

// actorFromContext converts the verified token identity into a domain
// actor.
func actorFromContext(c echo.Context) (Actor, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	role, err := identity.ParseRole(id.Role)
	if err != nil {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unknown role")
	}
	return Actor{ID: id.UserID, Role: role}, nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// httpStatus maps a domain error code to the transport status. Internal
// detail never leaks to clients.
func httpStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCapacityFull, CodeDuplicateBooking, CodePatientTimeConflict,
		CodeAlreadyCancelled, CodeInvalidTransition, CodeHasActiveBookings:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func domainError(err error) error {
	code := CodeOf(err)
	if code == CodeInternal {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	message := "request failed"
	var de *Error
	if errors.As(err, &de) {
		message = de.Message
	}
	return echo.NewHTTPError(httpStatus(code), map[string]string{
		"code":    string(code),
		"message": message,
	})
}

// -- Booking handlers --

func (h *Handler) CreateBooking(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var in CreateBookingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.CreateBooking(c.Request().Context(), actor, in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), actor, id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CancelBooking(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.CancelBooking(c.Request().Context(), actor, id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) UpdateBookingStatus(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.UpdateBookingStatus(c.Request().Context(), actor, id, in.Status)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListPatientBookings(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBookingsByPatient(c.Request().Context(), actor, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDoctorBookings(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	doctorID, err := pathID(c, "doctorId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBookingsByDoctor(c.Request().Context(), actor, doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Schedule handlers --

func (h *Handler) CreateSchedule(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var in CreateScheduleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.CreateSchedule(c.Request().Context(), actor, in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), actor, id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateScheduleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.UpdateSchedule(c.Request().Context(), actor, id, in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), actor, id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ApproveSchedule(c echo.Context) error {
	return h.reviewSchedule(c, ApprovalApproved)
}

func (h *Handler) RejectSchedule(c echo.Context) error {
	return h.reviewSchedule(c, ApprovalRejected)
}

func (h *Handler) reviewSchedule(c echo.Context, state ApprovalState) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var sched *Schedule
	if state == ApprovalApproved {
		sched, err = h.svc.ApproveSchedule(c.Request().Context(), actor, id)
	} else {
		sched, err = h.svc.RejectSchedule(c.Request().Context(), actor, id)
	}
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListDoctorSchedules(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	doctorID, err := pathID(c, "doctorId")
	if err != nil {
		return err
	}
	includeAll := c.QueryParam("include_all") == "true"
	items, err := h.svc.ListDoctorSchedules(c.Request().Context(), actor, doctorID, c.QueryParam("date"), includeAll)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}
