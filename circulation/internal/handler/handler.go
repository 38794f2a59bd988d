package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	md "github.com/Astemirdum/library-circulation/pkg/middleware"
	"github.com/Astemirdum/library-circulation/pkg/validate"
)

type Handler struct {
	svc    CirculationService
	events Enqueuer
	log    *zap.Logger
}

func New(svc CirculationService, events Enqueuer, log *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		events: events,
		log:    log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.POST("/books", h.CreateBook)
	api.GET("/books/:bookId", h.GetBook)
	api.POST("/books/:bookId/copies", h.AddCopies)
	api.DELETE("/books/:bookId/copies", h.RemoveCopies)
	api.GET("/books/:bookId/inventory", h.CheckInventory)

	api.POST("/loans/checkout", h.Checkout)
	api.PUT("/loans/return/:loanId", h.ReturnCopy)
	api.GET("/loans/user/:userId", h.UserLoans)
	api.GET("/loans/stats", h.LoanStats)

	api.POST("/reservations", h.Reserve)
	api.GET("/reservations/all", h.ActiveReservations)
	api.GET("/reservations/user/:userId", h.UserReservations)
	api.POST("/reservations/:id/cancel", h.CancelReservation)
	api.POST("/reservations/:id/fulfill", h.FulfillReservation)

	api.GET("/admin/dashboard-stats", h.DashboardStats)
	api.GET("/admin/recent-activity", h.RecentActivity)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps coordinator errors onto statuses.
func (h *Handler) httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errs.IsNotFound(err):
		code = http.StatusNotFound
	case errs.IsPrecondition(err):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrConcurrencyConflict):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	return echo.NewHTTPError(code, err.Error())
}

func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func intParam(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return v, nil
}

// publish never fails the request: the state change is already committed.
func (h *Handler) publish(ctx context.Context, event kafka.CirculationEvent) {
	event.EventUid = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := h.events.Enqueue(ctx, event); err != nil {
		h.log.Warn("publish event", zap.Error(err), zap.String("type", string(event.EventType)))
	}
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	book, err := h.svc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) GetBook(c echo.Context) error {
	bookID, err := intParam(c, "bookId")
	if err != nil {
		return err
	}
	book, err := h.svc.GetBook(c.Request().Context(), bookID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) AddCopies(c echo.Context) error {
	bookID, err := intParam(c, "bookId")
	if err != nil {
		return err
	}
	var req model.CopiesRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	book, err := h.svc.AddCopies(c.Request().Context(), bookID, req.Count)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) RemoveCopies(c echo.Context) error {
	bookID, err := intParam(c, "bookId")
	if err != nil {
		return err
	}
	count := 1
	if countParam := c.QueryParam("count"); countParam != "" {
		if count, err = strconv.Atoi(countParam); err != nil || count <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "count is invalid")
		}
	}
	book, err := h.svc.RemoveCopies(c.Request().Context(), bookID, count)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) CheckInventory(c echo.Context) error {
	bookID, err := intParam(c, "bookId")
	if err != nil {
		return err
	}
	report, err := h.svc.CheckInventory(c.Request().Context(), bookID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) Checkout(c echo.Context) error {
	var req model.CheckoutRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	loan, err := h.svc.Checkout(ctx, req)
	if err != nil {
		return h.httpError(err)
	}
	h.publish(ctx, kafka.CirculationEvent{
		EventType: kafka.EventLoanCreated,
		Timestamp: loan.LoanDate,
		UserID:    loan.UserID,
		BookID:    loan.BookID,
		LoanID:    loan.ID,
	})
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ReturnCopy(c echo.Context) error {
	loanID, err := intParam(c, "loanId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.svc.ReturnCopy(ctx, loanID)
	if err != nil {
		return h.httpError(err)
	}
	returned := kafka.CirculationEvent{
		EventType: kafka.EventLoanReturned,
		UserID:    res.Loan.UserID,
		BookID:    res.Loan.BookID,
		LoanID:    res.Loan.ID,
	}
	if res.Loan.ReturnDate != nil {
		returned.Timestamp = *res.Loan.ReturnDate
	}
	h.publish(ctx, returned)
	if n := res.Notification; n != nil {
		h.publish(ctx, kafka.CirculationEvent{
			EventType:     kafka.EventReservationReady,
			Timestamp:     returned.Timestamp,
			UserID:        n.UserID,
			BookID:        n.BookID,
			ReservationID: n.ReservationID,
			Message:       n.Message,
		})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) UserLoans(c echo.Context) error {
	userID, err := intParam(c, "userId")
	if err != nil {
		return err
	}
	loans, err := h.svc.UserLoans(c.Request().Context(), userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) LoanStats(c echo.Context) error {
	stats, err := h.svc.LoanStats(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Reserve(c echo.Context) error {
	var req model.ReservationRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	rsv, err := h.svc.Reserve(ctx, req)
	if err != nil {
		return h.httpError(err)
	}
	h.publish(ctx, kafka.CirculationEvent{
		EventType:     kafka.EventReservationCreated,
		Timestamp:     rsv.ReservationDate,
		UserID:        rsv.UserID,
		BookID:        rsv.BookID,
		ReservationID: rsv.ID,
	})
	return c.JSON(http.StatusCreated, rsv)
}

func (h *Handler) ActiveReservations(c echo.Context) error {
	items, err := h.svc.ActiveReservations(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UserReservations(c echo.Context) error {
	userID, err := intParam(c, "userId")
	if err != nil {
		return err
	}
	items, err := h.svc.UserReservations(c.Request().Context(), userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	reservationID, err := intParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rsv, err := h.svc.CancelReservation(ctx, reservationID)
	if err != nil {
		return h.httpError(err)
	}
	h.publish(ctx, kafka.CirculationEvent{
		EventType:     kafka.EventReservationCancelled,
		UserID:        rsv.UserID,
		BookID:        rsv.BookID,
		ReservationID: rsv.ID,
	})
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) FulfillReservation(c echo.Context) error {
	reservationID, err := intParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	loan, err := h.svc.FulfillReservation(ctx, reservationID)
	if err != nil {
		return h.httpError(err)
	}
	h.publish(ctx, kafka.CirculationEvent{
		EventType:     kafka.EventReservationFulfilled,
		Timestamp:     loan.LoanDate,
		UserID:        loan.UserID,
		BookID:        loan.BookID,
		LoanID:        loan.ID,
		ReservationID: reservationID,
	})
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) DashboardStats(c echo.Context) error {
	stats, err := h.svc.DashboardStats(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) RecentActivity(c echo.Context) error {
	limit := 10
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		var err error
		if limit, err = strconv.Atoi(limitParam); err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit is invalid")
		}
	}
	items, err := h.svc.RecentActivity(c.Request().Context(), limit)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
