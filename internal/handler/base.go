// Package handler contains the echo handlers of the API. Every endpoint
// runs through the same pipeline: bind, validate, call, respond, with
// timings logged and attached to the New Relic transaction.
package handler

import (
	"net/http"
	"time"

	"github.com/deppfellow/user-service/internal/middleware"
	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/deppfellow/user-service/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Handler holds the shared application dependencies of the concrete
// handlers.
type Handler struct {
	server *server.Server
}

func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// request is satisfied by *T for every request payload T.
type request[T any] interface {
	*T
	validation.Validatable
}

// HandlerFunc is a typed endpoint receiving a validated payload.
type HandlerFunc[Req validation.Validatable, Res any] func(c echo.Context, req Req) (Res, error)

// ResponseHandler writes a successful handler result.
type ResponseHandler interface {
	Handle(c echo.Context, result any) error
	GetOperation() string
	AddAttributes(txn *newrelic.Transaction, result any)
}

// JSONResponseHandler writes the result as JSON with a fixed status.
type JSONResponseHandler struct {
	status int
}

func (h JSONResponseHandler) Handle(c echo.Context, result any) error {
	return c.JSON(h.status, result)
}

func (h JSONResponseHandler) GetOperation() string {
	return "handler"
}

func (h JSONResponseHandler) AddAttributes(txn *newrelic.Transaction, result any) {}

// OutcomeResponseHandler writes a model.Result with the status its
// outcome maps to.
type OutcomeResponseHandler struct{}

func (h OutcomeResponseHandler) Handle(c echo.Context, result any) error {
	r := result.(model.Result)
	return c.JSON(OutcomeStatus(r.Outcome()), r)
}

func (h OutcomeResponseHandler) GetOperation() string {
	return "handler_outcome"
}

func (h OutcomeResponseHandler) AddAttributes(txn *newrelic.Transaction, result any) {
	if txn == nil {
		return
	}
	if r, ok := result.(model.Result); ok {
		txn.AddAttribute("result.outcome", r.Outcome().String())
		txn.AddAttribute("result.success", r.IsSuccess)
	}
}

// OutcomeStatus maps a repository outcome to its HTTP status.
func OutcomeStatus(o model.Outcome) int {
	switch o {
	case model.OutcomeCreated, model.OutcomeUpdated, model.OutcomeDeleted:
		return http.StatusOK
	case model.OutcomeAlreadyExists:
		return http.StatusConflict
	case model.OutcomeNotFound:
		return http.StatusNotFound
	case model.OutcomeNoChanges, model.OutcomeOperationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func handleRequest[Req validation.Validatable](
	c echo.Context,
	req Req,
	handler func(c echo.Context, req Req) (any, error),
	responseHandler ResponseHandler,
) error {
	start := time.Now()
	route := c.Path()

	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", route)
		responseHandler.AddAttributes(txn, nil)
	}

	logger := middleware.GetLogger(c).With().
		Str("operation", responseHandler.GetOperation()).
		Str("route", route).
		Logger()

	logger.Debug().Msg("handling request")

	validationStart := time.Now()
	if err := validation.BindAndValidate(c, req); err != nil {
		validationDuration := time.Since(validationStart)

		logger.Warn().
			Err(err).
			Dur("validation_duration", validationDuration).
			Msg("request validation failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("validation.status", "failed")
			txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
		}

		return err
	}

	validationDuration := time.Since(validationStart)
	if txn != nil {
		txn.AddAttribute("validation.status", "success")
		txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
	}

	handlerStart := time.Now()
	result, err := handler(c, req)
	handlerDuration := time.Since(handlerStart)

	if err != nil {
		totalDuration := time.Since(start)

		logger.Error().
			Err(err).
			Dur("handler_duration", handlerDuration).
			Dur("total_duration", totalDuration).
			Msg("handler execution failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("handler.status", "error")
			txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
			txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		}
		return err
	}

	totalDuration := time.Since(start)

	if txn != nil {
		txn.AddAttribute("handler.status", "success")
		txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		responseHandler.AddAttributes(txn, result)
	}

	logger.Info().
		Dur("handler_duration", handlerDuration).
		Dur("validation_duration", validationDuration).
		Dur("total_duration", totalDuration).
		Msg("request completed successfully")

	return responseHandler.Handle(c, result)
}

// Handle wraps a typed endpoint that answers JSON with status. A fresh
// payload is allocated for every request.
func Handle[Req any, PReq request[Req], Res any](
	h Handler,
	handler HandlerFunc[PReq, Res],
	status int,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, PReq(new(Req)), func(c echo.Context, req PReq) (any, error) {
			return handler(c, req)
		}, JSONResponseHandler{status: status})
	}
}

// HandleOutcome wraps a mutating endpoint whose status follows the
// outcome of its model.Result.
func HandleOutcome[Req any, PReq request[Req]](
	h Handler,
	handler HandlerFunc[PReq, model.Result],
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, PReq(new(Req)), func(c echo.Context, req PReq) (any, error) {
			return handler(c, req)
		}, OutcomeResponseHandler{})
	}
}
