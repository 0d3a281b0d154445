package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/deppfellow/user-service/internal/errs"
	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/deppfellow/user-service/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AccountService is the account workflow the handler drives.
type AccountService interface {
	List(ctx context.Context) ([]model.Account, error)
	Create(ctx context.Context, in model.NewAccount) model.Result
	Update(ctx context.Context, p model.AccountPatch) model.Result
	Delete(ctx context.Context, id uuid.UUID) model.Result
	Authenticate(ctx context.Context, username, password string) model.AuthResult
	GetByID(ctx context.Context, id uuid.UUID) model.AuthResult
}

type AccountHandler struct {
	Handler
	accounts AccountService
}

func NewAccountHandler(s *server.Server, accounts AccountService) *AccountHandler {
	return &AccountHandler{
		Handler:  NewHandler(s),
		accounts: accounts,
	}
}

func (h *AccountHandler) GetAll() echo.HandlerFunc {
	return Handle(h.Handler, func(c echo.Context, _ *Empty) ([]model.Account, error) {
		return h.accounts.List(c.Request().Context())
	}, http.StatusOK)
}

func (h *AccountHandler) Create() echo.HandlerFunc {
	return HandleOutcome(h.Handler, func(c echo.Context, req *CreateAccountRequest) (model.Result, error) {
		image, closeImage, err := h.formImage(c)
		if err != nil {
			return model.Result{}, err
		}
		defer closeImage()

		return h.accounts.Create(c.Request().Context(), model.NewAccount{
			FullName:     req.FullName,
			Username:     req.Username,
			Email:        optional(req.Email),
			PhoneNumber:  optional(req.PhoneNumber),
			RoleID:       uuid.MustParse(req.RoleID),
			Password:     req.Password,
			Image:        image,
			ImageBaseURL: baseURL(c),
		}), nil
	})
}

func (h *AccountHandler) Update() echo.HandlerFunc {
	return HandleOutcome(h.Handler, func(c echo.Context, req *UpdateAccountRequest) (model.Result, error) {
		image, closeImage, err := h.formImage(c)
		if err != nil {
			return model.Result{}, err
		}
		defer closeImage()

		return h.accounts.Update(c.Request().Context(), model.AccountPatch{
			ID:           uuid.MustParse(req.ID),
			FullName:     optional(req.FullName),
			Username:     optional(req.Username),
			Email:        optional(req.Email),
			PhoneNumber:  optional(req.PhoneNumber),
			RoleID:       uuid.MustParse(req.RoleID),
			IsActive:     req.IsActive,
			RemoveImage:  req.RemoveImage,
			Image:        image,
			ImageBaseURL: baseURL(c),
		}), nil
	})
}

func (h *AccountHandler) Delete() echo.HandlerFunc {
	return HandleOutcome(h.Handler, func(c echo.Context, req *IDParam) (model.Result, error) {
		return h.accounts.Delete(c.Request().Context(), req.UUID()), nil
	})
}

// Authenticate always answers 200; IsSuccess tells the caller the outcome.
func (h *AccountHandler) Authenticate() echo.HandlerFunc {
	return Handle(h.Handler, func(c echo.Context, req *AuthenticateRequest) (model.AuthResult, error) {
		return h.accounts.Authenticate(c.Request().Context(), req.Username, req.Password), nil
	}, http.StatusOK)
}

func (h *AccountHandler) GetByID() echo.HandlerFunc {
	return Handle(h.Handler, func(c echo.Context, req *IDParam) (model.AuthResult, error) {
		return h.accounts.GetByID(c.Request().Context(), req.UUID()), nil
	}, http.StatusOK)
}

// formImage opens the optional "image" part. The returned close func is
// always safe to call.
func (h *AccountHandler) formImage(c echo.Context) (*storage.Upload, func(), error) {
	noop := func() {}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, errs.NewBadRequestError("Invalid image upload", false, nil, nil, nil)
	}

	if limit := h.server.Config.Storage.MaxUpload; limit > 0 && fh.Size > limit {
		return nil, noop, imageError(fmt.Sprintf("must not exceed %d bytes", limit))
	}

	file, err := fh.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open uploaded image: %w", err)
	}

	upload := &storage.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     file,
	}
	if err := storage.DetectImage(upload); err != nil {
		closeFile(file)
		return nil, noop, imageError("must be an image file")
	}

	return upload, func() { closeFile(file) }, nil
}

func closeFile(f multipart.File) {
	_ = f.Close()
}

func imageError(msg string) error {
	return errs.NewBadRequestError("Validation failed", true, nil, []errs.FieldError{{Field: "image", Error: msg}}, nil)
}

// baseURL is the scheme and host the request arrived on, used to build
// image references.
func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
