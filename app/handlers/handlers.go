// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// Locals keys written by the auth middleware
const (
	LocalAccountID = "account_id"
	LocalIsStaff   = "is_staff"
	LocalTokenID   = "token_id"
)

const requestTimeout = 30 * time.Second

// baseHandler carries the response helpers and request validator shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	setupCustomValidations(v)
	return baseHandler{validator: v}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and reports whether the request may proceed.
// On failure the 400 response has already been written.
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	fields := make([]dto.FieldErrorDTO, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, dto.FieldErrorDTO{Field: fe.Field(), Message: getValidationErrorMessage(fe)})
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", fields)
}

// sendFile streams a rendered document as an attachment
func (h *baseHandler) sendFile(c fiber.Ctx, file *dto.ExportFile, disposition string) error {
	if file.ContentType != "" {
		c.Set("Content-Type", file.ContentType)
	}
	c.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, file.FileName))
	return c.Send(file.Content)
}

// respondFlowError writes the response for error classes every flow shares.
// Flow-specific sentinels are checked by the caller first.
func (h *baseHandler) respondFlowError(c fiber.Ctx, err error, failMessage, failCode string) error {
	switch {
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Validation failed"), "VALIDATION_ERROR", toFieldErrorDTOs(businessflow.ValidationFields(err)))
	case businessflow.IsNotFoundError(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, capitalize(rootMessage(err)), "NOT_FOUND", nil)
	case businessflow.IsAuthorizationError(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "You do not have access to this resource", "FORBIDDEN", nil)
	case businessflow.IsInvoiceNotEditable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Invoice can no longer be edited", "INVOICE_NOT_EDITABLE", nil)
	case businessflow.IsUnsupportedExportFormat(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported export format", "UNSUPPORTED_FORMAT", nil)
	}

	log.Println(failMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, failMessage, failCode, nil)
}

// caller returns the authenticated account and staff flag stored by the auth middleware
func caller(c fiber.Ctx) (accountID uint, isStaff bool, ok bool) {
	accountID, ok = c.Locals(LocalAccountID).(uint)
	if !ok || accountID == 0 {
		return 0, false, false
	}
	isStaff, _ = c.Locals(LocalIsStaff).(bool)
	return accountID, isStaff, true
}

func (h *baseHandler) unauthenticated(c fiber.Ctx) error {
	return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
}

// pathID parses a positive numeric path parameter
func pathID(c fiber.Ctx, key string) (uint, bool) {
	id := fiber.Params[uint](c, key)
	return id, id > 0
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}

// createRequestContext derives a bounded context carrying request-scoped values for observability
func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return createRequestContextWithTimeout(c, endpoint, requestTimeout)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func setupCustomValidations(v *validator.Validate) {
	v.RegisterValidation("ke_phone", func(fl validator.FieldLevel) bool {
		return businessflow.IsValidKenyanPhone(fl.Field().String())
	})

	v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, char := range value {
			if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '_') {
				return false
			}
		}
		return true
	})
}

// businessMessage returns the user-facing message of a BusinessError, or fallback
func businessMessage(err error, fallback string) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func toFieldErrorDTOs(fields []businessflow.FieldError) []dto.FieldErrorDTO {
	out := make([]dto.FieldErrorDTO, 0, len(fields))
	for _, f := range fields {
		out = append(out, dto.FieldErrorDTO{Field: f.Field, Message: f.Message})
	}
	return out
}

// rootMessage strips wrapping context so "invoice not found" stays readable
func rootMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", err.Field(), err.Param())
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s item(s)", err.Field(), err.Param())
		}
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "eqfield":
		return "Passwords do not match"
	case "ke_phone":
		return "Phone number must be in format +254XXXXXXXXX or 07XXXXXXXX"
	case "username_chars":
		return "Username may contain only letters, numbers and underscores"
	case "datetime":
		return err.Field() + " must be a date in format " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
