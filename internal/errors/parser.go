package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// ErrorInfo is what a view client sees for a failed call.
type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

// ParseError maps service and repository errors to a status and code.
// Anything unrecognized is an internal error and its text is not exposed.
func ParseError(err error) ErrorInfo {
	switch {
	case err == nil:
		return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: "Something went wrong"}

	case errors.Is(err, service.ErrSessionExpired):
		return ErrorInfo{Status: http.StatusUnauthorized, Code: AuthSessionExpired, Message: "Your session has expired, please sign in again"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return ErrorInfo{Status: http.StatusUnauthorized, Code: AuthInvalidCredentials, Message: "Invalid email or password"}
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return ErrorInfo{Status: http.StatusConflict, Code: AuthEmailAlreadyExists, Message: "This email is already registered"}
	case errors.Is(err, service.ErrAuthServiceUnavailable):
		return ErrorInfo{Status: http.StatusServiceUnavailable, Code: AuthServiceUnavailable, Message: "Sign-in is unavailable right now, please try again later"}

	case errors.Is(err, service.ErrInvalidQuantity):
		return ErrorInfo{Status: http.StatusBadRequest, Code: CartInvalidQuantity, Message: "Quantity must be at least 1"}
	case errors.Is(err, service.ErrCartLineNotFound):
		return ErrorInfo{Status: http.StatusNotFound, Code: CartLineNotFound, Message: "This product is not in the cart"}
	case errors.Is(err, service.ErrInvalidProductID):
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidID, Message: "Product ID is required"}
	case errors.Is(err, service.ErrProductNotFound):
		return ErrorInfo{Status: http.StatusNotFound, Code: ProductNotFound, Message: "Product not found"}
	case errors.Is(err, service.ErrInvalidProduct):
		return ErrorInfo{Status: http.StatusBadRequest, Code: ProductInvalid, Message: err.Error()}

	case errors.Is(err, repository.ErrEmptyKey):
		return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalCacheError, Message: "Local storage failed"}
	}

	return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: "Something went wrong, please try again later"}
}

// Respond writes the response for err. Validation failures keep their
// per-field detail.
func Respond(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		RespondWithValidationError(c, validationErr.Fields)
		return
	}

	info := ParseError(err)
	if info.Status >= http.StatusInternalServerError {
		logger.Error("Request failed", err, map[string]interface{}{
			"path": c.FullPath(),
			"code": info.Code,
		})
	}
	RespondWithError(c, info.Status, info.Code, info.Message)
}
