package errors

// Error codes returned to view clients.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these to display messages.

const (
	// ==================== AUTH_ ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthSessionExpired     = "AUTH_SESSION_EXPIRED"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthServiceUnavailable = "AUTH_SERVICE_UNAVAILABLE"

	// ==================== VALIDATION_ ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"

	// ==================== CART_ ====================
	CartInvalidQuantity = "CART_INVALID_QUANTITY"
	CartLineNotFound    = "CART_LINE_NOT_FOUND"

	// ==================== PRODUCT_ ====================
	ProductNotFound = "PRODUCT_NOT_FOUND"
	ProductInvalid  = "PRODUCT_INVALID"

	// ==================== INTERNAL_ ====================
	InternalServerError = "INTERNAL_SERVER_ERROR"
	InternalCacheError  = "INTERNAL_CACHE_ERROR"
)
