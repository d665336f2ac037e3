package errors

// Error code constants returned in the "error" field of API responses.
// Format: CATEGORY_SPECIFIC_DETAIL. The storefront maps messages from these codes.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"  // missing or bad credentials
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED" // token expired
	AuthTokenInvalid = "AUTH_TOKEN_INVALID" // token malformed or wrong signature
	AuthzForbidden   = "AUTHZ_FORBIDDEN"    // authenticated but not allowed
	AuthzAdminOnly   = "AUTHZ_ADMIN_ONLY"   // admin role required
	SessionMissing   = "SESSION_MISSING"    // X-Cart-Session header absent
	SessionInvalid   = "SESSION_INVALID"    // session id malformed

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Cart (CART_) ====================
	CartEmpty          = "CART_EMPTY"           // checkout with no lines
	CartExceedsStock   = "CART_EXCEEDS_STOCK"   // add declined at the stock ceiling
	CartOutOfStock     = "CART_OUT_OF_STOCK"    // add declined, nothing in stock
	CartItemsChanged   = "CART_ITEMS_CHANGED"   // reconcile adjusted the cart before submit
	CartProductUnknown = "CART_PRODUCT_UNKNOWN" // product not in catalog

	// ==================== Checkout (CHECKOUT_) ====================
	CheckoutInProgress = "CHECKOUT_IN_PROGRESS" // another attempt is in flight
	CheckoutCancelled  = "CHECKOUT_CANCELLED"   // attempt was abandoned
	CheckoutFailed     = "CHECKOUT_FAILED"

	// ==================== Orders (ORDER_) ====================
	OrderNotFound      = "ORDER_NOT_FOUND"
	OrderInvalidStatus = "ORDER_INVALID_STATUS"

	// ==================== Reviews (REVIEW_) ====================
	ReviewNotFound = "REVIEW_NOT_FOUND"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"  // upstream unreachable
	InternalStorageError  = "INTERNAL_STORAGE_ERROR" // key-value store failure
)
