package core

import "time"

// Environment Variables
const (
	// EnvPrefix is the envconfig prefix; nested keys join with "_",
	// e.g. STOREFRONT_API_BASE_URL.
	EnvPrefix = "STOREFRONT"

	EnvDevMode  = "STOREFRONT_DEV_MODE"
	EnvTimezone = "TZ"
)

// Persisted keys in client-local storage
const (
	// KeyUserID holds the current anonymous user id.
	KeyUserID = "userId"

	// KeyCartPrefix is joined with the user id: cart_{userId}.
	KeyCartPrefix = "cart_"

	// KeySessionCookies holds the backend session cookies between runs.
	KeySessionCookies = "session_cookies"
)

// Defaults
const (
	DefaultBaseURL         = "http://localhost:3000"
	DefaultSessionInterval = 5 * time.Minute
	DefaultPageSize        = 8
	DefaultShopID          = 1

	// Fixed delivery geolocation sent with every order.
	DefaultDeliveryLatitude  = 50.4501
	DefaultDeliveryLongitude = 30.5234

	DefaultRedisPrefix = "storefront:"
	DefaultSQLitePath  = "storefront.db"
)

// CartKey returns the storage key for a user's cart.
func CartKey(userID string) string {
	return KeyCartPrefix + userID
}
