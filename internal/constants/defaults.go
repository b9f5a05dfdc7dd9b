package constants

// Platform identity
const (
	PlatformFacebook       = "facebook"
	ConversationIDPrefix   = "fb"
	WebhookObjectPage      = "page"
	WebhookModeSubscribe   = "subscribe"
	WebhookEventReceived   = "EVENT_RECEIVED"
	DefaultGraphAPIBaseURL = "https://graph.facebook.com"
	DefaultGraphAPIVersion = "v19.0"
)

// Name resolution sentinels
const (
	UnknownCustomerName = "Unknown"
	PageSenderName      = "Facebook Page"
	UnknownPageName     = "Unknown Page"
)

// Conversation and message states
const (
	ConversationStatusActive = "active"

	SenderTypeCustomer = "customer"
	SenderTypeAgent    = "agent"

	MessageStatusReceived = "received"
	MessageStatusSent     = "sent"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// Send API messaging types
const (
	MessagingTypeResponse   = "RESPONSE"
	MessagingTypeMessageTag = "MESSAGE_TAG"
	MessageTagHumanAgent    = "HUMAN_AGENT"
)

// Default timeout values
const (
	DefaultProfileTimeoutSec      = 5
	DefaultSendTimeoutSec         = 10
	DefaultUploadTimeoutSec       = 30
	DefaultDatabaseRetryAttempts  = 3
	DefaultGracefulShutdownSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 45
	DefaultServerIdleTimeoutSec   = 60
	DefaultStoreConnectTimeoutSec = 10
	DefaultRetryBackoffMs         = 500
	DefaultMaxBackoffMs           = 5000
	ServerErrorChannelSize        = 1
)

// Profile lookup circuit breaker
const (
	ProfileBreakerMaxFailures = 5
	ProfileBreakerCooldownSec = 60
)

// Store backends
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMongoDB  = "mongodb"
)

// Server and storage defaults
const (
	DefaultServerPort      = "5000"
	DefaultConfigPath      = "config.json"
	DefaultDatabaseDriver  = DatabaseDriverSQLite
	DefaultDatabasePath    = "messengerhub.db"
	DefaultMongoDatabase   = "messengerhub"
	DefaultMaxUploadSizeMB = 25
	BytesPerMegabyte       = 1024 * 1024
	MaxEnvPages            = 10
	MaxWebhookBodyBytes    = 1 << 20
	MultipartOverheadBytes = 1 << 20
)

// Token validity
const (
	MinAccessTokenLength = 50
)

// TokenPlaceholderPrefixes start a copied-from-template access token
var TokenPlaceholderPrefixes = []string{
	"your_",
	"your-",
	"placeholder",
	"changeme",
}

// Validation limits
const (
	MaxPSIDLength        = 64
	MaxMessageTextLength = 2000
)

// Privacy settings
const (
	DefaultIDMaskLength = 4
)
