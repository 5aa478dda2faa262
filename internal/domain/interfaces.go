package domain

import (
	"context"
	"time"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetLogFormat() string
	GetAppURL() string
	GetCORSAllowedOrigins() []string

	GetSupabaseURL() string
	GetSupabaseAnonKey() string
	GetSupabaseServiceRoleKey() string
	GetDatastoreDriver() string
	GetDatabaseURL() string

	GetStripeSecretKey() string
	GetStripeWebhookSecret() string
	GetStaticPriceIDs() map[string]string
	GetStripeProductPrefix() string
	GetStripeCurrency() string
	GetPriceCacheFile() string
	IsPriceCacheReadOnly() bool
	GetRedisURL() string

	GetGCPProjectID() string
	GetGCPLocation() string
	GetVertexTextModel() string
	GetVertexImageModel() string
}

// SubscriptionRepository reads and writes the subscription ledger.
type SubscriptionRepository interface {
	// LatestForUser returns the most recently created row, or nil.
	LatestForUser(ctx context.Context, userID string) (*Subscription, error)
	// LatestCustomerIDForUser returns the newest non-empty customer id, or "".
	LatestCustomerIDForUser(ctx context.Context, userID string) (string, error)
	// UserIDByCustomer returns the user linked to a customer id, or "".
	UserIDByCustomer(ctx context.Context, customerID string) (string, error)
	// Upsert writes the row keyed on the subscription id.
	Upsert(ctx context.Context, sub *Subscription) error
}

// ProfileRepository reads and writes the per-user profile cache.
type ProfileRepository interface {
	CustomerID(ctx context.Context, userID string) (string, error)
	UserIDByCustomer(ctx context.Context, customerID string) (string, error)
	UserIDByEmail(ctx context.Context, email string) (string, error)
	SetCustomerID(ctx context.Context, userID, customerID string, at time.Time) error
	MirrorPlan(ctx context.Context, userID string, mirror PlanMirror) error

	// LastRunAt reads a cooldown column. found is false when the profile row
	// does not exist.
	LastRunAt(ctx context.Context, userID, column string) (last *time.Time, found bool, err error)
	// StampLastRun sets column to at only if it still holds prev and at is
	// later. claimed is false when another writer got there first.
	StampLastRun(ctx context.Context, userID, column string, prev *time.Time, at time.Time) (claimed bool, err error)
}

// PriceCache is the process-local price id cache.
type PriceCache interface {
	Get(key string) (string, bool)
	Set(key, priceID string)
	Snapshot() map[string]string
}

// PriceStore is the durable price id cache.
type PriceStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, prices map[string]string) error
}

// TextGenerator produces text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Stream calls emit for each chunk until the response ends or ctx is done.
	Stream(ctx context.Context, prompt string, emit func(chunk string) error) error
}

// ImageRequest describes an image generation or edit.
type ImageRequest struct {
	Prompt   string
	MimeType string
	Count    int

	// BaseImage is set for edits.
	BaseImage []byte

	// AspectRatio such as "16:9". Empty uses the model default.
	AspectRatio string
}

// GeneratedImage is one generated image.
type GeneratedImage struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ImageGenerator produces images from a prompt.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)
}
