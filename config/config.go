package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/logging"
)

// Thresholds holds the ingest core's compiled tuning constants. The Scheduler
// reads MaxExpectedRuntime, Backoff, the business-hour window and
// BackoffAlertAfter from here. Cooldown, WatchlistMissLimit and
// VisibilityMissLimit are loaded and overridable but not read by the ingest
// stages, which use ingest.AlertCooldown, ingest.WatchlistMissThreshold and
// ingest.VisibilityMissThreshold instead.
type Thresholds struct {
	Cooldown            time.Duration
	MaxExpectedRuntime  time.Duration
	Backoff             time.Duration
	WatchlistMissLimit  int
	VisibilityMissLimit int
	BusinessHourStart   int
	BusinessHourEnd     int
	BackoffAlertAfter   int
}

// DefaultThresholds returns the compiled-in constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Cooldown:            5 * time.Minute,
		MaxExpectedRuntime:  25 * time.Second,
		Backoff:             120 * time.Second,
		WatchlistMissLimit:  2,
		VisibilityMissLimit: 3,
		BusinessHourStart:   10,
		BusinessHourEnd:     17,
		BackoffAlertAfter:   3,
	}
}

// thresholdOverrides mirrors Thresholds but with plain seconds, since JSON(C)
// has no native duration type.
type thresholdOverrides struct {
	CooldownSeconds           *int `json:"cooldownSeconds"`
	MaxExpectedRuntimeSeconds *int `json:"maxExpectedRuntimeSeconds"`
	BackoffSeconds            *int `json:"backoffSeconds"`
	WatchlistMissLimit        *int `json:"watchlistMissLimit"`
	VisibilityMissLimit       *int `json:"visibilityMissLimit"`
	BusinessHourStart         *int `json:"businessHourStart"`
	BusinessHourEnd           *int `json:"businessHourEnd"`
	BackoffAlertAfter         *int `json:"backoffAlertAfter"`
}

// LoadThresholds returns the compiled defaults, overridden field-by-field by
// an optional JSONC file. A missing file falls back to the defaults silently;
// an unreadable or malformed file falls back to them with a warning rather
// than failing startup - thresholds are an ops tuning knob, not a startup
// dependency.
func LoadThresholds(path string) Thresholds {
	t := DefaultThresholds()
	if path == "" {
		return t
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.S().Warnw("failed to read threshold overrides, using defaults", "path", path, "error", err)
		}
		return t
	}
	var o thresholdOverrides
	if err := json.Unmarshal(jsonc.ToJSON(raw), &o); err != nil {
		zap.S().Warnw("failed to parse threshold overrides, using defaults", "path", path, "error", err)
		return t
	}
	if o.CooldownSeconds != nil {
		t.Cooldown = time.Duration(*o.CooldownSeconds) * time.Second
	}
	if o.MaxExpectedRuntimeSeconds != nil {
		t.MaxExpectedRuntime = time.Duration(*o.MaxExpectedRuntimeSeconds) * time.Second
	}
	if o.BackoffSeconds != nil {
		t.Backoff = time.Duration(*o.BackoffSeconds) * time.Second
	}
	if o.WatchlistMissLimit != nil {
		t.WatchlistMissLimit = *o.WatchlistMissLimit
	}
	if o.VisibilityMissLimit != nil {
		t.VisibilityMissLimit = *o.VisibilityMissLimit
	}
	if o.BusinessHourStart != nil {
		t.BusinessHourStart = *o.BusinessHourStart
	}
	if o.BusinessHourEnd != nil {
		t.BusinessHourEnd = *o.BusinessHourEnd
	}
	if o.BackoffAlertAfter != nil {
		t.BackoffAlertAfter = *o.BackoffAlertAfter
	}
	return t
}

// PushCredentials describes how the ingest core authenticates to the push
// gateway. "expo" needs nothing beyond the device token; "fcm" needs a
// service account, either as a file path or as a project id / private key /
// client email triple pulled straight from the environment.
type PushCredentials struct {
	Mode                  string
	FCMServiceAccountFile string
	FCMProjectID          string
	FCMPrivateKey         string
	FCMClientEmail        string
}

// Config holds the project config values
type Config struct {
	MongoURI     string
	DatabaseName string
	BaseUrl      string
	Port         string

	ScraperInterval time.Duration
	CourtBaseURL    string
	CourtXHRURL     string
	EnableScraper   bool

	Push PushCredentials

	SendGridAPIKey string
	OpsAlertEmail  string

	RedisURL      string
	CloudinaryURL string

	Thresholds Thresholds
}

// New sets up all config related services: the zap global logger, then a
// viper-backed env config in the manner of grenjieee-ForecastAggregation,
// with sane defaults for anything unset so the scraper still boots in dev.
// main.go is expected to have already called godotenv.Load() before this
// runs, so a local .env populates the same environment viper reads from.
func New() *Config {

	//setup zap logger and replace default logger
	logger, err := setLogger(os.Getenv("APP_ENV"))
	if err != nil {
		logger = logging.New().Desugar()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("SCRAPER_INTERVAL", "30000")
	v.SetDefault("ENABLE_SCRAPER", "true")

	interval := time.Duration(v.GetInt("SCRAPER_INTERVAL")) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}

	pushMode := "expo"
	if v.GetString("FCM_SERVICE_ACCOUNT_FILE") != "" || v.GetString("FCM_PROJECT_ID") != "" {
		pushMode = "fcm"
	}

	return &Config{
		MongoURI:     v.GetString("DB_URI"),
		DatabaseName: v.GetString("DB_NAME"),
		BaseUrl:      v.GetString("BASE_URL"),
		Port:         v.GetString("PORT"),

		ScraperInterval: interval,
		CourtBaseURL:    v.GetString("COURT_BASE_URL"),
		CourtXHRURL:     v.GetString("COURT_XHR_URL"),
		EnableScraper:   v.GetString("ENABLE_SCRAPER") != "false",

		Push: PushCredentials{
			Mode:                  pushMode,
			FCMServiceAccountFile: v.GetString("FCM_SERVICE_ACCOUNT_FILE"),
			FCMProjectID:          v.GetString("FCM_PROJECT_ID"),
			FCMPrivateKey:         v.GetString("FCM_PRIVATE_KEY"),
			FCMClientEmail:        v.GetString("FCM_CLIENT_EMAIL"),
		},

		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		OpsAlertEmail:  v.GetString("OPS_ALERT_EMAIL"),

		RedisURL:      v.GetString("REDIS_URL"),
		CloudinaryURL: v.GetString("CLOUDINARY_URL"),

		Thresholds: LoadThresholds(v.GetString("THRESHOLDS_FILE")),
	}

}

// setLogger picks a zap logger by deployment environment: verbose console
// output for development, JSON for production, and the example encoder
// (also debug-level) for local runs and anywhere else unset.
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return logging.New().Desugar(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
	return
}
