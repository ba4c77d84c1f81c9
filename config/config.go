package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store       StoreConfig
	S3          S3Config
	Scheduler   SchedulerConfig
	Scraper     ScraperConfig
	Monitor     MonitorDefaults
	Source      *SourceConfig
	MediaDir    string
	ProgressDir string
	LogPath     string
	LogLevel    string
	ProxyURL    string
}

type StoreConfig struct {
	Driver      string // sqlite or postgres
	SQLitePath  string
	PostgresDSN string
}

type S3Config struct {
	Enabled   bool
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	KeyPrefix string
}

type SchedulerConfig struct {
	Cron string // optional full-run schedule
}

type ScraperConfig struct {
	DelayMinMS int
	DelayMaxMS int
	MaxRetries int
	Headless   bool
}

// MonitorDefaults seed the monitor_config row on first start.
type MonitorDefaults struct {
	Enabled         bool
	IntervalMinutes int
	PagesToCheck    int
}

// SourceConfig describes the dealer site being crawled. Everything
// site-specific (paths, challenge signatures, photo filtering,
// watermark geometry) lives here, not in the extractors.
type SourceConfig struct {
	ID                  string          `yaml:"id"`
	Name                string          `yaml:"name"`
	BaseURL             string          `yaml:"base_url"`
	InventoryPath       string          `yaml:"inventory_path"`
	PageParam           string          `yaml:"page_param"`
	SettleDelayMS       int             `yaml:"settle_delay_ms"`
	PhotoHostHint       string          `yaml:"photo_host_hint"`
	ChallengeSignatures []string        `yaml:"challenge_signatures"`
	PhotoDenylist       []string        `yaml:"photo_denylist"`
	Watermark           WatermarkConfig `yaml:"watermark"`
}

// WatermarkConfig is the dealer-frame geometry: the bands inspected
// for near-white overlay pixels and the crop applied when both fire.
type WatermarkConfig struct {
	TopBandPct     float64 `yaml:"top_band_pct"`
	TopWidthPct    float64 `yaml:"top_width_pct"`
	BottomBandPct  float64 `yaml:"bottom_band_pct"`
	BottomWidthPct float64 `yaml:"bottom_width_pct"`
	BrightnessMin  int     `yaml:"brightness_min"`
	TopWhitePct    float64 `yaml:"top_white_pct"`
	BottomWhitePct float64 `yaml:"bottom_white_pct"`
	CropTopPct     float64 `yaml:"crop_top_pct"`
	CropBottomPct  float64 `yaml:"crop_bottom_pct"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "sqlite"),
			SQLitePath:  getEnv("DB_PATH", "dealerwatch.db"),
			PostgresDSN: os.Getenv("POSTGRES_DSN"),
		},
		S3: S3Config{
			Enabled:   os.Getenv("S3_ENABLED") == "true",
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			KeyPrefix: getEnv("S3_KEY_PREFIX", "media"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMinMS: getEnvInt("SCRAPE_DELAY_MIN_MS", 1000),
			DelayMaxMS: getEnvInt("SCRAPE_DELAY_MAX_MS", 3000),
			MaxRetries: getEnvInt("SCRAPE_MAX_RETRIES", 3),
			Headless:   getEnv("SCRAPE_HEADLESS", "true") == "true",
		},
		Monitor: MonitorDefaults{
			Enabled:         os.Getenv("MONITOR_ENABLED") == "true",
			IntervalMinutes: getEnvInt("MONITOR_INTERVAL_MINUTES", 60),
			PagesToCheck:    getEnvInt("MONITOR_PAGES", 0),
		},
		MediaDir:    getEnv("MEDIA_DIR", "media"),
		ProgressDir: getEnv("PROGRESS_DIR", ".scrape_progress"),
		LogPath:     getEnv("LOG_PATH", "dealerwatch.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ProxyURL:    os.Getenv("PROXY_URL"),
	}

	src, err := loadSourceConfig(getEnv("SOURCE_CONFIG", "config/source.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Source = src

	return cfg, nil
}

func loadSourceConfig(path string) (*SourceConfig, error) {
	src := DefaultSource()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return src, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, src); err != nil {
		return nil, err
	}
	if base := os.Getenv("SCRAPE_BASE_URL"); base != "" {
		src.BaseURL = base
	}
	return src, nil
}

// DefaultSource returns the built-in dealer profile, used when no
// config/source.yaml is present.
func DefaultSource() *SourceConfig {
	return &SourceConfig{
		ID:            "autoave",
		Name:          "Auto Avenue NJ",
		BaseURL:       getEnv("SCRAPE_BASE_URL", "https://www.autoavenj.com"),
		InventoryPath: "/inventory.aspx?_used=true&_dealerid=0",
		PageParam:     "_page",
		SettleDelayMS: 2500,
		PhotoHostHint: "ebizautos.media",
		ChallengeSignatures: []string{
			"verify you are human",
			"checking your browser",
			"just a moment",
			"cf-challenge",
		},
		PhotoDenylist: []string{
			"logo", "icon", "placeholder", "spinner", "loading",
			"pixel", "spacer", "blank", "widget", "badge", "1x1", "favicon",
		},
		Watermark: WatermarkConfig{
			TopBandPct:     0.12,
			TopWidthPct:    0.30,
			BottomBandPct:  0.07,
			BottomWidthPct: 0.50,
			BrightnessMin:  230,
			TopWhitePct:    0.40,
			BottomWhitePct: 0.30,
			CropTopPct:     0.13,
			CropBottomPct:  0.07,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
