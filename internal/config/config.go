package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// ChannelRule is one allow-list row: a channel accepts delivery notifications
// only in its designated thread, and Name is how the channel appears in
// reports and summaries.
type ChannelRule struct {
	Thread int64  `mapstructure:"thread"`
	Name   string `mapstructure:"name"`
}

type Config struct {
	BotToken    string `mapstructure:"BOT_TOKEN"`
	AdminChatID int64  `mapstructure:"ADMIN_CHAT_ID"`

	// Optional SES copy of each report; disabled while either side is empty.
	ReportEmailFrom string `mapstructure:"REPORT_EMAIL_FROM"`
	ReportEmailTo   string `mapstructure:"REPORT_EMAIL_TO"`

	StoreDriver string `mapstructure:"STORE_DRIVER"` // "json" or "postgres"
	DataFile    string `mapstructure:"DATA_FILE"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	ServerPort  string `mapstructure:"SERVER_PORT"`
	AWSRegion   string `mapstructure:"AWS_REGION"`
	AWSEndpoint string `mapstructure:"AWS_ENDPOINT"`
	IsLocalDev  bool   `mapstructure:"IS_LOCAL_DEV"`

	TZOffsetHours int `mapstructure:"TZ_OFFSET_HOURS"`

	CommitDelay      time.Duration `mapstructure:"COMMIT_DELAY"`
	ReadyDelay       time.Duration `mapstructure:"READY_DELAY"`
	CleanupDelay     time.Duration `mapstructure:"CLEANUP_DELAY"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	InactivityWarn   time.Duration `mapstructure:"INACTIVITY_WARN"`
	InactivityRepeat time.Duration `mapstructure:"INACTIVITY_REPEAT"`
	ForceCloseHour   int           `mapstructure:"FORCE_CLOSE_HOUR"`

	PriceBase    float64 `mapstructure:"PRICE_BASE"`
	PriceMK      float64 `mapstructure:"PRICE_MK"`
	PriceGabUnit float64 `mapstructure:"PRICE_GAB_UNIT"`

	// Channel allow-list, keyed by the chat id in decimal form.
	Channels map[string]ChannelRule `mapstructure:"CHANNELS"`
}

// LoadConfig reads configuration from an optional config file and the
// environment. Every key except BOT_TOKEN has a workable default.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("BOT_TOKEN", "")
	viper.SetDefault("ADMIN_CHAT_ID", 542345855)
	viper.SetDefault("REPORT_EMAIL_FROM", "")
	viper.SetDefault("REPORT_EMAIL_TO", "")
	viper.SetDefault("STORE_DRIVER", "json")
	viper.SetDefault("DATA_FILE", "data.json")
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "driverpay_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ENDPOINT", "")
	viper.SetDefault("IS_LOCAL_DEV", false)
	viper.SetDefault("TZ_OFFSET_HOURS", 3)
	viper.SetDefault("COMMIT_DELAY", "5m")
	viper.SetDefault("READY_DELAY", "5m")
	viper.SetDefault("CLEANUP_DELAY", "3m")
	viper.SetDefault("SWEEP_INTERVAL", "60s")
	viper.SetDefault("INACTIVITY_WARN", "3h")
	viper.SetDefault("INACTIVITY_REPEAT", "4h")
	viper.SetDefault("FORCE_CLOSE_HOUR", 23)
	viper.SetDefault("PRICE_BASE", 10.00)
	viper.SetDefault("PRICE_MK", 5.00)
	viper.SetDefault("PRICE_GAB_UNIT", 7.00)
	viper.SetDefault("CHANNELS", defaultChannels())

	// An optional config file can override the channel table; a missing
	// file is fine.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}

func defaultChannels() map[string]any {
	return map[string]any{
		"-1002079167705": map[string]any{"thread": 48, "name": "A. Mousse Art Bakery - Белинского, 23"},
		"-1002936236597": map[string]any{"thread": 3, "name": "B. Millionroz.by - Тимирязева, 67"},
		"-1002423500927": map[string]any{"thread": 2, "name": "E. Flovi.Studio - Тимирязева, 65Б"},
		"-1003117964688": map[string]any{"thread": 5, "name": "F. Flowers Titan - Мележа, 1"},
		"-1002864795738": map[string]any{"thread": 3, "name": "G. Цветы Мира - Академическая, 6"},
		"-1002535060344": map[string]any{"thread": 5, "name": "H. Kudesnica.by - Старовиленский тракт, 10"},
		"-1002477650634": map[string]any{"thread": 3, "name": "I. Cvetok.by - Восточная, 41"},
		"-1003204457764": map[string]any{"thread": 4, "name": "J. Jungle.by - Неманская, 2"},
		"-1002660511483": map[string]any{"thread": 3, "name": "K. Pastel Flowers - Сурганова, 31"},
		"-1002360529455": map[string]any{"thread": 3, "name": "333. ТЕСТ БОТОВ - 1-й Нагатинский пр-д"},
		"-1002538985387": map[string]any{"thread": 3, "name": "L. Lamour.by - Кропоткина, 84"},
	}
}

// Location returns the fixed-offset timezone all shift timestamps use.
func (c Config) Location() *time.Location {
	return time.FixedZone("UTC+3", c.TZOffsetHours*3600)
}

// AllowedThreads returns the chat id -> required thread id table.
func (c Config) AllowedThreads() map[int64]int64 {
	out := make(map[int64]int64, len(c.Channels))
	for key, rule := range c.Channels {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[chatID] = rule.Thread
	}
	return out
}

// ChatNames returns the chat id -> display name table.
func (c Config) ChatNames() map[int64]string {
	out := make(map[int64]string, len(c.Channels))
	for key, rule := range c.Channels {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[chatID] = rule.Name
	}
	return out
}
