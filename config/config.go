package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string
	// Tenant добавляется полем tenant в каждую запись лога
	Tenant string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		BodyLimit       int // максимальный размер запроса в МБ
		// RateLimit запросов в секунду на весь API, 0 - без ограничения
		RateLimit float64
		RateBurst int
	}

	Storage struct {
		Driver string // postgres | sqlite | memory
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int
	}

	SQLite struct {
		Path string
	}

	Redis struct {
		Enabled   bool
		Host      string
		Port      int
		Password  string
		DB        int
		KeyPrefix string
		// CacheCleanup интервал очистки кэша в памяти, когда Redis выключен
		CacheCleanup time.Duration
	}

	Kafka struct {
		Enabled      bool
		Brokers      []string
		GroupID      string
		CommandTopic string
		EventTopic   string
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int
	}

	Security struct {
		CORSAllowOrigins []string
	}

	Lightspeed struct {
		BaseURL         string
		APIKey          string
		APISecret       string
		Languages       []string
		DefaultLanguage string
		Timeout         time.Duration
		RateLimit       float64
		RateBurst       int
		MaxRetries      int
		RetryBackoff    time.Duration
		MaxRetryBackoff time.Duration
		PageSize        int
	}

	Sync struct {
		MappingPath string
		// Mapping JSON объект маппинга, имеет приоритет над MappingPath
		Mapping   string
		ImportURL string
		ListDelay time.Duration
		ItemDelay time.Duration
		LockTTL   time.Duration
	}

	PIM struct {
		Timeout      time.Duration
		MaxRedirects int
		Encoding     string // utf-8 | windows-1251
	}

	Images struct {
		DownloadTimeout time.Duration
		MaxRedirects    int
		MaxBytes        int64
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// без файла работаем на значениях по умолчанию и окружении
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.ENV == "" {
		cfg.ENV = "development"
	}
	cfg.Lightspeed.Languages = normalizeLanguages(cfg.Lightspeed.Languages, cfg.Lightspeed.DefaultLanguage)

	return &cfg, nil
}

// Validate проверяет настройки, без которых движок синхронизации не запускается
func (c *Config) Validate() error {
	var errs []error
	if c.Lightspeed.APIKey == "" || c.Lightspeed.APISecret == "" {
		errs = append(errs, fmt.Errorf("%w: lightspeed.apiKey and lightspeed.apiSecret (LIGHTSPEED_API_KEY, LIGHTSPEED_API_SECRET)",
			utils.ErrValidationMissing))
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", utils.ErrStorageUnknownDriver, c.Storage.Driver))
	}
	if c.Storage.Driver == "sqlite" && c.SQLite.Path == "" {
		errs = append(errs, fmt.Errorf("%w: sqlite.path", utils.ErrValidationMissing))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("%w: kafka.brokers", utils.ErrValidationMissing))
	}
	return errors.Join(errs...)
}

// LoadMapping возвращает маппинг по умолчанию: JSON из sync.mapping (MAPPING)
// либо файл sync.mappingPath. Без обоих возвращает nil, nil
func (c *Config) LoadMapping() (*mapping.Mapping, error) {
	var (
		m   *mapping.Mapping
		err error
	)
	switch {
	case strings.TrimSpace(c.Sync.Mapping) != "":
		m, err = mapping.Parse([]byte(c.Sync.Mapping))
	case c.Sync.MappingPath != "":
		m, err = mapping.Load(c.Sync.MappingPath)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// PostgresDSN строит строку подключения pgx
func (c *Config) PostgresDSN() (string, error) {
	p := c.Postgres
	return utils.GenerateConnectionString(p.Host, p.User, p.Password, p.DBName, p.SSLMode, p.Port, p.PoolSize, p.Timeout)
}

func normalizeLanguages(langs []string, base string) []string {
	out := make([]string, 0, len(langs)+1)
	seen := make(map[string]bool)
	add := func(l string) {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			return
		}
		seen[l] = true
		out = append(out, l)
	}
	add(base)
	for _, l := range langs {
		add(l)
	}
	return out
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "catalog-sync")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	// пакетная синхронизация отвечает дольше обычных запросов
	v.SetDefault("server.writeTimeout", "10m")
	v.SetDefault("server.shutdownTimeout", "15s")
	v.SetDefault("server.bodyLimit", 10)
	v.SetDefault("server.rateLimit", 0)
	v.SetDefault("server.rateBurst", 20)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("sqlite.path", "catalog-sync.db")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "catalog_sync")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "catalog-sync:")
	v.SetDefault("redis.cacheCleanup", "10m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "catalog-sync-worker")
	v.SetDefault("kafka.commandTopic", "catalog-sync-commands")
	v.SetDefault("kafka.eventTopic", "catalog-sync-events")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9100)

	v.SetDefault("security.corsAllowOrigins", []string{"*"})

	v.SetDefault("lightspeed.baseURL", "https://api.webshopapp.com")
	v.SetDefault("lightspeed.languages", []string{"nl", "de", "en"})
	v.SetDefault("lightspeed.defaultLanguage", "nl")
	v.SetDefault("lightspeed.timeout", "30s")
	v.SetDefault("lightspeed.rateLimit", 2.0)
	v.SetDefault("lightspeed.rateBurst", 4)
	v.SetDefault("lightspeed.maxRetries", 3)
	v.SetDefault("lightspeed.retryBackoff", "500ms")
	v.SetDefault("lightspeed.maxRetryBackoff", "30s")
	v.SetDefault("lightspeed.pageSize", 250)

	v.SetDefault("sync.listDelay", "200ms")
	v.SetDefault("sync.itemDelay", "1s")
	v.SetDefault("sync.lockTTL", "5m")

	v.SetDefault("pim.timeout", "30s")
	v.SetDefault("pim.maxRedirects", 5)
	v.SetDefault("pim.encoding", "utf-8")

	v.SetDefault("images.downloadTimeout", "30s")
	v.SetDefault("images.maxRedirects", 5)
	v.SetDefault("images.maxBytes", 20<<20)
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("appName", "APP_NAME")
	_ = v.BindEnv("version", "APP_VERSION")
	_ = v.BindEnv("logLevel", "LOG_LEVEL")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("tenant", "TENANT")

	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT")

	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("sqlite.path", "SQLITE_PATH")

	_ = v.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	_ = v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")

	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	_ = v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	_ = v.BindEnv("kafka.commandTopic", "KAFKA_COMMAND_TOPIC")
	_ = v.BindEnv("kafka.eventTopic", "KAFKA_EVENT_TOPIC")

	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.port", "METRICS_PORT")

	_ = v.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")

	_ = v.BindEnv("lightspeed.baseURL", "LIGHTSPEED_BASE_URL")
	_ = v.BindEnv("lightspeed.apiKey", "LIGHTSPEED_API_KEY")
	_ = v.BindEnv("lightspeed.apiSecret", "LIGHTSPEED_API_SECRET")
	_ = v.BindEnv("lightspeed.languages", "LIGHTSPEED_LANGUAGES")
	_ = v.BindEnv("lightspeed.defaultLanguage", "LIGHTSPEED_DEFAULT_LANGUAGE")

	_ = v.BindEnv("sync.mappingPath", "MAPPING_PATH")
	_ = v.BindEnv("sync.mapping", "MAPPING")
	_ = v.BindEnv("sync.importURL", "IMPORT_URL")

	_ = v.BindEnv("pim.encoding", "PIM_ENCODING")
}

// IsProduction рабочее окружение включает продакшн-конфигурацию логгера
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.ENV, "production") || os.Getenv("APP_ENV") == "production"
}
