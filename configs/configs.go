package configs

import "github.com/spf13/viper"

type Configs struct {
	DBDriver           string   `mapstructure:"DB_DRIVER"`
	DBHost             string   `mapstructure:"DB_HOST"`
	DBName             string   `mapstructure:"DB_NAME"`
	DBPort             string   `mapstructure:"DB_PORT"`
	DBUser             string   `mapstructure:"DB_USER"`
	DBPassword         string   `mapstructure:"DB_PASSWORD"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	WebServerPort      string   `mapstructure:"WEB_SERVER_PORT"`
	RedisHost          string   `mapstructure:"REDIS_HOST"`
	RedisPort          string   `mapstructure:"REDIS_PORT"`
	RedisPassword      string   `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int      `mapstructure:"REDIS_DB"`
	RedisURL           string   `mapstructure:"REDIS_URL"`
	CRMBaseURL         string   `mapstructure:"CRM_BASE_URL"`
	CRMToken           string   `mapstructure:"CRM_TOKEN"`
	MarketingBaseURL   string   `mapstructure:"MARKETING_BASE_URL"`
	MarketingToken     string   `mapstructure:"MARKETING_TOKEN"`
	CarrierPostURL     string   `mapstructure:"CARRIER_POST_URL"`
	CarrierPrintURL    string   `mapstructure:"CARRIER_PRINT_URL"`
	CarrierIDPerfil    string   `mapstructure:"CARRIER_ID_PERFIL"`
	CarrierToken       string   `mapstructure:"CARRIER_TOKEN"`
	CarrierContract    string   `mapstructure:"CARRIER_CONTRACT"`
	CarrierPostageCard string   `mapstructure:"CARRIER_POSTAGE_CARD"`
	CarrierAdminCode   string   `mapstructure:"CARRIER_ADMIN_CODE"`
	CarrierName        string   `mapstructure:"CARRIER_NAME"`
	CarrierServiceCode string   `mapstructure:"CARRIER_SERVICE_CODE"`
	LabelIssueDelayMS  int      `mapstructure:"LABEL_ISSUE_DELAY_MS"`
	PhysicalMarker     string   `mapstructure:"PHYSICAL_MARKER"`
	TrackingBaseURL    string   `mapstructure:"TRACKING_BASE_URL"`
	EmailFrom          string   `mapstructure:"EMAIL_FROM"`
	EmailFromName      string   `mapstructure:"EMAIL_FROM_NAME"`
	MAILJET_API_KEY    string   `mapstructure:"MAILJET_API_KEY"`
	MAILJET_API_SECRET string   `mapstructure:"MAILJET_API_SECRET"`
	SMTP_HOST          string   `mapstructure:"SMTP_HOST"`
	SMTP_PORT          int      `mapstructure:"SMTP_PORT"`
	SMTP_USER          string   `mapstructure:"SMTP_USER"`
	SMTP_PASS          string   `mapstructure:"SMTP_PASS"`
	CronExpression     string   `mapstructure:"CRON_EXPRESSION"` // Cron expression for the marketing sync job (6 fields with seconds)
	LogPath            string   `mapstructure:"LOG_PATH"`        // Path to log file (e.g., "/var/log/console.log")
	AlertRecipients    []string `mapstructure:"ALERT_RECIPIENTS"` // Email recipients for error alerts
}

func LoadConfig(path string) (*Configs, error) {
	var cfg *Configs
	viper.SetConfigName("app_config")
	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Set defaults for Redis
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	// Set default for the server port
	viper.SetDefault("WEB_SERVER_PORT", ":8080")

	// Set default for cron expression (sync runs every 15 minutes)
	viper.SetDefault("CRON_EXPRESSION", "0 */15 * * * *")

	// Set defaults for label generation
	viper.SetDefault("CARRIER_NAME", "Correios")
	viper.SetDefault("CARRIER_SERVICE_CODE", "03220")
	viper.SetDefault("LABEL_ISSUE_DELAY_MS", 500)
	viper.SetDefault("PHYSICAL_MARKER", "")
	viper.SetDefault("TRACKING_BASE_URL", "https://rastreamento.correios.com.br/app/index.php?objetos=")

	// Set default for log path (empty means stdout only)
	viper.SetDefault("LOG_PATH", "")

	// Set default for alert recipients (empty means no alerts)
	viper.SetDefault("ALERT_RECIPIENTS", []string{})

	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		panic(err)
	}

	return cfg, nil
}
