package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"linkedpost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	Store       Store       `json:"store"`
	RedisClient RedisClient `json:"redisClient"`
	LinkedIn    LinkedIn    `json:"linkedin"`
	Sweep       Sweep       `json:"sweep"`
	Poller      Poller      `json:"poller"`
	Events      Events      `json:"events"`
	Cors        Cors        `json:"cors"`
}

type App struct {
	Port        int    `json:"port"`
	URL         string `json:"url"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

const (
	VendorMongo    = "mongo"
	VendorPostgres = "postgres"
	VendorMSSQL    = "mssql"
)

// Store selects which database backs posts and credentials.
type Store struct {
	Vendor string `json:"vendor"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	// ProfileTTLSeconds bounds how long a LinkedIn author profile is reused.
	ProfileTTLSeconds int `json:"profileTTLSeconds"`
}

type LinkedIn struct {
	ClientID              string `json:"clientId"`
	ClientSecret          string `json:"clientSecret"`
	RedirectURI           string `json:"redirectURI"`
	APIBaseURL            string `json:"apiBaseURL"`
	AuthBaseURL           string `json:"authBaseURL"`
	// ConnectedRedirect is where the browser lands after a successful connect.
	ConnectedRedirect     string `json:"connectedRedirect"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
	MaxRetries            int    `json:"maxRetries"`
	CircuitBreaker        bool   `json:"circuitBreaker"`
}

type Sweep struct {
	Concurrency        int  `json:"concurrency"`
	PostTimeoutSeconds int  `json:"postTimeoutSeconds"`
	RefreshExpired     bool `json:"refreshExpired"`
}

type Poller struct {
	Enabled         bool   `json:"enabled"`
	IntervalSeconds int    `json:"intervalSeconds"`
	Endpoint        string `json:"endpoint"`
}

type Events struct {
	Pubsub     Pubsub     `json:"pubsub"`
	ServiceBus ServiceBus `json:"serviceBus"`
}

type Pubsub struct {
	ProjectID       string `json:"projectID"`
	Topic           string `json:"topic"`
	CredentialsFile string `json:"credentialsFile"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type Cors struct {
	AllowOrigins []string `json:"allowOrigins"`
}

func (l LinkedIn) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSeconds) * time.Second
}

func (s Sweep) PostTimeout() time.Duration {
	return time.Duration(s.PostTimeoutSeconds) * time.Second
}

func (p Poller) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

func (r RedisClient) ProfileTTL() time.Duration {
	return time.Duration(r.ProfileTTLSeconds) * time.Second
}

var C Config

func init() {
	apply()
}

func apply() {
	C = Config{}
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initLinkedIn(&C)
	initSweep(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().WithField("config", name).Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	setIfEmpty(&C.Database.Psql.Name, os.Getenv("DB_NAME"))
	setIfEmpty(&C.Database.Psql.Host, os.Getenv("DB_HOST"))
	setIfEmpty(&C.Database.Psql.Port, os.Getenv("DB_PORT"))
	setIfEmpty(&C.Database.Psql.User, os.Getenv("DB_USER"))
	setIfEmpty(&C.Database.Psql.Password, os.Getenv("DB_PASSWORD"))
	setIfEmpty(&C.Database.Psql.Port, "5432")

	setIfEmpty(&C.Database.Mssql.Name, os.Getenv("MSSQL_DB_NAME"))
	setIfEmpty(&C.Database.Mssql.Host, os.Getenv("MSSQL_HOST"))
	setIfEmpty(&C.Database.Mssql.Port, os.Getenv("MSSQL_PORT"))
	setIfEmpty(&C.Database.Mssql.User, os.Getenv("MSSQL_USER"))
	setIfEmpty(&C.Database.Mssql.Password, os.Getenv("MSSQL_PASSWORD"))
	setIfEmpty(&C.Database.Mssql.Host, "localhost")
	setIfEmpty(&C.Database.Mssql.Port, "1433")

	setIfEmpty(&C.Database.Mongo.Name, os.Getenv("MONGO_DB_NAME"))
	setIfEmpty(&C.Database.Mongo.Host, os.Getenv("MONGO_HOST"))
	setIfEmpty(&C.Database.Mongo.Port, os.Getenv("MONGO_PORT"))
	setIfEmpty(&C.Database.Mongo.User, os.Getenv("MONGO_USER"))
	setIfEmpty(&C.Database.Mongo.Password, os.Getenv("MONGO_PASSWORD"))
	setIfEmpty(&C.Database.Mongo.Name, "linkedpost")
	setIfEmpty(&C.Database.Mongo.Host, "localhost")
	setIfEmpty(&C.Database.Mongo.Port, "27017")

	if v := os.Getenv("STORE_VENDOR"); v != "" {
		C.Store.Vendor = v
	}
	C.Store.Vendor = strings.ToLower(C.Store.Vendor)
	if C.Store.Vendor == "" {
		C.Store.Vendor = VendorMongo
	}

	setIfEmpty(&C.RedisClient.Host, os.Getenv("REDIS_HOST"))
	setIfEmpty(&C.RedisClient.Port, os.Getenv("REDIS_PORT"))
	setIfEmpty(&C.RedisClient.Password, os.Getenv("REDIS_PASSWORD"))
	if C.RedisClient.ProfileTTLSeconds == 0 {
		C.RedisClient.ProfileTTLSeconds = 600
	}
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("APP_URL"); v != "" {
		C.App.URL = v
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			C.App.TLSEnabled = b
		}
	}
	setIfEmpty(&C.App.TLSCertFile, os.Getenv("TLS_CERT_FILE"))
	setIfEmpty(&C.App.TLSKeyFile, os.Getenv("TLS_KEY_FILE"))
	if C.App.URL == "" {
		scheme := "http"
		if C.App.TLSEnabled {
			scheme = "https"
		}
		C.App.URL = fmt.Sprintf("%s://localhost:%d", scheme, C.App.Port)
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
	if len(C.Cors.AllowOrigins) == 0 {
		C.Cors.AllowOrigins = []string{"http://localhost:3000", "http://localhost:4200"}
	}
}

func initLinkedIn(C *Config) {
	l := &C.LinkedIn
	l.ClientID = getConfigValue(l.ClientID, "LINKEDIN_CLIENT_ID", "")
	l.ClientSecret = getConfigValue(l.ClientSecret, "LINKEDIN_CLIENT_SECRET", "")
	l.RedirectURI = getConfigValue(l.RedirectURI, "LINKEDIN_REDIRECT_URI", strings.TrimRight(C.App.URL, "/")+"/auth/linkedin/callback")
	l.APIBaseURL = getConfigValue(l.APIBaseURL, "LINKEDIN_API_URL", "https://api.linkedin.com/v2")
	l.AuthBaseURL = getConfigValue(l.AuthBaseURL, "LINKEDIN_AUTH_URL", "https://www.linkedin.com/oauth/v2")
	l.ConnectedRedirect = getConfigValue(l.ConnectedRedirect, "LINKEDIN_CONNECTED_REDIRECT", "")
	if l.RequestTimeoutSeconds <= 0 {
		l.RequestTimeoutSeconds = 15
	}
	if l.MaxRetries == 0 {
		l.MaxRetries = 3
	}
	if C.App.TLSEnabled && !hasHTTPS(l.RedirectURI) {
		l.RedirectURI = toHTTPSCallback(l.RedirectURI)
	}
}

func initSweep(C *Config) {
	if v := os.Getenv("SWEEP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			C.Sweep.Concurrency = n
		}
	}
	if v := os.Getenv("SWEEP_REFRESH_EXPIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			C.Sweep.RefreshExpired = b
		}
	}
	if C.Sweep.Concurrency <= 0 {
		C.Sweep.Concurrency = 4
	}
	if C.Sweep.PostTimeoutSeconds <= 0 {
		C.Sweep.PostTimeoutSeconds = 45
	}
	if C.Poller.IntervalSeconds <= 0 {
		// 1 minute while developing, 5 minutes otherwise.
		C.Poller.IntervalSeconds = 300
		if env := os.Getenv("ENV"); env == "" || env == "dev" || env == "development" || env == "local" {
			C.Poller.IntervalSeconds = 60
		}
	}
	if C.Poller.Endpoint == "" {
		C.Poller.Endpoint = fmt.Sprintf("http://127.0.0.1:%d/api/cron/post-scheduled", C.App.Port)
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// getConfigValue prefers the environment, then a non-placeholder config value, then def.
func getConfigValue(configValue, envKey, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return def
}

func hasHTTPS(u string) bool { return strings.HasPrefix(u, "https://") }

func toHTTPSCallback(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
