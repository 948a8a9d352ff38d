package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	NotifyConfig struct {
		Sink           string // console | sendgrid | multi
		Timeout        time.Duration
		AbsenceMessage string // text/template; fields: Name, Date, School
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		Timezone         string
		DefaultFromEmail string
		RollbarToken     string
		SendgridApiKey   string

		Database DatabaseConfig
		Server   ServerConfig
		Notify   NotifyConfig

		location *time.Location
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Location returns the school-local time zone used to compute "today".
// It is resolved once when the Config is built, so it is safe for concurrent use.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// loadLocation resolves an IANA zone name, falling back to UTC.
func loadLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig reads the configuration from the environment (and `config/.env.<env>` if present).
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Shala")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "7t$z!q0x_p8k#f2m=v9w@c4r(u6n)e1h^b3j*y5a&d-l+g")
	conf.SetDefault("timezone", "UTC")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", 5432)
	conf.SetDefault("dbName", "shala")
	conf.SetDefault("dbUser", "shala")
	conf.SetDefault("dbPassword", "shala")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTLS", true)
	conf.SetDefault("dbMaxOpenConns", 25)

	conf.SetDefault("serverHost", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("serverReadTimeout", 5*time.Second)
	conf.SetDefault("serverWriteTimeout", 10*time.Second)
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("notifySink", "console")
	conf.SetDefault("notifyTimeout", 30*time.Second)
	conf.SetDefault("absenceMessage", "Dear parent, {{.Name}} was marked absent on {{.Date}}.")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	tz := conf.GetString("timezone")
	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		SecretKey:        conf.GetString("secretKey"),
		Timezone:         tz,
		location:         loadLocation(tz),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetInt("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
			MaxOpenConns:  conf.GetInt("dbMaxOpenConns"),
		},
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			DebugHost:          conf.GetString("serverDebugHost"),
			ReadTimeout:        conf.GetDuration("serverReadTimeout"),
			WriteTimeout:       conf.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Notify: NotifyConfig{
			Sink:           conf.GetString("notifySink"),
			Timeout:        conf.GetDuration("notifyTimeout"),
			AbsenceMessage: conf.GetString("absenceMessage"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests. It does not read the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Shala",
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		SecretKey:        "test-secret",
		Timezone:         "UTC",
		DefaultFromEmail: "noreply@localhost",
		location:         time.UTC,
		Server: ServerConfig{
			Host:               ":0",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Notify: NotifyConfig{
			Sink:           "console",
			Timeout:        time.Second,
			AbsenceMessage: "Dear parent, {{.Name}} was marked absent on {{.Date}}.",
		},
	}
}
