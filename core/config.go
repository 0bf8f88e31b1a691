package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                   string        `mapstructure:"address"`
		DebugAddress              string        `mapstructure:"debugaddress"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdowntimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtexpirationdelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtrefreshexpirationdelta"`
		UploadDir                 string        `mapstructure:"uploaddir"`
		DisableReqLogs            bool          `mapstructure:"disablereqlogs"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"` // postgres | sqlite
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminuser"`
		AdminPassword string `mapstructure:"adminpassword"`
		DisableTLS    bool   `mapstructure:"disabletls"`
	}

	JobsConfig struct {
		Enabled           bool   `mapstructure:"enabled"`
		ReconcileSchedule string `mapstructure:"reconcileschedule"`
	}

	Config struct {
		AppName          string `mapstructure:"appname"`
		Build            string `mapstructure:"build"`
		Env              string `mapstructure:"env"`
		Debug            bool   `mapstructure:"debug"`
		TestMode         bool   `mapstructure:"testmode"`
		WorkDir          string `mapstructure:"workdir"`
		SecretKey        string `mapstructure:"secretkey"`
		DefaultFromEmail string `mapstructure:"defaultfromemail"`
		FrontendBaseURL  string `mapstructure:"frontendbaseurl"`
		RollbarToken     string `mapstructure:"rollbartoken"`
		SendgridApiKey   string `mapstructure:"sendgridapikey"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Jobs     JobsConfig     `mapstructure:"jobs"`
	}
)

// NewConfig loads the app configuration.
// Order of precedence: env vars > config/.env.<env> > defaults.
// Env var names are prefixed with the current env, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.Set("env", env)
	if env == "TEST" {
		v.Set("testmode", true)
	}

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetDefault("workdir", wd)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appname", "Elimu")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testmode", false)
	v.SetDefault("secretkey", "n7$w2+e)qk&9hz!c0v#d4u^t@1m(8xl_r5yb=jg3-pfso6ia")
	v.SetDefault("defaultfromemail", "Elimu <noreply@localhost>")
	v.SetDefault("frontendbaseurl", "http://localhost:8080")
	v.SetDefault("rollbartoken", "")
	v.SetDefault("sendgridapikey", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugaddress", ":4000")
	v.SetDefault("server.shutdowntimeout", 5*time.Second)
	v.SetDefault("server.jwtexpirationdelta", 7*24*time.Hour)
	v.SetDefault("server.jwtrefreshexpirationdelta", 4*time.Hour)
	v.SetDefault("server.uploaddir", "uploads")
	v.SetDefault("server.disablereqlogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "elimu")
	v.SetDefault("database.user", "elimu")
	v.SetDefault("database.password", "elimu")
	v.SetDefault("database.adminuser", "postgres")
	v.SetDefault("database.adminpassword", "postgres")
	v.SetDefault("database.disabletls", true)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.reconcileschedule", "@every 1h")
}

// Address returns the database host:port.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// FromAddress parses DefaultFromEmail. Falls back to a bare address on parse errors.
func (c *Config) FromAddress() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Address: c.DefaultFromEmail}
	}
	return *addr
}
