package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/userimport/pkg/logging"
)

var DefaultEnvFiles = []string{".env", ".env.local"}

var singleton = sync.OnceValue(func() *Configuration {
	c, err := Load(DefaultEnvFiles)
	if err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist in the working directory. When none
// do, it retries next to the closest go.mod above it.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root := moduleRoot(); root != "" {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" && !filepath.IsAbs(file) {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type APIOptions struct {
	BaseURL       string `env:"API_BASE_URL" envDefault:"http://localhost:3200/api"`
	Authorization string `env:"API_AUTHORIZATION"`
	RolesPath     string `env:"API_ROLES_PATH" envDefault:"/roles"`
	// Some deployments expose the roles listing without authentication.
	RolesPublic   bool          `env:"API_ROLES_PUBLIC" envDefault:"false"`
	UsersBulkPath string        `env:"API_USERS_BULK_PATH" envDefault:"/users/bulk"`
	Timeout       time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
}

func (a *APIOptions) Validate() error {
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if !strings.HasPrefix(a.RolesPath, "/") {
		return fmt.Errorf("invalid API_ROLES_PATH=%q (must start with /)", a.RolesPath)
	}
	if !strings.HasPrefix(a.UsersBulkPath, "/") {
		return fmt.Errorf("invalid API_USERS_BULK_PATH=%q (must start with /)", a.UsersBulkPath)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", a.Timeout)
	}
	return nil
}

type ImportOptions struct {
	MaxFileSize     int64 `env:"IMPORT_MAX_FILE_SIZE" envDefault:"104857600"`
	RecommendedRows int   `env:"IMPORT_RECOMMENDED_ROWS" envDefault:"100"`
}

func (i *ImportOptions) Validate() error {
	if i.MaxFileSize <= 0 {
		return fmt.Errorf("IMPORT_MAX_FILE_SIZE must be positive, got %d", i.MaxFileSize)
	}
	if i.RecommendedRows <= 0 {
		return fmt.Errorf("IMPORT_RECOMMENDED_ROWS must be positive, got %d", i.RecommendedRows)
	}
	return nil
}

type PrometheusOptions struct {
	// PushgatewayURL enables pushing the run's metrics when set.
	PushgatewayURL string `env:"PROMETHEUS_PUSHGATEWAY_URL"`
	Job            string `env:"PROMETHEUS_JOB" envDefault:"user_import"`
}

type Configuration struct {
	API        APIOptions
	Import     ImportOptions
	Prometheus PrometheusOptions

	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
	// LogPath switches logging from stderr text to a rotating JSON file.
	LogPath string `env:"LOG_PATH"`
	// Sent with every API request so backend logs can be correlated.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`

	logCloser io.Closer
	logger    *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.WarnLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load reads envFiles and the process environment into a fresh configuration.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validateLogLevel(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api configuration error: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}

	if c.LogPath == "" {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
		return nil
	}
	closer, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", c.LogPath, err)
	}
	c.logCloser = closer
	c.logger = logger
	return nil
}

func (c *Configuration) validateLogLevel() error {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level == "" {
		level = "warn"
	}
	switch level {
	case "silent", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid LOG_LEVEL=%q (expected silent|error|warn|info|debug)", c.LogLevel)
	}
	c.LogLevel = level
	return nil
}

// Unload releases the log file, if any.
func (c *Configuration) Unload() {
	if c.logCloser != nil {
		if err := c.logCloser.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
