package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. PASTER_THREADS.
const EnvPrefix = "paster"

var ErrInvalid = errors.New("invalid configuration")

// Config holds the settings of one paste run.
type Config struct {
	Threads   int      `yaml:"threads"`
	Image     int      `yaml:"image"`
	MaxImage  int      `yaml:"max_image" split_words:"true"`
	Fragments int      `yaml:"fragments"`
	Servers   []string `yaml:"servers"`
	URLPath   string   `yaml:"url_path" split_words:"true"`
	Output    string   `yaml:"output"`
	Bucket    string   `yaml:"bucket"`
	LogLevel  string   `yaml:"log_level" split_words:"true"`

	Timeout         time.Duration `yaml:"timeout"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" split_words:"true"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff" split_words:"true"`
}

func Default() Config {
	return Config{
		Threads:   1,
		Image:     1,
		MaxImage:  3,
		Fragments: 50,
		Servers: []string{
			"http://ece252-1.uwaterloo.ca:2520",
			"http://ece252-2.uwaterloo.ca:2520",
			"http://ece252-3.uwaterloo.ca:2520",
		},
		URLPath:         "/image?img=%d",
		Output:          "all.png",
		LogLevel:        "info",
		Timeout:         30 * time.Second,
		RetryBackoff:    100 * time.Millisecond,
		RetryMaxBackoff: 5 * time.Second,
	}
}

// Load starts from Default, applies the YAML file at path (if any) and then
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile overlays values present in a YAML file.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalid, c.Threads)
	}
	if c.MaxImage <= 0 {
		return fmt.Errorf("%w: max_image must be positive, got %d", ErrInvalid, c.MaxImage)
	}
	if c.Image < 1 || c.Image > c.MaxImage {
		return fmt.Errorf("%w: image must be in [1, %d], got %d", ErrInvalid, c.MaxImage, c.Image)
	}
	if c.Fragments <= 0 {
		return fmt.Errorf("%w: fragments must be positive, got %d", ErrInvalid, c.Fragments)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output is required", ErrInvalid)
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("%w: at least one server is required", ErrInvalid)
	}
	for _, s := range c.Servers {
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: bad server url %q", ErrInvalid, s)
		}
	}
	if strings.Count(c.URLPath, "%d") != 1 {
		return fmt.Errorf("%w: url_path must contain one %%d, got %q", ErrInvalid, c.URLPath)
	}

	return nil
}

// WorkerURLs returns one request URL per thread, assigning servers round
// robin.
func (c *Config) WorkerURLs() []string {
	urls := make([]string, c.Threads)
	path := fmt.Sprintf(c.URLPath, c.Image)

	for i := range urls {
		server := strings.TrimRight(c.Servers[i%len(c.Servers)], "/")
		urls[i] = server + path
	}

	return urls
}
