package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"larkpub/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".larkpub", "config.json")
)

const (
	DefaultBaseURL     = "https://open.feishu.cn"
	DefaultStateDir    = "."
	DefaultPublishDir  = "00_Publish"
	DefaultIgnoreFile  = ".larkpubignore"
	DefaultRateLimit   = 5
	DefaultWorkers     = 5
	DefaultMaxFileSize = 20 << 20 // drive upload_all single-file ceiling
	DefaultTimeout     = 2 * time.Minute
)

var (
	ErrNoAppID      = errors.New("config: app_id is required")
	ErrNoAppSecret  = errors.New("config: app_secret is required")
	ErrNoParentNode = errors.New("config: parent_node is required")
)

// Config holds everything a run needs. Values are merged by the CLI from
// flags, FEISHU_* environment variables and an optional JSON config file.
type Config struct {
	AppID       string        `json:"app_id"`
	AppSecret   string        `json:"app_secret"`
	ParentNode  string        `json:"parent_node"`
	BaseURL     string        `json:"base_url"`
	StateDir    string        `json:"state_dir"`
	PublishDir  string        `json:"publish_dir"`
	RateLimit   int           `json:"rate_limit"`
	Workers     int           `json:"workers"`
	MaxFileSize int64         `json:"max_file_size"`
	Timeout     time.Duration `json:"timeout"`
	Include     []string      `json:"include"`
	Exclude     []string      `json:"exclude"`
	IgnoreFile  string        `json:"ignore_file"`
	Path        string        `json:"-"`
}

// Validate checks required fields and normalizes paths. It mutates the
// receiver (state dir becomes absolute, zero knobs fall back to defaults).
func (c *Config) Validate() error {
	if c.AppID == "" {
		return ErrNoAppID
	}
	if c.AppSecret == "" {
		return ErrNoAppSecret
	}
	if c.ParentNode == "" {
		return ErrNoParentNode
	}

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PublishDir == "" {
		c.PublishDir = DefaultPublishDir
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	stateDir, err := utils.ResolvePath(c.StateDir)
	if err != nil {
		return fmt.Errorf("config: resolve state_dir: %w", err)
	}
	c.StateDir = stateDir

	return nil
}
