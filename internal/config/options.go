package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvRepoURL      = "EDPATCH_REPO_URL"
	EnvCloneDir     = "EDPATCH_CLONE_DIR"
	EnvPatchFile    = "EDPATCH_PATCH_FILE"
	EnvTargetFile   = "EDPATCH_TARGET_FILE"
	EnvAPIEndpoint  = "EDPATCH_API_ENDPOINT"
	EnvPollInterval = "EDPATCH_POLL_INTERVAL"
	EnvHTTPTimeout  = "EDPATCH_HTTP_TIMEOUT"
	EnvLogLevel     = "EDPATCH_LOG_LEVEL"
	EnvLogFile      = "EDPATCH_LOG_FILE"
	EnvPython       = "EDPATCH_PYTHON"
	EnvPlain        = "EDPATCH_PLAIN"
)

// Options configures the restore workflow and the CLI around it. Zero values
// are replaced by SetDefaults.
type Options struct {
	// RepoURL is the repository holding the extension source that gets patched.
	RepoURL string
	// CloneDir is where RepoURL is cloned. An existing directory is reused.
	CloneDir string
	// PatchFile is the ed-style diff applied to TargetFile.
	PatchFile string
	// TargetFile is relative to CloneDir.
	TargetFile string

	// APIEndpoint is the base URL of the decompilation service.
	APIEndpoint string
	// PollInterval is the delay between progress checks.
	PollInterval time.Duration
	// HTTPTimeout bounds each individual request.
	HTTPTimeout time.Duration

	LogLevel string
	LogFile  string

	// Python is the interpreter used for extraction and install detection.
	Python string

	// Plain disables spinners and colour.
	Plain bool
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is fine; other errors are returned.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// FromEnv builds Options from environment variables using lookup (normally
// os.LookupEnv). Unset variables are left zero so SetDefaults can fill them.
func FromEnv(lookup func(string) (string, bool)) (Options, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}

	o := Options{
		RepoURL:     get(EnvRepoURL),
		CloneDir:    get(EnvCloneDir),
		PatchFile:   get(EnvPatchFile),
		TargetFile:  get(EnvTargetFile),
		APIEndpoint: get(EnvAPIEndpoint),
		LogLevel:    get(EnvLogLevel),
		LogFile:     get(EnvLogFile),
		Python:      get(EnvPython),
	}

	var err error
	if o.PollInterval, err = parseDuration(EnvPollInterval, get(EnvPollInterval)); err != nil {
		return Options{}, err
	}
	if o.HTTPTimeout, err = parseDuration(EnvHTTPTimeout, get(EnvHTTPTimeout)); err != nil {
		return Options{}, err
	}
	if raw := get(EnvPlain); raw != "" {
		plain, perr := strconv.ParseBool(raw)
		if perr != nil {
			return Options{}, fmt.Errorf("config: %s: %w", EnvPlain, perr)
		}
		o.Plain = plain
	}
	return o, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// SetDefaults fills unset fields with the values the tool was built around.
func (o *Options) SetDefaults() {
	if o.RepoURL == "" {
		o.RepoURL = "https://github.com/msgpack/msgpack-python.git"
	}
	if o.CloneDir == "" {
		o.CloneDir = "./msgpack-python"
	}
	if o.PatchFile == "" {
		o.PatchFile = "./patch.diff"
	}
	if o.TargetFile == "" {
		o.TargetFile = filepath.Join("msgpack", "_unpacker.pyx")
	}
	if o.APIEndpoint == "" {
		o.APIEndpoint = "https://api.pylingual.io"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.LogLevel == "" {
		o.LogLevel = "INFO"
	}
	if o.Python == "" {
		o.Python = "python"
	}
}

// Validate performs lightweight validation of user supplied options.
func (o *Options) Validate() error {
	u, err := url.Parse(o.APIEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: %s must be an http(s) URL, got %q", EnvAPIEndpoint, o.APIEndpoint)
	}
	if filepath.IsAbs(o.TargetFile) {
		return fmt.Errorf("config: %s must be relative to the clone directory, got %q", EnvTargetFile, o.TargetFile)
	}
	if strings.TrimSpace(o.CloneDir) == "" || strings.TrimSpace(o.PatchFile) == "" {
		return errors.New("config: clone directory and patch file are required")
	}
	return nil
}

// TargetPath is the absolute-or-relative path of the file that gets patched.
func (o Options) TargetPath() string {
	return filepath.Join(o.CloneDir, o.TargetFile)
}
