// Package config holds the slurmherd configuration, loaded from herd.toml
// files and SLURMHERD_* environment variables.
package config

// Config represents the core slurmherd configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Specs     SpecsConfig     `mapstructure:"specs"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Submit    SubmitConfig    `mapstructure:"submit"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// DatabaseConfig configures the SQLite run history database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// RetainDays controls pruning of completed runs (0 = keep forever)
	RetainDays int `mapstructure:"retain_days"`
}

// SpecsConfig configures job description discovery
type SpecsConfig struct {
	// Extensions lists accepted job description filename extensions.
	// Files with other extensions are ignored silently.
	Extensions []string `mapstructure:"extensions"`
}

// ThrottleConfig configures submission pacing
type ThrottleConfig struct {
	MinIntervalSeconds int `mapstructure:"min_interval_seconds"` // Minimum seconds between submission starts (default: 10)
	MaxConcurrent      int `mapstructure:"max_concurrent"`       // Max submissions in flight (default: 1, strictly sequential)
	MaxPerMinute       int `mapstructure:"max_per_minute"`       // Sliding-window cap on submissions per minute (0 = unlimited)
}

// SchedulerConfig selects and configures the scheduler client
type SchedulerConfig struct {
	// Backend selects the client implementation: "slurm", "rest", or "mock"
	Backend string      `mapstructure:"backend"`
	Slurm   SlurmConfig `mapstructure:"slurm"`
	Rest    RestConfig  `mapstructure:"rest"`
}

// SlurmConfig configures the exec-based Slurm client
type SlurmConfig struct {
	SbatchPath     string `mapstructure:"sbatch_path"`
	SqueuePath     string `mapstructure:"squeue_path"`
	ScancelPath    string `mapstructure:"scancel_path"`
	ExtraArgs      string `mapstructure:"extra_args"` // Extra sbatch arguments, shell-quoted (e.g. "--account=lab --qos=normal")
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RestConfig configures the slurmrestd HTTP client
type RestConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"` // X-SLURM-USER-TOKEN value
	UserName       string `mapstructure:"user_name"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SubmitConfig configures per-batch submission behavior
type SubmitConfig struct {
	// Retries is the number of additional submission attempts per spec
	// after a submission error (default: 0, matching fire-and-record)
	Retries int `mapstructure:"retries"`
	// LogDir is the run-scoped log directory cleaned by --clean-logs.
	// Only *.out files directly inside it are ever removed.
	LogDir string `mapstructure:"log_dir"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"` // Debounce for rapid file events (default: 500)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
