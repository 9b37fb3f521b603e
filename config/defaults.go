package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "slurmherd.db")
	v.SetDefault("database.retain_days", 30)

	// Spec discovery defaults
	v.SetDefault("specs.extensions", []string{".sbatch", ".job", ".sh"})

	// Throttle defaults mirror the classic submit loop: one job every
	// ten seconds, strictly sequential
	v.SetDefault("throttle.min_interval_seconds", 10)
	v.SetDefault("throttle.max_concurrent", 1)
	v.SetDefault("throttle.max_per_minute", 0)

	// Scheduler defaults
	v.SetDefault("scheduler.backend", "slurm")
	v.SetDefault("scheduler.slurm.sbatch_path", "sbatch")
	v.SetDefault("scheduler.slurm.squeue_path", "squeue")
	v.SetDefault("scheduler.slurm.scancel_path", "scancel")
	v.SetDefault("scheduler.slurm.timeout_seconds", 60)
	v.SetDefault("scheduler.rest.base_url", "http://localhost:6820")
	v.SetDefault("scheduler.rest.timeout_seconds", 60)

	// Submission defaults
	v.SetDefault("submit.retries", 0)
	v.SetDefault("submit.log_dir", "out")

	// Watch mode defaults
	v.SetDefault("watch.debounce_ms", 500)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// slurmrestd authentication token
	v.BindEnv("scheduler.rest.token", "SLURMHERD_REST_TOKEN")
	v.BindEnv("scheduler.rest.user_name", "SLURMHERD_REST_USER")
}
