package constants

// Configuration file names.
const (
	// GlobalConfigName is the name of the global CORTEX configuration file.
	// This file is located in the CORTEX home directory.
	GlobalConfigName = "config.yaml"

	// EnvPrefix is the prefix for environment variable overrides (CORTEX_*).
	EnvPrefix = "CORTEX"

	// HomeEnvVar overrides the CORTEX home directory.
	HomeEnvVar = "CORTEX_HOME"
)
