package driven

import "github.com/custodia-labs/plancite/internal/core/domain"

// SettingsLoader provides access to application configuration.
// Implementations handle persistence (e.g., TOML files), environment
// overrides and validation.
type SettingsLoader interface {
	// Load reads, validates and returns the settings.
	// A missing file yields domain.DefaultSettings.
	Load() (domain.Settings, error)

	// Path returns the configuration file path.
	Path() string
}
