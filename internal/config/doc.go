// Package config manages the autoprov settings file.
//
// The settings file is YAML and stores the tuning knobs and file locations
// used by the provisioning engine: poll intervals, debounce counts, retry
// budgets, the OTA wall-clock timeout, and the paths of the instruction
// queue, device database, and control-device profile store.
//
// # Settings File Location
//
// Platform-appropriate locations are used:
//   - Linux: $XDG_CONFIG_HOME/autoprov/config.yaml or $HOME/.config/autoprov/config.yaml
//   - macOS: $HOME/.config/autoprov/config.yaml
//   - Windows: %LOCALAPPDATA%\autoprov\config.yaml
//
// A missing file yields defaults; nothing is written until Save is called.
// Saves are atomic (write to temp file, rename) so a crash cannot corrupt
// the settings.
//
// Control-device admin passwords live in the control-device profile store,
// not here.
package config
