package cfg

import (
	"fmt"
	"strings"
)

func isValidLogRotateConfig(c *LogRotateConfig) error {
	if c.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if c.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (retain all) or positive")
	}
	return nil
}

func isValidMount(point string, bc BackendConfig) error {
	if point != "/" && (!strings.HasPrefix(point, "/") || strings.HasSuffix(point, "/")) {
		return fmt.Errorf("mount point %q must be an absolute path without a trailing slash", point)
	}
	switch bc.Backend {
	case BackendMemory, "":
	case BackendOverlay:
		if bc.Lower == nil || bc.Upper == nil {
			return fmt.Errorf("mount %q: overlay backend requires both lower and upper", point)
		}
	case BackendMirror:
		if bc.Lower == nil || bc.Upper == nil {
			return fmt.Errorf("mount %q: mirror backend requires a sync backend (lower) and an async backend (upper)", point)
		}
	case BackendFolder, BackendLocked:
		if bc.Wrapped == nil {
			return fmt.Errorf("mount %q: %s backend requires a wrapped backend", point, bc.Backend)
		}
		if bc.Backend == BackendFolder && bc.Folder == "" {
			return fmt.Errorf("mount %q: folder backend requires folder", point)
		}
	default:
		return fmt.Errorf("mount %q: unknown backend %q", point, bc.Backend)
	}
	return nil
}

// ValidateConfig returns a non-nil error if config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if config.Logging.Severity.Rank() < 0 {
		return fmt.Errorf("invalid logging.severity %q", config.Logging.Severity)
	}
	for point, bc := range config.Mounts {
		if err := isValidMount(point, bc); err != nil {
			return err
		}
	}
	if config.FileSystem.DefaultFileMode < 0 || config.FileSystem.DefaultFileMode > 0o7777 {
		return fmt.Errorf("file-mode out of range: %o", config.FileSystem.DefaultFileMode)
	}
	if config.FileSystem.DefaultDirMode < 0 || config.FileSystem.DefaultDirMode > 0o7777 {
		return fmt.Errorf("dir-mode out of range: %o", config.FileSystem.DefaultDirMode)
	}
	return nil
}
