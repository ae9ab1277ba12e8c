package cfg

// GetDefaultLoggingConfig returns the configuration used before any flag
// or config file has been parsed, mirroring the teacher's
// GetDefaultLoggingConfig.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   LogFormatText,
		LogRotate: LogRotateConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultFileSystemConfig returns the default mode bits (§6: "mkdir
// default 0o777; writeFile/open/appendFile default 0o644").
func GetDefaultFileSystemConfig() FileSystemConfig {
	return FileSystemConfig{
		DefaultFileMode: 0o644,
		DefaultDirMode:  0o777,
		Uid:             -1,
		Gid:             -1,
	}
}

// DefaultConfig is the zero-flags configuration: a single in-memory
// backend mounted at "/".
func DefaultConfig() Config {
	return Config{
		Mounts: map[string]BackendConfig{
			"/": {Backend: BackendMemory},
		},
		Logging:    GetDefaultLoggingConfig(),
		FileSystem: GetDefaultFileSystemConfig(),
	}
}
