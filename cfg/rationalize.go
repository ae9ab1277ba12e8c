package cfg

// Rationalize updates config fields based on the values of other fields,
// the way the teacher's cfg.Rationalize derives Logging.Severity from the
// debug flags.
func Rationalize(c *Config) error {
	if c.Mounts == nil {
		c.Mounts = map[string]BackendConfig{}
	}
	if _, ok := c.Mounts["/"]; !ok {
		c.Mounts["/"] = BackendConfig{Backend: BackendMemory}
	}
	if c.Logging.LogRotate.MaxFileSizeMb == 0 {
		c.Logging.LogRotate = GetDefaultLoggingConfig().LogRotate
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Logging.Severity == "" {
		c.Logging.Severity = InfoLogSeverity
	}
	return nil
}
