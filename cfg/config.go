// Package cfg parses vfskernel's mount-table and ambient configuration
// from flags and an optional YAML config file (environment variables are
// not read), the way the
// teacher's cfg package binds gcsfuse's flags through spf13/viper.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration tree.
type Config struct {
	// Mounts maps an absolute mount-point path to a backend. A bare
	// string value is shorthand for BackendConfig{Backend: value}.
	Mounts map[string]BackendConfig `mapstructure:"mounts"`

	Logging LoggingConfig `mapstructure:"logging"`

	FileSystem FileSystemConfig `mapstructure:"file-system"`
}

// BackendConfig names one backend implementation and its construction
// options (§6: "Backend constructors declare their options schema").
type BackendConfig struct {
	Backend BackendKind    `mapstructure:"backend"`
	Options map[string]any `mapstructure:"options"`

	// Lower/Upper/Wrapped/Folder name other mount entries or nested
	// backend configs this backend composes (overlay needs a lower+upper
	// pair, mirror needs a sync+async pair, folder/locked wrap one).
	Lower   *BackendConfig `mapstructure:"lower"`
	Upper   *BackendConfig `mapstructure:"upper"`
	Wrapped *BackendConfig `mapstructure:"wrapped"`
	Folder  string         `mapstructure:"folder"`
}

type LoggingConfig struct {
	Severity  LogSeverity     `mapstructure:"severity"`
	Format    LogFormat       `mapstructure:"format"`
	FilePath  string          `mapstructure:"file-path"`
	LogRotate LogRotateConfig `mapstructure:"log-rotate"`
}

type LogRotateConfig struct {
	MaxFileSizeMb   int  `mapstructure:"max-file-size-mb"`
	BackupFileCount int  `mapstructure:"backup-file-count"`
	Compress        bool `mapstructure:"compress"`
}

type FileSystemConfig struct {
	DefaultFileMode Octal `mapstructure:"file-mode"`
	DefaultDirMode  Octal `mapstructure:"dir-mode"`
	Uid             int   `mapstructure:"uid"`
	Gid             int   `mapstructure:"gid"`
}

// BindFlags registers the command-line flags this config understands and
// binds each to its viper key, mirroring the teacher's cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.StringP("config-file", "c", "", "Path to a YAML config file.")

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", string(LogFormatText), "Log format: text or json.")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "If set, logs are rotated into this file instead of stderr.")
	if err := viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0644, "Default permission bits for new files, in octal; validated and stored in the config, not applied by the backends.")
	if err := viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode")); err != nil {
		return err
	}

	flagSet.IntP("dir-mode", "", 0777, "Default permission bits for new directories, in octal; validated and stored in the config, not applied by the backends.")
	if err := viper.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "Default owner UID for new inodes (-1: the creating credential's uid); stored in the config, not applied by the backends.")
	if err := viper.BindPFlag("file-system.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "Default owner GID for new inodes (-1: the creating credential's gid); stored in the config, not applied by the backends.")
	if err := viper.BindPFlag("file-system.gid", flagSet.Lookup("gid")); err != nil {
		return err
	}

	return nil
}
