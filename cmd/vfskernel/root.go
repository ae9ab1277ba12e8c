package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudnative-vfs/vfskernel/cfg"
	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/vfslog"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsmount"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	mountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "vfskernel [path]",
	Short: "Build the configured mount table and report on a path within it",
	Long: `vfskernel boots the mount table described by flags and an
optional YAML config file, then runs a single read-only operation
against it (stat and list by default) so the wiring can be exercised
without a live FUSE channel or network backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.Rationalize(&mountConfig); err != nil {
			return err
		}
		if err := cfg.ValidateConfig(&mountConfig); err != nil {
			return err
		}
		if err := vfslog.Init(mountConfig.Logging); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer vfslog.Close()

		vfs, err := buildVFS(mountConfig, clock.RealClock{})
		if err != nil {
			vfslog.Errorf("failed to build mount table: %v", err)
			return err
		}

		target := "/"
		if len(args) == 1 {
			target = args[0]
		}
		return inspect(vfs, target)
	},
}

func inspect(vfs *vfsmount.VFS, target string) error {
	vfslog.Debugf("stat %s", target)
	st, err := vfs.Stat(target, cred.Root)
	if err != nil {
		vfslog.Errorf("stat %s failed: %v", target, err)
		return err
	}
	fmt.Printf("%s: mode=%04o size=%d\n", target, st.Mode, st.Size)

	if st.IsDirectory() {
		names, err := vfs.Readdir(target, cred.Root)
		if err != nil {
			vfslog.Errorf("readdir %s failed: %v", target, err)
			return err
		}
		for _, n := range names {
			fmt.Println("  " + n)
		}
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if f := rootCmd.PersistentFlags().Lookup("config-file"); f != nil {
		cfgFile = f.Value.String()
	}
	if cfgFile == "" {
		mountConfig = cfg.DefaultConfig()
		unmarshalErr = viper.Unmarshal(&mountConfig)
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&mountConfig)
}
