package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"duplo/internal/domain/safety"
)

const DefaultThreshold = 0.85

type Settings struct {
	Scan    ScanSettings    `mapstructure:"scan"`
	Storage StorageSettings `mapstructure:"storage"`
	Logging LoggingSettings `mapstructure:"logging"`
}

type ScanSettings struct {
	Threshold     float64  `mapstructure:"threshold"`
	Workers       int      `mapstructure:"workers"`
	IncludeHidden bool     `mapstructure:"include_hidden"`
	MinSize       int64    `mapstructure:"min_size"`
	Excludes      []string `mapstructure:"excludes"`
	SkipNetworkFS bool     `mapstructure:"skip_network_fs"`
}

type StorageSettings struct {
	DataDir       string `mapstructure:"data_dir"`
	BackupDir     string `mapstructure:"backup_dir"`
	QuarantineDir string `mapstructure:"quarantine_dir"`
}

type LoggingSettings struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// LedgerPath is where the retained undo operation is persisted.
func (s StorageSettings) LedgerPath() string {
	return filepath.Join(s.DataDir, "ledger.json")
}

// Load reads config.yaml from the duplo config dir, or file when given, and
// applies DUPLO_* environment overrides (DUPLO_SCAN_THRESHOLD and so on).
func Load(file string) (Settings, error) {
	v := viper.New()
	dataRoot, err := dataHome()
	if err != nil {
		return Settings{}, err
	}

	v.SetDefault("scan.threshold", DefaultThreshold)
	v.SetDefault("scan.workers", runtime.NumCPU())
	v.SetDefault("scan.include_hidden", true)
	v.SetDefault("scan.min_size", 0)
	v.SetDefault("scan.excludes", []string{})
	v.SetDefault("scan.skip_network_fs", true)
	v.SetDefault("storage.data_dir", filepath.Join(dataRoot, "duplo"))
	v.SetDefault("storage.backup_dir", "")
	v.SetDefault("storage.quarantine_dir", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetEnvPrefix("DUPLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		dir, err := Dir()
		if err != nil {
			return Settings{}, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("CONFIG_INVALID: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("CONFIG_INVALID: %w", err)
	}
	if err := s.normalize(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) normalize() error {
	if s.Scan.Threshold <= 0 || s.Scan.Threshold > 1 {
		return fmt.Errorf("CONFIG_INVALID: scan.threshold must be in (0,1], got %v", s.Scan.Threshold)
	}
	if s.Scan.Workers < 1 {
		s.Scan.Workers = 1
	}
	if s.Scan.MinSize < 0 {
		return fmt.Errorf("CONFIG_INVALID: scan.min_size must not be negative")
	}
	for i, ex := range s.Scan.Excludes {
		s.Scan.Excludes[i] = absPath(ex)
	}

	if strings.TrimSpace(s.Storage.DataDir) == "" {
		return errors.New("CONFIG_INVALID: storage.data_dir is empty")
	}
	s.Storage.DataDir = absPath(s.Storage.DataDir)
	if s.Storage.BackupDir == "" {
		s.Storage.BackupDir = filepath.Join(s.Storage.DataDir, "backups")
	}
	if s.Storage.QuarantineDir == "" {
		s.Storage.QuarantineDir = filepath.Join(s.Storage.DataDir, "quarantine")
	}
	s.Storage.BackupDir = absPath(s.Storage.BackupDir)
	s.Storage.QuarantineDir = absPath(s.Storage.QuarantineDir)
	s.Storage.resolve()
	if s.Logging.File != "" {
		s.Logging.File = absPath(s.Logging.File)
	}
	return nil
}

// resolve follows symlinks in the storage dirs so no later move into them
// has to pass through a link.
func (s *StorageSettings) resolve() {
	s.DataDir = safety.ResolveExisting(s.DataDir)
	s.BackupDir = safety.ResolveExisting(s.BackupDir)
	s.QuarantineDir = safety.ResolveExisting(s.QuarantineDir)
}

func absPath(p string) string {
	p = filepath.Clean(expandHome(strings.TrimSpace(p)))
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
