package config

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
)

type Store struct{}

func NewStore() Store { return Store{} }

// LoadWhitelist reads one path or glob per line from the user whitelist.
// Blank lines and # comments are ignored; a missing file is an empty list.
func (Store) LoadWhitelist(ctx context.Context) ([]string, error) {
	_ = ctx
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, "whitelist"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = filepath.Clean(expandHome(line))
		if abs, err := filepath.Abs(line); err == nil {
			line = abs
		}
		out = append(out, line)
	}
	return out, s.Err()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Dir is $XDG_CONFIG_HOME/duplo, falling back to ~/.config/duplo.
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "duplo"), nil
}

func dataHome() (string, error) {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}
