package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tauraamui/xerror"
)

const (
	vendorName     = "tauraamui"
	appName        = "framegrab"
	configFileName = "config.json"
)

var fs afero.Fs = afero.NewOsFs()

func resolveConfigPath() (string, error) {
	configPath := os.Getenv("FRAMEGRAB_CONFIG")
	if len(configPath) > 0 {
		return configPath, nil
	}

	configParentDir, err := userConfigDir()
	if err != nil {
		return "", xerror.Errorf("unable to resolve %s location: %w", configFileName, err)
	}

	return filepath.Join(
		configParentDir,
		vendorName,
		appName,
		configFileName), nil
}

var userConfigDir = func() (string, error) {
	return os.UserConfigDir()
}
