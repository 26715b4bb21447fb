package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/tauraamui/framegrab/pkg/configdef"
	"github.com/tauraamui/framegrab/pkg/log"
	"github.com/tauraamui/xerror"
)

func create() error {
	data, err := loadRawDefaultConfig()
	if err != nil {
		log.Fatal("unable to init default config into memory: %v", err)
	}

	path := mustResolveConfigPath()

	err = writeConfigToDisk(data, path, false)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return configdef.ErrConfigAlreadyExists
		}
		return err
	}

	return nil
}

func writeConfigToDisk(data []byte, path string, overwrite bool) error {
	flags := os.O_RDWR | os.O_CREATE
	if !overwrite {
		flags |= os.O_EXCL
	}

	file, err := fs.OpenFile(path, flags, 0666)
	if err != nil {
		return xerror.Errorf("unable to create/open file: %w", err)
	}
	defer file.Close()

	bc, err := file.Write(data)
	if err != nil {
		return xerror.Errorf("unable to write config to file: %s: %w", path, err)
	}

	if bc != len(data) {
		return xerror.Errorf("unable to write full config data to file: %s: %w", path, err)
	}

	return nil
}

func loadRawDefaultConfig() ([]byte, error) {
	return json.MarshalIndent(
		configdef.Values{
			Backend:           defaultSettings[BACKEND].(string),
			SettleDelayMillis: defaultSettings[SETTLEDELAYMILLIS].(int),
			OutputDir:         defaultSettings[OUTPUTDIR].(string),
			OutputFormat:      defaultSettings[OUTPUTFORMAT].(string),
		}, "", "    ",
	)
}

func mustResolveConfigPath() string {
	path, err := resolveConfigPath()
	if err != nil {
		log.Fatal("unable to resolve config path: %v", err)
	}

	if err := ensureDirectoryPathExists(filepath.Dir(path)); err != nil {
		log.Fatal("unable to create config parent directory: %v", err)
	}

	return path
}

func ensureDirectoryPathExists(path string) error {
	err := fs.MkdirAll(path, os.ModePerm|os.ModeDir)
	if err == nil || os.IsExist(err) {
		return nil
	}
	return err
}
