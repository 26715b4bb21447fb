package config

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tauraamui/framegrab/pkg/configdef"
	"github.com/tauraamui/framegrab/pkg/log"
)

func load() (configdef.Values, error) {
	var values configdef.Values

	configPath, err := resolveConfigPath()
	if err != nil {
		return configdef.Values{}, err
	}

	log.Info("Resolved config file location: %s", configPath)
	file, err := readConfigFile(configPath)
	if err != nil {
		return configdef.Values{}, err
	}

	if err := unmarshal(file, &values); err != nil {
		return configdef.Values{}, err
	}

	applyDefaults(&values)

	if err = values.RunValidate(); err != nil {
		return configdef.Values{}, err
	}

	return values, nil
}

func applyDefaults(values *configdef.Values) {
	if len(values.Backend) == 0 {
		values.Backend = defaultSettings[BACKEND].(string)
	}
	if values.SettleDelayMillis == 0 {
		values.SettleDelayMillis = defaultSettings[SETTLEDELAYMILLIS].(int)
	}
	if len(values.OutputDir) == 0 {
		values.OutputDir = defaultSettings[OUTPUTDIR].(string)
	}
	if len(values.OutputFormat) == 0 {
		values.OutputFormat = defaultSettings[OUTPUTFORMAT].(string)
	}
}

var readConfigFile = func(path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}

func unmarshal(content []byte, values *configdef.Values) error {
	err := json.Unmarshal(content, values)
	if err != nil {
		return errors.Errorf("parsing configuration error: %v", err)
	}
	return nil
}
