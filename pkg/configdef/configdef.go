package configdef

import (
	"errors"
	"fmt"

	"gopkg.in/dealancer/validate.v2"
)

type Values struct {
	Debug             bool   `json:"debug"`
	Backend           string `json:"backend" validate:"one_of=opencv,mock"`
	SettleDelayMillis int    `json:"settle_delay_ms" validate:"gte=0 & lte=5000"`
	OutputDir         string `json:"output_dir" validate:"empty=false"`
	OutputFormat      string `json:"output_format" validate:"one_of=png,jpeg"`
	TimestampLabel    bool   `json:"timestamp_label"`
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.validate()
}

func (v Values) validate() error {
	const validationErrorHeader = "validation failed: %w"
	if v.Backend == "mock" && v.TimestampLabel {
		return fmt.Errorf(validationErrorHeader, errors.New("mock backend already stamps timestamps onto frames"))
	}
	return nil
}
