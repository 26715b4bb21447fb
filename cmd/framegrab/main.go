package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/framegrab/pkg/config"
	"github.com/tauraamui/framegrab/pkg/configdef"
	"github.com/tauraamui/framegrab/pkg/log"
	"github.com/tauraamui/framegrab/pkg/thumbnail"
	"github.com/tauraamui/framegrab/pkg/videobackend"
)

const usage = "Usage: framegrab setup | <source> <time[,time...]>"

const openTimeout = time.Second * 30

var fs = afero.NewOsFs()

func main() {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		runSetup()
		return
	}

	if len(os.Args) < 3 {
		log.Fatal(usage)
	}

	cfg := resolveConfig()
	if cfg.Debug {
		logging.CurrentLoggingLevel = logging.DebugLevel
	}

	times, err := parseTimes(os.Args[2])
	if err != nil {
		log.Fatal("unable to parse requested times: %v", err)
	}

	source := os.Args[1]
	log.Info("Grabbing %d thumbnail(s) from [%s]...", len(times), source)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	backend := videobackend.Resolve(cfg.Backend)
	asset, err := backend.Open(ctx, source)
	if err != nil {
		log.Fatal("unable to open video source [%s]: %v", source, err)
	}

	gen := thumbnail.New(
		asset, backend.NewConverter(),
		thumbnail.WithSettleDelay(time.Duration(cfg.SettleDelayMillis)*time.Millisecond),
	)

	wg := sync.WaitGroup{}
	wg.Add(len(times))
	gen.GenerateBatch(times, func(requested float64, res thumbnail.Result, remaining int) {
		defer wg.Done()
		if res.Err != nil {
			log.Error("no thumbnail for %.3fs: %v", requested, res.Err)
			return
		}
		if err := saveThumbnail(cfg, requested, res); err != nil {
			log.Error("unable to save thumbnail for %.3fs: %v", requested, err)
			return
		}
		log.Info("Saved thumbnail for %.3fs (%d remaining)", requested, remaining)
	})

	done := make(chan interface{})
	go func() {
		wg.Wait()
		close(done)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
	case killSignal := <-interrupt:
		log.Warn("Received signal: %s", killSignal)
	}

	if err := gen.Close(); err != nil {
		log.Error("unable to close generator: %v", err)
	}
}

func runSetup() {
	err := config.DefaultCreator().Create()
	if err != nil {
		if errors.Is(err, configdef.ErrConfigAlreadyExists) {
			log.Warn("Config file already exists, leaving as is...")
			return
		}
		log.Fatal("unable to create default config: %v", err)
	}
	log.Info("Created default config file")
}

func resolveConfig() configdef.Values {
	cfg, err := config.DefaultResolver().Resolve()
	if err != nil {
		log.Warn("unable to load config, using defaults: %v", err)
		return configdef.Values{
			Backend:           "opencv",
			SettleDelayMillis: 300,
			OutputDir:         ".",
			OutputFormat:      "png",
		}
	}
	return cfg
}

func parseTimes(arg string) ([]float64, error) {
	parts := strings.Split(arg, ",")
	times := make([]float64, 0, len(parts))
	for _, p := range parts {
		t, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid time value [%s]: %w", p, err)
		}
		times = append(times, t)
	}
	return times, nil
}

func saveThumbnail(cfg configdef.Values, requested float64, res thumbnail.Result) error {
	img := res.Image
	if cfg.TimestampLabel {
		stamped, err := stampTimeLabel(img, res.Time)
		if err != nil {
			return err
		}
		img = stamped
	}

	name := fmt.Sprintf("framegrab_%08.3f.%s", requested, cfg.OutputFormat)
	return writeImage(fs, filepath.Join(cfg.OutputDir, name), cfg.OutputFormat, img)
}
