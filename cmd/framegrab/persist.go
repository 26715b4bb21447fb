package main

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tauraamui/xerror"
)

func writeImage(fs afero.Fs, path, format string, img image.Image) error {
	if err := ensureDirectoryPathExists(fs, filepath.Dir(path)); err != nil {
		return err
	}

	file, err := fs.Create(path)
	if err != nil {
		return xerror.Errorf("unable to create thumbnail file: %s: %w", path, err)
	}
	defer file.Close()

	switch format {
	case "jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		return xerror.Errorf("unable to encode thumbnail: %s: %w", path, err)
	}

	return nil
}

func ensureDirectoryPathExists(fs afero.Fs, path string) error {
	err := fs.MkdirAll(path, os.ModePerm|os.ModeDir)
	if err == nil || os.IsExist(err) {
		return nil
	}
	return err
}
