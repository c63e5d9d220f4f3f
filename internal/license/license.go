// Package license installs the engine license key once per process.
package license

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/logger"
)

// KeySize is the exact size of a license key file.
const KeySize = 8001

// ErrKeySize means the key file exists but has the wrong length.
var ErrKeySize = errors.New("license: key file has wrong size")

// Load reads a key file. A missing file returns fs.ErrNotExist.
func Load(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrKeySize, len(key), KeySize)
	}
	return key, nil
}

// Loader performs the installation at most once.
type Loader struct {
	path string
	once sync.Once
	err  error
}

// NewLoader returns a loader for the key file at path. An empty path disables it.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Install loads the key and hands it to eng if the engine takes one. It must run
// before the first recognition call. A missing key file is only a warning since
// some engine builds run unlicensed. Later calls return the first result.
func (l *Loader) Install(eng engine.Engine) error {
	l.once.Do(func() {
		l.err = l.install(eng)
	})
	return l.err
}

func (l *Loader) install(eng engine.Engine) error {
	installer, ok := eng.(engine.LicenseInstaller)
	if !ok {
		logger.Debug("engine does not take a license key")
		return nil
	}
	if l.path == "" {
		logger.Warn("no license file configured, engine runs unlicensed")
		return nil
	}

	key, err := Load(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.WithField("path", l.path).Warn("license file not found, engine runs unlicensed")
		return nil
	}
	if err != nil {
		return err
	}
	if err := installer.InstallLicense(key); err != nil {
		return fmt.Errorf("install license: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"path":  l.path,
		"bytes": len(key),
	}).Info("license installed")
	return nil
}
