// Package snapshot implements the camera port over a still-image source:
// either a file on disk that an external capture process keeps refreshing,
// or an HTTP endpoint such as an IP camera's snapshot URL.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/remy/pkg/errorsx"
	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/ports"
)

type Config struct {
	// Source is a file path or an http(s) URL.
	Source  string
	Timeout time.Duration
}

type Camera struct {
	cfg    Config
	client *http.Client
	remote bool
	logger *slog.Logger
}

func NewCamera(cfg Config) (*Camera, error) {
	if cfg.Source == "" {
		return nil, errors.New("missing camera source")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	remote := strings.HasPrefix(cfg.Source, "http://") || strings.HasPrefix(cfg.Source, "https://")
	return &Camera{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		remote: remote,
		logger: logging.NewComponentLogger(slog.Default(), "snapshot_camera"),
	}, nil
}

func (c *Camera) Name() string { return "snapshot" }

// Capture returns the current frame. A missing file or 404 means no frame
// is available yet and yields nil bytes without an error.
func (c *Camera) Capture() ([]byte, error) {
	if c.remote {
		return c.fetch()
	}
	data, err := os.ReadFile(c.cfg.Source)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Debug("no frame available", slog.String("source", c.cfg.Source))
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonCameraCapture)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (c *Camera) fetch() ([]byte, error) {
	resp, err := c.client.Get(c.cfg.Source)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonCameraCapture)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("no frame available", slog.String("source", c.cfg.Source))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorsx.Wrap(fmt.Errorf("snapshot status %s", resp.Status), errorsx.ReasonCameraCapture)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonCameraCapture)
	}
	return data, nil
}

func (c *Camera) Close() error { return nil }

var _ ports.ImageSource = (*Camera)(nil)
