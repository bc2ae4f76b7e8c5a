package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"
)

const maxManifestSize = 64 << 10

// HTTPCheckerConfig configures an HTTPChecker.
type HTTPCheckerConfig struct {
	// ManifestURL serves the latest-release manifest as JSON.
	ManifestURL string

	// Current is the installed version. Unparseable values fall back to
	// 0.0.0, so any published release counts as an update.
	Current string

	// Client is the HTTP client used for the fetch. Defaults to a client
	// with a 15 second timeout.
	Client *http.Client

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPChecker fetches the latest-release manifest over HTTP and compares
// its version against the installed one.
type HTTPChecker struct {
	manifestURL string
	current     *goversion.Version
	client      *http.Client
	logger      *slog.Logger
}

// NewHTTPChecker creates an HTTPChecker. cfg.ManifestURL must be set.
func NewHTTPChecker(cfg HTTPCheckerConfig) (*HTTPChecker, error) {
	if cfg.ManifestURL == "" {
		return nil, fmt.Errorf("update: manifest URL is required")
	}

	current, err := goversion.NewVersion(cfg.Current)
	if err != nil {
		current, _ = goversion.NewVersion("0.0.0")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPChecker{
		manifestURL: cfg.ManifestURL,
		current:     current,
		client:      client,
		logger:      logger,
	}, nil
}

// Check implements Checker. It performs one fetch; no retry.
func (c *HTTPChecker) Check(ctx context.Context) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	latest, err := goversion.NewVersion(manifest.Version)
	if err != nil {
		return nil, fmt.Errorf("parse manifest version %q: %w", manifest.Version, err)
	}

	if !latest.GreaterThan(c.current) {
		c.logger.Debug("installed version is current",
			"installed", c.current.String(),
			"latest", latest.String(),
		)
		return nil, ErrNoUpdate
	}
	return &manifest, nil
}

// Ensure interface compliance at compile time.
var _ Checker = (*HTTPChecker)(nil)
