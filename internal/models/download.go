package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// progressWriter wraps an io.Writer to track download progress
type progressWriter struct {
	total      int64
	downloaded int64
	lastLog    time.Time
	model      string
	log        zerolog.Logger
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	// Log progress every 2 seconds or when complete
	now := time.Now()
	if now.Sub(pw.lastLog) >= 2*time.Second || pw.downloaded >= pw.total {
		pw.lastLog = now
		percent := float64(pw.downloaded) / float64(pw.total) * 100
		mbDownloaded := float64(pw.downloaded) / 1024 / 1024
		mbTotal := float64(pw.total) / 1024 / 1024

		pw.log.Info().
			Str("model", pw.model).
			Float64("percent", percent).
			Float64("downloaded_mb", mbDownloaded).
			Float64("total_mb", mbTotal).
			Msg("Downloading model")
	}

	return n, nil
}

// metadata is the YAML sidecar written next to each installed model.
type metadata struct {
	Name         string    `yaml:"name"`
	Quantization string    `yaml:"quantization"`
	URL          string    `yaml:"url"`
	SHA256       string    `yaml:"sha256"`
	Size         int64     `yaml:"size"`
	InstalledAt  time.Time `yaml:"installed_at"`
}

func metadataPath(modelPath string) string {
	return modelPath + ".meta.yaml"
}

// CachedModel is a model file present in the cache directory.
type CachedModel struct {
	Name         string
	Quantization Quantization
	Path         string
	Size         int64
	SHA256       string
	InstalledAt  time.Time
}

// Manager installs and locates models in a cache directory.
type Manager struct {
	dir     string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewManager(dir string, log zerolog.Logger) *Manager {
	return &Manager{
		dir:     dir,
		baseURL: defaultBaseURL,
		client:  http.DefaultClient,
		log:     log,
	}
}

// Dir returns the cache directory.
func (m *Manager) Dir() string { return m.dir }

// URL returns the download location of a model.
func (m *Manager) URL(info ModelInfo) string {
	return m.baseURL + "/" + info.FileName()
}

// Install downloads a registry model unless it is already cached.
func (m *Manager) Install(ctx context.Context, name string, q Quantization, force bool) (*CachedModel, error) {
	info, err := Lookup(name, q)
	if err != nil {
		return nil, err
	}
	return m.install(ctx, info, force)
}

// InstallAll installs several models, two downloads at a time.
func (m *Manager) InstallAll(ctx context.Context, names []string, q Quantization, force bool) ([]*CachedModel, error) {
	results := make([]*CachedModel, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, name := range names {
		g.Go(func() error {
			cached, err := m.Install(gctx, name, q, force)
			if err != nil {
				return fmt.Errorf("install %s: %w", name, err)
			}
			results[i] = cached
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Manager) install(ctx context.Context, info ModelInfo, force bool) (*CachedModel, error) {
	dest := filepath.Join(m.dir, info.FileName())
	if !force {
		if st, err := os.Stat(dest); err == nil && st.Mode().IsRegular() {
			m.log.Info().Str("model", info.Name).Str("path", dest).Msg("Model already installed")
			return m.describe(dest, st)
		}
	}

	url := m.URL(info)
	size, digest, err := m.download(ctx, info.Name, url, dest, info.SHA256)
	if err != nil {
		return nil, err
	}

	meta := metadata{
		Name:         info.Name,
		Quantization: info.Quantization.String(),
		URL:          url,
		SHA256:       digest,
		Size:         size,
		InstalledAt:  time.Now().UTC(),
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath(dest), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write model metadata: %w", err)
	}

	return &CachedModel{
		Name:         info.Name,
		Quantization: info.Quantization,
		Path:         dest,
		Size:         size,
		SHA256:       digest,
		InstalledAt:  meta.InstalledAt,
	}, nil
}

// download fetches url into destPath via a temp file, verifying the SHA-256
// digest when want is set. It returns the size and hex digest.
func (m *Manager) download(ctx context.Context, model, url, destPath, want string) (int64, string, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, "", fmt.Errorf("failed to create models directory: %w", err)
	}

	// Download to temp file first
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	m.log.Info().Str("model", model).Str("url", url).Msg("Starting model download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	// Get content length for progress tracking
	totalSize := resp.ContentLength
	if totalSize <= 0 {
		m.log.Warn().Str("model", model).Msg("Content-Length not provided, progress tracking unavailable")
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	writers := []io.Writer{out, hasher}
	if totalSize > 0 {
		writers = append(writers, &progressWriter{
			total:   totalSize,
			model:   model,
			lastLog: time.Now(),
			log:     m.log,
		})
	}

	written, err := io.Copy(io.MultiWriter(writers...), resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to write model file: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	if want != "" && !strings.EqualFold(want, digest) {
		return 0, "", fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, model, digest, want)
	}

	// Move to final location
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, "", fmt.Errorf("failed to move model file: %w", err)
	}

	m.log.Info().
		Str("model", model).
		Str("path", destPath).
		Float64("size_mb", float64(written)/1024/1024).
		Bool("verified", want != "").
		Msg("Model downloaded successfully")

	return written, digest, nil
}

// ListCached returns installed models sorted by name then quantization.
func (m *Manager) ListCached() ([]CachedModel, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	var models []CachedModel
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bin" {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		st, err := e.Info()
		if err != nil {
			continue
		}
		cached, err := m.describe(path, st)
		if err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable model")
			continue
		}
		models = append(models, *cached)
	}

	sort.Slice(models, func(i, j int) bool {
		if models[i].Name != models[j].Name {
			return models[i].Name < models[j].Name
		}
		return models[i].Quantization < models[j].Quantization
	})
	return models, nil
}

// describe builds a CachedModel from the sidecar, or from the file name
// when the model was placed there by hand.
func (m *Manager) describe(path string, st os.FileInfo) (*CachedModel, error) {
	cached := &CachedModel{Path: path, Size: st.Size(), InstalledAt: st.ModTime()}

	data, err := os.ReadFile(metadataPath(path))
	switch {
	case err == nil:
		var meta metadata
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("invalid metadata: %w", err)
		}
		q, err := ParseQuantization(meta.Quantization)
		if err != nil {
			return nil, err
		}
		cached.Name = meta.Name
		cached.Quantization = q
		cached.SHA256 = meta.SHA256
		cached.InstalledAt = meta.InstalledAt
	case errors.Is(err, os.ErrNotExist):
		name, q, ok := parseFileName(filepath.Base(path))
		if !ok {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			q = QuantNone
		}
		cached.Name = name
		cached.Quantization = q
	default:
		return nil, err
	}
	return cached, nil
}

// Resolve turns a model name or file path into a model file. An existing
// file wins; otherwise the cache is searched for the exact quantization and
// then for any variant of the name.
func (m *Manager) Resolve(nameOrPath string, q Quantization) (string, error) {
	if st, err := os.Stat(nameOrPath); err == nil && st.Mode().IsRegular() {
		return nameOrPath, nil
	}

	cached, err := m.ListCached()
	if err != nil {
		return "", err
	}
	var fallback string
	for _, c := range cached {
		if c.Name != nameOrPath {
			continue
		}
		if c.Quantization == q {
			return c.Path, nil
		}
		if fallback == "" {
			fallback = c.Path
		}
	}
	if fallback != "" {
		m.log.Info().Str("model", nameOrPath).Str("quantization", q.String()).Str("path", fallback).Msg("Requested quantization not installed, using cached variant")
		return fallback, nil
	}
	return "", fmt.Errorf("%w: %q; install it with 'microdrop model install %s'", ErrModelNotInstalled, nameOrPath, nameOrPath)
}

// FindDefault returns the first cached model.
func (m *Manager) FindDefault() (string, error) {
	cached, err := m.ListCached()
	if err != nil {
		return "", err
	}
	if len(cached) == 0 {
		return "", fmt.Errorf("%w: no models in %s", ErrModelNotInstalled, m.dir)
	}
	return cached[0].Path, nil
}
