package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// Fetcher downloads release files into a data directory.
type Fetcher struct {
	Client *http.Client
	Logger *slog.Logger
	// URL overrides DownloadURL, mainly for tests
	URL func(version, file string) string
}

// Fetch downloads the required files of version that are not already in
// dir. Partial downloads are written to a temporary name and renamed on
// success.
func (f *Fetcher) Fetch(ctx context.Context, dir, version string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	for _, file := range RequiredFiles(version) {
		dest := filepath.Join(dir, file)
		if info, err := os.Stat(dest); err == nil {
			f.logger().Info("already present", "file", file, "size", humanize.Bytes(uint64(info.Size())))
			continue
		}
		if err := f.fetchOne(ctx, version, file, dest); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, version, file, dest string) error {
	url := DownloadURL(version, file)
	if f.URL != nil {
		url = f.URL(version, file)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", file, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	f.logger().Info("downloading", "file", file, "url", url)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", file, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", file, resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("download %s: %w", file, err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", file, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("download %s: %w", file, err)
	}

	f.logger().Info("downloaded", "file", file, "size", humanize.Bytes(uint64(n)))
	return nil
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
