// Package cache keeps downloaded remote tracks on disk.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiry is how long cached tracks are valid (7 days).
	DefaultExpiry = 7 * 24 * time.Hour
	// TrackSubdir is the subdirectory for cached tracks.
	TrackSubdir = "tracks"
	// AppName is used for the cache directory name.
	AppName = "cookie"
)

// Cache manages disk-based caching of fetched track bytes.
type Cache struct {
	baseDir string
	expiry  time.Duration
}

// NewCache creates a new Cache instance with the default expiry.
func NewCache() (*Cache, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}

	return &Cache{
		baseDir: cacheDir,
		expiry:  DefaultExpiry,
	}, nil
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	cacheDir := filepath.Join(userCacheDir, AppName)
	return cacheDir, nil
}

func (c *Cache) ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func hashURL(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

// GetTrack returns the cached bytes for url, or nil if missing or expired.
func (c *Cache) GetTrack(url string) []byte {
	trackPath := c.trackPath(url)

	info, err := os.Stat(trackPath)
	if err != nil {
		return nil
	}

	if time.Since(info.ModTime()) > c.expiry {
		if err := os.Remove(trackPath); err != nil {
			log.Debug().Err(err).Str("file", trackPath).Msg("Failed to remove expired cache file")
		}
		return nil
	}

	data, err := os.ReadFile(trackPath)
	if err != nil || len(data) == 0 {
		return nil
	}

	return data
}

// SaveTrack stores data in the cache, keyed by its URL. The file appears
// atomically so a concurrent GetTrack never sees a partial download.
func (c *Cache) SaveTrack(url string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("refusing to cache empty track")
	}

	trackDir := filepath.Join(c.baseDir, TrackSubdir)
	if err := c.ensureDir(trackDir); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(trackDir, ".track-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, c.trackPath(url)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to store cache file: %w", err)
	}

	return nil
}

func (c *Cache) trackPath(url string) string {
	return filepath.Join(c.baseDir, TrackSubdir, hashURL(url)+".bin")
}

// CleanExpired removes cache files older than the expiry duration.
func (c *Cache) CleanExpired() error {
	trackDir := filepath.Join(c.baseDir, TrackSubdir)

	entries, err := os.ReadDir(trackDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed to get file info")
			continue
		}

		if now.Sub(info.ModTime()) > c.expiry {
			filePath := filepath.Join(trackDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Debug().Err(err).Str("file", filePath).Msg("Failed to remove expired cache file")
				failed++
			} else {
				removed++
			}
		}
	}

	if removed > 0 || failed > 0 {
		log.Debug().Int("removed", removed).Int("failed", failed).Msg("Cache cleanup completed")
	}

	return nil
}
