package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// cacheFileExtension is the file extension used for cache entries.
	cacheFileExtension = ".json"

	dirMode  = 0750
	fileMode = 0600
)

// DefaultTTL is how long a resolved line type is reused.
const DefaultTTL = 24 * time.Hour

// Common cache errors.
var (
	ErrNotFound    = errors.New("cache entry not found")
	ErrExpired     = errors.New("cache entry expired")
	ErrInvalidKey  = errors.New("phone number cannot be empty")
	ErrNoDirectory = errors.New("cache directory cannot be empty")
	ErrNonPositive = errors.New("cache TTL must be positive")
)

// Store is a file-based line-type cache. Safe for concurrent use.
type Store struct {
	directory string
	ttl       time.Duration
	now       func() time.Time

	// mu protects file operations.
	mu sync.RWMutex
}

// NewStore opens (creating if needed) a cache in directory.
func NewStore(directory string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, ErrNoDirectory
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrNonPositive, ttl)
	}
	if err := os.MkdirAll(directory, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Store{
		directory: directory,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// Get returns the cached line type for phone.
// Returns ErrNotFound on a miss and ErrExpired for a stale entry, which is removed.
func (s *Store) Get(phone string) (string, error) {
	if phone == "" {
		return "", ErrInvalidKey
	}

	path := s.pathFor(phone)

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err = json.Unmarshal(data, &entry); err != nil {
		return "", fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if entry.IsExpired(s.now()) {
		s.mu.Lock()
		_ = os.Remove(path)
		s.mu.Unlock()
		return "", ErrExpired
	}

	return entry.LineType, nil
}

// Set stores lineType for phone, replacing any previous entry.
func (s *Store) Set(phone, lineType string) error {
	if phone == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(newEntry(phone, lineType, s.now(), s.ttl))
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	path := s.pathFor(phone)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write to temporary file first, then rename for atomicity
	tempPath := path + ".tmp"
	if err = os.WriteFile(tempPath, data, fileMode); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Count returns the number of entries on disk, expired ones included.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.directory, "*"+cacheFileExtension))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Directory returns the cache directory path.
func (s *Store) Directory() string {
	return s.directory
}

// TTL returns the entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// pathFor maps a phone number to its entry file.
func (s *Store) pathFor(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return filepath.Join(s.directory, hex.EncodeToString(sum[:])+cacheFileExtension)
}
