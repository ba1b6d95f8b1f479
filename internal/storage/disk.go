package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
)

// ErrNotFound is returned when a requested audio file does not exist.
var ErrNotFound = errors.New("audio file not found")

// filenamePattern matches names produced by Save.
var filenamePattern = regexp.MustCompile(`^music_[0-9a-f]{32}\.mp3$`)

// Disk persists generated audio as flat files under one directory
type Disk struct {
	dir string
}

// NewDisk creates a disk store rooted at dir. The directory is created lazily on Save.
func NewDisk(dir string) *Disk {
	return &Disk{dir: dir}
}

// Dir returns the save directory.
func (d *Disk) Dir() string {
	return d.dir
}

// NewFilename returns music_<32 hex>.mp3.
func NewFilename() string {
	return "music_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".mp3"
}

// ValidFilename reports whether name looks like a file written by Save.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// Save writes data to a new uniquely named file. Existing files are never overwritten.
func (d *Disk) Save(data []byte, contentType string) (*models.PersistedAudio, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save dir: %w", err)
	}

	filename := NewFilename()
	path := filepath.Join(d.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close audio file: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("size", len(data)).
		Msg("Audio saved")

	return &models.PersistedAudio{
		Path:         path,
		Filename:     filename,
		DownloadName: models.DownloadName,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		Bytes:        data,
		CreatedAt:    time.Now(),
	}, nil
}

// Open returns a reader for a previously saved file.
func (d *Disk) Open(filename string) (io.ReadSeekCloser, os.FileInfo, error) {
	if !ValidFilename(filename) {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(d.dir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat audio file: %w", err)
	}
	return f, info, nil
}
