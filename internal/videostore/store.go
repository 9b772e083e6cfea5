package videostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// MaxVideoSize is the upload cap for a single exercise demo video.
const MaxVideoSize = 100 << 20 // 100 MB

var (
	ErrVideoNotFound    = errors.New("video not found")
	ErrVideoTooLarge    = errors.New("video too large")
	ErrInvalidVideoType = errors.New("invalid video type")
	ErrInvalidVideoName = errors.New("invalid video name")
)

var allowedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
}

// Store keeps exercise demo videos on disk, in a single flat directory.
// Stored names carry a uuid suffix so uploads never collide.
type Store struct {
	rootPath string
	mutex    sync.Mutex
}

func NewStore(rootPath string) (*Store, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("create videos root: %w", err)
	}
	return &Store{
		rootPath: rootPath,
	}, nil
}

type SaveVideoParams struct {
	Filename string
	Size     int64
	Video    io.Reader
}

// Save writes the uploaded video to disk and returns the stored file name.
func (s *Store) Save(ctx context.Context, params SaveVideoParams) (_ string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "videoStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	span.SetAttributes(attribute.String("video.name", params.Filename))
	span.SetAttributes(attribute.Int64("video.size", params.Size))

	ext := strings.ToLower(filepath.Ext(params.Filename))
	if !allowedExtensions[ext] {
		return "", ErrInvalidVideoType
	}
	if params.Size > MaxVideoSize {
		return "", ErrVideoTooLarge
	}

	storedName := fmt.Sprintf("%s%s", uuid.NewString(), ext)
	storedPath := path.Join(s.rootPath, storedName)

	log.Debugf("video store: saving new video: %s -> %s", params.Filename, storedName)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	dst, err := os.Create(storedPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(params.Video, MaxVideoSize+1))
	if err != nil {
		if removeErr := os.Remove(storedPath); removeErr != nil {
			log.Errorf("failed to remove video after write error: %s", removeErr)
		}
		return "", err
	}
	if written > MaxVideoSize {
		if removeErr := os.Remove(storedPath); removeErr != nil {
			log.Errorf("failed to remove oversized video: %s", removeErr)
		}
		return "", ErrVideoTooLarge
	}

	return storedName, nil
}

// Delete removes a stored video from disk.
func (s *Store) Delete(ctx context.Context, storedName string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "videoStore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("video.name", storedName))

	videoPath, err := s.Path(storedName)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(videoPath); err != nil {
		if os.IsNotExist(err) {
			return ErrVideoNotFound
		}
		return err
	}

	log.Debugf("video store: video [%s] deleted", storedName)
	return nil
}

// Path returns the on-disk path for a stored video name.
func (s *Store) Path(storedName string) (string, error) {
	if storedName == "" ||
		strings.Contains(storedName, "..") ||
		strings.Contains(storedName, "/") ||
		strings.Contains(storedName, "\\") {
		return "", ErrInvalidVideoName
	}
	return path.Join(s.rootPath, storedName), nil
}
