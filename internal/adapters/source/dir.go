package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
)

var _ ports.ScanSource = (*DirSource)(nil)

// DirSource picks up scanned PDFs from a local folder, typically the output
// folder of a desktop scanner.
type DirSource struct {
	dir    string
	logger *zap.Logger
	// Settle is how long a file must stay unchanged before Watch reports it.
	Settle time.Duration
}

func NewDirSource(dir string, logger *zap.Logger) *DirSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirSource{dir: dir, logger: logger, Settle: time.Second}
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf") && !strings.HasPrefix(filepath.Base(name), ".")
}

// FetchNew lists PDFs modified after since, oldest first.
func (s *DirSource) FetchNew(ctx context.Context, since time.Time) ([]models.ScanFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan folder: %w", err)
	}

	var files []models.ScanFile
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isPDFName(e.Name()) {
			continue
		}
		f, err := s.stat(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable scan", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if !f.ScannedAt.After(since) {
			continue
		}
		files = append(files, f)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ScannedAt.Equal(files[j].ScannedAt) {
			return files[i].Name < files[j].Name
		}
		return files[i].ScannedAt.Before(files[j].ScannedAt)
	})
	return files, nil
}

func (s *DirSource) stat(path string) (models.ScanFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.ScanFile{}, err
	}
	return models.ScanFile{
		ID:        path,
		Name:      info.Name(),
		Location:  path,
		Size:      info.Size(),
		ScannedAt: info.ModTime(),
		MediaType: typePDF,
	}, nil
}

func (s *DirSource) Open(_ context.Context, f models.ScanFile) (io.ReadCloser, error) {
	return os.Open(f.Location)
}

// Watch reports PDFs created or rewritten in the folder once they have been
// quiet for Settle, so half-written scans are not picked up. The channel is
// closed when ctx ends.
func (s *DirSource) Watch(ctx context.Context) (<-chan models.ScanFile, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	settle := s.Settle
	if settle <= 0 {
		settle = time.Second
	}

	out := make(chan models.ScanFile)
	go func() {
		defer close(out)
		defer watcher.Close()

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(tickInterval(settle))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isPDFName(event.Name) {
					continue
				}
				switch {
				case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
					pending[event.Name] = time.Now()
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					delete(pending, event.Name)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("scan folder watch error", zap.Error(err))

			case now := <-ticker.C:
				var ready []string
				for path, last := range pending {
					if now.Sub(last) >= settle {
						ready = append(ready, path)
					}
				}
				sort.Strings(ready)
				for _, path := range ready {
					delete(pending, path)
					f, err := s.stat(path)
					if err != nil {
						continue
					}
					select {
					case out <- f:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// tickInterval is how often pending scans are checked against settle.
func tickInterval(settle time.Duration) time.Duration {
	return max(settle/2, time.Millisecond)
}
