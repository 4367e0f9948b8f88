package screenshots

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/events"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	DefaultDir = "screenshots"

	filePrefix = "screenshot_"
	fileLayout = "20060102_150405"
)

type Option func(*Sink)

// WithClock overrides the wall clock used to name files.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		s.now = now
	}
}

// Sink writes image payloads carried by Tool messages to a directory, one
// file per message, named after the second it was processed.
type Sink struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

func NewSink(dir string, logger *zap.Logger, opts ...Option) *Sink {
	if dir == "" {
		dir = DefaultDir
	}
	s := &Sink{
		dir:    dir,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Dir() string {
	return s.dir
}

// Process persists the first artifact block of a Tool message. It returns true
// only when a file was written; failures are logged and never returned.
func (s *Sink) Process(message *entities.Message) bool {
	if message == nil || message.Role != entities.RoleTool || len(message.Artifact) == 0 {
		return false
	}

	block := message.Artifact[0]
	if block.Data == "" {
		s.logger.Warn("Tool artifact has no binary payload",
			zap.String("tool_name", message.ToolName),
			zap.String("block_type", block.Type))
		return false
	}

	data, err := base64.StdEncoding.DecodeString(block.Data)
	if err != nil {
		s.logger.Error("Failed to decode screenshot payload",
			zap.String("tool_name", message.ToolName),
			zap.Error(err))
		return false
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Failed to create screenshot directory", zap.String("dir", s.dir), zap.Error(err))
		return false
	}

	createdAt := s.now()
	path := filepath.Join(s.dir, fileName(createdAt))
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.logger.Error("Failed to write screenshot", zap.String("path", path), zap.Error(err))
		return false
	}

	detected := mimetype.Detect(data).String()
	if !mimetype.EqualsAny(detected, "image/png", "image/jpeg", "image/webp", "image/gif") {
		s.logger.Warn("Saved screenshot is not a recognized image",
			zap.String("path", path),
			zap.String("mime_type", detected))
	}

	s.logger.Info("Saved screenshot from tool response",
		zap.String("path", path),
		zap.String("tool_name", message.ToolName),
		zap.Int("bytes", len(data)))

	events.PublishScreenshotEvent(entities.ScreenshotRecord{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      int64(len(data)),
		MIMEType:  detected,
		CreatedAt: createdAt,
	})

	return true
}

// List returns the files of the sink directory modified strictly after since,
// oldest first.
func (s *Sink) List(since time.Time) ([]entities.ScreenshotRecord, error) {
	return List(s.dir, since)
}

// List reads dir for files modified strictly after since, oldest first. A
// missing directory yields no records.
func List(dir string, since time.Time) ([]entities.ScreenshotRecord, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []entities.ScreenshotRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot directory: %w", err)
	}

	records := make([]entities.ScreenshotRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().After(since) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		record := entities.ScreenshotRecord{
			Path:      path,
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		if mtype, err := mimetype.DetectFile(path); err == nil {
			record.MIMEType = mtype.String()
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

func fileName(t time.Time) string {
	return filePrefix + t.Format(fileLayout) + ".png"
}

var _ interfaces.ScreenshotSink = (*Sink)(nil)
