package repositories_json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	errors "github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
)

// JsonCheckpointRepository stores one JSON document per thread under
// <dataDir>/threads.
type JsonCheckpointRepository struct {
	dir string
	mu  sync.Mutex
}

func NewJSONCheckpointRepository(dataDir string) (*JsonCheckpointRepository, error) {
	dir := filepath.Join(dataDir, "threads")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.InternalErrorf("failed to create directory: %v", err)
	}
	return &JsonCheckpointRepository{dir: dir}, nil
}

func (r *JsonCheckpointRepository) path(threadID string) (string, error) {
	if threadID == "" || threadID == "." || threadID == ".." || strings.ContainsAny(threadID, `/\`) {
		return "", errors.ValidationErrorf("invalid thread ID: %q", threadID)
	}
	return filepath.Join(r.dir, threadID+".json"), nil
}

func (r *JsonCheckpointRepository) load(path string) (*entities.Thread, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.InternalErrorf("failed to read %s: %v", filepath.Base(path), err)
	}

	var thread entities.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, errors.InternalErrorf("failed to unmarshal %s: %v", filepath.Base(path), err)
	}
	return &thread, nil
}

// save writes through a temporary file so a crash never leaves a torn document.
func (r *JsonCheckpointRepository) save(path string, thread *entities.Thread) error {
	data, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return errors.InternalErrorf("failed to marshal thread: %v", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.InternalErrorf("failed to write %s: %v", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.InternalErrorf("failed to write %s: %v", filepath.Base(path), err)
	}
	return nil
}

func (r *JsonCheckpointRepository) LoadThread(ctx context.Context, threadID string) (*entities.Thread, error) {
	path, err := r.path(threadID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	thread, err := r.load(path)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	return thread, nil
}

func (r *JsonCheckpointRepository) AppendMessages(ctx context.Context, threadID string, messages []entities.Message) error {
	path, err := r.path(threadID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	thread, err := r.load(path)
	if err != nil {
		return err
	}
	if thread == nil {
		thread = entities.NewThread(threadID)
	}
	for _, msg := range messages {
		thread.Messages = append(thread.Messages, msg.Clone())
	}
	thread.UpdatedAt = time.Now()
	return r.save(path, thread)
}

func (r *JsonCheckpointRepository) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.InternalErrorf("failed to read threads: %v", err)
	}

	summaries := make([]entities.ThreadSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		thread, err := r.load(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if thread != nil {
			summaries = append(summaries, thread.Summary())
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (r *JsonCheckpointRepository) DeleteThread(ctx context.Context, threadID string) error {
	path, err := r.path(threadID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundErrorf("thread not found: %s", threadID)
		}
		return errors.InternalErrorf("failed to delete thread: %v", err)
	}
	return nil
}

var _ interfaces.CheckpointRepository = (*JsonCheckpointRepository)(nil)
