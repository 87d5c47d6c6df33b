package json

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/khanhnv2901/seca-guard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/khanhnv2901/seca-guard/internal/shared/security"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	resultFileSuffix = ".json"
	historyVersion   = 1
)

// historyDTO is the on-disk envelope of one scan result
type historyDTO struct {
	Version int          `json:"version"`
	Result  *scan.Result `json:"result"`
}

// HistoryRepository implements scan.HistoryRepository with one JSON file per session
type HistoryRepository struct {
	dir string
	mu  sync.RWMutex
}

var _ scan.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new JSON-based history repository
func NewHistoryRepository(dir string) (*HistoryRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("history directory cannot be empty")
	}

	// Ensure the history directory exists
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &HistoryRepository{dir: dir}, nil
}

// Save persists a scan result, replacing an earlier save of the same session
func (r *HistoryRepository) Save(ctx context.Context, result *scan.Result) error {
	if result == nil {
		return fmt.Errorf("%w: nil result", sharedErrors.ErrRepositoryOperation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.pathFor(result.SessionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(historyDTO{Version: historyVersion, Result: result}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Write to a temp file first so readers never see a torn file
	tmp, err := os.CreateTemp(r.dir, ".scan-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to write scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := os.Chmod(tmp.Name(), constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to save scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

// FindByID retrieves a scan result by its session ID
func (r *HistoryRepository) FindByID(ctx context.Context, sessionID string) (*scan.Result, error) {
	path, err := r.pathFor(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result, err := r.loadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrScanResultNotFound, sessionID)
	}
	return result, err
}

// List returns stored results, most recently completed first
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]*scan.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read history directory: %v", sharedErrors.ErrRepositoryOperation, err)
	}

	results := make([]*scan.Result, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), resultFileSuffix) {
			continue
		}

		result, err := r.loadFromFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			// Skip files that are not scan results
			continue
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CompletedAt.Equal(results[j].CompletedAt) {
			return results[i].SessionID < results[j].SessionID
		}
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a scan result by its session ID
func (r *HistoryRepository) Delete(ctx context.Context, sessionID string) error {
	path, err := r.pathFor(sessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", sharedErrors.ErrScanResultNotFound, sessionID)
		}
		return fmt.Errorf("%w: failed to delete scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

// Helper methods

// pathFor maps a session id to its file. Only UUIDs are accepted so an id
// can never name a file outside the history directory.
func (r *HistoryRepository) pathFor(sessionID string) (string, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: invalid session id %q", sharedErrors.ErrScanResultNotFound, sessionID)
	}
	path, err := security.ResolveWithin(r.dir, id.String()+resultFileSuffix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return path, nil
}

func (r *HistoryRepository) loadFromFile(filePath string) (*scan.Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var dto historyDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	if dto.Result == nil || dto.Result.SessionID == "" {
		return nil, fmt.Errorf("%w: %s holds no scan result", sharedErrors.ErrDeserializationFailed, filepath.Base(filePath))
	}
	return dto.Result, nil
}
