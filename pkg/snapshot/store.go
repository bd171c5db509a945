// Package snapshot implements the durable file+service-state checkpoint
// catalog: capture a set of files and service states, persist them as an
// immutable record, and restore them on demand.
package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
	"github.com/archmcp/mcpd/pkg/logging"
)

// FileEntry is a single captured file.
type FileEntry struct {
	Path  string    `json:"path"`
	Bytes []byte    `json:"bytes"`
	Mode  uint32    `json:"mode"`
	Size  int64     `json:"size"`
	Mtime time.Time `json:"mtime"`
}

// ServiceEntry is a single captured systemd service's state at the moment
// of capture.
type ServiceEntry struct {
	Name             string `json:"name"`
	EnabledAtCapture bool   `json:"enabledAtCapture"`
	ActiveAtCapture  bool   `json:"activeAtCapture"`
}

// HostMetadata identifies the host a snapshot was captured on.
type HostMetadata struct {
	Hostname      string `json:"hostname"`
	KernelRelease string `json:"kernelRelease"`
}

// Record is the complete, self-contained snapshot persisted to
// <snapshotDir>/<id>.json. Once written its content is immutable — only
// whole-record deletion is allowed.
type Record struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	CreatedAt    time.Time      `json:"createdAt"`
	HostMetadata HostMetadata   `json:"hostMetadata"`
	Files        []FileEntry    `json:"files"`
	Services     []ServiceEntry `json:"services"`
}

// Summary is the lightweight projection ListSnapshots returns.
type Summary struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	FileCount   int       `json:"fileCount"`
	ServiceCount int      `json:"serviceCount"`
}

// ServiceStateProvider is the injected collaborator through which the
// store reads and converges systemd service state. pkg/serviced
// implements it.
type ServiceStateProvider interface {
	Capture(ctx context.Context, names []string) ([]ServiceEntry, error)
	Apply(ctx context.Context, entry ServiceEntry) error
}

// AuditFunc emits an audit note: a best-effort per-entry failure during
// restore, and snapshot_deleted on deletion. It is a plain callback, so
// this package does not depend on pkg/security.
type AuditFunc func(event string, detail map[string]interface{})

// Store is the durable snapshot catalog. The zero value is not usable;
// use New.
type Store struct {
	dir      string
	services ServiceStateProvider
	logger   logging.Logger
	audit    AuditFunc
}

// New builds a Store rooted at dir.
func New(dir string, services ServiceStateProvider, logger logging.Logger, audit AuditFunc) *Store {
	if logger == nil {
		logger = logging.New(nil, nil)
	}
	if audit == nil {
		audit = func(string, map[string]interface{}) {}
	}
	return &Store{dir: dir, services: services, logger: logger, audit: audit}
}

// CreateSnapshot captures every existing path in filePaths plus the
// current state of serviceNames, and writes the record atomically
// (write-temp-then-rename) to <dir>/<id>.json.
func (s *Store) CreateSnapshot(ctx context.Context, description string, filePaths, serviceNames []string) (string, error) {
	id := uuid.NewString()

	files := make([]FileEntry, 0, len(filePaths))
	for _, path := range filePaths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read file for snapshot", logging.String("path", path), logging.ErrorField(err))
			continue
		}
		files = append(files, FileEntry{
			Path:  path,
			Bytes: content,
			Mode:  uint32(info.Mode().Perm()),
			Size:  info.Size(),
			Mtime: info.ModTime(),
		})
	}

	var services []ServiceEntry
	if s.services != nil && len(serviceNames) > 0 {
		var err error
		services, err = s.services.Capture(ctx, serviceNames)
		if err != nil {
			return "", daemonerrors.New(daemonerrors.CodeInternalError, "failed to capture service state", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
		}
	}

	record := Record{
		ID:           id,
		Description:  description,
		CreatedAt:    time.Now(),
		HostMetadata: currentHostMetadata(),
		Files:        files,
		Services:     services,
	}

	if err := s.writeRecord(record); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) writeRecord(record Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return daemonerrors.New(daemonerrors.CodeInternalError, "failed to create snapshot directory", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return daemonerrors.New(daemonerrors.CodeInternalError, "failed to marshal snapshot record", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
	}

	finalPath := s.recordPath(record.ID)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return daemonerrors.New(daemonerrors.CodeInternalError, "failed to write snapshot record", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return daemonerrors.New(daemonerrors.CodeInternalError, "failed to finalize snapshot record", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
	}
	return nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// RestoreSnapshot reads the record named by id and restores each file
// entry and converges each service entry toward its recorded state.
// Restoration is best-effort per entry: a single file or service failure
// is audited and the next entry is attempted.
func (s *Store) RestoreSnapshot(ctx context.Context, id string) error {
	record, err := s.readRecord(id)
	if err != nil {
		return err
	}

	for _, file := range record.Files {
		if err := restoreFile(file); err != nil {
			s.logger.Warn("failed to restore file", logging.String("path", file.Path), logging.ErrorField(err))
			s.audit("snapshot_restore_entry_failed", map[string]interface{}{"snapshot": id, "path": file.Path, "error": err.Error()})
			continue
		}
	}

	if s.services != nil {
		for _, svc := range record.Services {
			if err := s.services.Apply(ctx, svc); err != nil {
				s.logger.Warn("failed to converge service state", logging.String("service", svc.Name), logging.ErrorField(err))
				s.audit("snapshot_restore_entry_failed", map[string]interface{}{"snapshot": id, "service": svc.Name, "error": err.Error()})
				continue
			}
		}
	}

	return nil
}

func restoreFile(entry FileEntry) error {
	if err := os.MkdirAll(filepath.Dir(entry.Path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(entry.Path, entry.Bytes, os.FileMode(entry.Mode)); err != nil {
		return err
	}
	return os.Chmod(entry.Path, os.FileMode(entry.Mode))
}

func (s *Store) readRecord(id string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		return nil, daemonerrors.New(daemonerrors.CodeInternalError, "snapshot not found", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(id)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, daemonerrors.New(daemonerrors.CodeInternalError, "corrupt snapshot record", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(id)
	}
	return &record, nil
}

// ListSnapshots enumerates the snapshot directory and returns summaries
// sorted newest-first.
func (s *Store) ListSnapshots() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, daemonerrors.New(daemonerrors.CodeInternalError, "failed to list snapshots", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		record, err := s.readRecord(id)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", logging.String("id", id), logging.ErrorField(err))
			continue
		}
		summaries = append(summaries, Summary{
			ID:           record.ID,
			Description:  record.Description,
			CreatedAt:    record.CreatedAt,
			FileCount:    len(record.Files),
			ServiceCount: len(record.Services),
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CreatedAt.After(summaries[j].CreatedAt) })
	return summaries, nil
}

// DeleteSnapshot removes the record file named by id. A deleted id cannot
// be restored.
func (s *Store) DeleteSnapshot(id string) error {
	if err := os.Remove(s.recordPath(id)); err != nil {
		return daemonerrors.New(daemonerrors.CodeInternalError, "failed to delete snapshot", daemonerrors.CategorySnapshot, daemonerrors.SeverityError).WithDetail(err.Error())
	}
	s.audit("snapshot_deleted", map[string]interface{}{"snapshot": id})
	return nil
}

func currentHostMetadata() HostMetadata {
	hostname, _ := os.Hostname()
	release := kernelRelease()
	return HostMetadata{Hostname: hostname, KernelRelease: release}
}
