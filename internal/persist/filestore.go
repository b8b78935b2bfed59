package persist

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

const (
	fileExt      = ".yaml"
	headerPrefix = "# blake2b-256 "
)

// FileStore keeps one YAML file per snapshot in a directory. Every file
// starts with a checksum line over the rest of the file; Load refuses
// files whose body does not match. Writes go to a temp file that is
// synced and renamed over the target, so a crash leaves either the old
// or the new snapshot.
type FileStore struct {
	dir string
	log *zap.Logger
}

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

func checksum(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	path, err := s.path(snap.Name)
	if err != nil {
		return err
	}
	body, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, snap.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Name, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := fmt.Fprintf(tmp, "%s%s\n", headerPrefix, checksum(body)); err != nil {
		tmp.Close()
		return fmt.Errorf("save snapshot %s: %w", snap.Name, err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("save snapshot %s: %w", snap.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot %s: %w", snap.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Name, err)
	}
	s.syncDir()

	s.log.Debug("snapshot saved",
		zap.String("name", snap.Name),
		zap.Int("entities", len(snap.Entities)),
		zap.Int("bytes", len(body)))
	return nil
}

// syncDir flushes the rename; not every platform allows it.
func (s *FileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	if err := d.Sync(); err != nil {
		s.log.Debug("snapshot dir sync", zap.Error(err))
	}
	d.Close()
}

func (s *FileStore) Load(_ context.Context, name string) (*Snapshot, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	header, body, ok := bytes.Cut(raw, []byte("\n"))
	if !ok || !bytes.HasPrefix(header, []byte(headerPrefix)) {
		return nil, fmt.Errorf("%w: %s: missing checksum header", ErrCorrupt, name)
	}
	want := string(bytes.TrimPrefix(header, []byte(headerPrefix)))
	if got := checksum(body); got != want {
		return nil, fmt.Errorf("%w: %s: checksum %s, header says %s", ErrCorrupt, name, got, want)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return &snap, nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	slices.Sort(names)
	return names, nil
}
