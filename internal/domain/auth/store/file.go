package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	platformerrors "assetdesk-client/internal/platform/errors"
)

// fileStore keeps every namespace in one JSON document. Each write replaces
// the document through a temp file and rename, so another process reading
// the file sees either the old or the new set of entries.
type fileStore struct {
	path      string
	namespace string
	mutex     sync.Mutex
}

type fileDocument map[string]map[string]string

// NewFile builds a store persisted at cfg.File.Path.
func NewFile(cfg Config) (Store, error) {
	if cfg.File == nil || cfg.File.Path == "" {
		return nil, fmt.Errorf("file store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o700); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "store.file.mkdir", "cannot create store directory", err)
	}
	return &fileStore{
		path:      cfg.File.Path,
		namespace: namespaceOf(cfg),
	}, nil
}

func (s *fileStore) load() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fileDocument{}, nil
	}
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "store.file.read", "cannot read store file", err)
	}
	if len(data) == 0 {
		return fileDocument{}, nil
	}
	doc := fileDocument{}
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "store.file.decode", "corrupt store file", err)
	}
	return doc, nil
}

func (s *fileStore) save(doc fileDocument) error {
	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.tmp")
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "store.file.write", "cannot create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return platformerrors.Wrap(platformerrors.KindStorage, "store.file.write", "cannot chmod temp file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return platformerrors.Wrap(platformerrors.KindStorage, "store.file.write", "cannot write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return platformerrors.Wrap(platformerrors.KindStorage, "store.file.write", "cannot sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "store.file.write", "cannot close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "store.file.rename", "cannot replace store file", err)
	}
	return nil
}

// update applies fn to the namespace entries and persists the result.
func (s *fileStore) update(fn func(entries map[string]string)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	entries := doc[s.namespace]
	if entries == nil {
		entries = make(map[string]string)
	}
	fn(entries)
	if len(entries) == 0 {
		delete(doc, s.namespace)
	} else {
		doc[s.namespace] = entries
	}
	return s.save(doc)
}

func (s *fileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[s.namespace][key]
	return v, ok, nil
}

func (s *fileStore) Set(_ context.Context, key, value string) error {
	return s.update(func(entries map[string]string) {
		entries[key] = value
	})
}

func (s *fileStore) Remove(_ context.Context, key string) error {
	return s.update(func(entries map[string]string) {
		delete(entries, key)
	})
}

func (s *fileStore) SetAll(_ context.Context, values map[string]string) error {
	return s.update(func(entries map[string]string) {
		for k, v := range values {
			entries[k] = v
		}
	})
}

func (s *fileStore) GetAll(context.Context) (map[string]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return copyEntries(doc[s.namespace]), nil
}

func (s *fileStore) ClearAll(context.Context) error {
	return s.update(func(entries map[string]string) {
		for k := range entries {
			delete(entries, k)
		}
	})
}

func (s *fileStore) Close(context.Context) error {
	return nil
}
