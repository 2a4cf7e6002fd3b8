package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps the whole key space in memory and rewrites a JSON file on
// every mutation. The file is replaced atomically through a temp file.
type File struct {
	mu   sync.RWMutex
	path string
	m    map[string]string
}

// OpenFile loads path, creating an empty store if it does not exist.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, m: make(map[string]string)}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	if len(b) == 0 {
		return f, nil
	}

	if err := json.Unmarshal(b, &f.m); err != nil {
		return nil, fmt.Errorf("could not unmarshal %s: %w", path, err)
	}

	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.m[key]
	f.m[key] = value
	if err := f.persist(); err != nil {
		if existed {
			f.m[key] = prev
		} else {
			delete(f.m, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.m[key]
	if !existed {
		return nil
	}
	delete(f.m, key)
	if err := f.persist(); err != nil {
		f.m[key] = prev
		return err
	}
	return nil
}

func (f *File) persist() error {
	b, err := json.Marshal(f.m)
	if err != nil {
		return fmt.Errorf("could not marshal key space: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create tmp file for %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write to tmp file %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not sync tmp file %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close tmp file %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("could not replace %s with %s: %w", f.path, tmp.Name(), err)
	}
	return nil
}
