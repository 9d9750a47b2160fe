// Package localfs implements storage.Provider over the local filesystem.
// It is a reference implementation: used by engine/storage's conformance
// suite and by sample programs, not a privileged default.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/npipeline/npipeline/engine/storage"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// Provider roots every URI's Path under Root, the way an object-storage
// bucket roots keys under a bucket name.
type Provider struct {
	Root string
}

// New returns a Provider rooted at root. root must already exist.
func New(root string) *Provider {
	return &Provider{Root: root}
}

func (p *Provider) resolve(uri storage.URI) string {
	return filepath.Join(p.Root, filepath.FromSlash(strings.TrimPrefix(uri.Path, "/")))
}

func mapErr(uri storage.URI, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", storage.ErrNotFound, uri)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", storage.ErrPermissionDenied, uri)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", storage.ErrConflict, uri)
	default:
		return &storage.ProviderError{URI: uri, Detail: "filesystem operation failed", Err: err}
	}
}

// OpenRead implements storage.Provider.
func (p *Provider) OpenRead(ctx context.Context, uri storage.URI) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.resolve(uri))
	if err != nil {
		return nil, mapErr(uri, err)
	}
	return f, nil
}

// OpenWrite implements storage.Provider. It writes to a temp file in the
// same directory and renames into place on Close, so a reader never
// observes a partially written object.
func (p *Provider) OpenWrite(ctx context.Context, uri storage.URI) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest := p.resolve(uri)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, mapErr(uri, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".npipeline-tmp-*")
	if err != nil {
		return nil, mapErr(uri, err)
	}
	return &atomicWriter{f: tmp, dest: dest, uri: uri}, nil
}

type atomicWriter struct {
	f    *os.File
	dest string
	uri  storage.URI
}

func (w *atomicWriter) Write(b []byte) (int, error) { return w.f.Write(b) }

func (w *atomicWriter) Close() error {
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return mapErr(w.uri, err)
	}
	if err := os.Rename(w.f.Name(), w.dest); err != nil {
		os.Remove(w.f.Name())
		return mapErr(w.uri, err)
	}
	return nil
}

// Exists implements storage.Provider.
func (p *Provider) Exists(ctx context.Context, uri storage.URI) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(p.resolve(uri))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(uri, err)
	}
	return true, nil
}

// Metadata implements storage.Provider.
func (p *Provider) Metadata(ctx context.Context, uri storage.URI) (storage.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return storage.Metadata{}, err
	}
	info, err := os.Stat(p.resolve(uri))
	if err != nil {
		return storage.Metadata{}, mapErr(uri, err)
	}
	return storage.Metadata{
		URI:        uri,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// List implements storage.Provider by walking the directory tree rooted at
// prefix. The returned pipe.Pipe is eagerly materialized: a filesystem
// walk is cheap enough, and List returns a pipe.InMemory over the
// collected items rather than a bespoke iterator.
func (p *Provider) List(ctx context.Context, prefix storage.URI, recursive bool) (pipe.Pipe[storage.Item], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := p.resolve(prefix)
	var items []storage.Item
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(p.Root, path)
		if relErr != nil {
			return relErr
		}
		itemURI := storage.URI{Scheme: prefix.Scheme, Host: prefix.Host, Path: "/" + filepath.ToSlash(rel)}
		if d.IsDir() {
			if !recursive {
				items = append(items, storage.Item{URI: itemURI, IsPrefix: true})
				return filepath.SkipDir
			}
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		items = append(items, storage.Item{
			URI: itemURI,
			Metadata: storage.Metadata{
				URI:        itemURI,
				Size:       info.Size(),
				ModifiedAt: info.ModTime(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, mapErr(prefix, err)
	}
	storage.SortItems(items)
	return pipe.InMemory("localfs.List:"+prefix.Path, items), nil
}

// Capabilities implements storage.Provider.
func (p *Provider) Capabilities() storage.Capabilities {
	return storage.Capabilities{
		Read: true, Write: true, Delete: true, List: true, Metadata: true, Hierarchical: true,
	}
}

// Delete removes the object at uri. Not part of storage.Provider's core
// interface (spec lists read/write/exists/list/metadata/capabilities
// only) but every conformance-tested provider needs a way to clean up
// after itself between test cases, so it is exposed as a provider-specific
// extension the same way the teacher's VectorStore exposes
// DeleteByDocID alongside the documented RAG surface.
func (p *Provider) Delete(ctx context.Context, uri storage.URI) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(p.resolve(uri)); err != nil {
		return mapErr(uri, err)
	}
	return nil
}
