// Package file implements a local-directory object store.
//
// A Dir maps the object store model onto a filesystem tree: a bucket is a
// sub-directory of the root, and an object name is the slash-separated path of
// a regular file relative to that bucket directory. Listing is sorted by
// object name, the same order Google Cloud Storage uses, so a directory copy
// of a bucket produces the same table indices.
package file

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
)

// Dir is a filesystem-backed datasource.ObjectStore.
type Dir struct {
	fs   afero.Fs
	root string
}

var _ datasource.ObjectStore = (*Dir)(nil)

// NewDir returns a Dir rooted at root on the OS filesystem.
func NewDir(root string) *Dir { return NewDirFs(afero.NewOsFs(), root) }

// NewDirFs returns a Dir rooted at root on the given filesystem.
func NewDirFs(fsys afero.Fs, root string) *Dir { return &Dir{fs: fsys, root: root} }

func (d *Dir) bucketDir(bucket string) string {
	return filepath.Join(d.root, filepath.FromSlash(bucket))
}

// List yields the regular files under bucket whose object name starts with
// prefix, sorted by name.
func (d *Dir) List(ctx context.Context, bucket, prefix string) iter.Seq2[datasource.Object, error] {
	return func(yield func(datasource.Object, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(datasource.Object{}, err)
			return
		}

		base := d.bucketDir(bucket)
		var objs []datasource.Object
		err := afero.Walk(d.fs, base, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(base, p)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			if !strings.HasPrefix(name, prefix) {
				return nil
			}
			objs = append(objs, datasource.Object{Name: name, Size: info.Size(), Updated: info.ModTime()})
			return nil
		})
		if err != nil {
			yield(datasource.Object{}, fmt.Errorf("list %s: %w", base, err))
			return
		}

		sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })
		for _, o := range objs {
			if !yield(o, nil) {
				return
			}
		}
	}
}

// Read returns the content of one object.
//
// If ctx is already done, Read returns the context error without touching
// the filesystem. Names that would escape the bucket directory are rejected.
func (d *Dir) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if name == "" || path.Clean("/"+name) != "/"+name {
		return nil, fmt.Errorf("read %q: invalid object name", name)
	}
	p := filepath.Join(d.bucketDir(bucket), filepath.FromSlash(name))
	b, err := afero.ReadFile(d.fs, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return b, nil
}
