package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"resumedesk/internal/errcode"
)

var (
	_ ObjectStore = (*Client)(nil)
	_ ObjectStore = (*Local)(nil)
)

// Local 把对象写入本地（或内存）文件系统，适合单机部署与测试。
type Local struct {
	fs   afero.Fs
	root string
}

// NewLocal 以 dir 为根目录创建本地存储。
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", abs, err)
	}
	return &Local{fs: afero.NewBasePathFs(afero.NewOsFs(), abs), root: abs}, nil
}

// NewLocalFs 使用给定的 afero 文件系统，测试中通常传入 afero.NewMemMapFs()。
func NewLocalFs(fsys afero.Fs) *Local {
	return &Local{fs: fsys, root: "/"}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	cleaned := path.Clean("/" + key)
	if key == "" || cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("object key %q: %w", key, errcode.ErrValidation)
	}
	return cleaned, nil
}

// Put 写入对象，写入未完成时删除残留文件。
func (l *Local) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("create dir for %q: %w", key, err)
	}
	f, err := l.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %q: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(name)
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = l.fs.Remove(name)
		return fmt.Errorf("close %q: %w", key, err)
	}
	return nil
}

// Open 打开对象；不存在时返回 errcode.ErrNotFound。
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := l.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %q: %w", key, errcode.ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return f, nil
}

// Delete 删除对象，不存在视为成功。
func (l *Local) Delete(_ context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// DeletePrefix 删除前缀目录下的全部对象。
func (l *Local) DeletePrefix(_ context.Context, prefix string) error {
	name, err := cleanKey(prefix)
	if err != nil {
		return err
	}
	if err := l.fs.RemoveAll(name); err != nil {
		return fmt.Errorf("remove prefix %q: %w", prefix, err)
	}
	return nil
}

// URL 返回对象的 file:// 地址；本地存储没有过期概念。
func (l *Local) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	name, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	exists, err := afero.Exists(l.fs, name)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", key, err)
	}
	if !exists {
		return "", fmt.Errorf("object %q: %w", key, errcode.ErrNotFound)
	}
	u := url.URL{Scheme: "file", Path: path.Join(filepath.ToSlash(l.root), name)}
	return u.String(), nil
}
