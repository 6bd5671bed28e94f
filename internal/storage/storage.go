package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore 是上传附件、导出表格与日志文件共用的对象存储抽象。
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
