package storage

import (
	"fmt"

	"resumedesk/internal/config"
)

// Open 按配置选择对象存储后端。
func Open(cfg config.StorageConfig, minioCfg config.MinIOConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "minio":
		return NewClient(minioCfg)
	case "local":
		return NewLocal(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
