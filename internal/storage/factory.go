package storage

import (
	"fmt"
	"time"

	"github.com/LENAX/grade-engine/pkg/storage"
	"github.com/LENAX/grade-engine/pkg/storage/mysql"
	"github.com/LENAX/grade-engine/pkg/storage/postgres"
	pkgsqlite "github.com/LENAX/grade-engine/pkg/storage/sqlite"
	"github.com/LENAX/grade-engine/pkg/storage/sqlstore"
)

// DatabaseOptions 数据库连接参数（内部使用）
type DatabaseOptions struct {
	Type            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewRunRepository 按数据库类型创建评分记录存储（内部方法）
// dbType: 数据库类型（sqlite/mysql/postgres）
func NewRunRepository(opts DatabaseOptions) (storage.RunRepository, error) {
	pool := sqlstore.WithPool(opts.MaxOpenConns, opts.MaxIdleConns, opts.ConnMaxLifetime, opts.ConnMaxIdleTime)

	switch opts.Type {
	case "sqlite":
		repo, err := pkgsqlite.NewRunRepoFromDSN(opts.DSN, pool)
		if err != nil {
			return nil, fmt.Errorf("create sqlite repository failed: %w", err)
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewRunRepoFromDSN(opts.DSN, pool)
		if err != nil {
			return nil, fmt.Errorf("create mysql repository failed: %w", err)
		}
		return repo, nil
	case "postgres", "postgresql":
		repo, err := postgres.NewRunRepoFromDSN(opts.DSN, pool)
		if err != nil {
			return nil, fmt.Errorf("create postgres repository failed: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", opts.Type)
	}
}
