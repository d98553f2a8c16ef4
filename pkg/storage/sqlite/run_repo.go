package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/LENAX/grade-engine/pkg/storage/sqlstore"
)

// NewRunRepoFromDSN 通过DSN创建SQLite评分记录存储（对外导出）
// 文件型DSN会自动创建所在目录；SQLite 只允许单写，连接数固定为 1
func NewRunRepoFromDSN(dsn string, opts ...sqlstore.DBOption) (*sqlstore.RunRepo, error) {
	if path := filePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}
	opts = append(opts, func(db *sqlx.DB) { db.SetMaxOpenConns(1) })
	return sqlstore.Open(NewSQLiteDialect(), dsn, opts...)
}

// filePath 从DSN中取出文件路径，内存库返回空
func filePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") {
		return ""
	}
	return path
}
