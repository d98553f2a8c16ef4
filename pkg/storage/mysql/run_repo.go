package mysql

import (
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LENAX/grade-engine/pkg/storage/sqlstore"
)

// NewRunRepoFromDSN 通过DSN创建MySQL评分记录存储（对外导出）
// dsn格式: user:password@tcp(host:port)/dbname?parseTime=true
func NewRunRepoFromDSN(dsn string, opts ...sqlstore.DBOption) (*sqlstore.RunRepo, error) {
	return sqlstore.Open(NewMySQLDialect(), withParseTime(dsn), opts...)
}

// withParseTime 确保DSN包含parseTime=true，DATETIME 才能扫描到 time.Time
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
