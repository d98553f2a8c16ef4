package storage

// Dialect SQL方言接口（对外导出）
// 封装不同数据库的SQL语法差异；表结构以 SQLite 语法书写，由方言转换
type Dialect interface {
	// Name 返回方言名称（如 "sqlite", "mysql", "postgres"）
	Name() string

	// DriverName 返回 database/sql 驱动名（sqlx.Open 使用）
	DriverName() string

	// UpsertSQL 返回INSERT或UPDATE的SQL语句（使用 :column 命名参数）
	// conflictColumn: 冲突判断列（通常是主键）
	// updateColumns: 需要更新的列（不含主键）
	UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string

	// CreateTableSQL 把 SQLite 语法的DDL转换为本方言
	CreateTableSQL(schema string) string

	// ConfigureDB 连接建立后需要执行的配置语句
	ConfigureDB() []string
}
