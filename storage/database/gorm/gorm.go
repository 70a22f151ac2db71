package gormrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/somabem/erp/core"
)

// Open wraps an opened connection pool; gorm and sqlx share its connections.
func Open(db *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	return gdb, errors.Wrap(err, "opening gorm")
}

// session returns a gorm session bound to ctx, running on the caller's transaction when there is one.
func session(ctx context.Context, db *gorm.DB, exec []core.DBExecutor) *gorm.DB {
	tx := db.WithContext(ctx)
	if pool, ok := core.Exec(nil, exec).(gorm.ConnPool); ok {
		tx.Statement.ConnPool = pool
	}
	return tx
}
