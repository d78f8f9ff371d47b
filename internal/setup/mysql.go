package setup

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/rowantree/go-chunkvault/internal/config"
	"github.com/rowantree/go-chunkvault/internal/server/storage/metastore"
)

// InitMySQL opens the GORM/MySQL connection and auto-migrates the
// manifest/chunk-reference schema owned by internal/server/storage/metastore.
// It returns (db, err) instead of assigning a package-global and calling
// logger.Fatal, so NewServer can wrap startup failures instead of
// crashing the process.
func InitMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("setup: connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("setup: get generic db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := metastore.NewGormStore(db).AutoMigrate(); err != nil {
		return nil, fmt.Errorf("setup: automigrate metastore: %w", err)
	}

	return db, nil
}

// CloseMySQLDB closes db's underlying connection pool.
func CloseMySQLDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
