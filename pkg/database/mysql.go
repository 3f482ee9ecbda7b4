package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"ragpro-go/internal/model"
	"ragpro-go/pkg/log"
)

// NewMySQL 建立 MySQL 连接并返回 *gorm.DB 句柄。
// 句柄在 main 中构造一次并注入到各 Repository，不使用包级全局变量。
func NewMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 目录表结构迁移
	if err := db.AutoMigrate(&model.User{}, &model.Document{}); err != nil {
		log.Fatal("failed to migrate database schema", err)
	}

	log.Info("MySQL database connected successfully")
	return db
}
