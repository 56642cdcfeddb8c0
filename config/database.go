package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DatabaseDSN builds the MySQL DSN from DB_* environment variables.
// clientFoundRows makes RowsAffected count matched rows, which the
// optimistic version checks rely on.
func DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		os.Getenv("DB_USERNAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_DATABASE"),
	)
}

// GormLogLevel keeps SQL statements out of production logs unless DEBUG_SQL=true.
func GormLogLevel() logger.LogLevel {
	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	debugSQL := strings.ToLower(os.Getenv("DEBUG_SQL"))
	if environment == "production" && debugSQL != "true" {
		return logger.Warn
	}
	return logger.Info
}

func InitDB() {
	var err error

	cfg := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: GormLogLevel()},
		),
	}

	DB, err = gorm.Open(mysql.Open(DatabaseDSN()), cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Database connected successfully")
}

// AutoMigrateEnabled reports whether DB_AUTO_MIGRATE asks for schema migration at startup.
func AutoMigrateEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("DB_AUTO_MIGRATE")), "true")
}
