package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Challenge{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) AddChallenge(challenge *models.Challenge) error {
	if err := db.Conn.Create(challenge).Error; err != nil {
		return fmt.Errorf("failed to record challenge: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetChallenge(paymentHash string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := db.Conn.Where("payment_hash = ?", paymentHash).First(&challenge).Error; err != nil {
		return nil, fmt.Errorf("failed to get challenge: %s", err)
	}

	return &challenge, nil
}

func (db *PostgresDB) MarkSettled(paymentHash string, settledAt int64) error {
	result := db.Conn.Model(&models.Challenge{}).
		Where("payment_hash = ? AND settled = ?", paymentHash, false).
		Updates(map[string]interface{}{"settled": true, "settled_at": settledAt})
	if result.Error != nil {
		return fmt.Errorf("failed to mark challenge settled: %s", result.Error)
	}

	return nil
}

func (db *PostgresDB) CountChallenges() (int64, int64, error) {
	var total, settled int64
	if err := db.Conn.Model(&models.Challenge{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count challenges: %s", err)
	}
	if err := db.Conn.Model(&models.Challenge{}).Where("settled = ?", true).Count(&settled).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count settled challenges: %s", err)
	}

	return total, settled, nil
}

func (db *PostgresDB) RemoveExpiredChallenges(before int64) error {
	if err := db.Conn.Where("expires_at < ? AND settled = ?", before, false).Delete(&models.Challenge{}).Error; err != nil {
		return fmt.Errorf("failed to remove expired challenges: %s", err)
	}

	return nil
}
