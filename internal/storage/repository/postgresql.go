// Package repository реализует хранилище данных на основе PostgreSQL
// для трёх коллекций сервиса: личностей пользователей, платёжных намерений
// и настроек развёртывания. Условные обновления (одобрение намерения,
// деактивация истёкшего доступа, инкремент выручки) выполняются одним
// SQL-запросом, чтобы оставаться корректными при нескольких экземплярах
// сервиса без внутрипроцессных блокировок.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotFound возвращается, когда запрошенная запись отсутствует в хранилище.
var ErrNotFound = errors.New("not found")

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с личностями, намерениями и настройками.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady() error {
	var exists bool
	err := s.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'payment_intents'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table payment_intents missing or query error: %w", err)
	}
	return nil
}
