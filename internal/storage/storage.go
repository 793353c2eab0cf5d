// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"fmt"

	"autoreply/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")

	// ErrUsernameTaken reports an operator username that is already registered.
	ErrUsernameTaken = fmt.Errorf("username already exists: %w", ErrConflict)
	// ErrEmailTaken reports an operator email that is already registered.
	ErrEmailTaken = fmt.Errorf("email already exists: %w", ErrConflict)
	// ErrAccountTaken reports an external account id that is already attached to a bot.
	ErrAccountTaken = fmt.Errorf("account already connected: %w", ErrConflict)
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateOperator(ctx context.Context, op *model.Operator) error
	GetOperator(ctx context.Context, id int64) (*model.Operator, error)
	GetOperatorByUsername(ctx context.Context, username string) (*model.Operator, error)

	CreateBot(ctx context.Context, bot *model.Bot) error
	GetBot(ctx context.Context, ownerID, id int64) (*model.Bot, error)
	ListBots(ctx context.Context, ownerID int64) ([]model.Bot, error)
	GetActiveBotByAccountID(ctx context.Context, accountID string) (*model.Bot, error)
	UpdateBot(ctx context.Context, bot *model.Bot) error
	DeleteBot(ctx context.Context, id int64) error

	CreateKeyword(ctx context.Context, kw *model.Keyword) error
	GetKeyword(ctx context.Context, ownerID, id int64) (*model.Keyword, error)
	ListKeywords(ctx context.Context, botID int64) ([]model.Keyword, error)
	ListActiveKeywords(ctx context.Context, botID int64) ([]model.Keyword, error)
	UpdateKeyword(ctx context.Context, kw *model.Keyword) error
	DeleteKeyword(ctx context.Context, id int64) error

	CreateMessage(ctx context.Context, msg *model.MessageRecord) error
	ListMessages(ctx context.Context, botID int64, limit int, beforeID int64) ([]model.MessageRecord, error)

	Ping(ctx context.Context) error
	Maintain(ctx context.Context) error
	Close() error
}
