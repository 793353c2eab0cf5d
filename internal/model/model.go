// Package model defines the domain types used across the application.
package model

import "time"

// Operator is an admin account that owns bots.
type Operator struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Bot is an auto-responder attached to one external messaging account.
type Bot struct {
	ID          int64     `db:"id"`
	OwnerID     int64     `db:"owner_id"`
	Name        string    `db:"name"`
	AccountID   string    `db:"account_id"`
	Username    string    `db:"username"`
	AccessToken string    `db:"access_token"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Keyword is a trigger/response pair belonging to a bot.
type Keyword struct {
	ID        int64     `db:"id"`
	BotID     int64     `db:"bot_id"`
	Trigger   string    `db:"trigger_text"`
	Response  string    `db:"response"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// MessageRecord is an immutable log entry for one inbound message and the reply chosen for it.
type MessageRecord struct {
	ID             int64     `db:"id"`
	BotID          int64     `db:"bot_id"`
	SenderID       string    `db:"sender_id"`
	SenderUsername string    `db:"sender_username"`
	MessageText    string    `db:"message_text"`
	BotResponse    string    `db:"bot_response"`
	MatchedKeyword string    `db:"matched_keyword"`
	CreatedAt      time.Time `db:"created_at"`
}
