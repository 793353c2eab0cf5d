package api

import (
	"time"

	"autoreply/internal/model"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type operatorResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newOperatorResponse(op *model.Operator) operatorResponse {
	return operatorResponse{
		ID:        op.ID,
		Username:  op.Username,
		Email:     op.Email,
		CreatedAt: op.CreatedAt,
	}
}

type createBotRequest struct {
	Name               string `json:"name" binding:"required,max=100"`
	InstagramAccountID string `json:"instagram_account_id" binding:"required,max=100"`
	InstagramUsername  string `json:"instagram_username" binding:"max=100"`
	AccessToken        string `json:"access_token" binding:"required"`
}

type updateBotRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1,max=100"`
	InstagramUsername *string `json:"instagram_username" binding:"omitempty,max=100"`
	AccessToken       *string `json:"access_token" binding:"omitempty,min=1"`
	IsActive          *bool   `json:"is_active"`
}

// botResponse never carries the access token.
type botResponse struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	InstagramAccountID string    `json:"instagram_account_id"`
	InstagramUsername  *string   `json:"instagram_username"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func newBotResponse(b *model.Bot) botResponse {
	return botResponse{
		ID:                 b.ID,
		Name:               b.Name,
		InstagramAccountID: b.AccountID,
		InstagramUsername:  optional(b.Username),
		IsActive:           b.IsActive,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

type createKeywordRequest struct {
	Trigger   string `json:"trigger" binding:"required,max=200"`
	Response  string `json:"response" binding:"required"`
	ChatbotID int64  `json:"chatbot_id" binding:"required,gt=0"`
}

type updateKeywordRequest struct {
	Trigger  *string `json:"trigger" binding:"omitempty,max=200"`
	Response *string `json:"response"`
	IsActive *bool   `json:"is_active"`
}

type keywordResponse struct {
	ID        int64     `json:"id"`
	Trigger   string    `json:"trigger"`
	Response  string    `json:"response"`
	IsActive  bool      `json:"is_active"`
	ChatbotID int64     `json:"chatbot_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newKeywordResponse(kw *model.Keyword) keywordResponse {
	return keywordResponse{
		ID:        kw.ID,
		Trigger:   kw.Trigger,
		Response:  kw.Response,
		IsActive:  kw.IsActive,
		ChatbotID: kw.BotID,
		CreatedAt: kw.CreatedAt,
	}
}

type messageResponse struct {
	ID             int64     `json:"id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername *string   `json:"sender_username"`
	MessageText    string    `json:"message_text"`
	BotResponse    string    `json:"bot_response"`
	MatchedKeyword string    `json:"matched_keyword"`
	Timestamp      time.Time `json:"timestamp"`
	ChatbotID      int64     `json:"chatbot_id"`
}

func newMessageResponse(m *model.MessageRecord) messageResponse {
	return messageResponse{
		ID:             m.ID,
		SenderID:       m.SenderID,
		SenderUsername: optional(m.SenderUsername),
		MessageText:    m.MessageText,
		BotResponse:    m.BotResponse,
		MatchedKeyword: m.MatchedKeyword,
		Timestamp:      m.CreatedAt,
		ChatbotID:      m.BotID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
