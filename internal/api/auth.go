package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply/internal/auth"
	"autoreply/internal/model"
	"autoreply/internal/storage"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, bindMessage(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}

	op := model.Operator{Username: req.Username, Email: req.Email, PasswordHash: hash}
	switch err := s.store.CreateOperator(c.Request.Context(), &op); {
	case errors.Is(err, storage.ErrUsernameTaken):
		writeError(c, http.StatusBadRequest, "Username already exists")
		return
	case errors.Is(err, storage.ErrEmailTaken):
		writeError(c, http.StatusBadRequest, "Email already exists")
		return
	case err != nil:
		s.internalError(c, "create operator", err)
		return
	}

	s.log.Info("operator registered", "operator_id", op.ID, "username", op.Username)
	c.JSON(http.StatusCreated, newOperatorResponse(&op))
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, bindMessage(err))
		return
	}

	op, err := s.store.GetOperatorByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.internalError(c, "get operator", err)
		return
	}
	if op == nil || auth.CheckPassword(op.PasswordHash, req.Password) != nil {
		unauthorized(c, "Incorrect username or password")
		return
	}

	token, err := s.tokens.Issue(op.ID)
	if err != nil {
		s.internalError(c, "issue token", err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(c *gin.Context) {
	op, err := s.store.GetOperator(c.Request.Context(), operatorID(c))
	if errors.Is(err, storage.ErrNotFound) {
		unauthorized(c, "Could not validate credentials")
		return
	}
	if err != nil {
		s.internalError(c, "get operator", err)
		return
	}
	c.JSON(http.StatusOK, newOperatorResponse(op))
}
