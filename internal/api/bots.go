package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"autoreply/internal/model"
	"autoreply/internal/storage"
)

// ownedBot loads the bot named by the :id parameter if the caller owns it.
// It writes the response itself and returns nil on any failure.
func (s *Server) ownedBot(c *gin.Context) *model.Bot {
	id, ok := pathID(c)
	if !ok {
		return nil
	}
	return s.loadBot(c, id)
}

func (s *Server) loadBot(c *gin.Context, id int64) *model.Bot {
	bot, err := s.store.GetBot(c.Request.Context(), operatorID(c), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Chatbot not found")
		return nil
	}
	if err != nil {
		s.internalError(c, "get bot", err)
		return nil
	}
	return bot
}

func (s *Server) handleListBots(c *gin.Context) {
	bots, err := s.store.ListBots(c.Request.Context(), operatorID(c))
	if err != nil {
		s.internalError(c, "list bots", err)
		return
	}

	resp := make([]botResponse, 0, len(bots))
	for i := range bots {
		resp = append(resp, newBotResponse(&bots[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateBot(c *gin.Context) {
	var req createBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, bindMessage(err))
		return
	}

	bot := model.Bot{
		OwnerID:     operatorID(c),
		Name:        req.Name,
		AccountID:   req.InstagramAccountID,
		Username:    req.InstagramUsername,
		AccessToken: req.AccessToken,
		IsActive:    true,
	}
	err := s.store.CreateBot(c.Request.Context(), &bot)
	if errors.Is(err, storage.ErrAccountTaken) {
		writeError(c, http.StatusBadRequest, "Chatbot for this Instagram account already exists")
		return
	}
	if err != nil {
		s.internalError(c, "create bot", err)
		return
	}

	s.log.Info("bot created", "bot_id", bot.ID, "owner_id", bot.OwnerID, "account_id", bot.AccountID)
	c.JSON(http.StatusCreated, newBotResponse(&bot))
}

func (s *Server) handleGetBot(c *gin.Context) {
	bot := s.ownedBot(c)
	if bot == nil {
		return
	}
	c.JSON(http.StatusOK, newBotResponse(bot))
}

func (s *Server) handleUpdateBot(c *gin.Context) {
	bot := s.ownedBot(c)
	if bot == nil {
		return
	}

	var req updateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, bindMessage(err))
		return
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			writeError(c, http.StatusBadRequest, "Name must not be empty")
			return
		}
		bot.Name = *req.Name
	}
	if req.InstagramUsername != nil {
		bot.Username = *req.InstagramUsername
	}
	if req.AccessToken != nil {
		bot.AccessToken = *req.AccessToken
	}
	if req.IsActive != nil {
		bot.IsActive = *req.IsActive
	}

	if err := s.store.UpdateBot(c.Request.Context(), bot); err != nil {
		s.internalError(c, "update bot", err)
		return
	}
	c.JSON(http.StatusOK, newBotResponse(bot))
}

func (s *Server) handleDeleteBot(c *gin.Context) {
	bot := s.ownedBot(c)
	if bot == nil {
		return
	}
	if err := s.store.DeleteBot(c.Request.Context(), bot.ID); err != nil {
		s.internalError(c, "delete bot", err)
		return
	}
	s.log.Info("bot deleted", "bot_id", bot.ID, "owner_id", bot.OwnerID)
	c.Status(http.StatusNoContent)
}
