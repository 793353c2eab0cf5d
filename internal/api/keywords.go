package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"autoreply/internal/matcher"
	"autoreply/internal/model"
	"autoreply/internal/storage"
)

func (s *Server) handleListKeywords(c *gin.Context) {
	bot := s.ownedBot(c)
	if bot == nil {
		return
	}

	kws, err := s.store.ListKeywords(c.Request.Context(), bot.ID)
	if err != nil {
		s.internalError(c, "list keywords", err)
		return
	}

	resp := make([]keywordResponse, 0, len(kws))
	for i := range kws {
		resp = append(resp, newKeywordResponse(&kws[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateKeyword(c *gin.Context) {
	var req createKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, bindMessage(err))
		return
	}

	trigger, err := matcher.NormalizeTrigger(req.Trigger)
	if err != nil {
		writeError(c, http.StatusBadRequest, "Trigger must not be empty")
		return
	}
	if strings.TrimSpace(req.Response) == "" {
		writeError(c, http.StatusBadRequest, "Response must not be empty")
		return
	}

	bot := s.loadBot(c, req.ChatbotID)
	if bot == nil {
		return
	}

	kw := model.Keyword{BotID: bot.ID, Trigger: trigger, Response: req.Response, IsActive: true}
	if err := s.store.CreateKeyword(c.Request.Context(), &kw); err != nil {
		s.internalError(c, "create keyword", err)
		return
	}
	c.JSON(http.StatusCreated, newKeywordResponse(&kw))
}

// ownedKeyword loads the keyword named by :id if its bot belongs to the caller.
func (s *Server) ownedKeyword(c *gin.Context) *model.Keyword {
	id, ok := pathID(c)
	if !ok {
		return nil
	}
	kw, err := s.store.GetKeyword(c.Request.Context(), operatorID(c), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Keyword not found")
		return nil
	}
	if err != nil {
		s.internalError(c, "get keyword", err)
		return nil
	}
	return kw
}

func (s *Server) handleUpdateKeyword(c *gin.Context) {
	kw := s.ownedKeyword(c)
	if kw == nil {
		return
	}

	var req updateKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, bindMessage(err))
		return
	}
	if req.Trigger != nil {
		trigger, err := matcher.NormalizeTrigger(*req.Trigger)
		if err != nil {
			writeError(c, http.StatusBadRequest, "Trigger must not be empty")
			return
		}
		kw.Trigger = trigger
	}
	if req.Response != nil {
		if strings.TrimSpace(*req.Response) == "" {
			writeError(c, http.StatusBadRequest, "Response must not be empty")
			return
		}
		kw.Response = *req.Response
	}
	if req.IsActive != nil {
		kw.IsActive = *req.IsActive
	}

	if err := s.store.UpdateKeyword(c.Request.Context(), kw); err != nil {
		s.internalError(c, "update keyword", err)
		return
	}
	c.JSON(http.StatusOK, newKeywordResponse(kw))
}

func (s *Server) handleDeleteKeyword(c *gin.Context) {
	kw := s.ownedKeyword(c)
	if kw == nil {
		return
	}
	if err := s.store.DeleteKeyword(c.Request.Context(), kw.ID); err != nil {
		s.internalError(c, "delete keyword", err)
		return
	}
	c.Status(http.StatusNoContent)
}
