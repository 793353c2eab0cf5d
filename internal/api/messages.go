package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

func (s *Server) handleListMessages(c *gin.Context) {
	bot := s.ownedBot(c)
	if bot == nil {
		return
	}

	limit := defaultMessageLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxMessageLimit)
	}

	var beforeID int64
	if v := c.Query("before_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "Invalid before_id")
			return
		}
		beforeID = n
	}

	msgs, err := s.store.ListMessages(c.Request.Context(), bot.ID, limit, beforeID)
	if err != nil {
		s.internalError(c, "list messages", err)
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		resp = append(resp, newMessageResponse(&msgs[i]))
	}
	c.JSON(http.StatusOK, resp)
}
