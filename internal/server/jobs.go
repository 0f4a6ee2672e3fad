package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Run Reap
// @Description  Sweep one batch of stale sessions immediately
// @Tags         jobs
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]int
// @Router       /jobs/reap [post]
func (s *Server) RunReap(c *gin.Context) {
	closed, err := s.reaper.RunOnce(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"closed": closed}})
}
