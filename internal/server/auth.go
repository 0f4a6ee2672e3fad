package server

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/voxora/voxora/internal/seed"
	"github.com/voxora/voxora/internal/usercontext"
)

// AuthRequired authenticates requests with a bearer API token. Account
// identity comes solely from the api_tokens table; the raw token never
// touches storage, only its digest does.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash := seed.HashAPIToken(parts[1])
		now := time.Now().UTC()

		var record struct {
			ID        snowflake.ID `gorm:"column:id"`
			UserID    snowflake.ID `gorm:"column:user_id"`
			TokenHash string       `gorm:"column:token_hash"`
		}

		if err := s.db.WithContext(c.Request.Context()).Raw(
			`SELECT id, user_id, token_hash
			 FROM api_tokens
			 WHERE token_hash = ?
			   AND is_active = true
			   AND (expires_at IS NULL OR expires_at > ?)
			 LIMIT 1`,
			hash,
			now,
		).Scan(&record).Error; err != nil {
			AbortWithError(c, err)
			return
		}

		if record.ID == 0 || subtle.ConstantTimeCompare([]byte(record.TokenHash), []byte(hash)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), int64(record.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimit applies a per-account fixed window limit.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := usercontext.UserIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !s.limiter.Allow(strconv.FormatInt(userID, 10)) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func (s *Server) userID(c *gin.Context) (snowflake.ID, bool) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	return snowflake.ID(userID), true
}
