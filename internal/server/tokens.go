package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/rate"
	"github.com/voxora/voxora/pkg/db/pagination"
)

// @Summary      Get Balance
// @Description  Return the caller's token balance and lifetime totals
// @Tags         tokens
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  ledgerdomain.TokenLedger
// @Router       /tokens/balance [get]
func (s *Server) GetBalance(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	ledger, err := s.ledgerSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ledger})
}

// @Summary      List Transactions
// @Description  Page through the caller's transaction log, newest first
// @Tags         tokens
// @Produce      json
// @Security     ApiKeyAuth
// @Param        page_token  query  string  false  "Page Token"
// @Param        page_size   query  int     false  "Page Size"
// @Success      200  {object}  ledgerdomain.ListTransactionsResponse
// @Router       /tokens/transactions [get]
func (s *Server) ListTransactions(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.ListTransactions(c.Request.Context(), ledgerdomain.ListTransactionsRequest{
		UserID:    userID,
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type checkBalanceRequest struct {
	ServiceType              string `json:"service_type"`
	EstimatedDurationSeconds int64  `json:"estimated_duration_seconds"`
}

// @Summary      Check Balance
// @Description  Pre-flight check whether a session of the given shape may start
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body checkBalanceRequest true "Check Balance Request"
// @Success      200  {object}  admission.Decision
// @Router       /tokens/check [post]
func (s *Server) CheckBalance(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req checkBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	serviceType, err := rate.ParseServiceType(strings.TrimSpace(req.ServiceType))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if req.EstimatedDurationSeconds < 0 {
		AbortWithError(c, newValidationError("estimated_duration_seconds", "invalid_duration", "estimated duration must not be negative"))
		return
	}

	decision, err := s.admissionSvc.CanStart(
		c.Request.Context(),
		userID,
		serviceType,
		time.Duration(req.EstimatedDurationSeconds)*time.Second,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decision})
}

type creditTokensRequest struct {
	Amount      int64          `json:"amount"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// @Summary      Credit Tokens
// @Description  Add purchased or bonus credits to the caller's ledger
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body creditTokensRequest true "Credit Tokens Request"
// @Success      200  {object}  ledgerdomain.TokenTransaction
// @Router       /tokens/credit [post]
func (s *Server) CreditTokens(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req creditTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	creditType := ledgerdomain.TransactionType(strings.TrimSpace(req.Type))
	if creditType == "" {
		creditType = ledgerdomain.TransactionTypePurchase
	}

	entry, err := s.ledgerSvc.Credit(c.Request.Context(), ledgerdomain.CreditRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Type:        creditType,
		Description: strings.TrimSpace(req.Description),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

type debitTokensRequest struct {
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// @Summary      Debit Tokens
// @Description  Remove credits from the caller's ledger outside the session flow
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body debitTokensRequest true "Debit Tokens Request"
// @Success      200  {object}  ledgerdomain.TokenTransaction
// @Router       /tokens/debit [post]
func (s *Server) DebitTokens(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req debitTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry, err := s.ledgerSvc.Debit(c.Request.Context(), ledgerdomain.DebitRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}
