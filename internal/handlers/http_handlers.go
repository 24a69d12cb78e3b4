package handlers

import (
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/shopspring/decimal"

	"potledger/internal/models"
	"potledger/internal/services"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the pool service.
type HTTPHandler struct {
	service  *services.PoolService
	auth     Authenticator
	registry metrics.Registry
	asset    string
	decimals int32
}

// NewHTTPHandler creates a new HTTPHandler. Amounts in responses are also
// rendered as decimals of asset with the given number of decimal places.
func NewHTTPHandler(service *services.PoolService, auth Authenticator, registry metrics.Registry, asset string, decimals int32) *HTTPHandler {
	return &HTTPHandler{
		service:  service,
		auth:     auth,
		registry: registry,
		asset:    asset,
		decimals: decimals,
	}
}

// RegisterPublicRoutes registers the routes that need no caller identity.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/metrics", h.ShowMetrics)
}

// RegisterCallerRoutes registers the pool operations. The group must run
// CallerMiddleware.
func (h *HTTPHandler) RegisterCallerRoutes(router gin.IRouter) {
	router.POST("/deposits", h.Deposit)
	router.POST("/draws", h.DrawWinner)
	router.POST("/claims", h.ClaimReward)
	router.POST("/withdrawals", h.AdminWithdraw)
	router.PUT("/owner", h.ChangeOwner)
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type winnerRequest struct {
	Winner string `json:"winner"`
}

type ownerRequest struct {
	NewAdmin string `json:"newAdmin"`
}

// Deposit handles a deposit into the open round.
func (h *HTTPHandler) Deposit(c *gin.Context) {
	var req amountRequest
	if !h.bind(c, &req) {
		return
	}
	receipt, err := h.service.Deposit(callerOf(c), req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"receipt": receipt,
		"display": gin.H{
			"amount":     h.display(receipt.Amount),
			"stake":      h.display(receipt.Stake),
			"roundTotal": h.display(receipt.RoundTotal),
		},
	})
}

// DrawWinner handles the operator's draw of the current round.
func (h *HTTPHandler) DrawWinner(c *gin.Context) {
	var req winnerRequest
	if !h.bind(c, &req) {
		return
	}
	receipt, err := h.service.DrawWinner(callerOf(c), models.PrincipalID(req.Winner))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receipt": receipt,
		"display": gin.H{
			"prize": h.display(receipt.Prize),
			"owed":  h.display(receipt.Owed),
		},
	})
}

// ClaimReward handles a winner claiming their prize.
func (h *HTTPHandler) ClaimReward(c *gin.Context) {
	receipt, err := h.service.ClaimReward(callerOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receipt": receipt,
		"display": gin.H{
			"amount": h.display(receipt.Amount),
			"fee":    h.display(receipt.Fee),
			"payout": h.display(receipt.Payout),
		},
	})
}

// AdminWithdraw handles an operator withdrawal from the prize vault.
func (h *HTTPHandler) AdminWithdraw(c *gin.Context) {
	var req amountRequest
	if !h.bind(c, &req) {
		return
	}
	receipt, err := h.service.AdminWithdraw(callerOf(c), req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receipt": receipt,
		"display": gin.H{
			"amount":    h.display(receipt.Amount),
			"remaining": h.display(receipt.Remaining),
		},
	})
}

// ChangeOwner handles the admin handing over the pool.
func (h *HTTPHandler) ChangeOwner(c *gin.Context) {
	var req ownerRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.ChangeOwner(callerOf(c), models.PrincipalID(req.NewAdmin)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": req.NewAdmin})
}

// ShowMetrics writes the metrics registry as JSON.
func (h *HTTPHandler) ShowMetrics(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	metrics.WriteJSONOnce(h.registry, c.Writer)
}

func (h *HTTPHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "invalid_request",
			"message":   err.Error(),
			"requestId": c.GetString(requestIDKey),
		})
		return false
	}
	return true
}

var errorResponses = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{models.ErrNotInitialized, http.StatusServiceUnavailable, "not_initialized"},
	{models.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
	{models.ErrRoundClosed, http.StatusConflict, "round_closed"},
	{models.ErrNoDeposits, http.StatusConflict, "no_deposits"},
	{models.ErrInvalidDeposit, http.StatusBadRequest, "invalid_deposit"},
	{models.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{models.ErrInvalidWinner, http.StatusUnprocessableEntity, "invalid_winner"},
	{models.ErrNoPrize, http.StatusNotFound, "no_prize"},
	{models.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{models.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{models.ErrDestinationInvalid, http.StatusBadRequest, "destination_invalid"},
}

// fail reports err with the status and code of its kind.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	for _, e := range errorResponses {
		if errors.Is(err, e.err) {
			c.AbortWithStatusJSON(e.status, gin.H{
				"error":     e.code,
				"message":   err.Error(),
				"requestId": c.GetString(requestIDKey),
			})
			return
		}
	}
	logger.Errorf("request %s: %v", c.GetString(requestIDKey), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":     "internal",
		"requestId": c.GetString(requestIDKey),
	})
}

// display renders a base-unit amount in whole units of the pool asset.
func (h *HTTPHandler) display(amount uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -h.decimals)
	return d.StringFixed(h.decimals) + " " + h.asset
}
