package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/http/handlers/common"
	"github.com/stagelink/gig-backend/internal/models"
)

type walletSource interface {
	GetBalance(ctx context.Context, userID uuid.UUID, currency string) (*models.WalletBalance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

type WalletHandler struct {
	wallets walletSource
}

func NewWalletHandler(wallets walletSource) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// GetBalance GET /wallet?currency=USD
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	currency := strings.ToUpper(c.DefaultQuery("currency", "USD"))
	if len(currency) != 3 {
		common.RespondBadRequest(c, "currency должен быть трёхбуквенным кодом")
		return
	}

	balance, err := h.wallets.GetBalance(c.Request.Context(), userID, currency)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// ListTransactions GET /wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	txs, err := h.wallets.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
