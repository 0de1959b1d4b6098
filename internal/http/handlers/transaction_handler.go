package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/http/handlers/common"
	"github.com/sratov/TimeBankingBot/internal/models"
)

// LedgerHistory возвращает историю переводов пользователя.
type LedgerHistory interface {
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// TransactionHandler обслуживает /transactions.
type TransactionHandler struct {
	ledger LedgerHistory
}

func NewTransactionHandler(ledger LedgerHistory) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// List обрабатывает GET /transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.ledger.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
