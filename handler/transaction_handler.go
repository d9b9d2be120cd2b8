package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/presale_portal/service"
	"gorm.io/gorm"
)

type TransactionHandler struct {
	txns  *service.TransactionService
	users *repository.UserRepository
}

func NewTransactionHandler(txns *service.TransactionService, users *repository.UserRepository) *TransactionHandler {
	return &TransactionHandler{txns: txns, users: users}
}

// transactionView augments the stored record with the QR-encodable payment
// URI for pending payments.
type transactionView struct {
	*model.Transaction
	PaymentURI string `json:"payment_uri,omitempty"`
}

func (h *TransactionHandler) view(txn *model.Transaction) transactionView {
	v := transactionView{Transaction: txn}
	if txn.Status == model.TxnPending {
		v.PaymentURI = h.txns.PaymentURI(txn)
	}
	return v
}

// POST /api/transactions
func (h *TransactionHandler) Create(c *gin.Context) {
	var args service.CreateTransactionArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.FindByID(c, callerID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	txn, err := h.txns.Create(c, user, args)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrBelowMinimum),
			errors.Is(err, service.ErrAboveMaximum),
			errors.Is(err, service.ErrNoPrice),
			errors.Is(err, service.ErrNoActiveStage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, h.view(txn))
}

// GET /api/transactions?after=&before=&size=
func (h *TransactionHandler) List(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))

	page, err := h.txns.List(c, callerID(c), c.Query("after"), c.Query("before"), size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]transactionView, 0, len(page.Data))
	for _, txn := range page.Data {
		views = append(views, h.view(txn))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   views,
		"after":  page.After,
		"before": page.Before,
	})
}

// GET /api/transactions/recent
func (h *TransactionHandler) Recent(c *gin.Context) {
	list, err := h.txns.Recent(c, callerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]transactionView, 0, len(list))
	for _, txn := range list {
		views = append(views, h.view(txn))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// GET /api/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	txn, err := h.txns.Get(c, callerID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view(txn))
}
