package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-order-lifecycle/internal/lifecycle"
)

// errorResponse maps an engine error to an HTTP status and body.
func errorResponse(err error) (int, gin.H) {
	var stockErr *lifecycle.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return http.StatusConflict, gin.H{
			"error":        "insufficient_stock",
			"msg":          err.Error(),
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		}
	case errors.Is(err, lifecycle.ErrEmptyItems):
		return http.StatusBadRequest, body("empty_items", err)
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return http.StatusBadRequest, body("invalid_input", err)
	case errors.Is(err, lifecycle.ErrPriceMismatch):
		return http.StatusUnprocessableEntity, body("price_mismatch", err)
	case errors.Is(err, lifecycle.ErrOrderConflict):
		return http.StatusConflict, body("order_conflict", err)
	case errors.Is(err, lifecycle.ErrAlreadyRefunded):
		return http.StatusConflict, body("already_refunded", err)
	case errors.Is(err, lifecycle.ErrRefundNotAllowed):
		return http.StatusUnprocessableEntity, body("refund_not_allowed", err)
	case errors.Is(err, lifecycle.ErrPaymentNotPaid):
		return http.StatusUnprocessableEntity, body("payment_not_paid", err)
	case errors.Is(err, lifecycle.ErrRefundAmountExceedsOrder):
		return http.StatusUnprocessableEntity, body("refund_amount_exceeds_order", err)
	case errors.Is(err, lifecycle.ErrGuardFailed):
		return http.StatusConflict, gin.H{"error": "idempotency_retry", "msg": "retry the request"}
	case errors.Is(err, lifecycle.ErrCommitUnknown):
		return http.StatusServiceUnavailable, gin.H{
			"error": "commit_outcome_unknown",
			"msg":   "the order may have been placed; retry with the same Idempotency-Key",
		}
	case errors.Is(err, lifecycle.ErrOrderNotFound):
		return http.StatusNotFound, body("order_not_found", err)
	case errors.Is(err, lifecycle.ErrProductNotFound):
		return http.StatusNotFound, body("product_not_found", err)
	case errors.Is(err, lifecycle.ErrRefundRequestNotFound):
		return http.StatusNotFound, body("refund_request_not_found", err)
	}
	return http.StatusInternalServerError, gin.H{"error": "internal_error"}
}

func body(code string, err error) gin.H {
	return gin.H{"error": code, "msg": err.Error()}
}

// fail writes the mapped error. Unexpected errors are attached to the
// context so the request logger records them.
func fail(c *gin.Context, err error) {
	status, b := errorResponse(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	b["request_id"] = c.GetString(ctxRequestID)
	c.JSON(status, b)
}
