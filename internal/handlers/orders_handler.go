package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/idempotency"
	"github.com/imrishuroy/go-order-lifecycle/internal/lifecycle"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
	"github.com/imrishuroy/go-order-lifecycle/internal/validation"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	headerActor          = "X-Actor"
)

// Engine is the order lifecycle as seen by the HTTP layer.
type Engine interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	CreateOrder(ctx context.Context, cmd lifecycle.CreateOrderCommand) (*orders.Order, error)
	ChangeStatus(ctx context.Context, cmd lifecycle.ChangeStatusCommand) (*lifecycle.TransitionResult, error)
	DeleteOrder(ctx context.Context, orderID, actor string) (*orders.Order, error)
	RequestRefund(ctx context.Context, cmd lifecycle.RequestRefundCommand) (*orders.RefundRequest, error)
	ProcessRefund(ctx context.Context, cmd lifecycle.ProcessRefundCommand) (*orders.RefundInfo, error)
	RejectRefundRequest(ctx context.Context, cmd lifecycle.RejectRefundCommand) (*orders.RefundRequest, error)
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Engine      Engine
	Idempotency *idempotency.Store // nil disables Idempotency-Key handling
	Logger      *zap.Logger
}

type ordersHandler struct {
	engine Engine
	idemp  *idempotency.Store
	v      *validatorv10.Validate
	logger *zap.Logger
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ordersHandler{
		engine: cfg.Engine,
		idemp:  cfg.Idempotency,
		v:      validation.New(),
		logger: logger,
	}

	r.POST("/orders", h.createOrder)
	r.GET("/orders/:id", h.getOrder)
	r.PATCH("/orders/:id/status", h.changeStatus)
	r.DELETE("/orders/:id", h.deleteOrder)
	r.GET("/orders/:id/refund-eligibility", h.refundEligibility)
	r.POST("/orders/:id/refund-requests", h.requestRefund)
	r.POST("/orders/:id/refunds", h.processRefund)
	r.POST("/refund-requests/:requestId/reject", h.rejectRefundRequest)
}

func (h *ordersHandler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	idempKey := c.GetHeader(headerIdempotencyKey)
	if idempKey == "" || h.idemp == nil {
		order, err := h.engine.CreateOrder(ctx, createCommand(req))
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Location", fmt.Sprintf("/orders/%s", order.OrderID))
		c.JSON(http.StatusCreated, order)
		return
	}

	hash := idempotency.HashRequest(raw)
	lease, rec, err := h.idemp.Begin(ctx, idempKey, hash)
	if err != nil {
		fail(c, fmt.Errorf("idempotency begin: %w", err))
		return
	}
	if lease == "" {
		h.replay(c, rec, hash)
		return
	}

	cmd := createCommand(req)
	cmd.Guard = func(o *orders.Order) (types.TransactWriteItem, error) {
		body, err := json.Marshal(o)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return h.idemp.CompleteItem(idempKey, lease, o.OrderID, string(body), http.StatusCreated), nil
	}

	order, err := h.engine.CreateOrder(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrCommitUnknown):
			// the order may exist; the key stays leased so a retry either
			// replays it or takes over once the lease runs out
			h.logger.Warn("order commit outcome unknown",
				zap.String("idempotency_key", idempKey),
				zap.Error(err))
		case errors.Is(err, lifecycle.ErrGuardFailed):
			// the lease was taken over by a later attempt
		default:
			if rerr := h.idemp.Release(ctx, idempKey, lease); rerr != nil {
				h.logger.Warn("idempotency release failed",
					zap.String("idempotency_key", idempKey),
					zap.Error(rerr))
			}
		}
		fail(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/orders/%s", order.OrderID))
	c.JSON(http.StatusCreated, order)
}

// replay answers a request whose Idempotency-Key belongs to another attempt.
func (h *ordersHandler) replay(c *gin.Context, rec *idempotency.Record, hash string) {
	if rec == nil {
		// released or expired while we were looking
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_retry", "msg": "retry the request"})
		return
	}
	if rec.RequestHash != hash {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		c.Header(headerReplayed, "true")
		if rec.OrderID != "" {
			c.Header("Location", fmt.Sprintf("/orders/%s", rec.OrderID))
		}
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		fail(c, fmt.Errorf("unknown idempotency status %q", rec.Status))
	}
}

func (h *ordersHandler) getOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *ordersHandler) changeStatus(c *gin.Context) {
	var req validation.ChangeStatusRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	res, err := h.engine.ChangeStatus(c.Request.Context(), changeStatusCommand(c.Param("id"), c.GetHeader(headerActor), req))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":           res.Order,
		"previous_status": res.PreviousStatus,
		"current_status":  res.CurrentStatus,
		"stock_action":    res.StockAction,
		"stock_adjusted":  res.StockAdjusted,
	})
}

func (h *ordersHandler) deleteOrder(c *gin.Context) {
	order, err := h.engine.DeleteOrder(c.Request.Context(), c.Param("id"), c.GetHeader(headerActor))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.OrderID, "deleted": true})
}

func (h *ordersHandler) refundEligibility(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{
		"order_id":           order.OrderID,
		"can_request_refund": lifecycle.CanRequestRefund(order),
	}
	if reason := lifecycle.RefundBlocker(order); reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ordersHandler) requestRefund(c *gin.Context) {
	var req validation.RequestRefundRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	rr, err := h.engine.RequestRefund(c.Request.Context(), lifecycle.RequestRefundCommand{
		OrderID:         c.Param("id"),
		RequestedBy:     req.RequestedBy,
		Reason:          req.Reason,
		RequestedAmount: req.RequestedAmount,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rr)
}

func (h *ordersHandler) processRefund(c *gin.Context) {
	var req validation.ProcessRefundRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	info, err := h.engine.ProcessRefund(c.Request.Context(), lifecycle.ProcessRefundCommand{
		OrderID:           c.Param("id"),
		Amount:            req.Amount,
		Reason:            req.Reason,
		Method:            req.Method,
		ProcessedBy:       req.ProcessedBy,
		OriginalRequestID: req.OriginalRequestID,
		AdminNotes:        req.AdminNotes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *ordersHandler) rejectRefundRequest(c *gin.Context) {
	var req validation.RejectRefundRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	rr, err := h.engine.RejectRefundRequest(c.Request.Context(), lifecycle.RejectRefundCommand{
		RequestID:   c.Param("requestId"),
		Reason:      req.Reason,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rr)
}
