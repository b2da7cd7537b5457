package validation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

func validCreate() CreateOrderRequest {
	return CreateOrderRequest{
		UserID:       "user-1",
		CustomerInfo: CustomerInfo{Name: "Ada", Email: "ada@example.com"},
		Items: []OrderItem{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 1},
		},
		Pricing: Pricing{Subtotal: money.MustParse("25.50"), Shipping: money.FromInt(5)},
	}
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	assert.NoError(t, New().Struct(validCreate()))
}

func TestCreateOrderRequest_Invalid(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		edit  func(*CreateOrderRequest)
		field string
	}{
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"missing product", func(r *CreateOrderRequest) { r.Items[1].ProductID = "" }, "items[1].product_id"},
		{"missing name", func(r *CreateOrderRequest) { r.CustomerInfo.Name = "" }, "customer_info.name"},
		{"no contact", func(r *CreateOrderRequest) { r.CustomerInfo.Email = "" }, "customer_info.email"},
		{"bad email", func(r *CreateOrderRequest) { r.CustomerInfo.Email = "nope" }, "customer_info.email"},
		{"negative shipping", func(r *CreateOrderRequest) { r.Pricing.Shipping = money.MustParse("-1") }, "pricing.shipping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.edit(&req)
			err := v.Struct(req)
			require.Error(t, err)
			assert.Contains(t, FieldErrors(err), tt.field)
		})
	}
}

func TestCreateOrderRequest_EmptyItemsLeftToEngine(t *testing.T) {
	v := New()
	for _, items := range [][]OrderItem{nil, {}} {
		req := validCreate()
		req.Items = items
		assert.NoError(t, v.Struct(req))
	}
}

func TestCreateOrderRequest_PhoneIsEnoughContact(t *testing.T) {
	req := validCreate()
	req.CustomerInfo.Email = ""
	req.CustomerInfo.Phone = "+1 555 0100"
	assert.NoError(t, New().Struct(req))
}

func TestChangeStatusRequest(t *testing.T) {
	v := New()
	paid, failed := "paid", "failed"

	assert.NoError(t, v.Struct(ChangeStatusRequest{Status: "shipped"}))
	assert.NoError(t, v.Struct(ChangeStatusRequest{
		Status:        "confirmed",
		PaymentStatus: &paid,
		PaymentInfo:   &PaymentInfo{Method: "card", CardData: &CardData{Last4: "4242"}},
	}))
	assert.NoError(t, v.Struct(ChangeStatusRequest{Status: "pending", Revert: &Revert{PreviousStatus: "confirmed"}}))

	assert.Error(t, v.Struct(ChangeStatusRequest{Status: "lost"}))
	assert.Error(t, v.Struct(ChangeStatusRequest{Status: "pending", Revert: &Revert{PreviousStatus: "lost"}}))

	refunded := "refunded"
	assert.Error(t, v.Struct(ChangeStatusRequest{Status: "cancelled", PaymentStatus: &refunded}))

	err := v.Struct(ChangeStatusRequest{Status: "confirmed", PaymentStatus: &failed, PaymentInfo: &PaymentInfo{Method: "card"}})
	require.Error(t, err)
	assert.Equal(t, "requires_paid", FieldErrors(err)["payment_info"])
}

func TestRefundRequests(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(RequestRefundRequest{RequestedBy: "u", Reason: "damaged", RequestedAmount: money.FromInt(10)}))
	assert.Error(t, v.Struct(RequestRefundRequest{RequestedBy: "u", Reason: "damaged"}))

	assert.NoError(t, v.Struct(ProcessRefundRequest{Amount: money.MustParse("0.01"), Reason: "r", Method: "card", ProcessedBy: "admin"}))
	assert.Error(t, v.Struct(ProcessRefundRequest{Amount: money.MustParse("-5"), Reason: "r", Method: "card", ProcessedBy: "admin"}))

	assert.Error(t, v.Struct(RejectRefundRequest{ProcessedBy: "admin"}))
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()

	run := func(body string) (*httptest.ResponseRecorder, error) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var req CreateOrderRequest
		return w, BindAndValidate(c, &req, v)
	}

	w, err := run(`{"customer_info":{"name":"Ada","phone":"555"},"items":[{"product_id":"p","quantity":1}],"pricing":{"subtotal":"10.00","shipping":0}}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)

	w, err = run(`{"items":`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, err = run(`{"customer_info":{"name":"Ada"},"items":[]}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	assert.Contains(t, body.Fields, "customer_info.email")
	assert.NotContains(t, body.Fields, "items")
}
