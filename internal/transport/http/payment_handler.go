package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
)

type PaymentHandler struct {
	coupons  *usecase.CouponUseCase
	payments *usecase.PaymentUseCase
	resp     *Responder
}

func NewPaymentHandler(coupons *usecase.CouponUseCase, payments *usecase.PaymentUseCase, resp *Responder) *PaymentHandler {
	return &PaymentHandler{coupons: coupons, payments: payments, resp: resp}
}

type createCouponReq struct {
	Code              string    `json:"code" binding:"required"`
	Description       string    `json:"description"`
	DiscountType      string    `json:"discountType" binding:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue     float64   `json:"discountValue" binding:"required,gt=0"`
	MaxDiscountAmount float64   `json:"maxDiscountAmount" binding:"min=0"`
	MinPurchaseAmount float64   `json:"minPurchaseAmount" binding:"min=0"`
	MaxUses           int       `json:"maxUses" binding:"required,gt=0"`
	ValidFrom         time.Time `json:"validFrom"`
	ValidUntil        time.Time `json:"validUntil" binding:"required"`
}

type validateCouponReq struct {
	Code     string  `json:"code" binding:"required"`
	Amount   float64 `json:"amount" binding:"min=0"`
	CourseID string  `json:"courseId"`
}

type checkoutReq struct {
	CourseID   string `json:"courseId" binding:"required"`
	CouponCode string `json:"couponCode"`
}

type confirmReq struct {
	CourseID      string `json:"courseId" binding:"required"`
	CouponCode    string `json:"couponCode"`
	PaymentMethod string `json:"paymentMethod"`
}

// POST /coupons
func (h *PaymentHandler) CreateCoupon(c *gin.Context) {
	var req createCouponReq
	if !h.resp.bind(c, &req) {
		return
	}
	coupon, err := h.coupons.Create(c.Request.Context(), actor(c).UserID, usecase.CouponInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      domain.DiscountType(req.DiscountType),
		DiscountValue:     req.DiscountValue,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxUses:           req.MaxUses,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, coupon)
}

// GET /coupons
func (h *PaymentHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.coupons.List(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"coupons": coupons, "count": len(coupons)})
}

// GET /coupons/:code
func (h *PaymentHandler) GetCoupon(c *gin.Context) {
	coupon, err := h.coupons.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, coupon)
}

// PUT /coupons/:code
func (h *PaymentHandler) UpdateCoupon(c *gin.Context) {
	var changes map[string]any
	if !h.resp.bind(c, &changes) {
		return
	}
	coupon, err := h.coupons.Update(c.Request.Context(), c.Param("code"), changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, coupon)
}

// DELETE /coupons/:code deactivates the coupon.
func (h *PaymentHandler) DeactivateCoupon(c *gin.Context) {
	coupon, err := h.coupons.Deactivate(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"message": "Coupon deactivated", "coupon": coupon})
}

// POST /coupons/validate
func (h *PaymentHandler) ValidateCoupon(c *gin.Context) {
	var req validateCouponReq
	if !h.resp.bind(c, &req) {
		return
	}
	res, err := h.coupons.Validate(c.Request.Context(), req.Code, req.Amount, req.CourseID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, res)
}

// POST /payments/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if !h.resp.bind(c, &req) {
		return
	}
	quote, err := h.payments.Checkout(c.Request.Context(), actor(c).UserID, req.CourseID, req.CouponCode)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, quote)
}

// POST /payments/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req confirmReq
	if !h.resp.bind(c, &req) {
		return
	}
	purchase, err := h.payments.Confirm(c.Request.Context(), actor(c).UserID, usecase.ConfirmInput{
		CourseID:      req.CourseID,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, purchase)
}

// GET /payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.payments.ListMine(c.Request.Context(), actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"payments": payments, "count": len(payments)})
}

// GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), actor(c).UserID, c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, payment)
}
