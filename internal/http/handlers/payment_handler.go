package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

const (
	defaultPaymentsPage = 50
	maxPaymentsPage     = 200
	// multipartOverhead запас на текстовые поля формы сверх размера файла.
	multipartOverhead = 1 << 20
)

// PaymentFlow оплата по UPI и проверка квитанций.
type PaymentFlow interface {
	UPILink(ctx context.Context, orderID int64, email string) (*service.UPILink, error)
	Submit(ctx context.Context, in service.SubmitPaymentInput) (*models.Payment, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Payment, int, error)
	ReceiptFile(ctx context.Context, id int64) (*models.Payment, string, error)
	Review(ctx context.Context, id int64, status string) (*models.Payment, error)
}

type PaymentHandler struct {
	payments       PaymentFlow
	maxUploadBytes int64
}

func NewPaymentHandler(payments PaymentFlow, maxUploadBytes int64) *PaymentHandler {
	return &PaymentHandler{payments: payments, maxUploadBytes: maxUploadBytes}
}

// UPILink GET /api/payments/upi?order_id=&email=
func (h *PaymentHandler) UPILink(c *gin.Context) {
	orderID, err := common.ParseInt64Query(c, "order_id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	link, err := h.payments.UPILink(c.Request.Context(), orderID, c.Query("email"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UPILinkResponse{
		OrderID: link.OrderID,
		Amount:  link.Amount,
		Payee:   link.Payee,
		URL:     link.URL,
	})
}

// SubmitPayment POST /api/orders/:id/payments (multipart/form-data)
func (h *PaymentHandler) SubmitPayment(c *gin.Context) {
	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	rating := 0
	if raw := strings.TrimSpace(c.PostForm("rating")); raw != "" {
		rating, err = strconv.Atoi(raw)
		if err != nil {
			common.Fail(c, apperror.New(apperror.ErrCodeValidation, "оценка должна быть числом"))
			return
		}
	}

	var receipt io.Reader
	file, err := c.FormFile("receipt")
	switch {
	case err == nil:
		f, openErr := file.Open()
		if openErr != nil {
			common.Fail(c, apperror.Internal(openErr))
			return
		}
		defer f.Close()
		receipt = f
	case errors.Is(err, http.ErrMissingFile):
		// Сервис вернёт понятную ошибку валидации.
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.Fail(c, apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("файл больше %d МБ", h.maxUploadBytes>>20)))
			return
		}
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeBadRequest, "ожидается multipart/form-data"))
		return
	}

	payment, err := h.payments.Submit(c.Request.Context(), service.SubmitPaymentInput{
		OrderID:    orderID,
		Email:      c.PostForm("email"),
		PaymentRef: c.PostForm("payment_ref"),
		Rating:     rating,
		Feedback:   c.PostForm("feedback"),
		Receipt:    receipt,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// AdminListPayments GET /api/admin/payments?status=
func (h *PaymentHandler) AdminListPayments(c *gin.Context) {
	limit, offset := common.GetPagination(c, defaultPaymentsPage, maxPaymentsPage)

	payments, total, err := h.payments.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}

	c.JSON(http.StatusOK, dto.PaginatedPaymentsResponse{
		Data:       payments,
		Pagination: dto.NewPagination(total, limit, offset, len(payments)),
	})
}

// AdminReceipt GET /api/admin/payments/:id/receipt
func (h *PaymentHandler) AdminReceipt(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	payment, path, err := h.payments.ReceiptFile(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	name := fmt.Sprintf("order-%d-payment-%d%s", payment.OrderID, payment.ID, filepath.Ext(path))
	c.FileAttachment(path, name)
}

// AdminReviewPayment PATCH /api/admin/payments/:id
func (h *PaymentHandler) AdminReviewPayment(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ReviewPaymentRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	payment, err := h.payments.Review(c.Request.Context(), id, req.Status)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
