package http_api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/validation"
)

// InvoiceRequest represents the JSON body for standalone invoice creation
type InvoiceRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Memo   string `json:"memo"`
}

// InvoiceResponse represents the created invoice
type InvoiceResponse struct {
	PaymentHash    string `json:"paymentHash"`
	PaymentRequest string `json:"paymentRequest"`
	AmountSats     int64  `json:"amountSats"`
}

// StatusResponse represents the challenge ledger summary
type StatusResponse struct {
	ChallengesIssued  int64 `json:"challenges_issued"`
	ChallengesSettled int64 `json:"challenges_settled"`
}

// health is a liveness probe.
func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// challenge always answers with a fresh 402 challenge. Clients use it to
// obtain a token and invoice ahead of hitting a protected resource.
func (s *HTTPServer) challenge(c *gin.Context) {
	s.gate.DemandPayment(c, "")
}

// createInvoice creates a bare invoice without minting a token.
func (s *HTTPServer) createInvoice(c *gin.Context) {
	var req InvoiceRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required and must be a number"})
		return
	}

	invoice, err := s.backend.CreateInvoice(c.Request.Context(), req.Amount, req.Memo)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(err, models.ErrBackendUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment backend unavailable"})
		default:
			s.logger.Errorw("Failed to create invoice", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invoice"})
		}
		return
	}

	c.JSON(http.StatusOK, InvoiceResponse{
		PaymentHash:    invoice.PaymentHash,
		PaymentRequest: invoice.PaymentRequest,
		AmountSats:     invoice.AmountSats,
	})
}

// status summarizes the challenge ledger.
func (s *HTTPServer) status(c *gin.Context) {
	total, settled, err := s.repo.CountChallenges()
	if err != nil {
		s.logger.Errorw("Failed to count challenges", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		ChallengesIssued:  total,
		ChallengesSettled: settled,
	})
}

// protectedTest is the demo resource behind the gate.
func (s *HTTPServer) protectedTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":       "Success! L402 authentication works",
		"authenticated": true,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// mockBackend is implemented only by the in-memory simulator.
type mockBackend interface {
	Settle(paymentHash string) error
	Preimage(paymentHash string) (string, error)
}

// mockSettle settles a simulated invoice. Registered only in development
// with the mock backend.
func (s *HTTPServer) mockSettle(c *gin.Context) {
	mock, ok := s.backend.(mockBackend)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not available"})
		return
	}

	paymentHash := c.Param("hash")
	if _, err := validation.ValidatePaymentHash(paymentHash); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := mock.Settle(paymentHash); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": true})
}

// mockPreimage reveals the preimage of a settled simulated invoice, playing
// the role of the payer's wallet in the demo flow.
func (s *HTTPServer) mockPreimage(c *gin.Context) {
	mock, ok := s.backend.(mockBackend)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not available"})
		return
	}

	paymentHash := c.Param("hash")
	if _, err := validation.ValidatePaymentHash(paymentHash); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preimage, err := mock.Preimage(paymentHash)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preimage": preimage})
}
