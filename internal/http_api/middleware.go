package http_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satgate/satgate/internal/l402"
	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
)

// Gate is the L402 middleware. Each request is judged independently:
// no credential gets a fresh 402 challenge, a presented credential goes
// through the verifier and is either passed downstream, rejected with 401
// or re-challenged with 402. Tokens are never consumed; a paid token is a
// time-bounded access pass reusable until its expiration caveat.
type Gate struct {
	logger      *logger.Logger
	minter      *l402.Minter
	verifier    *l402.Verifier
	repo        models.Repository
	notificator models.NotificationService
	priceSats   int64
	location    string
}

// NewGate creates a Gate. notificator may be nil.
func NewGate(
	minter *l402.Minter,
	verifier *l402.Verifier,
	repo models.Repository,
	notificator models.NotificationService,
	priceSats int64,
	location string,
	logger *logger.Logger,
) *Gate {
	return &Gate{
		logger:      logger,
		minter:      minter,
		verifier:    verifier,
		repo:        repo,
		notificator: notificator,
		priceSats:   priceSats,
		location:    location,
	}
}

// Handler returns the gin middleware guarding a route group.
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			g.DemandPayment(c, "")
			return
		}

		credential, err := l402.ParseHeader(authHeader)
		if err != nil {
			g.logger.Debugw("Rejected malformed credential", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed credential"})
			return
		}

		result, err := g.verifier.Verify(c.Request.Context(), credential, g.location, time.Now())
		if err != nil {
			g.logger.Errorw("Settlement check failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payment backend unavailable"})
			return
		}

		switch result.Outcome {
		case l402.OutcomeAuthorized:
			g.recordSettlement(result)
			c.Next()
		case l402.OutcomeUnauthorized:
			g.logger.Debugw("Credential rejected", "reason", result.Reason, "payment_hash", result.PaymentHash)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": result.Reason})
		case l402.OutcomePaymentRequired:
			g.logger.Debugw("Payment proof rejected", "reason", result.Reason, "payment_hash", result.PaymentHash)
			g.DemandPayment(c, result.Reason)
		}
	}
}

// DemandPayment issues a fresh challenge and answers 402 with the
// WWW-Authenticate header carrying the token and the invoice. Without an
// invoice there is nothing to request payment against, so backend failures
// become 503, never a bare 402.
func (g *Gate) DemandPayment(c *gin.Context, reason string) {
	challenge, err := g.minter.IssueChallenge(c.Request.Context(), g.priceSats, g.location)
	if err != nil {
		g.logger.Errorw("Failed to issue challenge", "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payment backend unavailable"})
		return
	}

	c.Header("WWW-Authenticate", fmt.Sprintf(
		`%s macaroon="%s", invoice="%s"`,
		l402.HeaderScheme, challenge.Token, challenge.Invoice.PaymentRequest,
	))

	body := gin.H{
		"status":       "payment_required",
		"macaroon":     challenge.Token,
		"invoice":      challenge.Invoice.PaymentRequest,
		"payment_hash": challenge.Invoice.PaymentHash,
		"amount_sats":  challenge.Invoice.AmountSats,
		"message":      fmt.Sprintf("Pay %d sats, then retry with Authorization: %s <macaroon>:<preimage-hex>", challenge.Invoice.AmountSats, l402.HeaderScheme),
	}
	if reason != "" {
		body["reason"] = reason
	}
	c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
}

// recordSettlement marks the ledger entry settled on the first authorized
// request and notifies the operator. Verification itself stays pure; this
// is bookkeeping after the decision.
func (g *Gate) recordSettlement(result l402.Result) {
	challenge, err := g.repo.GetChallenge(result.PaymentHash)
	if err != nil || challenge.Settled {
		return
	}

	settledAt := time.Now().Unix()
	if err := g.repo.MarkSettled(result.PaymentHash, settledAt); err != nil {
		g.logger.Errorw("Failed to mark challenge settled", "payment_hash", result.PaymentHash, "error", err)
		return
	}
	g.logger.Infow("Payment observed", "payment_hash", result.PaymentHash, "price_sats", challenge.PriceSats)

	// NotifySettled recovers its own panics and runs once per challenge,
	// so it is called inline rather than from a spawned goroutine.
	if g.notificator != nil {
		challenge.Settled = true
		challenge.SettledAt = settledAt
		g.notificator.NotifySettled(challenge)
	}
}
