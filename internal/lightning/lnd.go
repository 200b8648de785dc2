package lightning

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"gopkg.in/macaroon.v2"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
)

const (
	// invoiceExpirySeconds is the BOLT11 expiry requested for challenge
	// invoices. Independent of the token validity window.
	invoiceExpirySeconds = 3600

	// rpcTimeout bounds a single node call so a hung backend cannot
	// occupy a serving slot indefinitely.
	rpcTimeout = 10 * time.Second
)

// LNDConfig holds connection configuration for the LND node.
type LNDConfig struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

// LNDBackend implements models.LightningBackend against an LND node over
// gRPC. The node macaroon used here authenticates satgate to the node and
// is unrelated to the access-token macaroons minted for clients.
type LNDBackend struct {
	logger   *logger.Logger
	lnClient lnrpc.LightningClient
	conn     *grpc.ClientConn
}

// NewLNDBackend dials the LND node with TLS and macaroon credentials.
func NewLNDBackend(cfg LNDConfig, logger *logger.Logger) (*LNDBackend, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS cert: %w", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read node macaroon: %w", err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node macaroon: %w", err)
	}

	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("failed to create macaroon credential: %w", err)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	}

	conn, err := grpc.Dial(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial LND: %w", err)
	}

	logger.Infow("Connected to LND node", "host", cfg.Host)

	return &LNDBackend{
		logger:   logger,
		lnClient: lnrpc.NewLightningClient(conn),
		conn:     conn,
	}, nil
}

// Close closes the underlying connection.
func (l *LNDBackend) Close() error {
	return l.conn.Close()
}

// CreateInvoice registers a new invoice on the node.
func (l *LNDBackend) CreateInvoice(ctx context.Context, amountSats int64, memo string) (*models.Invoice, error) {
	if amountSats <= 0 {
		return nil, models.ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := l.lnClient.AddInvoice(ctx, &lnrpc.Invoice{
		Value:  amountSats,
		Memo:   memo,
		Expiry: invoiceExpirySeconds,
	})
	if err != nil {
		return nil, mapRPCError(err)
	}

	invoice := &models.Invoice{
		PaymentHash:    hex.EncodeToString(resp.RHash),
		PaymentRequest: resp.PaymentRequest,
		AmountSats:     amountSats,
	}
	l.logger.Debugw("Invoice created", "payment_hash", invoice.PaymentHash, "amount_sats", amountSats)

	return invoice, nil
}

// CheckSettlement looks up the invoice state on the node.
func (l *LNDBackend) CheckSettlement(ctx context.Context, paymentHash string) (*models.SettlementStatus, error) {
	hashBytes, err := hex.DecodeString(paymentHash)
	if err != nil {
		return nil, fmt.Errorf("invalid payment hash: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	invoice, err := l.lnClient.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: hashBytes})
	if err != nil {
		return nil, mapRPCError(err)
	}

	settlement := &models.SettlementStatus{
		Settled: invoice.State == lnrpc.Invoice_SETTLED,
	}
	if settlement.Settled {
		settlement.SettledAt = time.Unix(invoice.SettleDate, 0)
	}

	return settlement, nil
}

// mapRPCError translates gRPC failures into the backend error taxonomy.
func mapRPCError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return models.ErrInvoiceNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	default:
		return fmt.Errorf("lnd call failed: %w", err)
	}
}
