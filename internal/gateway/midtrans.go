package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/internal/model"
	apperrors "github.com/medibook/booking-api/pkg/errors"
)

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

// midtransGateway implements Gateway on Midtrans: Snap for redirect
// payments, Core API QRIS for QR payments, CheckTransaction for status.
type midtransGateway struct {
	snap   snap.Client
	core   coreapi.Client
	logger *zerolog.Logger
}

func NewMidtransGateway(cfg MidtransConfig, logger *zerolog.Logger) Gateway {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	g := &midtransGateway{logger: logger}
	g.snap.New(cfg.ServerKey, env)
	g.core.New(cfg.ServerKey, env)
	return g
}

func (g *midtransGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	switch req.Channel {
	case model.PaymentChannelRedirect:
		return g.chargeSnap(ctx, req)
	case model.PaymentChannelQR:
		return g.chargeQRIS(ctx, req)
	default:
		return nil, apperrors.NewGateway(fmt.Sprintf("unsupported payment channel %q", req.Channel), nil)
	}
}

func (g *midtransGateway) chargeSnap(_ context.Context, req *ChargeRequest) (*ChargeResult, error) {
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.AmountIDR,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.OrderID,
				Name:  req.ItemName,
				Price: req.AmountIDR,
				Qty:   1,
			},
		},
	}

	resp, err := g.snap.CreateTransaction(snapReq)
	if err != nil {
		return nil, g.mapError("charge", err)
	}

	return &ChargeResult{PayURL: resp.RedirectURL}, nil
}

func (g *midtransGateway) chargeQRIS(_ context.Context, req *ChargeRequest) (*ChargeResult, error) {
	chargeReq := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeQris,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.AmountIDR,
		},
		CustomerDetails: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
	}

	resp, err := g.core.ChargeTransaction(chargeReq)
	if err != nil {
		return nil, g.mapError("charge", err)
	}

	for _, action := range resp.Actions {
		if action.Name == "generate-qr-code" {
			return &ChargeResult{QRCodeURL: action.URL}, nil
		}
	}
	return nil, apperrors.NewGateway("gateway response carried no QR code", nil)
}

func (g *midtransGateway) Status(_ context.Context, orderID string) (model.PaymentStatus, error) {
	resp, err := g.core.CheckTransaction(orderID)
	if err != nil {
		return "", g.mapError("status", err)
	}
	return mapTransactionStatus(resp.TransactionStatus, resp.FraudStatus), nil
}

// mapTransactionStatus folds Midtrans transaction/fraud states into the
// intent lifecycle.
func mapTransactionStatus(transactionStatus, fraudStatus string) model.PaymentStatus {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return model.PaymentStatusCompleted
		}
		return model.PaymentStatusPending
	case "settlement":
		return model.PaymentStatusCompleted
	case "deny", "cancel", "failure":
		return model.PaymentStatusFailed
	case "expire":
		return model.PaymentStatusExpired
	case "pending":
		return model.PaymentStatusPending
	default:
		return model.PaymentStatusPending
	}
}

// mapError separates gateway rejections, which are terminal for the
// attempt, from transport faults, which are retryable.
func (g *midtransGateway) mapError(operation string, err *midtrans.Error) error {
	if err == nil {
		return nil
	}

	g.logger.Warn().
		Str("operation", operation).
		Int("status_code", err.StatusCode).
		Msg("midtrans call failed")

	if err.StatusCode >= http.StatusBadRequest && err.StatusCode < http.StatusInternalServerError {
		return apperrors.NewGateway(err.GetMessage(), err)
	}
	return fmt.Errorf("gateway %s failed: %w", operation, err)
}
