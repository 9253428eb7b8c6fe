package services

import (
	"context"
	"errors"

	"payment-service/errs"
	"payment-service/models"
	"payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletService is the single write path for merchant balances.
type WalletService interface {
	GetWallet(ctx context.Context, restaurantID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	// Credit applies an EARN to the merchant wallet. A duplicate credit
	// for the same order is an acknowledged no-op; credited reports
	// whether this call changed the balance.
	Credit(ctx context.Context, restaurantID, orderID uuid.UUID, amount int64, description string) (credited bool, err error)
	RequestWithdraw(ctx context.Context, restaurantID uuid.UUID, amount int64, bankInfo models.BankInfo, note string) (*models.PayoutRequest, error)
	ListPayouts(ctx context.Context, restaurantID *uuid.UUID, status models.PayoutStatus) ([]models.PayoutRequest, error)
	ApprovePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	RejectPayout(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error)
}

type walletService struct {
	repo        repository.WalletRepository
	minWithdraw int64
	logger      *zap.Logger
}

func NewWalletService(repo repository.WalletRepository, minWithdraw int64, logger *zap.Logger) WalletService {
	return &walletService{repo: repo, minWithdraw: minWithdraw, logger: logger}
}

func (s *walletService) GetWallet(ctx context.Context, restaurantID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.GetWalletByRestaurant(ctx, restaurantID)
	if errors.Is(err, repository.ErrWalletNotFound) {
		return nil, errs.ErrNotFound
	}
	return wallet, err
}

func (s *walletService) ListTransactions(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	wallet, err := s.GetWallet(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, wallet.ID, limit)
}

func (s *walletService) Credit(ctx context.Context, restaurantID, orderID uuid.UUID, amount int64, description string) (bool, error) {
	if amount <= 0 {
		return false, errs.ErrBadRequest
	}
	err := s.repo.CreditEarning(ctx, restaurantID, orderID, amount, description)
	if errors.Is(err, repository.ErrDuplicateEarn) {
		s.logger.Info("Duplicate credit skipped",
			zap.String("order_id", orderID.String()),
			zap.String("restaurant_id", restaurantID.String()),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("Wallet credited",
		zap.String("order_id", orderID.String()),
		zap.String("restaurant_id", restaurantID.String()),
		zap.Int64("amount", amount),
	)
	return true, nil
}

func (s *walletService) RequestWithdraw(ctx context.Context, restaurantID uuid.UUID, amount int64, bankInfo models.BankInfo, note string) (*models.PayoutRequest, error) {
	if amount < s.minWithdraw {
		return nil, errs.ErrBelowMinimum
	}
	payout, err := s.repo.CreatePayout(ctx, restaurantID, amount, bankInfo, note)
	switch {
	case errors.Is(err, repository.ErrWalletNotFound):
		return nil, errs.ErrNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return nil, errs.ErrInsufficientBalance
	case err != nil:
		return nil, err
	}
	s.logger.Info("Payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("restaurant_id", restaurantID.String()),
		zap.Int64("amount", amount),
	)
	return payout, nil
}

func (s *walletService) ListPayouts(ctx context.Context, restaurantID *uuid.UUID, status models.PayoutStatus) ([]models.PayoutRequest, error) {
	var walletID *uuid.UUID
	if restaurantID != nil {
		wallet, err := s.GetWallet(ctx, *restaurantID)
		if err != nil {
			return nil, err
		}
		walletID = &wallet.ID
	}
	return s.repo.ListPayouts(ctx, walletID, status)
}

func (s *walletService) ApprovePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	payout, err := s.repo.ApprovePayout(ctx, payoutID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errs.ErrNotFound
	case errors.Is(err, repository.ErrPayoutNotPending):
		return nil, errs.ErrPayoutNotPending
	case errors.Is(err, repository.ErrInsufficientBalance):
		return nil, errs.ErrInsufficientBalance
	case err != nil:
		return nil, err
	}
	s.logger.Info("Payout approved",
		zap.String("payout_id", payout.ID.String()),
		zap.Int64("amount", payout.Amount),
	)
	return payout, nil
}

func (s *walletService) RejectPayout(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	payout, err := s.repo.RejectPayout(ctx, payoutID, reason)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errs.ErrNotFound
	case errors.Is(err, repository.ErrPayoutNotPending):
		return nil, errs.ErrPayoutNotPending
	case err != nil:
		return nil, err
	}
	s.logger.Info("Payout rejected",
		zap.String("payout_id", payout.ID.String()),
		zap.String("reason", reason),
	)
	return payout, nil
}
