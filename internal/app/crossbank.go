/**
 * @description
 * This file contains the cross-bank transfer orchestrator. A transfer is
 * routed by the destination sort code: destinations at this bank are settled
 * as a single atomic database transaction, while destinations at a partner
 * bank are settled as a local debit followed by a remote deposit call, with a
 * compensating refund when the remote leg fails.
 *
 * The remote leg is never attempted before the local debit succeeds, so the
 * sender's funds are locked for the duration of the partner call.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: Transfer reference generation.
 * - internal/banks, internal/domain, internal/store: Directory, models, data access.
 * - pkg/partnerclient: Remote deposit delivery.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/banks"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/store"
	"github.com/unk029-openconsultinguk/unk029-bank-app/pkg/partnerclient"
)

// CrossBankTransfer routes a transfer to its destination bank and settles it
// either internally or against a partner bank. The destination is named by
// bank code when provided, otherwise by sort code.
func (s *Service) CrossBankTransfer(ctx context.Context, callerAccountNo int64, req domain.CrossBankTransferRequest) (*domain.CrossBankTransferResult, error) {
	if callerAccountNo != req.FromAccountNo {
		return nil, ErrUnauthorized
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if req.ToBankCode != "" {
		bank, ok := s.directory.ResolveByCode(req.ToBankCode)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBankCode, req.ToBankCode)
		}
		if bank.IsInternal {
			return s.transferInternal(ctx, req)
		}
		return s.transferExternal(ctx, req, bank)
	}

	sortCode := banks.NormalizeSortCode(req.ToSortCode)
	if s.directory.IsInternal(sortCode) {
		return s.transferInternal(ctx, req)
	}

	bank, ok := s.directory.ResolveBySortCode(sortCode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSortCode, req.ToSortCode)
	}
	return s.transferExternal(ctx, req, bank)
}

// transferInternal settles a transfer whose destination is held at this bank.
func (s *Service) transferInternal(ctx context.Context, req domain.CrossBankTransferRequest) (*domain.CrossBankTransferResult, error) {
	result, err := s.InternalTransfer(ctx, req.FromAccountNo, domain.TransferRequest{
		FromAccountNo: req.FromAccountNo,
		ToAccountNo:   req.ToAccountNo,
		Amount:        req.Amount,
	})
	if err != nil {
		return nil, err
	}

	internal := s.directory.Internal()
	return &domain.CrossBankTransferResult{
		Reference:           uuid.New().String(),
		Status:              domain.StatusSuccess,
		Internal:            true,
		Amount:              req.Amount,
		FromAccountNo:       req.FromAccountNo,
		FromNewBalance:      result.FromNewBalance,
		ToAccountNo:         req.ToAccountNo,
		DestinationBankCode: internal.Code,
		DestinationBankName: internal.Name,
		Message:             fmt.Sprintf("Transferred £%s to %s (account %d)", req.Amount.StringFixed(2), result.ToName, req.ToAccountNo),
	}, nil
}

// transferExternal settles a transfer against a partner bank: debit locally,
// deposit remotely, refund locally if the remote leg fails.
func (s *Service) transferExternal(ctx context.Context, req domain.CrossBankTransferRequest, bank domain.PartnerBank) (*domain.CrossBankTransferResult, error) {
	reference := uuid.New().String()
	// When the caller routed by bank code, the destination sort code comes
	// from the directory entry.
	if req.ToSortCode == "" {
		req.ToSortCode = bank.SortCode
	}
	log.Printf("level=info component=ledger_service msg=\"starting cross-bank transfer\" reference=%s from=%d to=%d bank=%s amount=%s",
		reference, req.FromAccountNo, req.ToAccountNo, bank.Code, req.Amount.String())

	// 1. Debit the sender to lock funds before the remote call.
	change, err := s.repo.Withdraw(ctx, req.FromAccountNo, req.Amount)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			s.recordTransaction(ctx, domain.TransactionRecord{
				AccountNo:   req.FromAccountNo,
				Type:        domain.TxTypeTransfer,
				Amount:      req.Amount,
				Description: fmt.Sprintf("Transfer to %s declined: insufficient funds", bank.Name),
				Direction:   domain.DirectionOut,
				Status:      domain.StatusFail,
			})
		}
		return nil, err
	}

	// 2. Deliver the deposit to the partner bank.
	err = s.partner.Deposit(ctx, bank, partnerclient.DepositRequest{
		AccountNo:     req.ToAccountNo,
		SortCode:      req.ToSortCode,
		AccountHolder: req.ToName,
		Amount:        req.Amount,
		Reference:     reference,
	})
	if err != nil {
		log.Printf("level=error component=ledger_service msg=\"remote deposit failed\" reference=%s bank=%s err=%v", reference, bank.Code, err)

		// 3. Compensate: return the debited funds to the sender.
		if _, refundErr := s.repo.Deposit(ctx, req.FromAccountNo, req.Amount); refundErr != nil {
			log.Printf("CRITICAL: Failed to refund account %d after remote deposit failure (reference %s): %v", req.FromAccountNo, reference, refundErr)
		} else {
			s.publishEvent(ctx, domain.TransferEventRefunded, s.transferEvent(reference, req, bank, domain.StatusFail, err.Error()))
		}

		s.recordTransaction(ctx, domain.TransactionRecord{
			AccountNo:        req.FromAccountNo,
			Type:             domain.TxTypeTransfer,
			Amount:           req.Amount,
			Description:      fmt.Sprintf("Transfer to %s failed: %v", bank.Name, err),
			RelatedAccountNo: &req.ToAccountNo,
			Direction:        domain.DirectionOut,
			Status:           domain.StatusFail,
		})
		s.publishEvent(ctx, domain.TransferEventFailed, s.transferEvent(reference, req, bank, domain.StatusFail, err.Error()))
		return nil, fmt.Errorf("transfer to %s failed: %w", bank.Name, err)
	}

	// 4. Record the settled transfer on the sender's side.
	description := fmt.Sprintf("Transfer to account %d at %s", req.ToAccountNo, bank.Name)
	if req.ToName != "" {
		description = fmt.Sprintf("Transfer to %s (account %d) at %s", req.ToName, req.ToAccountNo, bank.Name)
	}
	s.recordTransaction(ctx, domain.TransactionRecord{
		AccountNo:        req.FromAccountNo,
		Type:             domain.TxTypeTransfer,
		Amount:           req.Amount,
		Description:      description,
		RelatedAccountNo: &req.ToAccountNo,
		Direction:        domain.DirectionOut,
		Status:           domain.StatusSuccess,
	})
	s.publishEvent(ctx, domain.TransferEventCompleted, s.transferEvent(reference, req, bank, domain.StatusSuccess, ""))

	log.Printf("level=info component=ledger_service msg=\"cross-bank transfer settled\" reference=%s bank=%s", reference, bank.Code)
	return &domain.CrossBankTransferResult{
		Reference:           reference,
		Status:              domain.StatusSuccess,
		Internal:            false,
		Amount:              req.Amount,
		FromAccountNo:       req.FromAccountNo,
		FromNewBalance:      change.NewBalance,
		ToAccountNo:         req.ToAccountNo,
		DestinationBankCode: bank.Code,
		DestinationBankName: bank.Name,
		Message:             fmt.Sprintf("Transferred £%s to account %d at %s", req.Amount.StringFixed(2), req.ToAccountNo, bank.Name),
	}, nil
}

func (s *Service) transferEvent(reference string, req domain.CrossBankTransferRequest, bank domain.PartnerBank, status, reason string) domain.TransferEvent {
	return domain.TransferEvent{
		EventID:       uuid.New(),
		Reference:     reference,
		FromAccountNo: req.FromAccountNo,
		ToAccountNo:   req.ToAccountNo,
		BankCode:      bank.Code,
		SortCode:      req.ToSortCode,
		Amount:        req.Amount,
		Status:        status,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
}
