/**
 * @description
 * This package implements the partner bank directory: the externally supplied
 * mapping from a normalized sort code to the connection metadata of the bank
 * that owns it. The directory is configuration, not computed state — it is
 * loaded once at startup, either from a JSON file or from the built-in default
 * table.
 *
 * Sort codes are compared in digits-only normalized form, so "60-00-01" and
 * "600001" resolve to the same entry.
 */

package banks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
)

var (
	ErrNoInternalBank        = errors.New("directory must contain exactly one internal bank")
	ErrDuplicateSortCode     = errors.New("duplicate sort code in bank directory")
	ErrDuplicateBankCode     = errors.New("duplicate bank code in bank directory")
	ErrMultipleInternalBanks = errors.New("directory must contain exactly one internal bank")
	ErrUnknownTransferMethod = errors.New("unknown transfer method in bank directory")
)

// NormalizeSortCode strips every non-digit character from a sort code, so
// human-formatted codes like "11-11-11" compare equal to "111111".
func NormalizeSortCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Directory resolves partner banks by normalized sort code or by bank code.
// It is immutable after construction and safe for concurrent use.
type Directory struct {
	banks      []domain.PartnerBank
	bySortCode map[string]domain.PartnerBank
	byCode     map[string]domain.PartnerBank
	internal   domain.PartnerBank
}

// NewDirectory validates the entries and builds the lookup indexes. Exactly
// one entry must be internal, sort codes must be unique after normalization,
// bank codes must be unique, and every transfer method must be a known one.
func NewDirectory(banks []domain.PartnerBank) (*Directory, error) {
	d := &Directory{
		banks:      make([]domain.PartnerBank, 0, len(banks)),
		bySortCode: make(map[string]domain.PartnerBank, len(banks)),
		byCode:     make(map[string]domain.PartnerBank, len(banks)),
	}
	internalSeen := false
	for _, bank := range banks {
		normalized := NormalizeSortCode(bank.SortCode)
		if normalized == "" {
			return nil, fmt.Errorf("bank %q has no usable sort code", bank.Code)
		}
		if bank.Code == "" {
			return nil, fmt.Errorf("bank with sort code %s has no bank code", bank.SortCode)
		}
		switch bank.TransferMethod {
		case domain.MethodInternal, domain.MethodQueryParams, domain.MethodDeposit, domain.MethodAuto:
		default:
			// Fail at load time rather than at transfer time.
			return nil, fmt.Errorf("%w: %q (bank %s)", ErrUnknownTransferMethod, bank.TransferMethod, bank.Code)
		}
		if _, exists := d.bySortCode[normalized]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSortCode, bank.SortCode)
		}
		if _, exists := d.byCode[bank.Code]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBankCode, bank.Code)
		}
		if bank.IsInternal {
			if internalSeen {
				return nil, ErrMultipleInternalBanks
			}
			internalSeen = true
			d.internal = bank
		}
		d.bySortCode[normalized] = bank
		d.byCode[bank.Code] = bank
		d.banks = append(d.banks, bank)
	}
	if !internalSeen {
		return nil, ErrNoInternalBank
	}
	return d, nil
}

// ListBanks returns every directory entry.
func (d *Directory) ListBanks() []domain.PartnerBank {
	out := make([]domain.PartnerBank, len(d.banks))
	copy(out, d.banks)
	return out
}

// Internal returns the entry for this bank itself.
func (d *Directory) Internal() domain.PartnerBank {
	return d.internal
}

// ResolveBySortCode looks up a bank by its normalized sort code.
func (d *Directory) ResolveBySortCode(normalized string) (domain.PartnerBank, bool) {
	bank, ok := d.bySortCode[normalized]
	return bank, ok
}

// ResolveByCode looks up a bank by its bank code (e.g. "urr034").
func (d *Directory) ResolveByCode(code string) (domain.PartnerBank, bool) {
	bank, ok := d.byCode[code]
	return bank, ok
}

// IsInternal reports whether a normalized sort code routes to the local
// ledger. A missing sort code is treated as internal: callers omitting the
// destination bank mean "this bank".
func (d *Directory) IsInternal(normalized string) bool {
	return normalized == "" || normalized == NormalizeSortCode(d.internal.SortCode)
}

// DefaultDirectory returns the built-in partner bank table.
func DefaultDirectory() *Directory {
	d, err := NewDirectory([]domain.PartnerBank{
		{
			Code:           "unk029",
			Name:           "UNK Bank (Internal)",
			URL:            "/api",
			SortCode:       "11-11-11",
			IsInternal:     true,
			TransferMethod: domain.MethodInternal,
		},
		{
			Code:           "urr034",
			Name:           "Purple Bank",
			URL:            "https://urr034.dev.openconsultinguk.com/api",
			SortCode:       "60-00-01",
			TransferMethod: domain.MethodQueryParams,
		},
		{
			Code:           "ubf041",
			Name:           "Bartley Bank",
			URL:            "https://ubf041.dev.openconsultinguk.com/api",
			SortCode:       "20-40-41",
			TransferMethod: domain.MethodDeposit,
		},
		{
			Code:           "uia037",
			Name:           "Secure Bank",
			URL:            "https://uia037.dev.openconsultinguk.com/api",
			SortCode:       "11-22-33",
			TransferMethod: domain.MethodDeposit,
		},
		{
			Code:           "uss016",
			Name:           "AppyPay",
			URL:            "https://uss016.dev.openconsultinguk.com/api",
			SortCode:       "33-44-55",
			TransferMethod: domain.MethodDeposit,
		},
	})
	if err != nil {
		// The built-in table is static; a validation failure here is a
		// programming error.
		panic(err)
	}
	return d
}

// LoadDirectory reads a JSON array of PartnerBank entries from a file.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank directory: %w", err)
	}
	var banks []domain.PartnerBank
	if err := json.Unmarshal(data, &banks); err != nil {
		return nil, fmt.Errorf("parse bank directory: %w", err)
	}
	return NewDirectory(banks)
}
