package ports

import (
	"context"

	"freight-tracker/internal/features/addresses/domain"
)

// AddressLookup resolves a normalized 8-digit CEP to an address. A nil
// address with a nil error means the CEP does not exist.
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*domain.Address, error)
}
