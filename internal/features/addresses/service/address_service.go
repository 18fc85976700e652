package service

import (
	"context"

	"freight-tracker/internal/features/addresses/domain"
	"freight-tracker/internal/features/addresses/ports"
)

// AddressService normalizes postal codes and resolves them through the
// configured lookup provider.
type AddressService struct {
	lookup ports.AddressLookup
}

// NewAddressService creates a new AddressService.
func NewAddressService(lookup ports.AddressLookup) *AddressService {
	return &AddressService{lookup: lookup}
}

// Resolve validates the raw CEP and returns the matching address, or
// (nil, nil) when the code is well formed but does not exist.
func (s *AddressService) Resolve(ctx context.Context, rawCEP string) (*domain.Address, error) {
	cep, err := domain.NormalizeCEP(rawCEP)
	if err != nil {
		return nil, err
	}
	return s.lookup.Lookup(ctx, cep)
}
