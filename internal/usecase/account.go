package usecase

import (
	"context"
	"fmt"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
)

type AccountSummary struct {
	Account      *models.Account `json:"account"`
	ActiveAssets int             `json:"active_assets"`
	Tradable     int             `json:"tradable"`
}

type AccountUseCase struct {
	broker domrepo.Broker
}

func NewAccountUseCase(broker domrepo.Broker) *AccountUseCase {
	return &AccountUseCase{broker: broker}
}

func (uc *AccountUseCase) Summary(ctx context.Context) (*AccountSummary, error) {
	acct, err := uc.broker.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	assets, err := uc.broker.ActiveAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	out := &AccountSummary{Account: acct, ActiveAssets: len(assets)}
	for _, a := range assets {
		if a.Tradable {
			out.Tradable++
		}
	}
	return out, nil
}
