package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
)

// Balance is the aggregated holding of one wallet for one asset.
type Balance struct {
	Wallet     string
	Mint       string
	Raw        *big.Int
	Decimals   int
	HasBalance bool
	Native     bool
}

// UIAmount renders the raw amount scaled by its decimals.
func (b *Balance) UIAmount() string {
	return decimal.NewFromBigInt(b.Raw, -int32(b.Decimals)).String()
}

// BalanceService sums a wallet's holdings across all matching token
// accounts. A wallet may own several accounts for the same mint.
type BalanceService struct {
	chain *chain.Client
}

func NewBalanceService(c *chain.Client) *BalanceService {
	return &BalanceService{chain: c}
}

// GetBalance aggregates the wallet's balance for mint. An empty mint or
// the wrapped-SOL mint queries the native balance. Zero matching token
// accounts is a valid result, not an error.
func (s *BalanceService) GetBalance(ctx context.Context, wallet, mint string) (*Balance, error) {
	if wallet == "" {
		return nil, fmt.Errorf("wallet address is required")
	}

	if mint == "" || strings.EqualFold(mint, model.NativeMint) {
		return s.nativeBalance(ctx, wallet)
	}

	accounts, err := s.chain.TokenAccountsByOwner(ctx, wallet, model.TokenProgramID)
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	decimals := 0
	matched := 0
	for _, acc := range accounts {
		if !strings.EqualFold(acc.Mint, mint) {
			continue
		}
		amount, ok := new(big.Int).SetString(acc.Amount, 10)
		if !ok {
			logger.Warn("unparseable token amount, skipping account",
				"wallet", wallet, "mint", acc.Mint, "amount", acc.Amount)
			continue
		}
		if matched > 0 && acc.Decimals != decimals {
			// Accounts for one mint should agree on decimals; the last
			// one iterated wins, but flag it for investigation.
			logger.Warn("decimal mismatch across token accounts",
				"wallet", wallet, "mint", mint, "have", decimals, "got", acc.Decimals)
		}
		total.Add(total, amount)
		decimals = acc.Decimals
		matched++
	}

	return &Balance{
		Wallet:     wallet,
		Mint:       mint,
		Raw:        total,
		Decimals:   decimals,
		HasBalance: matched > 0 && total.Sign() > 0,
	}, nil
}

func (s *BalanceService) nativeBalance(ctx context.Context, wallet string) (*Balance, error) {
	lamports, err := s.chain.NativeBalance(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Wallet:     wallet,
		Mint:       model.NativeMint,
		Raw:        new(big.Int).SetUint64(lamports),
		Decimals:   model.NativeDecimals,
		HasBalance: lamports > 0,
		Native:     true,
	}, nil
}
