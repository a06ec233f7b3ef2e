// Package token implements a minimal fungible asset ledger with ERC20
// semantics (balances, allowances, owner-restricted minting).
package token

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotTokenOwner         = errors.New("caller is not the token owner")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type Token struct {
	address common.Address
	store   *Store
	logger  *zap.Logger
}

// Deploy registers a token at address in the store. When the token already
// exists its state is kept and owner is ignored.
func Deploy(store *Store, address common.Address, name string, symbol string, owner common.Address, l *zap.Logger) (*Token, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	_, exists, err := store.getAddress(key(prefixOwner, address))
	if err != nil {
		return nil, err
	}
	if !exists {
		b := newBatch()
		b.put(key(prefixOwner, address), owner.Bytes())
		b.put(append(key(prefixMeta, address), 'n'), []byte(name))
		b.put(append(key(prefixMeta, address), 's'), []byte(symbol))
		if err := store.commit(b); err != nil {
			return nil, pkgErrors.Wrap(err, "failed to deploy token")
		}
		l.Sugar().Infow("Deployed token",
			zap.String("address", address.Hex()),
			zap.String("symbol", symbol),
			zap.String("owner", owner.Hex()),
		)
	}
	return &Token{address: address, store: store, logger: l}, nil
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) Name() (string, error) {
	return t.store.getString(append(key(prefixMeta, t.address), 'n'))
}

func (t *Token) Symbol() (string, error) {
	return t.store.getString(append(key(prefixMeta, t.address), 's'))
}

func (t *Token) Owner(ctx context.Context) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	owner, _, err := t.store.getAddress(key(prefixOwner, t.address))
	return owner, err
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.getBig(key(prefixBalance, t.address, account))
}

func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.getBig(key(prefixSupply, t.address))
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.getBig(key(prefixAllowance, t.address, owner, spender))
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// Approve sets the amount spender may move out of owner's balance. A zero
// amount revokes the allowance.
func (t *Token) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	b := newBatch()
	b.putBig(key(prefixAllowance, t.address, owner, spender), amount)
	return t.store.commit(b)
}

// Mint creates amount new tokens for to. Only the token owner may mint.
func (t *Token) Mint(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	owner, _, err := t.store.getAddress(key(prefixOwner, t.address))
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotTokenOwner
	}

	balance, err := t.store.getBig(key(prefixBalance, t.address, to))
	if err != nil {
		return err
	}
	supply, err := t.store.getBig(key(prefixSupply, t.address))
	if err != nil {
		return err
	}

	b := newBatch()
	b.putBig(key(prefixBalance, t.address, to), balance.Add(balance, amount))
	b.putBig(key(prefixSupply, t.address), supply.Add(supply, amount))
	if err := t.store.commit(b); err != nil {
		return pkgErrors.Wrap(err, "failed to mint")
	}
	t.logger.Sugar().Debugw("Minted tokens",
		zap.String("token", t.address.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
	)
	return nil
}

// Transfer moves amount from the from account to the to account.
func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	b := newBatch()
	if err := t.move(b, from, to, amount); err != nil {
		return err
	}
	return t.store.commit(b)
}

// TransferFrom moves amount from the from account to the to account on
// behalf of spender, consuming spender's allowance.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	allowanceKey := key(prefixAllowance, t.address, from, spender)
	allowance, err := t.store.getBig(allowanceKey)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}

	b := newBatch()
	if err := t.move(b, from, to, amount); err != nil {
		return err
	}
	b.putBig(allowanceKey, allowance.Sub(allowance, amount))
	return t.store.commit(b)
}

// move stages a balance transfer. Callers hold the store lock.
func (t *Token) move(b *batch, from, to common.Address, amount *big.Int) error {
	fromBalance, err := t.store.getBig(key(prefixBalance, t.address, from))
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := t.store.getBig(key(prefixBalance, t.address, to))
	if err != nil {
		return err
	}
	b.putBig(key(prefixBalance, t.address, from), fromBalance.Sub(fromBalance, amount))
	b.putBig(key(prefixBalance, t.address, to), toBalance.Add(toBalance, amount))
	return nil
}

// TransferOwnership hands the minting right to newOwner.
func (t *Token) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	owner, _, err := t.store.getAddress(key(prefixOwner, t.address))
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotTokenOwner
	}
	b := newBatch()
	b.put(key(prefixOwner, t.address), newOwner.Bytes())
	if err := t.store.commit(b); err != nil {
		return err
	}
	t.logger.Sugar().Infow("Transferred token ownership",
		zap.String("token", t.address.Hex()),
		zap.String("newOwner", newOwner.Hex()),
	)
	return nil
}
