package rpcServer

import (
	"fmt"
	"net/http"

	"github.com/Layr-Labs/tokenfarm/pkg/token"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
)

// Devnet helpers for funding accounts against the local token ledgers.

type TokenBalanceResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type MintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (rpc *RpcServer) tokenFromPath(r *http.Request) (*token.Token, error) {
	addr, err := pathAddress(r, "token")
	if err != nil {
		return nil, err
	}
	t, ok := rpc.tokens[addr]
	if !ok {
		return nil, HTTPError(fmt.Errorf("unknown token %s", addr.Hex()), http.StatusNotFound)
	}
	return t, nil
}

func (rpc *RpcServer) handleTokenBalance(w http.ResponseWriter, r *http.Request) error {
	t, err := rpc.tokenFromPath(r)
	if err != nil {
		return err
	}
	account, err := pathAddress(r, "address")
	if err != nil {
		return err
	}
	balance, err := t.BalanceOf(r.Context(), account)
	if err != nil {
		return err
	}
	return WriteJSON(w, &TokenBalanceResponse{
		Token:   utils.NormalizeAddress(t.Address()),
		Address: utils.NormalizeAddress(account),
		Balance: amountString(balance),
	})
}

func (rpc *RpcServer) handleTokenMint(w http.ResponseWriter, r *http.Request) error {
	t, err := rpc.tokenFromPath(r)
	if err != nil {
		return err
	}
	var req MintRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return err
	}
	to, err := parseAddressField("to", req.To)
	if err != nil {
		return err
	}
	amount, err := parseAmountField("amount", req.Amount)
	if err != nil {
		return err
	}
	if err := t.Mint(r.Context(), caller, to, amount); err != nil {
		return err
	}
	balance, err := t.BalanceOf(r.Context(), to)
	if err != nil {
		return err
	}
	return WriteJSON(w, &TokenBalanceResponse{
		Token:   utils.NormalizeAddress(t.Address()),
		Address: utils.NormalizeAddress(to),
		Balance: amountString(balance),
	})
}

func (rpc *RpcServer) handleTokenApprove(w http.ResponseWriter, r *http.Request) error {
	t, err := rpc.tokenFromPath(r)
	if err != nil {
		return err
	}
	var req ApproveRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	owner, err := parseAddressField("owner", req.Owner)
	if err != nil {
		return err
	}
	spender, err := parseAddressField("spender", req.Spender)
	if err != nil {
		return err
	}
	amount, err := parseAmountField("amount", req.Amount)
	if err != nil {
		return err
	}
	if err := t.Approve(r.Context(), owner, spender, amount); err != nil {
		return err
	}
	return WriteJSON(w, &AmountResponse{Amount: amount.String()})
}
