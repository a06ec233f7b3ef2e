package rpcServer

import (
	"net/http"

	"github.com/Layr-Labs/tokenfarm/internal/version"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
)

type StakerResponse struct {
	Address          string `json:"address"`
	Slot             uint64 `json:"slot"`
	StakedAmount     string `json:"stakedAmount"`
	PendingReward    string `json:"pendingReward"`
	LastAccrualPoint uint64 `json:"lastAccrualPoint"`
}

func stakerRecordToResponse(r *ledger.StakerRecord) *StakerResponse {
	return &StakerResponse{
		Address:          utils.NormalizeAddress(r.Address),
		Slot:             r.Slot,
		StakedAmount:     amountString(r.StakedAmount),
		PendingReward:    amountString(r.PendingReward),
		LastAccrualPoint: r.LastAccrualPoint,
	}
}

type DepositRequest struct {
	Amount string `json:"amount"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type ClaimResponse struct {
	Net string `json:"net"`
	Fee string `json:"fee"`
}

type ListStakersResponse struct {
	Stakers []string `json:"stakers"`
}

type TotalStakingBalanceResponse struct {
	TotalStakingBalance string `json:"totalStakingBalance"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (rpc *RpcServer) handleHealth(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, &HealthResponse{
		Status:  "ok",
		Version: version.GetVersion(),
		Commit:  version.GetCommit(),
	})
}

func (rpc *RpcServer) handleDeposit(w http.ResponseWriter, r *http.Request) error {
	user, err := pathAddress(r, "address")
	if err != nil {
		return err
	}
	var req DepositRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	amount, err := parseAmountField("amount", req.Amount)
	if err != nil {
		return err
	}
	if err := rpc.ledger.Deposit(r.Context(), user, amount); err != nil {
		return err
	}
	record, err := rpc.ledger.GetUserInfo(r.Context(), user)
	if err != nil {
		return err
	}
	return WriteJSON(w, stakerRecordToResponse(record))
}

func (rpc *RpcServer) handleWithdraw(w http.ResponseWriter, r *http.Request) error {
	user, err := pathAddress(r, "address")
	if err != nil {
		return err
	}
	amount, err := rpc.ledger.Withdraw(r.Context(), user)
	if err != nil {
		return err
	}
	return WriteJSON(w, &AmountResponse{Amount: amountString(amount)})
}

func (rpc *RpcServer) handleClaim(w http.ResponseWriter, r *http.Request) error {
	user, err := pathAddress(r, "address")
	if err != nil {
		return err
	}
	receipt, err := rpc.ledger.ClaimRewards(r.Context(), user)
	if err != nil {
		return err
	}
	return WriteJSON(w, &ClaimResponse{Net: amountString(receipt.Net), Fee: amountString(receipt.Fee)})
}

func (rpc *RpcServer) handleGetStaker(w http.ResponseWriter, r *http.Request) error {
	user, err := pathAddress(r, "address")
	if err != nil {
		return err
	}
	record, err := rpc.ledger.GetUserInfo(r.Context(), user)
	if err != nil {
		return err
	}
	return WriteJSON(w, stakerRecordToResponse(record))
}

func (rpc *RpcServer) handleListStakers(w http.ResponseWriter, r *http.Request) error {
	stakers, err := rpc.ledger.GetAllStakers(r.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, &ListStakersResponse{
		Stakers: utils.Map(stakers, func(a common.Address, i uint64) string {
			return utils.NormalizeAddress(a)
		}),
	})
}

func (rpc *RpcServer) handleTotalStakingBalance(w http.ResponseWriter, r *http.Request) error {
	total, err := rpc.ledger.TotalStakingBalance(r.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, &TotalStakingBalanceResponse{TotalStakingBalance: amountString(total)})
}
