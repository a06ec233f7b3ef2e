package rpcServer

import (
	"net/http"
	"strconv"

	"github.com/Layr-Labs/tokenfarm/pkg/distributionQueue"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type DistributeRequest struct {
	Caller string `json:"caller"`
	// Cycle defaults to the current cycle when omitted.
	Cycle *uint64 `json:"cycle,omitempty"`
}

type DistributeResponse struct {
	Cycle           uint64 `json:"cycle"`
	StakersRewarded uint64 `json:"stakersRewarded"`
	TotalApplied    string `json:"totalApplied"`
	Expected        string `json:"expected"`
	Dust            string `json:"dust"`
}

type TierResponse struct {
	TierKey uint64 `json:"tierKey"`
	Rate    string `json:"rate"`
}

type ListTiersResponse struct {
	Tiers []*TierResponse `json:"tiers"`
}

type UpdateTierRequest struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

type CallerRequest struct {
	Caller string `json:"caller"`
}

type FeeResponse struct {
	FeeRateBps uint64 `json:"feeRateBps"`
	FeeBalance string `json:"feeBalance"`
}

type UpgradeRequest struct {
	Caller     string `json:"caller"`
	FeeRateBps uint64 `json:"feeRateBps"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

func (rpc *RpcServer) handleDistribute(w http.ResponseWriter, r *http.Request) error {
	var req DistributeRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return err
	}
	data := distributionQueue.DistributionRequest{Caller: caller}
	if req.Cycle != nil {
		if *req.Cycle == 0 {
			return BadRequest(errors.New("cycle must be greater than zero"))
		}
		data.Cycle = *req.Cycle
	}

	res, err := rpc.queue.EnqueueAndWait(r.Context(), data)
	if err != nil {
		return err
	}
	if res.Error != nil {
		return res.Error
	}
	s := res.Summary
	return WriteJSON(w, &DistributeResponse{
		Cycle:           s.Cycle,
		StakersRewarded: s.StakersRewarded,
		TotalApplied:    amountString(s.TotalApplied),
		Expected:        s.Expected.String(),
		Dust:            s.Dust.String(),
	})
}

func (rpc *RpcServer) handleListTiers(w http.ResponseWriter, r *http.Request) error {
	tiers, err := rpc.ledger.Tiers(r.Context())
	if err != nil {
		return err
	}
	res := &ListTiersResponse{Tiers: make([]*TierResponse, 0, tiers.Len())}
	for pair := tiers.Oldest(); pair != nil; pair = pair.Next() {
		res.Tiers = append(res.Tiers, &TierResponse{TierKey: pair.Key, Rate: amountString(pair.Value)})
	}
	return WriteJSON(w, res)
}

func (rpc *RpcServer) handleUpdateTier(w http.ResponseWriter, r *http.Request) error {
	key, err := strconv.ParseUint(mux.Vars(r)["key"], 10, 64)
	if err != nil {
		return BadRequest(errors.Wrap(err, "key"))
	}
	var req UpdateTierRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return err
	}
	rate, err := parseAmountField("rate", req.Rate)
	if err != nil {
		return err
	}
	if err := rpc.ledger.UpdateRewardRange(r.Context(), caller, key, rate); err != nil {
		return err
	}
	return WriteJSON(w, &TierResponse{TierKey: key, Rate: rate.String()})
}

func (rpc *RpcServer) handleGetFee(w http.ResponseWriter, r *http.Request) error {
	fee, err := rpc.ledger.Fee(r.Context())
	if err != nil {
		return err
	}
	balance, err := rpc.ledger.FeeBalance(r.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, &FeeResponse{FeeRateBps: fee, FeeBalance: amountString(balance)})
}

func (rpc *RpcServer) handleWithdrawFee(w http.ResponseWriter, r *http.Request) error {
	var req CallerRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return err
	}
	amount, err := rpc.ledger.WithdrawFee(r.Context(), caller)
	if err != nil {
		return err
	}
	return WriteJSON(w, &AmountResponse{Amount: amountString(amount)})
}

func (rpc *RpcServer) handleUpgrade(w http.ResponseWriter, r *http.Request) error {
	var req UpgradeRequest
	if err := ParseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return err
	}
	if err := rpc.ledger.UpgradeSetFee(r.Context(), caller, req.FeeRateBps); err != nil {
		return err
	}
	v, err := rpc.ledger.Version(r.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, &VersionResponse{Version: v.String()})
}

func (rpc *RpcServer) handleGetVersion(w http.ResponseWriter, r *http.Request) error {
	v, err := rpc.ledger.Version(r.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, &VersionResponse{Version: v.String()})
}
