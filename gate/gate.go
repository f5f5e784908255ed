// Package gate decides whether a payment may be submitted given the latest
// wallet facts.
package gate

import (
	"math/big"

	"github.com/vitwit/usdcpay/types"
)

// Requirement is what a payment needs from the wallet: the network it must be
// on and the minimum token balance in minor units.
type Requirement struct {
	ChainID   *big.Int
	MinAmount *big.Int
}

// Evaluate returns the gate decision for facts. Checks run in a fixed order
// (wallet, network, balance) and the first failing check is the only reason
// reported. An absent balance blocks until a reading arrives.
func Evaluate(facts types.WalletFacts, req Requirement) types.GateDecision {
	if !facts.IsConnected {
		return types.Block(types.ReasonWalletDisconnected)
	}

	if facts.ActiveChainID == nil || req.ChainID == nil || facts.ActiveChainID.Cmp(req.ChainID) != 0 {
		return types.Block(types.ReasonWrongNetwork)
	}

	if facts.Balance == nil || req.MinAmount == nil || facts.Balance.Cmp(req.MinAmount) < 0 {
		return types.Block(types.ReasonInsufficientBalance)
	}

	return types.Allow()
}

// EvaluateConnection applies only the wallet and network checks. It backs
// views that require a connected wallet on the right chain but do not move
// funds.
func EvaluateConnection(facts types.WalletFacts, chainID *big.Int) types.GateDecision {
	d := Evaluate(facts, Requirement{ChainID: chainID, MinAmount: new(big.Int)})
	if d.Reason == types.ReasonInsufficientBalance {
		return types.Allow()
	}
	return d
}
