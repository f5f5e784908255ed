package usdcpay

import (
	"time"

	"github.com/vitwit/usdcpay/gate"
	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

// ReceiptView is what is shown once a payment is confirmed.
type ReceiptView struct {
	TxHash      string    `json:"txHash"`
	Amount      string    `json:"amount"`
	TokenSymbol string    `json:"tokenSymbol"`
	Recipient   string    `json:"recipient"`
	InvoiceRef  string    `json:"invoiceReference,omitempty"`
	ConfirmedAt time.Time `json:"confirmedAt"`
	Network     string    `json:"network"`
	ExplorerURL string    `json:"explorerUrl"`
}

// ReceiptView describes the confirmed transfer of the current attempt.
func (c *Client) ReceiptView() (ReceiptView, bool) {
	out, ok := c.Outcome()
	if !ok {
		return ReceiptView{}, false
	}
	return ReceiptView{
		TxHash:      out.TxHash,
		Amount:      utils.FormatDisplay(out.Request.Amount, c.chain.Decimals),
		TokenSymbol: c.chain.TokenSymbol,
		Recipient:   out.Request.Recipient.Hex(),
		InvoiceRef:  out.Request.InvoiceReference,
		ConfirmedAt: out.ConfirmedAt,
		Network:     c.chain.Name,
		ExplorerURL: c.chain.TxURL(out.TxHash),
	}, true
}

// WalletStatus summarizes the connected wallet.
type WalletStatus struct {
	Connected   bool   `json:"connected"`
	Address     string `json:"address,omitempty"`
	ShortAddr   string `json:"shortAddress,omitempty"`
	ChainID     string `json:"chainId,omitempty"`
	Balance     string `json:"balance,omitempty"`
	TokenSymbol string `json:"tokenSymbol"`
	Network     string `json:"network"`

	// Hint is set when the wallet is connected but not usable for payment.
	Hint string `json:"hint,omitempty"`
}

// WalletStatus renders the latest facts.
func (c *Client) WalletStatus() WalletStatus {
	f := c.feed.Current()
	ws := WalletStatus{
		Connected:   f.IsConnected,
		TokenSymbol: c.chain.TokenSymbol,
		Network:     c.chain.Name,
	}
	if f.Account != nil {
		ws.Address = f.Account.Hex()
		ws.ShortAddr = utils.ShortAddress(ws.Address)
	}
	if f.ActiveChainID != nil {
		ws.ChainID = f.ActiveChainID.String()
	}
	if f.Balance != nil {
		ws.Balance = utils.FormatDisplay(f.Balance, c.chain.Decimals)
	}

	if d := gate.EvaluateConnection(f, c.chain.ChainID); !d.Allowed {
		ws.Hint = d.Reason.Message()
	} else if f.Balance == nil {
		ws.Hint = types.ReasonInsufficientBalance.Message()
	}
	return ws
}
