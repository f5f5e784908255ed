package main

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/usdcpay"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/invoices"
	"github.com/vitwit/usdcpay/types"
)

const vendorAddr = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"

var payer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliWallet struct {
	approve clients.Approver
	hash    string
}

func (w *cliWallet) ConnectionStatus(context.Context) (clients.ConnectionStatus, error) {
	return clients.ConnectionStatus{IsConnected: true, Account: &payer, ChainID: big.NewInt(84532)}, nil
}

func (w *cliWallet) SignAndBroadcast(ctx context.Context, req types.PaymentRequest) (string, error) {
	ok, err := w.approve(ctx, req)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", clients.ErrUserRejected
	}
	return w.hash, nil
}

type cliChain struct{}

func (cliChain) GetBalance(context.Context, common.Address, common.Address) (string, error) {
	return "1000", nil
}

func (cliChain) AwaitReceipt(_ context.Context, hash string) (<-chan types.Receipt, error) {
	ch := make(chan types.Receipt, 1)
	ch <- types.Receipt{TxHash: hash, Status: types.ReceiptSuccess}
	close(ch)
	return ch, nil
}

func newCLIClient(t *testing.T, answer string, out io.Writer) *usdcpay.Client {
	t.Helper()
	store, err := invoices.NewMemoryStore(types.InvoiceRecord{
		ID: "inv-001", Reference: "INV-2024-001", VendorName: "Acme", VendorAddress: vendorAddr, Amount: "100.00",
	})
	require.NoError(t, err)

	wallet := &cliWallet{
		approve: promptApprover(strings.NewReader(answer), out, types.BaseSepolia),
		hash:    "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060",
	}
	c, err := usdcpay.New(types.DefaultConfig(), wallet, cliChain{}, store,
		usdcpay.WithSink(progressSink(out, out)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPay_Confirmed(t *testing.T) {
	var out syncBuffer
	c := newCLIClient(t, "y\n", &out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pay(ctx, &out, c, "inv-001"))

	text := out.String()
	assert.Contains(t, text, "Send 100.000000 USDC to "+vendorAddr+" on Base Sepolia for INV-2024-001? [y/N]")
	assert.Contains(t, text, "Payment confirmed")
	assert.Contains(t, text, "https://sepolia.basescan.org/tx/0x5c504ed4")
}

func TestPay_Declined(t *testing.T) {
	var out syncBuffer
	c := newCLIClient(t, "n\n", &out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := pay(ctx, &out, c, "inv-001")
	require.Error(t, err)

	pe, ok := types.AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeSigningRejected, pe.Code)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "You can retry the payment.")
	}, time.Second, 5*time.Millisecond)
}

func TestPromptApprover(t *testing.T) {
	req, err := types.NewPaymentRequest(vendorAddr, big.NewInt(1_500000), "")
	require.NoError(t, err)

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"\n", false},
		{"no\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got, err := promptApprover(strings.NewReader(tt.input), &out, types.BaseSepolia)(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Send 1.500000 USDC")
	}
}

func TestPrintInvoice(t *testing.T) {
	rec := types.InvoiceRecord{
		ID: "inv-001", Reference: "INV-2024-001", VendorName: "Acme", VendorAddress: vendorAddr,
		Amount: "100.00", AmountUSD: "$100.00", DueDate: "2024-12-15", Status: "pending",
	}

	var buf bytes.Buffer
	printInvoice(&buf, rec, types.BaseSepolia, time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC))
	assert.Contains(t, buf.String(), "Invoice INV-2024-001")
	assert.Contains(t, buf.String(), "2024-12-15 (overdue)")
	assert.Contains(t, buf.String(), "100.00 USDC ($100.00)")
	assert.Contains(t, buf.String(), "0x384A...7848")

	buf.Reset()
	printInvoiceTable(&buf, []types.InvoiceRecord{rec})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "inv-001")
}

func TestPrintWalletStatus(t *testing.T) {
	var buf bytes.Buffer
	printWalletStatus(&buf, usdcpay.WalletStatus{Hint: "connect your wallet to pay this invoice"})
	assert.Contains(t, buf.String(), "NOT CONNECTED")

	buf.Reset()
	printWalletStatus(&buf, usdcpay.WalletStatus{
		Connected: true, Address: payer.Hex(), ChainID: "84532", Balance: "12.00",
		TokenSymbol: "USDC", Network: "Base Sepolia",
	})
	assert.Contains(t, buf.String(), "12.00 USDC")
	assert.Contains(t, buf.String(), "Base Sepolia (chain 84532)")
}

func TestValueOrDefault(t *testing.T) {
	assert.Equal(t, "x", valueOrDefault("", "x"))
	assert.Equal(t, "y", valueOrDefault("y", "x"))
}
