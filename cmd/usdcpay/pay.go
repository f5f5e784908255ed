package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitwit/usdcpay"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/lifecycle"
	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

func payCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "pay [invoice-id]",
		Short: "Transfer the invoice amount to the vendor and wait for confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			s, err := openSession(cmd.Context(), func(cfg *types.Config) []usdcpay.Option {
				approver := promptApprover(cmd.InOrStdin(), out, cfg.Chain())
				if yes {
					approver = clients.AutoApprove
				}
				return []usdcpay.Option{
					usdcpay.WithApprover(approver),
					usdcpay.WithSink(progressSink(out, cmd.ErrOrStderr())),
				}
			})
			if err != nil {
				return err
			}
			defer s.close()

			return pay(cmd.Context(), out, s.client, args[0])
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func pay(ctx context.Context, out io.Writer, client *usdcpay.Client, invoiceID string) error {
	client.Refresh(ctx)

	decision, err := client.PayInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("cannot pay %s: %s", invoiceID, decision.Reason.Message())
	}

	state, err := client.Wait(ctx)
	if err != nil {
		return err
	}

	switch state.Phase {
	case types.PhaseConfirmed:
		view, _ := client.ReceiptView()
		printReceipt(out, view)
		return nil
	case types.PhaseError:
		return types.NewPaymentError(state.Code, state.Message, nil)
	default:
		return fmt.Errorf("payment ended in %s", state)
	}
}

// promptApprover asks on in before the wallet signs.
func promptApprover(in io.Reader, out io.Writer, chain types.ChainConfig) clients.Approver {
	reader := bufio.NewReader(in)
	return func(_ context.Context, req types.PaymentRequest) (bool, error) {
		fmt.Fprintf(out, "Send %s %s to %s on %s",
			utils.FormatMinorUnits(req.Amount, chain.Decimals), chain.TokenSymbol, req.Recipient.Hex(), chain.Name)
		if req.InvoiceReference != "" {
			fmt.Fprintf(out, " for %s", req.InvoiceReference)
		}
		fmt.Fprint(out, "? [y/N] ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func progressSink(out, errOut io.Writer) lifecycle.Sink {
	return lifecycle.Sink{
		OnSubmitted: func(hash string) {
			fmt.Fprintf(out, "Submitted %s, waiting for confirmation...\n", hash)
		},
		OnError: func(pe *types.PaymentError) {
			fmt.Fprintf(errOut, "Payment failed: %s\n", pe.Message)
			if pe.Retryable {
				fmt.Fprintln(errOut, "You can retry the payment.")
			}
		},
	}
}

func printReceipt(w io.Writer, v usdcpay.ReceiptView) {
	fmt.Fprintln(w, "Payment confirmed")
	fmt.Fprintf(w, "  Amount:    %s %s\n", v.Amount, v.TokenSymbol)
	fmt.Fprintf(w, "  Recipient: %s\n", v.Recipient)
	if v.InvoiceRef != "" {
		fmt.Fprintf(w, "  Invoice:   %s\n", v.InvoiceRef)
	}
	fmt.Fprintf(w, "  Time:      %s\n", v.ConfirmedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  Network:   %s\n", v.Network)
	fmt.Fprintf(w, "  Tx:        %s\n", v.TxHash)
	fmt.Fprintf(w, "  Explorer:  %s\n", v.ExplorerURL)
}
