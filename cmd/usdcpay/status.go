package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitwit/usdcpay"
	"github.com/vitwit/usdcpay/utils"
)

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show wallet connection, network and token balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()

			s.client.Refresh(cmd.Context())
			ws := s.client.WalletStatus()

			if asJSON {
				data, err := utils.NormalizeJSON(ws)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printWalletStatus(cmd.OutOrStdout(), ws)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func printWalletStatus(w io.Writer, ws usdcpay.WalletStatus) {
	fmt.Fprintln(w, "Wallet")
	fmt.Fprintln(w, strings.Repeat("=", 40))

	if !ws.Connected {
		fmt.Fprintln(w, "  Status:   NOT CONNECTED")
		fmt.Fprintf(w, "  Hint:     %s\n", ws.Hint)
		return
	}

	fmt.Fprintln(w, "  Status:   CONNECTED")
	fmt.Fprintf(w, "  Address:  %s\n", ws.Address)
	fmt.Fprintf(w, "  Network:  %s (chain %s)\n", ws.Network, valueOrDefault(ws.ChainID, "unknown"))
	fmt.Fprintf(w, "  Balance:  %s %s\n", valueOrDefault(ws.Balance, "unknown"), ws.TokenSymbol)
	if ws.Hint != "" {
		fmt.Fprintf(w, "  Hint:     %s\n", ws.Hint)
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
