package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

func invoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Inspect invoices",
	}
	cmd.AddCommand(invoiceListCmd(), invoiceShowCmd())
	return cmd
}

func invoiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()

			list, err := s.client.ListInvoices(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No invoices.")
				return nil
			}
			printInvoiceTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func invoiceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one invoice and whether it can be paid now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()

			rec, err := s.client.Invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chain := s.client.Chain()
			printInvoice(cmd.OutOrStdout(), *rec, chain, time.Now())

			s.client.Refresh(cmd.Context())
			decision, err := s.client.InvoiceDecision(cmd.Context(), rec.ID)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  Payable:   no (%v)\n", err)
				return nil
			}
			if decision.Allowed {
				fmt.Fprintln(cmd.OutOrStdout(), "  Payable:   yes")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  Payable:   no, %s\n", decision.Reason.Message())
			}
			return nil
		},
	}
}

func printInvoiceTable(w io.Writer, list []types.InvoiceRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREFERENCE\tVENDOR\tAMOUNT\tDUE\tSTATUS")
	for _, rec := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			rec.ID, rec.Reference, rec.VendorName, rec.Amount, currency(rec), rec.DueDate, rec.Status)
	}
	tw.Flush()
}

func printInvoice(w io.Writer, rec types.InvoiceRecord, chain types.ChainConfig, now time.Time) {
	fmt.Fprintf(w, "Invoice %s\n", valueOrDefault(rec.Reference, rec.ID))
	fmt.Fprintf(w, "  Vendor:    %s\n", rec.VendorName)
	vendor := utils.NormalizeAddress(rec.VendorAddress)
	fmt.Fprintf(w, "  Address:   %s (%s)\n", utils.ShortAddress(vendor), chain.AddressURL(vendor))
	fmt.Fprintf(w, "  Amount:    %s %s", rec.Amount, currency(rec))
	if rec.AmountUSD != "" {
		fmt.Fprintf(w, " (%s)", rec.AmountUSD)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Due:       %s", valueOrDefault(rec.DueDate, "-"))
	if label := utils.DueLabel(rec.DueDate, now); label != "" && rec.Status != "paid" {
		fmt.Fprintf(w, " (%s)", label)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Status:    %s\n", valueOrDefault(rec.Status, "-"))
	if rec.Description != "" {
		fmt.Fprintf(w, "  Details:   %s\n", rec.Description)
	}
	fmt.Fprintf(w, "  Network:   %s, token %s\n", chain.Name, chain.TokenURL())
}

func currency(rec types.InvoiceRecord) string {
	return valueOrDefault(rec.Currency, "USDC")
}
