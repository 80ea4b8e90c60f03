package billing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
)

var (
	quoteHost   string
	quoteCount  int
	quoteMonths int
	quoteCoupon string
	quotePlan   string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a number of billable listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil {
			return errors.New("no container configured")
		}

		hostID, err := uuid.Parse(quoteHost)
		if err != nil {
			return fmt.Errorf("invalid host id: %w", err)
		}

		quote, err := app.Pricing.Quote(cmd.Context(), hostID, quoteCount, quoteMonths, quoteCoupon, quotePlan)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Listings:  %d x %.2f for %d month(s)\n", quote.ListingCount, quote.PricePerListing, quote.DurationMonths)
		fmt.Fprintf(out, "Base:      %.2f\n", quote.BaseAmount)
		if quote.DiscountAmount > 0 {
			fmt.Fprintf(out, "Discount:  -%.2f (%s)\n", quote.DiscountAmount, quote.CouponCode)
		}
		if quote.FreeMonthsGranted > 0 {
			fmt.Fprintf(out, "Free months granted: %d\n", quote.FreeMonthsGranted)
		}
		if quote.RequiresManualReview {
			fmt.Fprintln(out, "Requires manual review; an operator will be in touch.")
			return nil
		}
		fmt.Fprintf(out, "Total:     %.2f\n", quote.FinalAmount)
		return nil
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteHost, "host", "", "host ID (required)")
	quoteCmd.Flags().IntVar(&quoteCount, "count", 1, "billable listing count")
	quoteCmd.Flags().IntVar(&quoteMonths, "months", 1, "billing duration in months")
	quoteCmd.Flags().StringVar(&quoteCoupon, "coupon", "", "coupon code")
	quoteCmd.Flags().StringVar(&quotePlan, "plan", "", "plan code for plan-scoped coupons")
	_ = quoteCmd.MarkFlagRequired("host")
}
