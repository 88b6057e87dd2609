package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bher20/stromdeals/internal/catalog"
	"github.com/bher20/stromdeals/internal/ranking"
)

func newOffersCmd(opts *options) *cobra.Command {
	var (
		consumption float64
		tier        string
		area        string
		sortMode    string
		contract    string
		vendor      string
		query       string
		warranty    string
	)

	cmd := &cobra.Command{
		Use:   "offers",
		Short: "List offers ranked by estimated monthly cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req := catalog.OffersRequest{
				Tier: tier,
				Area: area,
				Query: ranking.Query{
					Filter: ranking.Filter{
						ContractType: contract,
						Vendor:       vendor,
						Query:        query,
						Warranty:     ranking.ParseWarrantyBuckets(warranty),
					},
					Sort: ranking.ParseSortMode(sortMode),
				},
			}
			if cmd.Flags().Changed("consumption") {
				req.Consumption = &consumption
			}

			res, err := a.svc.Offers(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printOffers(cmd.OutOrStdout(), res, time.Now())
		},
	}

	cmd.Flags().Float64VarP(&consumption, "consumption", "c", 0, "Monthly consumption in kWh (default from config)")
	cmd.Flags().StringVar(&tier, "tier", "", "Usage tier: low, mid or high")
	cmd.Flags().StringVar(&area, "area", "", "Price area no1..no5")
	cmd.Flags().StringVarP(&sortMode, "sort", "s", "est", "Sort: est, addon, fee, name, rec")
	cmd.Flags().StringVarP(&contract, "type", "t", "", "Contract type: spotpris, fastpris, variabel")
	cmd.Flags().StringVar(&vendor, "vendor", "", "Exact vendor name")
	cmd.Flags().StringVar(&query, "q", "", "Free-text search over name and vendor")
	cmd.Flags().StringVar(&warranty, "warranty", "", "Comma separated warranty buckets: ge12, m6to11, lt6")
	return cmd
}

func printOffers(w io.Writer, res catalog.OffersResult, now time.Time) error {
	fmt.Fprintf(w, "%d offers from %s (%s, updated %s), %s kWh/month\n\n",
		res.Count, res.Source, res.ServedFrom, humanize.RelTime(res.UpdatedAt, now, "ago", "from now"),
		humanize.Commaf(res.Consumption))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tVENDOR\tNAME\tTYPE\tEST/MONTH\tFEE\tWARRANTY\t")
	for i, it := range res.Offers {
		est := "-"
		if it.EstimatedMonthly != nil {
			est = humanize.Comma(int64(*it.EstimatedMonthly)) + " kr"
		}
		warranty := "-"
		if it.WarrantyMonths != nil {
			warranty = strconv.Itoa(*it.WarrantyMonths) + " mnd"
		}
		name := it.Name
		if it.Promoted {
			name += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s kr\t%s\t\n",
			i+1, it.Vendor, name, it.ContractType, est, humanize.Commaf(it.MonthlyFee), warranty)
	}
	return tw.Flush()
}
