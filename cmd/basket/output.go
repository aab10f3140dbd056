package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"basket-console/internal/basket"
	"basket-console/internal/types"
)

func printBasket(w io.Writer, orders []types.Order) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSIDE\tSYMBOL\tEXCH\tLOTS\tQTY\tTYPE\tPRICE\tROLE")
	for i, o := range orders {
		price := "-"
		if o.LimitPrice != nil {
			price = o.LimitPrice.String()
		}
		if o.TriggerPrice != nil {
			price += " @" + o.TriggerPrice.String()
		}
		qty := "-"
		if q := o.Quantity(); q > 0 {
			qty = fmt.Sprint(q)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			i+1, o.Side, o.Symbol, o.Exchange, o.Lots, qty, o.Kind.Wire(), price, o.Role)
	}
	tw.Flush()
}

func printMargin(w io.Writer, r types.MarginReport) {
	fmt.Fprintf(w, "Available: ₹%s  Required: ₹%s\n", r.AvailableBalance.StringFixed(2), r.TotalRequired.StringFixed(2))
	if r.Sufficient {
		fmt.Fprintf(w, "✅ Sufficient margin, ₹%s remaining\n", r.Remaining().StringFixed(2))
		return
	}
	fmt.Fprintf(w, "🚫 Insufficient margin, you need ₹%s more\n", r.Shortfall().StringFixed(2))
}

func printSummary(w io.Writer, s types.DeploymentSummary) {
	fmt.Fprintf(w, "Deployment %s: %d orders, %d placed, %d failed\n", s.DeploymentID, s.TotalOrders, s.Successful, s.Failed)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tSYMBOL\tORDER ID\tFILLED\tAVG\tMESSAGE")
	for _, r := range s.Results {
		b := basket.Classify(r.Status)
		msg := r.ErrorMessage
		if msg == "" {
			msg = r.StatusMessage
		}
		fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.RequestIndex+1, b.Icon, b.Label, r.Symbol, r.OrderID, r.FilledQuantity, r.Quantity, r.AveragePrice.String(), msg)
	}
	tw.Flush()
}

func printStatuses(w io.Writer, statuses []types.OrderStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, st := range statuses {
		b := basket.Classify(st.Status)
		fmt.Fprintf(tw, "%s\t%s %s\t%d\t%s\t%s\n", st.OrderID, b.Icon, b.Label, st.FilledQuantity, st.AveragePrice.String(), st.StatusMessage)
	}
	tw.Flush()
}
