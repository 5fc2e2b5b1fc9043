package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/order"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderShops(w io.Writer, shops []catalog.Shop, current int) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "\tID\tSHOP")
	for _, s := range shops {
		marker := ""
		if s.ID == current {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", marker, s.ID, s.Name)
	}
	if len(shops) == 0 {
		fmt.Fprintln(tw, "\t\t(no shops)")
	}
	return tw.Flush()
}

func renderFlowers(w io.Writer, items []catalog.Flower, favorite func(catalog.Flower) bool) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tADDED\tFAV")
	for _, f := range items {
		fav := ""
		if favorite(f) {
			fav = "♥"
		}
		added := f.DateAdded
		if len(added) > 10 {
			added = added[:10]
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\n", f.ID, f.Name, f.Price, added, fav)
	}
	if len(items) == 0 {
		fmt.Fprintln(tw, "\t(no flowers)\t\t\t")
	}
	return tw.Flush()
}

func renderCart(w io.Writer, items cart.Items) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY\tTOTAL")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%s\n", it.ID, it.Name, it.Price, it.Quantity, it.LineTotal().StringFixed(2))
	}
	if len(items) == 0 {
		fmt.Fprintln(tw, "\t(cart is empty)\t\t\t")
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%s\n", items.Quantity(), items.Total().StringFixed(2))
	return tw.Flush()
}

func renderOrder(w io.Writer, d *order.Details) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Order\t#%s\n", d.Number())
	fmt.Fprintf(tw, "Shop\t%s\n", d.Shop.Name)
	fmt.Fprintf(tw, "Name\t%s\n", d.Name)
	fmt.Fprintf(tw, "Email\t%s\n", d.Email)
	fmt.Fprintf(tw, "Phone\t%s\n", d.Phone)
	fmt.Fprintf(tw, "Address\t%s\n", d.DeliveryAddress)
	fmt.Fprintf(tw, "Delivery\t%s (%s)\n", d.DeliveryDateTime, d.UserTimezone)
	if d.CouponCode != nil {
		fmt.Fprintf(tw, "Coupon\t%s\n", *d.CouponCode)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "FLOWER\tPRICE\tQTY")
	for _, it := range d.Items {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\n", it.Name, it.Price, it.Quantity)
	}
	fmt.Fprintf(tw, "TOTAL\t%.2f\t\n", d.TotalPrice)
	return tw.Flush()
}
