package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/itsneelabh/storefront"
	"github.com/itsneelabh/storefront/app"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/order"
)

const shellHelp = `commands:
  view                      redraw the current screen
  shops                     list shops
  shop <id>                 switch shop
  sort price|date           sort (again flips direction)
  page <n> | next | prev    change page
  fav <id>                  toggle favorite on the current page
  add <id>                  add a flower from the current page
  cart                      show cart and checkout form
  qty <id> <n>              set quantity
  rm <id>                   remove from cart
  form name|email|phone|address <value>
  delivery <YYYY-MM-DD HH:MM>
  submit                    place the order
  order [id]                show the last (or given) order
  back                      back to the shop
  refresh                   reload shops and page
  dismiss                   clear the alert
  quit`

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "interactive storefront",
		Action: func(c *cli.Context) error {
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			sh := newShell(rt, os.Stdout)
			if err := rt.App.Start(c.Context); err != nil {
				fmt.Fprintf(os.Stdout, "session unavailable: %v (use refresh to retry)\n", err)
			}
			return sh.run(c.Context, os.Stdin)
		},
	}
}

type shell struct {
	rt  *storefront.Runtime
	app *app.App
	out io.Writer
}

func newShell(rt *storefront.Runtime, out io.Writer) *shell {
	return &shell{rt: rt, app: rt.App, out: out}
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	s.view(ctx)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(s.out, errorLine(err))
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return false, nil
	case "view":
	case "shops":
		st := s.app.Snapshot()
		return false, renderShops(s.out, st.Catalog.Shops, st.Catalog.ShopID)
	case "shop":
		id, err := argInt(args, 0, "shop id")
		if err != nil {
			return false, err
		}
		s.app.ShowShop()
		if err := s.app.SelectShop(ctx, id); err != nil {
			return false, err
		}
	case "sort":
		if len(args) == 0 {
			return false, errors.New("sort price or sort date")
		}
		var field catalog.SortField
		switch args[0] {
		case "price":
			field = catalog.SortPrice
		case "date":
			field = catalog.SortDate
		default:
			return false, fmt.Errorf("unknown sort %q", args[0])
		}
		if err := s.app.ToggleSort(ctx, field); err != nil {
			return false, err
		}
	case "page", "next", "prev":
		page := s.app.Snapshot().Catalog.Page
		switch cmd {
		case "next":
			page++
		case "prev":
			page--
		default:
			n, err := argInt(args, 0, "page")
			if err != nil {
				return false, err
			}
			page = n
		}
		if err := s.app.SetPage(ctx, page); err != nil {
			return false, err
		}
	case "fav", "add":
		id, err := argInt(args, 0, "flower id")
		if err != nil {
			return false, err
		}
		flower, ok := s.onPage(id)
		if !ok {
			return false, fmt.Errorf("flower %d is not on this page", id)
		}
		if cmd == "add" {
			if err := s.app.AddToCart(ctx, flower); err != nil {
				return false, err
			}
			fmt.Fprintf(s.out, "added %s\n", flower.Name)
			return false, nil
		}
		fav, err := s.app.ToggleFavorite(ctx, flower)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "%s favorite: %t\n", flower.Name, fav)
		return false, nil
	case "cart":
		s.app.ShowCart()
	case "qty":
		id, err := argInt(args, 0, "flower id")
		if err != nil {
			return false, err
		}
		n, err := argInt(args, 1, "quantity")
		if err != nil {
			return false, err
		}
		if err := s.app.UpdateQuantity(ctx, id, n); err != nil {
			return false, err
		}
	case "rm":
		id, err := argInt(args, 0, "flower id")
		if err != nil {
			return false, err
		}
		if err := s.app.RemoveFromCart(ctx, id); err != nil {
			return false, err
		}
	case "form":
		if len(args) < 1 {
			return false, errors.New("form <field> <value>")
		}
		value := strings.Join(args[1:], " ")
		var set func(f *order.Form)
		switch args[0] {
		case "name":
			set = func(f *order.Form) { f.Name = value }
		case "email":
			set = func(f *order.Form) { f.Email = value }
		case "phone":
			set = func(f *order.Form) { f.Phone = value }
		case "address":
			set = func(f *order.Form) { f.Address = value }
		default:
			return false, fmt.Errorf("unknown form field %q", args[0])
		}
		s.app.UpdateForm(set)
	case "delivery":
		t, err := time.ParseInLocation(deliveryLayout, strings.Join(args, " "), s.rt.Orders.Location())
		if err != nil {
			return false, fmt.Errorf("delivery: %w", err)
		}
		s.app.UpdateForm(func(f *order.Form) { f.DeliveryDateTime = t })
	case "submit":
		id, err := s.app.SubmitOrder(ctx)
		if err != nil {
			var fe *order.FormError
			if errors.As(err, &fe) {
				return false, fe
			}
			// the alert is shown by view
			break
		}
		fmt.Fprintf(s.out, "order %s placed\n", id)
	case "order":
		if len(args) > 0 {
			s.app.ShowOrder(args[0])
		} else if s.app.Snapshot().OrderID == "" {
			return false, app.ErrNoOrder
		} else {
			s.app.ShowOrder(s.app.Snapshot().OrderID)
		}
	case "back":
		s.app.BackToShop()
	case "refresh":
		if s.app.Snapshot().UserID == "" {
			// a recovered session reloads the catalog itself
			if err := s.rt.Session.Refresh(ctx); err != nil {
				return false, err
			}
		} else if err := s.app.Reload(ctx); err != nil {
			return false, err
		}
	case "dismiss":
		s.app.DismissAlert()
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}

	s.view(ctx)
	return false, nil
}

func (s *shell) onPage(id int) (catalog.Flower, bool) {
	for _, f := range s.app.Snapshot().Catalog.Items {
		if f.ID == id {
			return f, true
		}
	}
	return catalog.Flower{}, false
}

// view draws the current screen.
func (s *shell) view(ctx context.Context) {
	st := s.app.Snapshot()
	if st.Alert != "" {
		fmt.Fprintf(s.out, "!! %s\n", st.Alert)
	}
	if st.UserID == "" {
		fmt.Fprintf(s.out, "session: %s\n", st.SessionStatus)
		return
	}

	switch st.Screen {
	case app.ScreenShop:
		v := st.Catalog
		sort := "none"
		if v.Sort.Field != catalog.SortNone {
			sort = fmt.Sprintf("%s %s", v.Sort.Field, v.Sort.Order)
		}
		fmt.Fprintf(s.out, "== %s | sort: %s | page %d/%d | cart: %d ==\n",
			catalog.ShopName(v.Shops, v.ShopID), sort, v.Page, v.TotalPages, st.Cart.Quantity())
		if v.Err != nil {
			fmt.Fprintf(s.out, "could not load flowers: %v\n", v.Err)
		}
		_ = renderFlowers(s.out, v.Items, s.rt.Favorites.IsFavorite)
	case app.ScreenCart:
		fmt.Fprintln(s.out, "== Cart ==")
		_ = renderCart(s.out, st.Cart)
		f := st.Form
		fmt.Fprintf(s.out, "name: %s | email: %s | phone: %s | address: %s | delivery: %s\n",
			f.Name, f.Email, f.Phone, f.Address, f.DeliveryDateTime.Format(deliveryLayout))
		if st.CanSubmit {
			fmt.Fprintln(s.out, "ready: submit to place the order")
		}
	case app.ScreenOrderDetails:
		d, err := s.app.OrderDetails(ctx)
		if err != nil {
			fmt.Fprintf(s.out, "could not load order: %v\n", err)
			return
		}
		_ = renderOrder(s.out, d)
	}
}

func argInt(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, args[i])
	}
	return n, nil
}
