package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/itsneelabh/storefront"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/order"
)

var shopFlag = &cli.IntFlag{
	Name:  "shop",
	Usage: "shop id (defaults to catalog.default_shop_id)",
}

func shopID(c *cli.Context, rt *storefront.Runtime) int {
	if c.IsSet("shop") {
		return c.Int("shop")
	}
	return rt.App.Snapshot().Catalog.ShopID
}

func intArg(c *cli.Context, i int, name string) (int, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return n, nil
}

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "check or start the backend session and print the user",
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			st := rt.App.Snapshot()
			fmt.Printf("status: %s\nuser:   %s\n", st.SessionStatus, st.UserID)
			if cur := rt.Session.Current(); cur != nil {
				fmt.Printf("new:    %t\n", cur.IsNew)
			}
			return nil
		}),
	}
}

func shopsCommand() *cli.Command {
	return &cli.Command{
		Name:  "shops",
		Usage: "list the shops",
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			st := rt.App.Snapshot()
			return renderShops(os.Stdout, st.Catalog.Shops, st.Catalog.ShopID)
		}),
	}
}

func flowersCommand() *cli.Command {
	return &cli.Command{
		Name:  "flowers",
		Usage: "list one page of a shop's flowers",
		Flags: []cli.Flag{
			shopFlag,
			&cli.StringFlag{Name: "sort", Usage: "price or date"},
			&cli.StringFlag{Name: "order", Value: "asc", Usage: "asc or desc"},
			&cli.IntFlag{Name: "page", Value: 1},
		},
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			sort := catalog.Sort{Field: catalog.SortField(c.String("sort")), Order: catalog.SortOrder(c.String("order"))}
			switch sort.Field {
			case catalog.SortNone, catalog.SortPrice, catalog.SortDate:
			default:
				return fmt.Errorf("unknown sort %q, use price or date", sort.Field)
			}

			res := rt.Catalog.Fetch(c.Context, catalog.Query{
				ShopID: shopID(c, rt),
				Sort:   sort,
				Page:   c.Int("page"),
			})
			if res.Err != nil {
				return res.Err
			}
			if err := renderFlowers(os.Stdout, res.Items, rt.Favorites.IsFavorite); err != nil {
				return err
			}
			fmt.Printf("page %d of %d\n", res.Query.Page, res.TotalPages)
			return nil
		}),
	}
}

// findFlower pages through a shop's listing until id turns up.
func findFlower(ctx context.Context, rt *storefront.Runtime, shop, id int) (catalog.Flower, error) {
	for page, pages := 1, 1; page <= pages; page++ {
		res := rt.Catalog.Fetch(ctx, catalog.Query{ShopID: shop, Page: page})
		if res.Err != nil {
			return catalog.Flower{}, res.Err
		}
		for _, f := range res.Items {
			if f.ID == id {
				return f, nil
			}
		}
		pages = res.TotalPages
	}
	return catalog.Flower{}, fmt.Errorf("flower %d not found in shop %d", id, shop)
}

func cartCommand() *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "show or change the cart",
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			return renderCart(os.Stdout, rt.Cart.Items())
		}),
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show the cart",
				Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
					return renderCart(os.Stdout, rt.Cart.Items())
				}),
			},
			{
				Name:      "add",
				Usage:     "add one of a flower",
				ArgsUsage: "<flower-id>",
				Flags:     []cli.Flag{shopFlag},
				Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
					id, err := intArg(c, 0, "flower id")
					if err != nil {
						return err
					}
					flower, err := findFlower(c.Context, rt, shopID(c, rt), id)
					if err != nil {
						return err
					}
					if err := rt.App.AddToCart(c.Context, flower); err != nil {
						return err
					}
					return renderCart(os.Stdout, rt.Cart.Items())
				}),
			},
			{
				Name:      "update",
				Usage:     "set the quantity of a cart line",
				ArgsUsage: "<flower-id> <quantity>",
				Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
					id, err := intArg(c, 0, "flower id")
					if err != nil {
						return err
					}
					qty, err := intArg(c, 1, "quantity")
					if err != nil {
						return err
					}
					if qty < 1 {
						return fmt.Errorf("quantity must be at least 1, use remove to drop a line")
					}
					if err := rt.App.UpdateQuantity(c.Context, id, qty); err != nil {
						return err
					}
					return renderCart(os.Stdout, rt.Cart.Items())
				}),
			},
			{
				Name:      "remove",
				Usage:     "drop a cart line",
				ArgsUsage: "<flower-id>",
				Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
					id, err := intArg(c, 0, "flower id")
					if err != nil {
						return err
					}
					if err := rt.App.RemoveFromCart(c.Context, id); err != nil {
						return err
					}
					return renderCart(os.Stdout, rt.Cart.Items())
				}),
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
					return rt.Cart.Clear(c.Context)
				}),
			},
		},
	}
}

const deliveryLayout = "2006-01-02 15:04"

func checkoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "place an order for the cart",
		Flags: []cli.Flag{
			shopFlag,
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "phone", Required: true},
			&cli.StringFlag{Name: "address", Required: true},
			&cli.StringFlag{Name: "delivery", Usage: "delivery time as " + deliveryLayout + " (default tomorrow 12:00)"},
		},
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			var delivery time.Time
			if v := c.String("delivery"); v != "" {
				t, err := time.ParseInLocation(deliveryLayout, v, rt.Orders.Location())
				if err != nil {
					return fmt.Errorf("delivery: %w", err)
				}
				delivery = t
			}

			if c.IsSet("shop") {
				if err := rt.App.SelectShop(c.Context, c.Int("shop")); err != nil {
					return err
				}
			}
			rt.App.UpdateForm(func(f *order.Form) {
				f.Name = c.String("name")
				f.Email = c.String("email")
				f.Phone = c.String("phone")
				f.Address = c.String("address")
				if !delivery.IsZero() {
					f.DeliveryDateTime = delivery
				}
			})

			id, err := rt.App.SubmitOrder(c.Context)
			if err != nil {
				return err
			}
			details, err := rt.App.OrderDetails(c.Context)
			if err != nil {
				fmt.Printf("order %s placed\n", id)
				return nil
			}
			return renderOrder(os.Stdout, details)
		}),
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:      "order",
		Usage:     "show a placed order",
		ArgsUsage: "<order-id>",
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("missing order id")
			}
			details, err := rt.Orders.Details(c.Context, id)
			if err != nil {
				return err
			}
			return renderOrder(os.Stdout, details)
		}),
	}
}

func favoriteCommand() *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "toggle a flower's favorite flag",
		ArgsUsage: "<flower-id>",
		Flags:     []cli.Flag{shopFlag},
		Action: withRuntime(func(c *cli.Context, rt *storefront.Runtime) error {
			id, err := intArg(c, 0, "flower id")
			if err != nil {
				return err
			}
			flower, err := findFlower(c.Context, rt, shopID(c, rt), id)
			if err != nil {
				return err
			}
			fav, err := rt.App.ToggleFavorite(c.Context, flower)
			if err != nil {
				return err
			}
			fmt.Printf("%s favorite: %t\n", flower.Name, fav)
			return nil
		}),
	}
}
