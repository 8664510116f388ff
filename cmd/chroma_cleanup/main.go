package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hetulpatel/chroma-auditor/internal/config"
	"github.com/hetulpatel/chroma-auditor/internal/console"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
)

var menu = []string{
	"List collections",
	"Inspect collection",
	"Create collection",
	"Delete one collection",
	"Delete multiple collections",
	"Clean orphaned directories",
	"Exit",
}

func main() {
	if err := runMenu(); err != nil {
		logging.Fatalf("[cleanup] %v", err)
	}
	fmt.Println("Bye.")
}

func runMenu() (err error) {
	cfg := config.Load()
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := console.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	fmt.Printf("Chroma storage: %s\nChroma server:  %s\n\n", c.Reconciler.Root().Path(), c.Store.BaseURL())
	for ctx.Err() == nil {
		choice, err := console.SelectIndex("Choose an action", menu)
		if err != nil {
			if console.IsAborted(err) {
				return nil
			}
			return fmt.Errorf("menu: %w", err)
		}
		if choice == len(menu)-1 {
			return nil
		}
		if err := dispatch(ctx, c, choice); err != nil {
			if console.IsAborted(err) {
				fmt.Println("Cancelled.")
				continue
			}
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Println()
	}
	return nil
}

func dispatch(ctx context.Context, c *console.Console, choice int) error {
	switch choice {
	case 0:
		return listCollections(ctx, c)
	case 1:
		return inspectCollection(ctx, c)
	case 2:
		return createCollection(ctx, c)
	case 3:
		return deleteOne(ctx, c)
	case 4:
		return deleteMany(ctx, c)
	case 5:
		return cleanOrphans(ctx, c)
	}
	return nil
}

func listCollections(ctx context.Context, c *console.Console) error {
	names, err := c.CollectionNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No collections found.")
		return nil
	}
	console.PrintNumbered(os.Stdout, "Collection", names)
	return nil
}

// chooseCollection lets the user pick one collection by menu.
func chooseCollection(ctx context.Context, c *console.Console) (string, error) {
	names, err := c.CollectionNames(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", errors.New("no collections found")
	}
	i, err := console.SelectIndex("Collection", names)
	if err != nil {
		return "", err
	}
	return names[i], nil
}

func inspectCollection(ctx context.Context, c *console.Console) error {
	name, err := chooseCollection(ctx, c)
	if err != nil {
		return err
	}
	info, err := c.Inspect(ctx, name)
	if err != nil {
		return err
	}
	console.PrintCollection(os.Stdout, info)
	return nil
}

func createCollection(ctx context.Context, c *console.Console) error {
	name, err := console.Input("New collection name")
	if err != nil {
		return err
	}
	if err := c.CreateCollection(ctx, name); err != nil {
		return err
	}
	fmt.Printf("Created collection %s\n", name)
	return nil
}

func deleteOne(ctx context.Context, c *console.Console) error {
	name, err := chooseCollection(ctx, c)
	if err != nil {
		return err
	}
	return confirmAndDelete(ctx, c, []string{name})
}

func deleteMany(ctx context.Context, c *console.Console) error {
	names, err := c.CollectionNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("no collections found")
	}
	console.PrintNumbered(os.Stdout, "Collection", names)
	idx, err := console.SelectMany("Collections to delete (e.g. 1,3-4 or all)", len(names))
	if err != nil {
		return err
	}
	return confirmAndDelete(ctx, c, console.Pick(names, idx))
}

func confirmAndDelete(ctx context.Context, c *console.Console, names []string) error {
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
	ok, err := console.Confirm(fmt.Sprintf("Delete %d collection(s) and their data directories", len(names)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Nothing deleted.")
		return nil
	}
	res := c.DeleteCollections(ctx, names)
	console.PrintBatch(os.Stdout, res)
	return nil
}

func cleanOrphans(ctx context.Context, c *console.Console) error {
	rep, err := c.Reconciler.ComputeOrphans(ctx)
	if err != nil {
		return err
	}
	console.PrintReport(os.Stdout, rep)
	if rep.Degraded || len(rep.Orphans) == 0 {
		return nil
	}
	ok, err := console.Confirm(fmt.Sprintf("Delete %d orphaned directories", len(rep.Orphans)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Nothing deleted.")
		return nil
	}
	res, err := c.CleanOrphans(ctx)
	if err != nil {
		return err
	}
	console.PrintSweep(os.Stdout, res)
	return nil
}
