package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/carbonware/bookexchange/internal/entity"
	storeerrors "github.com/carbonware/bookexchange/internal/errors"
	"github.com/carbonware/bookexchange/internal/mailto"
	"github.com/carbonware/bookexchange/internal/validate"
)

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "seed":
		return a.cmdSeed(ctx, args)
	case "list":
		return a.cmdList(ctx, args)
	case "get":
		return a.cmdGet(ctx, args)
	case "add":
		return a.cmdAdd(ctx, args)
	case "update":
		return a.cmdUpdate(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "sponsors":
		return a.cmdSponsors(ctx, args)
	case "add-sponsor":
		return a.cmdAddSponsor(ctx, args)
	case "mailto":
		return a.cmdMailto(ctx, args)
	case "watch":
		return a.cmdWatch(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// oneID parses a command taking exactly one listing id.
func oneID(name string, args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("%s: missing listing id", name)
	}
	return args[0], args[1:], nil
}

func noArgs(name string, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%s: unexpected arguments: %v", name, args)
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) cmdSeed(ctx context.Context, args []string) error {
	if err := noArgs("seed", args); err != nil {
		return err
	}
	n, err := a.books.EnsureSeedBooks(ctx)
	if err != nil {
		return err
	}
	sponsors := a.sponsors.GetAll(ctx)
	_, err = fmt.Fprintf(a.stdout, "listings seeded: %d\nsponsors: %d\n", n, len(sponsors))
	return err
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	if err := noArgs("list", args); err != nil {
		return err
	}
	all, err := a.books.GetAll(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(all)
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	id, rest, err := oneID("get", args)
	if err != nil {
		return err
	}
	if err := noArgs("get", rest); err != nil {
		return err
	}
	l, err := a.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if l == nil {
		return storeerrors.NotFound(fmt.Sprintf("listing %q", id))
	}
	return a.printJSON(l)
}

// listingFlags binds the form fields of a listing to fs.
func listingFlags(fs *flag.FlagSet, in *validate.ListingInput) {
	fs.StringVar(&in.Image, "image", "", "Cover image URL or data URI")
	fs.StringVar(&in.BookName, "name", "", "Book name")
	fs.StringVar(&in.BookTitle, "title", "", "Book title")
	fs.StringVar(&in.Genre, "genre", "", "Genre")
	fs.StringVar(&in.OriginalPrice, "original-price", "", "Original price")
	fs.StringVar(&in.ListingPrice, "price", "", "Listing price")
	fs.StringVar(&in.Email, "email", "", "Seller email")
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	var in validate.ListingInput
	fs := newFlagSet("add")
	listingFlags(fs, &in)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := noArgs("add", fs.Args()); err != nil {
		return err
	}
	l, err := a.books.Create(ctx, in)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "listing added", "id", l.ID, "title", l.BookTitle)
	return a.printJSON(l)
}

func (a *app) cmdUpdate(ctx context.Context, args []string) error {
	id, rest, err := oneID("update", args)
	if err != nil {
		return err
	}
	cur, err := a.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return storeerrors.NotFound(fmt.Sprintf("listing %q", id))
	}
	var in validate.ListingInput
	fs := newFlagSet("update")
	listingFlags(fs, &in)
	// Unset flags keep the current values.
	in = validate.ListingInput{
		BookName:      cur.BookName,
		BookTitle:     cur.BookTitle,
		Genre:         cur.Genre,
		OriginalPrice: cur.OriginalPrice,
		ListingPrice:  cur.ListingPrice,
		Email:         cur.Email,
	}
	if cur.Image != nil {
		in.Image = *cur.Image
	}
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if err := noArgs("update", fs.Args()); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}
	next := cur.Clone()
	next.BookName = strings.TrimSpace(in.BookName)
	next.BookTitle = strings.TrimSpace(in.BookTitle)
	next.Genre = strings.TrimSpace(in.Genre)
	next.OriginalPrice = strings.TrimSpace(in.OriginalPrice)
	next.ListingPrice = strings.TrimSpace(in.ListingPrice)
	next.Email = strings.TrimSpace(in.Email)
	next.Image = nil
	if img := strings.TrimSpace(in.Image); img != "" {
		next.Image = &img
	}
	if err := a.books.Update(ctx, next); err != nil {
		return err
	}
	return a.printJSON(next)
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	id, rest, err := oneID("delete", args)
	if err != nil {
		return err
	}
	if err := noArgs("delete", rest); err != nil {
		return err
	}
	return a.books.Delete(ctx, id)
}

func (a *app) cmdSponsors(ctx context.Context, args []string) error {
	fs := newFlagSet("sponsors")
	top := fs.Int("top", a.cfg.Sponsors.TopLimit, "Number of sponsors to print")
	all := fs.Bool("all", false, "Print every sponsor in stored order")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("sponsors: %w", err)
	}
	if err := noArgs("sponsors", fs.Args()); err != nil {
		return err
	}
	if *all {
		return a.printJSON(a.sponsors.GetAll(ctx))
	}
	return a.printJSON(a.sponsors.GetTop(ctx, *top))
}

func (a *app) cmdAddSponsor(ctx context.Context, args []string) error {
	var in entity.SponsorInput
	fs := newFlagSet("add-sponsor")
	fs.StringVar(&in.Name, "name", "", "Sponsor name")
	fs.StringVar(&in.Website, "website", "", "Website URL")
	fs.StringVar(&in.Logo, "logo", "", "Logo URL")
	fs.StringVar(&in.Message, "message", "", "Message shown to supporters")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("add-sponsor: %w", err)
	}
	if err := noArgs("add-sponsor", fs.Args()); err != nil {
		return err
	}
	sp, err := a.sponsors.Add(ctx, in)
	if err != nil {
		return err
	}
	return a.printJSON(sp)
}

func (a *app) cmdMailto(ctx context.Context, args []string) error {
	id, rest, err := oneID("mailto", args)
	if err != nil {
		return err
	}
	if err := noArgs("mailto", rest); err != nil {
		return err
	}
	l, err := a.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if l == nil {
		return storeerrors.NotFound(fmt.Sprintf("listing %q", id))
	}
	link, ok := mailto.ForListing(l)
	if !ok {
		return errors.New("listing has no valid contact email")
	}
	_, err = fmt.Fprintln(a.stdout, link)
	return err
}

// cmdWatch prints the top sponsors each time another process changes them,
// until ctx is canceled.
func (a *app) cmdWatch(ctx context.Context, args []string) error {
	if err := noArgs("watch", args); err != nil {
		return err
	}
	key := a.cfg.Sponsors.StorageKey
	changed := make(chan struct{}, 1)
	err := a.kv.Watch(ctx, func(k string) {
		if k != key {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", a.kv.Path(), err)
	}
	slog.InfoContext(ctx, "watching for sponsor changes", "path", a.kv.Path(), "key", key)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			if err := a.printJSON(a.sponsors.GetTop(ctx, a.cfg.Sponsors.TopLimit)); err != nil {
				return err
			}
		}
	}
}
