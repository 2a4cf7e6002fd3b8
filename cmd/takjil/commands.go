package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"takjil/internal/rating"
	"takjil/internal/service"
	"takjil/internal/venues"
)

var errUsage = errors.New("usage")

type app struct {
	svc *service.Service
	log *zap.SugaredLogger
	out io.Writer
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"list":     listCmd,
	"pending":  pendingCmd,
	"near":     nearCmd,
	"show":     showCmd,
	"submit":   submitCmd,
	"rate":     rateCmd,
	"moderate": moderateCmd,
	"login":    loginCmd,
	"logout":   logoutCmd,
	"watch":    watchCmd,
}

func listCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	query := fs.String("q", "", "name filter")
	verified := fs.Bool("verified", false, "only verified venues")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	records := a.svc.Store.Search(*query, *verified)
	venues.SortNewest(records)
	return a.table(ctx, records)
}

func pendingCmd(ctx context.Context, a *app, args []string) error {
	return a.table(ctx, a.svc.Store.Pending())
}

func nearCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("near", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "max venues")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	_, near, err := a.svc.Nearby(ctx, *limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISTANCE\tSTATUS")
	for _, n := range near {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Name, n.Distance, n.Status)
	}
	return w.Flush()
}

func showCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	r, ok := a.svc.Store.Get(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", venues.ErrVenueNotFound, args[0])
	}
	if !r.Visible() {
		fmt.Fprintln(a.out, "this venue is not available")
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return err
	}

	vote, voted, err := a.svc.Ledger.UserRating(ctx, r.ID)
	if err != nil {
		return err
	}
	if voted {
		fmt.Fprintf(a.out, "you rated this venue %s\n", vote)
	}
	return nil
}

func submitCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var d venues.Draft
	fs.StringVar(&d.Name, "name", "", "venue name")
	fs.StringVar(&d.Address, "address", "", "street address")
	fs.Float64Var(&d.Location.Lat, "lat", 0, "latitude")
	fs.Float64Var(&d.Location.Lng, "lng", 0, "longitude")
	menu := fs.String("menu", "", "comma separated menu items")
	fs.StringVar(&d.Notes, "notes", "", "notes")
	fs.StringVar(&d.Portion, "portion", "", "portions served")
	fs.StringVar(&d.IftarTime, "iftar-time", "", "iftar time")
	fs.StringVar(&d.Image, "image", "", "image URL")
	imageFile := fs.String("image-file", "", "image to upload")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	d.Menu = strings.Split(*menu, ",")
	if *imageFile != "" {
		data, err := os.ReadFile(*imageFile)
		if err != nil {
			return err
		}
		d.ImageData = data
	}

	id, err := a.svc.Submit(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "submitted %s, waiting for moderation\n", id)
	return nil
}

func rateCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 || (args[1] != string(rating.Up) && args[1] != string(rating.Down)) {
		return errUsage
	}

	res, err := a.svc.Rate(ctx, args[0], args[1] == string(rating.Up))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res)
	return nil
}

func moderateCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	status := venues.Status(args[1])
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", args[1])
	}
	if err := a.svc.Moderate(ctx, args[0], status); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", args[0], status)
	return nil
}

func loginCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	sess, err := a.svc.Sessions.Login(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n", sess.Email, sess.Role)
	return nil
}

func logoutCmd(ctx context.Context, a *app, args []string) error {
	if err := a.svc.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func watchCmd(ctx context.Context, a *app, args []string) error {
	updates, cancel := a.svc.Store.Watch()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case records := <-updates:
			fmt.Fprintf(a.out, "-- %s, %d venues\n", time.Now().Format(time.TimeOnly), len(records))
			if err := a.table(ctx, venues.Visible(records)); err != nil {
				return err
			}
		case err := <-a.svc.Errors():
			a.log.Warnw("stream lost, resubscribing", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(2 * time.Second):
			}
			if err := a.svc.Resubscribe(ctx); err != nil {
				return err
			}
		}
	}
}

func (a *app) table(ctx context.Context, records []venues.Record) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUP\tDOWN\tVOTE")
	for _, r := range records {
		vote, _, err := a.svc.Ledger.UserRating(ctx, r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Name, r.Status, r.ThumbsUp, r.ThumbsDown, vote)
	}
	return w.Flush()
}
