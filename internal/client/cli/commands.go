package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

var errUsage = errors.New("usage")

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}

// statusLine is shown in the prompt, e.g. "(online, 3 pending)".
func (a *App) statusLine() string {
	mode := "offline"
	if a.monitor != nil && a.monitor.IsOnline() {
		mode = "online"
	}
	pc, err := a.syncer.GetPendingCount(context.Background())
	if err != nil || pc.Total == 0 {
		return "(" + mode + ")"
	}
	return fmt.Sprintf("(%s, %d pending)", mode, pc.Total)
}

func (a *App) New(ctx context.Context, args []string) error {
	title := strings.Join(args, " ")
	if title == "" {
		var err error
		if title, err = GetSimpleText(a.reader, "Enter title", a.out); err != nil {
			return err
		}
	}
	fields, err := GetFields(a.reader, a.out)
	if err != nil {
		return err
	}

	rec, err := a.capture.CreateRecord(ctx, title, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Draft %s saved\n", rec.ID)
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("edit <id>")
	}
	rec, err := a.capture.GetRecord(ctx, args[0])
	if err != nil {
		return err
	}

	title, err := GetSimpleText(a.reader, fmt.Sprintf("Enter title (empty keeps %q)", rec.Title), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = rec.Title
	}

	fields, err := GetFields(a.reader, a.out)
	if err != nil {
		return err
	}
	if fields == nil {
		if fields, err = rec.Fields(); err != nil {
			return err
		}
	}

	if _, err := a.capture.UpdateRecord(ctx, rec.ID, title, fields); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Draft %s updated\n", rec.ID)
	return nil
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("attach <id> <path>")
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	asset, err := a.capture.AttachAsset(ctx, args[0], services.AssetInput{
		FileName: filepath.Base(args[1]),
		Data:     data,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Attached %s (%s, %d bytes) as %s\n", asset.FileName, asset.MimeType, asset.Size, asset.ID)
	return nil
}

func (a *App) Comment(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("comment <id>")
	}
	text, err := GetMultiline(a.reader, "Enter comment", a.out)
	if err != nil {
		return err
	}
	if _, err := a.capture.AddComment(ctx, args[0], text); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Comment queued")
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) == 1 {
		return a.show(ctx, args[0])
	}

	recs, err := a.capture.ListRecords(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No drafts")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tLAST ERROR")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Title, r.LastError)
	}
	return tw.Flush()
}

func (a *App) show(ctx context.Context, id string) error {
	rec, err := a.capture.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	fields, err := rec.Fields()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s  %s  [%s]\n", rec.ID, rec.Title, rec.Status)
	if rec.LastError != "" {
		fmt.Fprintf(a.out, "last error: %s\n", rec.LastError)
	}
	for k, v := range fields {
		fmt.Fprintf(a.out, "  %s = %v\n", k, v)
	}

	assets, err := a.capture.ListAssets(ctx, id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, as := range assets {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d bytes\tretries %d\t%s\n", as.ID, as.FileName, as.Status, as.Size, as.RetryCount, as.LastError)
	}
	return tw.Flush()
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.syncer.GetSyncStatus(ctx)
	if err != nil {
		return err
	}
	used, err := a.store.Usage(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPENDING\tFAILED")
	fmt.Fprintf(tw, "records\t%d\t%d\n", st.PendingRecords, st.FailedRecords)
	fmt.Fprintf(tw, "attachments\t%d\t%d\n", st.PendingAssets, st.FailedAssets)
	fmt.Fprintf(tw, "comments & references\t%d\t%d\n", st.PendingChanges, st.FailedChanges)
	if err := tw.Flush(); err != nil {
		return err
	}

	last := "never"
	if !st.LastSyncAt.IsZero() {
		last = st.LastSyncAt.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(a.out, "storage: %.1f of %d MB, last full sync: %s, stage: %s\n",
		float64(used)/(1<<20), common.MaxTotalStorage>>20, last, st.Stage)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	res, err := a.syncer.TriggerSync(ctx)
	switch {
	case errors.Is(err, common.ErrOffline):
		fmt.Fprintln(a.out, "Offline, changes stay queued")
		return nil
	case errors.Is(err, common.ErrSyncInProgress):
		fmt.Fprintln(a.out, "A sync is already running")
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(a.out, "Synced %d records, %d attachments, %d comments/references\n",
		res.SyncedCases, res.SyncedImages, res.SyncedChanges)
	for _, e := range res.Errors {
		fmt.Fprintln(a.out, "  failed:", e)
	}
	return nil
}

func (a *App) Retry(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		n, err := a.syncer.RetryFailed(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d failed items re-queued\n", n)
		return nil
	case 1:
		if err := a.syncer.RetryItem(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s re-queued\n", args[0])
		return nil
	default:
		return usage("retry [id]")
	}
}

// Discard deletes a draft, or a single attachment, after confirmation.
func (a *App) Discard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("discard <id>")
	}
	id := args[0]

	answer, err := GetSimpleText(a.reader, fmt.Sprintf("Discard %s? Local data cannot be recovered (y/N)", id), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		return nil
	}

	err = a.capture.DiscardRecord(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		err = a.capture.DiscardAsset(ctx, id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s discarded\n", id)
	return nil
}

var _ execIface = (*App)(nil)
