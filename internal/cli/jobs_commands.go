package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"nsg-job-manager/internal/coordinator"
	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/progress"
)

func runJobs(args []string) error {
	if len(args) == 0 {
		printJobsUsage()
		return nil
	}
	switch args[0] {
	case "list":
		return runJobsList(args[1:])
	case "status":
		return runJobsStatus(args[1:])
	case "help", "-h", "--help":
		printJobsUsage()
		return nil
	default:
		printJobsUsage()
		return fmt.Errorf("unknown jobs subcommand %q", args[0])
	}
}

func printJobsUsage() {
	fmt.Println("usage:")
	fmt.Println("  nsg-job-manager jobs list [--search <text>] [--status all|failed|<stage>] [--sort <field>] [--desc=false] [--json]")
	fmt.Println("  nsg-job-manager jobs status <job-url> [--json]")
	fmt.Println()
	fmt.Printf("sort fields: %s\n", strings.Join(sortFieldNames(), ", "))
}

func sortFieldNames() []string {
	out := make([]string, 0, len(model.SortFields))
	for _, f := range model.SortFields {
		out = append(out, string(f))
	}
	return out
}

func parseViewCriteria(search, status, sortField string, desc bool) (model.ViewCriteria, error) {
	c := model.DefaultViewCriteria()
	c.SearchQuery = search
	if s := strings.TrimSpace(status); s != "" {
		c.StatusFilter = s
	}
	if f := strings.TrimSpace(sortField); f != "" {
		if !model.IsKnownSortField(model.SortField(f)) {
			return c, fmt.Errorf("unknown sort field %q (use %s)", f, strings.Join(sortFieldNames(), ", "))
		}
		c.SortField = model.SortField(f)
	}
	c.SortDirection = model.SortAsc
	if desc {
		c.SortDirection = model.SortDesc
	}
	return c, nil
}

func runJobsList(args []string) error {
	fs := flag.NewFlagSet("jobs list", flag.ContinueOnError)
	search := fs.String("search", "", "case-insensitive text search")
	status := fs.String("status", model.StatusFilterAll, "all, failed, or an exact job stage")
	sortField := fs.String("sort", string(model.SortDateSubmitted), "sort field")
	desc := fs.Bool("desc", true, "sort descending")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	criteria, err := parseViewCriteria(*search, *status, *sortField, *desc)
	if err != nil {
		return err
	}

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := connectSaved(context.Background(), a); err != nil {
		return err
	}
	if snap := a.coord.Jobs(); snap.Err != "" {
		return errors.New(snap.Err)
	}
	jobs := a.coord.View(criteria)
	if *jsonOut {
		return printJSON(jobs)
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs match")
		return nil
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		failed := ""
		if j.Failed {
			failed = "yes"
		}
		rows = append(rows, []string{
			j.JobID,
			orDash(model.StringValue(j.Tool)),
			orDash(model.StringValue(j.JobStage)),
			failed,
			orDash(model.StringValue(j.DateSubmitted)),
			orDash(model.StringValue(j.DateCompleted)),
			j.URL,
		})
	}
	return printTable(os.Stdout, []string{"Job ID", "Tool", "Stage", "Failed", "Submitted", "Completed", "URL"}, rows)
}

func runJobsStatus(args []string) error {
	fs := flag.NewFlagSet("jobs status", flag.ContinueOnError)
	jobURL := fs.String("job-url", "", "job URL (or pass it as the first argument)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	target, err := jobURLArg(*jobURL, fs.Args())
	if err != nil {
		return err
	}

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := connectSaved(ctx, a); err != nil {
		return err
	}
	details, err := a.coord.JobDetails(ctx, target)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(details)
	}
	failed := "no"
	if details.Failed {
		failed = "yes"
	}
	return printTable(os.Stdout, []string{"Field", "Value"}, [][]string{
		{"Job ID", details.JobID},
		{"Stage", orDash(details.JobStage)},
		{"Failed", failed},
		{"Submitted", orDash(model.StringValue(details.DateSubmitted))},
		{"URL", details.SelfURI},
		{"Results", orDash(model.StringValue(details.ResultsURI))},
	})
}

func jobURLArg(flagValue string, rest []string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" && len(rest) > 0 {
		target = strings.TrimSpace(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return "", fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}
	if target == "" {
		return "", errors.New("job URL is required")
	}
	return target, nil
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	file := fs.String("file", "", "input archive to upload")
	tool := fs.String("tool", "", "tool identifier, e.g. NEURON_EXPANSE")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("--file is required")
	}
	if strings.TrimSpace(*tool) == "" {
		return errors.New("--tool is required")
	}

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := connectSaved(ctx, a); err != nil {
		return err
	}
	jobID, err := a.coord.Submit(ctx, strings.TrimSpace(*file), strings.TrimSpace(*tool))
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]string{"job_id": jobID})
	}
	fmt.Printf("Job submitted: %s\n", jobID)
	return nil
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	jobURL := fs.String("job-url", "", "job URL (or pass it as the first argument)")
	dir := fs.String("dir", "", "output directory (defaults to the download directory setting)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	target, err := jobURLArg(*jobURL, fs.Args())
	if err != nil {
		return err
	}

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := connectSaved(ctx, a); err != nil {
		return err
	}

	showBar := !*jsonOut && stdinIsTTY()
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case ev := <-a.coord.Events():
				if showBar && ev.Kind == coordinator.DownloadProgress {
					fmt.Fprintf(os.Stderr, "\r%-90s", progress.Render(a.coord.DownloadState(), 30))
				}
			case <-done:
				return
			}
		}
	}()

	path, err := a.coord.DownloadTo(ctx, target, strings.TrimSpace(*dir))
	close(done)
	<-finished
	if showBar {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]string{"path": path})
	}
	fmt.Printf("saved: %s\n", path)
	return nil
}
