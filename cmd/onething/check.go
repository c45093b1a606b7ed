package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
	"github.com/Veraticus/do-one-thing/internal/engine"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
)

// checkChunkSize is how many URLs from --file go into one batch call.
const checkChunkSize = 20

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [url...]",
		Short: "Check whether URLs are relevant to the current focus session",
		Long: `Run URLs through the same decision pipeline the browser uses.

Examples:
  onething check https://docs.python.org/3/
  onething check --title "Decorators in Python" https://realpython.com/primer-on-python-decorators/
  onething check --file history.txt   # one URL per line, # starts a comment`,
		RunE: runCheck,
	}

	cmd.Flags().String("title", "", "page title to classify with (single URL only)")
	cmd.Flags().StringP("file", "f", "", "read URLs from a file, '-' for stdin")
	cmd.Flags().Bool("json", false, "print verdicts as JSON lines")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	title, _ := cmd.Flags().GetString("title")
	file, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")

	if len(args) == 0 && file == "" {
		return fmt.Errorf("provide at least one URL or --file")
	}
	if title != "" && (len(args) != 1 || file != "") {
		return fmt.Errorf("--title can only be used with a single URL")
	}

	urls := args
	if file != "" {
		fromFile, err := readURLs(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	for _, u := range urls {
		if err := pattern.Validate(u); err != nil {
			return err
		}
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	out := cmd.OutOrStdout()
	if !a.engine.Active() && !asJSON {
		fmt.Fprintln(out, cli.FormatWarning("No active focus session, everything is allowed."))
	}

	var verdicts []model.Verdict
	if file == "" {
		verdicts = make([]model.Verdict, 0, len(urls))
		for _, u := range urls {
			verdicts = append(verdicts, a.engine.Classify(ctx, model.ClassificationRequest{URL: u, Title: title}))
		}
	} else {
		verdicts = checkBulk(ctx, a.engine, urls, cmd.ErrOrStderr())
	}

	return printVerdicts(out, verdicts, asJSON)
}

// checkBulk classifies urls in chunks with a progress bar. An interrupt stops
// after the current chunk and returns what was classified.
func checkBulk(ctx context.Context, eng *engine.Engine, urls []string, progressOut io.Writer) []model.Verdict {
	var done atomic.Int64
	handler := cli.NewInterruptHandler(progressOut)
	ctx = handler.HandleInterrupts(ctx, func() (int, int) { return int(done.Load()), len(urls) })

	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Checking URLs...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(progressOut)
		}),
	)

	verdicts := make([]model.Verdict, 0, len(urls))
	for start := 0; start < len(urls); start += checkChunkSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+checkChunkSize, len(urls))

		reqs := make([]model.ClassificationRequest, 0, end-start)
		for _, u := range urls[start:end] {
			reqs = append(reqs, model.ClassificationRequest{URL: u})
		}

		verdicts = append(verdicts, eng.ClassifyBatch(ctx, reqs)...)
		done.Store(int64(end))
		_ = bar.Add(len(reqs))
	}

	return verdicts
}

func readURLs(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL list: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

func printVerdicts(w io.Writer, verdicts []model.Verdict, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, v := range verdicts {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}

	blocked := 0
	for _, v := range verdicts {
		fmt.Fprintln(w, cli.FormatVerdict(v))
		if v.Blocked() {
			blocked++
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("%d checked, %d blocked", len(verdicts), blocked)))
	return nil
}
