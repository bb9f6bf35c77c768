package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/celltrack/internal/config"
	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/format"
	"github.com/ETAnderson/celltrack/internal/view"
)

var editFlags struct {
	site    string
	phase   string
	delay   time.Duration
	timeout time.Duration
	quiet   bool
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply edits read from stdin",
	Long: "Reads one edit per line from stdin:\n\n" +
		"  <record> <field> <value...>\n\n" +
		"<record> is a test id, or testId@cell for per-cell tests. Lines\n" +
		"starting with # are ignored. Edits are debounced per record and\n" +
		"field; everything still pending is sent at end of input.",
	RunE: runEdit,
}

func init() {
	cfg := config.Load()

	f := editCmd.Flags()
	f.StringVar(&editFlags.site, "site", "", "site name (required)")
	f.StringVar(&editFlags.phase, "phase", "", "phase name (required)")
	f.DurationVar(&editFlags.delay, "delay", cfg.Debounce, "debounce delay per record field")
	f.DurationVar(&editFlags.timeout, "write-timeout", cfg.WriteTimeout, "timeout for a single write")
	f.BoolVar(&editFlags.quiet, "quiet", false, "skip the summary after the edits")

	_ = editCmd.MarkFlagRequired("site")
	_ = editCmd.MarkFlagRequired("phase")
}

func runEdit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	backend, release, err := openBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer release()

	v := view.New(backend, view.Config{
		Site:         editFlags.site,
		Phase:        editFlags.phase,
		Delay:        editFlags.delay,
		WriteTimeout: editFlags.timeout,
		Logger:       logger.Named("view"),
	})
	defer v.Close()

	if err := v.Load(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	applied, rejected := applyEdits(v, cmd.InOrStdin(), out)

	flushErr := v.Flush(ctx)

	notes := v.Notifications()
	for _, n := range notes {
		fmt.Fprintln(out, n.String())
	}
	fmt.Fprintf(out, "%d edits applied, %d rejected, %d not saved\n", applied, rejected, len(notes))

	if !editFlags.quiet {
		fmt.Fprintln(out, format.Summary(v.Groups(), format.ASCII))
	}

	if len(notes) > 0 {
		return fmt.Errorf("%d edits were not saved", len(notes))
	}
	if flushErr != nil {
		return fmt.Errorf("flush edits: %w", flushErr)
	}
	return nil
}

// editor is the part of *view.TestingView the edit loop drives.
type editor interface {
	SetField(key string, f domain.Field, value string) error
}

type edit struct {
	Key   string
	Field domain.Field
	Value string
}

var errSkipLine = errors.New("skip")

// parseEditLine splits "<record> <field> <value...>". The value keeps its
// inner spacing and may be empty (clears a note).
func parseEditLine(line string) (edit, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return edit{}, errSkipLine
	}

	key, rest := cutWord(line)
	field, value := cutWord(rest)
	if field == "" {
		return edit{}, fmt.Errorf("want <record> <field> <value>, got %q", line)
	}

	return edit{
		Key:   key,
		Field: domain.Field(field),
		Value: value,
	}, nil
}

// cutWord splits s at its first run of whitespace.
func cutWord(s string) (word string, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// applyEdits feeds every line of r to v and reports rejected lines to out.
func applyEdits(v editor, r io.Reader, out io.Writer) (applied int, rejected int) {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		e, err := parseEditLine(sc.Text())
		if errors.Is(err, errSkipLine) {
			continue
		}
		if err == nil {
			err = v.SetField(e.Key, e.Field, e.Value)
		}
		if err != nil {
			fmt.Fprintf(out, "line %d: %v\n", n, err)
			rejected++
			continue
		}
		applied++
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(out, "read input: %v\n", err)
	}
	return applied, rejected
}

var _ editor = (*view.TestingView)(nil)
