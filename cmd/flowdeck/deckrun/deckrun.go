// Package deckrun implements the flowdeck CLI: offline flow validation and
// migration, plus run dispatch and observation against a remote engine.
package deckrun

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/flowdeck/flowdeck/pkg/client"
	"github.com/flowdeck/flowdeck/pkg/client/stream"
	"github.com/flowdeck/flowdeck/pkg/flow/preflight"
	"github.com/flowdeck/flowdeck/pkg/flow/runsession"
	"github.com/flowdeck/flowdeck/pkg/flow/template"
	"github.com/flowdeck/flowdeck/pkg/flowio"
	"github.com/flowdeck/flowdeck/pkg/flowstore"
	"github.com/flowdeck/flowdeck/pkg/model/mrun"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

const usage = `usage: flowdeck <command> [flags]

commands:
  validate <flow.json|flow.yaml>   migrate and preflight-check a flow document
  migrate  <in> [-o <out>]         canonicalize a flow document
  flows                            list flows on the server
  runs     <flow-id> [-limit n]    list recent runs of a flow
  run      <flow-id>               start a run and stream its events
  watch    <run-id>                reattach to a run via the ledger

environment:
  FLOWDECK_SERVER   server base URL (default http://localhost:8400)
  FLOWDECK_CACHE    local run cache path (default ~/.flowdeck/cache.db)
  FLOWDECK_LOG      log level: debug, info, warn, error (default warn)
`

func Run() error {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "validate":
		return runValidate(args)
	case "migrate":
		return runMigrate(args)
	case "flows":
		return runFlows(ctx)
	case "runs":
		return runRuns(ctx, args)
	case "run":
		return runStart(ctx, args)
	case "watch":
		return runWatch(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func setupLogging() {
	level := slog.LevelWarn
	switch os.Getenv("FLOWDECK_LOG") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func serverURL() string {
	if v := os.Getenv("FLOWDECK_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8400"
}

func cachePath() string {
	if v := os.Getenv("FLOWDECK_CACHE"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "flowdeck-cache.db"
	}
	return filepath.Join(home, ".flowdeck", "cache.db")
}

func loadFlow(path string) (*mvflow.VisualFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return flowio.ImportYAML(data)
	}
	return flowio.ImportJSON(data)
}

func runValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("validate: expected one flow document path")
	}
	f, err := loadFlow(args[0])
	if err != nil {
		return err
	}
	for _, hint := range unknownKindHints(f) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", hint)
	}
	issues := preflight.Validate(f)
	if len(issues) == 0 {
		fmt.Printf("%s: ok (%d nodes, %d edges)\n", f.Name, len(f.Nodes), len(f.Edges))
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("%s: %s\n", issue.NodeLabel, issue.Message)
	}
	return fmt.Errorf("%d preflight issue(s)", len(issues))
}

// unknownKindHints flags node kinds outside the template registry. Unknown
// kinds pass through migration and preflight untouched, so a typo would
// otherwise validate silently.
func unknownKindHints(f *mvflow.VisualFlow) []string {
	var hints []string
	seen := map[string]bool{}
	for _, n := range f.Nodes {
		if _, ok := template.Lookup(n.Kind); ok || seen[n.Kind] {
			continue
		}
		seen[n.Kind] = true
		if ranks := template.Search(n.Kind); len(ranks) > 0 {
			hints = append(hints, fmt.Sprintf("unknown node kind %q (did you mean %q?)", n.Kind, ranks[0].Kind))
			continue
		}
		hints = append(hints, fmt.Sprintf("unknown node kind %q", n.Kind))
	}
	return hints
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	out := fs.String("o", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("migrate: expected one flow document path")
	}
	f, err := loadFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	data, err := flowio.ExportJSON(f)
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(*out, data, 0o644)
}

func runFlows(ctx context.Context) error {
	c := client.New(serverURL())
	flows, err := c.ListFlows(ctx)
	if err != nil {
		return err
	}
	for _, f := range flows {
		fmt.Printf("%s\t%s\t(%d nodes)\n", f.ID, f.Name, len(f.Nodes))
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("runs: expected a flow id")
	}
	c := client.New(serverURL())
	runs, err := c.ListRuns(ctx, fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s\t%s\t%s\n", r.RunID, mrun.StringRunStatus(r.Status), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runStart(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("run: expected a flow id")
	}
	flowID := args[0]

	c := client.New(serverURL())
	session := runsession.New(c, c, runsession.WithLogger(slog.Default()))
	defer session.Close()

	conn, err := stream.NewClient(wsURL(serverURL())).Dial(ctx, flowID)
	if err != nil {
		return err
	}
	defer conn.Close()

	runID, err := session.Start(ctx, flowID, nil)
	if err != nil {
		return err
	}
	fmt.Printf("run %s started\n", runID)

	for {
		select {
		case <-ctx.Done():
			session.Cancel(context.WithoutCancel(ctx), runID)
			return ctx.Err()
		case ev, ok := <-conn.Events():
			if !ok {
				// Stream lost; fall back to ledger polling.
				return watchLedger(ctx, session, runID)
			}
			session.ApplyEvent(ev)
			printEvent(ev)
			if v := session.Snapshot(); mrun.IsTerminal(v.Run.Status) {
				fmt.Printf("run %s %s\n", runID, mrun.StringRunStatus(v.Run.Status))
				return cacheRun(ctx, v)
			}
		}
	}
}

func runWatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("watch: expected a run id")
	}
	c := client.New(serverURL())
	session := runsession.New(c, c, runsession.WithLogger(slog.Default()))
	defer session.Close()
	return watchLedger(ctx, session, args[0])
}

// watchLedger reattaches to a run through the durable ledger, printing each
// refreshed snapshot until the run is terminal.
func watchLedger(ctx context.Context, session *runsession.Session, runID string) error {
	updates := session.Subscribe(ctx)
	session.Inspect(ctx, runID)

	var last mrun.RunStatus
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			if v.Run.Status != last {
				last = v.Run.Status
				fmt.Printf("run %s %s (%d events)\n", runID, mrun.StringRunStatus(v.Run.Status), len(v.Events))
			}
			if mrun.IsTerminal(v.Run.Status) {
				return cacheRun(ctx, v)
			}
		}
	}
}

// cacheRun persists a finished run locally so it stays inspectable offline.
func cacheRun(ctx context.Context, v runsession.View) error {
	path := cachePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Debug("run cache unavailable", "error", err)
		return nil
	}
	store, err := flowstore.Open(path)
	if err != nil {
		slog.Debug("run cache unavailable", "error", err)
		return nil
	}
	defer store.Close()

	h := mrun.RunHistory{Run: v.Run, Events: append(v.Events, v.Traces...)}
	if err := store.SaveRunHistory(ctx, h); err != nil {
		slog.Debug("run cache write failed", "error", err)
	}
	return nil
}

func printEvent(ev mrun.ExecutionEvent) {
	if ev.IsTrace() {
		return
	}
	if ev.NodeID != "" {
		fmt.Printf("  [%s] %s\n", ev.Type, ev.NodeID)
		return
	}
	fmt.Printf("  [%s]\n", ev.Type)
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
