package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/isolink-io/isolink/pkg/client"
	"github.com/isolink-io/isolink/pkg/discover"
	"github.com/isolink-io/isolink/pkg/manifest"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: isolink <command> [flags]

Commands:
  component-add   Register a component
  component-rm    Remove a component
  list            List registered components
  resolve         Resolve an indirect link from a source component
  canonicalize    Fold a component into its canonical class
  outcomes        Show resolution outcome counters
  journal         Show recent experiential journal entries
  graph           Dump the link graph projection as JSON
  trends          Show bucketed resolution statistics
  report          Download a journal or outcomes report
  discover        Scan a source tree and register file components
  webhook         Manage webhooks: add | list | rm
  prune           Expire persisted link events
  status          Show daemon health
  version         Print version information

The daemon address comes from ISOLINK_API (default http://127.0.0.1:8095),
the bearer token from ISOLINK_TOKEN.`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	endpoint := os.Getenv("ISOLINK_API")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8095"
	}
	c := client.NewClient(endpoint)
	if token := os.Getenv("ISOLINK_TOKEN"); token != "" {
		c.SetToken(token)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "component-add":
		err = cmdComponentAdd(c, args)
	case "component-rm":
		err = cmdComponentRm(c, args)
	case "list":
		err = cmdList(c, args)
	case "resolve":
		err = cmdResolve(c, args)
	case "canonicalize":
		err = cmdCanonicalize(c, args)
	case "outcomes":
		err = cmdOutcomes(c, args)
	case "journal":
		err = cmdJournal(c, args)
	case "graph":
		err = cmdGraph(c, args)
	case "trends":
		err = cmdTrends(c, args)
	case "report":
		err = cmdReport(c, args)
	case "discover":
		err = cmdDiscover(c, args)
	case "webhook":
		err = cmdWebhook(c, args)
	case "prune":
		err = cmdPrune(c, args)
	case "status":
		err = cmdStatus(c, args)
	case "version":
		fmt.Printf("isolink %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n%s\n", cmd, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		if strings.Contains(err.Error(), "connection refused") {
			fmt.Println("Is isolinkd running?")
		}
		os.Exit(1)
	}
}

func cmdComponentAdd(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("component-add", flag.ExitOnError)
	id := fs.String("id", "", "component ID (required)")
	anchor := fs.String("anchor", "", "seed one inert anchor")
	phase := fs.String("phase", "", "initial phase: dormant|witness|transform|residue")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("component-add requires -id")
	}

	res, err := c.CreateComponent(context.Background(), client.ComponentSpec{
		ComponentID: *id,
		Anchor:      *anchor,
		Phase:       *phase,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Component Registered: %s\n", res.ComponentID)
	return nil
}

func cmdComponentRm(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("component-rm", flag.ExitOnError)
	id := fs.String("id", "", "component ID (required)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("component-rm requires -id")
	}
	if err := c.DestroyComponent(context.Background(), *id); err != nil {
		return err
	}
	fmt.Printf("Component Removed: %s\n", *id)
	return nil
}

func cmdList(c *client.Client, args []string) error {
	views, err := c.ListComponents(context.Background())
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("No components registered.")
		return nil
	}
	fmt.Printf("%-28s %-10s %-14s %-24s %s\n", "COMPONENT", "PHASE", "CLASS", "REPRESENTATIVE", "ANCHORS")
	for _, v := range views {
		fmt.Printf("%-28s %-10s %-14s %-24s %s\n",
			v.ComponentID, v.Phase, v.Class, v.Representative, strings.Join(v.Anchors, ","))
	}
	return nil
}

func cmdResolve(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	from := fs.String("from", "", "source component ID (required)")
	anchor := fs.String("anchor", "", "target anchor (required)")
	fs.Parse(args)

	if *from == "" || *anchor == "" {
		return fmt.Errorf("resolve requires -from and -anchor")
	}

	res, err := c.Resolve(context.Background(), *from, *anchor)
	if err != nil {
		return err
	}
	if res.Linked {
		fmt.Printf("Linked: %s -> %s (anchor %q)\n", res.SourceID, res.TargetID, res.Anchor)
		return nil
	}
	reason := res.Reason
	if reason == "" {
		reason = "no activated residue matched"
	}
	fmt.Printf("Not linked: %s\n", reason)
	return nil
}

func cmdCanonicalize(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("canonicalize", flag.ExitOnError)
	id := fs.String("id", "", "component ID (required)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("canonicalize requires -id")
	}
	res, err := c.Canonicalize(context.Background(), *id)
	if err != nil {
		return err
	}
	if res.Merged {
		fmt.Printf("Merged into class of %s\n", res.Representative)
	} else {
		fmt.Printf("Promoted as representative: %s\n", res.Representative)
	}
	return nil
}

func cmdOutcomes(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("outcomes", flag.ExitOnError)
	id := fs.String("id", "", "limit to one component")
	fs.Parse(args)

	res, err := c.Outcomes(context.Background(), *id)
	if err != nil {
		return err
	}
	fmt.Printf("%-28s %-14s %8s %8s %8s %8s\n", "COMPONENT", "CLASS", "TP", "FP", "TN", "FN")
	for _, o := range res.Components {
		fmt.Printf("%-28s %-14s %8d %8d %8d %8d\n",
			o.ComponentID, o.Class,
			o.Metrics.TruePositiveLinks, o.Metrics.FalsePositiveLinks,
			o.Metrics.TrueNegativeSkips, o.Metrics.FalseNegativeMisses)
	}
	return nil
}

func cmdJournal(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	since := fs.Uint64("since", 0, "only entries after this sequence number")
	limit := fs.Int("limit", 50, "maximum entries to show")
	fs.Parse(args)

	res, err := c.Journal(context.Background(), *since, *limit)
	if err != nil {
		return err
	}
	if res.Dropped > 0 {
		fmt.Printf("(%d entries evicted from the ring)\n", res.Dropped)
	}
	for _, e := range res.Events {
		fmt.Printf("%6d  %s  %-16s %s -> %s  score=%.3f\n",
			e.Seq, e.Timestamp.Format(time.RFC3339), e.Type, e.SourceID, e.TargetID, e.Score)
	}
	fmt.Printf("Last sequence: %d\n", res.LastSeq)
	return nil
}

func cmdGraph(c *client.Client, args []string) error {
	g, err := c.GetGraph(context.Background())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdTrends(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	bucket := fs.String("bucket", "hour", "bucket size: hour|day")
	window := fs.Duration("window", 24*time.Hour, "how far back to aggregate")
	fs.Parse(args)

	opts := client.TrendsOptions{Bucket: *bucket}
	if *window > 0 {
		opts.From = time.Now().UTC().Add(-*window)
	}
	res, err := c.GetTrends(context.Background(), opts)
	if err != nil {
		return err
	}
	if len(res.Stats) == 0 {
		fmt.Println("No resolution activity in the window.")
		return nil
	}
	fmt.Printf("%-22s %-16s %6s %8s %8s %8s\n", "BUCKET", "TYPE", "COUNT", "MEAN", "MIN", "MAX")
	for _, s := range res.Stats {
		fmt.Printf("%-22s %-16s %6d %8.3f %8.3f %8.3f\n",
			s.BucketTs.Format("2006-01-02 15:04"), s.Type, s.Count, s.MeanScore, s.MinScore, s.MaxScore)
	}
	return nil
}

func cmdReport(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	kind := fs.String("kind", "journal", "report kind: journal|outcomes")
	format := fs.String("format", "csv", "report format: csv|json")
	out := fs.String("out", "", "write to file instead of stdout")
	window := fs.Duration("window", 0, "limit journal reports to this window")
	fs.Parse(args)

	opts := client.ReportOptions{Kind: *kind, Format: *format}
	if *window > 0 {
		opts.From = time.Now().UTC().Add(-*window)
	}

	body, err := c.GetReport(context.Background(), opts)
	if err != nil {
		return err
	}
	defer body.Close()

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		dst = f
	}
	if _, err := io.Copy(dst, body); err != nil {
		return err
	}
	if *out != "" {
		fmt.Printf("Report written to %s\n", *out)
	}
	return nil
}

func cmdDiscover(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	root := fs.String("root", ".", "source tree to scan")
	score := fs.Float64("score", 0, "constant activation for exported functions (0 = inert)")
	dryRun := fs.Bool("dry-run", false, "print seeds as JSON instead of registering them")
	fs.Parse(args)

	scanner := discover.Scanner{FunctionScore: *score}
	seeds, err := scanner.Scan(*root)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		fmt.Println("No source files found.")
		return nil
	}

	if *dryRun {
		out, err := json.MarshalIndent(seeds, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	registered := 0
	for _, seed := range seeds {
		if _, err := c.CreateComponent(context.Background(), seedToSpec(seed)); err != nil {
			return fmt.Errorf("register %s: %w", seed.ID, err)
		}
		registered++
	}
	fmt.Printf("Registered %d components from %s\n", registered, *root)
	return nil
}

// seedToSpec converts a scanned manifest component into the wire spec the
// daemon accepts.
func seedToSpec(comp manifest.Component) client.ComponentSpec {
	spec := client.ComponentSpec{
		ComponentID: comp.ID,
		Phase:       comp.Phase,
	}
	for _, a := range comp.Anchors {
		residue := client.ResidueSpec{Anchor: a.Name, Context: a.Context}
		if a.Activation != nil {
			residue.Activation = &client.ActivationSpec{
				Kind:   a.Activation.Kind,
				Score:  a.Activation.Score,
				Params: a.Activation.Params,
			}
		}
		spec.Residues = append(spec.Residues, residue)
	}
	for _, e := range comp.Edges {
		spec.Edges = append(spec.Edges, client.EdgeSpec{
			CallerID: e.Caller,
			CalleeID: e.Callee,
			Kind:     e.Kind,
			Weight:   e.Weight,
		})
	}
	return spec
}

func cmdWebhook(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("webhook requires a subcommand: add | list | rm")
	}
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("webhook add", flag.ExitOnError)
		url := fs.String("url", "", "delivery URL (required)")
		types := fs.String("types", "", "comma-separated event types (empty = all)")
		fs.Parse(args[1:])

		if *url == "" {
			return fmt.Errorf("webhook add requires -url")
		}
		var typeList []string
		if *types != "" {
			typeList = strings.Split(*types, ",")
		}
		creds, err := c.CreateWebhook(context.Background(), *url, typeList)
		if err != nil {
			return err
		}
		fmt.Printf("Webhook Registered: %s\n", creds.WebhookID)
		fmt.Printf("Secret: %s\n", creds.Secret)
		fmt.Println("WARNING: Save this secret! It will not be shown again.")
		return nil

	case "list":
		hooks, err := c.ListWebhooks(context.Background())
		if err != nil {
			return err
		}
		if len(hooks) == 0 {
			fmt.Println("No webhooks registered.")
			return nil
		}
		fmt.Printf("%-24s %-8s %-40s %s\n", "ID", "ACTIVE", "URL", "TYPES")
		for _, h := range hooks {
			fmt.Printf("%-24s %-8t %-40s %s\n", h.WebhookID, h.Active, h.URL, strings.Join(h.Types, ","))
		}
		return nil

	case "rm":
		fs := flag.NewFlagSet("webhook rm", flag.ExitOnError)
		id := fs.String("id", "", "webhook ID (required)")
		fs.Parse(args[1:])

		if *id == "" {
			return fmt.Errorf("webhook rm requires -id")
		}
		if err := c.DeleteWebhook(context.Background(), *id); err != nil {
			return err
		}
		fmt.Printf("Webhook Removed: %s\n", *id)
		return nil

	default:
		return fmt.Errorf("unknown webhook subcommand: %s", args[0])
	}
}

func cmdPrune(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	keep := fs.Duration("keep", 30*24*time.Hour, "retention window; older events are removed")
	fs.Parse(args)

	res, err := c.Prune(context.Background(), *keep)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d events before %s\n", res.Removed, res.Cutoff)
	return nil
}

func cmdStatus(c *client.Client, args []string) error {
	h, err := c.Ping(context.Background())
	if err != nil {
		return err
	}
	role := "follower"
	if h.Leader {
		role = "leader"
	}
	fmt.Printf("Status: %s | Role: %s | Components: %d\n", h.Status, role, h.Components)
	return nil
}
