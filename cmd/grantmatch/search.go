package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/db"
	"github.com/david/grant-matcher/internal/grantfile"
	"github.com/david/grant-matcher/internal/matching"
	"github.com/david/grant-matcher/internal/models"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Rank open grants against a free-text request",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "List open grants matching filters, without AI scoring",
	RunE:  runFilter,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every open grant",
	RunE:  runList,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, filterCmd, listCmd} {
		c.Flags().String("grants", "", "YAML grant file to use instead of the database")
		c.Flags().Bool("json", false, "print JSON instead of a table")
		c.Flags().Int("limit", 0, "show at most this many grants (0 = all)")
	}
	for _, c := range []*cobra.Command{searchCmd, filterCmd} {
		addFilterFlags(c.Flags())
	}
	searchCmd.Flags().String("user", "", "user id whose organization profile boosts matching issue areas")
	searchCmd.Flags().Bool("explain", false, "print the interpreted criteria before the ranking")
}

func addFilterFlags(fs *pflag.FlagSet) {
	fs.String("issue-area", "", "only grants whose issue area contains this text")
	fs.String("scope", "", "only grants whose scope contains this text")
	fs.Float64("min-funding", 0, "only grants whose funding can reach this amount")
	fs.Float64("max-funding", 0, "only grants whose funding starts at or below this amount")
}

func filtersFromFlags(cmd *cobra.Command) *models.HardFilters {
	var f models.HardFilters
	f.IssueArea, _ = cmd.Flags().GetString("issue-area")
	f.Scope, _ = cmd.Flags().GetString("scope")
	if cmd.Flags().Changed("min-funding") {
		v, _ := cmd.Flags().GetFloat64("min-funding")
		f.FundingMin = &v
	}
	if cmd.Flags().Changed("max-funding") {
		v, _ := cmd.Flags().GetFloat64("max-funding")
		f.FundingMax = &v
	}
	if f.IsZero() {
		return nil
	}
	return &f
}

// buildEngine wires the engine to the grant file when given, else to the
// database. The returned func releases resources.
func buildEngine(ctx context.Context, cmd *cobra.Command) (*matching.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := ai.NewPoolFromConfig(cfg.Credentials)
	if err != nil {
		return nil, nil, err
	}

	if path, _ := cmd.Flags().GetString("grants"); path != "" {
		store, err := grantfile.Load(path)
		if err != nil {
			return nil, nil, err
		}
		return matching.NewEngine(store, store, pool, cfg.Matching), func() {}, nil
	}

	conn, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := db.NewStore(conn)
	return matching.NewEngine(store, store, pool, cfg.Matching), conn.Close, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, closeFn, err := buildEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	req := matching.SearchRequest{
		Query:   strings.Join(args, " "),
		Filters: filtersFromFlags(cmd),
	}
	if raw, _ := cmd.Flags().GetString("user"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		req.UserID = &id
		req.UseProfilePreferences = true
	}

	started := time.Now()
	res, err := engine.SearchGrants(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, res)
	}
	if explain, _ := cmd.Flags().GetBool("explain"); explain {
		renderCriteria(out, res.Criteria)
	}
	renderGrants(out, limitGrants(cmd, res.Grants), true)
	fmt.Fprintf(out, "%d of %d candidates shown in %s", len(res.Grants), res.CandidateCount, time.Since(started).Round(time.Millisecond))
	if res.CacheHit {
		fmt.Fprint(out, " (cached)")
	}
	if res.DegradedBatches > 0 {
		fmt.Fprintf(out, " (%d batch(es) scored without AI)", res.DegradedBatches)
	}
	fmt.Fprintln(out)
	return nil
}

func runFilter(cmd *cobra.Command, _ []string) error {
	engine, closeFn, err := buildEngine(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	var filters models.HardFilters
	if f := filtersFromFlags(cmd); f != nil {
		filters = *f
	}
	grants, err := engine.FilterGrantsManually(cmd.Context(), filters)
	if err != nil {
		return err
	}
	return printGrants(cmd, grants)
}

func runList(cmd *cobra.Command, _ []string) error {
	engine, closeFn, err := buildEngine(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	grants, err := engine.GetAllGrants(cmd.Context())
	if err != nil {
		return err
	}
	return printGrants(cmd, grants)
}

func printGrants(cmd *cobra.Command, grants []models.ScoredGrant) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), grants)
	}
	renderGrants(cmd.OutOrStdout(), limitGrants(cmd, grants), false)
	return nil
}

func limitGrants(cmd *cobra.Command, grants []models.ScoredGrant) []models.ScoredGrant {
	if n, _ := cmd.Flags().GetInt("limit"); n > 0 && n < len(grants) {
		return grants[:n]
	}
	return grants
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderCriteria(w io.Writer, c models.SearchCriteria) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Interpreted criteria")
	t.AppendRow(table.Row{"Issue areas", strings.Join(c.IssueAreas, ", ")})
	t.AppendRow(table.Row{"Funding", matching.FormatFundingRange(c.FundingMin, c.FundingMax)})
	t.AppendRow(table.Row{"Scope", deref(c.Scope)})
	t.AppendRow(table.Row{"Urgency", deref(c.Urgency)})
	t.AppendRow(table.Row{"Keywords", strings.Join(c.Keywords, ", ")})
	t.AppendRow(table.Row{"Exclusions", strings.Join(c.Exclusions, ", ")})
	t.AppendRow(table.Row{"Confidence", fmt.Sprintf("%.2f", c.Confidence)})
	t.Render()
}

func renderGrants(w io.Writer, grants []models.ScoredGrant, withReasons bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := table.Row{"#", "Score", "Title", "Issue Area", "Funding", "Deadline"}
	if withReasons {
		header = append(header, "Why")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 40},
		{Number: 7, WidthMax: 60},
	})

	for i, g := range grants {
		score := fmt.Sprintf("%d", g.Score)
		if g.Degraded {
			score += "*"
		}
		row := table.Row{i + 1, score, g.Title, g.IssueArea, matching.FormatFundingRange(g.FundingMin, g.FundingMax), matching.FormatDeadline(g.Deadline)}
		if withReasons {
			row = append(row, strings.Join(g.WhyMatches, "; "))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
