package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/cookiebroom/cookiebroom"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	cfg      *cookiebroom.Config
	cfgErr   error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cookiebroom",
	Short: "Delete browser cookies safely, with whitelist, backup and rollback",
	Long: `cookiebroom scans the cookie stores of installed browsers, protects
whitelisted domains, and deletes the rest through an engine that backs up
every store before touching it and restores the backup if anything fails.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List cookie domains across browsers",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var planCmd = &cobra.Command{
	Use:   "plan [domains...]",
	Short: "Build and validate a delete plan without executing it",
	RunE:  runPlan,
}

var cleanCmd = &cobra.Command{
	Use:   "clean [domains...]",
	Short: "Delete cookies for the named domains (or --all)",
	RunE:  runClean,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <domain>",
	Short: "Show the cookies stored for one domain, decrypted where possible",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage protected domains",
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show whitelist entries",
	Args:  cobra.NoArgs,
	RunE:  runWhitelistList,
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <entry>",
	Short: "Add a whitelist entry (domain:, exact: or ip: prefix)",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistAdd,
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <entry>",
	Short: "Remove a whitelist entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistRemove,
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage cookie store backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing backups",
	Args:  cobra.NoArgs,
	RunE:  runBackupsList,
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore <backup>",
	Short: "Copy a backup over the live cookie store",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupsRestore,
}

var backupsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  runBackupsCleanup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: <user config dir>/cookiebroom/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	scanCmd.Flags().StringArrayP("browser", "b", nil, "restrict to a browser, repeatable")
	scanCmd.Flags().Bool("json", false, "machine-readable output")

	planCmd.Flags().Bool("all", false, "plan every unprotected domain")
	planCmd.Flags().Bool("dry-run", false, "mark the plan as a dry run")
	planCmd.Flags().StringP("out", "o", "", "write plan JSON to a file instead of stdout")

	cleanCmd.Flags().Bool("all", false, "delete every unprotected domain")
	cleanCmd.Flags().Bool("dry-run", false, "report what would be deleted without changing anything")
	cleanCmd.Flags().Bool("yes", false, "confirm deletion; required outside dry runs")

	backupsListCmd.Flags().StringP("browser", "b", "", "filter by browser")
	backupsListCmd.Flags().StringP("profile", "p", "", "filter by profile")
	backupsRestoreCmd.Flags().String("to", "", "restore destination (default: the recorded original path)")
	backupsCleanupCmd.Flags().Int("days", 0, "retention in days (default: the configured value)")

	whitelistCmd.AddCommand(whitelistListCmd, whitelistAddCmd, whitelistRemoveCmd)
	backupsCmd.AddCommand(backupsListCmd, backupsRestoreCmd, backupsCleanupCmd)
	rootCmd.AddCommand(scanCmd, planCmd, cleanCmd, inspectCmd, whitelistCmd, backupsCmd)
}

func initConfig() {
	cfg, cfgErr = cookiebroom.LoadConfig(cfgFile)
	if cfgErr != nil {
		return
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))
}

func requireConfig() (*cookiebroom.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	return cfg, nil
}

func buildWhitelist(c *cookiebroom.Config) (*cookiebroom.Whitelist, error) {
	suffixes, warn := c.Suffixes()
	if warn != "" {
		slog.Warn(warn)
	}
	return c.BuildWhitelist(suffixes)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}
}

func printIssues(res cookiebroom.ValidationResult) {
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning %s: %s\n", w.Code, w.Message)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "error %s: %s\n", e.Code, e.Message)
	}
}

// domainSummary is one row of scan output.
type domainSummary struct {
	Domain    string   `json:"domain"`
	Count     int      `json:"count"`
	Browsers  []string `json:"browsers"`
	Protected bool     `json:"protected"`
}

func summarize(records []cookiebroom.CookieRecord, wl *cookiebroom.Whitelist) []domainSummary {
	type agg struct {
		count    int
		browsers map[string]struct{}
	}
	byDomain := make(map[string]*agg)
	for _, r := range records {
		a := byDomain[r.Domain]
		if a == nil {
			a = &agg{browsers: make(map[string]struct{})}
			byDomain[r.Domain] = a
		}
		a.count++
		a.browsers[r.Store.Browser] = struct{}{}
	}

	out := make([]domainSummary, 0, len(byDomain))
	for domain, a := range byDomain {
		browsers := make([]string, 0, len(a.browsers))
		for b := range a.browsers {
			browsers = append(browsers, b)
		}
		sort.Strings(browsers)
		out = append(out, domainSummary{
			Domain:    domain,
			Count:     a.count,
			Browsers:  browsers,
			Protected: wl.Matches(domain),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

func runScan(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	browsers, _ := cmd.Flags().GetStringArray("browser")
	asJSON, _ := cmd.Flags().GetBool("json")

	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}

	res, err := cookiebroom.Scan(cmd.Context(), cookiebroom.Options{Browsers: browsers})
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)

	summary := summarize(res.Records, wl)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	for _, s := range summary {
		mark := " "
		if s.Protected {
			mark = "*"
		}
		fmt.Printf("%s %5d  %-42s %s\n", mark, s.Count, s.Domain, strings.Join(s.Browsers, ", "))
	}
	fmt.Printf("\n%d cookies in %d stores, %d domains (* = whitelisted)\n",
		len(res.Records), len(res.Stores), len(summary))
	return nil
}

func checkDomainArgs(args []string, all bool) error {
	if all && len(args) > 0 {
		return errors.New("--all cannot be combined with explicit domains")
	}
	if !all && len(args) == 0 {
		return errors.New("name at least one domain or pass --all")
	}
	return nil
}

// gatherRecords scans with expired cookies included, so planned counts
// match the store contents the executor will see, then drops whitelisted
// records and narrows to the requested domains.
func gatherRecords(ctx context.Context, wl *cookiebroom.Whitelist, domains []string, all bool) ([]cookiebroom.CookieRecord, int, error) {
	res, err := cookiebroom.Scan(ctx, cookiebroom.Options{IncludeExpired: true})
	if err != nil {
		return nil, 0, err
	}
	printWarnings(res.Warnings)

	kept, protected := cookiebroom.FilterWhitelisted(res.Records, wl)
	if !all {
		kept = cookiebroom.SelectDomains(kept, domains)
	}
	return kept, protected, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out, _ := cmd.Flags().GetString("out")
	if err := checkDomainArgs(args, all); err != nil {
		return err
	}

	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}
	records, protected, err := gatherRecords(cmd.Context(), wl, args, all)
	if err != nil {
		return err
	}

	planner := cookiebroom.Planner{BackupRoot: c.Backup.Root}
	plan, err := planner.BuildPlan(records, dryRun)
	if err != nil {
		return err
	}

	validator := cookiebroom.Validator{Whitelist: wl}
	vres := validator.Validate(cmd.Context(), plan, cookiebroom.ValidateOptions{})
	printIssues(vres)

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "plan written to %s\n", out)
	} else {
		os.Stdout.Write(data)
	}
	fmt.Fprintf(os.Stderr, "plan %s: %d cookies in %d profiles, %d whitelisted records kept\n",
		plan.PlanID, plan.TotalCookiesToDelete, plan.AffectedProfiles, protected)

	if !vres.Valid() {
		return fmt.Errorf("plan failed validation with %d error(s)", len(vres.Errors))
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")
	if err := checkDomainArgs(args, all); err != nil {
		return err
	}

	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}
	records, protected, err := gatherRecords(cmd.Context(), wl, args, all)
	if err != nil {
		return err
	}
	if protected > 0 {
		fmt.Printf("%d whitelisted cookies will be kept\n", protected)
	}
	if len(records) == 0 {
		fmt.Println("nothing to delete")
		return nil
	}

	planner := cookiebroom.Planner{BackupRoot: c.Backup.Root}
	plan, err := planner.BuildPlan(records, dryRun)
	if err != nil {
		return err
	}

	validator := cookiebroom.Validator{Whitelist: wl}
	vres := validator.Validate(cmd.Context(), plan, cookiebroom.ValidateOptions{RecountStores: true})
	printIssues(vres)
	if !vres.Valid() {
		return fmt.Errorf("refusing to run: plan failed validation with %d error(s)", len(vres.Errors))
	}

	locks := &cookiebroom.LockResolver{}
	if blocked := locks.PreflightCheck(cmd.Context(), plan.Paths()); len(blocked) > 0 {
		names := make([]string, 0, len(blocked))
		for exe := range blocked {
			names = append(names, exe)
		}
		sort.Strings(names)
		return fmt.Errorf("close these browsers first: %s", strings.Join(names, ", "))
	}

	if !dryRun && !yes {
		fmt.Printf("would delete %d cookies from %d profiles\n",
			plan.TotalCookiesToDelete, plan.AffectedProfiles)
		return errors.New("refusing to delete without --yes (nothing changed)")
	}

	engine := cookiebroom.Executor{
		Locks:   locks,
		Backups: &cookiebroom.BackupManager{Root: c.Backup.Root},
	}
	report, err := engine.Execute(cmd.Context(), plan)
	if err != nil {
		var gate *cookiebroom.ProcessGateError
		if errors.As(err, &gate) {
			return fmt.Errorf("nothing deleted; close these browsers and retry: %s",
				strings.Join(gate.Blocking, ", "))
		}
		return err
	}

	printReport(report)
	if !report.Success() {
		return errors.New("some operations failed, see above")
	}
	return nil
}

func printReport(report *cookiebroom.DeleteReport) {
	for _, r := range report.Results {
		switch {
		case !r.Success:
			fmt.Printf("FAILED %s/%s: %s\n", r.Browser, r.Profile, r.Error)
			if r.RestoreError != "" {
				fmt.Printf("  restore failed: %s (backup kept at %s)\n", r.RestoreError, r.BackupPath)
			} else if r.Restored {
				fmt.Printf("  store restored from %s\n", r.BackupPath)
			}
		case report.DryRun:
			fmt.Printf("%s/%s: would delete %d cookies\n", r.Browser, r.Profile, r.WouldDelete)
		default:
			fmt.Printf("%s/%s: deleted %d cookies (backup: %s)\n", r.Browser, r.Profile, r.Deleted, r.BackupPath)
		}
	}
	if report.DryRun {
		fmt.Printf("dry run: %d cookies would be deleted\n", report.TotalWouldDelete)
	} else {
		fmt.Printf("deleted %d cookies\n", report.TotalDeleted)
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}

	res, err := cookiebroom.Scan(cmd.Context(), cookiebroom.Options{DecryptValues: true})
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)

	records := cookiebroom.SelectDomains(res.Records, args)
	if len(records) == 0 {
		fmt.Printf("no cookies for %s\n", args[0])
		return nil
	}

	for _, r := range records {
		expiry := "session"
		if r.Expires != nil {
			expiry = r.Expires.Format("2006-01-02 15:04")
		}
		var flags []string
		if r.Secure {
			flags = append(flags, "secure")
		}
		if r.HTTPOnly {
			flags = append(flags, "httponly")
		}
		fmt.Printf("%s/%s  %s  %s=%s  expires %s  %s\n",
			r.Store.Browser, r.Store.Profile, r.HostKey, r.Name,
			truncateValue(r.Value), expiry, strings.Join(flags, ","))
	}
	if wl.Matches(args[0]) {
		fmt.Printf("\n%s is whitelisted; clean will not touch it\n", args[0])
	}
	return nil
}

func truncateValue(v string) string {
	const max = 64
	if len(v) <= max {
		return v
	}
	return v[:max] + "..."
}

func runWhitelistList(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}
	for _, e := range wl.SortedEntries() {
		fmt.Println(e.Raw)
	}
	return nil
}

func runWhitelistAdd(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}

	before := wl.Len()
	if err := wl.Add(args[0]); err != nil {
		if errors.Is(err, cookiebroom.ErrPublicSuffix) {
			return fmt.Errorf("%w (use exact: to protect a single host on it)", err)
		}
		return err
	}
	if wl.Len() == before {
		fmt.Printf("%s is already whitelisted\n", args[0])
		return nil
	}

	c.Whitelist = wl.Entries()
	if err := c.Save(); err != nil {
		return err
	}
	fmt.Printf("added %s\n", args[0])
	return nil
}

func runWhitelistRemove(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	wl, err := buildWhitelist(c)
	if err != nil {
		return err
	}

	if !wl.Remove(args[0]) {
		return fmt.Errorf("%s is not in the whitelist", args[0])
	}
	c.Whitelist = wl.Entries()
	if err := c.Save(); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	browser, _ := cmd.Flags().GetString("browser")
	profile, _ := cmd.Flags().GetString("profile")

	m := &cookiebroom.BackupManager{Root: c.Backup.Root}
	backups, err := m.ListBackups(browser, profile)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Println("no backups")
		return nil
	}
	for _, b := range backups {
		meta, err := m.Metadata(b)
		if err != nil {
			fmt.Printf("%s  (no metadata: %v)\n", b, err)
			continue
		}
		fmt.Printf("%s  %s/%s  taken %s\n",
			b, meta.Browser, meta.Profile, meta.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runBackupsRestore(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	dst, _ := cmd.Flags().GetString("to")

	m := &cookiebroom.BackupManager{Root: c.Backup.Root}
	if dst == "" {
		original, err := m.OriginalPath(args[0])
		if err != nil {
			return fmt.Errorf("no recorded original path, pass --to: %w", err)
		}
		dst = original
	}

	// Restoring over a store a browser holds open would corrupt it.
	locks := &cookiebroom.LockResolver{}
	if report := locks.CheckLock(cmd.Context(), dst); report.Locked {
		return fmt.Errorf("destination %s is locked (%s); close the browser first",
			dst, strings.Join(report.Blocking, ", "))
	}

	if err := m.RestoreBackup(args[0], dst); err != nil {
		return err
	}
	fmt.Printf("restored %s to %s\n", args[0], dst)
	return nil
}

func runBackupsCleanup(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	days := c.Backup.RetentionDays
	if cmd.Flags().Changed("days") {
		days, _ = cmd.Flags().GetInt("days")
	}

	m := &cookiebroom.BackupManager{Root: c.Backup.Root}
	removed, err := m.CleanupOldBackups(days)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d files older than %d days\n", removed, days)
	return nil
}
