package cookiebroom

import (
	"path/filepath"
	"testing"
)

func testChromeStore() Store {
	return Store{
		Browser:    "Chrome",
		Profile:    "Default",
		Path:       "/home/u/.config/google-chrome/Default/Cookies",
		Dialect:    DialectChromium,
		Executable: "chrome",
	}
}

func testFirefoxStore() Store {
	return Store{
		Browser:    "Firefox",
		Profile:    "default-release",
		Path:       "/home/u/.mozilla/firefox/abc.default-release/cookies.sqlite",
		Dialect:    DialectFirefox,
		Executable: "firefox",
	}
}

func TestBuildPlanGroupsAndPatterns(t *testing.T) {
	chrome := testChromeStore()
	firefox := testFirefoxStore()

	records := []CookieRecord{
		{Domain: "ads.net", HostKey: ".ads.net", Name: "a", Store: chrome},
		{Domain: "ads.net", HostKey: ".ads.net", Name: "b", Store: chrome},
		{Domain: "ads.net", HostKey: "ads.net", Name: "c", Store: chrome},
		{Domain: "tracker.io", HostKey: ".tracker.io", Name: "d", Store: firefox},
	}

	pl := &Planner{BackupRoot: "/backups"}
	plan, err := pl.BuildPlan(records, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(plan.Operations) != 2 {
		t.Fatalf("want 2 operations, got %d", len(plan.Operations))
	}
	if plan.TotalCookiesToDelete != 4 {
		t.Errorf("TotalCookiesToDelete = %d, want 4", plan.TotalCookiesToDelete)
	}
	if plan.AffectedProfiles != 2 {
		t.Errorf("AffectedProfiles = %d, want 2", plan.AffectedProfiles)
	}

	// Operations sort by browser name, so Chrome comes first.
	op := plan.Operations[0]
	if op.Browser != "Chrome" || op.Profile != "Default" {
		t.Fatalf("unexpected first operation: %+v", op)
	}
	if op.Executable != "chrome" {
		t.Errorf("Executable = %q", op.Executable)
	}
	if len(op.Targets) != 2 {
		t.Fatalf("want 2 targets, got %d", len(op.Targets))
	}

	// Targets sort by raw host key: ".ads.net" before "ads.net".
	dotted, literal := op.Targets[0], op.Targets[1]
	if dotted.MatchPattern != "%.ads.net" || dotted.Count != 2 {
		t.Errorf("dotted target = %+v", dotted)
	}
	if literal.MatchPattern != "ads.net" || literal.Count != 1 {
		t.Errorf("literal target = %+v", literal)
	}
	if dotted.NormalizedDomain != "ads.net" || literal.NormalizedDomain != "ads.net" {
		t.Errorf("normalized domains: %q, %q", dotted.NormalizedDomain, literal.NormalizedDomain)
	}

	ff := plan.Operations[1]
	if ff.Browser != "Firefox" || ff.Targets[0].MatchPattern != "%.tracker.io" {
		t.Errorf("unexpected firefox operation: %+v", ff)
	}
}

func TestBuildPlanBackupPaths(t *testing.T) {
	pl := &Planner{BackupRoot: "/backups"}
	plan, err := pl.BuildPlan([]CookieRecord{
		{Domain: "x.com", HostKey: "x.com", Name: "a", Store: testChromeStore()},
		{Domain: "y.com", HostKey: "y.com", Name: "b", Store: testFirefoxStore()},
	}, false)
	if err != nil {
		t.Fatal(err)
	}

	stamp := plan.Timestamp.UTC().Format(backupStampLayout)
	want := filepath.Join("/backups", "Chrome", "Default", "Cookies."+stamp+".bak")
	if plan.Operations[0].BackupPath != want {
		t.Errorf("backup path = %q, want %q", plan.Operations[0].BackupPath, want)
	}

	// One plan, one timestamp: every operation shares the stamp.
	ffWant := filepath.Join("/backups", "Firefox", "default-release", "cookies.sqlite."+stamp+".bak")
	if plan.Operations[1].BackupPath != ffWant {
		t.Errorf("firefox backup path = %q, want %q", plan.Operations[1].BackupPath, ffWant)
	}
}

func TestBuildPlanDeterministicOrder(t *testing.T) {
	records := []CookieRecord{
		{Domain: "b.com", HostKey: "b.com", Store: testFirefoxStore()},
		{Domain: "a.com", HostKey: ".a.com", Store: testChromeStore()},
		{Domain: "c.com", HostKey: "c.com", Store: testChromeStore()},
	}
	pl := &Planner{BackupRoot: "/b"}

	first, err := pl.BuildPlan(records, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := pl.BuildPlan(records, false)
		if err != nil {
			t.Fatal(err)
		}
		for j := range first.Operations {
			if first.Operations[j].DBPath != again.Operations[j].DBPath {
				t.Fatalf("operation order changed between builds")
			}
			for k := range first.Operations[j].Targets {
				if first.Operations[j].Targets[k] != again.Operations[j].Targets[k] {
					t.Fatalf("target order changed between builds")
				}
			}
		}
	}
}

func TestBuildPlanEmptyAndMalformed(t *testing.T) {
	pl := &Planner{BackupRoot: "/b"}

	plan, err := pl.BuildPlan(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Operations) != 0 || !plan.DryRun {
		t.Fatalf("empty input should yield an empty dry-run plan")
	}

	_, err = pl.BuildPlan([]CookieRecord{{Domain: "x.com", HostKey: "", Store: testChromeStore()}}, false)
	if err == nil {
		t.Fatalf("empty host key must be rejected")
	}

	noStore := CookieRecord{Domain: "x.com", HostKey: "x.com"}
	if _, err := pl.BuildPlan([]CookieRecord{noStore}, false); err == nil {
		t.Fatalf("missing store path must be rejected")
	}
}

func TestBuildPlanExecutableFallback(t *testing.T) {
	store := testChromeStore()
	store.Executable = ""

	plan, err := (&Planner{BackupRoot: "/b"}).BuildPlan([]CookieRecord{
		{Domain: "x.com", HostKey: "x.com", Store: store},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := plan.Operations[0].Executable; got != "chrome" {
		t.Errorf("fallback executable = %q, want chrome (from path)", got)
	}
}

func TestMatchPatternFor(t *testing.T) {
	cases := map[string]string{
		".google.com": "%.google.com",
		"google.com":  "google.com",
		".a":          "%.a",
		"127.0.0.1":   "127.0.0.1",
	}
	for in, want := range cases {
		if got := matchPatternFor(in); got != want {
			t.Errorf("matchPatternFor(%q) = %q, want %q", in, got, want)
		}
	}
}
