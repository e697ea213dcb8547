package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
)

func TestBuildReportResolvesRoles(t *testing.T) {
	t.Parallel()

	csv := "Tractor Name,Last Known Engine Hrs,Date,Field\n" +
		"T1,850,2024-03-01,North\n" +
		"Bessie,abc,2024-03-01,South\n"

	rep, err := buildReport("fleet.csv", strings.NewReader(csv), config.Options{})
	if err != nil {
		t.Fatalf("buildReport: %v", err)
	}

	if rep.Rows != 2 || rep.Columns != 4 {
		t.Fatalf("size = %dx%d, want 2x4", rep.Rows, rep.Columns)
	}

	byRole := map[string]roleReport{}
	for _, rr := range rep.Roles {
		byRole[rr.Role] = rr
	}
	if rr := byRole["nickname"]; rr.Match != "exact" || rr.Column != "tractor_name" {
		t.Fatalf("nickname = %+v", rr)
	}
	if rr := byRole["engine_hours"]; rr.Match != "exact" || rr.Column != "last_known_engine_hrs" {
		t.Fatalf("engine_hours = %+v", rr)
	}
	if rr := byRole["date"]; rr.Match != "exact" {
		t.Fatalf("date = %+v", rr)
	}
	if rr := byRole["location"]; rr.Match != "exact" || rr.Column != "field" {
		t.Fatalf("location = %+v", rr)
	}

	// One row has a non-numeric reading and gets dropped.
	if !rep.Usable || rep.Records != 1 || rep.Dropped != 1 {
		t.Fatalf("usable=%v records=%d dropped=%d, want true/1/1", rep.Usable, rep.Records, rep.Dropped)
	}
	if len(rep.Warnings) == 0 {
		t.Fatalf("expected a dropped-row warning")
	}
}

func TestBuildReportSuggestsNearMisses(t *testing.T) {
	t.Parallel()

	// "nicknmae" is a near miss for the nickname role; "weight" is not.
	csv := "nicknmae,weight\nT1,4500\n"

	rep, err := buildReport("odd.csv", strings.NewReader(csv), config.Options{})
	if err != nil {
		t.Fatalf("buildReport: %v", err)
	}

	var nick roleReport
	for _, rr := range rep.Roles {
		if rr.Role == "nickname" {
			nick = rr
		}
	}
	if nick.Match != "none" {
		t.Fatalf("nickname = %+v, want unresolved", nick)
	}
	found := false
	for _, s := range nick.Suggestions {
		if s == "nicknmae" {
			found = true
		}
	}
	if !found {
		t.Fatalf("suggestions = %v, want to include nicknmae", nick.Suggestions)
	}
	if rep.Usable {
		t.Fatalf("file with no resolvable roles reported usable")
	}
}

func TestBuildReportColumnProfile(t *testing.T) {
	t.Parallel()

	csv := "nickname,hours,date\n" +
		"T1,100,2024-03-01\n" +
		"T2,,not-a-date\n"

	rep, err := buildReport("fleet.csv", strings.NewReader(csv), config.Options{})
	if err != nil {
		t.Fatalf("buildReport: %v", err)
	}

	byName := map[string]columnReport{}
	for _, c := range rep.ColumnTypes {
		byName[c.Name] = c
	}
	if c := byName["hours"]; c.Numeric != 1 || c.Empty != 1 {
		t.Fatalf("hours profile = %+v", c)
	}
	if c := byName["date"]; c.Dates != 1 || c.Text != 1 {
		t.Fatalf("date profile = %+v", c)
	}
	if c := byName["nickname"]; c.Text != 2 {
		t.Fatalf("nickname profile = %+v", c)
	}
}

func TestPrintReportText(t *testing.T) {
	t.Parallel()

	csv := "nickname,hours\nT1,100\n"
	rep, err := buildReport("fleet.csv", strings.NewReader(csv), config.Options{})
	if err != nil {
		t.Fatalf("buildReport: %v", err)
	}

	var buf bytes.Buffer
	printReport(&buf, rep)
	out := buf.String()
	for _, want := range []string{"fleet.csv", "nickname", "engine_hours", "result: usable, 1 records"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
