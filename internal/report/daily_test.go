package report

import "testing"

func TestMergeDaily(t *testing.T) {
	spend := []SpendPoint{
		{Date: "2024-05-02", Spend: 50},
		{Date: "2024-05-01", Spend: 100},
	}
	leads := []LeadPoint{
		{Date: "2024-05-01", Leads: 4},
		{Date: "2024-05-03", Leads: 2},
	}

	rows := MergeDaily(spend, leads)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, want := range []string{"2024-05-01", "2024-05-02", "2024-05-03"} {
		if rows[i].Date != want {
			t.Errorf("rows[%d].Date = %q, want %q (ascending order)", i, rows[i].Date, want)
		}
	}

	// Both measures populated on the shared day.
	if rows[0].Spend != 100 || rows[0].Leads != 4 {
		t.Errorf("merged day = %+v", rows[0])
	}
	if rows[0].CPL == nil || *rows[0].CPL != 25 {
		t.Errorf("CPL = %v, want 25", rows[0].CPL)
	}

	// Spend-only day has zero leads and null CPL.
	if rows[1].Leads != 0 || rows[1].CPL != nil {
		t.Errorf("spend-only day = %+v, want leads=0 cpl=nil", rows[1])
	}

	// Leads-only day has zero spend and a zero CPL value.
	if rows[2].Spend != 0 || rows[2].CPL == nil || *rows[2].CPL != 0 {
		t.Errorf("leads-only day = %+v", rows[2])
	}
}

func TestMergeDailyEmpty(t *testing.T) {
	if rows := MergeDaily(nil, nil); len(rows) != 0 {
		t.Fatalf("empty input produced %d rows", len(rows))
	}
}

func cplRow(date string, spend float64, leads int64) DailyRow {
	row := DailyRow{Date: date, Spend: spend, Leads: leads}
	if leads > 0 {
		cpl := spend / float64(leads)
		row.CPL = &cpl
	}
	return row
}

func TestBestAndWorstDay(t *testing.T) {
	rows := []DailyRow{
		cplRow("2024-05-01", 100, 10), // cpl 10
		cplRow("2024-05-02", 40, 8),   // cpl 5
		cplRow("2024-05-03", 90, 3),   // cpl 30
		cplRow("2024-05-04", 500, 0),  // no leads, never ranked
	}

	best := BestDay(rows)
	if best == nil || best.Date != "2024-05-02" {
		t.Errorf("best day = %+v, want 2024-05-02", best)
	}
	worst := WorstDay(rows)
	if worst == nil || worst.Date != "2024-05-03" {
		t.Errorf("worst day = %+v, want 2024-05-03", worst)
	}
}

func TestBestDayTieKeepsEarlier(t *testing.T) {
	rows := []DailyRow{
		cplRow("2024-05-01", 50, 10),
		cplRow("2024-05-02", 50, 10),
	}
	best := BestDay(rows)
	if best == nil || best.Date != "2024-05-01" {
		t.Errorf("tie should keep the earlier day, got %+v", best)
	}
}

func TestBestDayNoQualifyingRows(t *testing.T) {
	rows := []DailyRow{cplRow("2024-05-01", 100, 0)}
	if BestDay(rows) != nil || WorstDay(rows) != nil {
		t.Error("days without leads must not be ranked")
	}
}

func TestTopSpendDay(t *testing.T) {
	rows := []DailyRow{
		cplRow("2024-05-01", 10, 0),
		cplRow("2024-05-02", 70, 1),
		cplRow("2024-05-03", 70, 5),
	}
	top := TopSpendDay(rows)
	if top == nil || top.Date != "2024-05-02" {
		t.Errorf("top spend day = %+v, want earlier of the tied days", top)
	}
	if TopSpendDay(nil) != nil {
		t.Error("empty series should yield nil")
	}
}
