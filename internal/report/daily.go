package report

import "sort"

// SpendPoint is one day of ad spend.
type SpendPoint struct {
	Date  string
	Spend float64
}

// LeadPoint is one day of attributed lead counts.
type LeadPoint struct {
	Date  string
	Leads int64
}

// DailyRow is the merged series entry returned by /metrics/daily. CPL is nil
// for days without leads.
type DailyRow struct {
	Date  string   `json:"date"`
	Spend float64  `json:"spend"`
	Leads int64    `json:"leads"`
	CPL   *float64 `json:"cpl"`
}

// MergeDaily left-joins spend and lead series by date. Days present in only
// one series keep a zero for the other measure; rows come back in ascending
// date order.
func MergeDaily(spend []SpendPoint, leads []LeadPoint) []DailyRow {
	type agg struct {
		spend float64
		leads int64
	}
	byDate := make(map[string]*agg, len(spend))
	for _, p := range spend {
		if p.Date == "" {
			continue
		}
		byDate[p.Date] = &agg{spend: p.Spend}
	}
	for _, p := range leads {
		if p.Date == "" {
			continue
		}
		cur, ok := byDate[p.Date]
		if !ok {
			cur = &agg{}
			byDate[p.Date] = cur
		}
		cur.leads = p.Leads
	}

	rows := make([]DailyRow, 0, len(byDate))
	for date, a := range byDate {
		row := DailyRow{Date: date, Spend: a.spend, Leads: a.leads}
		if a.leads > 0 {
			cpl := a.spend / float64(a.leads)
			row.CPL = &cpl
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

// BestDay returns the day with the lowest CPL among days that produced
// leads, or nil when no day qualifies.
func BestDay(rows []DailyRow) *DailyRow {
	return pickDay(rows, func(a, b DailyRow) bool { return *a.CPL < *b.CPL })
}

// WorstDay returns the day with the highest CPL among days that produced
// leads, or nil when no day qualifies.
func WorstDay(rows []DailyRow) *DailyRow {
	return pickDay(rows, func(a, b DailyRow) bool { return *a.CPL > *b.CPL })
}

func pickDay(rows []DailyRow, better func(a, b DailyRow) bool) *DailyRow {
	var best *DailyRow
	for i := range rows {
		if rows[i].Leads <= 0 || rows[i].CPL == nil {
			continue
		}
		if best == nil || better(rows[i], *best) {
			picked := rows[i]
			best = &picked
		}
	}
	return best
}

// TopSpendDay returns the day with the largest spend, or nil for an empty
// series. Ties keep the earlier day.
func TopSpendDay(rows []DailyRow) *DailyRow {
	var top *DailyRow
	for i := range rows {
		if top == nil || rows[i].Spend > top.Spend {
			picked := rows[i]
			top = &picked
		}
	}
	return top
}
