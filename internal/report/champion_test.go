package report

import "testing"

func TestChampionLowestCPL(t *testing.T) {
	groups := []Group{
		{Name: "A", Spend: 100, Quantity: 10}, // cpl 10
		{Name: "B", Spend: 40, Quantity: 8},   // cpl 5
	}
	if got := Champion(groups); got != "B" {
		t.Fatalf("champion = %q, want B", got)
	}
}

func TestChampionTieGoesToHigherQuantity(t *testing.T) {
	groups := []Group{
		{Name: "A", Spend: 50, Quantity: 10}, // cpl 5
		{Name: "B", Spend: 100, Quantity: 20}, // cpl 5
	}
	if got := Champion(groups); got != "B" {
		t.Fatalf("champion = %q, want higher-quantity B on tie", got)
	}
}

func TestChampionIgnoresZeroQuantity(t *testing.T) {
	groups := []Group{
		{Name: "A", Spend: 1, Quantity: 0},
		{Name: "B", Spend: 900, Quantity: 3},
	}
	if got := Champion(groups); got != "B" {
		t.Fatalf("champion = %q, want B (zero-quantity groups never qualify)", got)
	}
}

func TestChampionNotApplicable(t *testing.T) {
	if got := Champion(nil); got != NotApplicable {
		t.Errorf("empty groups: %q, want %q", got, NotApplicable)
	}
	groups := []Group{{Name: "A", Spend: 10, Quantity: 0}}
	if got := Champion(groups); got != NotApplicable {
		t.Errorf("no qualifying group: %q, want %q", got, NotApplicable)
	}
	blank := []Group{{Name: "   ", Spend: 10, Quantity: 2}}
	if got := Champion(blank); got != NotApplicable {
		t.Errorf("blank-named champion: %q, want %q", got, NotApplicable)
	}
}
