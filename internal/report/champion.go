package report

import "strings"

// Group is a named spend bucket (a campaign, ad set or ad) with its
// attributed lead quantity.
type Group struct {
	Name     string
	Spend    float64
	Quantity int64
}

// NotApplicable is reported when no group has attributed leads.
const NotApplicable = "N/A"

// Champion returns the name of the group with the lowest cost per lead.
// Groups without leads never qualify; ties go to the group with more leads.
func Champion(groups []Group) string {
	var best *Group
	for i := range groups {
		g := groups[i]
		if g.Quantity <= 0 {
			continue
		}
		if best == nil {
			best = &groups[i]
			continue
		}
		cplBest := best.Spend / float64(best.Quantity)
		cplG := g.Spend / float64(g.Quantity)
		if cplG < cplBest || (cplG == cplBest && g.Quantity > best.Quantity) {
			best = &groups[i]
		}
	}
	if best == nil {
		return NotApplicable
	}
	name := strings.TrimSpace(best.Name)
	if name == "" {
		return NotApplicable
	}
	return name
}
