package extract

import "sort"

// Load is the total estimate assigned to one person.
type Load struct {
	Assignee string  `json:"assignee"`
	Tasks    int     `json:"tasks"`
	Hours    float64 `json:"hours"`
	Unknown  int     `json:"unknown_estimates,omitempty"`
}

// Workload sums hours per assignee, heaviest first.
func Workload(assignments []TaskAssignment) []Load {
	byName := map[string]*Load{}
	var order []string
	for _, a := range assignments {
		l, ok := byName[a.Assignee]
		if !ok {
			l = &Load{Assignee: a.Assignee}
			byName[a.Assignee] = l
			order = append(order, a.Assignee)
		}
		l.Tasks++
		if h, ok := a.Hours(); ok {
			l.Hours += h
		} else {
			l.Unknown++
		}
	}

	out := make([]Load, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	return out
}

// Overloaded returns the loads above capacity hours.
func Overloaded(loads []Load, capacity float64) []Load {
	var out []Load
	for _, l := range loads {
		if capacity > 0 && l.Hours > capacity {
			out = append(out, l)
		}
	}
	return out
}
