package dialogue

import "sort"

// Link is a choice edge from one node to another.
type Link struct {
	From   NodeID
	Choice string
	To     NodeID
}

// LintReport lists structural problems that do not stop a scenario from loading.
type LintReport struct {
	Dangling    []Link   // Choices pointing at nodes that don't exist
	Unreachable []NodeID // Nodes not reachable from the root
	Endings     []NodeID // Nodes marked as endings
}

// Clean reports whether the lint found nothing worth warning about.
func (r *LintReport) Clean() bool {
	return len(r.Dangling) == 0 && len(r.Unreachable) == 0
}

// Lint walks the scenario from the root and reports dangling links and
// unreachable nodes. It is pure: it only reports.
func Lint(s *Scenario) *LintReport {
	report := &LintReport{}
	if s == nil {
		return report
	}

	// Pass 1: dangling links and endings
	for _, id := range s.ids {
		node := s.nodes[id]
		if node.IsEnding {
			report.Endings = append(report.Endings, id)
		}
		for _, c := range node.Choices {
			if c.IsRedirect() && c.URL != "" {
				continue
			}
			if _, ok := s.nodes[c.NextNodeID]; !ok {
				report.Dangling = append(report.Dangling, Link{From: id, Choice: c.ID, To: c.NextNodeID})
			}
		}
	}

	// Pass 2: reachability from root (breadth-first)
	seen := map[NodeID]bool{RootID: true}
	queue := []NodeID{RootID}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		node := s.nodes[curr]
		if node == nil {
			continue
		}
		for _, c := range node.Choices {
			if c.IsRedirect() && c.URL != "" {
				continue
			}
			if _, ok := s.nodes[c.NextNodeID]; ok && !seen[c.NextNodeID] {
				seen[c.NextNodeID] = true
				queue = append(queue, c.NextNodeID)
			}
		}
	}
	for _, id := range s.ids {
		if !seen[id] {
			report.Unreachable = append(report.Unreachable, id)
		}
	}
	sort.Slice(report.Dangling, func(i, j int) bool {
		if report.Dangling[i].From != report.Dangling[j].From {
			return report.Dangling[i].From < report.Dangling[j].From
		}
		return report.Dangling[i].Choice < report.Dangling[j].Choice
	})

	return report
}
