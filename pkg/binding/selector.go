package binding

import (
	"slices"

	"github.com/polisai/polis-bindings/pkg/domain"
)

// Select returns the instances that carry every required tag, ordered by the
// position of their label in criteria.CandidateLabels. Labels missing from
// the list sort last; ties keep encounter order. With no candidate labels the
// encounter order is kept as is. The input slice is not modified.
func Select(instances []domain.ServiceInstance, criteria domain.SelectionCriteria) []domain.ServiceInstance {
	selected := make([]domain.ServiceInstance, 0, len(instances))
	for _, instance := range instances {
		if hasAllTags(instance, criteria.RequiredTags) {
			selected = append(selected, instance)
		}
	}

	if len(criteria.CandidateLabels) == 0 {
		return selected
	}

	rank := func(label string) int {
		if i := slices.Index(criteria.CandidateLabels, label); i >= 0 {
			return i
		}
		return len(criteria.CandidateLabels)
	}
	slices.SortStableFunc(selected, func(a, b domain.ServiceInstance) int {
		return rank(a.Label()) - rank(b.Label())
	})
	return selected
}

func hasAllTags(instance domain.ServiceInstance, required []string) bool {
	for _, tag := range required {
		if !instance.HasTag(tag) {
			return false
		}
	}
	return true
}

// SelectFirst returns the most preferred matching instance.
func SelectFirst(instances []domain.ServiceInstance, criteria domain.SelectionCriteria) (domain.ServiceInstance, bool) {
	selected := Select(instances, criteria)
	if len(selected) == 0 {
		return domain.ServiceInstance{}, false
	}
	return selected[0], true
}
