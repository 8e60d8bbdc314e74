package baseline

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/roach88/eagraph/internal/model"
)

// Diff lists ids that differ between two baselines. Each list is sorted.
type Diff struct {
	From string `json:"from"`
	To   string `json:"to"`

	AddedElements   []string `json:"addedElements"`
	RemovedElements []string `json:"removedElements"`
	ChangedElements []string `json:"changedElements"`

	AddedRelationships   []string `json:"addedRelationships"`
	RemovedRelationships []string `json:"removedRelationships"`
	ChangedRelationships []string `json:"changedRelationships"`
}

// Empty reports whether the baselines hold the same content.
func (d Diff) Empty() bool {
	return len(d.AddedElements)+len(d.RemovedElements)+len(d.ChangedElements)+
		len(d.AddedRelationships)+len(d.RemovedRelationships)+len(d.ChangedRelationships) == 0
}

// Compare reports what changed going from a to b. A status change
// (tombstoning) counts as a changed element.
func Compare(a, b *Baseline) Diff {
	d := Diff{From: a.ID, To: b.ID}

	d.AddedElements, d.RemovedElements, d.ChangedElements = diffByID(
		a.Elements, b.Elements,
		func(el model.Element) string { return el.ID },
		func(x, y model.Element) bool { return x.Equal(y) })

	d.AddedRelationships, d.RemovedRelationships, d.ChangedRelationships = diffByID(
		a.Relationships, b.Relationships,
		func(rel model.Relationship) string { return rel.ID },
		func(x, y model.Relationship) bool { return x.Equal(y) })

	return d
}

func diffByID[T any](before, after []T, id func(T) string, equal func(T, T) bool) (added, removed, changed []string) {
	old := make(map[string]T, len(before))
	for _, v := range before {
		old[id(v)] = v
	}
	seen := make(map[string]struct{}, len(after))
	for _, v := range after {
		key := id(v)
		seen[key] = struct{}{}
		prev, ok := old[key]
		switch {
		case !ok:
			added = append(added, key)
		case !equal(prev, v):
			changed = append(changed, key)
		}
	}
	for key := range old {
		if _, ok := seen[key]; !ok {
			removed = append(removed, key)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	slices.Sort(changed)
	return added, removed, changed
}

// Render writes a plain-text summary.
func (d Diff) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "diff %s -> %s\n", d.From, d.To)
	if d.Empty() {
		b.WriteString("no changes\n")
	}
	section := func(label string, ids []string) {
		for _, id := range ids {
			fmt.Fprintf(&b, "%s %s\n", label, id)
		}
	}
	section("+ element", d.AddedElements)
	section("- element", d.RemovedElements)
	section("~ element", d.ChangedElements)
	section("+ relationship", d.AddedRelationships)
	section("- relationship", d.RemovedRelationships)
	section("~ relationship", d.ChangedRelationships)
	_, err := io.WriteString(w, b.String())
	return err
}
