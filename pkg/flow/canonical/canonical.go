// Package canonical upgrades a loaded flow to the current node schema without
// losing user data or breaking edge connectivity. Migration is pure,
// deterministic, and a fixed point after one application: running it on an
// already-canonical flow changes nothing.
package canonical

import (
	"github.com/flowdeck/flowdeck/pkg/flow/template"
	"github.com/flowdeck/flowdeck/pkg/model/mnode"
	"github.com/flowdeck/flowdeck/pkg/model/mpin"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

// Migrate canonicalizes every node in place, then repairs the edge set.
// Nodes of unknown kinds pass through untouched; old graphs must never
// become unloadable.
func Migrate(f *mvflow.VisualFlow) {
	for i := range f.Nodes {
		migrateNode(f, &f.Nodes[i])
	}
	repairEdges(f)
}

func migrateNode(f *mvflow.VisualFlow, n *mnode.Node) {
	rule := rules[n.Kind]
	tpl, hasTpl := template.Lookup(n.Kind)

	renamePins(n, rule.Renames)
	foldPins(f, n, rule.Folds)
	if hasTpl {
		reorderCanonical(f, n, tpl, rule.DropUnused)
	}
	promoteConfig(n, rule.Promotions)
	if hasTpl {
		backfillLabel(n, tpl, rule.LegacyLabels)
		backfillDocs(n, tpl)
	}
}

// renamePins rewrites input pin ids per the rename table and merges any
// default stored under an old id into the new id. An existing value under
// the new id wins. Duplicate ids after renaming keep the first occurrence.
func renamePins(n *mnode.Node, renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	for i := range n.Inputs {
		if newID, ok := renames[n.Inputs[i].ID]; ok {
			n.Inputs[i].ID = newID
		}
	}
	for oldID, newID := range renames {
		v, ok := n.PinDefaults[oldID]
		if !ok {
			continue
		}
		if _, exists := n.PinDefaults[newID]; !exists {
			n.PinDefaults[newID] = v
		}
		delete(n.PinDefaults, oldID)
	}
	n.Inputs = dedupePins(n.Inputs)
}

func dedupePins(pins []mpin.Pin) []mpin.Pin {
	seen := make(map[string]bool, len(pins))
	out := pins[:0]
	for _, p := range pins {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// pinConnected reports whether the pin has an incident edge whose far
// endpoint also resolves. A dangling edge is about to be dropped by
// repairEdges, so it must not count as a connection here; otherwise the
// first run would keep deprecated schema alive that the second run drops.
func pinConnected(f *mvflow.VisualFlow, nodeID, pinID string) bool {
	for _, e := range f.Edges {
		if !e.TouchesPin(nodeID, pinID) {
			continue
		}
		src := f.Node(e.Source)
		dst := f.Node(e.Target)
		if src == nil || dst == nil {
			continue
		}
		if src.Output(e.SourceHandle) == nil || dst.Input(e.TargetHandle) == nil {
			continue
		}
		return true
	}
	return false
}

// foldPins collapses deprecated pin families into one structured default,
// but only while every folded pin is unconnected.
func foldPins(f *mvflow.VisualFlow, n *mnode.Node, folds []Fold) {
	for _, fold := range folds {
		present := false
		connected := false
		for _, pinID := range fold.Pins {
			if mpin.FindByID(n.Inputs, pinID) >= 0 {
				present = true
			}
			if pinConnected(f, n.ID, pinID) {
				connected = true
			}
		}
		if !present || connected {
			continue
		}

		obj := map[string]any{}
		if existing, ok := n.PinDefaults[fold.Target].(map[string]any); ok {
			obj = existing
		}
		for _, pinID := range fold.Pins {
			if v, ok := n.PinDefaults[pinID]; ok {
				key := fold.Keys[pinID]
				if key == "" {
					key = pinID
				}
				if _, exists := obj[key]; !exists {
					obj[key] = v
				}
				delete(n.PinDefaults, pinID)
			}
		}
		if len(obj) > 0 {
			if n.PinDefaults == nil {
				n.PinDefaults = map[string]any{}
			}
			n.PinDefaults[fold.Target] = obj
		}
		n.Inputs = removePins(n.Inputs, fold.Pins)
	}
}

func removePins(pins []mpin.Pin, ids []string) []mpin.Pin {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := pins[:0]
	for _, p := range pins {
		if !drop[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// reorderCanonical rebuilds the pin lists in template order, reusing the
// existing pin object wherever present so user renames of labels or types
// are not stomped. Pins outside the canonical set are appended after the
// canonical ones, except deprecated-and-unconnected ones, which are dropped.
func reorderCanonical(f *mvflow.VisualFlow, n *mnode.Node, tpl template.Template, dropUnused []string) {
	n.Inputs = reorderSide(f, n.ID, n.Inputs, tpl.Inputs, dropUnused)
	n.Outputs = reorderSide(f, n.ID, n.Outputs, tpl.Outputs, dropUnused)
}

func reorderSide(f *mvflow.VisualFlow, nodeID string, have, canon []mpin.Pin, dropUnused []string) []mpin.Pin {
	deprecated := make(map[string]bool, len(dropUnused))
	for _, id := range dropUnused {
		deprecated[id] = true
	}

	out := make([]mpin.Pin, 0, len(canon)+len(have))
	inCanon := make(map[string]bool, len(canon))
	for _, cp := range canon {
		inCanon[cp.ID] = true
		if i := mpin.FindByID(have, cp.ID); i >= 0 {
			out = append(out, have[i])
		} else {
			out = append(out, cp)
		}
	}
	for _, p := range have {
		if inCanon[p.ID] {
			continue
		}
		if deprecated[p.ID] && !pinConnected(f, nodeID, p.ID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// promoteConfig lifts legacy config keys into pin defaults. Idempotent: the
// key is removed on first application, so a second run is a no-op.
func promoteConfig(n *mnode.Node, promotions []Promotion) {
	for _, p := range promotions {
		v, ok := n.Config[p.ConfigKey]
		if !ok {
			continue
		}
		if _, exists := n.PinDefaults[p.PinID]; !exists {
			if n.PinDefaults == nil {
				n.PinDefaults = map[string]any{}
			}
			n.PinDefaults[p.PinID] = v
		}
		delete(n.Config, p.ConfigKey)
	}
	if len(n.Config) == 0 {
		n.Config = nil
	}
}

// backfillLabel overwrites the display label only when empty or still one of
// the known legacy defaults, never a user-chosen label.
func backfillLabel(n *mnode.Node, tpl template.Template, legacy []string) {
	if n.Label == "" {
		n.Label = tpl.Title
		return
	}
	for _, old := range legacy {
		if n.Label == old {
			n.Label = tpl.Title
			return
		}
	}
}

// backfillDocs merges in tooltip text from the current template for any pin
// lacking it, after all structural changes. Values are untouched.
func backfillDocs(n *mnode.Node, tpl template.Template) {
	fillSide(n.Inputs, tpl.Inputs)
	fillSide(n.Outputs, tpl.Outputs)
}

func fillSide(pins, canon []mpin.Pin) {
	for i := range pins {
		if pins[i].Doc != "" {
			continue
		}
		if j := mpin.FindByID(canon, pins[i].ID); j >= 0 {
			pins[i].Doc = canon[j].Doc
		}
	}
}

// repairEdges rewrites target handles through the rename tables and drops
// any edge left dangling by migration. Invisible edges must not survive a
// load.
func repairEdges(f *mvflow.VisualFlow) {
	out := f.Edges[:0]
	for _, e := range f.Edges {
		src := f.Node(e.Source)
		dst := f.Node(e.Target)
		if src == nil || dst == nil {
			continue
		}
		if rule, ok := rules[dst.Kind]; ok {
			if newID, ok := rule.Renames[e.TargetHandle]; ok {
				e.TargetHandle = newID
			}
		}
		if src.Output(e.SourceHandle) == nil || dst.Input(e.TargetHandle) == nil {
			continue
		}
		out = append(out, e)
	}
	f.Edges = out
}
