package template

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"

	"easel/internal/services"
)

// MaxSeed is the largest value RerollSeed produces. Values above 2^53-1 lose
// precision in JSON consumers that decode numbers as float64.
const MaxSeed = 1<<53 - 1

// Class types the lifecycle inspects.
const (
	ClassSaveImage        = "SaveImage"
	ClassKSampler         = "KSampler"
	ClassKSamplerAdvanced = "KSamplerAdvanced"
)

// seedFields maps sampler classes to the input carrying their noise seed.
var seedFields = map[string]string{
	ClassKSampler:         "seed",
	ClassKSamplerAdvanced: "noise_seed",
}

// Node is one entry of a job template.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Workflow maps node identifiers to node definitions. It marshals to the
// backend's prompt format unchanged.
type Workflow map[string]*Node

// Clone returns a deep copy of w.
func (w Workflow) Clone() Workflow {
	out := make(Workflow, len(w))
	for id, node := range w {
		if node == nil {
			out[id] = nil
			continue
		}
		cp := &Node{ClassType: node.ClassType}
		if node.Inputs != nil {
			cp.Inputs = cloneValue(node.Inputs).(map[string]any)
		}
		if node.Meta != nil {
			cp.Meta = cloneValue(node.Meta).(map[string]any)
		}
		out[id] = cp
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return typed
	}
}

// Node returns the node with the given id.
func (w Workflow) Node(id string) (*Node, bool) {
	node, ok := w[id]
	if !ok || node == nil {
		return nil, false
	}
	return node, true
}

// SetImage writes an uploaded filename into the image input of node id.
func (w Workflow) SetImage(id, filename string) error {
	node, ok := w.Node(id)
	if !ok {
		return services.Wrap(services.ErrAssetMissingSlot, "upload", "fill template", fmt.Sprintf("image node %q not found in template", id), nil)
	}
	if node.Inputs == nil {
		node.Inputs = map[string]any{}
	}
	node.Inputs["image"] = filename
	return nil
}

// SetPrompt writes text into node id, preferring an existing "prompt" input and
// falling back to an existing "text" input. Empty text leaves the template
// untouched.
func (w Workflow) SetPrompt(id, text string) error {
	if text == "" {
		return nil
	}
	node, ok := w.Node(id)
	if !ok {
		return services.Wrap(services.ErrPromptSlotMissing, "prompt", "fill template", fmt.Sprintf("prompt node %q not found in template", id), nil)
	}
	for _, field := range []string{"prompt", "text"} {
		if _, ok := node.Inputs[field]; ok {
			node.Inputs[field] = text
			return nil
		}
	}
	return services.Wrap(services.ErrPromptSlotMissing, "prompt", "fill template", fmt.Sprintf("node %q (%s) has no prompt or text input", id, node.ClassType), nil)
}

// RerollSeed replaces every literal seed input on sampler nodes with a fresh
// value from rng and returns how many were changed. Linked inputs (arrays
// referencing another node) are left alone.
func (w Workflow) RerollSeed(rng *rand.Rand) int {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	changed := 0
	for _, id := range w.sortedIDs() {
		node := w[id]
		if node == nil || node.Inputs == nil {
			continue
		}
		field, ok := seedFields[node.ClassType]
		if !ok {
			continue
		}
		current, ok := node.Inputs[field]
		if !ok || !isNumber(current) {
			continue
		}
		node.Inputs[field] = rng.Int64N(MaxSeed + 1)
		changed++
	}
	return changed
}

// OutputNode returns the node whose execution yields the job result: override
// when it exists, else the lexicographically-first SaveImage node.
func (w Workflow) OutputNode(override string) (string, bool) {
	if override != "" {
		_, ok := w.Node(override)
		return override, ok
	}
	for _, id := range w.sortedIDs() {
		if node := w[id]; node != nil && node.ClassType == ClassSaveImage {
			return id, true
		}
	}
	return "", false
}

// Encode marshals the workflow for submission.
func (w Workflow) Encode() (json.RawMessage, error) {
	return json.Marshal(w)
}

func (w Workflow) sortedIDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64, int32, uint64, uint32:
		return true
	default:
		return false
	}
}
