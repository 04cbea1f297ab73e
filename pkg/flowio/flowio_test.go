package flowio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/flow/template"
	"github.com/flowdeck/flowdeck/pkg/model/medge"
	"github.com/flowdeck/flowdeck/pkg/model/mnode"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

func sampleFlow(t *testing.T) *mvflow.VisualFlow {
	t.Helper()
	start, ok := template.Instantiate(mnode.KindOnFlowStart)
	require.True(t, ok)
	start.ID = "on_flow_start-1"
	llm, ok := template.Instantiate(mnode.KindLLMCall)
	require.True(t, ok)
	llm.ID = "llm_call-2"
	llm.PinDefaults["provider"] = "openai"

	return &mvflow.VisualFlow{
		ID:   "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Name: "support triage",
		Nodes: []mnode.Node{start, llm},
		Edges: []medge.Edge{{
			ID:           "e1",
			Source:       "on_flow_start-1",
			SourceHandle: medge.PinExecOut,
			Target:       "llm_call-2",
			TargetHandle: medge.PinExecIn,
		}},
		EntryNode: "on_flow_start-1",
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	f := sampleFlow(t)
	data, err := ExportJSON(f)
	require.NoError(t, err)

	got, err := ImportJSON(data)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Name, got.Name)
	assert.Equal(t, f.Nodes, got.Nodes)
	assert.Equal(t, f.Edges, got.Edges)
}

func TestExportMintsMissingID(t *testing.T) {
	f := sampleFlow(t)
	f.ID = ""
	data, err := ExportJSON(f)
	require.NoError(t, err)

	got, err := ImportJSON(data)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	// The in-memory flow is not mutated.
	assert.Empty(t, f.ID)
}

func TestImportMalformedDocument(t *testing.T) {
	_, err := ImportJSON([]byte(`{"nodes": [{]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse flow")
}

func TestImportMigratesLegacyDocument(t *testing.T) {
	// Legacy llm_call document: old pin id, default under the old name and
	// an edge targeting the old handle. Import canonicalizes all three.
	doc := []byte(`{
		"id": "f1",
		"name": "legacy",
		"nodes": [
			{
				"id": "on_flow_start-1",
				"nodeType": "on_flow_start",
				"position": {"x": 0, "y": 0},
				"inputs": [],
				"outputs": [{"id": "exec-out", "type": "execution"}]
			},
			{
				"id": "llm_call-2",
				"nodeType": "llm_call",
				"position": {"x": 200, "y": 0},
				"inputs": [
					{"id": "exec-in", "type": "execution"},
					{"id": "include_context", "type": "boolean"}
				],
				"outputs": [{"id": "exec-out", "type": "execution"}],
				"pinDefaults": {"include_context": false}
			}
		],
		"edges": [
			{"id": "e1", "source": "on_flow_start-1", "sourceHandle": "exec-out", "target": "llm_call-2", "targetHandle": "include_context"}
		]
	}`)

	f, err := ImportJSON(doc)
	require.NoError(t, err)

	llm := f.Node("llm_call-2")
	require.NotNil(t, llm)
	assert.Nil(t, llm.Input("include_context"))
	assert.NotNil(t, llm.Input("use_context"))
	assert.Equal(t, false, llm.PinDefaults["use_context"])

	require.Len(t, f.Edges, 1)
	assert.Equal(t, "use_context", f.Edges[0].TargetHandle)
}

func TestImportYAML(t *testing.T) {
	doc := []byte(`
id: f1
name: yaml flow
nodes:
  - id: condition-1
    nodeType: condition
    position: {x: 10, y: 20}
    inputs:
      - {id: exec-in, type: execution}
      - {id: cond, type: string}
    outputs:
      - {id: exec-true, type: execution}
      - {id: exec-false, type: execution}
    pinDefaults:
      cond: "score > 3"
edges: []
`)
	f, err := ImportYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, "yaml flow", f.Name)

	cond := f.Node("condition-1")
	require.NotNil(t, cond)
	// The legacy "cond" pin migrates to "expression", default included.
	assert.NotNil(t, cond.Input("expression"))
	assert.Equal(t, "score > 3", cond.PinDefaults["expression"])
}

func TestImportYAMLMalformed(t *testing.T) {
	_, err := ImportYAML([]byte("nodes: [\n  - :"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse flow")
}
