package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/domain/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const travelYAML = `
name: travel
description: Business travel
category: travel
nodes:
  - id: start
    type: start
  - id: lead
    type: approver
    label: Team lead
    approver_ids: [lead]
  - id: end
    type: end
edges:
  - source: start
    target: lead
  - source: lead
    target: end
`

const purchaseYAML = `
name: purchase
nodes:
  - {id: s, type: start}
  - {id: cfo, type: approver, approver_ids: [cfo]}
  - {id: e, type: end}
edges:
  - {source: s, target: cfo}
  - {source: cfo, target: e}
---
name: office
nodes:
  - {id: s, type: start}
  - {id: any, type: approver}
  - {id: e, type: end}
edges:
  - {source: s, target: any}
  - {source: any, target: e}
`

type mockImporter struct {
	got        []service.TemplateInput
	importFunc func(inputs []service.TemplateInput) (int, error)
}

func (m *mockImporter) ImportTemplates(ctx context.Context, inputs []service.TemplateInput) (int, error) {
	m.got = inputs
	if m.importFunc != nil {
		return m.importFunc(inputs)
	}
	return len(inputs), nil
}

func TestDecode(t *testing.T) {
	inputs, err := Decode(strings.NewReader(travelYAML))
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	in := inputs[0]
	assert.Equal(t, "travel", in.Name)
	assert.Equal(t, "Business travel", in.Description)
	require.Len(t, in.Nodes, 3)
	assert.Equal(t, graph.NodeApprover, in.Nodes[1].Type)
	assert.Equal(t, []string{"lead"}, in.Nodes[1].ApproverIDs)
	assert.Equal(t, graph.Edge{Source: "lead", Target: "end"}, in.Edges[1])

	g, err := graph.New(in.Nodes, in.Edges)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead"}, g.ApproverSequence())
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("name: x\napprovers: [a]\n"))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	fsys := fstest.MapFS{
		"b_purchase.yml": {Data: []byte(purchaseYAML)},
		"a_travel.yaml":  {Data: []byte(travelYAML)},
		"README.md":      {Data: []byte("# seeds")},
	}

	inputs, err := LoadDir(fsys)
	require.NoError(t, err)

	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	assert.Equal(t, []string{"travel", "purchase", "office"}, names)
}

func TestLoadDir_ReportsFile(t *testing.T) {
	fsys := fstest.MapFS{"bad.yaml": {Data: []byte("nodes: {")}}
	_, err := LoadDir(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestSeeder_Run(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "travel.yaml"), []byte(travelYAML), 0o644))

	imp := &mockImporter{}
	s := NewSeeder(imp, zap.NewNop())

	n, err := s.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, imp.got, 1)

	n, err = s.Run(context.Background(), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)

	imp.importFunc = func([]service.TemplateInput) (int, error) { return 0, errors.New("db closed") }
	_, err = s.Run(context.Background(), dir)
	assert.Error(t, err)
}
