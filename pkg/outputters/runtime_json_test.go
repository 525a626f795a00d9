package outputters

import (
	"testing"

	"github.com/praetorian-inc/quasar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeJSONOutputter_SkipsMarkdownTables(t *testing.T) {
	j := &RuntimeJSONOutputter{outfile: defaultOutfile}

	report := map[string]string{"objectId": "87d349ed-44d7-43e1-9a83-5f2406dee5bd"}
	require.NoError(t, j.Output(NewNamedOutputData(report, "report.json")))
	require.NoError(t, j.Output(NewNamedOutputData(types.MarkdownTable{TableHeading: "Azure RBAC Roles"}, "report.md")))

	require.Len(t, j.output, 1, "tables belong to the Markdown outputter only")
	assert.Equal(t, report, j.output[0])
	assert.Equal(t, "report.json", j.outfile, "table sends do not redirect the JSON file")
}

func TestRuntimeJSONOutputter_PlainValuesKept(t *testing.T) {
	j := &RuntimeJSONOutputter{outfile: defaultOutfile}

	require.NoError(t, j.Output("bare value"))
	require.Len(t, j.output, 1)
	assert.Equal(t, defaultOutfile, j.outfile)
}
