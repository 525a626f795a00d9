package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownTable_ToString(t *testing.T) {
	table := MarkdownTable{
		TableHeading: "Entra Directory Roles",
		Headers:      []string{"Role Name", "Assignment"},
		Rows: [][]string{
			{"Global Reader", "direct"},
			{"User Administrator", "inherited"},
		},
	}

	out := table.ToString()
	assert.True(t, strings.HasPrefix(out, "# Entra Directory Roles\n\n"))
	assert.Contains(t, out, "| Role Name")
	assert.Contains(t, out, "| Global Reader")
	assert.Contains(t, out, "| User Administrator | inherited")
}

func TestMarkdownTable_NoHeaders(t *testing.T) {
	table := MarkdownTable{TableHeading: "Empty"}
	assert.Equal(t, "# Empty\n\n", table.ToString())
}
