package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderWithSummary(t *testing.T) {
	data := Dataset{
		Headers: []string{"Installment", "Amount"},
		Rows: []map[string]string{
			{"Installment": "1", "Amount": "20000.00"},
		},
	}

	out, err := NewCSVExporter().Render(data, SummaryLine{Label: "Remaining", Value: "20000.00"})
	require.NoError(t, err)
	assert.Equal(t, "Installment,Amount\n1,20000.00\n\nRemaining,20000.00\n", string(out))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	doc := Document{
		Title:   "Payslip",
		Summary: []SummaryLine{{Label: "Month", Value: "2024-03"}},
		Table: Dataset{
			Headers: []string{"Class", "Hours"},
			Rows:    []map[string]string{{"Class": "11 science", "Hours": "3"}},
		},
	}

	out, err := NewPDFExporter().Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFRenderRejectsEmptyDocument(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{Title: "empty"})
	assert.Error(t, err)
}
