package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"request_id", "matric_no", "status"},
		Rows: []map[string]string{
			{"request_id": "r-1", "matric_no": "CSC/2015/001", "status": "PAID"},
			{"request_id": "r-2", "matric_no": "CSC/2015/002", "status": "SUBMITTED, urgent"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "request_id,matric_no,status", lines[0])
	assert.Equal(t, `r-2,CSC/2015/002,"SUBMITTED, urgent"`, lines[2])
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"full_name", "note"},
		Rows: []map[string]string{
			{"full_name": "=HYPERLINK(\"x\")", "note": "@SUM(A1)"},
			{"full_name": "Ada Obi", "note": ""},
		},
	}
	out, err := NewCSVExporter().Render(data, "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"'=HYPERLINK(""x"")",'@SUM(A1)`, lines[1])
	assert.Equal(t, "Ada Obi,", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Transcript requests")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}

func TestTruncateLongCell(t *testing.T) {
	long := strings.Repeat("a", 80)
	assert.Len(t, truncate(long), maxCellRune)
	assert.Equal(t, "short", truncate("short"))
}
