package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrinter(f Format) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewPrinter(f)
	p.SetWriter(&buf)
	p.SetNoColor(true)
	return p, &buf
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatYAML, ParseFormat("yml"))
	assert.Equal(t, FormatTable, ParseFormat(""))
	assert.Equal(t, FormatTable, ParseFormat("wide"))
}

func TestPrintStatusesTable(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	rows := []StatusRow{
		{Domain: "hero", Status: "ready", FetchedOnce: true},
		{Domain: "blog", Status: "failed", FetchedOnce: true, Error: "boom"},
	}
	require.NoError(t, p.PrintStatuses(rows))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "status_table", buf.Bytes())
}

func TestColorize(t *testing.T) {
	p, _ := newTestPrinter(FormatTable)
	assert.Equal(t, "ready", p.Colorize(color.FgGreen, "ready"))

	p.SetNoColor(false)
	colored := p.Colorize(color.FgGreen, "ready")
	assert.Contains(t, colored, "ready")
	assert.Contains(t, colored, "\x1b[")
}

func TestPrintStatusesEmpty(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	require.NoError(t, p.PrintStatuses(nil))
	assert.Equal(t, "No stores registered\n", buf.String())
}

func TestPrintStatusesJSON(t *testing.T) {
	p, buf := newTestPrinter(FormatJSON)
	require.NoError(t, p.PrintStatuses([]StatusRow{{Domain: "hero", Status: "idle"}}))
	assert.JSONEq(t, `[{"domain":"hero","status":"idle","fetchedOnce":false,"loading":false}]`, buf.String())
}

func TestPrintDocumentYAML(t *testing.T) {
	p, buf := newTestPrinter(FormatYAML)
	require.NoError(t, p.PrintDocument([]byte(`{"name":"Ada","headline":"Engineer"}`)))
	assert.Contains(t, buf.String(), "name: Ada")
	assert.Contains(t, buf.String(), "headline: Engineer")
}

func TestPrintDocumentInvalid(t *testing.T) {
	p, _ := newTestPrinter(FormatJSON)
	assert.Error(t, p.PrintDocument([]byte("{")))
}

func TestPrintKeyValues(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	require.NoError(t, p.PrintKeyValues(nil, [][2]string{{"theme", "dark"}, {"locale", "fr"}}))
	assert.Contains(t, buf.String(), "theme")
	assert.Contains(t, buf.String(), "dark")
}
