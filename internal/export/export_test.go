package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Headers: []string{"Year", "State", "Value", "Source"},
		Rows: []engine.Row{
			{Cells: map[string]string{"Year": "2019", "State": "Kerala", "Value": "10.5", "Source": "2019-20"}},
			{Cells: map[string]string{"Year": "2020", "State": "Goa, North", "Value": "n/a", "Source": "2020-21"}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	f, err = FormatFromPath("/tmp/out.xlsx")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, FormatCSV, sampleTable()))
	require.Equal(t, "Year,State,Value,Source\n2019,Kerala,10.5,2019-20\n2020,\"Goa, North\",n/a,2020-21\n", buf.String())
}

func TestWriteJSON_RecordsInHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, FormatJSON, sampleTable()))
	require.Equal(t,
		`[{"Year":2019,"State":"Kerala","Value":10.5,"Source":"2019-20"},{"Year":2020,"State":"Goa, North","Value":"n/a","Source":"2020-21"}]`,
		buf.String())

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
}

func TestWriteJSON_KeepsCodesAsText(t *testing.T) {
	table := Table{
		Headers: []string{"NIC Code", "District", "Value"},
		Rows: []engine.Row{
			{Cells: map[string]string{"NIC Code": "01", "District": "007", "Value": "0.25"}},
			{Cells: map[string]string{"NIC Code": "1e3", "District": "+5", "Value": "-12"}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, FormatJSON, table))
	require.Equal(t,
		`[{"NIC Code":"01","District":"007","Value":0.25},{"NIC Code":"1e3","District":"+5","Value":-12}]`,
		buf.String())
}

func TestCellValue(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"2019", 2019.0},
		{"0", 0.0},
		{"-3.5", -3.5},
		{"0.75", 0.75},
		{"", ""},
		{"01", "01"},
		{"-01", "-01"},
		{"12.", "12."},
		{".5", ".5"},
		{"1e5", "1e5"},
		{"Inf", "Inf"},
		{"1,000", "1,000"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, cellValue(c.in), c.in)
	}
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(context.Background(), &buf, Table{Headers: []string{"A"}}))
	require.Equal(t, "[]", buf.String())
}

func TestWriteFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	n, err := WriteFile(context.Background(), path, FormatXLSX, sampleTable())
	require.NoError(t, err)
	require.Greater(t, n, int64(0))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Year", "State", "Value", "Source"}, rows[0])
	require.Equal(t, "Kerala", rows[1][1])
	require.Equal(t, "10.5", rows[1][2])
	require.Equal(t, "n/a", rows[2][2])
}

func TestWriteFile_RefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o644))

	_, err := WriteFile(context.Background(), path, FormatCSV, sampleTable())
	require.Error(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "keep", string(b))
}

func TestWrite_CancelledContextRemovesFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "out.json")

	_, err := WriteFile(ctx, path, FormatJSON, sampleTable())
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
