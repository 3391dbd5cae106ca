package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/libertas/internal/model"
)

const freedomHeader = "year,ISO_code,countries,pf_expression,pf_expression_killed,pf_expression_jailed,pf_expression_influence,pf_expression_control,pf_expression_cable,pf_expression_newspapers,pf_expression_internet\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFreedom(t *testing.T) {
	path := writeFile(t, "freedom.csv", freedomHeader+
		"2017,ALB,Albania,8.5,10,10,5,5.5,10,10,10\n"+
		"2016,ALB,Albania,8.4,10,10,5,5,10,10,10\n"+
		"2017,DZA,Algeria,,10,,3,4,5,6,7\n"+
		"2017,,Nowhere,1,1,1,1,1,1,1,1\n")

	recs, err := ReadFreedom(path)
	require.NoError(t, err)
	require.Len(t, recs, 3, "row without country code is skipped")

	alb := recs[0]
	assert.Equal(t, model.CountryCode("ALB"), alb.Country)
	assert.Equal(t, 2017, alb.Year)
	require.NotNil(t, alb.Expression)
	assert.InDelta(t, 8.5, *alb.Expression, 1e-12)
	assert.Equal(t, "5.5", alb.SubIndicators[3])
	assert.Equal(t, 2, alb.Line)

	dza := recs[2]
	assert.Nil(t, dza.Expression, "blank aggregate score loads as absent")
	assert.Equal(t, "", dza.SubIndicators[1], "blank sub-indicator kept verbatim")
}

func TestReadFreedom_ColumnOrderIndependent(t *testing.T) {
	path := writeFile(t, "freedom.csv",
		"pf_expression_internet,pf_expression_newspapers,pf_expression_cable,pf_expression_control,pf_expression_influence,pf_expression_jailed,pf_expression_killed,pf_expression,ISO_code,year\n"+
			"7,6,5,4,3,2,1,9,ARG,2017\n")

	recs, err := ReadFreedom(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	want := [model.FeatureDims]string{"1", "2", "3", "4", "5", "6", "7"}
	assert.Equal(t, want, recs[0].SubIndicators)
}

func TestReadFreedom_Failures(t *testing.T) {
	tests := []struct {
		content string
		wantMsg string
		desc    string
	}{
		{
			content: "year,ISO_code,pf_expression\n2017,ALB,8\n",
			wantMsg: "missing required column(s): pf_expression_killed",
			desc:    "Missing sub-indicator columns",
		},
		{
			content: freedomHeader + "twenty,ALB,x,8,1,1,1,1,1,1,1\n",
			wantMsg: "invalid year",
			desc:    "Non-numeric year",
		},
		{
			content: "",
			wantMsg: "empty file",
			desc:    "Empty file",
		},
		{
			content: freedomHeader + "2017,ALB,Albania,8.5,10\n",
			wantMsg: "wrong number of fields",
			desc:    "Ragged row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			path := writeFile(t, "freedom.csv", tt.content)

			recs, err := ReadFreedom(path)
			require.Error(t, err)
			assert.Nil(t, recs, "no partial results")
			assert.ErrorIs(t, err, model.ErrSourceUnavailable)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReadFreedom_MissingFile(t *testing.T) {
	_, err := ReadFreedom(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadStringency(t *testing.T) {
	path := writeFile(t, "stringency.csv",
		"Entity,Code,Date,stringency_index\n"+
			"Albania,ALB,2020-12-31,80.5\n"+
			"World,,2020-12-31,50\n"+
			"Albania,ALB,2021-01-01,\n"+
			"Algeria,DZA,2020-04-01,20\n")

	recs, err := ReadStringency(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, model.CountryCode("ALB"), recs[0].Country)
	assert.Equal(t, "2020-12-31", recs[0].Date.Format(model.DateLayout))
	assert.InDelta(t, 80.5, recs[0].Stringency, 1e-12)
	assert.Equal(t, model.CountryCode("DZA"), recs[1].Country)
}

func TestReadStringency_Failures(t *testing.T) {
	tests := []struct {
		content string
		wantMsg string
		desc    string
	}{
		{
			content: "Code,Day,stringency_index\nALB,2020-01-01,1\n",
			wantMsg: "missing required column(s): Date",
			desc:    "Renamed date column",
		},
		{
			content: "Code,Date,stringency_index\nALB,12/31/2020,1\n",
			wantMsg: "invalid Date",
			desc:    "Wrong date layout",
		},
		{
			content: "Code,Date,stringency_index\nALB,2020-12-31,high\n",
			wantMsg: "invalid stringency_index",
			desc:    "Non-numeric value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			path := writeFile(t, "stringency.csv", tt.content)

			_, err := ReadStringency(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrSourceUnavailable)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReadStringency_ByteOrderMark(t *testing.T) {
	path := writeFile(t, "stringency.csv", "\ufeffCode,Date,stringency_index\nALB,2020-12-31,10\n")

	recs, err := ReadStringency(path)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestReadStringency_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Code", "Date", "stringency_index"},
		{"ALB", "2020-12-31", "80"},
		{"DZA", "2020-12-31", "20"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "stringency.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	recs, err := ReadStringency(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.CountryCode("DZA"), recs[1].Country)
	assert.InDelta(t, 20.0, recs[1].Stringency, 1e-12)
}

func TestReadFreedom_XLSXMissingColumn(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []any{"ISO_code", "year"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	path := filepath.Join(t.TempDir(), "freedom.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := ReadFreedom(path)
	require.ErrorIs(t, err, model.ErrSourceUnavailable)
	assert.True(t, strings.Contains(err.Error(), "pf_expression"))
}
