package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/mfgstats/pkg/pagination"
)

type loadInput struct {
	Path string `validate:"required,filepath_ext"`
}

type exportInput struct {
	DatasetID string `validate:"required"`
	Path      string `validate:"required,export_ext"`
	Format    string `validate:"omitempty,oneof=csv json xlsx"`
}

type pageInput struct {
	DatasetID string `validate:"required_without=Cursor"`
	Cursor    string `validate:"omitempty,cursor"`
	PageSize  int    `validate:"omitempty,min=1,max=500"`
	Years     []int  `validate:"omitempty,dive,survey_year"`
}

func TestValidateStruct_WorkbookPath(t *testing.T) {
	require.Empty(t, ValidateStruct(loadInput{Path: "/data/asi.XLSX"}))
	require.Equal(t, "VALIDATION: path is required", ValidateStruct(loadInput{}))
	msg := ValidateStruct(loadInput{Path: "/data/asi.csv"})
	require.True(t, strings.HasPrefix(msg, "VALIDATION: path must be an Excel file"), msg)
}

func TestValidateStruct_Export(t *testing.T) {
	require.Empty(t, ValidateStruct(exportInput{DatasetID: "ds", Path: "out.json", Format: "json"}))
	require.Contains(t, ValidateStruct(exportInput{DatasetID: "ds", Path: "out.txt"}), "export path")
	require.Contains(t, ValidateStruct(exportInput{DatasetID: "ds", Path: "out.csv", Format: "pdf"}), "one of")
}

func TestValidateStruct_CursorAndPaging(t *testing.T) {
	tok, err := pagination.EncodeCursor(pagination.Cursor{Did: "ds", Ps: 10})
	require.NoError(t, err)

	require.Empty(t, ValidateStruct(pageInput{Cursor: tok}))
	require.Empty(t, ValidateStruct(pageInput{DatasetID: "ds", PageSize: 20, Years: []int{2019}}))
	require.Contains(t, ValidateStruct(pageInput{}), "dataset_id is required")
	require.True(t, strings.HasPrefix(ValidateStruct(pageInput{DatasetID: "ds", Cursor: "!!"}), "CURSOR_INVALID"))
	require.Contains(t, ValidateStruct(pageInput{DatasetID: "ds", PageSize: 501}), "max=500")
	require.Contains(t, ValidateStruct(pageInput{DatasetID: "ds", Years: []int{19}}), "survey year")
}
