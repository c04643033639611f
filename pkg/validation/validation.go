package validation

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/vinodismyname/mfgstats/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

var (
	workbookExts = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}
	exportExts   = []string{".csv", ".json", ".xlsx"}
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Custom: Excel file path must have supported extension
		_ = v.RegisterValidation("filepath_ext", func(fl validator.FieldLevel) bool {
			return hasExt(fl.Field().String(), workbookExts)
		})
		// Custom: export destination must be csv, json or xlsx
		_ = v.RegisterValidation("export_ext", func(fl validator.FieldLevel) bool {
			return hasExt(fl.Field().String(), exportExts)
		})
		// Custom: year must be plausible for survey data
		_ = v.RegisterValidation("survey_year", func(fl validator.FieldLevel) bool {
			y := fl.Field().Int()
			return y >= 1900 && y <= 2200
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			// Quick URL-safe base64 precheck
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			if _, err := pagination.DecodeCursor(s); err != nil {
				return false
			}
			return true
		})
	})
	return v
}

func hasExt(path string, exts []string) bool {
	s := strings.TrimSpace(path)
	if s == "" {
		return false
	}
	return lo.Contains(exts, strings.ToLower(filepath.Ext(s)))
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "required_without":
				if field == "datasetid" {
					return "VALIDATION: dataset_id is required (or supply cursor)"
				}
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "filepath_ext":
				return "VALIDATION: path must be an Excel file (.xlsx, .xlsm, .xltx, .xltm)"
			case "export_ext":
				return "VALIDATION: export path must end in .csv, .json or .xlsx"
			case "oneof":
				return fmt.Sprintf("VALIDATION: %s must be one of [%s]", field, fe.Param())
			case "survey_year":
				return fmt.Sprintf("VALIDATION: %s must be a four-digit survey year", field)
			case "cursor":
				return "CURSOR_INVALID: failed to decode cursor; restart pagination without a cursor"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			// Fallback generic
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
