package database

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo matches the output of SHOW COLUMNS.
type ColumnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string
	Extra   string
}

// GetTableColumns retrieves the column definitions for a given table.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	var columns []ColumnInfo
	if db.Dialector.Name() == DriverSQLite {
		type sqliteColumn struct {
			Cid        int
			Name       string
			Type       string
			Notnull    int
			DefaultVal *string `gorm:"column:dflt_value"`
			Pk         int
		}
		var sqliteCols []sqliteColumn
		if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", tableName)).Scan(&sqliteCols).Error; err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		for _, col := range sqliteCols {
			null := "YES"
			if col.Notnull == 1 {
				null = "NO"
			}
			columns = append(columns, ColumnInfo{
				Field: strings.ToLower(col.Name),
				Type:  strings.ToLower(col.Type),
				Null:  null,
			})
		}
		return columns, nil
	}

	err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", tableName)).Scan(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}
	for i := range columns {
		columns[i].Type = strings.ToLower(columns[i].Type)
		columns[i].Field = strings.ToLower(columns[i].Field)
	}
	return columns, nil
}

// SchemaMismatch describes a required column that is missing or has an unexpected type.
type SchemaMismatch struct {
	Column   string
	Expected string
	Actual   string
}

func (m SchemaMismatch) String() string {
	if m.Actual == "" {
		return fmt.Sprintf("%s: missing (want %s)", m.Column, m.Expected)
	}
	return fmt.Sprintf("%s: got %s, want %s", m.Column, m.Actual, m.Expected)
}

// VerifyColumns compares a table against the required columns. Each expected
// value is a type family ("int", "char", "time", "bool"); a column matches when
// its reported type belongs to that family. Extra columns are ignored.
func VerifyColumns(db *gorm.DB, tableName string, expected map[string]string) ([]SchemaMismatch, error) {
	columns, err := GetTableColumns(db, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", tableName)
	}

	actual := make(map[string]string, len(columns))
	for _, col := range columns {
		actual[col.Field] = col.Type
	}

	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []SchemaMismatch
	for _, name := range names {
		family := expected[name]
		got, ok := actual[name]
		if !ok {
			mismatches = append(mismatches, SchemaMismatch{Column: name, Expected: family})
			continue
		}
		if !typeFamily(got, family) {
			mismatches = append(mismatches, SchemaMismatch{Column: name, Expected: family, Actual: got})
		}
	}
	return mismatches, nil
}

func typeFamily(columnType, family string) bool {
	switch family {
	case "int":
		return strings.Contains(columnType, "int")
	case "char":
		return strings.Contains(columnType, "char") || strings.Contains(columnType, "text")
	case "time":
		return strings.Contains(columnType, "time") || strings.Contains(columnType, "date")
	case "bool":
		return strings.Contains(columnType, "bool") || strings.Contains(columnType, "tinyint") ||
			strings.Contains(columnType, "numeric") || columnType == "bit(1)"
	default:
		return columnType == family
	}
}
