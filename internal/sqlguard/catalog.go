// Package sqlguard validates and rewrites model-generated SQL before it is
// allowed anywhere near a database connection.
package sqlguard

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaCatalog is the static description of the allowed schema. It is
// loaded once at process start and read-only afterwards.
type SchemaCatalog struct {
	tables      map[string]map[string]bool
	nullable    map[string]map[string]bool
	textColumns map[string]bool
	composite   map[string]bool
	corrections []Correction
	childTables map[string]ChildTable

	// Precompiled per-column patterns used by the rewriter.
	textEqPatterns        []columnPattern
	compositeEqPatterns   []columnPattern
	compositeLikePatterns []columnPattern
}

// columnPattern pairs a column name with its compiled match pattern.
type columnPattern struct {
	column string
	re     *regexp.Regexp
}

// columnRef matches an optionally table-qualified reference to the column.
func columnRef(column string) string {
	return `\b((?:[a-z_][a-z0-9_]*\.)?` + regexp.QuoteMeta(column) + `)\b`
}

// Correction maps a column name the model tends to hallucinate to the
// real one.
type Correction struct {
	Wrong   string
	Correct string

	pattern *regexp.Regexp
}

// ChildTable describes a one-to-many child of a parent table.
type ChildTable struct {
	Parent    string
	ParentKey string // fully qualified, e.g. "chitalishte.id"
}

// catalogFile is the YAML shape of a catalog definition.
type catalogFile struct {
	Tables           map[string][]string `yaml:"tables"`
	Nullable         map[string][]string `yaml:"nullable"`
	TextColumns      []string            `yaml:"text_columns"`
	CompositeColumns []string            `yaml:"composite_columns"`
	Corrections      []struct {
		Wrong   string `yaml:"wrong"`
		Correct string `yaml:"correct"`
	} `yaml:"corrections"`
	ChildTables map[string]struct {
		Parent    string `yaml:"parent"`
		ParentKey string `yaml:"parent_key"`
	} `yaml:"child_tables"`
}

// LoadCatalog reads a schema catalog from a YAML file.
func LoadCatalog(path string) (*SchemaCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	return buildCatalog(file)
}

// DefaultCatalog returns the built-in catalog for the chitalishte dataset.
func DefaultCatalog() *SchemaCatalog {
	catalog, err := buildCatalog(catalogFile{
		Tables: map[string][]string{
			"chitalishte": {
				"id", "name", "region", "municipality", "town", "address",
				"phone", "email", "chairman", "secretary", "members_count",
				"founded_year", "status",
			},
			"activities": {
				"id", "chitalishte_id", "name", "category", "participants",
			},
		},
		Nullable: map[string][]string{
			"chitalishte": {
				"phone", "email", "chairman", "secretary",
				"members_count", "founded_year",
			},
			"activities": {"participants"},
		},
		TextColumns: []string{
			"name", "region", "municipality", "chairman", "secretary",
			"status", "category",
		},
		CompositeColumns: []string{"town"},
		Corrections: []struct {
			Wrong   string `yaml:"wrong"`
			Correct string `yaml:"correct"`
		}{
			{Wrong: "member_count", Correct: "members_count"},
			{Wrong: "members", Correct: "members_count"},
			{Wrong: "city", Correct: "town"},
			{Wrong: "oblast", Correct: "region"},
			{Wrong: "obshtina", Correct: "municipality"},
			{Wrong: "year_founded", Correct: "founded_year"},
			{Wrong: "activity_name", Correct: "name"},
		},
		ChildTables: map[string]struct {
			Parent    string `yaml:"parent"`
			ParentKey string `yaml:"parent_key"`
		}{
			"activities": {Parent: "chitalishte", ParentKey: "chitalishte.id"},
		},
	})
	if err != nil {
		// Built-in data is validated by tests; a failure here is a bug.
		panic(err)
	}
	return catalog
}

func buildCatalog(file catalogFile) (*SchemaCatalog, error) {
	c := &SchemaCatalog{
		tables:      make(map[string]map[string]bool),
		nullable:    make(map[string]map[string]bool),
		textColumns: make(map[string]bool),
		composite:   make(map[string]bool),
		childTables: make(map[string]ChildTable),
	}

	for table, columns := range file.Tables {
		set := make(map[string]bool, len(columns))
		for _, col := range columns {
			set[strings.ToLower(col)] = true
		}
		c.tables[strings.ToLower(table)] = set
	}

	for table, columns := range file.Nullable {
		set := make(map[string]bool, len(columns))
		for _, col := range columns {
			col = strings.ToLower(col)
			if !c.IsKnownColumn(table, col) {
				return nil, fmt.Errorf("nullable column %s.%s is not in the table definition", table, col)
			}
			set[col] = true
		}
		c.nullable[strings.ToLower(table)] = set
	}

	for _, col := range file.TextColumns {
		c.textColumns[strings.ToLower(col)] = true
	}

	for _, col := range file.CompositeColumns {
		c.composite[strings.ToLower(col)] = true
	}

	for _, corr := range file.Corrections {
		wrong := strings.ToLower(corr.Wrong)
		c.corrections = append(c.corrections, Correction{
			Wrong:   wrong,
			Correct: strings.ToLower(corr.Correct),
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(wrong) + `\b`),
		})
	}

	for _, col := range sortedKeys(c.textColumns) {
		c.textEqPatterns = append(c.textEqPatterns, columnPattern{
			column: col,
			re:     regexp.MustCompile(`(?i)` + columnRef(col) + `\s*=\s*('[^']*'|"[^"]*")`),
		})
	}

	for _, col := range sortedKeys(c.composite) {
		c.compositeEqPatterns = append(c.compositeEqPatterns, columnPattern{
			column: col,
			re:     regexp.MustCompile(`(?i)` + columnRef(col) + `\s*=\s*'([^']*)'`),
		})
		c.compositeLikePatterns = append(c.compositeLikePatterns, columnPattern{
			column: col,
			re:     regexp.MustCompile(`(?i)` + columnRef(col) + `\s+(NOT\s+)?(I?LIKE)\s+'([^']*)'`),
		})
	}

	for table, child := range file.ChildTables {
		parent := strings.ToLower(child.Parent)
		if _, ok := c.tables[parent]; !ok {
			return nil, fmt.Errorf("child table %s references unknown parent %s", table, parent)
		}
		c.childTables[strings.ToLower(table)] = ChildTable{
			Parent:    parent,
			ParentKey: strings.ToLower(child.ParentKey),
		}
	}

	return c, nil
}

// HasTable reports whether the catalog knows the table.
func (c *SchemaCatalog) HasTable(table string) bool {
	_, ok := c.tables[strings.ToLower(table)]
	return ok
}

// IsKnownColumn reports whether the table defines the column.
func (c *SchemaCatalog) IsKnownColumn(table, column string) bool {
	cols, ok := c.tables[strings.ToLower(table)]
	return ok && cols[strings.ToLower(column)]
}

// IsNullable reports whether the column of the table may hold NULL.
func (c *SchemaCatalog) IsNullable(table, column string) bool {
	cols, ok := c.nullable[strings.ToLower(table)]
	return ok && cols[strings.ToLower(column)]
}

// IsNullableAnywhere reports whether any table marks the column nullable.
// Used when the SQL text does not qualify the column with a table name.
func (c *SchemaCatalog) IsNullableAnywhere(column string) bool {
	column = strings.ToLower(column)
	for _, cols := range c.nullable {
		if cols[column] {
			return true
		}
	}
	return false
}

// IsTextColumn reports whether the column requires case-insensitive
// comparison. Table-agnostic.
func (c *SchemaCatalog) IsTextColumn(column string) bool {
	return c.textColumns[strings.ToLower(column)]
}

// IsCompositeTextColumn reports whether the column stores composite
// "<PREFIX> <NAME>" values that require substring matching.
func (c *SchemaCatalog) IsCompositeTextColumn(column string) bool {
	return c.composite[strings.ToLower(column)]
}

// CorrectedColumnName returns the correction for a known-wrong column
// name, if one is registered.
func (c *SchemaCatalog) CorrectedColumnName(wrong string) (string, bool) {
	wrong = strings.ToLower(wrong)
	for _, corr := range c.corrections {
		if corr.Wrong == wrong {
			return corr.Correct, true
		}
	}
	return "", false
}

// Corrections returns the registered wrong-to-correct pairs in definition
// order.
func (c *SchemaCatalog) Corrections() []Correction {
	return c.corrections
}

// ChildTableOf returns the one-to-many child description for a table.
func (c *SchemaCatalog) ChildTableOf(table string) (ChildTable, bool) {
	child, ok := c.childTables[strings.ToLower(table)]
	return child, ok
}

// Tables returns the known table names, sorted.
func (c *SchemaCatalog) Tables() []string {
	tables := make([]string, 0, len(c.tables))
	for t := range c.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Columns returns the column names of a table, sorted.
func (c *SchemaCatalog) Columns(table string) []string {
	cols, ok := c.tables[strings.ToLower(table)]
	if !ok {
		return nil
	}
	return sortedKeys(cols)
}

// TextColumns returns the case-insensitive text column names, sorted for
// deterministic iteration.
func (c *SchemaCatalog) TextColumns() []string {
	return sortedKeys(c.textColumns)
}

// CompositeColumns returns the composite text column names, sorted.
func (c *SchemaCatalog) CompositeColumns() []string {
	return sortedKeys(c.composite)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
