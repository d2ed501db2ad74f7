package sqlguard

import (
	"regexp"
	"strings"
)

// RewriteResult is the outcome of running the rewrite pipeline once.
// Rewriting never fails: the worst case is the input text unchanged.
type RewriteResult struct {
	SQL           string
	AppliedPasses []string
}

// rewritePass is one independent text-level transformation. A pass that
// cannot confidently apply its rewrite must return the input unchanged.
type rewritePass struct {
	name  string
	apply func(sql string, catalog *SchemaCatalog) string
}

// rewritePasses is the fixed pass order. Each pass is idempotent in
// isolation and the whole pipeline is idempotent: rewriting its own
// output changes nothing.
var rewritePasses = []rewritePass{
	{"sanitize", passSanitize},
	{"column_correction", passColumnCorrection},
	{"case_insensitive_text", passCaseInsensitiveText},
	{"composite_pattern", passCompositePattern},
	{"negation_repair", passNegationRepair},
	{"null_filter", passNullFilter},
	{"fanout_dedup", passFanoutDedup},
}

// Rewrite runs the pass pipeline over SQL that already passed validation.
// A pass is recorded in AppliedPasses only when it changed the text.
func Rewrite(sqlText string, catalog *SchemaCatalog) RewriteResult {
	out := sqlText
	var applied []string
	for _, p := range rewritePasses {
		next := p.apply(out, catalog)
		if next != out {
			applied = append(applied, p.name)
			out = next
		}
	}
	return RewriteResult{SQL: out, AppliedPasses: applied}
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	orderByKeyword = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	groupByKeyword = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	whereKeyword   = regexp.MustCompile(`(?i)\bWHERE\b`)
	selectKeyword  = regexp.MustCompile(`(?i)\bSELECT\b`)
	fromKeyword    = regexp.MustCompile(`(?i)\bFROM\b`)
	clauseTail     = regexp.MustCompile(`(?i)\b(GROUP\s+BY|HAVING|ORDER\s+BY|LIMIT)\b`)
	orderByEnd     = regexp.MustCompile(`(?i)\b(LIMIT|OFFSET)\b`)
	orderDirection = regexp.MustCompile(`(?i)\s+(ASC|DESC)$`)
	bareColumnRef  = regexp.MustCompile(`(?i)^(?:([a-z_][a-z0-9_]*)\.)?([a-z_][a-z0-9_]*)$`)
	joinTable      = regexp.MustCompile(`(?i)\bJOIN\s+([a-z_][a-z0-9_]*)`)
	likeEqualsBool = regexp.MustCompile(
		`(?i)\b((?:[a-z_][a-z0-9_]*\.)?[a-z_][a-z0-9_]*)\s+(I?LIKE)\s+('[^']*')\s*=\s*(true|false)\b`)
)

// passSanitize strips trailing semicolons and collapses whitespace runs.
func passSanitize(sql string, _ *SchemaCatalog) string {
	s := strings.TrimSpace(sql)
	s = strings.TrimRight(s, "; \t\r\n")
	return whitespaceRun.ReplaceAllString(s, " ")
}

// passColumnCorrection replaces known hallucinated column names with the
// catalog's correct names, whole-word.
func passColumnCorrection(sql string, catalog *SchemaCatalog) string {
	for _, corr := range catalog.Corrections() {
		sql = corr.pattern.ReplaceAllString(sql, corr.Correct)
	}
	return sql
}

// passCaseInsensitiveText rewrites equality comparisons on text columns to
// LOWER(column) = LOWER(literal), skipping occurrences already wrapped.
func passCaseInsensitiveText(sql string, catalog *SchemaCatalog) string {
	for _, cp := range catalog.textEqPatterns {
		matches := cp.re.FindAllStringSubmatchIndex(sql, -1)
		if matches == nil {
			continue
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			start, end := m[0], m[1]
			colref := sql[m[2]:m[3]]
			literal := sql[m[4]:m[5]]
			before := strings.ToUpper(strings.TrimRight(sql[:start], " "))
			if strings.HasSuffix(before, "LOWER(") {
				continue
			}
			b.WriteString(sql[last:start])
			b.WriteString("LOWER(" + colref + ") = LOWER(" + literal + ")")
			last = end
		}
		b.WriteString(sql[last:])
		sql = b.String()
	}
	return sql
}

// passCompositePattern converts equality on composite text columns into
// substring ILIKE matches and adds missing wildcards to LIKE comparisons.
func passCompositePattern(sql string, catalog *SchemaCatalog) string {
	for _, cp := range catalog.compositeEqPatterns {
		sql = cp.re.ReplaceAllStringFunc(sql, func(m string) string {
			groups := cp.re.FindStringSubmatch(m)
			colref, value := groups[1], groups[2]
			if !strings.Contains(value, "%") {
				value = "%" + value + "%"
			}
			return colref + " ILIKE '" + value + "'"
		})
	}
	for _, cp := range catalog.compositeLikePatterns {
		sql = cp.re.ReplaceAllStringFunc(sql, func(m string) string {
			groups := cp.re.FindStringSubmatch(m)
			colref, not, op, value := groups[1], groups[2], groups[3], groups[4]
			if strings.Contains(value, "%") {
				return m
			}
			return colref + " " + not + op + " '%" + value + "%'"
		})
	}
	return sql
}

// passNegationRepair fixes the malformed "col ILIKE 'x' = false" shape the
// model produces for negated matches. The "= true" variant simplifies to a
// plain match.
func passNegationRepair(sql string, _ *SchemaCatalog) string {
	return likeEqualsBool.ReplaceAllStringFunc(sql, func(m string) string {
		groups := likeEqualsBool.FindStringSubmatch(m)
		colref, op, literal, value := groups[1], groups[2], groups[3], groups[4]
		if strings.EqualFold(value, "false") {
			return colref + " NOT " + strings.ToUpper(op) + " " + literal
		}
		return colref + " " + strings.ToUpper(op) + " " + literal
	})
}

// passNullFilter ensures every nullable column referenced in ORDER BY has
// an IS NOT NULL predicate, so NULL rows do not crowd the top of results.
func passNullFilter(sql string, catalog *SchemaCatalog) string {
	for _, ref := range orderByColumns(sql) {
		table, column, ok := splitColumnRef(ref)
		if !ok {
			continue
		}

		nullable := false
		if table != "" && catalog.HasTable(table) {
			nullable = catalog.IsNullable(table, column)
		} else {
			nullable = catalog.IsNullableAnywhere(column)
		}
		if !nullable {
			continue
		}

		notNull := regexp.MustCompile(
			`(?i)\b(?:[a-z_][a-z0-9_]*\.)?` + regexp.QuoteMeta(column) + `\s+IS\s+NOT\s+NULL`)
		if notNull.MatchString(sql) {
			continue
		}

		sql = insertPredicate(sql, ref+" IS NOT NULL")
	}
	return sql
}

// passFanoutDedup repairs the row fan-out produced by ordering on a
// one-to-many child column: it groups by the parent key and aggregates the
// ordered column with MAX. Queries with multiple joins, subqueries, an
// existing GROUP BY, or pre-aggregated ORDER BY expressions are left
// unchanged.
func passFanoutDedup(sql string, catalog *SchemaCatalog) string {
	if groupByKeyword.MatchString(sql) {
		return sql
	}
	if len(selectKeyword.FindAllString(sql, -1)) != 1 {
		return sql
	}

	joins := joinTable.FindAllStringSubmatch(sql, -1)
	if len(joins) != 1 {
		return sql
	}
	child := strings.ToLower(joins[0][1])
	childInfo, ok := catalog.ChildTableOf(child)
	if !ok {
		return sql
	}

	refs := orderByColumns(sql)
	if len(refs) != 1 {
		return sql
	}
	ref := refs[0]
	table, column, bare := splitColumnRef(ref)
	if !bare {
		return sql
	}
	childAlias := tableAlias(sql, child)
	if table != "" && table != child && table != childAlias {
		return sql
	}
	if !catalog.IsKnownColumn(child, column) {
		return sql
	}
	if table == "" && catalog.IsKnownColumn(childInfo.Parent, column) {
		// Ambiguous between parent and child; do not guess.
		return sql
	}

	aggregated := regexp.MustCompile(
		`(?i)\b(MAX|MIN|SUM|AVG|COUNT)\s*\(\s*` + regexp.QuoteMeta(ref) + `\b`)
	if aggregated.MatchString(sql) {
		return sql
	}

	// Wrap the column in MAX() in the SELECT list, when it appears there.
	fromIdx := fromKeyword.FindStringIndex(sql)
	if fromIdx == nil {
		return sql
	}
	refPattern := regexp.MustCompile(`(?i)` + columnRef(column))
	selectSeg := sql[:fromIdx[0]]
	if loc := findRef(refPattern, selectSeg, ref); loc != nil {
		sql = sql[:loc[0]] + "MAX(" + ref + ")" + sql[loc[1]:]
	}

	// Wrap the ORDER BY column in MAX().
	orderIdx := orderByKeyword.FindStringIndex(sql)
	if orderIdx == nil {
		return sql
	}
	tail := sql[orderIdx[1]:]
	if loc := findRef(refPattern, tail, ref); loc != nil {
		sql = sql[:orderIdx[1]+loc[0]] + "MAX(" + ref + ")" + sql[orderIdx[1]+loc[1]:]
	}

	// Insert GROUP BY on the parent key before ORDER BY, using the
	// parent's alias when the query declares one.
	groupKey := childInfo.ParentKey
	if dot := strings.IndexByte(groupKey, '.'); dot >= 0 {
		if alias := tableAlias(sql, groupKey[:dot]); alias != "" {
			groupKey = alias + groupKey[dot:]
		}
	}
	orderIdx = orderByKeyword.FindStringIndex(sql)
	return sql[:orderIdx[0]] + "GROUP BY " + groupKey + " " + sql[orderIdx[0]:]
}

// sqlKeywordsAfterTable are words that can follow a table name and must
// not be read as its alias.
var sqlKeywordsAfterTable = map[string]bool{
	"on": true, "as": true, "where": true, "join": true, "left": true,
	"right": true, "inner": true, "outer": true, "cross": true,
	"group": true, "order": true, "having": true, "limit": true,
	"offset": true, "using": true,
}

// tableAlias returns the alias the query declares for the table, or "".
func tableAlias(sql, table string) string {
	re := regexp.MustCompile(
		`(?i)\b(?:FROM|JOIN)\s+` + regexp.QuoteMeta(table) + `(?:\s+(?:AS\s+)?([a-z_][a-z0-9_]*))?`)
	m := re.FindStringSubmatch(sql)
	if m == nil || m[1] == "" {
		return ""
	}
	alias := strings.ToLower(m[1])
	if sqlKeywordsAfterTable[alias] {
		return ""
	}
	return alias
}

// findRef locates the first occurrence of the exact column reference in
// the segment.
func findRef(pattern *regexp.Regexp, segment, ref string) []int {
	for _, m := range pattern.FindAllStringSubmatchIndex(segment, -1) {
		if strings.EqualFold(segment[m[2]:m[3]], ref) {
			return []int{m[2], m[3]}
		}
	}
	return nil
}

// orderByColumns extracts bare column references from the ORDER BY clause.
// Expressions it cannot read as plain identifiers are omitted.
func orderByColumns(sql string) []string {
	idx := orderByKeyword.FindStringIndex(sql)
	if idx == nil {
		return nil
	}

	clause := sql[idx[1]:]
	if end := orderByEnd.FindStringIndex(clause); end != nil {
		clause = clause[:end[0]]
	}

	var refs []string
	for _, item := range strings.Split(clause, ",") {
		item = strings.TrimSpace(item)
		item = orderDirection.ReplaceAllString(item, "")
		item = strings.TrimSpace(item)
		if item == "" || strings.ContainsAny(item, "()") {
			continue
		}
		if bareColumnRef.MatchString(item) {
			refs = append(refs, item)
		}
	}
	return refs
}

// splitColumnRef splits an optionally qualified reference into table and
// column parts.
func splitColumnRef(ref string) (table, column string, ok bool) {
	groups := bareColumnRef.FindStringSubmatch(ref)
	if groups == nil {
		return "", "", false
	}
	return strings.ToLower(groups[1]), strings.ToLower(groups[2]), true
}

// insertPredicate adds a predicate to the WHERE clause, creating the
// clause before GROUP BY/HAVING/ORDER BY/LIMIT when none exists.
func insertPredicate(sql, predicate string) string {
	tail := clauseTail.FindStringIndex(sql)
	if tail == nil {
		if whereKeyword.MatchString(sql) {
			return sql + " AND " + predicate
		}
		return sql + " WHERE " + predicate
	}

	if whereKeyword.MatchString(sql[:tail[0]]) {
		return sql[:tail[0]] + "AND " + predicate + " " + sql[tail[0]:]
	}
	return sql[:tail[0]] + "WHERE " + predicate + " " + sql[tail[0]:]
}
