package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	reGoBatch       = regexp.MustCompile(`(?im)^\s*GO\s*$`)
	reSchemaBinding = regexp.MustCompile(`(?i)\bWITH\s+SCHEMABINDING\b`)
	reCreateView    = regexp.MustCompile(`(?is)^\s*CREATE\s+VIEW\s+.*?\bAS\b`)
	reTopN          = regexp.MustCompile(`(?i)\bTOP\s*\(?\s*(\d+)\s*\)?\s*`)
	reGetDate       = regexp.MustCompile(`(?i)\b(?:GETDATE|GETUTCDATE|SYSDATETIME)\s*\(\s*\)`)
	reIsNull        = regexp.MustCompile(`(?i)\bISNULL\s*\(`)
	reLen           = regexp.MustCompile(`(?i)\bLEN\s*\(`)
	reCharIndex     = regexp.MustCompile(`(?i)\bCHARINDEX\s*\(`)
	reNolock        = regexp.MustCompile(`(?i)\bWITH\s*\(\s*NOLOCK\s*\)`)
	reBracketIdent  = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

// tableNameMap builds the source-to-target reference map used when
// rewriting view bodies: "dbo.Students" maps to `"public"."Student"`.
func tableNameMap(model *SchemaModel) map[string]string {
	m := make(map[string]string, len(model.Tables)+len(model.Views))
	for _, t := range model.Tables {
		m[t.SourceKey()] = pgTableRef(t)
	}
	for i := range model.Views {
		v := &model.Views[i]
		m[v.SourceKey()] = pgQualified(pgSchemaName(v.SchemaName) + "." + v.TranslatedName)
	}
	return m
}

// rewriteViewSQL translates a T-SQL view body into PostgreSQL syntax.
// The rewrite is regex-based and best effort: views it cannot handle fail
// at CREATE VIEW time and land in the error report instead of aborting
// the migration.
func rewriteViewSQL(def string, nameMap map[string]string, tr *Translator) string {
	sql := reGoBatch.ReplaceAllString(def, "")
	sql = reSchemaBinding.ReplaceAllString(sql, "")
	sql = reCreateView.ReplaceAllString(sql, "")
	sql = reNolock.ReplaceAllString(sql, "")

	// Qualified table and view references, longest source key first so
	// "dbo.StudentsArchive" is never clipped by "dbo.Students".
	keys := make([]string, 0, len(nameMap))
	for k := range nameMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		schema, name, ok := strings.Cut(k, ".")
		if !ok {
			continue
		}
		pat := fmt.Sprintf(`(?:\[%s\]|"%s"|\b%s)\.(?:\[%s\]|"%s"|\b%s\b)`,
			regexp.QuoteMeta(schema), regexp.QuoteMeta(schema), regexp.QuoteMeta(schema),
			regexp.QuoteMeta(name), regexp.QuoteMeta(name), regexp.QuoteMeta(name))
		sql = regexp.MustCompile(pat).ReplaceAllString(sql, nameMap[k])
	}

	// Remaining bracketed identifiers are columns or unqualified names:
	// translate and requote them.
	sql = reBracketIdent.ReplaceAllStringFunc(sql, func(m string) string {
		inner := m[1 : len(m)-1]
		return pgIdent(tr.Translate(inner))
	})

	sql = reGetDate.ReplaceAllString(sql, "NOW()")
	sql = reIsNull.ReplaceAllString(sql, "COALESCE(")
	sql = reLen.ReplaceAllString(sql, "LENGTH(")
	sql = reCharIndex.ReplaceAllString(sql, "STRPOS(")

	// TOP has no direct equivalent; the first occurrence becomes a
	// trailing LIMIT. Nested TOPs are beyond a regex rewrite.
	if m := reTopN.FindStringSubmatchIndex(sql); m != nil {
		n := sql[m[2]:m[3]]
		sql = sql[:m[0]] + sql[m[1]:]
		sql = strings.TrimRight(strings.TrimSpace(sql), ";")
		sql += " LIMIT " + n
	}

	return strings.TrimSpace(sql)
}

// ViewError records one view that could not be created on the target.
type ViewError struct {
	View          string `json:"view"`
	OriginalSQL   string `json:"original_sql"`
	TranslatedSQL string `json:"translated_sql"`
	Error         string `json:"error"`
}

// createViews creates all views on the target. Views can depend on each
// other in any order, so creation loops until a full pass makes no
// progress; whatever still fails is returned for the error report.
func createViews(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, tr *Translator) []ViewError {
	nameMap := tableNameMap(model)

	type pending struct {
		view *View
		sql  string
	}
	var queue []pending
	for i := range model.Views {
		v := &model.Views[i]
		queue = append(queue, pending{
			view: v,
			sql:  rewriteViewSQL(v.Definition, nameMap, tr),
		})
	}

	lastErr := make(map[string]string)
	for attempt := 0; attempt <= len(model.Views); attempt++ {
		var failed []pending
		for _, p := range queue {
			target := pgQualified(pgSchemaName(p.view.SchemaName) + "." + p.view.TranslatedName)
			stmt := "CREATE OR REPLACE VIEW " + target + " AS\n" + p.sql
			if err := execSQL(ctx, pool, stmt); err != nil {
				lastErr[p.view.SourceKey()] = err.Error()
				failed = append(failed, p)
				continue
			}
			delete(lastErr, p.view.SourceKey())
		}
		if len(failed) == 0 || len(failed) == len(queue) {
			queue = failed
			break
		}
		queue = failed
	}

	var errs []ViewError
	for _, p := range queue {
		errs = append(errs, ViewError{
			View:          p.view.SourceKey(),
			OriginalSQL:   p.view.Definition,
			TranslatedSQL: p.sql,
			Error:         lastErr[p.view.SourceKey()],
		})
	}
	return errs
}

// writeViewErrorReport writes failed views to a JSON file for manual
// porting.
func writeViewErrorReport(path string, errs []ViewError) error {
	if len(errs) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(errs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write view error report: %w", err)
	}
	log.Printf("%d view(s) failed, details in %s", len(errs), path)
	return nil
}
