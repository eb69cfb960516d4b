/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

type indexColumnRow struct {
	Name      string `bun:"name"`
	Column    string `bun:"column"`
	NonUnique int    `bun:"non_unique"`
}

// ListIndexes reports the secondary indexes of table as seen by the
// engine, sorted by name. Primary key indexes are left out.
func ListIndexes(ctx context.Context, m *Manager, table string) ([]IndexSpec, error) {
	var rows []indexColumnRow
	err := m.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		rows, err = indexColumns(ctx, tx, m.Dialect(), table)
		return err
	})
	if err != nil {
		return nil, err
	}

	byName := map[string]*IndexSpec{}
	for _, r := range rows {
		if isPrimaryIndexName(r.Name, table) {
			continue
		}
		spec, ok := byName[r.Name]
		if !ok {
			spec = &IndexSpec{Name: r.Name, Unique: r.NonUnique == 0}
			byName[r.Name] = spec
		}
		spec.Columns = append(spec.Columns, r.Column)
	}
	result := make([]IndexSpec, 0, len(byName))
	for _, spec := range byName {
		result = append(result, *spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func indexColumns(ctx context.Context, tx bun.Tx, dialect, table string) ([]indexColumnRow, error) {
	var rows []indexColumnRow
	var err error
	switch dialect {
	case TypePostgres:
		err = tx.NewRaw(`
			SELECT i.relname AS name, a.attname AS "column",
			       CASE WHEN ix.indisunique THEN 0 ELSE 1 END AS non_unique
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_class i ON i.oid = ix.indexrelid
			JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
			WHERE t.relname = ? AND NOT ix.indisprimary
			ORDER BY i.relname, k.ord`, table).Scan(ctx, &rows)
	case TypeMySQL:
		err = tx.NewRaw(`
			SELECT INDEX_NAME AS name, COLUMN_NAME AS `+"`column`"+`, NON_UNIQUE AS non_unique
			FROM INFORMATION_SCHEMA.STATISTICS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
			ORDER BY INDEX_NAME, SEQ_IN_INDEX`, table).Scan(ctx, &rows)
	default:
		err = tx.NewRaw(`
			SELECT il.name AS name, ii.name AS "column",
			       CASE WHEN il."unique" = 1 THEN 0 ELSE 1 END AS non_unique
			FROM pragma_index_list(?) AS il
			JOIN pragma_index_info(il.name) AS ii
			WHERE il.origin <> 'pk'
			ORDER BY il.name, ii.seqno`, table).Scan(ctx, &rows)
	}
	return rows, err
}

func isPrimaryIndexName(name, table string) bool {
	n := strings.ToLower(name)
	return n == "primary" || n == strings.ToLower(table)+"_pkey"
}
