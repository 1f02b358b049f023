package schemacache

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// The catalog is read with a fixed set of queries against pg_catalog.
// System schemas are excluded throughout.

const schemasQuery = `
select nspname
from pg_namespace
where nspname not like 'pg\_%' and nspname <> 'information_schema'
order by nspname`

const columnsQuery = `
select n.nspname, c.relname, c.relrowsecurity,
       a.attname, a.attnum, format_type(a.atttypid, a.atttypmod),
       a.attnotnull, pg_get_expr(d.adbin, d.adrelid)
from pg_class c
join pg_namespace n on n.oid = c.relnamespace
join pg_attribute a on a.attrelid = c.oid and a.attnum > 0 and not a.attisdropped
left join pg_attrdef d on d.adrelid = c.oid and d.adnum = a.attnum
where c.relkind in ('r', 'p')
  and n.nspname not like 'pg\_%' and n.nspname <> 'information_schema'
order by n.nspname, c.relname, a.attnum`

const indexesQuery = `
select n.nspname, t.relname, i.relname, x.indisunique, x.indisprimary
from pg_index x
join pg_class i on i.oid = x.indexrelid
join pg_class t on t.oid = x.indrelid
join pg_namespace n on n.oid = t.relnamespace
where n.nspname not like 'pg\_%' and n.nspname <> 'information_schema'
order by n.nspname, t.relname, i.relname`

const functionsQuery = `
select n.nspname, p.proname,
       pg_get_function_arguments(p.oid),
       pg_get_function_result(p.oid)
from pg_proc p
join pg_namespace n on n.oid = p.pronamespace
where n.nspname not like 'pg\_%' and n.nspname <> 'information_schema'
order by n.nspname, p.proname`

const triggersQuery = `
select n.nspname, c.relname, t.tgname
from pg_trigger t
join pg_class c on c.oid = t.tgrelid
join pg_namespace n on n.oid = c.relnamespace
where not t.tgisinternal
  and n.nspname not like 'pg\_%' and n.nspname <> 'information_schema'
order by n.nspname, c.relname, t.tgname`

const extensionsQuery = `
select extname, extversion from pg_extension order by extname`

const policiesQuery = `
select schemaname, tablename, policyname from pg_policies
where schemaname not like 'pg\_%' and schemaname <> 'information_schema'
order by schemaname, tablename, policyname`

const rolesQuery = `
select rolname, rolsuper, rolcanlogin from pg_roles order by rolname`

const typesQuery = `
select n.nspname, t.typname,
       case t.typtype
         when 'e' then 'enum'
         when 'd' then 'domain'
         when 'c' then 'composite'
         else 'base'
       end
from pg_type t
join pg_namespace n on n.oid = t.typnamespace
where n.nspname not like 'pg\_%' and n.nspname <> 'information_schema'
  and t.typtype in ('b', 'e', 'd', 'c')
order by n.nspname, t.typname`

func load(ctx context.Context, conn *pgx.Conn) (*Snapshot, error) {
	snap := &Snapshot{
		Tables:   make(map[ObjectKey]*Table),
		LoadedAt: time.Now(),
	}

	if err := queryInto(ctx, conn, schemasQuery, func(rows pgx.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		snap.Schemas = append(snap.Schemas, name)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, columnsQuery, func(rows pgx.Rows) error {
		var (
			col           Column
			schema, table string
			rls           bool
		)
		if err := rows.Scan(&schema, &table, &rls, &col.Name, &col.Ordinal, &col.Type, &col.NotNull, &col.Default); err != nil {
			return err
		}
		key := ObjectKey{Schema: schema, Name: table}
		t := snap.Tables[key]
		if t == nil {
			t = &Table{Schema: schema, Name: table, RLSEnabled: rls}
			snap.Tables[key] = t
		}
		t.Columns = append(t.Columns, col)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, indexesQuery, func(rows pgx.Rows) error {
		var ix Index
		if err := rows.Scan(&ix.Schema, &ix.Table, &ix.Name, &ix.Unique, &ix.Primary); err != nil {
			return err
		}
		snap.Indexes = append(snap.Indexes, ix)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, functionsQuery, func(rows pgx.Rows) error {
		var fn Function
		if err := rows.Scan(&fn.Schema, &fn.Name, &fn.Args, &fn.Returns); err != nil {
			return err
		}
		snap.Functions = append(snap.Functions, fn)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, triggersQuery, func(rows pgx.Rows) error {
		var tr Trigger
		if err := rows.Scan(&tr.Schema, &tr.Table, &tr.Name); err != nil {
			return err
		}
		snap.Triggers = append(snap.Triggers, tr)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, extensionsQuery, func(rows pgx.Rows) error {
		var ext Extension
		if err := rows.Scan(&ext.Name, &ext.Version); err != nil {
			return err
		}
		snap.Extensions = append(snap.Extensions, ext)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, policiesQuery, func(rows pgx.Rows) error {
		var p Policy
		if err := rows.Scan(&p.Schema, &p.Table, &p.Name); err != nil {
			return err
		}
		snap.Policies = append(snap.Policies, p)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, rolesQuery, func(rows pgx.Rows) error {
		var r Role
		if err := rows.Scan(&r.Name, &r.Super, &r.CanLogin); err != nil {
			return err
		}
		snap.Roles = append(snap.Roles, r)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryInto(ctx, conn, typesQuery, func(rows pgx.Rows) error {
		var td TypeDef
		if err := rows.Scan(&td.Schema, &td.Name, &td.Kind); err != nil {
			return err
		}
		snap.Types = append(snap.Types, td)
		return nil
	}); err != nil {
		return nil, err
	}

	return snap, nil
}

func queryInto(ctx context.Context, conn *pgx.Conn, sql string, scan func(pgx.Rows) error) error {
	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
