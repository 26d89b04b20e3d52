package migrations

import "embed"

// PostgresFS holds the Postgres schema files, applied in lexical order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema files, applied in lexical order.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
