// Package ddl builds DuckDB statements for dataset registration, secrets, and attachment.
package ddl

import (
	"fmt"
	"strings"

	"taotie/internal/domain"
)

// knownExtensions lists the only extensions that are ever installed.
var knownExtensions = map[string]bool{
	"httpfs":   true,
	"json":     true,
	"parquet":  true,
	"postgres": true,
	"azure":    true,
}

// LoadExtension returns "INSTALL <ext>; LOAD <ext>;" for a known extension.
func LoadExtension(name string) (string, error) {
	if !knownExtensions[name] {
		return "", fmt.Errorf("unknown extension %q", name)
	}
	return fmt.Sprintf("INSTALL %s; LOAD %s;", name, name), nil
}

// ReadFunction returns the DuckDB table function call that scans a file-backed
// dataset, e.g. read_csv('data.csv.gz', compression = 'gzip').
func ReadFunction(conn domain.DatasetConn) (string, error) {
	if conn.Source == "" {
		return "", fmt.Errorf("source path is required")
	}
	src := QuoteLiteral(conn.Source)

	var opts []string
	if conn.Compression != domain.CompressionNone {
		opts = append(opts, "compression = "+QuoteLiteral(string(conn.Compression)))
	}

	switch conn.Kind {
	case domain.ConnParquet:
		if len(opts) > 0 {
			return "", fmt.Errorf("parquet sources do not take a compression suffix")
		}
		return fmt.Sprintf("read_parquet(%s)", src), nil
	case domain.ConnCSV:
		return fmt.Sprintf("read_csv(%s)", strings.Join(append([]string{src}, opts...), ", ")), nil
	case domain.ConnJSON:
		format := "auto"
		if conn.Extension == "ndjson" || conn.Extension == "jsonl" {
			format = "newline_delimited"
		}
		opts = append([]string{"format = " + QuoteLiteral(format)}, opts...)
		return fmt.Sprintf("read_json(%s)", strings.Join(append([]string{src}, opts...), ", ")), nil
	default:
		return "", fmt.Errorf("unsupported file format: %q", conn.Kind)
	}
}

// CreateDatasetView generates a view over a file-backed source:
//
//	CREATE OR REPLACE VIEW "name" AS SELECT * FROM read_parquet('s3://...')
func CreateDatasetView(name string, conn domain.DatasetConn) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid dataset name: %w", err)
	}
	readFn, err := ReadFunction(conn)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s", QuoteIdentifier(name), readFn), nil
}

// CreateAliasView generates a view over a table of an attached catalog:
//
//	CREATE OR REPLACE VIEW "name" AS SELECT * FROM "catalog"."schema"."table"
func CreateAliasView(name, catalog, table string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid dataset name: %w", err)
	}
	if err := ValidateIdentifier(catalog); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("source table is required")
	}
	if !strings.Contains(table, ".") {
		table = "public." + table
	}
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s.%s",
		QuoteIdentifier(name),
		QuoteIdentifier(catalog),
		QuoteQualified(table),
	), nil
}

// DropView generates a DROP VIEW IF EXISTS statement.
func DropView(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid dataset name: %w", err)
	}
	return fmt.Sprintf("DROP VIEW IF EXISTS %s", QuoteIdentifier(name)), nil
}

// AttachPostgres returns a read-only ATTACH of a PostgreSQL database.
func AttachPostgres(catalogName, dsn string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if dsn == "" {
		return "", fmt.Errorf("postgres DSN is required")
	}
	return fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s (TYPE postgres, READ_ONLY)",
		QuoteLiteral(dsn),
		QuoteIdentifier(catalogName),
	), nil
}

// DetachCatalog returns a DuckDB DDL statement to detach a catalog.
func DetachCatalog(catalogName string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	return fmt.Sprintf("DETACH IF EXISTS %s", QuoteIdentifier(catalogName)), nil
}

// DescribeRelation returns DESCRIBE "name".
func DescribeRelation(name string) string {
	return "DESCRIBE " + QuoteIdentifier(name)
}

// SelectHead returns SELECT * FROM "name" LIMIT n.
func SelectHead(name string, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("row count must not be negative")
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdentifier(name), n), nil
}

// CreateS3Secret returns a DuckDB DDL statement to create an S3 secret.
func CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE S3,
	KEY_ID %s,
	SECRET %s,
	ENDPOINT %s,
	REGION %s,
	URL_STYLE %s
)`,
		QuoteIdentifier(name),
		QuoteLiteral(keyID),
		QuoteLiteral(secret),
		QuoteLiteral(endpoint),
		QuoteLiteral(region),
		QuoteLiteral(urlStyle),
	), nil
}

// CreateAzureSecret returns a DuckDB DDL statement to create an Azure secret.
func CreateAzureSecret(name, accountName, accountKey string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	connStr := fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		accountName, accountKey)
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE AZURE,
	CONNECTION_STRING %s
)`,
		QuoteIdentifier(name),
		QuoteLiteral(connStr),
	), nil
}

// CreateGCSSecret returns a DuckDB DDL statement to create a GCS HMAC secret.
func CreateGCSSecret(name, keyID, secret string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE GCS,
	KEY_ID %s,
	SECRET %s
)`,
		QuoteIdentifier(name),
		QuoteLiteral(keyID),
		QuoteLiteral(secret),
	), nil
}
