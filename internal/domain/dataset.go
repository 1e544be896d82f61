package domain

import "time"

// ConnKind identifies the kind of source behind a dataset.
type ConnKind string

// Supported connection kinds.
const (
	ConnParquet  ConnKind = "parquet"
	ConnCSV      ConnKind = "csv"
	ConnJSON     ConnKind = "json"
	ConnPostgres ConnKind = "postgres"
)

// Compression is the codec of a compressed CSV or JSON source.
type Compression string

// Supported compression codecs. The names match DuckDB's compression option.
const (
	CompressionNone  Compression = ""
	CompressionGzip  Compression = "gzip"
	CompressionBzip2 Compression = "bzip2"
	CompressionXZ    Compression = "xz"
	CompressionZstd  Compression = "zstd"
)

// DatasetConn is a parsed connection descriptor.
type DatasetConn struct {
	Kind        ConnKind
	Source      string // local path, object store URL, or postgres DSN
	Extension   string // parquet, csv, json, ndjson, jsonl; empty for postgres
	Compression Compression
}

// IsRemote reports whether the source lives in an object store or behind HTTP.
func (c DatasetConn) IsRemote() bool {
	return RemoteScheme(c.Source) != ""
}

// ConnectOpts registers a dataset under Name.
type ConnectOpts struct {
	Conn  DatasetConn
	Name  string
	Table string // source table; required for postgres
}

// Column is one entry of a dataset schema, in declaration order.
type Column struct {
	Name     string
	Type     string // engine type name, e.g. INTEGER, VARCHAR[], TIMESTAMP WITH TIME ZONE
	Nullable bool
}

// Dataset is a persisted dataset registration.
type Dataset struct {
	Name        string
	Kind        ConnKind
	Source      string
	Extension   string
	Compression Compression
	Table       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Conn rebuilds the connection descriptor of a persisted registration.
func (d *Dataset) Conn() DatasetConn {
	return DatasetConn{
		Kind:        d.Kind,
		Source:      d.Source,
		Extension:   d.Extension,
		Compression: d.Compression,
	}
}

// remoteSchemes lists URL prefixes served by DuckDB's httpfs/azure readers.
var remoteSchemes = []string{"s3://", "gs://", "gcs://", "az://", "abfss://", "https://", "http://"}

// RemoteScheme returns the URL scheme (without "://") of a remote source, or "".
func RemoteScheme(source string) string {
	for _, p := range remoteSchemes {
		if len(source) > len(p) && source[:len(p)] == p {
			return p[:len(p)-3]
		}
	}
	return ""
}
