// Command permuto filters tensor frames kept in a local directory, a MinIO
// bucket or an S3 bucket.
//
//	permuto --store local --root ./frames filter --data img.pmto --features feat.pmto --out out.pmto --sigma 4 --sigma 4
//	permuto --store s3 --bucket frames bilateral --data img.pmto --out out.pmto --spatial-sigma 5 --color-sigma 0.1
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Store     string `long:"store" choice:"local" choice:"minio" choice:"s3" default:"local" description:"Blob store backend"`
	Root      string `long:"root" default:"." description:"Root directory of the local store"`
	Bucket    string `long:"bucket" env:"PERMUTO_BUCKET" description:"Bucket for the minio and s3 stores"`
	Prefix    string `long:"prefix" description:"Prefix prepended to blob names in the bucket"`
	Endpoint  string `long:"endpoint" env:"PERMUTO_ENDPOINT" description:"Endpoint of the minio or s3-compatible service"`
	Region    string `long:"region" env:"PERMUTO_REGION" description:"Bucket region"`
	AccessKey string `long:"access-key" env:"PERMUTO_ACCESS_KEY" description:"Access key for the minio store"`
	SecretKey string `long:"secret-key" env:"PERMUTO_SECRET_KEY" description:"Secret key for the minio store"`
	Insecure  bool   `long:"insecure" description:"Use plain HTTP for the minio store"`
	CacheSize int64  `long:"cache-size" description:"Bytes of blobs to cache in memory (0 disables)"`

	Precision   string `long:"precision" choice:"float32" choice:"float64" default:"float32" description:"Arithmetic precision"`
	Workers     int    `short:"w" long:"workers" description:"Goroutines for blur and slice (0 uses one)"`
	MemoryLimit int64  `long:"memory-limit" description:"Memory budget in bytes for lattice and frame buffers (0 is unlimited)"`
	IOLimit     int64  `long:"io-limit" description:"Blob I/O limit in bytes per second (0 is unlimited)"`
	Compression string `long:"compression" choice:"none" choice:"lz4" choice:"zstd" default:"zstd" description:"Compression of written frames"`

	LogLevel string `short:"l" long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info" description:"Log level"`
	JSONLogs bool   `long:"json-logs" description:"Emit logs as JSON"`
}

func newParser(globals *globalOptions) *flags.Parser {
	parser := flags.NewParser(globals, flags.Default)

	mustAddCommand(parser, "filter",
		"filter a tensor with explicit features",
		"The filter command filters --data [B, C, S...] guided by --features [B, F, S...] and writes --out.",
		&filterCommand{globals: globals})
	mustAddCommand(parser, "bilateral",
		"apply a bilateral filter",
		"The bilateral command filters --data [B, C, S...] using its spatial position and values as features.",
		&bilateralCommand{globals: globals})
	mustAddCommand(parser, "inspect",
		"print frame headers",
		"The inspect command prints the dtype, shape and compression of each named frame.",
		&inspectCommand{globals: globals})

	return parser
}

func mustAddCommand(parser *flags.Parser, name, short, long string, data any) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

func main() {
	var globals globalOptions
	if _, err := newParser(&globals).Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
