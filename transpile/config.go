// Package transpile converts T-SQL stored procedures into Go source. The
// pipeline is deterministic per batch: parse (external), index comments,
// analyze types per unit, lower procedural statements, dispatch DML to the
// configured back-end, and assemble the output with sorted imports and
// accumulated diagnostics.
package transpile

// Backend selects how DML statements are lowered.
type Backend string

const (
	BackendSQL    Backend = "sql"    // parameterized SQL through database/sql
	BackendRPC    Backend = "rpc"    // calls on a proto-defined client
	BackendMock   Backend = "mock"   // calls on the mockrpc server
	BackendInline Backend = "inline" // SQL text + args, no execution glue
)

// DDLPolicy decides what happens to non-temp DDL in the input.
type DDLPolicy string

const (
	DDLSkipWarn DDLPolicy = "skip-warn" // drop with a warning (default)
	DDLStrict   DDLPolicy = "strict"    // fail the batch
	DDLExtract  DDLPolicy = "extract"   // collect verbatim into the result
)

// NewIDMode decides how NEWID() is generated.
type NewIDMode string

const (
	NewIDApp  NewIDMode = "app"  // uuid generated in-process (default)
	NewIDDB   NewIDMode = "db"   // delegated to the database
	NewIDRPC  NewIDMode = "rpc"  // fetched from an ID service client
	NewIDStub NewIDMode = "stub" // placeholder for hand implementation
	NewIDMock NewIDMode = "mock" // deterministic counter for tests
)

// AnnotateLevel controls how much commentary the emitter adds.
type AnnotateLevel string

const (
	AnnotateNone     AnnotateLevel = "none"
	AnnotateMinimal  AnnotateLevel = "minimal"  // TODO markers only
	AnnotateStandard AnnotateLevel = "standard" // TODOs + original SQL
	AnnotateVerbose  AnnotateLevel = "verbose"  // all of the above + sections
)

// LoggerKind selects the SP-logger plumbing emitted for CATCH blocks.
type LoggerKind string

const (
	LoggerNone  LoggerKind = "none"
	LoggerSlog  LoggerKind = "slog"
	LoggerDB    LoggerKind = "db"
	LoggerFile  LoggerKind = "file"
	LoggerMulti LoggerKind = "multi"
	LoggerNop   LoggerKind = "nop"
)

// Config is the full option surface of one transpilation batch.
type Config struct {
	// Package is the Go package name of the emitted file.
	Package string

	// Backend picks the DML lowering strategy.
	Backend Backend

	// Fallback handles statements the primary back-end cannot express
	// (temp tables under rpc/mock). Defaults to sql.
	Fallback         Backend
	FallbackExplicit bool

	// Dialect names the SQL text variant: ansi, tsql, postgres, mysql,
	// sqlite.
	Dialect string

	// Receiver, when non-empty, makes emitted procedures methods on
	// "(<Receiver> <ReceiverType>)".
	Receiver     string
	ReceiverType string

	// ContextArg is the name of the context parameter. Defaults to ctx.
	ContextArg string

	// StoreVar is the database handle the SQL back-end calls
	// (e.g. "db" or "r.db").
	StoreVar string

	// NewID selects the NEWID() policy; IDServiceVar names the client used
	// in rpc mode.
	NewID        NewIDMode
	IDServiceVar string

	// RPC back-end options.
	RPCClientVar     string            // client handle, e.g. "client"
	ProtoPackage     string            // namespace prefix for request types
	ProcMappings     map[string]string // procedure -> Service.Method overrides
	TableToService   map[string]string
	TableToClient    map[string]string
	ServiceToPackage map[string]string

	// MockStoreVar is the mockrpc server handle in mock mode.
	MockStoreVar string

	// DDL handling.
	DDL DDLPolicy

	// SP-logger plumbing for CATCH blocks.
	Logger         LoggerKind
	LoggerVar      string
	LoggerTable    string // db sink
	LoggerFile     string // file sink
	LoggerFormat   string // file sink: json or text
	EmitLoggerInit bool

	// Annotate controls TODO markers and original-SQL comments.
	Annotate AnnotateLevel
}

// DefaultConfig returns the defaults the CLI starts from.
func DefaultConfig() Config {
	return Config{
		Package:      "procs",
		Backend:      BackendSQL,
		Fallback:     BackendSQL,
		Dialect:      "postgres",
		ContextArg:   "ctx",
		StoreVar:     "db",
		NewID:        NewIDApp,
		RPCClientVar: "client",
		MockStoreVar: "store",
		DDL:          DDLSkipWarn,
		Logger:       LoggerNone,
		LoggerVar:    "spLogger",
		LoggerTable:  "ErrorLog",
		LoggerFormat: "json",
		Annotate:     AnnotateNone,
	}
}

func (c *Config) fillDefaults() {
	if c.Package == "" {
		c.Package = "procs"
	}
	if c.Backend == "" {
		c.Backend = BackendSQL
	}
	if c.Fallback == "" {
		c.Fallback = BackendSQL
	}
	if c.Dialect == "" {
		c.Dialect = "postgres"
	}
	if c.ContextArg == "" {
		c.ContextArg = "ctx"
	}
	if c.StoreVar == "" {
		c.StoreVar = "db"
	}
	if c.NewID == "" {
		c.NewID = NewIDApp
	}
	if c.RPCClientVar == "" {
		c.RPCClientVar = "client"
	}
	if c.MockStoreVar == "" {
		c.MockStoreVar = "store"
	}
	if c.DDL == "" {
		c.DDL = DDLSkipWarn
	}
	if c.Logger == "" {
		c.Logger = LoggerNone
	}
	if c.LoggerVar == "" {
		c.LoggerVar = "spLogger"
	}
	if c.LoggerTable == "" {
		c.LoggerTable = "ErrorLog"
	}
	if c.LoggerFormat == "" {
		c.LoggerFormat = "json"
	}
	if c.Annotate == "" {
		c.Annotate = AnnotateNone
	}
}

func (c *Config) useLogger() bool {
	return c.Logger != "" && c.Logger != LoggerNone
}

func (c *Config) emitTODOs() bool {
	return c.Annotate == AnnotateMinimal || c.Annotate == AnnotateStandard || c.Annotate == AnnotateVerbose
}

func (c *Config) emitOriginal() bool {
	return c.Annotate == AnnotateStandard || c.Annotate == AnnotateVerbose
}
