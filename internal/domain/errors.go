package domain

// ErrorKind classifies a failure at the dispatch or oracle boundary.
// InvalidArguments and ToolError are recoverable: they flow back into the
// reasoning loop as data. UnknownTool indicates a catalog mismatch and is
// logged loudly. OracleUnavailable fails the whole turn.
type ErrorKind string

const (
	KindInvalidArguments  ErrorKind = "invalid_arguments"
	KindToolError         ErrorKind = "tool_error"
	KindUnknownTool       ErrorKind = "unknown_tool"
	KindOracleUnavailable ErrorKind = "oracle_unavailable"
)
