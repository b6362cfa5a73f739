package ffi

// Version identifiers both sides of the bridge must agree on.
const (
	VariablesSchemaVersion         = "com.yscope.clp.VariablesSchemaV2"
	VariableEncodingMethodsVersion = "com.yscope.clp.VariableEncodingMethodsV1"
)
