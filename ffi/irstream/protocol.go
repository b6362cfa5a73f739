package irstream

// Magic numbers opening a stream; they also select the encoding width.
var (
	FourByteEncodingMagicNumber  = [4]byte{0xFD, 0x2F, 0xB5, 0x29}
	EightByteEncodingMagicNumber = [4]byte{0xFD, 0x2F, 0xB5, 0x30}
)

// Record tags.
const (
	EOF byte = 0x00

	MetadataEncodingJSON byte = 0x01
	MetadataLenUByte     byte = 0x11
	MetadataLenUShort    byte = 0x12

	VarFourByteEncoding  byte = 0x18
	VarEightByteEncoding byte = 0x19

	VarStrLenUByte  byte = 0x11
	VarStrLenUShort byte = 0x12
	VarStrLenInt    byte = 0x13

	LogtypeStrLenUByte  byte = 0x21
	LogtypeStrLenUShort byte = 0x22
	LogtypeStrLenInt    byte = 0x23

	TimestampVal        byte = 0x30
	TimestampDeltaByte  byte = 0x31
	TimestampDeltaShort byte = 0x32
	TimestampDeltaInt   byte = 0x33
	TimestampDeltaLong  byte = 0x34
)

// MetadataVersion is the metadata format version written to preambles.
const MetadataVersion = "0.0.1"

// Metadata is the JSON header of a stream.
type Metadata struct {
	Version                   string `json:"VERSION"`
	VariablesSchemaID         string `json:"VARIABLES_SCHEMA_ID"`
	VariableEncodingMethodsID string `json:"VARIABLE_ENCODING_METHODS_ID"`
	TimestampPattern          string `json:"TIMESTAMP_PATTERN"`
	TimestampPatternSyntax    string `json:"TIMESTAMP_PATTERN_SYNTAX"`
	TimeZoneID                string `json:"TZ_ID"`
	ReferenceTimestamp        string `json:"REFERENCE_TIMESTAMP,omitempty"`
}

const metadataSchema = `{
  "type": "object",
  "required": ["VERSION", "VARIABLES_SCHEMA_ID", "VARIABLE_ENCODING_METHODS_ID",
               "TIMESTAMP_PATTERN", "TIMESTAMP_PATTERN_SYNTAX", "TZ_ID"],
  "properties": {
    "VERSION": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"},
    "VARIABLES_SCHEMA_ID": {"type": "string"},
    "VARIABLE_ENCODING_METHODS_ID": {"type": "string"},
    "TIMESTAMP_PATTERN": {"type": "string"},
    "TIMESTAMP_PATTERN_SYNTAX": {"type": "string"},
    "TZ_ID": {"type": "string"},
    "REFERENCE_TIMESTAMP": {"type": "string", "pattern": "^-?[0-9]+$"}
  }
}`
