package bridge

import (
	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/hostrt"
)

// ValidateVersions checks the caller's variables schema and variable
// encoding methods versions. A mismatch raises UnsupportedOperationException.
func (b *Bridge) ValidateVersions(env hostrt.Env, schema hostrt.Ref, schemaLen int, encoding hostrt.Ref, encodingLen int) {
	do(b, env, "validate-versions", func() error {
		return validateVersions(env, schema, schemaLen, encoding, encodingLen)
	})
}

func validateVersions(env hostrt.Env, schema hostrt.Ref, schemaLen int, encoding hostrt.Ref, encodingLen int) error {
	got, err := borrowString(env, schema, schemaLen, "variablesSchemaVersion")
	if err != nil {
		return err
	}
	if got != ffi.VariablesSchemaVersion {
		return errors.UnsupportedVersion("variables schema", []byte(got))
	}

	got, err = borrowString(env, encoding, encodingLen, "variableEncodingMethodsVersion")
	if err != nil {
		return err
	}
	if got != ffi.VariableEncodingMethodsVersion {
		return errors.UnsupportedVersion("variable encoding methods", []byte(got))
	}
	return nil
}
