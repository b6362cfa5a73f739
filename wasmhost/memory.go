package wasmhost

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/clp-ffi/errors"
)

func outOfRange(what string, ptr, size uint32) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Path(what).
		Detail("guest memory [%d, %d) out of range", ptr, uint64(ptr)+uint64(size)).
		Build()
}

// readBytes copies n bytes of guest memory.
func readBytes(mem api.Memory, what string, ptr, n uint32) ([]byte, error) {
	if mem == nil {
		return nil, errors.NativeFailure(errors.PhaseHost, "caller has no memory")
	}
	b, ok := mem.Read(ptr, n)
	if !ok {
		return nil, outOfRange(what, ptr, n)
	}
	return append([]byte(nil), b...), nil
}

func readInts(mem api.Memory, what string, ptr, count uint32) ([]int32, error) {
	if count > math.MaxUint32/4 {
		return nil, outOfRange(what, ptr, math.MaxUint32)
	}
	b, err := readBytes(mem, what, ptr, count*4)
	if err != nil {
		return nil, err
	}
	v := make([]int32, count)
	for i := range v {
		v[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func readLongs(mem api.Memory, what string, ptr, count uint32) ([]int64, error) {
	if count > math.MaxUint32/8 {
		return nil, outOfRange(what, ptr, math.MaxUint32)
	}
	b, err := readBytes(mem, what, ptr, count*8)
	if err != nil {
		return nil, err
	}
	v := make([]int64, count)
	for i := range v {
		v[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}

// writeBytes copies up to capacity bytes of b into guest memory and returns the
// number written.
func writeBytes(mem api.Memory, what string, ptr, capacity uint32, b []byte) (uint32, error) {
	if mem == nil {
		return 0, errors.NativeFailure(errors.PhaseHost, "caller has no memory")
	}
	if uint32(len(b)) < capacity {
		capacity = uint32(len(b))
	}
	if !mem.Write(ptr, b[:capacity]) {
		return 0, outOfRange(what, ptr, capacity)
	}
	return capacity, nil
}
