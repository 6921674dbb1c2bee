package entity

const (
	// MaxEdictBits is the width of an entity index.
	MaxEdictBits = 14
	// MaxEntities is the number of entity slots.
	MaxEntities = 1 << MaxEdictBits
	// SerialBits is the width of the serial sent with a create.
	SerialBits = 17

	handleSerialBits = 10

	// InvalidHandle is the networked value of an empty handle.
	InvalidHandle uint32 = 1<<(MaxEdictBits+handleSerialBits) - 1
)

// HandleIndex returns the slot index a handle refers to.
func HandleIndex(h uint32) int32 {
	return int32(h & (MaxEntities - 1))
}

// HandleSerial returns the serial part of a handle.
func HandleSerial(h uint32) uint32 {
	return h >> MaxEdictBits
}

// IsHandleValid reports whether h refers to an entity at all.
func IsHandleValid(h uint32) bool {
	return h != InvalidHandle
}

// MakeHandle packs an index and serial the way networked handles do. The
// serial is truncated to the networked width.
func MakeHandle(index int32, serial uint32) uint32 {
	return uint32(index)&(MaxEntities-1) | (serial&(1<<handleSerialBits-1))<<MaxEdictBits
}
