package util

// Little-endian byte converters shared by the on-disk header layout and the
// cache wire protocol. The cursor variants return the advanced cursor so
// callers can chain reads over one buffer.

func WriteByte(buff []byte, b byte) []byte {
	return append(buff, b)
}

func WriteBytes(buff []byte, bytes []byte) []byte {
	return append(buff, bytes...)
}

func WriteUB2(buff []byte, v uint16) []byte {
	buff = append(buff, byte(v))
	buff = append(buff, byte(v>>8))
	return buff
}

func WriteUB4(buff []byte, v uint32) []byte {
	buff = append(buff, byte(v))
	buff = append(buff, byte(v>>8))
	buff = append(buff, byte(v>>16))
	buff = append(buff, byte(v>>24))
	return buff
}

func WriteUB8(buff []byte, v uint64) []byte {
	buff = append(buff, byte(v))
	buff = append(buff, byte(v>>8))
	buff = append(buff, byte(v>>16))
	buff = append(buff, byte(v>>24))
	buff = append(buff, byte(v>>32))
	buff = append(buff, byte(v>>40))
	buff = append(buff, byte(v>>48))
	buff = append(buff, byte(v>>56))
	return buff
}

func ReadByte(buff []byte, cursor int) (int, byte) {
	return cursor + 1, buff[cursor]
}

func ReadBytes(buff []byte, cursor int, count int) (int, []byte) {
	return cursor + count, buff[cursor : cursor+count]
}

func ReadUB2(buff []byte, cursor int) (int, uint16) {
	v := uint16(buff[cursor]) | uint16(buff[cursor+1])<<8
	return cursor + 2, v
}

func ReadUB4(buff []byte, cursor int) (int, uint32) {
	v := uint32(buff[cursor]) |
		uint32(buff[cursor+1])<<8 |
		uint32(buff[cursor+2])<<16 |
		uint32(buff[cursor+3])<<24
	return cursor + 4, v
}

func ReadUB8(buff []byte, cursor int) (int, uint64) {
	v := uint64(buff[cursor]) |
		uint64(buff[cursor+1])<<8 |
		uint64(buff[cursor+2])<<16 |
		uint64(buff[cursor+3])<<24 |
		uint64(buff[cursor+4])<<32 |
		uint64(buff[cursor+5])<<40 |
		uint64(buff[cursor+6])<<48 |
		uint64(buff[cursor+7])<<56
	return cursor + 8, v
}

func ConvertUInt2Bytes(v uint16) []byte {
	return WriteUB2(make([]byte, 0, 2), v)
}

func ConvertUInt4Bytes(v uint32) []byte {
	return WriteUB4(make([]byte, 0, 4), v)
}

func ConvertULong8Bytes(v uint64) []byte {
	return WriteUB8(make([]byte, 0, 8), v)
}

func ReadUB2Byte2UInt16(buff []byte) uint16 {
	_, v := ReadUB2(buff, 0)
	return v
}

func ReadUB4Byte2UInt32(buff []byte) uint32 {
	_, v := ReadUB4(buff, 0)
	return v
}

func ReadUB8Byte2ULong(buff []byte) uint64 {
	_, v := ReadUB8(buff, 0)
	return v
}
