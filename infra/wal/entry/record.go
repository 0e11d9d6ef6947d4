package entry

import "time"

// RecordType tags the command a record journals.
type RecordType uint8

const (
	RecordPlace RecordType = iota + 1
	RecordCancel
	RecordMove
	RecordReduce
)

// Record is one journaled command. Data is the encoded command.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// Frame:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
)
