package protocol

import "time"

type CmdType int

const (
	CmdPing CmdType = iota
	CmdEcho
	CmdSet
	CmdGet
)

func (t CmdType) String() string {
	switch t {
	case CmdPing:
		return "PING"
	case CmdEcho:
		return "ECHO"
	case CmdSet:
		return "SET"
	case CmdGet:
		return "GET"
	default:
		return "UNKNOWN"
	}
}

// Command is one decoded request. Key and Value never alias the decode
// buffer. ECHO carries its message in Value. A zero TTL means no expiry.
type Command struct {
	Type  CmdType
	Key   string
	Value []byte
	TTL   time.Duration
}

type ReplyKind int

const (
	KindSimpleString ReplyKind = iota
	KindBulkString
	KindNil
	KindError
)

type Reply struct {
	Kind ReplyKind
	Str  string
	Bulk []byte
}

// SimpleString must not contain CR or LF; use BulkString for arbitrary bytes.
func SimpleString(s string) Reply {
	return Reply{Kind: KindSimpleString, Str: s}
}

func BulkString(b []byte) Reply {
	return Reply{Kind: KindBulkString, Bulk: b}
}

func Nil() Reply {
	return Reply{Kind: KindNil}
}

// Error builds an error reply. CR and LF in msg become spaces so the reply
// stays one line.
func Error(msg string) Reply {
	return Reply{Kind: KindError, Str: oneLine(msg)}
}
