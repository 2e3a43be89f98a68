package server

import (
	"bytes"

	"github.com/loganszeto/respcache/internal/protocol"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

// Dispatch runs cmd against st. It keeps no state of its own.
func Dispatch(st store.Store, stats *stats.Stats, cmd protocol.Command) protocol.Reply {
	switch cmd.Type {
	case protocol.CmdPing:
		stats.RecordPing()
		return protocol.SimpleString("PONG")
	case protocol.CmdEcho:
		stats.RecordEcho()
		// A simple string cannot carry CR or LF.
		if bytes.ContainsAny(cmd.Value, "\r\n") {
			return protocol.BulkString(cmd.Value)
		}
		return protocol.SimpleString(string(cmd.Value))
	case protocol.CmdSet:
		st.Set(cmd.Key, cmd.Value, cmd.TTL)
		stats.RecordSet()
		return protocol.SimpleString("OK")
	case protocol.CmdGet:
		val, ok := st.Get(cmd.Key)
		stats.RecordGet(ok)
		if !ok {
			return protocol.Nil()
		}
		return protocol.BulkString(val)
	default:
		stats.RecordError()
		return protocol.Error("ERR unknown command")
	}
}

// ErrorReply turns a decode failure into the reply sent to the peer.
func ErrorReply(err error) protocol.Reply {
	return protocol.Error("ERR " + err.Error())
}
