package protocol

import (
	"io"
	"strconv"
)

// AppendReply appends the wire form of r to dst.
func AppendReply(dst []byte, r Reply) ([]byte, error) {
	switch r.Kind {
	case KindSimpleString:
		dst = append(dst, '+')
		dst = append(dst, r.Str...)
	case KindBulkString:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(r.Bulk)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, r.Bulk...)
	case KindNil:
		dst = append(dst, "$-1"...)
	case KindError:
		dst = append(dst, '-')
		dst = append(dst, r.Str...)
	default:
		return dst, ErrInvalidReply
	}
	return append(dst, crlf...), nil
}

func WriteReply(w io.Writer, r Reply) error {
	buf, err := AppendReply(nil, r)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
