package cache

import (
	"github.com/tinylib/msgp/msgp"
)

// diskEntry 是 fileStore 中单个 .entry 文件的 MessagePack 布局。Key 总是第一个字段，
// 以便诊断列举时无需解码正文。
type diskEntry struct {
	Key         string
	URL         string
	ContentType string
	StoredAt    int64
	Body        []byte
}

// EncodeMsg implements msgp.Encodable
func (z *diskEntry) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(5); err != nil {
		return
	}
	if err = en.WriteString("Key"); err != nil {
		return
	}
	if err = en.WriteString(z.Key); err != nil {
		return
	}
	if err = en.WriteString("URL"); err != nil {
		return
	}
	if err = en.WriteString(z.URL); err != nil {
		return
	}
	if err = en.WriteString("ContentType"); err != nil {
		return
	}
	if err = en.WriteString(z.ContentType); err != nil {
		return
	}
	if err = en.WriteString("StoredAt"); err != nil {
		return
	}
	if err = en.WriteInt64(z.StoredAt); err != nil {
		return
	}
	if err = en.WriteString("Body"); err != nil {
		return
	}
	return en.WriteBytes(z.Body)
}

// DecodeMsg implements msgp.Decodable
func (z *diskEntry) DecodeMsg(dc *msgp.Reader) (err error) {
	var field []byte
	var n uint32
	n, err = dc.ReadMapHeader()
	if err != nil {
		return
	}
	for n > 0 {
		n--
		field, err = dc.ReadMapKeyPtr()
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "Key":
			z.Key, err = dc.ReadString()
		case "URL":
			z.URL, err = dc.ReadString()
		case "ContentType":
			z.ContentType, err = dc.ReadString()
		case "StoredAt":
			z.StoredAt, err = dc.ReadInt64()
		case "Body":
			z.Body, err = dc.ReadBytes(z.Body)
		default:
			err = dc.Skip()
		}
		if err != nil {
			return
		}
	}
	return
}

// decodeEntryKey 只读取 Key 字段。
func decodeEntryKey(dc *msgp.Reader) (string, error) {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return "", err
	}
	for ; n > 0; n-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return "", err
		}
		if msgp.UnsafeString(field) == "Key" {
			return dc.ReadString()
		}
		if err := dc.Skip(); err != nil {
			return "", err
		}
	}
	return "", msgp.ErrShortBytes
}
