package translog

import "fmt"

// Location is the (file, offset, length) triple Add returns, valid for
// Read while the file that contains it is the Translog's current or
// transient file. Once that file is rotated out, Read rejects the
// Location even if a Snapshot still holds the file open.
type Location struct {
	FileID int64
	Offset int64
	Length int32
}

func (l Location) String() string {
	return fmt.Sprintf("translog-%d[%d:+%d]", l.FileID, l.Offset, l.Length)
}
