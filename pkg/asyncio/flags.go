package asyncio

import "strings"

//Access is the desired access of an opened handle
type Access uint32

const (
	AccessRead Access = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

func (acc Access) String() string {
	switch acc {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read-write"
	}
	return "none"
}

//ShareMode is the access other openers are allowed, only enforced on Windows
type ShareMode uint32

const (
	ShareRead ShareMode = 1 << iota
	ShareWrite
	ShareDelete

	ShareNone ShareMode = 0
)

//Disposition decides what Open does when the path does or does not exist, the
// values are those of the Windows CreateFile API
type Disposition uint32

const (
	//CreateNew creates the file and fails if it exists
	CreateNew Disposition = iota + 1
	//CreateAlways creates the file, truncating it if it exists
	CreateAlways
	//OpenExisting opens the file and fails if it does not exist
	OpenExisting
	//OpenAlways opens the file, creating it if it does not exist
	OpenAlways
	//TruncateExisting opens and truncates the file and fails if it does not exist
	TruncateExisting
)

func (disp Disposition) String() string {
	switch disp {
	case CreateNew:
		return "create-new"
	case CreateAlways:
		return "create-always"
	case OpenExisting:
		return "open-existing"
	case OpenAlways:
		return "open-always"
	case TruncateExisting:
		return "truncate-existing"
	}
	return "invalid"
}

//Attributes are flags changing how transfers reach the device
type Attributes uint32

const (
	//AttrNoBuffering bypasses the OS cache, buffers and offsets must then be
	// sector aligned (ex. from directio.AlignedBlock)
	AttrNoBuffering Attributes = 1 << iota
	//AttrWriteThrough completes writes only once they reach the device
	AttrWriteThrough

	AttrNone Attributes = 0
)

func (attrs Attributes) String() string {
	var names []string
	if attrs&AttrNoBuffering != 0 {
		names = append(names, "no-buffering")
	}
	if attrs&AttrWriteThrough != 0 {
		names = append(names, "write-through")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
