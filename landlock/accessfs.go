package landlock

import (
	"fmt"
	"strings"
)

// AccessFSSet is a set of Landlockable file system access operations.
type AccessFSSet uint64

var accessFSNames = []string{
	"Execute",
	"WriteFile",
	"ReadFile",
	"ReadDir",
	"RemoveDir",
	"RemoveFile",
	"MakeChar",
	"MakeDir",
	"MakeReg",
	"MakeSock",
	"MakeFifo",
	"MakeBlock",
	"MakeSym",
	"Refer",
	"Truncate",
}

var supportedAccessFS = AccessFSSet((1 << len(accessFSNames)) - 1)

func (a AccessFSSet) String() string {
	if a.isEmpty() {
		return "∅"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i < 64; i++ {
		if a&(1<<i) == 0 {
			continue
		}
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		if i < len(accessFSNames) {
			b.WriteString(accessFSNames[i])
		} else {
			fmt.Fprintf(&b, "1<<%v", i)
		}
	}
	b.WriteByte('}')
	return b.String()
}

func (a AccessFSSet) isSubset(b AccessFSSet) bool {
	return a&b == a
}

func (a AccessFSSet) intersect(b AccessFSSet) AccessFSSet {
	return a & b
}

func (a AccessFSSet) union(b AccessFSSet) AccessFSSet {
	return a | b
}

func (a AccessFSSet) isEmpty() bool {
	return a == 0
}

// valid returns true iff the given AccessFSSet is supported by this
// version of the package.
func (a AccessFSSet) valid() bool {
	return a.isSubset(supportedAccessFS)
}
