package landlock

import (
	"testing"

	ll "github.com/clickpkg/go-clicksandbox/landlock/syscall"
)

func TestSubset(t *testing.T) {
	for _, tc := range []struct {
		a, b AccessFSSet
		want bool
	}{
		{0b00110011, 0b01111011, true},
		{0b00000001, 0b00000000, false},
		{0b01000000, 0b00011001, false},
		{0b00010001, 0b00011001, true},
		{0b00011001, 0b00011001, true},
	} {
		got := tc.a.isSubset(tc.b)
		if got != tc.want {
			t.Errorf("flagSubset(0b%b, 0b%b) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPrettyPrint(t *testing.T) {
	for _, tc := range []struct {
		a    AccessFSSet
		want string
	}{
		{a: 0, want: "∅"},
		{a: 0b1111100000000, want: "{MakeReg,MakeSock,MakeFifo,MakeBlock,MakeSym}"},
		{a: 0b0000011111111, want: "{Execute,WriteFile,ReadFile,ReadDir,RemoveDir,RemoveFile,MakeChar,MakeDir}"},
		{a: ll.AccessFSWriteFile, want: "{WriteFile}"},
		{a: ll.AccessFSRefer, want: "{Refer}"},
		{a: ll.AccessFSTruncate, want: "{Truncate}"},
		{a: accessFSWrite & accessFile, want: "{WriteFile,Truncate}"},
		{a: 1 << 63, want: "{1<<63}"},
	} {
		got := tc.a.String()
		if got != tc.want {
			t.Errorf("AccessFSSet(%08x).String() = %q, want %q", uint64(tc.a), got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	if !supportedAccessFS.valid() {
		t.Errorf("%v.valid() = false, want true", supportedAccessFS)
	}
	if a := supportedAccessFS + 1; a.valid() {
		t.Errorf("%v.valid() = true, want false", a)
	}
}
