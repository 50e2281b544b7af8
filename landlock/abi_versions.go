package landlock

import ll "github.com/clickpkg/go-clicksandbox/landlock/syscall"

type abiInfo struct {
	version           int
	supportedAccessFS AccessFSSet
}

// abiInfos lists the file system rights each ABI version adds. Later
// versions only extend Landlock to network and IPC scoping, so they
// behave like V3 here.
var abiInfos = []abiInfo{
	{
		version:           0,
		supportedAccessFS: 0,
	},
	{
		version:           1,
		supportedAccessFS: (1 << 13) - 1,
	},
	{
		version:           2,
		supportedAccessFS: (1 << 14) - 1,
	},
	{
		version:           3,
		supportedAccessFS: (1 << 15) - 1,
	},
}

var highestKnownABIVersion = abiInfos[len(abiInfos)-1]

func (a abiInfo) asConfig() Config {
	return Config{handledAccessFS: a.supportedAccessFS}
}

// ABIVersion returns the Landlock ABI version of the running kernel, or
// 0 when Landlock is unavailable. The error explains the 0 case.
func ABIVersion() (int, error) {
	v, err := ll.LandlockGetABIVersion()
	if err != nil {
		return 0, kernelSupportError(err)
	}
	return v, nil
}

func getSupportedABIVersion() abiInfo {
	v, err := ll.LandlockGetABIVersion()
	if err != nil {
		v = 0 // ABI version 0 is "no Landlock support".
	}
	if v >= len(abiInfos) {
		v = len(abiInfos) - 1
	}
	return abiInfos[v]
}
