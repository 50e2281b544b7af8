package landlock

import (
	"fmt"
	"testing"

	ll "github.com/clickpkg/go-clicksandbox/landlock/syscall"
)

func TestDowngradeAccessFS(t *testing.T) {
	for _, tc := range []struct {
		Name string

		Handled      AccessFSSet
		Requested    AccessFSSet
		SupportedABI int

		WantHandled   AccessFSSet
		WantRequested AccessFSSet

		WantFallbackToV0 bool
	}{
		{
			Name:          "RestrictHandledToSupported",
			SupportedABI:  1,
			Handled:       0b1111,
			Requested:     0b111111,
			WantHandled:   0b1111,
			WantRequested: 0b1111,
		},
		{
			Name:          "RestrictPathAccessToHandled",
			SupportedABI:  1,
			Handled:       0b1,
			Requested:     0b11,
			WantHandled:   0b1,
			WantRequested: 0b1,
		},
		{
			Name:          "DowngradeToV0IfKernelDoesNotSupportV1",
			SupportedABI:  0,
			Handled:       0b1,
			Requested:     0b11,
			WantHandled:   0b0,
			WantRequested: 0b0,
		},
		{
			Name:          "TruncateDroppedBeforeV3",
			SupportedABI:  2,
			Handled:       ll.AccessFSTruncate | ll.AccessFSWriteFile,
			Requested:     ll.AccessFSTruncate | ll.AccessFSWriteFile,
			WantHandled:   ll.AccessFSWriteFile,
			WantRequested: ll.AccessFSWriteFile,
		},
		{
			Name:          "ReferSupportedOnV2",
			SupportedABI:  2,
			Handled:       ll.AccessFSRefer | ll.AccessFSReadFile,
			Requested:     ll.AccessFSRefer | ll.AccessFSReadFile,
			WantHandled:   ll.AccessFSRefer | ll.AccessFSReadFile,
			WantRequested: ll.AccessFSRefer | ll.AccessFSReadFile,
		},
		{
			Name:             "ReferNotSupportedOnV1",
			SupportedABI:     1,
			Handled:          ll.AccessFSRefer | ll.AccessFSReadFile,
			Requested:        ll.AccessFSRefer | ll.AccessFSReadFile,
			WantFallbackToV0: true,
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			abi := abiInfos[tc.SupportedABI]

			rules := []FSRule{PathAccess(tc.Requested, "foo")}
			cfg := Config{handledAccessFS: tc.Handled}
			gotCfg, gotRules := downgrade(cfg, rules, abi)

			if tc.WantFallbackToV0 {
				if gotCfg != v0 {
					t.Errorf(
						"downgrade(%v, %v, ABIv%d) = %v, %v; want fallback to V0",
						cfg, tc.Requested, tc.SupportedABI,
						gotCfg, gotRules,
					)
				}
				return
			}

			if len(gotRules) != 1 {
				t.Fatalf("wrong number of rules returned: got %d, want 1", len(gotRules))
			}
			gotRequested := gotRules[0].accessFS
			gotHandled := gotCfg.handledAccessFS

			if gotHandled != tc.WantHandled || gotRequested != tc.WantRequested {
				t.Errorf(
					"Unexpected result\ndowngrade(%v, %v, ABIv%d)\n        = %v, %v\n     want %v, %v",
					cfg, tc.Requested, tc.SupportedABI,
					gotCfg, gotRequested,
					Config{handledAccessFS: tc.WantHandled}, tc.WantRequested,
				)
			}
		})
	}
}

func TestDowngradeNoop(t *testing.T) {
	for _, abi := range abiInfos {
		t.Run(fmt.Sprintf("V%v", abi.version), func(t *testing.T) {
			cfg := abi.asConfig().BestEffort()
			gotCfg, _ := downgrade(cfg, []FSRule{}, abi)

			if gotCfg != cfg {
				t.Errorf("downgrade should have been a no-op.\n got %v,\nwant %v", gotCfg, cfg)
			}
		})
	}
}

func TestConfinementRules(t *testing.T) {
	for _, tc := range []struct {
		ABI       int
		WantRefer bool
	}{
		{ABI: 1, WantRefer: false},
		{ABI: 2, WantRefer: true},
		{ABI: 3, WantRefer: true},
	} {
		t.Run(fmt.Sprintf("V%v", tc.ABI), func(t *testing.T) {
			rules := confinementRules("/x/pkg", abiInfos[tc.ABI])
			if len(rules) != 3 {
				t.Fatalf("confinementRules() returned %d rules, want 3", len(rules))
			}
			if got := hasRefer(rules[1].accessFS); got != tc.WantRefer {
				t.Errorf("base rule %v: refer = %v, want %v", rules[1], got, tc.WantRefer)
			}
			if !rules[2].ignoreMissing {
				t.Errorf("terminal rule %v must tolerate a missing device", rules[2])
			}
			for _, r := range rules {
				if !r.compatibleWithConfig(V3) {
					t.Errorf("rule %v incompatible with %v", r, V3)
				}
			}
			// Nothing outside the base may be written.
			if a := rules[0].accessFS.intersect(accessFSWrite); !a.isEmpty() {
				t.Errorf("read-only rule grants %v", a)
			}
		})
	}
}
