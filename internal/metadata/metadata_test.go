package metadata

import (
	"testing"

	"fotabootloader/internal/flashctl"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Info{
		Version: Version{Major: 2, Minor: 3, Patch: 4},
		AppSize: 123456,
		CRC:     0xDEADC0DE,
	}
	copy(in.FirmwareSignature[:], []byte("0123456789abcdef"))
	in.Sentinel = Sentinel

	out := Decode(Encode(in))
	if out != in {
		t.Errorf("Decode(Encode(in)) = %+v, want %+v", out, in)
	}
}

func TestValidRequiresSentinel(t *testing.T) {
	i := Info{Version: Version{Major: 1}}
	if i.Valid() {
		t.Error("zero-value Info.Valid() = true, want false")
	}
	i.Sentinel = Sentinel
	if !i.Valid() {
		t.Error("Info with Sentinel set: Valid() = false, want true")
	}
}

func TestGetAppVersionOnEmptyStore(t *testing.T) {
	s := NewMemStore()
	v, err := GetAppVersion(s)
	if err != nil {
		t.Fatalf("GetAppVersion: %v", err)
	}
	if v != (Version{}) {
		t.Errorf("GetAppVersion on empty store = %+v, want zero value", v)
	}
}

func TestSetAppInfoThenGetAppInfo(t *testing.T) {
	s := NewMemStore()
	want := Info{Version: Version{Major: 5, Minor: 1, Patch: 0}, AppSize: 4096}
	if err := SetAppInfo(s, want); err != nil {
		t.Fatalf("SetAppInfo: %v", err)
	}

	got, ok, err := GetAppInfo(s)
	if err != nil {
		t.Fatalf("GetAppInfo: %v", err)
	}
	if !ok {
		t.Fatal("GetAppInfo ok = false after SetAppInfo")
	}
	if got.Version != want.Version || got.AppSize != want.AppSize {
		t.Errorf("GetAppInfo = %+v, want Version=%+v AppSize=%d", got, want.Version, want.AppSize)
	}
	if got.Sentinel != Sentinel {
		t.Errorf("SetAppInfo did not stamp Sentinel: got %#x", got.Sentinel)
	}
}

func TestFlashStoreRoundTrip(t *testing.T) {
	const base = 0x08006000
	mem := flashctl.NewMemProgrammer(base, 2048)
	s := NewFlashStore(mem, mem, base)

	want := Info{Version: Version{Major: 1, Minor: 2, Patch: 3}, AppSize: 2048, CRC: 0xAABBCCDD}
	if err := SetAppInfo(s, want); err != nil {
		t.Fatalf("SetAppInfo: %v", err)
	}

	got, ok, err := GetAppInfo(s)
	if err != nil {
		t.Fatalf("GetAppInfo: %v", err)
	}
	if !ok {
		t.Fatal("GetAppInfo ok = false after SetAppInfo")
	}
	if got.Version != want.Version || got.AppSize != want.AppSize || got.CRC != want.CRC {
		t.Errorf("GetAppInfo = %+v, want %+v", got, want)
	}
}

func TestFlashStoreRewriteErasesFirst(t *testing.T) {
	const base = 0x08006000
	mem := flashctl.NewMemProgrammer(base, 2048)
	s := NewFlashStore(mem, mem, base)

	if err := SetAppInfo(s, Info{Version: Version{Major: 1}, AppSize: 10}); err != nil {
		t.Fatalf("first SetAppInfo: %v", err)
	}
	if err := SetAppInfo(s, Info{Version: Version{Major: 9}, AppSize: 20}); err != nil {
		t.Fatalf("second SetAppInfo: %v", err)
	}

	got, _, err := GetAppInfo(s)
	if err != nil {
		t.Fatalf("GetAppInfo: %v", err)
	}
	if got.Version.Major != 9 || got.AppSize != 20 {
		t.Errorf("GetAppInfo after rewrite = %+v, want Major=9 AppSize=20", got)
	}
}
