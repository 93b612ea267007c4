package process_blob

import (
	"errors"
	"testing"

	"btndump/process"
	"btndump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/logger"
)

func newTestDump() *ProcessDump {
	dump := NewProcessDump()
	dump.AddRegion(0x2000, []byte("tail-without-null"), "r--p", "")
	dump.AddRegion(0x1000, []byte{0x00, 0x20, 0, 0, 0, 0, 0, 0, 'j', 'u', 'm', 'p', 0}, "r--p", "/lib/libclient.so")
	dump.AddRegion(0x100d, []byte{'!', 0}, "rw-p", "/lib/libclient.so")
	dump.AddRegion(0x3000, []byte("secret\x00"), "---p", "")
	return dump
}

func TestProcessDumpReadMemoryAcrossRegions(t *testing.T) {
	dump := newTestDump()

	data, err := dump.ReadMemory(0x100b, 4)
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "p\x00!\x00" {
		t.Fatalf("expected %q - got %q", "p\x00!\x00", data)
	}

	_, err = dump.ReadMemory(0x100e, 4)
	if !errors.Is(err, process.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable past the mapping - got %v", err)
	}

	_, err = dump.ReadMemory(0x3000, 1)
	if !errors.Is(err, process.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable for ---p region - got %v", err)
	}
}

func TestProcessDumpReadPOINTER(t *testing.T) {
	dump := newTestDump()

	ptr, err := dump.ReadPOINTER(0x1000)
	if err != nil {
		t.Fatal(err)
	}

	if ptr != 0x2000 {
		t.Fatalf("expected 0x2000 - got %s", ptr.ToString())
	}

	var unreadable *process.UnreadableError
	_, err = dump.ReadPOINTER(0x9000)
	if !errors.As(err, &unreadable) || unreadable.Address != 0x9000 {
		t.Fatalf("expected unreadable at 0x9000 - got %v", err)
	}
}

func TestProcessDumpReadNTS(t *testing.T) {
	dump := newTestDump()

	tests := []struct {
		name   string
		addr   process.ProcessMemoryAddress
		max    process.ProcessMemorySize
		exp    string
		expErr error
	}{
		{name: "terminated", addr: 0x1008, max: 64, exp: "jump"},
		{name: "exact fit", addr: 0x1008, max: 5, exp: "jump"},
		{name: "hits max length", addr: 0x1008, max: 4, expErr: process.ErrMalformedString},
		{name: "region end without null", addr: 0x2000, max: 64, expErr: process.ErrMalformedString},
		{name: "unmapped", addr: 0x5000, max: 64, expErr: process.ErrUnreadable},
		{name: "unreadable perms", addr: 0x3000, max: 64, expErr: process.ErrUnreadable},
		{name: "adjacent region", addr: 0x100d, max: 64, exp: "!"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := dump.ReadNTS(test.addr, test.max)
			if test.expErr != nil {
				if !errors.Is(err, test.expErr) {
					t.Fatalf("expected %v - got %q, %v", test.expErr, s, err)
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if s != test.exp {
				t.Fatalf("expected %q - got %q", test.exp, s)
			}
		})
	}
}

func TestProcessDumpReadNTSBeforeUnsavedRegion(t *testing.T) {
	dump := NewProcessDump()
	dump.AddRegion(0x1000, []byte("xxxxhi\x00"), "rw-p", "")

	// readable in the map but never saved, e.g. larger than MaxRegionSize
	dump.MemoryMap = append(dump.MemoryMap, memory_map.MemoryMapItem{Address: 0x1007, Size: 0x1000, Perms: "rw-p"})

	s, err := dump.ReadNTS(0x1004, 256)
	if err != nil {
		t.Fatal(err)
	}

	if s != "hi" {
		t.Fatalf("expected %q - got %q", "hi", s)
	}

	if _, err := dump.ReadNTS(0x1007, 256); !errors.Is(err, process.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable inside the unsaved region - got %v", err)
	}
}

func TestProcessDumpModules(t *testing.T) {
	dump := newTestDump()

	m, err := dump.GetModule("libclient.so")
	if err != nil {
		t.Fatal(err)
	}

	if m.Base != 0x1000 || m.Size != 0xf {
		t.Fatalf("unexpected module %+v", m)
	}

	snapshot, err := dump.ReadModule(m)
	if err != nil {
		t.Fatal(err)
	}

	if len(snapshot) != 0xf || string(snapshot[8:]) != "jump\x00!\x00" {
		t.Fatalf("unexpected snapshot %x", snapshot)
	}

	if _, err := dump.GetModule("libengine2.so"); !errors.Is(err, process.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound - got %v", err)
	}

	// a dump saved on Windows, read on any OS
	windowsDump := NewProcessDump()
	windowsDump.AddRegion(0x7ffa00000000, make([]byte, 0x1000), "r-xp", `C:\Steam\game\csgo\bin\win64\client.dll`)

	m, err = windowsDump.GetModule("client.dll")
	if err != nil {
		t.Fatal(err)
	}

	if m.Name != "client.dll" || m.Base != 0x7ffa00000000 || m.Size != 0x1000 {
		t.Fatalf("unexpected module %+v", m)
	}

	if _, err := windowsDump.GetModule("Client.DLL"); err != nil {
		t.Fatalf("expected a case-insensitive match - got %v", err)
	}
}

func TestSaveDumpLoad(t *testing.T) {
	src := newTestDump()
	dir := t.TempDir()

	log := logger.NewLogger("dump-test")
	saved, failed, err := SaveDump(dir, Metadata{PID: 42, Name: "game"}, src.MemoryMap, src.ReadMemory, log)
	if err != nil {
		t.Fatal(err)
	}

	if saved != 3 || failed != 0 {
		t.Fatalf("expected 3 saved, 0 failed - got %d, %d", saved, failed)
	}

	dst := NewProcessDump()
	if err := dst.Load(dir); err != nil {
		t.Fatal(err)
	}

	if dst.PID != 42 || dst.Name != "game" {
		t.Fatalf("unexpected metadata pid=%d name=%s", dst.PID, dst.Name)
	}

	s, err := dst.ReadNTS(0x1008, 64)
	if err != nil {
		t.Fatal(err)
	}

	if s != "jump" {
		t.Fatalf("expected jump - got %q", s)
	}

	if dst.IsValidAddress(0x3000) {
		t.Fatalf("expected ---p region to stay unreadable after load")
	}
}
