package process_blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"btndump/process"
	"btndump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	MetadataFile  = "metadata.json"
	MemoryMapFile = "process_memory_map.json"

	// MaxRegionSize is the largest region written by SaveDump
	MaxRegionSize = 100 * 1024 * 1024
)

var errNoRegionData = errors.New("no data for region")

// Metadata identifies the process a dump was taken from
type Metadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

// BlobFileName is the file holding the bytes of the region at addr
func BlobFileName(addr uint64, size uint) string {
	return fmt.Sprintf("blob_0x%x_%d.bin", addr, size)
}

// ProcessDump serves reads from a saved or synthetic copy of process memory
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data

	log *logger.Logger
}

var _ process.Target = (*ProcessDump)(nil)

// NewProcessDump creates a new ProcessDump instance
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs: make(map[uint64][]byte),
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "dump")),
	}
}

// AddRegion maps data at addr. Regions must not overlap.
func (p *ProcessDump) AddRegion(addr process.ProcessMemoryAddress, data []byte, perms string, path string) {
	p.MemoryMap = append(p.MemoryMap, memory_map.MemoryMapItem{
		Address: uint64(addr),
		Size:    uint(len(data)),
		Perms:   perms,
		Path:    path,
	})
	memory_map.SortByAddress(p.MemoryMap)
	p.Blobs[uint64(addr)] = data
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	item := memory_map.IsValidAddress2(uint64(addr), p.MemoryMap)
	return item != nil && item.IsReadable()
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

// GetModules returns every file-backed module in the dump
func (p *ProcessDump) GetModules() ([]process.Module, error) {
	return process.ModulesFromMap(p.MemoryMap), nil
}

// GetModule returns the module whose basename or path equals name, ignoring case
func (p *ProcessDump) GetModule(name string) (process.Module, error) {
	m, err := process.FindModule(p.MemoryMap, name)
	if err != nil {
		return process.Module{}, fmt.Errorf("%w: %s", err, name)
	}
	return m, nil
}

// ReadModule returns a snapshot of every saved region of m
func (p *ProcessDump) ReadModule(m process.Module) ([]byte, error) {
	buf, copied := process.SnapshotModule(m, p.MemoryMap, p.ReadMemory)
	if copied == 0 {
		return nil, process.NewUnreadableError(m.Base, m.Size, errNoRegionData)
	}
	return buf, nil
}

// region returns the blob of the readable region containing addr
func (p *ProcessDump) region(addr process.ProcessMemoryAddress) (*ProcessBlob, error) {
	item := memory_map.IsValidAddress2(uint64(addr), p.MemoryMap)
	if item == nil || !item.IsReadable() {
		return nil, process.ErrAddressNotMapped
	}

	data, ok := p.Blobs[item.Address]
	if !ok {
		return nil, fmt.Errorf("%w 0x%x", errNoRegionData, item.Address)
	}

	return NewProcessBlob(process.ProcessMemoryAddress(item.Address), data), nil
}

// ReadMemory reads size bytes at addr, crossing into adjacent saved regions when needed
func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	result := make([]byte, 0, size)
	cur := addr

	for process.ProcessMemorySize(len(result)) < size {
		blob, err := p.region(cur)
		if err != nil {
			return nil, process.NewUnreadableError(addr, size, err)
		}

		want := size - process.ProcessMemorySize(len(result))
		if avail := process.ProcessMemorySize(blob.End() - cur); avail < want {
			want = avail
		}

		chunk, err := blob.ReadMemory(cur, want)
		if err != nil {
			return nil, process.NewUnreadableError(addr, size, err)
		}

		result = append(result, chunk...)
		cur = cur.Add(want)
	}

	return result, nil
}

// ReadPOINTER reads a pointer value from the specified address
func (p *ProcessDump) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := p.ReadMemory(addr, process.PointerSize)
	if err != nil {
		return 0, err
	}

	ptr, _ := process.DecodePOINTER(data)
	return ptr, nil
}

// savedSpan returns how many bytes from addr are backed by saved blobs, following
// adjacent regions. Readable regions that were never saved end the span.
func (p *ProcessDump) savedSpan(addr process.ProcessMemoryAddress) uint64 {
	cur := addr
	for {
		blob, err := p.region(cur)
		if err != nil || blob.End() <= cur {
			break
		}
		cur = blob.End()
	}
	return uint64(cur - addr)
}

// ReadNTS reads a null-terminated string, clamped to the saved memory following addr
func (p *ProcessDump) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	size := maxLength
	if span := p.savedSpan(addr); uint64(size) > span {
		size = process.ProcessMemorySize(span)
	}

	if size == 0 {
		if maxLength == 0 {
			return "", &process.MalformedStringError{Address: addr, MaxLength: maxLength}
		}
		return "", process.NewUnreadableError(addr, maxLength, process.ErrAddressNotMapped)
	}

	data, err := p.ReadMemory(addr, size)
	if err != nil {
		return "", err
	}

	return process.DecodeNTS(addr, data, maxLength)
}

// Load loads a dump written by SaveDump
func (p *ProcessDump) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, MetadataFile))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	p.PID = metadata.PID
	p.Name = metadata.Name

	mmBytes, err := os.ReadFile(filepath.Join(dirname, MemoryMapFile))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	if err := json.Unmarshal(mmBytes, &p.MemoryMap); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	memory_map.SortByAddress(p.MemoryMap)

	loaded := 0
	for _, region := range p.MemoryMap {
		filename := filepath.Join(dirname, BlobFileName(region.Address, region.Size))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // Blob not saved (e.g. too large or not readable)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		p.Blobs[region.Address] = data
		loaded++
	}

	p.log.Infoln("Loaded dump of", p.Name, "pid", p.PID, "with", loaded, "of", len(p.MemoryMap), "regions")

	return nil
}

// SaveDump writes metadata, the memory map and every readable region of at most
// MaxRegionSize bytes to dirname. Regions that fail to read are skipped and counted.
func SaveDump(
	dirname string,
	metadata Metadata,
	mm []memory_map.MemoryMapItem,
	read func(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error),
	log *logger.Logger,
) (saved int, failed int, err error) {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return 0, 0, fmt.Errorf("failed to create directory: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dirname, MetadataFile), metadataJSON, 0644); err != nil {
		return 0, 0, fmt.Errorf("failed to write metadata file: %w", err)
	}

	memoryMapJSON, err := json.MarshalIndent(mm, "", "  ")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal memory map: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dirname, MemoryMapFile), memoryMapJSON, 0644); err != nil {
		return 0, 0, fmt.Errorf("failed to write memory map file: %w", err)
	}

	for _, region := range mm {
		if !region.IsReadable() {
			continue
		}

		if region.Size > MaxRegionSize {
			log.Infoln("Skipping large region at", fmt.Sprintf("%x", region.Address),
				"(size:", region.Size/1024/1024, "MB)")
			continue
		}

		data, err := read(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
			failed++
			continue
		}

		filename := filepath.Join(dirname, BlobFileName(region.Address, region.Size))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return saved, failed, fmt.Errorf("failed to write blob %s: %w", filename, err)
		}
		saved++
	}

	log.Infoln("Process dump saved:", saved, "regions saved,", failed, "errors")

	return saved, failed, nil
}

// Save writes the dump back out in the format Load reads
func (p *ProcessDump) Save(dirname string) error {
	_, _, err := SaveDump(dirname, Metadata{PID: p.PID, Name: p.Name}, p.MemoryMap, p.ReadMemory, p.log)
	return err
}
