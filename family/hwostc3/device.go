// Package hwostc3 implements the Device and Parser for the Heinrichs
// Weikamp OSTC3/OSTC Sport, grounded on hw_ostc3.c: a single-byte-command
// echo-framed protocol with two device modes (plain download and an
// AES-keyed service mode needed for the firmware-update and raw flash
// commands) and a dual compact/full logbook-header layout the device
// negotiates at download time.
package hwostc3

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/buffer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/firmware"
)

const (
	sBlockRead  = 0x20
	sBlockWrite = 0x30
	sErase      = 0x42
	sReady      = 0x4C
	ready       = 0x4D
	sUpgrade    = 0x50
	cmdHeader   = 0x61
	cmdClock    = 0x62
	customText  = 0x63
	cmdDive     = 0x66
	identity    = 0x69
	hardware    = 0x6A
	display     = 0x6E
	compact     = 0x6D
	read        = 0x72
	write       = 0x77
	reset       = 0x78
	cmdInit     = 0xBB
	exit        = 0xFF

	ostc3Model = 0x0A
	sportModel = 0x12

	szDisplay    = 16
	szCustomText = 60
	szVersion    = szCustomText + 4
	szHardware   = 1
	szConfig     = 4
	szMemory     = 0x400000

	rbLogbookSizeCompact = 16
	rbLogbookSizeFull    = 256
	rbLogbookCount       = 256

	fingerprintSize = 5
)

type state int

const (
	stateOpen state = iota
	stateDownload
	stateService
	stateRebooting
)

type logbookLayout struct {
	size        int
	profile     int
	fingerprint int
	number      int
}

var (
	logbookCompact = logbookLayout{size: rbLogbookSizeCompact, profile: 0, fingerprint: 3, number: 13}
	logbookFull    = logbookLayout{size: rbLogbookSizeFull, profile: 9, fingerprint: 12, number: 80}
)

type device struct {
	fingerprint []byte
	state       state
}

// Open opens the serial connection the way hw_ostc3_device_open does:
// 115200 8N1, 3000ms timeout, 300ms settle, flush both queues. The device
// starts in OPEN state; INIT/service-mode negotiation happens lazily on
// first use via ensureState.
func Open(ctx *dc.Context, transport dc.Transport) (*dc.Device, error) {
	const op = "hwostc3.Open"

	if err := transport.Configure(dc.TransportParams{
		BaudRate: 115200, DataBits: 8, Parity: dc.ParityNone, StopBits: 1, FlowControl: dc.FlowNone,
	}); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetTimeout(3000 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Sleep(300 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Flush(dc.QueueBoth); err != nil {
		return nil, newIOErr(op, err)
	}

	be := &device{state: stateOpen}
	return dc.NewDevice(ctx, transport, be), nil
}

func (be *device) Family() dc.Family { return dc.FamilyHWOSTC3 }

// transfer implements hw_ostc3_transfer: write the command byte, read and
// verify its echo (an echo equal to the current mode's ready byte means
// the firmware doesn't support this command — StatusUnsupported rather
// than StatusProtocol), write any input packet, read any output payload
// in opportunistically-sized chunks, then read the trailing ready byte
// (skipped for EXIT, which the device answers by resetting instead).
func (be *device) transfer(d *dc.Device, progress *dc.Progress, cmd byte, input []byte, outputSize int) ([]byte, error) {
	const op = "hwostc3.transfer"

	if d.Cancelled() {
		return nil, cancelErr(op)
	}

	readyByte := byte(ready)
	if be.state == stateService {
		readyByte = sReady
	}

	if _, err := d.Transport().Write([]byte{cmd}); err != nil {
		return nil, newIOErr(op, err)
	}

	echo := make([]byte, 1)
	if _, err := d.Transport().Read(echo); err != nil {
		return nil, newTimeoutErr(op, err)
	}
	if echo[0] != cmd {
		if echo[0] == readyByte {
			return nil, newErr(dc.StatusUnsupported, op, fmt.Errorf("unsupported command 0x%02x", cmd))
		}
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected echo"))
	}

	if input != nil {
		if _, err := d.Transport().Write(input); err != nil {
			return nil, newIOErr(op, err)
		}
	}

	var output []byte
	if outputSize > 0 {
		output = make([]byte, outputSize)
		nbytes := 0
		for nbytes < outputSize {
			chunk := 1024
			if available, err := d.Transport().Available(); err == nil && available > chunk {
				chunk = available
			}
			if nbytes+chunk > outputSize {
				chunk = outputSize - nbytes
			}
			if _, err := d.Transport().Read(output[nbytes : nbytes+chunk]); err != nil {
				return nil, newTimeoutErr(op, err)
			}
			if progress != nil {
				progress.Current += uint32(chunk)
				d.EmitProgress(progress.Current, progress.Maximum)
			}
			nbytes += chunk
		}
	}

	if cmd != exit {
		answer := make([]byte, 1)
		if _, err := d.Transport().Read(answer); err != nil {
			return nil, newTimeoutErr(op, err)
		}
		if answer[0] != readyByte {
			return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected ready byte"))
		}
	}

	return output, nil
}

// ensureState implements hw_ostc3_device_init: OPEN can move to either
// DOWNLOAD or SERVICE; SERVICE already supports every DOWNLOAD command so
// a DOWNLOAD request while in SERVICE needs no further negotiation;
// DOWNLOAD cannot switch to SERVICE.
func (be *device) ensureState(d *dc.Device, target state) error {
	const op = "hwostc3.ensureState"

	switch {
	case be.state == target:
		return nil
	case be.state == stateOpen && target == stateDownload:
		if _, err := be.transfer(d, nil, cmdInit, nil, 0); err != nil {
			return err
		}
		be.state = stateDownload
		return nil
	case be.state == stateOpen && target == stateService:
		return be.initService(d)
	case be.state == stateService && target == stateDownload:
		return nil
	default:
		return newErr(dc.StatusInvalidArgs, op, fmt.Errorf("cannot switch from state %d to %d", be.state, target))
	}
}

// initService implements hw_ostc3_device_init_service: a four-byte magic
// handshake that bypasses transfer's normal echo framing entirely.
func (be *device) initService(d *dc.Device) error {
	const op = "hwostc3.initService"

	command := []byte{0xAA, 0xAB, 0xCD, 0xEF}
	if _, err := d.Transport().Write(command); err != nil {
		return newIOErr(op, err)
	}

	if err := d.Transport().Sleep(100 * time.Millisecond); err != nil {
		return newIOErr(op, err)
	}

	output := make([]byte, 5)
	if _, err := d.Transport().Read(output); err != nil {
		return newTimeoutErr(op, err)
	}

	if output[0] != 0x4B || output[1] != 0xAB || output[2] != 0xCD || output[3] != 0xEF || output[4] != sReady {
		return newErr(dc.StatusProtocol, op, fmt.Errorf("failed to verify service mode echo"))
	}

	be.state = stateService
	return nil
}

func (be *device) SetFingerprint(d *dc.Device, data []byte) error {
	if len(data) != 0 && len(data) != fingerprintSize {
		return newErr(dc.StatusInvalidArgs, "hwostc3.SetFingerprint", nil)
	}
	be.fingerprint = append([]byte(nil), data...)
	return nil
}

func (be *device) Read(d *dc.Device, addr, length uint32) ([]byte, error) {
	return nil, newErr(dc.StatusUnsupported, "hwostc3.Read", nil)
}

func (be *device) Write(d *dc.Device, addr uint32, data []byte) error {
	return newErr(dc.StatusUnsupported, "hwostc3.Write", nil)
}

// Dump implements hw_ostc3_device_dump: switch to service mode and read
// the entire 4MB flash in BlockSize chunks via the raw S_BLOCK_READ
// command, the same transfer firmware verification uses.
func (be *device) Dump(d *dc.Device, buf *buffer.Buffer) error {
	const op = "hwostc3.Dump"

	if err := be.ensureState(d, stateService); err != nil {
		return err
	}

	progress := &dc.Progress{Maximum: szMemory}
	d.EmitProgress(0, progress.Maximum)

	data := make([]byte, szMemory)
	for offset := 0; offset < szMemory; offset += firmware.BlockSize {
		block, err := be.blockRead(d, progress, uint32(offset), firmware.BlockSize)
		if err != nil {
			return err
		}
		copy(data[offset:], block)
	}

	buf.Clear()
	buf.Append(data)
	return nil
}

func (be *device) blockRead(d *dc.Device, progress *dc.Progress, addr uint32, size int) ([]byte, error) {
	packet := make([]byte, 6)
	byteutil.PutU24BE(packet, addr)
	byteutil.PutU24BE(packet[3:], uint32(size))
	return be.transfer(d, progress, sBlockRead, packet, size)
}

func (be *device) blockWrite(d *dc.Device, addr uint32, block []byte) error {
	const op = "hwostc3.blockWrite"
	if len(block) > firmware.BlockSize {
		return newErr(dc.StatusInvalidArgs, op, fmt.Errorf("block too large"))
	}
	packet := make([]byte, 3+len(block))
	byteutil.PutU24BE(packet, addr)
	copy(packet[3:], block)
	_, err := be.transfer(d, nil, sBlockWrite, packet, 0)
	return err
}

func (be *device) erase(d *dc.Device, addr uint32, size int) error {
	blocks := byte((size + firmware.BlockSize - 1) / firmware.BlockSize)
	packet := make([]byte, 4)
	byteutil.PutU24BE(packet, addr)
	packet[3] = blocks
	_, err := be.transfer(d, nil, sErase, packet, 0)
	return err
}

// Upgrade implements hw_ostc3_device_fwupdate: erase the firmware area,
// upload it block by block, read every block back to verify it, then
// send the S_UPGRADE command with the image's checksum. The caller
// decodes img with firmware.ReadImage first.
func (be *device) Upgrade(d *dc.Device, img *firmware.Image) error {
	const op = "hwostc3.Upgrade"

	if err := be.ensureState(d, stateService); err != nil {
		return err
	}

	if err := be.erase(d, firmware.Area, firmware.Size); err != nil {
		return newErr(dc.StatusIO, op, fmt.Errorf("erase: %w", err))
	}

	blocks := img.Blocks()
	for i, block := range blocks {
		if err := be.blockWrite(d, uint32(firmware.Area+i*firmware.BlockSize), block); err != nil {
			return newErr(dc.StatusIO, op, fmt.Errorf("write block %d: %w", i, err))
		}
	}

	for i, block := range blocks {
		readBack, err := be.blockRead(d, nil, uint32(firmware.Area+i*firmware.BlockSize), len(block))
		if err != nil {
			return newErr(dc.StatusIO, op, fmt.Errorf("verify block %d: %w", i, err))
		}
		if !bytesEqual(readBack, block) {
			return newErr(dc.StatusProtocol, op, fmt.Errorf("verify block %d: mismatch", i))
		}
	}

	if _, err := be.transfer(d, nil, sUpgrade, firmware.UpgradeCommand(img.Checksum), 0); err != nil {
		return newErr(dc.StatusIO, op, fmt.Errorf("send upgrade command: %w", err))
	}

	be.state = stateRebooting
	return nil
}


// Version reads the IDENTITY block: 2 bytes LE serial, 2 bytes BE
// firmware version, szCustomText bytes of custom text.
func (be *device) Version(d *dc.Device) ([]byte, error) {
	if err := be.ensureState(d, stateDownload); err != nil {
		return nil, err
	}
	return be.transfer(d, nil, identity, nil, szVersion)
}

// Hardware reads the one-byte hardware descriptor. Older firmware
// doesn't support this command; callers should treat StatusUnsupported
// as "model unknown, fall back to the serial-number heuristic".
func (be *device) Hardware(d *dc.Device) ([]byte, error) {
	if err := be.ensureState(d, stateDownload); err != nil {
		return nil, err
	}
	return be.transfer(d, nil, hardware, nil, szHardware)
}

// Foreach implements hw_ostc3_device_foreach: download the version and
// hardware descriptors to build a DevInfo event, download the compact
// logbook-header table (falling back to the slower full layout on
// StatusUnsupported for older firmware), locate the most recently
// written entry by its internal dive counter, then walk backward through
// the header ring computing each dive's profile length from its 24-bit
// LE length field until the stored fingerprint is matched.
func (be *device) Foreach(d *dc.Device, cb dc.DiveCallback) error {
	const op = "hwostc3.Foreach"

	progress := &dc.Progress{Maximum: szMemory}
	d.EmitProgress(0, progress.Maximum)

	if err := be.ensureState(d, stateDownload); err != nil {
		return err
	}

	id, err := be.Version(d)
	if err != nil {
		return newErr(dc.StatusIO, op, fmt.Errorf("read version: %w", err))
	}

	hw, err := be.Hardware(d)
	var model uint32
	if err == nil {
		model = uint32(hw[0])
	} else if dc.StatusOf(err) != dc.StatusUnsupported {
		return newErr(dc.StatusIO, op, fmt.Errorf("read hardware: %w", err))
	}
	serial := uint32(byteutil.U16LE(id[0:]))
	if model == 0 {
		if serial > 10000 {
			model = sportModel
		} else {
			model = ostc3Model
		}
	}
	d.EmitDevInfo(dc.DevInfo{
		Model:    model,
		Firmware: uint32(byteutil.U16BE(id[2:])),
		Serial:   serial,
	})

	isCompact := true
	header, err := be.transfer(d, progress, compact, nil, rbLogbookSizeCompact*rbLogbookCount)
	if dc.StatusOf(err) == dc.StatusUnsupported {
		isCompact = false
		header, err = be.transfer(d, progress, cmdHeader, nil, rbLogbookSizeFull*rbLogbookCount)
	}
	if err != nil {
		return newErr(dc.StatusIO, op, fmt.Errorf("read header: %w", err))
	}

	layout := logbookFull
	if isCompact {
		layout = logbookCompact
	}

	count, latest := scanHeaderLogbook(header, layout)

	type diveSlot struct {
		idx, offset, length int
	}
	var dives []diveSlot
	size := 0
	for i := 0; i < count; i++ {
		idx := (latest + rbLogbookCount - i) % rbLogbookCount
		offset := idx * layout.size

		if byteutil.IsAll(header[offset:offset+layout.size], 0xFF) {
			break
		}

		length := rbLogbookSizeFull + int(byteutil.U24LE(header[offset+layout.profile:])) - 3
		if !isCompact {
			firmwareVersion := byteutil.U16BE(header[offset+0x30:])
			if firmwareVersion < 93 {
				length -= 3
			}
		}

		if be.fingerprint != nil && bytesEqual(header[offset+layout.fingerprint:offset+layout.fingerprint+fingerprintSize], be.fingerprint) {
			break
		}

		if length > 0 {
			size += length
		}
		dives = append(dives, diveSlot{idx: idx, offset: offset, length: length})
	}

	progress.Maximum = uint32(layout.size*rbLogbookCount + size)
	d.EmitProgress(progress.Current, progress.Maximum)

	for _, slot := range dives {
		if d.Cancelled() {
			return cancelErr(op)
		}

		profile, err := be.transfer(d, progress, cmdDive, []byte{byte(slot.idx)}, slot.length)
		if err != nil {
			return newErr(dc.StatusIO, op, fmt.Errorf("read dive %d: %w", slot.idx, err))
		}

		if !isCompact && !bytesEqual(profile[:layout.size], header[slot.offset:slot.offset+layout.size]) {
			return newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected profile header"))
		}

		fp := profile[12 : 12+fingerprintSize]
		if !cb(profile, fp) {
			return nil
		}
	}

	return nil
}

// scanHeaderLogbook implements the first counting loop of
// hw_ostc3_device_foreach: find the highest internal dive counter among
// populated (non-0xFF) header entries.
func scanHeaderLogbook(header []byte, layout logbookLayout) (count, latest int) {
	maximum := uint32(0)
	for i := 0; i < rbLogbookCount; i++ {
		offset := i * layout.size
		if byteutil.IsAll(header[offset:offset+layout.size], 0xFF) {
			continue
		}
		current := uint32(byteutil.U16LE(header[offset+layout.number:]))
		if current > maximum {
			maximum = current
			latest = i
		}
		count++
	}
	return count, latest
}

func (be *device) Close(d *dc.Device) error {
	if be.state == stateDownload || be.state == stateService {
		if _, err := be.transfer(d, nil, exit, nil, 0); err != nil {
			return err
		}
	}
	return d.Transport().Close()
}

// Clock sets the device's onboard clock.
func (be *device) Clock(d *dc.Device, t dc.DateTime) error {
	if err := be.ensureState(d, stateDownload); err != nil {
		return err
	}
	packet := []byte{byte(t.Hour), byte(t.Minute), byte(t.Second), byte(t.Month), byte(t.Day), byte(t.Year - 2000)}
	_, err := be.transfer(d, nil, cmdClock, packet, 0)
	return err
}

// Display sets the device's custom display text, padded with spaces.
func (be *device) Display(d *dc.Device, text string) error {
	if err := be.ensureState(d, stateDownload); err != nil {
		return err
	}
	packet, err := padASCII(text, szDisplay)
	if err != nil {
		return newErr(dc.StatusInvalidArgs, "hwostc3.Display", err)
	}
	_, err = be.transfer(d, nil, display, packet, 0)
	return err
}

// CustomText sets the device's custom text field, padded with spaces.
func (be *device) CustomText(d *dc.Device, text string) error {
	if err := be.ensureState(d, stateDownload); err != nil {
		return err
	}
	packet, err := padASCII(text, szCustomText)
	if err != nil {
		return newErr(dc.StatusInvalidArgs, "hwostc3.CustomText", err)
	}
	_, err = be.transfer(d, nil, customText, packet, 0)
	return err
}

// ConfigRead reads up to szConfig bytes from one of the device's
// configuration slots.
func (be *device) ConfigRead(d *dc.Device, config byte, size int) ([]byte, error) {
	if size > szConfig {
		return nil, newErr(dc.StatusInvalidArgs, "hwostc3.ConfigRead", nil)
	}
	if err := be.ensureState(d, stateDownload); err != nil {
		return nil, err
	}
	return be.transfer(d, nil, read, []byte{config}, size)
}

// ConfigWrite writes up to szConfig bytes to one of the device's
// configuration slots.
func (be *device) ConfigWrite(d *dc.Device, config byte, data []byte) error {
	if len(data) > szConfig {
		return newErr(dc.StatusInvalidArgs, "hwostc3.ConfigWrite", nil)
	}
	if err := be.ensureState(d, stateDownload); err != nil {
		return err
	}
	packet := append([]byte{config}, data...)
	_, err := be.transfer(d, nil, write, packet, 0)
	return err
}

// ConfigReset resets the device's configuration to factory defaults.
func (be *device) ConfigReset(d *dc.Device) error {
	if err := be.ensureState(d, stateDownload); err != nil {
		return err
	}
	_, err := be.transfer(d, nil, reset, nil, 0)
	return err
}

func padASCII(text string, size int) ([]byte, error) {
	if len(text) > size {
		return nil, fmt.Errorf("text too long: %d bytes, max %d", len(text), size)
	}
	packet := make([]byte, size)
	copy(packet, text)
	for i := len(text); i < size; i++ {
		packet[i] = ' '
	}
	return packet, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}
func newIOErr(op string, cause error) error      { return newErr(dc.StatusIO, op, cause) }
func newTimeoutErr(op string, cause error) error { return newErr(dc.StatusTimeout, op, cause) }
func cancelErr(op string) error                  { return newErr(dc.StatusCancelled, op, nil) }
