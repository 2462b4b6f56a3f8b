package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
	"github.com/skyward-avionics/sdr-payload/internal/mavlink"
	"github.com/skyward-avionics/sdr-payload/internal/mission"
	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/switcher"
	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
	"github.com/skyward-avionics/sdr-payload/internal/sysctl"
	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

// chunkDataType tags a DATA96 frame with which list/data request it answers,
// so a ground station demultiplexes replies without a private dialect.
type chunkDataType uint8

const (
	dataRecordEntries chunkDataType = iota
	dataTagIDs
	dataTagValue
	dataPage
)

// Dispatcher decodes COMMAND_LONG frames carrying this payload's user
// commands and drives the switcher, mission executor, calibration engine and
// sysctl collaborators, replying with COMMAND_ACK and, for list/read
// requests, a paced run of DATA96 frames.
type Dispatcher struct {
	sw       *switcher.Switcher
	mission  *mission.Executor
	calib    *calibration.Engine
	sender   mavlink.Sender
	logger   *slog.Logger
	sendWait time.Duration
	exit     func(code int)
}

// NewDispatcher constructs a Dispatcher. sendWait paces successive DATA96
// frames of one chunked response, matching RecordSendDelayMs.
func NewDispatcher(sw *switcher.Switcher, m *mission.Executor, calib *calibration.Engine, sender mavlink.Sender, sendWait time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sw: sw, mission: m, calib: calib, sender: sender, sendWait: sendWait, logger: logger, exit: os.Exit}
}

// HandleFrame inspects fe for a COMMAND_LONG addressed at this payload's user
// command range, dispatches it, and replies on fe.Channel with a COMMAND_ACK.
// Frames carrying any other message are ignored; this is not the telemetry
// subscriber. A SystemControl Restart command exits the process only after
// its ack has gone out, matching "Restart terminates the current process
// with exit code 0".
func (d *Dispatcher) HandleFrame(ctx context.Context, fe *gomavlib.EventFrame) {
	cmd, ok := fe.Message().(*common.MessageCommandLong)
	if !ok {
		return
	}

	result, restart := d.dispatch(ctx, fe, cmd)

	ack := mavlink.Ack(cmd.Command, result, fe.SystemID(), fe.ComponentID())
	if err := d.sender.SendTo(fe.Channel, ack); err != nil {
		d.logger.Warn("dispatch: sending command ack failed", "command", cmd.Command, "error", err)
	}

	if restart {
		d.exit(0)
	}
}

// dispatch executes cmd and returns the ack result, plus whether a
// SystemControl Restart was accepted and still needs to exit the process
// once HandleFrame has sent the ack.
func (d *Dispatcher) dispatch(ctx context.Context, fe *gomavlib.EventFrame, cmd *common.MessageCommandLong) (mavlink.Result, bool) {
	params := []float32{cmd.Param1, cmd.Param2, cmd.Param3, cmd.Param4, cmd.Param5, cmd.Param6, cmd.Param7}

	var err error
	restart := false
	switch cmd.Command {
	case mavlink.CmdSetMode:
		err = d.handleSetMode(params)
	case mavlink.CmdStartRecord:
		_, err = d.sw.StartRecord(unpackASCII(params))
	case mavlink.CmdStopRecord:
		err = d.sw.StopRecord()
	case mavlink.CmdSetRecordTag:
		err = d.handleSetRecordTag(params)
	case mavlink.CmdStartMission:
		err = d.mission.StartMission(int(params[0]))
	case mavlink.CmdStopMission:
		d.mission.StopMission()
	case mavlink.CmdStartCalibration:
		d.calib.StartCalibration()
	case mavlink.CmdStopCalibration:
		d.calib.StopCalibration()
	case mavlink.CmdSystemControl:
		action := sysctl.Action(int(params[0]))
		err = sysctl.Execute(action)
		restart = err == nil && action == sysctl.Restart
	case mavlink.CmdListRecords:
		err = d.handleListRecords(ctx, fe.Channel, params)
	case mavlink.CmdListTags:
		err = d.handleListTags(ctx, fe.Channel, params)
	case mavlink.CmdListDataPages:
		err = d.handleReadDataPage(ctx, fe.Channel, params)
	case mavlink.CmdDeleteRecord:
		err = d.sw.DeleteRecord(unpackUUID(params[0:4]))
	case mavlink.CmdDeleteTag:
		err = d.handleDeleteTag(params)
	default:
		return mavlink.ResultUnsupported, false
	}

	return mavlink.ResultFromErrKind(errkind.Kind(err)), restart
}

func (d *Dispatcher) handleSetMode(params []float32) error {
	mode := workmode.Mode(int(params[0]))
	freq := unpackFreq(params[1], params[2])
	recordRate := float64(params[3])
	ratio := uint32(params[4])
	refPower := float64(params[5])
	return d.sw.SetMode(mode, freq, recordRate, ratio, refPower)
}

// handleSetRecordTag unpacks Param1=kind, Param2=name length, Param3=value
// length, and the concatenated name+value bytes from Params4-7 (16 raw
// bytes): COMMAND_LONG's seven-float ceiling leaves no room for a longer
// name or a general-purpose byte value, a scoped limitation of riding on the
// common dialect instead of a private one.
func (d *Dispatcher) handleSetRecordTag(params []float32) error {
	kind := store.TagKind(int(params[0]))
	nameLen := int(params[1])
	valueLen := int(params[2])

	raw := unpackRawBytes(params[3:7])
	if nameLen < 0 || valueLen < 0 || nameLen+valueLen > len(raw) {
		return fmt.Errorf("%w: tag name/value exceed the 16-byte command payload", errkind.ErrUnsupported)
	}

	name := string(raw[:nameLen])
	value := append([]byte(nil), raw[nameLen:nameLen+valueLen]...)

	_, err := d.sw.CurrentRecordSetTag(kind, name, value)
	return err
}

func (d *Dispatcher) handleDeleteTag(params []float32) error {
	recordID := unpackUUID(params[0:4])
	name := unpackASCII(params[4:7])
	return d.sw.DeleteTag(recordID, store.TagID(name, recordID))
}

func (d *Dispatcher) handleListRecords(ctx context.Context, ch *gomavlib.Channel, params []float32) error {
	skip, count := uint32(params[0]), uint32(params[1])
	entries, err := d.sw.ListRecords(skip, count)
	if err != nil {
		return err
	}

	var buf []byte
	for _, e := range entries {
		buf = appendUint32(buf, e.PageCount)
		buf = append(buf, e.ID[:]...)
		buf = appendString(buf, e.Name)
	}
	return d.sendChunked(ctx, ch, dataRecordEntries, buf)
}

func (d *Dispatcher) handleListTags(ctx context.Context, ch *gomavlib.Channel, params []float32) error {
	recordID := unpackUUID(params[0:4])
	skip, count := uint32(params[4]), uint32(params[5])
	ids, err := d.sw.ListTags(recordID, skip, count)
	if err != nil {
		return err
	}

	var buf []byte
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	return d.sendChunked(ctx, ch, dataTagIDs, buf)
}

func (d *Dispatcher) handleReadDataPage(ctx context.Context, ch *gomavlib.Channel, params []float32) error {
	recordID := unpackUUID(params[0:4])
	pageIndex := uint32(params[4])
	payload, err := d.sw.ReadDataPage(recordID, pageIndex)
	if err != nil {
		return err
	}
	return d.sendChunked(ctx, ch, dataPage, payload)
}

// sendChunked frames data into as many DATA96 messages as needed (96 bytes
// each, minus a 4-byte chunk header), pacing successive frames by sendWait
// so a slow transport isn't flooded by one large record's pagination.
func (d *Dispatcher) sendChunked(ctx context.Context, ch *gomavlib.Channel, typ chunkDataType, data []byte) error {
	const chunkPayload = 92
	total := (len(data) + chunkPayload - 1) / chunkPayload
	if total == 0 {
		total = 1
	}

	for i := 0; i < total; i++ {
		lo := i * chunkPayload
		hi := lo + chunkPayload
		if hi > len(data) {
			hi = len(data)
		}
		chunk := data[lo:hi]

		var frame [96]byte
		frame[0] = byte(typ)
		frame[1] = byte(i)
		frame[2] = byte(total)
		frame[3] = byte(len(chunk))
		copy(frame[4:], chunk)

		msg := &common.MessageData96{Type: uint8(typ), Len: uint8(len(chunk) + 4), Data: frame}
		if err := d.sender.SendTo(ch, msg); err != nil {
			return fmt.Errorf("%w: sending data chunk %d/%d", errkind.ErrFailed, i, total)
		}

		if i+1 < total {
			select {
			case <-time.After(d.sendWait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func appendUint32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, byte(len(s)))
	return append(dst, s...)
}

// unpackFreq reassembles a uint64 frequency from two bit-reinterpreted
// float32 halves, the same scheme packUUID uses: a frequency in Hz can
// exceed float32's 24-bit mantissa, so it travels as raw bits, not a
// numeric float conversion.
func unpackFreq(hi, lo float32) uint64 {
	h := uint64(math.Float32bits(hi))
	l := uint64(math.Float32bits(lo))
	return h<<32 | l
}

// packFreq is unpackFreq's inverse: it splits a frequency into the two
// float32 params a SetMode command carries. Only the tests call it here.
func packFreq(freq uint64) (hi, lo float32) {
	return math.Float32frombits(uint32(freq >> 32)), math.Float32frombits(uint32(freq))
}

func unpackRawBytes(params []float32) []byte {
	out := make([]byte, 0, len(params)*4)
	for _, p := range params {
		bits := math.Float32bits(p)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}
