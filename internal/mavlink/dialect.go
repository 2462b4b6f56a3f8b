package mavlink

import "github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

// This payload's command surface rides on the common
// dialect's user-command range rather than a private dialect: defining and
// generating a full custom MAVLink dialect is the out-of-scope wire codec
// work this repository delegates to a collaborator, so every command below is
// carried as a standard COMMAND_LONG with its arguments packed into the
// seven float params, and acknowledged with a standard COMMAND_ACK.
const (
	CmdSetMode           = common.MAV_CMD_USER_1
	CmdStartRecord       = common.MAV_CMD_USER_2
	CmdStopRecord        = common.MAV_CMD_USER_3
	CmdSetRecordTag      = common.MAV_CMD_USER_4
	CmdStartMission      = common.MAV_CMD_USER_5
	CmdStopMission       = common.MAV_CMD_USER_6
	CmdStartCalibration  = common.MAV_CMD_USER_1 + 10
	CmdStopCalibration   = common.MAV_CMD_USER_1 + 11
	CmdSystemControl     = common.MAV_CMD_USER_1 + 12
	CmdListRecords       = common.MAV_CMD_USER_1 + 20
	CmdListTags          = common.MAV_CMD_USER_1 + 21
	CmdListDataPages     = common.MAV_CMD_USER_1 + 22
	CmdDeleteRecord      = common.MAV_CMD_USER_1 + 23
	CmdDeleteTag         = common.MAV_CMD_USER_1 + 24
)

// Result mirrors the command surface's response vocabulary, mapped onto the
// standard MAV_RESULT enum so a generic ground station still understands
// it even without decoding this payload's specific command ids.
type Result int

const (
	ResultAccepted Result = iota
	ResultDenied
	ResultFailed
	ResultUnsupported
	ResultInProgress
)

func (r Result) MAVResult() common.MAV_RESULT {
	switch r {
	case ResultAccepted:
		return common.MAV_RESULT_ACCEPTED
	case ResultDenied:
		return common.MAV_RESULT_DENIED
	case ResultUnsupported:
		return common.MAV_RESULT_UNSUPPORTED
	case ResultInProgress:
		return common.MAV_RESULT_IN_PROGRESS
	default:
		return common.MAV_RESULT_FAILED
	}
}

// ResultFromErrKind maps an errkind-classified error string onto a Result,
// used by the command dispatcher to build a COMMAND_ACK.
func ResultFromErrKind(kind string) Result {
	switch kind {
	case "":
		return ResultAccepted
	case "denied":
		return ResultDenied
	case "unsupported":
		return ResultUnsupported
	case "in_progress", "busy":
		return ResultInProgress
	default:
		return ResultFailed
	}
}

// Ack builds a COMMAND_ACK for command, addressed back to the requester.
func Ack(command common.MAV_CMD, result Result, targetSystem, targetComponent byte) *common.MessageCommandAck {
	return &common.MessageCommandAck{
		Command:         command,
		Result:          result.MAVResult(),
		TargetSystem:    targetSystem,
		TargetComponent: targetComponent,
	}
}
