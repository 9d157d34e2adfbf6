package protocol

import "fmt"

// Code selects the meaning of a frame body.
type Code int

// Protocol codes.
const (
	Error     Code = 0
	Alive     Code = 1
	Timeout   Code = 2
	Modules   Code = 3
	MDInfo    Code = 4
	MDEnable  Code = 5
	MDDisable Code = 6
	MDTopic   Code = 7
	MDOptions Code = 8
	MDRaw     Code = 9
)

var codeNames = map[Code]string{
	Error:     "ERROR",
	Alive:     "ALIVE",
	Timeout:   "TIMEOUT",
	Modules:   "MODULES",
	MDInfo:    "MD_INFO",
	MDEnable:  "MD_ENABLE",
	MDDisable: "MD_DISABLE",
	MDTopic:   "MD_TOPIC",
	MDOptions: "MD_OPTIONS",
	MDRaw:     "MD_RAW",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// IsConfigClass reports whether c is a configuration request subject to
// loop prevention on the MQTT side.
func (c Code) IsConfigClass() bool {
	switch c {
	case Error, Modules, MDInfo, MDEnable, MDDisable, MDTopic, MDOptions:
		return true
	}
	return false
}

// IsOutputOnly reports whether c may only travel from a device outwards.
func (c Code) IsOutputOnly() bool {
	return c == Alive || c == Timeout || c == MDRaw
}

// ErrorCode is the numeric reason carried by an ERROR frame.
type ErrorCode int

// Wire error codes.
const (
	ErrInvData         ErrorCode = 0
	ErrInvProtocol     ErrorCode = 1
	ErrMisProtocol     ErrorCode = 2
	ErrMisDeviceID     ErrorCode = 3
	ErrMisModuleID     ErrorCode = 4
	ErrDevPowerFailure ErrorCode = 5
	ErrDevHardware     ErrorCode = 6
	ErrDevNotReady     ErrorCode = 7
	ErrDevInvID        ErrorCode = 8
	ErrMDNotFound      ErrorCode = 9
	ErrMDNotAvailable  ErrorCode = 10
	ErrMDDisabled      ErrorCode = 11
	ErrMDHardware      ErrorCode = 12
	ErrMDInvID         ErrorCode = 13
	ErrMDInvInfo       ErrorCode = 14
	ErrMDInvTopic      ErrorCode = 15
	ErrMDInvSpecs      ErrorCode = 16
	ErrMDInvOpts       ErrorCode = 17
	ErrMDNotIPM        ErrorCode = 18
	ErrDevNotFound     ErrorCode = 19
	ErrTimeout         ErrorCode = 20
)

// Option sub-codes understood by the bridge-hosted modules.
const (
	// OptRaw is the generic raw option.
	OptRaw = 0

	// Script module.
	OptScriptList    = 1
	OptScriptExecute = 2

	// Bridge module.
	OptBridgeDebug   = 1
	OptBridgeSigUSR1 = 2
	OptBridgeSigUSR2 = 3

	// Serial module.
	OptSerialOpen  = 1
	OptSerialError = 2
)
