package errors

import "strconv"

// ERR is the error code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN          ERR = 0
	ERR_INVALID_ARGUMENT ERR = 1
	ERR_NOT_FOUND        ERR = 2
	ERR_PROCESSING       ERR = 3
	ERR_CONFIGURATION    ERR = 4
	ERR_CONTEXT_CANCELED ERR = 5
	ERR_ERROR            ERR = 6

	// block errors
	ERR_BLOCK_NOT_FOUND ERR = 10
	ERR_BLOCK_INVALID   ERR = 11
	ERR_BLOCK_ERROR     ERR = 12

	// tx errors
	ERR_TX_INVALID ERR = 20

	// service errors
	ERR_SERVICE_NOT_STARTED ERR = 30
	ERR_SERVICE_ERROR       ERR = 31

	// storage errors
	ERR_STORAGE_UNAVAILABLE ERR = 40
	ERR_STORAGE_ERROR       ERR = 41
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	5:  "CONTEXT_CANCELED",
	6:  "ERROR",
	10: "BLOCK_NOT_FOUND",
	11: "BLOCK_INVALID",
	12: "BLOCK_ERROR",
	20: "TX_INVALID",
	30: "SERVICE_NOT_STARTED",
	31: "SERVICE_ERROR",
	40: "STORAGE_UNAVAILABLE",
	41: "STORAGE_ERROR",
}

func (x ERR) Enum() *ERR {
	p := new(ERR)
	*p = x

	return p
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return "ERR(" + strconv.Itoa(int(x)) + ")"
}
