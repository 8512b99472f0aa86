package listener

import "fmt"

// Status is the DIMSE status code returned for a request.
type Status uint16

const (
	StatusSuccess              Status = 0x0000
	StatusProcessingFailure    Status = 0x0110
	StatusSOPClassNotSupported Status = 0x0122
	StatusOutOfResources       Status = 0xA700
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusProcessingFailure:
		return "Processing Failure"
	case StatusSOPClassNotSupported:
		return "SOP Class Not Supported"
	case StatusOutOfResources:
		return "Out of Resources"
	default:
		return fmt.Sprintf("Status 0x%04X", uint16(s))
	}
}

// Hex formats s as 0xNNNN.
func (s Status) Hex() string {
	return fmt.Sprintf("0x%04X", uint16(s))
}

// IsSuccess reports whether s is the success status.
func (s Status) IsSuccess() bool { return s == StatusSuccess }
