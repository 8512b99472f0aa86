// Package index records where each stored instance was written.
package index

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a SOP instance UID.
var ErrNotFound = errors.New("instance not found")

// Record describes one stored instance.
type Record struct {
	SOPInstanceUID    string    `cbor:"1,keyasint" json:"sop_instance_uid"`
	SOPClassUID       string    `cbor:"2,keyasint,omitempty" json:"sop_class_uid,omitempty"`
	StudyInstanceUID  string    `cbor:"3,keyasint,omitempty" json:"study_instance_uid,omitempty"`
	SeriesInstanceUID string    `cbor:"4,keyasint,omitempty" json:"series_instance_uid,omitempty"`
	Modality          string    `cbor:"5,keyasint,omitempty" json:"modality,omitempty"`
	Path              string    `cbor:"6,keyasint" json:"path"`
	TransferSyntaxUID string    `cbor:"7,keyasint,omitempty" json:"transfer_syntax_uid,omitempty"`
	CallingAETitle    string    `cbor:"8,keyasint,omitempty" json:"calling_ae_title,omitempty"`
	Listener          string    `cbor:"9,keyasint,omitempty" json:"listener,omitempty"`
	Bytes             int64     `cbor:"10,keyasint,omitempty" json:"bytes,omitempty"`
	StoredAt          time.Time `cbor:"11,keyasint" json:"stored_at"`
}

// Index stores and retrieves instance records. Putting a record for an
// existing SOP instance UID replaces it.
type Index interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, sopInstanceUID string) (Record, error)
	// Study returns all records of a study ordered by SOP instance UID.
	Study(ctx context.Context, studyInstanceUID string) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
