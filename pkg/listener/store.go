package listener

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/marmos91/dittodicom/pkg/admission"
	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/marmos91/dittodicom/pkg/layout"
	"github.com/marmos91/dittodicom/pkg/store"
	"github.com/marmos91/dittodicom/pkg/store/index"
	"github.com/marmos91/dittodicom/pkg/store/mirror"
	"github.com/marmos91/dittodicom/pkg/transcode"
	"go.uber.org/zap"
)

// Request outcome labels used in logs and metrics.
const (
	outcomeStored           = "stored"
	outcomeSkipped          = "skipped"
	outcomeFailed           = "failed"
	outcomeInvalid          = "missing_identifiers"
	outcomeUnsupportedClass = "unsupported_class"
	outcomeNoCapacity       = "no_capacity"
	outcomeRateLimited      = "rate_limited"
	outcomePanic            = "panic"
	outcomeEchoSuccess      = "success"

	commandEcho  = "echo"
	commandStore = "store"
)

// Request is one received object together with its association metadata.
type Request struct {
	CallingAE string
	CalledAE  string
	Object    dicom.Object
}

// Response is the status returned to the sender.
type Response struct {
	Status         Status
	StatusText     string
	SOPInstanceUID string
	// Skipped is set when the destination already existed and the strategy
	// does not overwrite. The status is still Success.
	Skipped bool
	Path    string
}

func respond(status Status, uid, text string) Response {
	if text == "" {
		text = status.String()
	}
	return Response{Status: status, StatusText: text, SOPInstanceUID: uid}
}

// HandleEcho answers a verification request.
func (l *Listener) HandleEcho(ctx context.Context, callingAE string) Response {
	l.metrics.RecordRequest(l.cfg.AETitle, commandEcho, outcomeEchoSuccess, 0)
	l.log.Debugw("echo", "calling_ae", callingAE)
	return respond(StatusSuccess, "", "")
}

// HandleStore runs the store pipeline for one object.
//
// Every failure is mapped onto a status for this object only; a panic in
// the pipeline is recovered and reported as a processing failure.
//
// Returns:
//   - StatusSuccess when stored, or when the destination already existed
//     and the strategy does not overwrite (Skipped is then set)
//   - StatusOutOfResources when rate limited or the root lacks capacity
//   - StatusSOPClassNotSupported for a class the listener does not accept
//   - StatusProcessingFailure for missing identifiers and any other error
//
// Transcode rejections and index or mirror failures never change the status.
func (l *Listener) HandleStore(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	outcome := outcomeFailed

	l.metrics.RecordRequestStart(l.cfg.AETitle)
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("panic while storing object",
				"calling_ae", req.CallingAE,
				"panic", r,
				"stack", string(debug.Stack()))
			resp = respond(StatusProcessingFailure, resp.SOPInstanceUID, fmt.Sprintf("internal error: %v", r))
			outcome = outcomePanic
		}
		l.metrics.RecordRequestEnd(l.cfg.AETitle)
		l.metrics.RecordRequest(l.cfg.AETitle, commandStore, outcome, time.Since(start))
	}()

	resp, outcome = l.store(ctx, req)
	return resp
}

// identifiers are the attributes an object must carry to be stored.
type identifiers struct {
	sopInstanceUID    string
	sopClassUID       string
	studyInstanceUID  string
	seriesInstanceUID string
	patientName       string
}

func readIdentifiers(obj dicom.Object) (identifiers, error) {
	var ids identifiers
	var missing []string

	read := func(tag dicom.Tag, name string, dst *string) {
		v, ok := obj.String(tag)
		if !ok {
			missing = append(missing, name)
			return
		}
		*dst = v
	}
	read(dicom.TagSOPInstanceUID, "SOPInstanceUID", &ids.sopInstanceUID)
	read(dicom.TagSeriesInstanceUID, "SeriesInstanceUID", &ids.seriesInstanceUID)
	read(dicom.TagStudyInstanceUID, "StudyInstanceUID", &ids.studyInstanceUID)
	read(dicom.TagPatientName, "PatientName", &ids.patientName)
	read(dicom.TagSOPClassUID, "SOPClassUID", &ids.sopClassUID)

	if len(missing) > 0 {
		return ids, fmt.Errorf("missing required attributes %v", missing)
	}
	return ids, nil
}

func (l *Listener) store(ctx context.Context, req Request) (Response, string) {
	if req.Object == nil {
		return respond(StatusProcessingFailure, "", "no dataset"), outcomeInvalid
	}
	obj := req.Object

	allowed := l.limiter.Allow(req.CallingAE)
	if !l.limiter.Unlimited() {
		l.metrics.RecordRateLimiterKeys(l.cfg.AETitle, l.limiter.Keys())
	}
	if !allowed {
		l.log.Warnw("rate limit exceeded", "calling_ae", req.CallingAE)
		return respond(StatusOutOfResources, "", "rate limit exceeded"), outcomeRateLimited
	}

	ids, err := readIdentifiers(obj)
	log := l.log.With("calling_ae", req.CallingAE, "sop_instance_uid", ids.sopInstanceUID)
	if err != nil {
		log.Warnw("rejecting object", "error", err)
		return respond(StatusProcessingFailure, ids.sopInstanceUID, err.Error()), outcomeInvalid
	}

	if !l.Accepts(ids.sopClassUID) {
		log.Warnw("SOP class not accepted", "sop_class_uid", ids.sopClassUID)
		return respond(StatusSOPClassNotSupported, ids.sopInstanceUID, ""), outcomeUnsupportedClass
	}

	res, resp, outcome := l.persist(ctx, log, req, ids)
	if outcome != outcomeStored {
		return resp, outcome
	}
	log = log.With("path", res.Path)

	l.metrics.RecordBytesStored(l.cfg.AETitle, res.Bytes)
	log.Infow("object stored", "bytes", res.Bytes, "transfer_syntax", obj.TransferSyntax().Name)

	l.record(ctx, log, req, ids, obj, res)
	l.replicate(ctx, log, res.Path)

	resp = respond(StatusSuccess, ids.sopInstanceUID, "")
	resp.Path = res.Path
	return resp, outcomeStored
}

// persist admits, transcodes and writes one object.
//
// With serialized admission the root's gate is held from the capacity check
// until the file is written, and released before indexing and mirroring.
//
// Returns the write result, and the response and outcome to report. The
// response is only meaningful when the outcome is not outcomeStored.
func (l *Listener) persist(ctx context.Context, log *zap.SugaredLogger, req Request, ids identifiers) (store.Result, Response, string) {
	obj := req.Object

	if l.gate != nil {
		unlock := l.gate.Lock(l.cfg.Root)
		defer unlock()
	}

	ok, err := l.admission.HasCapacity(ctx, l.cfg.Root, obj.PixelDataLength(), l.cfg.MaxDiskUsagePercent)
	if err != nil {
		log.Errorw("capacity check failed", "root", l.cfg.Root, "error", err)
		return store.Result{}, respond(StatusProcessingFailure, ids.sopInstanceUID, err.Error()), outcomeFailed
	}
	if !ok {
		log.Warnw("rejecting object", "root", l.cfg.Root, "error", admission.ErrNoCapacity,
			"max_disk_usage", l.cfg.MaxDiskUsagePercent)
		return store.Result{}, respond(StatusOutOfResources, ids.sopInstanceUID, admission.ErrNoCapacity.Error()), outcomeNoCapacity
	}

	path, err := layout.BuildPath(l.cfg.Root, l.cfg.Strategy, obj, l.now())
	if err != nil {
		log.Errorw("cannot build destination path", "error", err)
		return store.Result{}, respond(StatusProcessingFailure, ids.sopInstanceUID, err.Error()), outcomeFailed
	}
	log = log.With("path", path)

	overwrite := l.cfg.Strategy.File.Overwrite
	if !overwrite && l.writer.Exists(path) {
		return l.skipped(log, ids, path)
	}

	l.transcode(log, obj)

	obj.SetMeta(dicom.FileMeta{
		TransferSyntaxUID:          obj.TransferSyntax().UID,
		MediaStorageSOPClassUID:    ids.sopClassUID,
		MediaStorageSOPInstanceUID: ids.sopInstanceUID,
		ImplementationClassUID:     ImplementationClassUID,
		ImplementationVersionName:  ImplementationVersionName,
		SourceAETitle:              req.CallingAE,
	})

	res := l.writer.Write(ctx, path, overwrite, obj)
	switch res.Status {
	case store.StatusSkipped:
		return l.skipped(log, ids, path)
	case store.StatusFailed:
		log.Errorw("write failed", "error", res.Err)
		return res, respond(StatusProcessingFailure, ids.sopInstanceUID, res.Err.Error()), outcomeFailed
	}
	return res, Response{}, outcomeStored
}

func (l *Listener) skipped(log *zap.SugaredLogger, ids identifiers, path string) (store.Result, Response, string) {
	log.Infow("destination exists")
	resp := respond(StatusSuccess, ids.sopInstanceUID, "")
	resp.Skipped = true
	resp.Path = path
	return store.Result{Status: store.StatusSkipped, Path: path, Err: store.ErrDestinationExists}, resp, outcomeSkipped
}

// transcode applies the modality rule to obj. Rejections leave the object in
// its received encoding and never fail the request.
func (l *Listener) transcode(log *zap.SugaredLogger, obj dicom.Object) {
	modality := obj.StringOr(dicom.TagModality, "")
	rule := transcode.Select(modality, l.cfg.Rules)

	out := transcode.Apply(rule, obj, transcode.Options{RejectCompressedSource: l.cfg.StrictTranscode})
	l.metrics.RecordTranscode(l.cfg.AETitle, out.State.String())

	for _, w := range out.Warnings {
		log.Warnw("transcode fallback", "modality", modality, "rule", rule.String(), "warning", w)
	}

	switch {
	case out.Rejected():
		log.Warnw("transcode rejected, keeping received encoding",
			"modality", modality,
			"rule", rule.String(),
			"transfer_syntax", out.Current.Name,
			"reason", out.Reason())
	case out.Switched:
		log.Debugw("transcoded",
			"modality", modality,
			"from", out.Current.Name,
			"to", out.Final.Name)
	}
}

func (l *Listener) record(ctx context.Context, log *zap.SugaredLogger, req Request, ids identifiers, obj dicom.Object, res store.Result) {
	if l.index == nil {
		return
	}

	err := l.index.Put(ctx, index.Record{
		SOPInstanceUID:    ids.sopInstanceUID,
		SOPClassUID:       ids.sopClassUID,
		StudyInstanceUID:  ids.studyInstanceUID,
		SeriesInstanceUID: ids.seriesInstanceUID,
		Modality:          obj.StringOr(dicom.TagModality, ""),
		Path:              res.Path,
		TransferSyntaxUID: obj.TransferSyntax().UID,
		CallingAETitle:    req.CallingAE,
		Listener:          l.cfg.AETitle,
		Bytes:             res.Bytes,
		StoredAt:          l.now().UTC(),
	})
	if err != nil {
		log.Warnw("failed to index stored object", "error", err)
	}
}

type prefixed interface {
	Prefix() string
}

// replicate copies the stored file to the mirror. Failures are only logged.
func (l *Listener) replicate(ctx context.Context, log *zap.SugaredLogger, path string) {
	if _, noop := l.mirror.(mirror.Noop); noop {
		return
	}

	prefix := ""
	if p, ok := l.mirror.(prefixed); ok {
		prefix = p.Prefix()
	}
	key := mirror.Key(prefix, l.cfg.Root, path)

	if err := l.mirror.Upload(ctx, key, path); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debugw("mirror upload cancelled", "mirror", l.mirror.Name(), "key", key)
		} else {
			log.Warnw("mirror upload failed", "mirror", l.mirror.Name(), "key", key, "error", err)
		}
		l.metrics.RecordMirrorFailure(l.cfg.AETitle)
	}
}
