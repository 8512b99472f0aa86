// Package listener implements the store pipeline of one configured endpoint:
// admission, path construction, per-modality transcoding and persistence.
//
// A Listener is built once from an immutable Config and is safe for
// concurrent use; each request works on its own object and state.
package listener

import (
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/marmos91/dittodicom/internal/ratelimiter"
	"github.com/marmos91/dittodicom/pkg/admission"
	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/marmos91/dittodicom/pkg/layout"
	"github.com/marmos91/dittodicom/pkg/metrics"
	"github.com/marmos91/dittodicom/pkg/sopclass"
	"github.com/marmos91/dittodicom/pkg/store"
	"github.com/marmos91/dittodicom/pkg/store/index"
	"github.com/marmos91/dittodicom/pkg/store/mirror"
	"github.com/marmos91/dittodicom/pkg/transcode"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// File meta identification stamped on every stored object.
const (
	ImplementationClassUID    = "2.25.207135245371098112392781519305613843712"
	ImplementationVersionName = "DITTODICOM_1"
)

// Config is the resolved configuration of one listener. It is shared
// read-only by all requests and must not be modified after New.
type Config struct {
	AETitle string
	Port    int

	Root                string
	MaxDiskUsagePercent float64

	Strategy *layout.Strategy
	Rules    *transcode.RuleSet
	Classes  *sopclass.Set

	RateLimit RateLimit

	// SerializeAdmission holds a per-root lock across admission and write.
	SerializeAdmission bool

	// StrictTranscode rejects compressing an already compressed object.
	StrictTranscode bool
}

// RateLimit bounds requests per calling AE title. Zero means unlimited.
type RateLimit struct {
	RequestsPerSecond uint
	Burst             uint
}

// Deps are the collaborators a Listener uses. Nil fields get defaults.
type Deps struct {
	Admission *admission.Controller
	Gate      *admission.Gate
	Writer    *store.Writer
	Index     index.Index
	Mirror    mirror.Mirror
	Metrics   metrics.StorageMetrics
	Catalog   dicom.Catalog
	Now       func() time.Time
}

// Listener handles echo and store requests for one AE title.
//
// Store pipeline, in order:
//  1. rate limit per calling AE title
//  2. required identifiers and accepted SOP class
//  3. capacity check, destination path, existing destination check
//  4. transcode and exclusive write
//  5. index record and mirror upload, failures only logged
//
// Thread safety:
// HandleEcho and HandleStore are safe for concurrent use. With
// SerializeAdmission set, steps 3 and 4 hold a per-root lock shared through
// Deps.Gate.
type Listener struct {
	cfg *Config

	admission *admission.Controller
	gate      *admission.Gate
	writer    *store.Writer
	index     index.Index
	mirror    mirror.Mirror
	metrics   metrics.StorageMetrics
	limiter   *ratelimiter.RateLimiter
	now       func() time.Time

	accepted mapset.Set[dicom.SOPClass]
	byUID    map[string]dicom.SOPClass
	log      *zap.SugaredLogger
}

// New resolves the accepted SOP classes of cfg and wires deps.
//
// Parameters:
//   - cfg: Resolved listener configuration, kept by pointer and never modified
//   - deps: Collaborators. Nil fields get defaults: a disk-backed admission
//     controller, a fresh Writer, no index, no mirror, no-op metrics,
//     time.Now and dicom.DefaultCatalog.
//
// Class patterns naming unknown UIDs are logged and skipped. The
// verification class is always accepted.
//
// Returns an error if cfg is nil or lacks an AE title, a root, a strategy or a
// disk usage limit in (0, 100].
func New(cfg *Config, deps Deps) (*Listener, error) {
	if cfg == nil {
		return nil, errors.New("listener config is nil")
	}
	if cfg.AETitle == "" {
		return nil, errors.New("listener AE title is empty")
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("listener %s: storage root is empty", cfg.AETitle)
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("listener %s: storage strategy is nil", cfg.AETitle)
	}
	if cfg.MaxDiskUsagePercent <= 0 || cfg.MaxDiskUsagePercent > 100 {
		return nil, fmt.Errorf("listener %s: max disk usage %.2f%% out of range", cfg.AETitle, cfg.MaxDiskUsagePercent)
	}

	l := &Listener{
		cfg:       cfg,
		admission: deps.Admission,
		writer:    deps.Writer,
		index:     deps.Index,
		mirror:    deps.Mirror,
		metrics:   deps.Metrics,
		now:       deps.Now,
		limiter:   ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		log:       logger.With("listener", cfg.AETitle, "port", cfg.Port),
	}
	if l.admission == nil {
		l.admission = admission.NewController()
	}
	if l.writer == nil {
		l.writer = store.NewWriter()
	}
	if l.mirror == nil {
		l.mirror = mirror.Noop{}
	}
	if l.metrics == nil {
		l.metrics = metrics.NewNoopStorageMetrics()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if cfg.SerializeAdmission {
		l.gate = deps.Gate
		if l.gate == nil {
			l.gate = &admission.Gate{}
		}
	}

	catalog := deps.Catalog
	if catalog == nil {
		catalog = dicom.DefaultCatalog
	}

	var patterns []string
	if cfg.Classes != nil {
		patterns = cfg.Classes.Patterns
	}
	accepted, err := sopclass.Resolve(patterns, catalog)
	if err != nil {
		l.log.Warnw("skipping unknown SOP classes", "error", err)
	}
	accepted.Add(dicom.VerificationSOPClass)
	l.accepted = accepted
	l.byUID = lo.KeyBy(accepted.ToSlice(), func(sc dicom.SOPClass) string { return sc.UID })

	l.log.Debugw("listener ready",
		"root", cfg.Root,
		"strategy", cfg.Strategy.Name,
		"classes", accepted.Cardinality())

	return l, nil
}

// Config returns the listener configuration.
func (l *Listener) Config() *Config { return l.cfg }

// Name is the AE title the listener answers to.
func (l *Listener) Name() string { return l.cfg.AETitle }

// AcceptedClasses returns the accepted SOP classes ordered by UID.
func (l *Listener) AcceptedClasses() []dicom.SOPClass {
	return sopclass.Sorted(l.accepted)
}

// Accepts reports whether objects of the given SOP class UID are stored.
func (l *Listener) Accepts(sopClassUID string) bool {
	_, ok := l.byUID[sopClassUID]
	return ok
}

// AcceptedTransferSyntaxes lists the encodings offered for class, in order
// of preference. Unaccepted classes get nil.
func (l *Listener) AcceptedTransferSyntaxes(class dicom.SOPClass) []dicom.TransferSyntax {
	if !l.accepted.Contains(class) {
		return nil
	}
	if class.IsVerification() {
		return dicom.VerificationTransferSyntaxes
	}
	return dicom.ImageTransferSyntaxes
}

// Index returns the instance index, or nil when none is configured.
func (l *Listener) Index() index.Index { return l.index }
