package dicom

import "strings"

// SOPClass is a registered service-object pair class.
type SOPClass struct {
	UID  string
	Name string
}

func (c SOPClass) String() string { return c.Name + " (" + c.UID + ")" }

// IsVerification reports whether c is the verification class.
func (c SOPClass) IsVerification() bool { return c.UID == VerificationSOPClass.UID }

// VerificationSOPClass answers echo requests.
var VerificationSOPClass = SOPClass{UID: "1.2.840.10008.1.1", Name: "Verification"}

// Catalog is the universe of SOP classes a listener may accept.
type Catalog interface {
	All() []SOPClass
	Lookup(uid string) (SOPClass, bool)
}

// StaticCatalog is a Catalog backed by a fixed list.
type StaticCatalog struct {
	classes []SOPClass
	byUID   map[string]SOPClass
}

// NewStaticCatalog builds a catalog preserving the order of classes.
func NewStaticCatalog(classes []SOPClass) *StaticCatalog {
	c := &StaticCatalog{
		classes: make([]SOPClass, 0, len(classes)),
		byUID:   make(map[string]SOPClass, len(classes)),
	}
	for _, sc := range classes {
		uid := strings.TrimSpace(sc.UID)
		if _, dup := c.byUID[uid]; dup {
			continue
		}
		sc.UID = uid
		c.classes = append(c.classes, sc)
		c.byUID[uid] = sc
	}
	return c
}

// All returns a copy of the catalog in declaration order.
func (c *StaticCatalog) All() []SOPClass {
	out := make([]SOPClass, len(c.classes))
	copy(out, c.classes)
	return out
}

// Lookup finds a class by exact UID.
func (c *StaticCatalog) Lookup(uid string) (SOPClass, bool) {
	sc, ok := c.byUID[strings.TrimSpace(uid)]
	return sc, ok
}

// DefaultCatalog lists the storage classes accepted out of the box.
var DefaultCatalog = NewStaticCatalog([]SOPClass{
	VerificationSOPClass,
	{UID: "1.2.840.10008.5.1.4.1.1.11.1", Name: "Grayscale Softcopy Presentation State Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.59", Name: "Key Object Selection Document Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.33", Name: "Comprehensive SR Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.11.4", Name: "Blending Softcopy Presentation State Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.69", Name: "Colon CAD SR Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.66.3", Name: "Deformable Spatial Registration Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.22", Name: "Enhanced SR Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.11", Name: "Basic Text SR Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.104.1", Name: "Encapsulated PDF Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.67", Name: "X-Ray Radiation Dose SR Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.88.65", Name: "Chest CAD SR Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.104.2", Name: "Encapsulated CDA Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.4", Name: "MR Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.2", Name: "CT Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.7", Name: "Secondary Capture Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.6.1", Name: "Ultrasound Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.6", Name: "Ultrasound Image Storage (Retired)"},
	{UID: "1.2.840.10008.5.1.4.1.1.3.1", Name: "Ultrasound Multi-frame Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.3", Name: "Ultrasound Multi-frame Image Storage (Retired)"},
	{UID: "1.2.840.10008.5.1.4.1.1.20", Name: "Nuclear Medicine Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.1.3", Name: "Digital Intra-Oral X-Ray Image Storage - For Presentation"},
	{UID: "1.2.840.10008.5.1.4.1.1.1.3.1", Name: "Digital Intra-Oral X-Ray Image Storage - For Processing"},
	{UID: "1.2.840.10008.5.1.4.1.1.1.2", Name: "Digital Mammography X-Ray Image Storage - For Presentation"},
	{UID: "1.2.840.10008.5.1.4.1.1.1.2.1", Name: "Digital Mammography X-Ray Image Storage - For Processing"},
	{UID: "1.2.840.10008.5.1.4.1.1.1.1", Name: "Digital X-Ray Image Storage - For Presentation"},
	{UID: "1.2.840.10008.5.1.4.1.1.1.1.1", Name: "Digital X-Ray Image Storage - For Processing"},
	{UID: "1.2.840.10008.5.1.4.1.1.1", Name: "Computed Radiography Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.5.2", Name: "Ophthalmic Photography 16 Bit Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.5.1", Name: "Ophthalmic Photography 8 Bit Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.1.1", Name: "Video Endoscopic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.2.1", Name: "Video Microscopic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.4.1", Name: "Video Photographic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.1", Name: "VL Endoscopic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.2", Name: "VL Microscopic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.4", Name: "VL Photographic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.3", Name: "VL Slide-Coordinates Microscopic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.12.3", Name: "X-Ray Angiographic Bi-Plane Image Storage (Retired)"},
	{UID: "1.2.840.10008.5.1.4.1.1.12.1", Name: "X-Ray Angiographic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.12.2", Name: "X-Ray Radiofluoroscopic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.13.1.1", Name: "X-Ray 3D Angiographic Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.13.1.2", Name: "X-Ray 3D Craniofacial Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.77.1.5.4", Name: "Ophthalmic Tomography Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.2.1", Name: "Enhanced CT Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.4.3", Name: "Enhanced MR Color Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.4.1", Name: "Enhanced MR Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.128.1", Name: "Enhanced PET Image Storage"},
	{UID: "1.2.840.10008.5.1.4.1.1.13.1.3", Name: "Breast Tomosynthesis Image Storage"},
})
