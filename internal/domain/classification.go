package domain

// ClassificationType identifies the inference axis a classification task is
// scoped to.
type ClassificationType int16

// Known classification types
const (
	ClassificationTypeAnatomicalSite ClassificationType = 0
	ClassificationTypeLesion         ClassificationType = 1
	ClassificationTypeHP             ClassificationType = 2
)

// String returns a human-readable name for the classification type.
func (t ClassificationType) String() string {
	switch t {
	case ClassificationTypeAnatomicalSite:
		return "anatomical_site"
	case ClassificationTypeLesion:
		return "lesion"
	case ClassificationTypeHP:
		return "hp"
	default:
		return "unknown"
	}
}

// IsValid reports whether the classification type is a known axis.
func (t ClassificationType) IsValid() bool {
	switch t {
	case ClassificationTypeAnatomicalSite, ClassificationTypeLesion, ClassificationTypeHP:
		return true
	}
	return false
}

// AnatomicalSite is the anatomical location assigned to an image by the
// classification backend. The numeric values are persisted.
type AnatomicalSite int16

// Anatomical site values, upper gastrointestinal tract in scope order.
const (
	AnatomicalSitePharynx          AnatomicalSite = 0
	AnatomicalSiteEsophagus        AnatomicalSite = 1
	AnatomicalSiteCardia           AnatomicalSite = 2
	AnatomicalSiteGastricBody      AnatomicalSite = 3
	AnatomicalSiteGastricFundus    AnatomicalSite = 4
	AnatomicalSiteGastricAntrum    AnatomicalSite = 5
	AnatomicalSiteGreaterCurvature AnatomicalSite = 6
	AnatomicalSiteLesserCurvature  AnatomicalSite = 7
	AnatomicalSiteDuodenumBulb     AnatomicalSite = 8
	AnatomicalSiteDuodenum         AnatomicalSite = 9
	AnatomicalSiteUnqualified      AnatomicalSite = 10
)

// String returns the canonical enum name used in tag mappings.
func (s AnatomicalSite) String() string {
	switch s {
	case AnatomicalSitePharynx:
		return "PHARYNX"
	case AnatomicalSiteEsophagus:
		return "ESOPHAGUS"
	case AnatomicalSiteCardia:
		return "CARDIA"
	case AnatomicalSiteGastricBody:
		return "GASTRIC_BODY"
	case AnatomicalSiteGastricFundus:
		return "GASTRIC_FUNDUS"
	case AnatomicalSiteGastricAntrum:
		return "GASTRIC_ANTRUM"
	case AnatomicalSiteGreaterCurvature:
		return "GREATER_CURVATURE"
	case AnatomicalSiteLesserCurvature:
		return "LESSER_CURVATURE"
	case AnatomicalSiteDuodenumBulb:
		return "DUODENUM_BULB"
	case AnatomicalSiteDuodenum:
		return "DUODENUM"
	default:
		return "UNQUALIFIER"
	}
}

// LesionType is the lesion classification assigned to an image.
type LesionType int16

// Lesion type values.
const (
	LesionTypeRefluxEsophagitis LesionType = 0
	LesionTypeEsophagealCancer  LesionType = 1
	LesionTypeGastritis         LesionType = 2
	LesionTypeStomachCancer     LesionType = 3
	LesionTypeDuodenalUlcer     LesionType = 4
	LesionTypeNonLesion         LesionType = 5
)

// String returns the canonical enum name.
func (l LesionType) String() string {
	switch l {
	case LesionTypeRefluxEsophagitis:
		return "REFLUX_ESOPHAGITIS"
	case LesionTypeEsophagealCancer:
		return "ESOPHAGEAL_CANCER"
	case LesionTypeGastritis:
		return "GASTRITIS"
	case LesionTypeStomachCancer:
		return "STOMACH_CANCER"
	case LesionTypeDuodenalUlcer:
		return "DUODENAL_ULCER"
	default:
		return "NON_LESION"
	}
}

// HPStatus is the Helicobacter pylori status assigned to an image. It is
// optional on results: gastric images carry it, esophageal images do not.
type HPStatus int16

// HP status values.
const (
	HPStatusNegative HPStatus = 0
	HPStatusPositive HPStatus = 1
)

// String returns the canonical enum name.
func (h HPStatus) String() string {
	if h == HPStatusPositive {
		return "POSITIVE"
	}
	return "NEGATIVE"
}

// ClassificationResult is the immutable inference output written once per
// completed classification task. HPStatus is nil when the axis does not
// apply to the image.
type ClassificationResult struct {
	ID             int64          `json:"id"`
	OfImageID      int64          `json:"of_image_id"`
	AnatomicalSite AnatomicalSite `json:"anatomical_site"`
	LesionType     LesionType     `json:"lesion_type"`
	HPStatus       *HPStatus      `json:"hp_status,omitempty"`
	RequestTime    int64          `json:"request_time"`
}

// ClassificationTypeInfo is a row of the classification-type lookup table,
// exposed through the RPC surface for display purposes.
type ClassificationTypeInfo struct {
	ID          ClassificationType `json:"classification_type_id"`
	DisplayName string             `json:"display_name"`
}

// Region is a detected region of interest on an image, expressed as a
// normalized polygon ([0,1] coordinates) plus the backend's label.
type Region struct {
	OfImageID int64      `json:"of_image_id"`
	Border    []Vertex   `json:"border"`
	Label     string     `json:"label"`
	Score     float64    `json:"score"`
	Lesion    LesionType `json:"lesion_type"`
}

// Vertex is one point of a region border polygon.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
