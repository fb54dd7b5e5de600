// Package convert holds the fixed translation tables between the inference
// backends' wire values, the domain enums, and API-level names. The tables
// are plain maps built once at init; exhaustiveness over the domain enums
// is enforced by tests.
package convert

import (
	"fmt"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/store"
)

// anatomicalSiteByWire maps the classification backend's site labels to
// domain values. Unknown labels degrade to UNQUALIFIER rather than failing
// the task.
var anatomicalSiteByWire = map[string]domain.AnatomicalSite{
	"PHARYNX":           domain.AnatomicalSitePharynx,
	"ESOPHAGUS":         domain.AnatomicalSiteEsophagus,
	"CARDIA":            domain.AnatomicalSiteCardia,
	"GASTRIC_BODY":      domain.AnatomicalSiteGastricBody,
	"GASTRIC_FUNDUS":    domain.AnatomicalSiteGastricFundus,
	"GASTRIC_ANTRUM":    domain.AnatomicalSiteGastricAntrum,
	"GREATER_CURVATURE": domain.AnatomicalSiteGreaterCurvature,
	"LESSER_CURVATURE":  domain.AnatomicalSiteLesserCurvature,
	"DUODENUM_BULB":     domain.AnatomicalSiteDuodenumBulb,
	"DUODENUM":          domain.AnatomicalSiteDuodenum,
	"UNQUALIFIER":       domain.AnatomicalSiteUnqualified,
}

// AnatomicalSiteFromWire translates a backend site label.
func AnatomicalSiteFromWire(value string) domain.AnatomicalSite {
	if site, ok := anatomicalSiteByWire[value]; ok {
		return site
	}
	return domain.AnatomicalSiteUnqualified
}

var lesionTypeByWire = map[string]domain.LesionType{
	"REFLUX_ESOPHAGITIS": domain.LesionTypeRefluxEsophagitis,
	"ESOPHAGEAL_CANCER":  domain.LesionTypeEsophagealCancer,
	"GASTRITIS":          domain.LesionTypeGastritis,
	"STOMACH_CANCER":     domain.LesionTypeStomachCancer,
	"DUODENAL_ULCER":     domain.LesionTypeDuodenalUlcer,
	"NON_LESION":         domain.LesionTypeNonLesion,
}

// LesionTypeFromWire translates a backend lesion label. Unknown labels
// degrade to NON_LESION.
func LesionTypeFromWire(value string) domain.LesionType {
	if lesion, ok := lesionTypeByWire[value]; ok {
		return lesion
	}
	return domain.LesionTypeNonLesion
}

// HPStatusFromWire translates the backend's optional HP label. It returns
// nil for an absent or unknown label: callers persist NULL rather than
// guessing a status.
func HPStatusFromWire(value string) *domain.HPStatus {
	switch value {
	case "POSITIVE":
		status := domain.HPStatusPositive
		return &status
	case "NEGATIVE":
		status := domain.HPStatusNegative
		return &status
	default:
		return nil
	}
}

var sortOrderByName = map[string]store.TaskSortOrder{
	"ID_ASCENDING":            store.TaskSortOrderIDAscending,
	"ID_DESCENDING":           store.TaskSortOrderIDDescending,
	"REQUEST_TIME_ASCENDING":  store.TaskSortOrderRequestTimeAscending,
	"REQUEST_TIME_DESCENDING": store.TaskSortOrderRequestTimeDescending,
	"UPDATE_TIME_ASCENDING":   store.TaskSortOrderUpdateTimeAscending,
	"UPDATE_TIME_DESCENDING":  store.TaskSortOrderUpdateTimeDescending,
}

// TaskSortOrderFromName translates an API sort-order name.
func TaskSortOrderFromName(name string) (store.TaskSortOrder, error) {
	if name == "" {
		return store.TaskSortOrderIDAscending, nil
	}
	order, ok := sortOrderByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown sort order %q", name)
	}
	return order, nil
}

// AllStatuses is the full status set, for callers that mean "any status"
// in a filter (an empty set matches nothing by store contract).
func AllStatuses() []domain.TaskStatus {
	return []domain.TaskStatus{
		domain.TaskStatusRequested,
		domain.TaskStatusDone,
		domain.TaskStatusProcessing,
	}
}

// AllClassificationTypes is the full axis set for filters.
func AllClassificationTypes() []domain.ClassificationType {
	return []domain.ClassificationType{
		domain.ClassificationTypeAnatomicalSite,
		domain.ClassificationTypeLesion,
		domain.ClassificationTypeHP,
	}
}
