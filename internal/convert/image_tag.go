package convert

import "github.com/gastroview/model-service/internal/domain"

// AnatomicalSiteTagGroupName is the display name of the image-tag group the
// AI site tags live under in the image service.
const AnatomicalSiteTagGroupName = "AI-Anatomical site"

// anatomicalSiteTagNames maps a classified site to the display name of the
// image tag applied to the image. UNQUALIFIER deliberately has no tag.
var anatomicalSiteTagNames = map[domain.AnatomicalSite]string{
	domain.AnatomicalSitePharynx:          "(AI)Pharynx",
	domain.AnatomicalSiteEsophagus:        "(AI)Esophagus",
	domain.AnatomicalSiteCardia:           "(AI)Cardia",
	domain.AnatomicalSiteGastricBody:      "(AI)Gastric body",
	domain.AnatomicalSiteGastricFundus:    "(AI)Gastric fundus",
	domain.AnatomicalSiteGastricAntrum:    "(AI)Gastric antrum",
	domain.AnatomicalSiteGreaterCurvature: "(AI)Greater curvature",
	domain.AnatomicalSiteLesserCurvature:  "(AI)Lesser curvature",
	domain.AnatomicalSiteDuodenumBulb:     "(AI)Duodenum bulb",
	domain.AnatomicalSiteDuodenum:         "(AI)Duodenum",
}

// AnatomicalSiteTagName returns the image-tag display name for a site.
// The second return is false for sites that carry no tag (UNQUALIFIER).
func AnatomicalSiteTagName(site domain.AnatomicalSite) (string, bool) {
	name, ok := anatomicalSiteTagNames[site]
	return name, ok
}
