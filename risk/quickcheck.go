package risk

import (
	"math"

	"github.com/giygas/glycemia-api/knowledgebase"
)

// QuickResult is the outcome of a quick check
type QuickResult struct {
	Tier          knowledgebase.Tier `json:"tier"`
	Band          string             `json:"band"`
	OneLineAction string             `json:"one_line_action"`
}

const (
	quickRemeasure       = "Re-measure blood glucose; the reading is not a usable number"
	quickTreatLow        = "Take 15-20 g of fast-acting carbohydrate now and re-check in 15 minutes"
	quickMonitorUnwell   = "Check glucose every 2-4 hours and test ketones while unwell"
	quickCheckKetones    = "Check blood ketones and sip sugar-free fluids"
	quickHighWithIllness = "Check ketones now and contact your diabetes team"
	quickRoutine         = "Continue routine monitoring"
)

// QuickCheck triages glucose and a symptom flag against the built-in bands.
// It never returns EMERGENCY because it has no ketone evidence.
func QuickCheck(glucose float64, hasSymptoms bool) QuickResult {
	return quickCheck(knowledgebase.DefaultBands(), quickRoutine, glucose, hasSymptoms)
}

// QuickCheck triages against the classifier's knowledge base bands
func (c *Classifier) QuickCheck(glucose float64, hasSymptoms bool) QuickResult {
	return quickCheck(c.kb.Bands, c.kb.DefaultAction, glucose, hasSymptoms)
}

// quickCheck maps the glucose band and symptom flag to a tier:
//
//	band       no symptoms   symptoms
//	< low      URGENT        URGENT
//	low..high  SAFE          CAUTION
//	> high     CAUTION       URGENT
func quickCheck(bands knowledgebase.Bands, routine string, glucose float64, hasSymptoms bool) QuickResult {
	if math.IsNaN(glucose) || math.IsInf(glucose, 0) || glucose <= 0 {
		return QuickResult{Tier: knowledgebase.TierCaution, Band: "unknown", OneLineAction: quickRemeasure}
	}

	band := bands.Classify(glucose)
	res := QuickResult{Band: band.String()}

	switch band {
	case knowledgebase.BandLow:
		res.Tier, res.OneLineAction = knowledgebase.TierUrgent, quickTreatLow
	case knowledgebase.BandHigh:
		if hasSymptoms {
			res.Tier, res.OneLineAction = knowledgebase.TierUrgent, quickHighWithIllness
		} else {
			res.Tier, res.OneLineAction = knowledgebase.TierCaution, quickCheckKetones
		}
	default:
		if hasSymptoms {
			res.Tier, res.OneLineAction = knowledgebase.TierCaution, quickMonitorUnwell
		} else {
			res.Tier, res.OneLineAction = knowledgebase.TierSafe, routine
		}
	}

	return res
}
