package knowledgebase

import "github.com/giygas/glycemia-api/validation"

// DefaultVersion identifies the built-in guideline table
const DefaultVersion = "ispad-2024.1"

// Glucose boundaries (mg/dL) of the built-in table. The quick check and the
// full rule table both read them through DefaultBands.
const (
	SevereHypoglycemiaMgDL = 54
	HypoglycemiaMgDL       = 70
	TargetHighMgDL         = 180
	HyperglycemiaMgDL      = 250
	DKARiskMgDL            = 300
)

// DefaultBands returns the built-in glucose bands
func DefaultBands() Bands {
	return Bands{
		SevereLow:  SevereHypoglycemiaMgDL,
		Low:        HypoglycemiaMgDL,
		TargetHigh: TargetHighMgDL,
		High:       HyperglycemiaMgDL,
		VeryHigh:   DKARiskMgDL,
	}
}

// DefaultKetoneCutPoints returns blood beta-hydroxybutyrate cut points in mmol/L
func DefaultKetoneCutPoints() KetoneCutPoints {
	return KetoneCutPoints{Trace: 0.6, Small: 1.0, Moderate: 1.5, Large: 3.0}
}

const (
	actionHydrate           = "Sip sugar-free fluids every 15 minutes to prevent dehydration"
	actionContactTeamNow    = "Contact your diabetes team now"
	actionEmergency         = "Call emergency services or go to the emergency department immediately"
	actionFastCarbs         = "Take 15-20 g of fast-acting carbohydrate now"
	actionRecheckGlucose    = "Re-check glucose in 15 minutes and repeat treatment until above 70 mg/dL"
	actionGlucagon          = "If unable to swallow or drowsy, give glucagon"
	actionKetones2h         = "Re-check blood ketones every 2 hours"
	actionKetones1h         = "Re-check glucose and ketones every 1-2 hours"
	actionContinueBasal     = "Continue basal insulin; do not stop insulin"
	actionExtraInsulin      = "Ask your diabetes team about extra rapid-acting insulin (10-20% of total daily dose)"
	actionCheckKetones      = "Check blood ketones now"
	actionMonitor2to4h      = "Check glucose every 2-4 hours while unwell"
	actionCheckDKASigns     = "Watch for abdominal pain, fruity breath or deep rapid breathing"
	actionTakeMissedBasal   = "Take any missed basal insulin as agreed with your diabetes team"
	actionContactTeamOrED   = "Contact your diabetes team or the emergency department"
	actionFluidsIfKeptDown  = "Keep drinking fluids if you are not vomiting"
	actionInsulinAsDirected = "Give extra insulin only as directed by your diabetes team"
)

// Default returns a freshly allocated copy of the built-in table, derived
// from ISPAD 2024 sick-day guidance and the ADA Standards of Care.
func Default() *KnowledgeBase {
	return &KnowledgeBase{
		Version: DefaultVersion,
		Sources: []string{
			"ISPAD Clinical Practice Consensus Guidelines 2024",
			"ADA Standards of Care in Diabetes",
		},
		Bands:            DefaultBands(),
		KetoneCutPoints:  DefaultKetoneCutPoints(),
		PlausibleGlucose: validation.Range{Min: 20, Max: 600},
		Dosing: DosingPolicy{
			RoundingIncrement: 0.5,
		},
		DefaultAction: "Continue routine monitoring",
		Tiers: []TierDefinition{
			{
				Tier:         TierSafe,
				Label:        "Safe",
				Summary:      "No sick-day risk detected",
				Actions:      []string{"Keep usual insulin and meal plan"},
				RecheckHours: 4,
			},
			{
				Tier:         TierCaution,
				Label:        "Caution",
				Summary:      "Closer monitoring is needed",
				Actions:      []string{actionMonitor2to4h},
				RecheckHours: 2,
			},
			{
				Tier:         TierUrgent,
				Label:        "Urgent",
				Summary:      "Contact the diabetes team promptly",
				Actions:      []string{actionContactTeamNow, actionKetones1h},
				RecheckHours: 1,
			},
			{
				Tier:         TierEmergency,
				Label:        "Emergency",
				Summary:      "Seek emergency care now",
				Actions:      []string{actionEmergency},
				RecheckHours: 0.25,
			},
		},
		EssentialRules: []string{
			actionContinueBasal,
			"Drink at least 100 ml of fluid per hour",
			"Check ketones whenever glucose is above 240 mg/dL or vomiting occurs",
		},
		Hydration: Hydration{
			General:        "Drink at least 100 ml per hour in small sips",
			SugarFreeAbove: GlucoseThreshold{Boundary: BoundaryHigh},
			SugarFree:      []string{"water", "sugar-free tea", "sugar-free electrolyte drink", "low-sodium broth"},
			WithSugarBelow: GlucoseThreshold{Boundary: BoundaryTargetHigh},
			WithSugar:      []string{"diluted fruit juice", "electrolyte drink", "sports drink"},
		},
		Rules: []Rule{
			{
				ID:          "hypo_with_ketosis",
				Priority:    10,
				Tier:        TierEmergency,
				Description: "Hypoglycemia with ketones present",
				When: Condition{
					GlucoseBelow:   AtBoundary(BoundaryLow),
					KetonesAtLeast: ketones(KetonesTrace),
				},
				Actions: []string{actionFastCarbs, actionGlucagon, actionHydrate, actionEmergency},
				Source:  "ISPAD 2024 - Sick day management, starvation ketosis",
			},
			{
				ID:          "severe_ketonemia",
				Priority:    20,
				Tier:        TierEmergency,
				Description: "Large ketones (blood ketones 3.0 mmol/L or more)",
				When: Condition{
					KetonesAtLeast: ketones(KetonesLarge),
				},
				Actions: []string{actionEmergency, actionCheckDKASigns},
				Source:  "ISPAD 2024 - Blood ketones >3.0 mmol/L require hospital treatment",
			},
			{
				ID:          "severe_hypoglycemia",
				Priority:    30,
				Tier:        TierEmergency,
				Description: "Level 2 hypoglycemia",
				When: Condition{
					GlucoseBelow: AtBoundary(BoundarySevereLow),
				},
				Actions: []string{actionFastCarbs, actionGlucagon, actionEmergency},
				Source:  "ISPAD 2024 - Level 2 hypoglycemia (<54 mg/dL)",
			},
			{
				ID:          "dka_risk",
				Priority:    40,
				Tier:        TierUrgent,
				Description: "Hyperglycemia with moderate or large ketones",
				When: Condition{
					GlucoseAbove:   AtBoundary(BoundaryHigh),
					KetonesAtLeast: ketones(KetonesModerate),
				},
				Actions: []string{actionContactTeamNow, actionExtraInsulin, actionHydrate, actionKetones1h},
				Source:  "ISPAD 2024 - DKA prevention",
			},
			{
				ID:          "very_high_glucose",
				Priority:    45,
				Tier:        TierUrgent,
				Description: "Glucose in the DKA risk zone",
				When: Condition{
					GlucoseAbove: AtBoundary(BoundaryVeryHigh),
				},
				Actions: []string{actionCheckKetones, actionContactTeamOrED, actionFluidsIfKeptDown, actionInsulinAsDirected},
				Source:  "ISPAD 2024 - DKA prevention, ADA sick day rules",
			},
			{
				ID:          "dehydration_risk",
				Priority:    50,
				Tier:        TierUrgent,
				Description: "Vomiting with reduced oral intake",
				When: Condition{
					SymptomsAll: []Symptom{SymptomVomiting, SymptomReducedOralIntake},
				},
				Actions: []string{actionHydrate, actionCheckKetones, actionContactTeamNow, "Seek care if vomiting lasts more than 2 hours"},
				Source:  "ISPAD 2024 - Vomiting >2 hours requires medical attention",
			},
			{
				ID:          "ketosis_breathing",
				Priority:    60,
				Tier:        TierUrgent,
				Description: "Rapid breathing with ketones",
				When: Condition{
					SymptomsAll:    []Symptom{SymptomRapidBreathing},
					KetonesAtLeast: ketones(KetonesSmall),
				},
				Actions: []string{actionContactTeamNow, actionCheckDKASigns},
				Source:  "ISPAD 2024 - DKA recognition",
			},
			{
				ID:          "hypoglycemia",
				Priority:    70,
				Tier:        TierUrgent,
				Description: "Hypoglycemia without ketones",
				When: Condition{
					GlucoseBelow:  AtBoundary(BoundaryLow),
					KetonesAtMost: ketones(KetonesNone),
				},
				Actions: []string{actionFastCarbs, actionRecheckGlucose},
				Source:  "ADA Standards of Care - Hypoglycemia alert value",
			},
			{
				ID:          "hyperglycemia_monitor",
				Priority:    80,
				Tier:        TierCaution,
				Description: "Hyperglycemia with no or trace ketones",
				When: Condition{
					GlucoseAbove:  AtBoundary(BoundaryHigh),
					KetonesAtMost: ketones(KetonesTrace),
				},
				Actions: []string{actionHydrate, actionKetones2h, "Give correction insulin as directed by your diabetes team"},
				Source:  "ADA - Check ketones if glucose >240 mg/dL",
			},
			{
				ID:          "illness_symptoms",
				Priority:    90,
				Tier:        TierCaution,
				Description: "Sick-day symptoms present",
				When: Condition{
					SymptomsAny: KnownSymptoms(),
				},
				Actions: []string{actionMonitor2to4h, actionHydrate, actionContinueBasal},
				Source:  "ISPAD 2024 - Sick day management",
			},
			{
				ID:          "missed_insulin",
				Priority:    100,
				Tier:        TierCaution,
				Description: "Elevated glucose more than 6 hours after the last insulin dose",
				When: Condition{
					GlucoseAbove:           AtBoundary(BoundaryTargetHigh),
					HoursSinceInsulinAbove: f64(6),
				},
				Actions: []string{actionTakeMissedBasal, actionCheckKetones},
				Source:  "ISPAD 2024 - Never stop insulin",
			},
			{
				ID:          "in_range_well",
				Priority:    110,
				Tier:        TierSafe,
				Description: "Glucose in sick-day target range without symptoms or ketones",
				When: Condition{
					NoSymptoms:    true,
					GlucoseFrom:   AtBoundary(BoundaryLow),
					GlucoseTo:     AtBoundary(BoundaryTargetHigh),
					KetonesAtMost: ketones(KetonesNone),
				},
				Actions: []string{"Continue routine monitoring"},
				Source:  "ISPAD 2024 - Sick day target range (70-180 mg/dL)",
			},
		},
		Warnings: []Warning{
			{
				ID:      "severe_hypoglycemia",
				When:    Condition{GlucoseBelow: AtBoundary(BoundarySevereLow)},
				Message: "Severe hypoglycemia: take 15-20 g of carbohydrate immediately",
			},
			{
				ID:      "dka_glucose",
				When:    Condition{GlucoseAbove: AtBoundary(BoundaryVeryHigh)},
				Message: "Glucose in the DKA risk zone: measure ketones and contact your diabetes team",
			},
			{
				ID:      "severe_ketones",
				When:    Condition{KetonesAtLeast: ketones(KetonesLarge)},
				Message: "Blood ketones 3.0 mmol/L or more: go to the emergency department now",
			},
			{
				ID:      "moderate_ketones",
				When:    Condition{KetonesAtLeast: ketones(KetonesModerate), KetonesAtMost: ketones(KetonesModerate)},
				Message: "Moderate ketones: contact your diabetes team now",
			},
			{
				ID:      "vomiting",
				When:    Condition{SymptomsAny: []Symptom{SymptomVomiting}},
				Message: "Vomiting: go to the emergency department if it lasts more than 2 hours",
			},
		},
		SymptomGuides: []SymptomGuide{
			{
				Symptom: SymptomFever,
				Advice: []string{
					"Check glucose more often (every 2-4 hours)",
					"Drink more fluids (at least 100 ml per hour)",
					"Fever medicine is fine (paracetamol or ibuprofen, sugar-free forms)",
				},
				WarningSigns: []string{
					"Temperature of 38.5 C or more for over 24 hours",
					"Shivering or chills",
					"Fever does not respond to medicine",
				},
				Source: "ISPAD 2024 - Treat fever as in children without diabetes",
			},
			{
				Symptom: SymptomVomiting,
				Advice: []string{
					"Prevent dehydration: take a sip of water every 15 minutes",
					"Electrolyte drinks are recommended (diluted sports drink)",
					"Ketone testing is required",
					"Do not stop insulin; the dose may need adjusting",
				},
				WarningSigns: []string{
					"Vomiting for more than 2 hours",
					"Unable to keep any fluids down",
					"Blood in the vomit",
				},
				Source: "ISPAD 2024 - Vomiting >2 hours requires medical attention",
			},
			{
				Symptom: SymptomReducedOralIntake,
				Advice: []string{
					"Eat and drink small amounts often",
					"Sugar-containing drinks are fine while glucose is 180 mg/dL or below",
				},
				WarningSigns: []string{
					"Not eating or drinking for more than 24 hours",
					"Nausea turning into vomiting",
				},
				Source: "ISPAD 2024 - If appetite decreased, consider sugary fluids",
			},
		},
	}
}

func f64(v float64) *float64 {
	return &v
}

func ketones(k KetoneLevel) *KetoneLevel {
	return &k
}
