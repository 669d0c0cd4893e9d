package healthkit

import (
	"math"
	"strconv"
)

// converted is the normalized output of one classification rule: where the
// measurement belongs and its fixed-point integer value.
type converted struct {
	Family string
	Name   string
	Group  string
	Unit   string
	Value  int64
}

// conversionRule turns one record's raw attributes into a converted tuple.
// Each rule validates the declared unit (or requires it absent) and applies
// its own scale.
type conversionRule interface {
	convert(rec *recordAttributes) (converted, error)
}

// parseInt parses a strictly integer value attribute.
func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, recordErr(KindBadNumber, "cannot convert %q to integer", s)
	}
	return n, nil
}

// parseScaled parses a decimal value attribute and scales it into a
// fixed-point integer, rounding half away from zero.
func parseScaled(s string, scale float64) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, recordErr(KindBadNumber, "cannot convert %q to decimal", s)
	}
	return int64(math.Round(f * scale)), nil
}

func checkUnit(rec *recordAttributes, want string) error {
	if rec.Unit != want {
		return recordErr(KindUnitMismatch, "expected unit %q, received unit %q", want, rec.Unit)
	}
	return nil
}

func checkNoUnit(rec *recordAttributes) error {
	if rec.Unit != "" {
		return recordErr(KindUnitMismatch, "expected no unit, received unit %q", rec.Unit)
	}
	return nil
}

// quantityRule handles records whose value attribute is a number in a known
// unit. Integer rules parse exactly; decimal rules scale into fixed point.
type quantityRule struct {
	family  string
	name    string
	argUnit string  // unit the record must declare
	outUnit string  // fixed-point unit of the series
	scale   float64 // multiplier from declared unit to outUnit
	integer bool    // value must parse as an integer, unscaled
}

func (q quantityRule) convert(rec *recordAttributes) (converted, error) {
	if err := checkUnit(rec, q.argUnit); err != nil {
		return converted{}, err
	}
	var value int64
	var err error
	if q.integer {
		value, err = parseInt(rec.Value)
	} else {
		value, err = parseScaled(rec.Value, q.scale)
	}
	if err != nil {
		return converted{}, err
	}
	return converted{Family: q.family, Name: q.name, Group: q.name, Unit: q.outUnit, Value: value}, nil
}

// durationRule handles records with no unit and no value: the measurement is
// the span between startDate and endDate in milliseconds.
type durationRule struct {
	family string
	name   string
}

func (d durationRule) convert(rec *recordAttributes) (converted, error) {
	if err := checkNoUnit(rec); err != nil {
		return converted{}, err
	}
	if rec.Value != "" {
		return converted{}, recordErr(KindMalformedRecord,
			"expected no value on duration record:%s", rec.DebugString())
	}
	ms, err := dateDiffMillis(rec)
	if err != nil {
		return converted{}, err
	}
	return converted{Family: d.family, Name: d.name, Group: d.name, Unit: "milliseconds", Value: ms}, nil
}

func dateDiffMillis(rec *recordAttributes) (int64, error) {
	start, err := parseTimestampMillis(rec.StartDate)
	if err != nil {
		return 0, err
	}
	end, err := parseTimestampMillis(rec.EndDate)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}

// sleepAnalysisRule handles the categorical sleep records. The value string
// selects the measurement name; all sleep measurements land in one series
// (keyed by record type) and are told apart by their group.
type sleepAnalysisRule struct {
	family string
}

func (s sleepAnalysisRule) convert(rec *recordAttributes) (converted, error) {
	if err := checkNoUnit(rec); err != nil {
		return converted{}, err
	}
	var name string
	switch rec.Value {
	case "HKCategoryValueSleepAnalysisAsleep":
		name = "SleepTime"
	case "HKCategoryValueSleepAnalysisInBed":
		name = "InBedTime"
	case "HKCategoryValueSleepAnalysisAwake":
		name = "AwakeTime"
	default:
		return converted{}, recordErr(KindUnknownCategoryValue,
			"sleep analysis record:%s", rec.DebugString())
	}
	ms, err := dateDiffMillis(rec)
	if err != nil {
		return converted{}, err
	}
	return converted{Family: s.family, Name: name, Group: name, Unit: "milliseconds", Value: ms}, nil
}

// standHourRule handles the categorical stand-hour records: each record is a
// single counted hour, stood or idle.
type standHourRule struct {
	family string
}

func (s standHourRule) convert(rec *recordAttributes) (converted, error) {
	if err := checkNoUnit(rec); err != nil {
		return converted{}, err
	}
	var name string
	switch rec.Value {
	case "HKCategoryValueAppleStandHourStood":
		name = "StandHours"
	case "HKCategoryValueAppleStandHourIdle":
		name = "IdleHours"
	default:
		return converted{}, recordErr(KindUnknownCategoryValue,
			"stand hour record:%s", rec.DebugString())
	}
	return converted{Family: s.family, Name: name, Group: name, Unit: "count", Value: 1}, nil
}

// countableEventRule handles unitless records where each occurrence counts
// as one.
type countableEventRule struct {
	family string
	name   string
}

func (c countableEventRule) convert(rec *recordAttributes) (converted, error) {
	if err := checkNoUnit(rec); err != nil {
		return converted{}, err
	}
	return converted{Family: c.family, Name: c.name, Group: c.name, Unit: "count", Value: 1}, nil
}

// Shorthand constructors keep the table below readable.

func count(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "count", outUnit: "count", integer: true}
}

func milliliters(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "mL", outUnit: "milliliters", integer: true}
}

func bodyMassIndex(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "count", outUnit: "body_mass_index_millis", scale: 1e6}
}

func percentage(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "%", outUnit: "percentage_millis", scale: 1e6}
}

func countsPerMinute(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "count/min", outUnit: "beats_per_minute_millis", scale: 1e6}
}

func vo2Max(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "mL/min·kg",
		outUnit: "milliliters_per_kilogram_per_minute_millis", scale: 1e6}
}

func kcal(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "kcal", outUnit: "calories", scale: 1e3}
}

func kilometers(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "km", outUnit: "millimeters", scale: 1e6}
}

func centimeters(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "cm", outUnit: "millimeters", scale: 10}
}

func kilograms(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "kg", outUnit: "milligrams", scale: 1e6}
}

func grams(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "g", outUnit: "milligrams", scale: 1e3}
}

func milligrams(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "mg", outUnit: "milligrams", scale: 1}
}

func minutes(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "min", outUnit: "milliseconds", scale: 60 * 1000}
}

func milliseconds(family, name string) conversionRule {
	return quantityRule{family: family, name: name, argUnit: "ms", outUnit: "milliseconds", scale: 1}
}

// conversionRules maps every supported HealthKit record type to its rule.
// A type missing from this table is an unrecoverable schema error: silently
// dropping unrecognized data would defeat the point of the import.
var conversionRules = map[string]conversionRule{
	"HKQuantityTypeIdentifierDietaryWater":             milliliters("Diet", "WaterConsumed"),
	"HKQuantityTypeIdentifierBodyMassIndex":            bodyMassIndex("BodyMeasurements", "BodyMassIndex"),
	"HKQuantityTypeIdentifierHeight":                   centimeters("BodyMeasurements", "Height"),
	"HKQuantityTypeIdentifierBodyMass":                 kilograms("BodyMeasurements", "Weight"),
	"HKQuantityTypeIdentifierHeartRate":                countsPerMinute("BodyMeasurements", "HeartRate"),
	"HKQuantityTypeIdentifierBodyFatPercentage":        percentage("BodyMeasurements", "BodyFatPercentage"),
	"HKQuantityTypeIdentifierLeanBodyMass":             kilograms("BodyMeasurements", "LeanBodyMass"),
	"HKQuantityTypeIdentifierStepCount":                count("Activity", "StepCount"),
	"HKQuantityTypeIdentifierDistanceWalkingRunning":   kilometers("Activity", "WalkingRunningDistance"),
	"HKQuantityTypeIdentifierBasalEnergyBurned":        kcal("Activity", "RestingEnergy"),
	"HKQuantityTypeIdentifierActiveEnergyBurned":       kcal("Activity", "ActiveEnergy"),
	"HKQuantityTypeIdentifierFlightsClimbed":           count("Activity", "FlightClimbed"),
	"HKQuantityTypeIdentifierDietaryFatTotal":          grams("Diet", "TotalFatConsumed"),
	"HKQuantityTypeIdentifierDietaryFatSaturated":      grams("Diet", "SaturatedFatConsumed"),
	"HKQuantityTypeIdentifierDietaryCholesterol":       milligrams("Diet", "CholesterolConsumed"),
	"HKQuantityTypeIdentifierDietarySodium":            milligrams("Diet", "SodiumConsumed"),
	"HKQuantityTypeIdentifierDietaryCarbohydrates":     grams("Diet", "CarbohydratesConsumed"),
	"HKQuantityTypeIdentifierDietaryFiber":             grams("Diet", "FiberConsumed"),
	"HKQuantityTypeIdentifierAppleExerciseTime":        minutes("TimeTracking", "ExerciseTime"),
	"HKQuantityTypeIdentifierDietaryCaffeine":          milligrams("Diet", "CaffeineConsumed"),
	"HKQuantityTypeIdentifierDistanceCycling":          kilometers("Activity", "DistanceCycling"),
	"HKQuantityTypeIdentifierRestingHeartRate":         countsPerMinute("BodyMeasurements", "RestingHeartRate"),
	"HKQuantityTypeIdentifierVO2Max":                   vo2Max("BodyMeasurements", "VO2Max"),
	"HKQuantityTypeIdentifierWalkingHeartRateAverage":  countsPerMinute("BodyMeasurements", "WalkingHeartRateAvg"),
	"HKQuantityTypeIdentifierHeartRateVariabilitySDNN": milliseconds("BodyMeasurements", "HeartRateVariability"),
	"HKQuantityTypeIdentifierDietarySugar":             grams("Diet", "SugarConsumed"),
	"HKQuantityTypeIdentifierDietaryEnergyConsumed":    kcal("Diet", "CaloriesConsumed"),
	"HKQuantityTypeIdentifierDietaryProtein":           grams("Diet", "ProteinConsumed"),
	"HKQuantityTypeIdentifierDietaryPotassium":         milligrams("Diet", "PotassiumConsumed"),
	"HKCategoryTypeIdentifierSleepAnalysis":            sleepAnalysisRule{family: "Activity"},
	"HKCategoryTypeIdentifierAppleStandHour":           standHourRule{family: "Activity"},
	"HKCategoryTypeIdentifierSexualActivity":           countableEventRule{family: "Activity", name: "SexualActivityCount"},
	"HKCategoryTypeIdentifierMindfulSession":           durationRule{family: "TimeTracking", name: "MindfulnessTime"},
}

// classify looks up and applies the conversion rule for a record's type.
func classify(rec *recordAttributes) (converted, error) {
	rule, ok := conversionRules[rec.Type]
	if !ok {
		return converted{}, recordErr(KindUnknownType, "record:%s", rec.DebugString())
	}
	return rule.convert(rec)
}
