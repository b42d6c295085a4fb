package usecase

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"NewsDesk/internal/domain/models"
	"NewsDesk/internal/service/symbols"
	xhttp "NewsDesk/pkg/http"

	"github.com/go-playground/validator/v10"
)

// Warning codes.
const (
	WarnMissingClassification = "missing_classification"
	WarnUnknownClassification = "unknown_classification"
	WarnMissingTransmission   = "missing_transmission_mechanisms"
	WarnMissingPriceRequest   = "missing_market_price_request"
	WarnMissingMandatoryTasks = "missing_mandatory_tasks"
	WarnNoiseShouldMove       = "noise_should_move_markets"
	WarnLowInfoShouldMove     = "low_information_should_move_markets"
	WarnMissingAdviceBan      = "missing_investment_advice_ban"
	WarnFieldRange            = "field_out_of_range"
	WarnConfidenceBelowFloor  = "confidence_below_floor"
	WarnMissingAssetImpact    = "missing_asset_impact"
	WarnProbabilitySum        = "scenario_probability_sum"
	WarnConvictionCapped      = "conviction_capped"
)

const investmentAdviceBanFragment = "investment advice"

// MaxConvictionWithoutNews caps conviction when the strategist found nothing
// new that should move markets.
const MaxConvictionWithoutNews = 7.0

// QualityConfig holds the tunable weights and thresholds of the quality
// score. The defaults are heuristic, not derived.
type QualityConfig struct {
	StrategistWeight       float64
	AdherenceWeight        float64
	ConfidenceWeight       float64
	WarningPenalty         float64
	ProbabilityTolerance   float64
	LowIncrementalInfo     float64
	HighConfidence         float64
	TradeableMinConviction float64
}

func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		StrategistWeight:       0.4,
		AdherenceWeight:        0.3,
		ConfidenceWeight:       0.3,
		WarningPenalty:         0.1,
		ProbabilityTolerance:   0.1,
		LowIncrementalInfo:     3,
		HighConfidence:         7,
		TradeableMinConviction: 6,
	}
}

func strategistWarning(code, format string, args ...interface{}) models.Warning {
	return models.Warning{Stage: models.StageStrategist, Code: code, Message: fmt.Sprintf(format, args...)}
}

func executorWarning(code, format string, args ...interface{}) models.Warning {
	return models.Warning{Stage: models.StageExecutor, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidateStrategy checks a parsed plan. It never rejects; every finding is
// a warning.
func ValidateStrategy(s *models.StrategistOutput, q QualityConfig) []models.Warning {
	var out []models.Warning

	class := s.InformationNature.Classification
	switch {
	case class == "":
		out = append(out, strategistWarning(WarnMissingClassification, "informationNature.classification is missing"))
	case !class.Valid():
		out = append(out, strategistWarning(WarnUnknownClassification, "unknown classification %q", class))
	}

	if len(s.MarketImpactLogic.TransmissionMechanisms) == 0 {
		out = append(out, strategistWarning(WarnMissingTransmission, "no transmission mechanisms declared"))
	}

	hasPrice := false
	for _, need := range s.RequiredData.DataRequests {
		if need.IsMarketPrice() {
			hasPrice = true
			break
		}
	}
	if !hasPrice {
		out = append(out, strategistWarning(WarnMissingPriceRequest, "no market price data requested"))
	}

	if len(s.ExecutorInstructions.MandatoryTasks) == 0 {
		out = append(out, strategistWarning(WarnMissingMandatoryTasks, "no mandatory executor tasks"))
	}

	shouldMove := s.MarketImpactLogic.ShouldMoveMarkets
	if class == models.ClassNoise && shouldMove {
		out = append(out, strategistWarning(WarnNoiseShouldMove, "classified as noise but expects markets to move"))
	}
	if score := s.EpistemicAssessment.IncrementalInformationScore; shouldMove && score < q.LowIncrementalInfo {
		out = append(out, strategistWarning(WarnLowInfoShouldMove,
			"incremental information score %.1f is below %.1f but expects markets to move", score, q.LowIncrementalInfo))
	}

	if !hasAdviceBan(s.ExecutorInstructions.AbsoluteBans) {
		out = append(out, strategistWarning(WarnMissingAdviceBan, "absoluteBans lacks a not-investment-advice clause"))
	}

	out = append(out, rangeWarnings(models.StageStrategist, s)...)
	return out
}

func hasAdviceBan(bans []string) bool {
	for _, b := range bans {
		if strings.Contains(strings.ToLower(b), investmentAdviceBanFragment) {
			return true
		}
	}
	return false
}

// EnsureAdviceBan appends the standard clause when the model left it out,
// so the executor is always bound by it.
func EnsureAdviceBan(s *models.StrategistOutput) {
	if !hasAdviceBan(s.ExecutorInstructions.AbsoluteBans) {
		s.ExecutorInstructions.AbsoluteBans = append(s.ExecutorInstructions.AbsoluteBans,
			"Never present the output as personalised advice; this is not investment advice.")
	}
}

// ValidateAnalysis checks a parsed decision against the plan that produced it.
func ValidateAnalysis(s *models.StrategistOutput, a *models.ExecutorOutput, q QualityConfig) []models.Warning {
	var out []models.Warning

	floor := s.ExecutorInstructions.ConfidenceFloor
	if floor > 0 && a.Confidence.Overall < floor {
		out = append(out, executorWarning(WarnConfidenceBelowFloor,
			"overall confidence %.1f is below the floor %.1f", a.Confidence.Overall, floor))
	}

	covered := make(map[string]struct{}, len(a.AssetImpacts)*3)
	for _, imp := range a.AssetImpacts {
		for _, name := range []string{imp.TradingViewSymbol, imp.NormalizedSymbol, imp.Asset} {
			if n := symbols.Normalize(name); n != "" {
				covered[n] = struct{}{}
			}
		}
	}
	seen := make(map[string]struct{})
	for _, need := range s.RequiredData.DataRequests {
		if !isInstrument(need) {
			continue
		}
		keys := []string{symbols.Normalize(need.TradingViewSymbol), symbols.Normalize(need.Symbol)}
		label := need.TradingViewSymbol
		if label == "" {
			label = need.Symbol
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		if !anyIn(keys, covered) {
			out = append(out, executorWarning(WarnMissingAssetImpact, "no asset impact for required symbol %s", label))
		}
	}

	sum := a.ScenarioAnalysis.ProbabilitySum()
	if math.Abs(sum-1) > q.ProbabilityTolerance {
		out = append(out, executorWarning(WarnProbabilitySum, "scenario probabilities sum to %.2f", sum))
	}

	out = append(out, rangeWarnings(models.StageExecutor, a)...)
	return out
}

// isInstrument skips data needs that name no tradable symbol (macro series
// requested through a global request type).
func isInstrument(need models.DataNeed) bool {
	return strings.TrimSpace(need.Symbol) != "" || strings.TrimSpace(need.TradingViewSymbol) != ""
}

func anyIn(keys []string, set map[string]struct{}) bool {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

// CapConviction lowers conviction when the plan says the item carries no new,
// market-moving information. It reports a warning per capped impact.
func CapConviction(s *models.StrategistOutput, a *models.ExecutorOutput) []models.Warning {
	class := s.InformationNature.Classification
	if s.MarketImpactLogic.ShouldMoveMarkets || (class != models.ClassConfirmation && class != models.ClassNoise) {
		return nil
	}
	var out []models.Warning
	for i := range a.AssetImpacts {
		imp := &a.AssetImpacts[i]
		if imp.Conviction > MaxConvictionWithoutNews {
			out = append(out, executorWarning(WarnConvictionCapped,
				"%s conviction %.0f capped to %.0f for %s item", imp.Asset, imp.Conviction, MaxConvictionWithoutNews, class))
			imp.Conviction = MaxConvictionWithoutNews
		}
	}
	return out
}

// rangeWarnings turns struct tag violations into warnings.
func rangeWarnings(stage string, v interface{}) []models.Warning {
	err := xhttp.Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.Warning{{Stage: stage, Code: WarnFieldRange, Message: err.Error()}}
	}
	out := make([]models.Warning, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.Warning{
			Stage:   stage,
			Code:    WarnFieldRange,
			Message: fmt.Sprintf("%s=%v violates %s", trimRoot(fe.Namespace()), fe.Value(), rule(fe)),
		})
	}
	return out
}

func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// StrategistConfidence clamps the plan's self-reported confidence to [0,1].
func StrategistConfidence(s *models.StrategistOutput) float64 {
	return clamp01(s.InformationNature.Confidence)
}

// Quality computes the heuristic quality metrics for a completed run.
func Quality(s *models.StrategistOutput, a *models.ExecutorOutput, warnings []models.Warning, q QualityConfig) models.QualityMetrics {
	execWarnings := 0
	for _, w := range warnings {
		if w.Stage == models.StageExecutor {
			execWarnings++
		}
	}
	sc := StrategistConfidence(s)
	adherence := math.Max(0, 1-q.WarningPenalty*float64(execWarnings))
	conf := clamp01(a.Confidence.Overall / 10)

	return models.QualityMetrics{
		StrategistConfidence: sc,
		ExecutorAdherence:    adherence,
		OverallQuality:       round3(q.StrategistWeight*sc + q.AdherenceWeight*adherence + q.ConfidenceWeight*conf),
		Warnings:             nonNil(warnings),
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func nonNil(w []models.Warning) []models.Warning {
	if w == nil {
		return []models.Warning{}
	}
	return w
}
