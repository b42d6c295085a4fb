package models

// InformationClass classifies what kind of information a news item carries.
type InformationClass string

const (
	ClassNewInformation         InformationClass = "new_information"
	ClassConfirmation           InformationClass = "confirmation"
	ClassNarrativeReinforcement InformationClass = "narrative_reinforcement"
	ClassSpeculativeSignal      InformationClass = "speculative_signal"
	ClassNoise                  InformationClass = "noise"
)

// Valid reports whether c is one of the known classes.
func (c InformationClass) Valid() bool {
	switch c {
	case ClassNewInformation, ClassConfirmation, ClassNarrativeReinforcement, ClassSpeculativeSignal, ClassNoise:
		return true
	}
	return false
}

// StrategistOutput is the analysis plan produced by the first model stage.
// It is parsed from untrusted model output; range tags are checked by the
// validation layer and only ever produce warnings.
type StrategistOutput struct {
	InformationNature         InformationNature         `json:"informationNature"`
	MarketImpactLogic         MarketImpactLogic         `json:"marketImpactLogic"`
	RequiredData              RequiredData              `json:"requiredData"`
	NonReactionConditions     NonReactionConditions     `json:"nonReactionConditions"`
	AnalysisHorizons          AnalysisHorizons          `json:"analysisHorizons"`
	HistoricalComparisonLogic HistoricalComparisonLogic `json:"historicalComparisonLogic"`
	CognitiveTraps            []CognitiveTrap           `json:"cognitiveTraps"`
	OutputDesign              OutputDesign              `json:"outputDesign"`
	ExecutorInstructions      ExecutorInstructions      `json:"executorInstructions"`
	EpistemicAssessment       EpistemicAssessment       `json:"epistemicAssessment"`
}

type InformationNature struct {
	Classification InformationClass `json:"classification"`
	Confidence     float64          `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning      string           `json:"reasoning"`
}

type MarketImpactLogic struct {
	ShouldMoveMarkets      bool                    `json:"shouldMoveMarkets"`
	Reasoning              string                  `json:"reasoning"`
	ChallengedBeliefs      []string                `json:"challengedBeliefs"`
	TransmissionMechanisms []TransmissionMechanism `json:"transmissionMechanisms"`
}

// TransmissionMechanism is one channel x direction x magnitude triple.
type TransmissionMechanism struct {
	Channel   string `json:"channel"`
	Direction string `json:"direction"`
	Magnitude string `json:"magnitude"`
}

type RequiredData struct {
	DataRequests          []DataNeed             `json:"dataRequests"`
	TimeWindows           []TimeWindow           `json:"timeWindows"`
	VolatilityProxies     []string               `json:"volatilityProxies"`
	MacroProxies          []string               `json:"macroProxies"`
	PositioningProxies    []string               `json:"positioningProxies"`
	HistoricalComparables []HistoricalComparable `json:"historicalComparables"`
}

// DataNeed is one instrument the strategist wants data for. FmpRequest is
// the optional typed request the dispatcher executes.
type DataNeed struct {
	Symbol            string       `json:"symbol"`
	TradingViewSymbol string       `json:"tradingViewSymbol,omitempty"`
	InstrumentType    string       `json:"instrumentType"`
	DataType          string       `json:"dataType,omitempty"`
	Reason            string       `json:"reason"`
	FmpRequest        *DataRequest `json:"fmpRequest,omitempty"`
}

// IsMarketPrice reports whether the need asks for price data.
func (d DataNeed) IsMarketPrice() bool {
	if d.DataType == "price" {
		return true
	}
	return d.FmpRequest != nil && d.FmpRequest.Type.IsPrice()
}

type TimeWindow struct {
	Name      string `json:"name"`
	Lookback  string `json:"lookback"`
	Rationale string `json:"rationale,omitempty"`
}

// HistoricalComparable carries both lesson lists; the model must send both
// even when one is empty.
type HistoricalComparable struct {
	Event                  string   `json:"event"`
	Date                   string   `json:"date,omitempty"`
	Similarity             string   `json:"similarity,omitempty"`
	TransferableLessons    []string `json:"transferableLessons"`
	NonTransferableLessons []string `json:"nonTransferableLessons"`
}

type NonReactionConditions struct {
	Conditions          []string `json:"conditions"`
	InvalidationSignals []string `json:"invalidationSignals"`
}

type HorizonFocus struct {
	Relevant bool     `json:"relevant"`
	Focus    []string `json:"focus"`
}

type LongHorizon struct {
	HorizonFocus
	StructuralImplications []string `json:"structuralImplications"`
}

type AnalysisHorizons struct {
	Immediate HorizonFocus `json:"immediate"`
	Short     HorizonFocus `json:"short"`
	Medium    HorizonFocus `json:"medium"`
	Long      LongHorizon  `json:"long"`
}

type HistoricalComparisonLogic struct {
	Approach       string   `json:"approach"`
	KeyDifferences []string `json:"keyDifferences"`
}

type CognitiveTrap struct {
	Trap       string `json:"trap"`
	Mitigation string `json:"mitigation"`
}

type Scenario struct {
	Probability  float64  `json:"probability" validate:"gte=0,lte=1"`
	Description  string   `json:"description,omitempty"`
	Implications []string `json:"implications"`
}

type ScenarioMatrix struct {
	Base     Scenario `json:"base"`
	Upside   Scenario `json:"upside"`
	Downside Scenario `json:"downside"`
}

type OutputDesign struct {
	ScenarioMatrix ScenarioMatrix `json:"scenarioMatrix"`
}

type ExecutorInstructions struct {
	MandatoryTasks     []string `json:"mandatoryTasks"`
	ForbiddenBehaviors []string `json:"forbiddenBehaviors"`
	OutputConstraints  []string `json:"outputConstraints"`
	ConfidenceFloor    float64  `json:"confidenceFloor" validate:"gte=0,lte=10"`
	AbsoluteBans       []string `json:"absoluteBans"`
}

type EpistemicAssessment struct {
	KnownFacts                  []string `json:"knownFacts"`
	ImpliedFacts                []string `json:"impliedFacts"`
	Unknowns                    []string `json:"unknowns"`
	IncrementalInformationScore float64  `json:"incrementalInformationScore" validate:"gte=0,lte=10"`
}

// RequiredSymbols returns the symbols of every data need, preferring the
// TradingView form when present.
func (s *StrategistOutput) RequiredSymbols() []string {
	out := make([]string, 0, len(s.RequiredData.DataRequests))
	for _, need := range s.RequiredData.DataRequests {
		switch {
		case need.TradingViewSymbol != "":
			out = append(out, need.TradingViewSymbol)
		case need.Symbol != "":
			out = append(out, need.Symbol)
		}
	}
	return out
}

// FillEmptyLists replaces nil lesson lists with empty ones so the record
// always serializes both lists.
func (s *StrategistOutput) FillEmptyLists() {
	for i := range s.RequiredData.HistoricalComparables {
		c := &s.RequiredData.HistoricalComparables[i]
		if c.TransferableLessons == nil {
			c.TransferableLessons = []string{}
		}
		if c.NonTransferableLessons == nil {
			c.NonTransferableLessons = []string{}
		}
	}
}
