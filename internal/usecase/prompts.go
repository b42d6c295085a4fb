package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"NewsDesk/internal/domain/models"
	"NewsDesk/pkg/util"
)

const strategistSystemPrompt = `You are the strategist of a two-stage market analysis desk. You do not analyse the news yourself; you design the analysis another model will carry out.

Rules:
- Work only from the news body you are given. Any headline is deliberately withheld; do not guess or reconstruct it.
- First decide what kind of information this is: new_information, confirmation, narrative_reinforcement, speculative_signal or noise. Confirmation of what markets already expected and noise should not move markets.
- Name the beliefs the item challenges and the channels (rates, flows, earnings, risk appetite, FX, commodities) through which it could transmit, each with a direction and magnitude.
- Ask only for data that would change the conclusion. Every data request names a symbol (TradingView form where possible), an instrument type and a reason. At least one request must ask for market prices. Where a typed fetch helps, attach an fmpRequest {type, symbols, params}.
- Every historical comparable lists transferableLessons and nonTransferableLessons, even when one list is empty.
- Scenario probabilities are between 0 and 1 and should sum to 1.
- executorInstructions.absoluteBans must include: "This is not investment advice."
- confidenceFloor is on a 1-10 scale. incrementalInformationScore is on a 0-10 scale.

fmpRequest.type is one of: %s.

Reply with a single JSON object and nothing else, shaped like:
{
  "informationNature": {"classification": "", "confidence": 0.0, "reasoning": ""},
  "marketImpactLogic": {"shouldMoveMarkets": false, "reasoning": "", "challengedBeliefs": [], "transmissionMechanisms": [{"channel": "", "direction": "", "magnitude": ""}]},
  "requiredData": {
    "dataRequests": [{"symbol": "", "tradingViewSymbol": "", "instrumentType": "", "dataType": "price", "reason": "", "fmpRequest": {"type": "quote", "symbols": [], "params": {}}}],
    "timeWindows": [{"name": "", "lookback": ""}],
    "volatilityProxies": [], "macroProxies": [], "positioningProxies": [],
    "historicalComparables": [{"event": "", "transferableLessons": [], "nonTransferableLessons": []}]
  },
  "nonReactionConditions": {"conditions": [], "invalidationSignals": []},
  "analysisHorizons": {"immediate": {"relevant": true, "focus": []}, "short": {"relevant": true, "focus": []}, "medium": {"relevant": false, "focus": []}, "long": {"relevant": false, "focus": [], "structuralImplications": []}},
  "historicalComparisonLogic": {"approach": "", "keyDifferences": []},
  "cognitiveTraps": [{"trap": "", "mitigation": ""}],
  "outputDesign": {"scenarioMatrix": {"base": {"probability": 0.0, "implications": []}, "upside": {"probability": 0.0, "implications": []}, "downside": {"probability": 0.0, "implications": []}}},
  "executorInstructions": {"mandatoryTasks": [], "forbiddenBehaviors": [], "outputConstraints": [], "confidenceFloor": 5, "absoluteBans": ["This is not investment advice."]},
  "epistemicAssessment": {"knownFacts": [], "impliedFacts": [], "unknowns": [], "incrementalInformationScore": 0}
}`

const executorSystemPrompt = `You are the executor of a two-stage market analysis desk. A strategist has already designed the analysis; its plan is binding.

Rules:
- Complete every mandatory task. Never do anything listed under forbidden behaviours or absolute bans. Respect every output constraint.
- Produce an asset impact for every symbol the strategist requested data for. Use the TradingView symbol from the plan in tradingViewSymbol.
- Conviction is 1-10. When the plan classifies the item as confirmation or noise and does not expect markets to move, no conviction may exceed 7.
- If your overall confidence falls below the plan's confidence floor, say so in the disclaimer rather than inflating it.
- Base, upside and downside probabilities must sum to 1.
- Use the collected market data where present; note missing data instead of inventing numbers.
- The disclaimer must state that this is not investment advice.

Reply with a single JSON object and nothing else, shaped like:
{
  "executiveSummary": {"oneSentenceSignal": "", "incrementalVsExpectation": "above|in_line|below|unclear", "overallSentiment": "bullish|bearish|neutral|mixed"},
  "assetImpacts": [{"asset": "", "tradingViewSymbol": "", "normalizedSymbol": "", "direction": "long|short|neutral", "conviction": 5, "horizon": "", "rationale": "", "entryLogic": "", "invalidationCondition": ""}],
  "scenarioAnalysis": {"base": {"probability": 0.0, "description": "", "assetImplications": [{"asset": "", "implication": ""}]}, "upside": {"probability": 0.0, "description": "", "assetImplications": []}, "downside": {"probability": 0.0, "description": "", "assetImplications": []}},
  "pricedInAssessment": {"score": 5, "reasoning": ""},
  "risksAndInvalidation": {"risks": [], "invalidationTriggers": []},
  "monitoring": {"nextDataPoints": [], "triggerEvents": [], "timeframe": ""},
  "confidence": {"overall": 5, "dataQuality": 5, "analysisRobustness": 5, "disclaimer": ""},
  "meta": {"category": "", "primaryAssets": [], "secondaryAssets": []}
}`

// strategistSystem renders the strategist instructions with the request
// catalog the dispatcher accepts.
func strategistSystem(types []models.RequestType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	if len(names) == 0 {
		names = []string{string(models.ReqQuote)}
	}
	return fmt.Sprintf(strategistSystemPrompt, strings.Join(names, ", "))
}

// strategistUser builds the strategist input. The headline is never included.
func strategistUser(news models.NewsInput, mctx *models.MarketContext) string {
	var b strings.Builder
	b.WriteString("NEWS BODY:\n")
	b.WriteString(strings.TrimSpace(news.Body))
	b.WriteString("\n")
	writeNewsMeta(&b, news)
	writeJSONSection(&b, "MARKET CONTEXT", mctx)
	return b.String()
}

func executorUser(news models.NewsInput, strategy *models.StrategistOutput, mctx *models.MarketContext, pack *models.CollectedPack) string {
	var b strings.Builder
	writeJSONSection(&b, "BINDING ANALYSIS PLAN", strategy)
	b.WriteString("\nNEWS BODY:\n")
	b.WriteString(strings.TrimSpace(news.Body))
	b.WriteString("\n")
	writeNewsMeta(&b, news)
	writeJSONSection(&b, "MARKET CONTEXT", mctx)
	if pack != nil {
		writeJSONSection(&b, "COLLECTED MARKET DATA", pack)
	}
	return b.String()
}

func writeNewsMeta(b *strings.Builder, news models.NewsInput) {
	if news.Source != "" {
		fmt.Fprintf(b, "SOURCE: %s\n", news.Source)
	}
	if news.PublishedAt != nil {
		fmt.Fprintf(b, "PUBLISHED: %s\n", news.PublishedAt.UTC().Format(time.RFC3339))
	}
	if tickers := util.UniqueUpper(news.Tickers); len(tickers) > 0 {
		fmt.Fprintf(b, "MENTIONED TICKERS: %s\n", strings.Join(tickers, ", "))
	}
}

func writeJSONSection(b *strings.Builder, title string, v interface{}) {
	if v == nil {
		return
	}
	switch x := v.(type) {
	case *models.MarketContext:
		if x == nil {
			return
		}
	case *models.StrategistOutput:
		if x == nil {
			return
		}
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", title, raw)
}
