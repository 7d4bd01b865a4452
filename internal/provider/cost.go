package provider

// Per-1K-token price constants. These are rough heuristics for run-cost
// accounting, not billing-accurate figures; upstream pricing drifts and the
// estimate is labeled as such everywhere it surfaces.
const (
	openAIPromptCostPer1K     = 0.00015
	openAICompletionCostPer1K = 0.0006

	mistralPromptCostPer1K     = 0.0002
	mistralCompletionCostPer1K = 0.0006

	geminiPromptCostPer1K     = 0.000075
	geminiCompletionCostPer1K = 0.0003

	// Self-hosted models have no per-token bill; a small flat constant keeps
	// local runs visible in the cost accumulator.
	ollamaFlatCostPerCall = 0.0001
)

func meteredCost(promptTokens, completionTokens int, promptPer1K, completionPer1K float64) float64 {
	return float64(promptTokens)/1000*promptPer1K + float64(completionTokens)/1000*completionPer1K
}
