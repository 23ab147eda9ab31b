package contracts

type ITokenManagement interface {
	UsedTokens(inputToken int, outputToken int)
	CalculateCost(providerName string, modelName string, inputToken int, outputToken int) float64
	EstimateTokens(text string) int
	IsPriced(providerName string, modelName string) bool
	DisplayTokens(providerName string, modelName string)
	GetCurrentTokenUsage() (total int, input int, output int)
}
