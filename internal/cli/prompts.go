package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/insightlab/stockinsight/internal/models"
	"github.com/insightlab/stockinsight/internal/search"
)

// promptForStock asks for a stock symbol with debounced autocomplete backed
// by the symbol-search endpoint.
func promptForStock(suggester *search.Suggester) (string, error) {
	var input string
	prompt := &survey.Input{
		Message: "Stock to analyze:",
		Help:    "Type a symbol or company name; suggestions appear as you type.",
		Suggest: suggester.Suggest,
	}

	err := survey.AskOne(prompt, &input, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return fmt.Errorf("enter a stock code")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	// A picked suggestion is "SYMBOL  Name (Market)"; keep the symbol.
	symbol := strings.Fields(strings.TrimSpace(input))[0]
	return strings.ToUpper(symbol), nil
}

var timeframeOptions = []string{
	"Short term (days to weeks)",
	"Mid term (weeks to months)",
	"Long term (months to years)",
}

// promptForTimeframe asks for the investment horizon.
func promptForTimeframe() (models.Timeframe, error) {
	var selected string
	prompt := &survey.Select{
		Message: "Investment timeframe:",
		Options: timeframeOptions,
		Default: timeframeOptions[1],
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(selected, "Short"):
		return models.TimeframeShort, nil
	case strings.HasPrefix(selected, "Long"):
		return models.TimeframeLong, nil
	default:
		return models.TimeframeMid, nil
	}
}

const (
	actionAnalyze = "Analyze a stock"
	actionLatest  = "Show the latest report for a stock"
	actionHistory = "Browse analysis history"
	actionExit    = "Exit"
)

// promptForAction asks what to do next in interactive mode.
func promptForAction() (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{actionAnalyze, actionLatest, actionHistory, actionExit},
		Default: actionAnalyze,
	}
	err := survey.AskOne(prompt, &choice)
	return choice, err
}

// promptForConfirmPurchase confirms before opening the payment flow.
func promptForConfirmPurchase(stockQuery string, timeframe models.Timeframe) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Run a paid deep-research analysis for %s (%s term)?", stockQuery, timeframe),
		Default: true,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}
