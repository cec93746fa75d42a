package cli

import (
	"context"
	"errors"

	"github.com/AlecAivazis/survey/v2/terminal"
	"go.uber.org/zap"

	"github.com/insightlab/stockinsight/config"
	"github.com/insightlab/stockinsight/internal/api"
	"github.com/insightlab/stockinsight/internal/search"
)

// runInteractive drives the prompt loop that is the default when the binary
// is started without a subcommand.
func runInteractive(ctx context.Context, app *App) error {
	app.renderer.Banner()

	// Config edits made while the prompt loop runs are picked up on the next
	// action; the watcher just keeps the managed copy fresh.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		err := app.manager.Watch(watchCtx, func(cfg config.Config) {
			app.logger.Info("configuration reloaded", zap.String("path", app.manager.Path()))
		})
		if err != nil {
			app.logger.Debug("config watch unavailable", zap.Error(err))
		}
	}()

	cfg := app.cfg()
	suggester := search.NewSuggester(app.analysis.SearchStock, cfg.SearchDebounce(), app.logger)
	defer suggester.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		action, err := promptForAction()
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return err
		}

		switch action {
		case actionAnalyze:
			err = interactiveAnalyze(ctx, app, suggester)
		case actionLatest:
			err = interactiveLatest(ctx, app, suggester)
		case actionHistory:
			err = interactiveHistory(ctx, app)
		case actionExit:
			return nil
		}

		if err != nil {
			if errors.Is(err, terminal.InterruptErr) || errors.Is(err, context.Canceled) {
				return nil
			}
			app.renderer.Error(err)
		}
	}
}

func interactiveAnalyze(ctx context.Context, app *App, suggester *search.Suggester) error {
	stockQuery, err := promptForStock(suggester)
	if err != nil {
		return err
	}
	timeframe, err := promptForTimeframe()
	if err != nil {
		return err
	}

	confirmed, err := promptForConfirmPurchase(stockQuery, timeframe)
	if err != nil || !confirmed {
		return err
	}

	return app.Analyze(ctx, stockQuery, timeframe)
}

func interactiveLatest(ctx context.Context, app *App, suggester *search.Suggester) error {
	stockQuery, err := promptForStock(suggester)
	if err != nil {
		return err
	}

	insight, err := app.analysis.GetLatestAnalysis(ctx, stockQuery)
	if err != nil {
		return err
	}
	app.renderer.Insight(insight)
	return nil
}

func interactiveHistory(ctx context.Context, app *App) error {
	list, err := app.analysis.GetAnalysisHistory(ctx, api.HistoryQuery{Limit: app.cfg().HistoryLimit})
	if err != nil {
		return err
	}
	app.session.SetHistory(list.Items, list.Total)
	app.renderer.History(list)
	return nil
}
