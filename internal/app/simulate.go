package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// SimulateAlert 通过给定的基线/最新价格模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, itemID string, baseline, latest decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	alerts := a.newAlertService()
	alerts.RegisterCallback(notifier.Callback())
	alerts.TrackPrice(itemID, "simulated", baseline, "USD", decimal.Zero)

	alert := alerts.CheckPriceUpdate(itemID, latest)
	if alert == nil {
		a.Logger.Info().
			Str("item_id", itemID).
			Msg("price move below threshold; no alert emitted")
		return nil
	}

	a.Logger.Info().
		Str("alert_id", alert.ID).
		Str("severity", string(alert.Severity)).
		Msg("simulated alert dispatched")
	return nil
}
